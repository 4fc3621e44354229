package opal

import (
	"time"

	"github.com/shopspring/decimal"
)

// Opal API wire types. Amounts are decimal strings in the Opal API, which
// shopspring/decimal marshals to natively.

// OpalCustomer represents a customer in Opal.
type OpalCustomer struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Reference string            `json:"reference,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CreateCustomerRequest creates or updates a customer keyed by reference.
type CreateCustomerRequest struct {
	Name      string            `json:"name"`
	Email     string            `json:"email"`
	Reference string            `json:"reference"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// OpalSubscription represents a subscription in Opal.
type OpalSubscription struct {
	ID                 string            `json:"id"`
	CustomerID         string            `json:"customer_id"`
	PlanRef            string            `json:"plan_ref"`
	Status             string            `json:"status"`
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	CurrentPeriodStart *time.Time        `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time        `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}

// CreateSubscriptionRequest creates a subscription in Opal.
type CreateSubscriptionRequest struct {
	CustomerID     string            `json:"customer_id"`
	PlanRef        string            `json:"plan_ref"`
	Amount         decimal.Decimal   `json:"amount"`
	SetupFee       decimal.Decimal   `json:"setup_fee,omitempty"`
	Currency       string            `json:"currency"`
	IntervalMonths int               `json:"interval_months"`
	PromoCode      string            `json:"promo_code,omitempty"`
	BackdateTo     *time.Time        `json:"backdate_to,omitempty"`
	SkipSetupFee   bool              `json:"skip_setup_fee,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// UpdateSubscriptionRequest changes an existing subscription's price.
type UpdateSubscriptionRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PlanRef   string          `json:"plan_ref,omitempty"`
	PromoCode string          `json:"promo_code,omitempty"`
}

// CancelSubscriptionRequest cancels a subscription, optionally at a future
// date.
type CancelSubscriptionRequest struct {
	CancelAt *time.Time `json:"cancel_at,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// OpalInvoice represents an invoice in Opal.
type OpalInvoice struct {
	ID             string          `json:"id"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	CustomerID     string          `json:"customer_id"`
	Status         string          `json:"status"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	FailureMessage string          `json:"failure_message,omitempty"`
}

// Invoice statuses returned by Opal.
const (
	InvoiceStatusPaid   = "paid"
	InvoiceStatusOpen   = "open"
	InvoiceStatusFailed = "failed"
	InvoiceStatusVoid   = "void"
)

// PayInvoiceResponse is the outcome of charging an open invoice.
type PayInvoiceResponse struct {
	Invoice OpalInvoice `json:"invoice"`
}

// OpalPrice is one entry of Opal's price catalog.
type OpalPrice struct {
	PlanRef   string            `json:"plan_ref"`
	Amount    decimal.Decimal   `json:"amount"`
	Currency  string            `json:"currency"`
	Reference string            `json:"reference,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ListPricesResponse is the price catalog listing.
type ListPricesResponse struct {
	Prices []OpalPrice `json:"prices"`
}

// PaymentLinkResponse carries a patient-facing payment resolution link.
type PaymentLinkResponse struct {
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// CreatePaymentLinkRequest requests a payment link for a subscription's
// open balance.
type CreatePaymentLinkRequest struct {
	SubscriptionID string `json:"subscription_id"`
	CustomerID     string `json:"customer_id"`
}

// ErrorResponse is Opal's error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
