package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	"github.com/wellpath/wellpath/internal/types"
)

// SubscriptionPriceDetails is the provider-facing view of what to charge:
// the per-period amount after discounts, plus catalog references.
type SubscriptionPriceDetails struct {
	PriceID        string          `json:"price_id"`
	PlanName       string          `json:"plan_name"`
	Amount         decimal.Decimal `json:"amount"`
	StartupFee     decimal.Decimal `json:"startup_fee"`
	Currency       string          `json:"currency"`
	PeriodInMonths int             `json:"period_in_months"`
	PromoCode      string          `json:"promo_code,omitempty"`
}

// PaymentResult is the outcome of charging a subscription's invoice.
type PaymentResult struct {
	InvoiceID      string          `json:"invoice_id"`
	Paid           bool            `json:"paid"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	FailureMessage string          `json:"failure_message,omitempty"`
}

// SubscriptionSnapshot is the provider's view of a subscription.
type SubscriptionSnapshot struct {
	ExternalID         string                     `json:"external_id"`
	Status             ExternalSubscriptionStatus `json:"status"`
	PlanRef            string                     `json:"plan_ref"`
	Amount             decimal.Decimal            `json:"amount"`
	Currency           string                     `json:"currency"`
	CurrentPeriodStart *time.Time                 `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time                 `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool                       `json:"cancel_at_period_end"`
	CustomerRef        string                     `json:"customer_ref,omitempty"`
}

// CatalogPrice maps a provider-side plan reference to a local payment
// price.
type CatalogPrice struct {
	ExternalPlanRef string          `json:"external_plan_ref"`
	PaymentPriceID  string          `json:"payment_price_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// Gateway abstracts one external billing provider. Orchestrators only talk
// to providers through this interface; one implementation exists per
// vendor.
type Gateway interface {
	// Vendor identifies the provider instance this gateway talks to.
	Vendor() types.PaymentVendor

	// CreateOrUpdateSubscription creates the subscription on the provider
	// side, or updates it if the previous subscription already has an
	// identity there. Returns the external subscription id.
	CreateOrUpdateSubscription(ctx context.Context, p *patient.Patient, price SubscriptionPriceDetails, previous *subscription.Subscription) (string, error)

	// CreateSubscriptionBackdated mirrors an external subscription that
	// started in the past, without charging a startup fee when
	// noStartupFee is set.
	CreateSubscriptionBackdated(ctx context.Context, p *patient.Patient, price SubscriptionPriceDetails, backdate time.Time, noStartupFee bool) (string, error)

	// ProcessSubscriptionPayment charges the subscription's open invoice.
	// A nil result with a nil error means the invoice was already
	// settled.
	ProcessSubscriptionPayment(ctx context.Context, p *patient.Patient, externalSubscriptionID string) (*PaymentResult, error)

	// TryCancelSubscription cancels a subscription on the provider side,
	// optionally at a future end date. Returns false when the provider no
	// longer knows the subscription.
	TryCancelSubscription(ctx context.Context, externalSubscriptionID string, endDate *time.Time, reason string) (bool, error)

	// GetPatientSubscription fetches the provider's view of a
	// subscription. Returns nil when the provider has none.
	GetPatientSubscription(ctx context.Context, p *patient.Patient, externalSubscriptionID string) (*SubscriptionSnapshot, error)

	// UpdateSubscriptionPrice changes the price of an existing external
	// subscription.
	UpdateSubscriptionPrice(ctx context.Context, practiceID string, externalSubscriptionID string, price SubscriptionPriceDetails) error

	// DeleteSubscription removes a subscription on the provider side.
	// Used as the compensating rollback after a failed first billing.
	DeleteSubscription(ctx context.Context, externalSubscriptionID string) error

	// GeneratePaymentLink creates a patient-facing payment resolution
	// link for an outstanding invoice.
	GeneratePaymentLink(ctx context.Context, p *patient.Patient, externalSubscriptionID string) (string, error)

	// GetPriceCatalog fetches the provider's price catalog, used to map
	// external plan references to local prices.
	GetPriceCatalog(ctx context.Context) ([]CatalogPrice, error)
}
