package webhook

import (
	"encoding/json"
	"time"
)

// Event types Opal delivers.
const (
	EventInvoicePaid          = "invoice.paid"
	EventInvoicePaymentFailed = "invoice.payment_failed"
	EventSubscriptionCreated  = "subscription.created"
	EventSubscriptionUpdated  = "subscription.updated"
)

// Envelope is the outer shape of every Opal webhook delivery. Data is
// decoded per event type.
type Envelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

// InvoiceEventData is the payload of invoice.* events.
type InvoiceEventData struct {
	InvoiceID      string `json:"invoice_id"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	CustomerID     string `json:"customer_id"`
	Status         string `json:"status"`
}

// SubscriptionEventData is the payload of subscription.* events.
type SubscriptionEventData struct {
	SubscriptionID     string            `json:"subscription_id"`
	CustomerID         string            `json:"customer_id"`
	PlanRef            string            `json:"plan_ref"`
	Status             string            `json:"status"`
	Amount             string            `json:"amount"`
	Currency           string            `json:"currency"`
	CurrentPeriodStart *time.Time        `json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time        `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	Metadata           map[string]string `json:"metadata,omitempty"`
}
