package billing

import (
	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/types"
)

// ExternalSubscriptionStatus is the provider-side subscription status.
type ExternalSubscriptionStatus string

const (
	ExternalStatusActive     ExternalSubscriptionStatus = "active"
	ExternalStatusTrialing   ExternalSubscriptionStatus = "trialing"
	ExternalStatusPastDue    ExternalSubscriptionStatus = "past_due"
	ExternalStatusUnpaid     ExternalSubscriptionStatus = "unpaid"
	ExternalStatusCanceled   ExternalSubscriptionStatus = "canceled"
	ExternalStatusEnded      ExternalSubscriptionStatus = "ended"
	ExternalStatusIncomplete ExternalSubscriptionStatus = "incomplete"
	ExternalStatusPaused     ExternalSubscriptionStatus = "paused"
)

// terminalStatuses are the provider statuses that map to a local
// cancellation.
var terminalStatuses = []ExternalSubscriptionStatus{
	ExternalStatusCanceled,
	ExternalStatusEnded,
	ExternalStatusUnpaid,
}

// IsTerminal reports whether the status maps to a canceled/ended local
// subscription.
func (s ExternalSubscriptionStatus) IsTerminal() bool {
	return lo.Contains(terminalStatuses, s)
}

// InvoiceEvent is the shared shape of invoice webhooks. SubscriptionID is
// empty when the invoice is tied to a provider-side product rather than a
// subscription.
type InvoiceEvent struct {
	InvoiceID      string              `json:"invoice_id"`
	SubscriptionID string              `json:"subscription_id,omitempty"`
	Vendor         types.PaymentVendor `json:"vendor"`
}

// InvoicePaidEvent signals a successfully settled invoice.
type InvoicePaidEvent struct {
	InvoiceEvent
}

// InvoicePaymentFailedEvent signals a failed charge.
type InvoicePaymentFailedEvent struct {
	InvoiceEvent
}

// SubscriptionCreatedEvent signals a subscription created on the provider
// side (e.g. through the provider's own dashboard).
type SubscriptionCreatedEvent struct {
	Subscription SubscriptionSnapshot `json:"subscription"`
	Vendor       types.PaymentVendor  `json:"vendor"`
}

// SubscriptionUpdatedEvent signals a provider-side change to a
// subscription.
type SubscriptionUpdatedEvent struct {
	Subscription SubscriptionSnapshot `json:"subscription"`
	Vendor       types.PaymentVendor  `json:"vendor"`
}
