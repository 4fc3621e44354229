package entitlement

import (
	"time"

	"github.com/wellpath/wellpath/internal/types"
)

// Entitlement is a built-in product granted by a subscription (visit
// credits, lab panels and the like). Price changes expire entitlements on
// the old subscription and recreate equivalents on the new one.
type Entitlement struct {
	ID                  string                    `json:"id"`
	SubscriptionID      string                    `json:"subscription_id"`
	ProductCode         string                    `json:"product_code"`
	PaymentFlowCategory types.PaymentFlowCategory `json:"payment_flow_category"`
	ExpiresAt           *time.Time                `json:"expires_at,omitempty"`

	// ExternalInvoiceID links a purchasable entitlement to the provider
	// invoice that pays for it. Empty for subscription-granted
	// entitlements.
	ExternalInvoiceID string     `json:"external_invoice_id,omitempty"`
	PaidAt            *time.Time `json:"paid_at,omitempty"`

	types.BaseModel
}

// IsExpired reports whether the entitlement has been expired.
func (e *Entitlement) IsExpired(now time.Time) bool {
	return e.ExpiresAt != nil && !now.Before(*e.ExpiresAt)
}

// CloneFor returns an equivalent entitlement attached to another
// subscription.
func (e *Entitlement) CloneFor(subscriptionID string, base types.BaseModel) *Entitlement {
	return &Entitlement{
		ID:                  types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT),
		SubscriptionID:      subscriptionID,
		ProductCode:         e.ProductCode,
		PaymentFlowCategory: e.PaymentFlowCategory,
		BaseModel:           base,
	}
}
