package entitlement

import "context"

// Repository defines the interface for entitlement persistence operations
type Repository interface {
	// Create creates a new entitlement
	Create(ctx context.Context, e *Entitlement) error

	// Update persists changes to an entitlement
	Update(ctx context.Context, e *Entitlement) error

	// ListActiveBySubscription returns the non-expired entitlements for a
	// subscription
	ListActiveBySubscription(ctx context.Context, subscriptionID string) ([]*Entitlement, error)

	// GetByExternalInvoiceID resolves a purchasable entitlement by the
	// provider invoice that pays for it
	GetByExternalInvoiceID(ctx context.Context, externalInvoiceID string) (*Entitlement, error)

	// MarkPaid flags a purchasable entitlement as paid, used when an
	// invoice-paid webhook references a provider-side product rather than
	// a subscription
	MarkPaid(ctx context.Context, externalInvoiceID string) error
}
