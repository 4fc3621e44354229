package plan

import "context"

// Repository defines the interface for pricing catalog lookups. The catalog
// is read-only from the membership core's perspective.
type Repository interface {
	// GetPlan retrieves a payment plan by ID
	GetPlan(ctx context.Context, id string) (*PaymentPlan, error)

	// GetPeriod retrieves a payment period by ID
	GetPeriod(ctx context.Context, id string) (*PaymentPeriod, error)

	// GetPrice retrieves a payment price by ID
	GetPrice(ctx context.Context, id string) (*PaymentPrice, error)

	// GetPriceDetails resolves a price together with its period and plan
	GetPriceDetails(ctx context.Context, priceID string) (*PriceDetails, error)

	// ListPricesByPeriod lists the prices under a period, the renewal-time
	// candidates for promo code resolution
	ListPricesByPeriod(ctx context.Context, periodID string) ([]*PaymentPrice, error)
}
