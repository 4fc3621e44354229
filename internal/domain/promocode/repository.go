package promocode

import "context"

// Repository defines the interface for promo code lookups.
type Repository interface {
	// Get retrieves a promo code coupon by ID
	Get(ctx context.Context, id string) (*PromoCodeCoupon, error)

	// GetByCode retrieves a coupon by its code string within the practice
	// scope carried on the context. Used to translate legacy coupon codes
	// embedded on prices into new-style coupons.
	GetByCode(ctx context.Context, code string) (*PromoCodeCoupon, error)
}
