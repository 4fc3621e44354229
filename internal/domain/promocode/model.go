package promocode

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/wellpath/wellpath/internal/domain/plan"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// PromoCodeCoupon is a new-style promo code scoped to a practice. Exactly
// one of DiscountPercent or DiscountAmount is set.
type PromoCodeCoupon struct {
	ID              string           `json:"id"`
	Code            string           `json:"code"`
	DiscountPercent *decimal.Decimal `json:"discount_percent,omitempty"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount,omitempty"`
	// ApplicablePlanIDs restricts the coupon to specific plans. Empty
	// means any plan.
	ApplicablePlanIDs []string   `json:"applicable_plan_ids,omitempty"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	MaxRedemptions    *int       `json:"max_redemptions,omitempty"`
	RedeemedCount     int        `json:"redeemed_count"`
	types.BaseModel
}

func (c *PromoCodeCoupon) Validate() error {
	if c.Code == "" {
		return ierr.NewError("promo code is required").Mark(ierr.ErrValidation)
	}
	if c.DiscountPercent == nil && c.DiscountAmount == nil {
		return ierr.NewError("promo code must carry a discount").
			WithHint("Set either a percent or a fixed amount discount").
			Mark(ierr.ErrValidation)
	}
	if c.DiscountPercent != nil && c.DiscountAmount != nil {
		return ierr.NewError("promo code cannot carry both discount kinds").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CompatibleWith checks whether the coupon may be applied to the given
// price at the given time. Returns a validation error naming the first
// failing rule.
func (c *PromoCodeCoupon) CompatibleWith(details *plan.PriceDetails, now time.Time) error {
	if len(c.ApplicablePlanIDs) > 0 && !lo.Contains(c.ApplicablePlanIDs, details.Plan.ID) {
		return ierr.NewErrorf("promo code %s is not valid for plan %s", c.Code, details.Plan.Name).
			WithHint("This promo code applies to a different plan").
			WithReportableDetails(map[string]interface{}{
				"promo_code": c.Code,
				"plan_id":    details.Plan.ID,
			}).
			Mark(ierr.ErrValidation)
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return ierr.NewErrorf("promo code %s has expired", c.Code).
			WithHint("This promo code is no longer active").
			Mark(ierr.ErrValidation)
	}
	if c.MaxRedemptions != nil && c.RedeemedCount >= *c.MaxRedemptions {
		return ierr.NewErrorf("promo code %s has no redemptions left", c.Code).
			WithHint("This promo code has been fully redeemed").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// ApplyTo returns the price after the coupon's discount, floored at zero.
func (c *PromoCodeCoupon) ApplyTo(amount decimal.Decimal) decimal.Decimal {
	discounted := amount
	if c.DiscountPercent != nil {
		factor := decimal.NewFromInt(100).Sub(*c.DiscountPercent).Div(decimal.NewFromInt(100))
		discounted = amount.Mul(factor).Round(2)
	} else if c.DiscountAmount != nil {
		discounted = amount.Sub(*c.DiscountAmount)
	}
	if discounted.IsNegative() {
		return decimal.Zero
	}
	return discounted
}
