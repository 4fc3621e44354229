package flow

import (
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/promocode"
	"github.com/wellpath/wellpath/internal/domain/subscription"
)

// ResolvePromoCodeFlow decides which price and promo code apply at renewal.
// Precedence: renewal-strategy override, then the subscription's direct
// promo code link, then the translation of the legacy coupon embedded on
// the current price, then none. A legacy code with no new-style equivalent
// applies no promo rather than failing the renewal.
//
// All lookups happen before the flow runs; the flow only arbitrates.
type ResolvePromoCodeFlow struct {
	// Strategy is the subscription's renewal strategy, nil if none.
	Strategy *subscription.RenewalStrategy
	// StrategyPromo is the coupon the strategy references, nil if the
	// strategy has no coupon or no strategy exists.
	StrategyPromo *promocode.PromoCodeCoupon
	// DirectPromo is the subscription's directly-linked coupon.
	DirectPromo *promocode.PromoCodeCoupon
	// LegacyPromo is the new-style coupon matching the legacy code on the
	// current price, nil when no equivalent exists.
	LegacyPromo *promocode.PromoCodeCoupon
	// CurrentPrice is the price of the period being renewed.
	CurrentPrice *plan.PaymentPrice
}

// ResolvePromoCodeFlowResult is a transient value, never persisted.
type ResolvePromoCodeFlowResult struct {
	PaymentPriceID string
	PromoCode      *promocode.PromoCodeCoupon
}

func (f ResolvePromoCodeFlow) Execute() *ResolvePromoCodeFlowResult {
	result := &ResolvePromoCodeFlowResult{PaymentPriceID: f.CurrentPrice.ID}

	if f.Strategy != nil {
		result.PaymentPriceID = f.Strategy.PaymentPriceID
		if f.StrategyPromo != nil {
			result.PromoCode = f.StrategyPromo
			return result
		}
		// A strategy without a coupon overrides only the price; the code
		// still resolves through the remaining precedence chain.
	}

	if f.DirectPromo != nil {
		result.PromoCode = f.DirectPromo
		return result
	}
	if f.LegacyPromo != nil {
		result.PromoCode = f.LegacyPromo
	}
	return result
}
