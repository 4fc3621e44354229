package dto

import (
	"github.com/wellpath/wellpath/internal/domain/subscription"
	"github.com/wellpath/wellpath/internal/validator"
)

type UpdateRenewalStrategyRequest struct {
	SubscriptionID    string  `json:"subscription_id" validate:"required"`
	PaymentPriceID    string  `json:"payment_price_id" validate:"required"`
	PromoCodeCouponID *string `json:"promo_code_coupon_id,omitempty"`
	EmployerProductID *string `json:"employer_product_id,omitempty"`
}

func (r UpdateRenewalStrategyRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type RenewalStrategyResponse struct {
	*subscription.RenewalStrategy
}

func NewRenewalStrategyResponse(s *subscription.RenewalStrategy) *RenewalStrategyResponse {
	return &RenewalStrategyResponse{RenewalStrategy: s}
}
