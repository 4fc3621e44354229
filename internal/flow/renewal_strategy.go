package flow

import (
	"time"

	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// CreateRenewalStrategyFlow records which price, coupon and employer
// product the next renewal should use.
type CreateRenewalStrategyFlow struct {
	SubscriptionID    string
	PriceDetails      *plan.PriceDetails
	PromoCodeCouponID *string
	EmployerProductID *string
	Now               time.Time
	Base              types.BaseModel
}

type RenewalStrategyResult struct {
	Strategy *subscription.RenewalStrategy
	Actions  []Action
}

func (f CreateRenewalStrategyFlow) Execute() (*RenewalStrategyResult, error) {
	if f.SubscriptionID == "" {
		return nil, ierr.NewError("subscription id is required").Mark(ierr.ErrValidation)
	}
	if err := f.PriceDetails.Validate(); err != nil {
		return nil, err
	}

	strategy := &subscription.RenewalStrategy{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_RENEWAL_STRATEGY),
		SubscriptionID:    f.SubscriptionID,
		PaymentPriceID:    f.PriceDetails.Price.ID,
		PromoCodeCouponID: f.PromoCodeCouponID,
		EmployerProductID: f.EmployerProductID,
		BaseModel:         f.Base,
	}
	if err := strategy.Validate(); err != nil {
		return nil, err
	}

	return &RenewalStrategyResult{
		Strategy: strategy,
		Actions:  []Action{CreateRenewalStrategy{Strategy: strategy}},
	}, nil
}

// UpdateRenewalStrategyFlow repoints an existing strategy at a different
// price, coupon or employer product.
type UpdateRenewalStrategyFlow struct {
	Strategy          *subscription.RenewalStrategy
	PriceDetails      *plan.PriceDetails
	PromoCodeCouponID *string
	EmployerProductID *string
	Now               time.Time
}

func (f UpdateRenewalStrategyFlow) Execute() (*RenewalStrategyResult, error) {
	if f.Strategy == nil {
		return nil, ierr.NewError("renewal strategy is required").Mark(ierr.ErrValidation)
	}
	if err := f.PriceDetails.Validate(); err != nil {
		return nil, err
	}

	f.Strategy.PaymentPriceID = f.PriceDetails.Price.ID
	f.Strategy.PromoCodeCouponID = f.PromoCodeCouponID
	f.Strategy.EmployerProductID = f.EmployerProductID
	f.Strategy.UpdatedAt = f.Now

	if err := f.Strategy.Validate(); err != nil {
		return nil, err
	}

	return &RenewalStrategyResult{
		Strategy: f.Strategy,
		Actions:  []Action{UpdateRenewalStrategy{Strategy: f.Strategy}},
	}, nil
}
