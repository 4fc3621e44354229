package service

import (
	"context"
	"time"

	"github.com/wellpath/wellpath/internal/api/dto"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/flow"
	"github.com/wellpath/wellpath/internal/types"
)

// RenewalStrategyService manages the per-subscription override of which
// price, coupon and employer product the next renewal uses.
type RenewalStrategyService interface {
	UpdateRenewalStrategy(ctx context.Context, req dto.UpdateRenewalStrategyRequest) (*dto.RenewalStrategyResponse, error)

	// GetOrCreateRenewalStrategy returns the subscription's strategy,
	// creating one from the subscription's current price, promo and
	// employer product when none exists yet.
	GetOrCreateRenewalStrategy(ctx context.Context, subscriptionID string) (*dto.RenewalStrategyResponse, error)
}

type renewalStrategyService struct {
	ServiceParams
	materializer *Materializer
}

func NewRenewalStrategyService(params ServiceParams) RenewalStrategyService {
	return &renewalStrategyService{
		ServiceParams: params,
		materializer:  NewMaterializer(params),
	}
}

// UpdateRenewalStrategy upserts the strategy for a subscription.
func (s *renewalStrategyService) UpdateRenewalStrategy(ctx context.Context, req dto.UpdateRenewalStrategyRequest) (*dto.RenewalStrategyResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub.IsCanceled() {
		return nil, ierr.NewError("cannot set a renewal strategy on a canceled subscription").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": sub.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	details, err := s.PlanRepo.GetPriceDetails(ctx, req.PaymentPriceID)
	if err != nil {
		return nil, err
	}
	if req.PromoCodeCouponID != nil {
		promo, err := s.PromoRepo.Get(ctx, *req.PromoCodeCouponID)
		if err != nil {
			return nil, err
		}
		if err := promo.CompatibleWith(details, time.Now().UTC()); err != nil {
			return nil, err
		}
	}
	if req.EmployerProductID != nil {
		if _, err := s.EmployerRepo.Get(ctx, *req.EmployerProductID); err != nil {
			return nil, err
		}
	}

	existing, err := s.RenewalStrategyRepo.GetBySubscriptionID(ctx, sub.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	var result *flow.RenewalStrategyResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if existing == nil {
			result, err = flow.CreateRenewalStrategyFlow{
				SubscriptionID:    sub.ID,
				PriceDetails:      details,
				PromoCodeCouponID: req.PromoCodeCouponID,
				EmployerProductID: req.EmployerProductID,
				Now:               now,
				Base:              types.GetDefaultBaseModel(ctx),
			}.Execute()
		} else {
			result, err = flow.UpdateRenewalStrategyFlow{
				Strategy:          existing,
				PriceDetails:      details,
				PromoCodeCouponID: req.PromoCodeCouponID,
				EmployerProductID: req.EmployerProductID,
				Now:               now,
			}.Execute()
		}
		if err != nil {
			return err
		}
		return s.materializer.Apply(ctx, result.Actions)
	})
	if err != nil {
		return nil, err
	}

	return dto.NewRenewalStrategyResponse(result.Strategy), nil
}

func (s *renewalStrategyService) GetOrCreateRenewalStrategy(ctx context.Context, subscriptionID string) (*dto.RenewalStrategyResponse, error) {
	strategy, err := s.RenewalStrategyRepo.GetBySubscriptionID(ctx, subscriptionID)
	if err == nil {
		return dto.NewRenewalStrategyResponse(strategy), nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	details, err := s.PlanRepo.GetPriceDetails(ctx, sub.PaymentPriceID)
	if err != nil {
		return nil, err
	}

	var result *flow.RenewalStrategyResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = flow.CreateRenewalStrategyFlow{
			SubscriptionID:    sub.ID,
			PriceDetails:      details,
			PromoCodeCouponID: sub.PromoCodeCouponID,
			EmployerProductID: sub.EmployerProductID,
			Now:               time.Now().UTC(),
			Base:              types.GetDefaultBaseModel(ctx),
		}.Execute()
		if err != nil {
			return err
		}
		return s.materializer.Apply(ctx, result.Actions)
	})
	if err != nil {
		return nil, err
	}
	return dto.NewRenewalStrategyResponse(result.Strategy), nil
}
