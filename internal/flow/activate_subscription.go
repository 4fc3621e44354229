package flow

import (
	"time"

	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
)

// ActivateSubscriptionFlow starts a future-dated subscription now. The
// period is re-anchored to the activation date so the patient gets the full
// period they are billed for.
type ActivateSubscriptionFlow struct {
	Subscription *subscription.Subscription
	PriceDetails *plan.PriceDetails
	// ActivationDate defaults to Now.
	ActivationDate *time.Time
	Now            time.Time
}

type ActivateSubscriptionResult struct {
	Subscription *subscription.Subscription
	Actions      []Action
}

func (f ActivateSubscriptionFlow) Execute() (*ActivateSubscriptionResult, error) {
	if f.Subscription.IsCanceled() {
		return nil, ierr.NewError("cannot activate a canceled subscription").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": f.Subscription.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if !f.Now.Before(f.Subscription.StartDate) {
		return nil, ierr.NewError("subscription has already started").
			WithHint("Activation only applies to future-dated subscriptions").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": f.Subscription.ID,
				"start_date":      f.Subscription.StartDate,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if err := f.PriceDetails.Validate(); err != nil {
		return nil, err
	}

	start := f.Now
	if f.ActivationDate != nil {
		start = *f.ActivationDate
	}

	sub := f.Subscription
	sub.StartDate = start
	sub.EndDate = start.AddDate(0, f.PriceDetails.Period.PeriodInMonths, 0)
	sub.UpdatedAt = f.Now

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	return &ActivateSubscriptionResult{
		Subscription: sub,
		Actions:      []Action{UpdateSubscription{Subscription: sub}},
	}, nil
}
