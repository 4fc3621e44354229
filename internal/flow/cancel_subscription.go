package flow

import (
	"time"

	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// CancelSubscriptionFlow terminates a subscription immediately. Any
// outstanding payment issues tied to the subscription's integration ids are
// resolved alongside: a canceled subscription cannot keep a dunning cycle
// open.
type CancelSubscriptionFlow struct {
	Subscription      *subscription.Subscription
	OutstandingIssues []*paymentissue.PaymentIssue
	ReasonType        types.CancellationReasonType
	Reason            string
	// AllowLapsedPeriod permits canceling a subscription whose period has
	// already ended. A cancellation scheduled for the period end executes
	// once the period has lapsed; the immediate cancel command keeps the
	// strict active precondition.
	AllowLapsedPeriod bool
	Now               time.Time
}

type CancelSubscriptionResult struct {
	Subscription *subscription.Subscription
	Actions      []Action
}

func (f CancelSubscriptionFlow) Execute() (*CancelSubscriptionResult, error) {
	if err := f.ReasonType.Validate(); err != nil {
		return nil, err
	}
	if f.Subscription.IsCanceled() {
		return nil, ierr.NewError("subscription is already canceled").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": f.Subscription.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if !f.AllowLapsedPeriod && !f.Subscription.IsActive(f.Now) {
		return nil, ierr.NewError("only an active subscription can be canceled").
			WithHint("The subscription is already canceled or outside its period").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": f.Subscription.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	sub := f.Subscription
	sub.CanceledAt = lo.ToPtr(f.Now)
	sub.CanceledReasonType = lo.ToPtr(f.ReasonType)
	sub.CanceledReason = f.Reason
	sub.CancellationRequest = nil
	sub.UpdatedAt = f.Now

	actions := []Action{UpdateSubscription{Subscription: sub}}
	for _, issue := range f.OutstandingIssues {
		issue.Resolve(f.Now)
		actions = append(actions, UpdatePaymentIssue{Issue: issue})
	}

	return &CancelSubscriptionResult{Subscription: sub, Actions: actions}, nil
}

// ScheduleCancellationFlow records a cancellation for a future effective
// date instead of canceling now. The cancellation job executes it when the
// date arrives.
type ScheduleCancellationFlow struct {
	Subscription  *subscription.Subscription
	ReasonType    types.CancellationReasonType
	Reason        string
	EffectiveDate time.Time
	Now           time.Time
}

type ScheduleCancellationResult struct {
	Subscription *subscription.Subscription
	Actions      []Action
}

func (f ScheduleCancellationFlow) Execute() (*ScheduleCancellationResult, error) {
	if err := f.ReasonType.Validate(); err != nil {
		return nil, err
	}
	if f.Subscription.IsCanceled() {
		return nil, ierr.NewError("subscription is already canceled").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": f.Subscription.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if f.EffectiveDate.Before(f.Now) {
		return nil, ierr.NewError("cancellation effective date cannot be in the past").
			WithHint("Use an immediate cancellation instead").
			Mark(ierr.ErrValidation)
	}

	sub := f.Subscription
	sub.CancellationRequest = &subscription.CancellationRequest{
		ReasonType:    f.ReasonType,
		Reason:        f.Reason,
		EffectiveDate: f.EffectiveDate,
	}
	sub.UpdatedAt = f.Now

	return &ScheduleCancellationResult{
		Subscription: sub,
		Actions:      []Action{UpdateSubscription{Subscription: sub}},
	}, nil
}
