package flow

import (
	"time"

	"github.com/wellpath/wellpath/internal/domain/employer"
	"github.com/wellpath/wellpath/internal/domain/entitlement"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/promocode"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// ChangeSubscriptionPaymentPriceFlow switches a subscription to a different
// price mid-period. It is a cancel-old-plus-create-new, not an in-place
// edit: the old row is terminated with reason Replaced and the new row runs
// from now to the old period's end, keeping the renewal day.
type ChangeSubscriptionPaymentPriceFlow struct {
	Current *subscription.Subscription
	// OutstandingIssues are the unresolved payment issues on the current
	// subscription's integration ids. Any entry fails the flow before a
	// mutation is produced.
	OutstandingIssues []*paymentissue.PaymentIssue
	// OldDetails is the current price resolved, for flow-category
	// comparison.
	OldDetails      *plan.PriceDetails
	NewDetails      *plan.PriceDetails
	EmployerProduct *employer.EmployerProduct
	PromoCode       *promocode.PromoCodeCoupon
	// Entitlements are the active entitlements on the current
	// subscription, expired and recreated against the replacement.
	Entitlements []*entitlement.Entitlement
	Patient      *patient.Patient
	Reason       string
	Now          time.Time
	Base         types.BaseModel
}

type ChangeSubscriptionPaymentPriceResult struct {
	OldSubscription *subscription.Subscription
	NewSubscription *subscription.Subscription
	// NeedsEntitlementSubstitution is set when the payment flow category
	// changed; entitlements are then substituted by a dedicated follow-on
	// command instead of being carried over here.
	NeedsEntitlementSubstitution bool
	Actions                      []Action
}

func (f ChangeSubscriptionPaymentPriceFlow) Execute() (*ChangeSubscriptionPaymentPriceResult, error) {
	for _, issue := range f.OutstandingIssues {
		if issue.IsOutstanding() {
			return nil, ierr.NewErrorf("subscription has an outstanding payment issue on %s", issue.ExternalID).
				WithHint("Resolve the outstanding payment before changing the plan").
				WithReportableDetails(map[string]interface{}{
					"subscription_id":  f.Current.ID,
					"payment_issue_id": issue.ID,
					"external_id":      issue.ExternalID,
				}).
				Mark(ierr.ErrInvalidOperation)
		}
	}
	if err := f.OldDetails.Validate(); err != nil {
		return nil, err
	}

	// A pending scheduled cancellation survives the price change; only the
	// old row's copy is cleared by the cancel below.
	var pendingReq *subscription.CancellationRequest
	if f.Current.CancellationRequest != nil {
		req := *f.Current.CancellationRequest
		pendingReq = &req
	}

	cancelRes, err := CancelSubscriptionFlow{
		Subscription: f.Current,
		ReasonType:   types.CancellationReasonReplaced,
		Reason:       f.Reason,
		Now:          f.Now,
	}.Execute()
	if err != nil {
		return nil, err
	}

	renewRes, err := RenewSubscriptionFlow{
		Current:         f.Current,
		Patient:         f.Patient,
		PriceDetails:    f.NewDetails,
		EmployerProduct: f.EmployerProduct,
		PromoCode:       f.PromoCode,
		Now:             f.Now,
		StartOverride:   &f.Now,
		EndOverride:     &f.Current.EndDate,
		Base:            f.Base,
	}.Execute()
	if err != nil {
		return nil, err
	}
	renewRes.Subscription.CancellationRequest = pendingReq

	actions := append(cancelRes.Actions, renewRes.Actions...)

	categoryChanged := f.OldDetails.Plan.PaymentFlowCategory != f.NewDetails.Plan.PaymentFlowCategory
	for _, e := range f.Entitlements {
		e.ExpiresAt = &f.Now
		e.UpdatedAt = f.Now
		actions = append(actions, UpdateEntitlement{Entitlement: e})
		if !categoryChanged {
			actions = append(actions, CreateEntitlement{
				Entitlement: e.CloneFor(renewRes.Subscription.ID, f.Base),
			})
		}
	}

	return &ChangeSubscriptionPaymentPriceResult{
		OldSubscription:              f.Current,
		NewSubscription:              renewRes.Subscription,
		NeedsEntitlementSubstitution: categoryChanged,
		Actions:                      actions,
	}, nil
}
