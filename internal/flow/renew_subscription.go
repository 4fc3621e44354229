package flow

import (
	"time"

	"github.com/wellpath/wellpath/internal/domain/employer"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/promocode"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/types"
)

// RenewSubscriptionFlow produces the next period's subscription. The new
// period starts exactly where the current one ends: no gap, no overlap,
// unless the caller overrides the dates explicitly (price changes do).
//
// The flow is time-zone-agnostic: callers invoke renewal only when the
// patient's local calendar date matches the renewal day.
type RenewSubscriptionFlow struct {
	Current *subscription.Subscription
	// External is the billing provider's view of the current
	// subscription, used to detect drift before producing the next
	// period.
	External        *billing.SubscriptionSnapshot
	Patient         *patient.Patient
	PriceDetails    *plan.PriceDetails
	EmployerProduct *employer.EmployerProduct
	PromoCode       *promocode.PromoCodeCoupon
	Vendor          types.PaymentVendor
	Now             time.Time
	// StartOverride/EndOverride replace the continuity-derived dates.
	StartOverride *time.Time
	EndOverride   *time.Time
	Base          types.BaseModel
}

type RenewSubscriptionResult struct {
	Subscription *subscription.Subscription
	Actions      []Action
}

func (f RenewSubscriptionFlow) Execute() (*RenewSubscriptionResult, error) {
	if f.Current == nil {
		return nil, ierr.NewError("current subscription is required").Mark(ierr.ErrValidation)
	}
	if err := f.PriceDetails.Validate(); err != nil {
		return nil, err
	}
	if f.PromoCode != nil {
		if err := f.PromoCode.CompatibleWith(f.PriceDetails, f.Now); err != nil {
			return nil, err
		}
	}

	// The provider is authoritative about its own terminations. A renewal
	// against a subscription the provider already ended would re-enroll a
	// patient the provider stopped billing.
	if f.External != nil && f.External.Status.IsTerminal() {
		return nil, ierr.NewErrorf("subscription %s is %s in the payment system", f.Current.ID, f.External.Status).
			WithHint("Reconcile the external cancellation before renewing").
			Mark(ierr.ErrInvalidOperation)
	}

	start := f.Current.EndDate
	if f.StartOverride != nil {
		start = *f.StartOverride
	}
	end := start.AddDate(0, f.PriceDetails.Period.PeriodInMonths, 0)
	if f.EndOverride != nil {
		end = *f.EndOverride
	}

	sub := &subscription.Subscription{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		PatientID:       f.Current.PatientID,
		StartDate:       start,
		EndDate:         end,
		PaymentStrategy: f.Current.PaymentStrategy,
		PaymentPriceID:  f.PriceDetails.Price.ID,
		Price:           computePrice(f.PriceDetails.Price, f.PromoCode, f.EmployerProduct),
		// Renewals are never first purchases; no startup fee.
		Currency:  f.PriceDetails.Price.Currency,
		BaseModel: f.Base,
	}
	if f.PromoCode != nil {
		sub.PromoCodeCouponID = &f.PromoCode.ID
	}
	if f.EmployerProduct != nil {
		sub.EmployerProductID = &f.EmployerProduct.ID
	}

	// A patient who already asked to cancel must not be silently
	// re-enrolled: the pending request carries into the new period.
	if f.Current.CancellationRequest != nil {
		req := *f.Current.CancellationRequest
		sub.CancellationRequest = &req
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	return &RenewSubscriptionResult{
		Subscription: sub,
		Actions:      []Action{CreateSubscription{Subscription: sub}},
	}, nil
}
