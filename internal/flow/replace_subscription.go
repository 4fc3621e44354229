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

// ReplaceSubscriptionFlow upgrades a patient from one plan to a different
// plan. Unlike a price change, the new period starts fresh from now, a
// startup fee may apply, and the patient may be assigned a founder
// sponsor.
type ReplaceSubscriptionFlow struct {
	Current           *subscription.Subscription
	OutstandingIssues []*paymentissue.PaymentIssue
	Patient           *patient.Patient
	NewDetails        *plan.PriceDetails
	EmployerProduct   *employer.EmployerProduct
	PromoCode         *promocode.PromoCodeCoupon
	Entitlements      []*entitlement.Entitlement
	ChargeStartupFee  bool
	FounderSponsorID  *string
	Reason            string
	Now               time.Time
	Base              types.BaseModel
}

type ReplaceSubscriptionResult struct {
	OldSubscription *subscription.Subscription
	NewSubscription *subscription.Subscription
	Actions         []Action
}

func (f ReplaceSubscriptionFlow) Execute() (*ReplaceSubscriptionResult, error) {
	if f.Patient == nil {
		return nil, ierr.NewError("patient is required").Mark(ierr.ErrValidation)
	}

	cancelRes, err := CancelSubscriptionFlow{
		Subscription:      f.Current,
		OutstandingIssues: f.OutstandingIssues,
		ReasonType:        types.CancellationReasonReplaced,
		Reason:            f.Reason,
		Now:               f.Now,
	}.Execute()
	if err != nil {
		return nil, err
	}

	createRes, err := CreateSubscriptionFlow{
		Patient:          f.Patient,
		PriceDetails:     f.NewDetails,
		EmployerProduct:  f.EmployerProduct,
		PromoCode:        f.PromoCode,
		ChargeStartupFee: f.ChargeStartupFee,
		Now:              f.Now,
		Base:             f.Base,
	}.Execute()
	if err != nil {
		return nil, err
	}

	actions := append(cancelRes.Actions, createRes.Actions...)

	for _, e := range f.Entitlements {
		e.ExpiresAt = &f.Now
		e.UpdatedAt = f.Now
		actions = append(actions, UpdateEntitlement{Entitlement: e})
		actions = append(actions, CreateEntitlement{
			Entitlement: e.CloneFor(createRes.Subscription.ID, f.Base),
		})
	}

	if f.FounderSponsorID != nil {
		f.Patient.FounderSponsorID = f.FounderSponsorID
		f.Patient.UpdatedAt = f.Now
		actions = append(actions, UpdatePatient{Patient: f.Patient})
	}

	return &ReplaceSubscriptionResult{
		OldSubscription: f.Current,
		NewSubscription: createRes.Subscription,
		Actions:         actions,
	}, nil
}
