package flow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wellpath/wellpath/internal/domain/employer"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/promocode"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// CreateSubscriptionFlow produces a new subscription for a patient.
type CreateSubscriptionFlow struct {
	Patient          *patient.Patient
	PriceDetails     *plan.PriceDetails
	EmployerProduct  *employer.EmployerProduct
	PromoCode        *promocode.PromoCodeCoupon
	PaymentStrategy  types.PaymentStrategy
	ChargeStartupFee bool
	// StartDate overrides the default of Now.
	StartDate *time.Time
	Now       time.Time
	Base      types.BaseModel
}

type CreateSubscriptionResult struct {
	Subscription *subscription.Subscription
	Actions      []Action
}

func (f CreateSubscriptionFlow) Execute() (*CreateSubscriptionResult, error) {
	if f.Patient == nil {
		return nil, ierr.NewError("patient is required").Mark(ierr.ErrValidation)
	}
	if err := f.PriceDetails.Validate(); err != nil {
		return nil, err
	}

	// Promo compatibility is checked before any action is produced.
	if f.PromoCode != nil {
		if err := f.PromoCode.CompatibleWith(f.PriceDetails, f.Now); err != nil {
			return nil, err
		}
	}

	start := f.Now
	if f.StartDate != nil {
		start = *f.StartDate
	}
	end := start.AddDate(0, f.PriceDetails.Period.PeriodInMonths, 0)

	strategy := f.PaymentStrategy
	if strategy == "" {
		strategy = f.PriceDetails.Period.DefaultPaymentStrategy
	}

	sub := &subscription.Subscription{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		PatientID:       f.Patient.ID,
		StartDate:       start,
		EndDate:         end,
		PaymentStrategy: strategy,
		PaymentPriceID:  f.PriceDetails.Price.ID,
		Price:           computePrice(f.PriceDetails.Price, f.PromoCode, f.EmployerProduct),
		StartupFee:      computeStartupFee(f.PriceDetails, f.ChargeStartupFee),
		Currency:        f.PriceDetails.Price.Currency,
		BaseModel:       f.Base,
	}
	if f.PromoCode != nil {
		sub.PromoCodeCouponID = &f.PromoCode.ID
	}
	if f.EmployerProduct != nil {
		sub.EmployerProductID = &f.EmployerProduct.ID
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	return &CreateSubscriptionResult{
		Subscription: sub,
		Actions:      []Action{CreateSubscription{Subscription: sub}},
	}, nil
}

// computePrice resolves the patient-paid per-period price: catalog amount
// minus promo discount minus employer subsidy, floored at zero.
func computePrice(price *plan.PaymentPrice, promo *promocode.PromoCodeCoupon, emp *employer.EmployerProduct) decimal.Decimal {
	amount := price.Amount
	if promo != nil {
		amount = promo.ApplyTo(amount)
	}
	if emp != nil {
		amount = amount.Sub(emp.SubsidyAmount)
	}
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

func computeStartupFee(details *plan.PriceDetails, charge bool) decimal.Decimal {
	if !charge || details.Plan.StartupFeeExempt {
		return decimal.Zero
	}
	return details.Price.StartupFee
}
