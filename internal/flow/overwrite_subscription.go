package flow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// SubscriptionOverwrite is the authoritative field set applied by the
// overwrite migration utility.
type SubscriptionOverwrite struct {
	StartDate         time.Time
	EndDate           time.Time
	PaymentStrategy   types.PaymentStrategy
	PaymentPriceID    string
	PromoCodeCouponID *string
	EmployerProductID *string
	Price             decimal.Decimal
	StartupFee        decimal.Decimal
	Currency          string
}

// OverwriteSubscriptionFlow rewrites a subscription's administrative fields
// wholesale. This is a migration utility: it bypasses the replace-not-edit
// rule and must only run from the batch overwrite command.
type OverwriteSubscriptionFlow struct {
	Subscription *subscription.Subscription
	Overwrite    SubscriptionOverwrite
	Now          time.Time
}

type OverwriteSubscriptionResult struct {
	Subscription *subscription.Subscription
	Actions      []Action
}

func (f OverwriteSubscriptionFlow) Execute() (*OverwriteSubscriptionResult, error) {
	if f.Subscription == nil {
		return nil, ierr.NewError("subscription is required").Mark(ierr.ErrValidation)
	}

	sub := f.Subscription
	sub.StartDate = f.Overwrite.StartDate
	sub.EndDate = f.Overwrite.EndDate
	sub.PaymentStrategy = f.Overwrite.PaymentStrategy
	sub.PaymentPriceID = f.Overwrite.PaymentPriceID
	sub.PromoCodeCouponID = f.Overwrite.PromoCodeCouponID
	sub.EmployerProductID = f.Overwrite.EmployerProductID
	sub.Price = f.Overwrite.Price
	sub.StartupFee = f.Overwrite.StartupFee
	if f.Overwrite.Currency != "" {
		sub.Currency = f.Overwrite.Currency
	}
	sub.UpdatedAt = f.Now

	if err := sub.Validate(); err != nil {
		return nil, err
	}

	return &OverwriteSubscriptionResult{
		Subscription: sub,
		Actions:      []Action{UpdateSubscription{Subscription: sub}},
	}, nil
}
