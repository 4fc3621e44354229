package subscription

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// Subscription represents one membership period for a patient. A plan or
// price change creates a new row and terminates the old one; rows are never
// edited in place beyond administrative fields, so billing history is
// preserved.
type Subscription struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`

	// Period. EndDate is exclusive: the subscription covers
	// [StartDate, EndDate).
	StartDate       time.Time             `json:"start_date"`
	EndDate         time.Time             `json:"end_date"`
	PaymentStrategy types.PaymentStrategy `json:"payment_strategy"`

	// Pricing
	PaymentPriceID    string          `json:"payment_price_id"`
	PromoCodeCouponID *string         `json:"promo_code_coupon_id,omitempty"`
	EmployerProductID *string         `json:"employer_product_id,omitempty"`
	Price             decimal.Decimal `json:"price"`
	StartupFee        decimal.Decimal `json:"startup_fee"`
	Currency          string          `json:"currency"`

	// Cancellation. CancellationRequest schedules a future cancellation;
	// CanceledAt is the terminal marker.
	CancellationRequest *CancellationRequest          `json:"cancellation_request,omitempty"`
	CanceledAt          *time.Time                    `json:"canceled_at,omitempty"`
	CanceledReasonType  *types.CancellationReasonType `json:"canceled_reason_type,omitempty"`
	CanceledReason      string                        `json:"canceled_reason,omitempty"`

	types.BaseModel
}

// CancellationRequest records a cancellation scheduled for a future date,
// executed later by the cancellation job.
type CancellationRequest struct {
	ReasonType    types.CancellationReasonType `json:"reason_type"`
	Reason        string                       `json:"reason"`
	EffectiveDate time.Time                    `json:"effective_date"`
}

// SubscriptionIntegration links a subscription to its identity in an
// external billing provider. Recorded once billing succeeds.
type SubscriptionIntegration struct {
	ID             string              `json:"id"`
	SubscriptionID string              `json:"subscription_id"`
	Vendor         types.PaymentVendor `json:"vendor"`
	ExternalID     string              `json:"external_id"`
	types.BaseModel
}

// RenewalStrategy captures which price, coupon and employer product the
// next renewal should use, independent of the current period's price. It
// backs "change takes effect at renewal" semantics.
type RenewalStrategy struct {
	ID                string  `json:"id"`
	SubscriptionID    string  `json:"subscription_id"`
	PaymentPriceID    string  `json:"payment_price_id"`
	PromoCodeCouponID *string `json:"promo_code_coupon_id,omitempty"`
	EmployerProductID *string `json:"employer_product_id,omitempty"`
	types.BaseModel
}

// IsCanceled reports whether the subscription is terminally canceled.
func (s *Subscription) IsCanceled() bool {
	return s.CanceledAt != nil
}

// IsActive reports whether the subscription is active at the given time:
// not canceled and start <= now < end.
func (s *Subscription) IsActive(now time.Time) bool {
	return !s.IsCanceled() && !now.Before(s.StartDate) && now.Before(s.EndDate)
}

// Covers reports whether the given date falls inside the subscription
// period, ignoring cancellation state.
func (s *Subscription) Covers(date time.Time) bool {
	return !date.Before(s.StartDate) && date.Before(s.EndDate)
}

func (s *Subscription) Validate() error {
	if s.PatientID == "" {
		return ierr.NewError("subscription requires a patient").Mark(ierr.ErrValidation)
	}
	if s.PaymentPriceID == "" {
		return ierr.NewError("subscription requires a payment price").Mark(ierr.ErrValidation)
	}
	if !s.EndDate.After(s.StartDate) {
		return ierr.NewError("subscription end date must be after start date").
			WithReportableDetails(map[string]interface{}{
				"start_date": s.StartDate,
				"end_date":   s.EndDate,
			}).
			Mark(ierr.ErrValidation)
	}
	if err := s.PaymentStrategy.Validate(); err != nil {
		return err
	}
	if s.CanceledAt != nil && s.CanceledAt.Before(s.StartDate) {
		return ierr.NewError("canceled_at cannot precede the subscription start").
			Mark(ierr.ErrValidation)
	}
	return nil
}

func (r *RenewalStrategy) Validate() error {
	if r.SubscriptionID == "" {
		return ierr.NewError("renewal strategy requires a subscription").Mark(ierr.ErrValidation)
	}
	if r.PaymentPriceID == "" {
		return ierr.NewError("renewal strategy requires a payment price").Mark(ierr.ErrValidation)
	}
	return nil
}
