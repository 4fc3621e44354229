package plan

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// PaymentPlan is the top of the pricing catalog hierarchy:
// PaymentPlan -> PaymentPeriod -> PaymentPrice.
type PaymentPlan struct {
	ID                  string                    `json:"id"`
	Name                string                    `json:"name"`
	PaymentFlowCategory types.PaymentFlowCategory `json:"payment_flow_category"`
	// StartupFeeExempt marks plans that never charge a startup fee even
	// when the caller requests one.
	StartupFeeExempt bool `json:"startup_fee_exempt"`
	types.BaseModel
}

// PaymentPeriod groups prices that share a billing cadence under a plan.
type PaymentPeriod struct {
	ID             string `json:"id"`
	PlanID         string `json:"plan_id"`
	PeriodInMonths int    `json:"period_in_months"`
	// DefaultPaymentStrategy is applied when the caller does not choose
	// full payment vs installments explicitly.
	DefaultPaymentStrategy types.PaymentStrategy `json:"default_payment_strategy"`
	types.BaseModel
}

// PaymentPrice is one purchasable price point under a period.
type PaymentPrice struct {
	ID         string          `json:"id"`
	PeriodID   string          `json:"period_id"`
	PlanID     string          `json:"plan_id"`
	Amount     decimal.Decimal `json:"amount"`
	StartupFee decimal.Decimal `json:"startup_fee"`
	Currency   string          `json:"currency"`
	// LegacyCouponCode is the old-style promo embedded directly on the
	// price, translated to a new-style coupon at renewal when possible.
	LegacyCouponCode string     `json:"legacy_coupon_code,omitempty"`
	ActiveFrom       *time.Time `json:"active_from,omitempty"`
	ActiveTo         *time.Time `json:"active_to,omitempty"`
	types.BaseModel
}

// IsActive reports whether the price is purchasable at the given time.
func (p *PaymentPrice) IsActive(now time.Time) bool {
	if p.Status != types.StatusPublished {
		return false
	}
	if p.ActiveFrom != nil && now.Before(*p.ActiveFrom) {
		return false
	}
	if p.ActiveTo != nil && !now.Before(*p.ActiveTo) {
		return false
	}
	return true
}

// PriceDetails is the resolved price hierarchy flows operate on.
type PriceDetails struct {
	Price  *PaymentPrice
	Period *PaymentPeriod
	Plan   *PaymentPlan
}

func (d *PriceDetails) Validate() error {
	if d == nil || d.Price == nil || d.Period == nil || d.Plan == nil {
		return ierr.NewError("incomplete price details").
			WithHint("Price, period and plan must all be resolved").
			Mark(ierr.ErrValidation)
	}
	if d.Period.PeriodInMonths <= 0 {
		return ierr.NewError("payment period length must be positive").
			WithReportableDetails(map[string]interface{}{
				"period_id": d.Period.ID,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
