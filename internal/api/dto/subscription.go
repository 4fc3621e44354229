package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
	"github.com/wellpath/wellpath/internal/validator"
)

type CreateSubscriptionRequest struct {
	PatientID         string                `json:"patient_id" validate:"required"`
	PaymentPriceID    string                `json:"payment_price_id" validate:"required"`
	PromoCodeCouponID *string               `json:"promo_code_coupon_id,omitempty"`
	EmployerProductID *string               `json:"employer_product_id,omitempty"`
	PaymentStrategy   types.PaymentStrategy `json:"payment_strategy,omitempty"`
	ChargeStartupFee  bool                  `json:"charge_startup_fee"`
	StartDate         *time.Time            `json:"start_date,omitempty"`
	Vendor            types.PaymentVendor   `json:"vendor" validate:"required"`
}

func (r CreateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Vendor.Validate()
}

type ActivateSubscriptionRequest struct {
	SubscriptionID string              `json:"subscription_id" validate:"required"`
	ActivationDate *time.Time          `json:"activation_date,omitempty"`
	Vendor         types.PaymentVendor `json:"vendor" validate:"required"`
}

func (r ActivateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Vendor.Validate()
}

type CancelSubscriptionRequest struct {
	SubscriptionID string                       `json:"subscription_id" validate:"required"`
	ReasonType     types.CancellationReasonType `json:"reason_type" validate:"required"`
	Reason         string                       `json:"reason,omitempty"`
	// EffectiveDate schedules the cancellation instead of executing it
	// immediately.
	EffectiveDate *time.Time `json:"effective_date,omitempty"`
}

func (r CancelSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.ReasonType.Validate()
}

type ChangeSubscriptionPaymentPriceRequest struct {
	SubscriptionID    string  `json:"subscription_id" validate:"required"`
	NewPaymentPriceID string  `json:"new_payment_price_id" validate:"required"`
	PromoCodeCouponID *string `json:"promo_code_coupon_id,omitempty"`
	EmployerProductID *string `json:"employer_product_id,omitempty"`
	Reason            string  `json:"reason,omitempty"`
}

func (r ChangeSubscriptionPaymentPriceRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type ReplaceSubscriptionRequest struct {
	SubscriptionID    string              `json:"subscription_id" validate:"required"`
	NewPaymentPriceID string              `json:"new_payment_price_id" validate:"required"`
	PromoCodeCouponID *string             `json:"promo_code_coupon_id,omitempty"`
	EmployerProductID *string             `json:"employer_product_id,omitempty"`
	ChargeStartupFee  bool                `json:"charge_startup_fee"`
	FounderSponsorID  *string             `json:"founder_sponsor_id,omitempty"`
	Reason            string              `json:"reason,omitempty"`
	Vendor            types.PaymentVendor `json:"vendor" validate:"required"`
}

func (r ReplaceSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Vendor.Validate()
}

// RenewSubscriptionsRequest renews every subscription of the practice on
// the context whose period ends on TargetDate (in each patient's local
// calendar).
type RenewSubscriptionsRequest struct {
	TargetDate time.Time           `json:"target_date" validate:"required"`
	Vendor     types.PaymentVendor `json:"vendor" validate:"required"`
}

func (r RenewSubscriptionsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	return r.Vendor.Validate()
}

// OverwriteSubscriptionItem is one migration overwrite.
type OverwriteSubscriptionItem struct {
	SubscriptionID    string                `json:"subscription_id" validate:"required"`
	StartDate         time.Time             `json:"start_date" validate:"required"`
	EndDate           time.Time             `json:"end_date" validate:"required"`
	PaymentStrategy   types.PaymentStrategy `json:"payment_strategy" validate:"required"`
	PaymentPriceID    string                `json:"payment_price_id" validate:"required"`
	PromoCodeCouponID *string               `json:"promo_code_coupon_id,omitempty"`
	EmployerProductID *string               `json:"employer_product_id,omitempty"`
	Price             decimal.Decimal       `json:"price"`
	StartupFee        decimal.Decimal       `json:"startup_fee"`
	Currency          string                `json:"currency,omitempty"`
}

type OverwriteSubscriptionsRequest struct {
	Items []OverwriteSubscriptionItem `json:"items" validate:"required,min=1,dive"`
}

func (r OverwriteSubscriptionsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	for _, item := range r.Items {
		if !item.EndDate.After(item.StartDate) {
			return ierr.NewErrorf("overwrite for subscription %s has end date before start date", item.SubscriptionID).
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

type SubscriptionResponse struct {
	*subscription.Subscription
	IntegrationLinks []*subscription.SubscriptionIntegration `json:"integration_links,omitempty"`
}

func NewSubscriptionResponse(sub *subscription.Subscription) *SubscriptionResponse {
	return &SubscriptionResponse{Subscription: sub}
}

// BatchResult reports the outcome of a batch command.
type BatchResult struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}
