package flow

import (
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/wellpath/wellpath/internal/domain/employer"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/promocode"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	"github.com/wellpath/wellpath/internal/types"
)

// Shared fixtures for flow tests.

func testBase() types.BaseModel {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	return types.BaseModel{
		PracticeID: "practice_test",
		Status:     types.StatusPublished,
		CreatedAt:  now,
		UpdatedAt:  now,
		CreatedBy:  types.DefaultUserID,
		UpdatedBy:  types.DefaultUserID,
	}
}

func testPatient() *patient.Patient {
	return &patient.Patient{
		ID:        "pat_test_1",
		Name:      "Jordan Doe",
		Email:     "jordan@example.com",
		TimeZone:  "America/New_York",
		BaseModel: testBase(),
	}
}

func testPriceDetails(months int, amount, startupFee string) *plan.PriceDetails {
	return &plan.PriceDetails{
		Plan: &plan.PaymentPlan{
			ID:                  "plan_test_1",
			Name:                "Primary Care Membership",
			PaymentFlowCategory: types.PaymentFlowStandard,
			BaseModel:           testBase(),
		},
		Period: &plan.PaymentPeriod{
			ID:                     "perd_test_1",
			PlanID:                 "plan_test_1",
			PeriodInMonths:         months,
			DefaultPaymentStrategy: types.PaymentStrategyFullPayment,
			BaseModel:              testBase(),
		},
		Price: &plan.PaymentPrice{
			ID:         "price_test_1",
			PeriodID:   "perd_test_1",
			PlanID:     "plan_test_1",
			Amount:     decimal.RequireFromString(amount),
			StartupFee: decimal.RequireFromString(startupFee),
			Currency:   "USD",
			BaseModel:  testBase(),
		},
	}
}

func testPercentPromo(percent string) *promocode.PromoCodeCoupon {
	return &promocode.PromoCodeCoupon{
		ID:              "promo_test_1",
		Code:            "WELCOME10",
		DiscountPercent: lo.ToPtr(decimal.RequireFromString(percent)),
		BaseModel:       testBase(),
	}
}

func testFixedPromo(amount string) *promocode.PromoCodeCoupon {
	return &promocode.PromoCodeCoupon{
		ID:             "promo_test_2",
		Code:           "FLAT25",
		DiscountAmount: lo.ToPtr(decimal.RequireFromString(amount)),
		BaseModel:      testBase(),
	}
}

func testEmployerProduct(subsidy string) *employer.EmployerProduct {
	return &employer.EmployerProduct{
		ID:                  "empl_test_1",
		EmployerName:        "Acme Corp",
		SubsidyAmount:       decimal.RequireFromString(subsidy),
		PaymentFlowCategory: types.PaymentFlowEmployerSubsidized,
		BaseModel:           testBase(),
	}
}

func testSubscription(start, end time.Time) *subscription.Subscription {
	return &subscription.Subscription{
		ID:              "subs_test_1",
		PatientID:       "pat_test_1",
		StartDate:       start,
		EndDate:         end,
		PaymentStrategy: types.PaymentStrategyFullPayment,
		PaymentPriceID:  "price_test_1",
		Price:           decimal.RequireFromString("199"),
		StartupFee:      decimal.Zero,
		Currency:        "USD",
		BaseModel:       testBase(),
	}
}
