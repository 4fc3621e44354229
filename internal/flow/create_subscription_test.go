package flow

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

func TestCreateSubscriptionFlow(t *testing.T) {
	now := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	t.Run("one month period", func(t *testing.T) {
		result, err := CreateSubscriptionFlow{
			Patient:      testPatient(),
			PriceDetails: testPriceDetails(1, "199", "99"),
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)

		sub := result.Subscription
		assert.Equal(t, now, sub.StartDate)
		assert.Equal(t, time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC), sub.EndDate)
		assert.True(t, sub.Price.Equal(decimal.RequireFromString("199")))
		assert.True(t, sub.StartupFee.IsZero(), "startup fee only charged when requested")
		assert.Equal(t, types.PaymentStrategyFullPayment, sub.PaymentStrategy)
		require.Len(t, result.Actions, 1)
		assert.IsType(t, CreateSubscription{}, result.Actions[0])
	})

	t.Run("startup fee charged when requested", func(t *testing.T) {
		result, err := CreateSubscriptionFlow{
			Patient:          testPatient(),
			PriceDetails:     testPriceDetails(1, "199", "99"),
			ChargeStartupFee: true,
			Now:              now,
			Base:             testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.True(t, result.Subscription.StartupFee.Equal(decimal.RequireFromString("99")))
	})

	t.Run("startup fee exempt plan never charges it", func(t *testing.T) {
		details := testPriceDetails(1, "199", "99")
		details.Plan.StartupFeeExempt = true

		result, err := CreateSubscriptionFlow{
			Patient:          testPatient(),
			PriceDetails:     details,
			ChargeStartupFee: true,
			Now:              now,
			Base:             testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.True(t, result.Subscription.StartupFee.IsZero())
	})

	t.Run("percent promo discounts the price", func(t *testing.T) {
		result, err := CreateSubscriptionFlow{
			Patient:      testPatient(),
			PriceDetails: testPriceDetails(1, "200", "0"),
			PromoCode:    testPercentPromo("10"),
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.True(t, result.Subscription.Price.Equal(decimal.RequireFromString("180")))
		require.NotNil(t, result.Subscription.PromoCodeCouponID)
	})

	t.Run("employer subsidy stacks with promo and floors at zero", func(t *testing.T) {
		result, err := CreateSubscriptionFlow{
			Patient:         testPatient(),
			PriceDetails:    testPriceDetails(1, "100", "0"),
			PromoCode:       testFixedPromo("25"),
			EmployerProduct: testEmployerProduct("200"),
			Now:             now,
			Base:            testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.True(t, result.Subscription.Price.IsZero(), "price never goes negative")
	})

	t.Run("incompatible promo rejects before any action", func(t *testing.T) {
		promo := testPercentPromo("10")
		promo.ApplicablePlanIDs = []string{"plan_other"}

		result, err := CreateSubscriptionFlow{
			Patient:      testPatient(),
			PriceDetails: testPriceDetails(1, "199", "0"),
			PromoCode:    promo,
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.Error(t, err)
		assert.True(t, ierr.IsValidation(err))
		assert.Nil(t, result)
	})

	t.Run("future start date anchors the period", func(t *testing.T) {
		start := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		result, err := CreateSubscriptionFlow{
			Patient:      testPatient(),
			PriceDetails: testPriceDetails(12, "1999", "0"),
			StartDate:    &start,
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.Equal(t, start, result.Subscription.StartDate)
		assert.Equal(t, start.AddDate(1, 0, 0), result.Subscription.EndDate)
	})
}
