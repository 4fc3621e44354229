package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/types"
)

func TestRenewSubscriptionFlow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	now := end

	t.Run("new period starts exactly where the old one ends", func(t *testing.T) {
		current := testSubscription(start, end)
		result, err := RenewSubscriptionFlow{
			Current:      current,
			Patient:      testPatient(),
			PriceDetails: testPriceDetails(1, "199", "99"),
			Vendor:       types.PaymentVendorOpal,
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)

		renewed := result.Subscription
		assert.Equal(t, current.EndDate, renewed.StartDate, "no coverage gap and no overlap")
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), renewed.EndDate)
		assert.NotEqual(t, current.ID, renewed.ID)
		assert.True(t, renewed.StartupFee.IsZero(), "renewals never charge a startup fee")
		assert.Equal(t, current.PaymentStrategy, renewed.PaymentStrategy)
	})

	t.Run("terminal external status blocks renewal", func(t *testing.T) {
		result, err := RenewSubscriptionFlow{
			Current: testSubscription(start, end),
			External: &billing.SubscriptionSnapshot{
				ExternalID: "ext_sub_001",
				Status:     billing.ExternalStatusCanceled,
			},
			Patient:      testPatient(),
			PriceDetails: testPriceDetails(1, "199", "0"),
			Vendor:       types.PaymentVendorOpal,
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.Error(t, err)
		assert.True(t, ierr.IsInvalidOperation(err))
		assert.Nil(t, result)
	})

	t.Run("active external status does not block", func(t *testing.T) {
		_, err := RenewSubscriptionFlow{
			Current: testSubscription(start, end),
			External: &billing.SubscriptionSnapshot{
				ExternalID: "ext_sub_001",
				Status:     billing.ExternalStatusPastDue,
			},
			Patient:      testPatient(),
			PriceDetails: testPriceDetails(1, "199", "0"),
			Vendor:       types.PaymentVendorOpal,
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err, "past_due is a dunning state, not a termination")
	})

	t.Run("pending cancellation request carries into the new period", func(t *testing.T) {
		current := testSubscription(start, end)
		current.CancellationRequest = &subscription.CancellationRequest{
			ReasonType:    types.CancellationReasonPatientRequested,
			Reason:        "moving away",
			EffectiveDate: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
		}

		result, err := RenewSubscriptionFlow{
			Current:      current,
			Patient:      testPatient(),
			PriceDetails: testPriceDetails(1, "199", "0"),
			Vendor:       types.PaymentVendorOpal,
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)
		require.NotNil(t, result.Subscription.CancellationRequest)
		assert.Equal(t, current.CancellationRequest.EffectiveDate, result.Subscription.CancellationRequest.EffectiveDate)
	})

	t.Run("overrides re-anchor the period", func(t *testing.T) {
		overrideStart := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
		overrideEnd := end
		result, err := RenewSubscriptionFlow{
			Current:       testSubscription(start, end),
			Patient:       testPatient(),
			PriceDetails:  testPriceDetails(1, "249", "0"),
			Vendor:        types.PaymentVendorOpal,
			Now:           overrideStart,
			StartOverride: &overrideStart,
			EndOverride:   &overrideEnd,
			Base:          testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.Equal(t, overrideStart, result.Subscription.StartDate)
		assert.Equal(t, overrideEnd, result.Subscription.EndDate)
	})
}
