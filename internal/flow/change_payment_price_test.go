package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpath/wellpath/internal/domain/entitlement"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

func TestChangeSubscriptionPaymentPriceFlow(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("replaces the row and keeps the period end", func(t *testing.T) {
		current := testSubscription(start, end)
		oldDetails := testPriceDetails(12, "1999", "0")
		details := testPriceDetails(12, "2499", "0")
		details.Price.ID = "price_test_2"

		result, err := ChangeSubscriptionPaymentPriceFlow{
			Current:    current,
			OldDetails: oldDetails,
			NewDetails: details,
			Patient:    testPatient(),
			Now:        now,
			Base:       testBase(),
		}.Execute()
		require.NoError(t, err)

		assert.True(t, result.OldSubscription.IsCanceled())
		assert.Equal(t, types.CancellationReasonReplaced, *result.OldSubscription.CanceledReasonType)
		assert.Equal(t, now, result.NewSubscription.StartDate)
		assert.Equal(t, end, result.NewSubscription.EndDate, "period end is preserved")
		assert.Equal(t, "price_test_2", result.NewSubscription.PaymentPriceID)
		assert.False(t, result.NeedsEntitlementSubstitution)
	})

	t.Run("outstanding payment issue blocks the change", func(t *testing.T) {
		issue := paymentissue.New(testBase(), types.PaymentVendorOpal, "ext_sub_001", now.Add(-time.Hour))

		result, err := ChangeSubscriptionPaymentPriceFlow{
			Current:           testSubscription(start, end),
			OutstandingIssues: []*paymentissue.PaymentIssue{issue},
			OldDetails:        testPriceDetails(12, "1999", "0"),
			NewDetails:        testPriceDetails(12, "2499", "0"),
			Patient:           testPatient(),
			Now:               now,
			Base:              testBase(),
		}.Execute()
		require.Error(t, err)
		assert.True(t, ierr.IsInvalidOperation(err))
		assert.Nil(t, result)
	})

	t.Run("pending scheduled cancellation survives the change", func(t *testing.T) {
		current := testSubscription(start, end)
		current.CancellationRequest = &subscription.CancellationRequest{
			ReasonType:    types.CancellationReasonPatientRequested,
			EffectiveDate: time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC),
		}

		result, err := ChangeSubscriptionPaymentPriceFlow{
			Current:    current,
			OldDetails: testPriceDetails(12, "1999", "0"),
			NewDetails: testPriceDetails(12, "2499", "0"),
			Patient:    testPatient(),
			Now:        now,
			Base:       testBase(),
		}.Execute()
		require.NoError(t, err)

		assert.Nil(t, result.OldSubscription.CancellationRequest)
		require.NotNil(t, result.NewSubscription.CancellationRequest)
		assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), result.NewSubscription.CancellationRequest.EffectiveDate)
	})

	t.Run("entitlements are expired and recreated on the new row", func(t *testing.T) {
		ent := &entitlement.Entitlement{
			ID:                  "enti_test_1",
			SubscriptionID:      "subs_test_1",
			ProductCode:         "annual_physical",
			PaymentFlowCategory: types.PaymentFlowStandard,
			BaseModel:           testBase(),
		}

		result, err := ChangeSubscriptionPaymentPriceFlow{
			Current:      testSubscription(start, end),
			OldDetails:   testPriceDetails(12, "1999", "0"),
			NewDetails:   testPriceDetails(12, "2499", "0"),
			Entitlements: []*entitlement.Entitlement{ent},
			Patient:      testPatient(),
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)

		require.NotNil(t, ent.ExpiresAt)
		var created *entitlement.Entitlement
		for _, action := range result.Actions {
			if a, ok := action.(CreateEntitlement); ok {
				created = a.Entitlement
			}
		}
		require.NotNil(t, created, "an equivalent entitlement is created on the new subscription")
		assert.Equal(t, result.NewSubscription.ID, created.SubscriptionID)
		assert.Equal(t, "annual_physical", created.ProductCode)
	})

	t.Run("funding category change defers entitlement substitution", func(t *testing.T) {
		oldDetails := testPriceDetails(12, "1999", "0")
		details := testPriceDetails(12, "2499", "0")
		details.Plan.PaymentFlowCategory = types.PaymentFlowEmployerSubsidized

		ent := &entitlement.Entitlement{
			ID:                  "enti_test_1",
			SubscriptionID:      "subs_test_1",
			ProductCode:         "annual_physical",
			PaymentFlowCategory: types.PaymentFlowStandard,
			BaseModel:           testBase(),
		}

		result, err := ChangeSubscriptionPaymentPriceFlow{
			Current:      testSubscription(start, end),
			OldDetails:   oldDetails,
			NewDetails:   details,
			Entitlements: []*entitlement.Entitlement{ent},
			Patient:      testPatient(),
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)

		assert.True(t, result.NeedsEntitlementSubstitution)
		for _, action := range result.Actions {
			_, isCreate := action.(CreateEntitlement)
			assert.False(t, isCreate, "no entitlement is carried across a funding category change")
		}
	})
}
