package flow

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpath/wellpath/internal/domain/entitlement"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

func TestReplaceSubscriptionFlow(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	t.Run("cancels the old row and creates a fresh period", func(t *testing.T) {
		current := testSubscription(now.AddDate(0, -2, 0), now.AddDate(0, 10, 0))

		result, err := ReplaceSubscriptionFlow{
			Current:    current,
			Patient:    testPatient(),
			NewDetails: testPriceDetails(1, "299", "99"),
			Reason:     "plan upgrade",
			Now:        now,
			Base:       testBase(),
		}.Execute()
		require.NoError(t, err)

		old := result.OldSubscription
		require.NotNil(t, old.CanceledAt)
		assert.Equal(t, types.CancellationReasonReplaced, *old.CanceledReasonType)

		fresh := result.NewSubscription
		assert.NotEqual(t, old.ID, fresh.ID)
		assert.Equal(t, now, fresh.StartDate)
		assert.Equal(t, now.AddDate(0, 1, 0), fresh.EndDate)
		assert.True(t, fresh.Price.Equal(decimal.RequireFromString("299")))
	})

	t.Run("startup fee applies when requested", func(t *testing.T) {
		current := testSubscription(now.AddDate(0, -2, 0), now.AddDate(0, 10, 0))

		result, err := ReplaceSubscriptionFlow{
			Current:          current,
			Patient:          testPatient(),
			NewDetails:       testPriceDetails(1, "299", "99"),
			ChargeStartupFee: true,
			Now:              now,
			Base:             testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.True(t, result.NewSubscription.StartupFee.Equal(decimal.RequireFromString("99")))
	})

	t.Run("resolves outstanding issues with the old row", func(t *testing.T) {
		current := testSubscription(now.AddDate(0, -2, 0), now.AddDate(0, 10, 0))
		issue := paymentissue.New(testBase(), types.PaymentVendorOpal, "ext_sub_1", now.Add(-time.Hour))

		result, err := ReplaceSubscriptionFlow{
			Current:           current,
			OutstandingIssues: []*paymentissue.PaymentIssue{issue},
			Patient:           testPatient(),
			NewDetails:        testPriceDetails(1, "299", "0"),
			Now:               now,
			Base:              testBase(),
		}.Execute()
		require.NoError(t, err)

		assert.Equal(t, types.PaymentIssueStatusResolved, issue.IssueStatus)
		resolved := 0
		for _, a := range result.Actions {
			if _, ok := a.(UpdatePaymentIssue); ok {
				resolved++
			}
		}
		assert.Equal(t, 1, resolved)
	})

	t.Run("carries entitlements to the new subscription", func(t *testing.T) {
		current := testSubscription(now.AddDate(0, -2, 0), now.AddDate(0, 10, 0))
		ent := &entitlement.Entitlement{
			ID:                  "enti_test_1",
			SubscriptionID:      current.ID,
			ProductCode:         "lab_panel_basic",
			PaymentFlowCategory: types.PaymentFlowStandard,
			BaseModel:           testBase(),
		}

		result, err := ReplaceSubscriptionFlow{
			Current:      current,
			Patient:      testPatient(),
			NewDetails:   testPriceDetails(1, "299", "0"),
			Entitlements: []*entitlement.Entitlement{ent},
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)

		assert.True(t, ent.IsExpired(now))
		var created *entitlement.Entitlement
		for _, a := range result.Actions {
			if c, ok := a.(CreateEntitlement); ok {
				created = c.Entitlement
			}
		}
		require.NotNil(t, created, "a replacement entitlement is created")
		assert.Equal(t, result.NewSubscription.ID, created.SubscriptionID)
		assert.Equal(t, "lab_panel_basic", created.ProductCode)
	})

	t.Run("assigns the founder sponsor", func(t *testing.T) {
		current := testSubscription(now.AddDate(0, -2, 0), now.AddDate(0, 10, 0))
		pat := testPatient()

		result, err := ReplaceSubscriptionFlow{
			Current:          current,
			Patient:          pat,
			NewDetails:       testPriceDetails(1, "299", "0"),
			FounderSponsorID: lo.ToPtr("fndr_test_1"),
			Now:              now,
			Base:             testBase(),
		}.Execute()
		require.NoError(t, err)

		require.NotNil(t, pat.FounderSponsorID)
		assert.Equal(t, "fndr_test_1", *pat.FounderSponsorID)
		updated := false
		for _, a := range result.Actions {
			if _, ok := a.(UpdatePatient); ok {
				updated = true
			}
		}
		assert.True(t, updated)
	})

	t.Run("rejects an already canceled subscription", func(t *testing.T) {
		current := testSubscription(now.AddDate(0, -2, 0), now.AddDate(0, 10, 0))
		current.CanceledAt = lo.ToPtr(now.Add(-time.Hour))
		current.CanceledReasonType = lo.ToPtr(types.CancellationReasonPatientRequested)

		_, err := ReplaceSubscriptionFlow{
			Current:    current,
			Patient:    testPatient(),
			NewDetails: testPriceDetails(1, "299", "0"),
			Now:        now,
			Base:       testBase(),
		}.Execute()
		require.Error(t, err)
		assert.True(t, ierr.IsInvalidOperation(err))
	})
}
