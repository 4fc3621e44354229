package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpath/wellpath/internal/domain/subscription"
	"github.com/wellpath/wellpath/internal/types"
)

func TestMarkSubscriptionAsPaidFlow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sub := testSubscription(now, now.AddDate(0, 1, 0))

	t.Run("creates a link", func(t *testing.T) {
		result, err := MarkSubscriptionAsPaidFlow{
			Subscription: sub,
			Vendor:       types.PaymentVendorOpal,
			ExternalID:   "ext_sub_001",
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.False(t, result.AlreadyLinked)
		require.Len(t, result.Actions, 1)
		assert.Equal(t, "ext_sub_001", result.Link.ExternalID)
	})

	t.Run("existing link short-circuits", func(t *testing.T) {
		existing := &subscription.SubscriptionIntegration{
			ID:             "subi_test_1",
			SubscriptionID: sub.ID,
			Vendor:         types.PaymentVendorOpal,
			ExternalID:     "ext_sub_001",
			BaseModel:      testBase(),
		}
		result, err := MarkSubscriptionAsPaidFlow{
			Subscription:  sub,
			ExistingLinks: []*subscription.SubscriptionIntegration{existing},
			Vendor:        types.PaymentVendorOpal,
			ExternalID:    "ext_sub_001",
			Now:           now,
			Base:          testBase(),
		}.Execute()
		require.NoError(t, err)
		assert.True(t, result.AlreadyLinked)
		assert.Empty(t, result.Actions, "replaying the link produces no writes")
		assert.Equal(t, existing.ID, result.Link.ID)
	})

	t.Run("missing external id rejects", func(t *testing.T) {
		_, err := MarkSubscriptionAsPaidFlow{
			Subscription: sub,
			Vendor:       types.PaymentVendorOpal,
			Now:          now,
			Base:         testBase(),
		}.Execute()
		require.Error(t, err)
	})
}
