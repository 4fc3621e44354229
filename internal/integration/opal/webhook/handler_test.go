package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wellpath/wellpath/internal/config"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/integration/opal"
	"github.com/wellpath/wellpath/internal/logger"
)

// recordingReconciliation records every dispatched event and can be forced
// to fail.
type recordingReconciliation struct {
	paidEvents    []billing.InvoicePaidEvent
	failedEvents  []billing.InvoicePaymentFailedEvent
	createdEvents []billing.SubscriptionCreatedEvent
	updatedEvents []billing.SubscriptionUpdatedEvent
	err           error
}

func (r *recordingReconciliation) HandleInvoicePaid(_ context.Context, event billing.InvoicePaidEvent) error {
	r.paidEvents = append(r.paidEvents, event)
	return r.err
}

func (r *recordingReconciliation) HandleInvoicePaymentFailed(_ context.Context, event billing.InvoicePaymentFailedEvent) error {
	r.failedEvents = append(r.failedEvents, event)
	return r.err
}

func (r *recordingReconciliation) HandleSubscriptionCreated(_ context.Context, event billing.SubscriptionCreatedEvent) error {
	r.createdEvents = append(r.createdEvents, event)
	return r.err
}

func (r *recordingReconciliation) HandleSubscriptionUpdated(_ context.Context, event billing.SubscriptionUpdatedEvent) error {
	r.updatedEvents = append(r.updatedEvents, event)
	return r.err
}

const testWebhookSecret = "wh_test_secret"

func newTestHandler(reconciliation *recordingReconciliation) *Handler {
	cfg := config.GetDefaultConfig()
	cfg.Billing.OpalWebhookSecret = testWebhookSecret
	log := logger.GetLogger()
	return NewHandler(opal.NewClient(cfg, log), reconciliation, log)
}

func sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestHandleWebhookDispatch(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(*testing.T, *recordingReconciliation)
	}{
		{
			name: "invoice paid",
			payload: `{
				"id": "evt_1", "type": "invoice.paid",
				"data": {"invoice_id": "inv_1", "subscription_id": "sub_1"}
			}`,
			check: func(t *testing.T, r *recordingReconciliation) {
				require.Len(t, r.paidEvents, 1)
				assert.Equal(t, "inv_1", r.paidEvents[0].InvoiceID)
				assert.Equal(t, "sub_1", r.paidEvents[0].SubscriptionID)
			},
		},
		{
			name: "invoice payment failed",
			payload: `{
				"id": "evt_2", "type": "invoice.payment_failed",
				"data": {"invoice_id": "inv_2", "subscription_id": "sub_2"}
			}`,
			check: func(t *testing.T, r *recordingReconciliation) {
				require.Len(t, r.failedEvents, 1)
				assert.Equal(t, "sub_2", r.failedEvents[0].SubscriptionID)
			},
		},
		{
			name: "subscription created",
			payload: `{
				"id": "evt_3", "type": "subscription.created",
				"data": {
					"subscription_id": "sub_3", "plan_ref": "opal_plan_monthly",
					"status": "active", "amount": "199", "currency": "USD",
					"metadata": {"patient_id": "pat_1"}
				}
			}`,
			check: func(t *testing.T, r *recordingReconciliation) {
				require.Len(t, r.createdEvents, 1)
				snapshot := r.createdEvents[0].Subscription
				assert.Equal(t, "sub_3", snapshot.ExternalID)
				assert.Equal(t, billing.ExternalStatusActive, snapshot.Status)
				assert.Equal(t, "pat_1", snapshot.CustomerRef)
				assert.True(t, snapshot.Amount.Equal(decimal.RequireFromString("199")))
			},
		},
		{
			name: "subscription updated",
			payload: `{
				"id": "evt_4", "type": "subscription.updated",
				"data": {
					"subscription_id": "sub_4", "status": "canceled",
					"amount": "199", "currency": "USD"
				}
			}`,
			check: func(t *testing.T, r *recordingReconciliation) {
				require.Len(t, r.updatedEvents, 1)
				assert.Equal(t, billing.ExternalStatusCanceled, r.updatedEvents[0].Subscription.Status)
			},
		},
		{
			name:    "unknown event type is ignored",
			payload: `{"id": "evt_5", "type": "customer.created", "data": {}}`,
			check: func(t *testing.T, r *recordingReconciliation) {
				assert.Empty(t, r.paidEvents)
				assert.Empty(t, r.failedEvents)
				assert.Empty(t, r.createdEvents)
				assert.Empty(t, r.updatedEvents)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reconciliation := &recordingReconciliation{}
			handler := newTestHandler(reconciliation)
			payload := []byte(tt.payload)

			err := handler.HandleWebhook(context.Background(), payload, sign(payload))
			require.NoError(t, err)
			tt.check(t, reconciliation)
		})
	}
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	reconciliation := &recordingReconciliation{}
	handler := newTestHandler(reconciliation)
	payload := []byte(`{"id": "evt_1", "type": "invoice.paid", "data": {"invoice_id": "inv_1"}}`)

	err := handler.HandleWebhook(context.Background(), payload, sign([]byte("other payload")))
	require.Error(t, err)
	assert.True(t, ierr.IsPermissionDenied(err))
	assert.Empty(t, reconciliation.paidEvents, "unverified events are never dispatched")
}

func TestHandleWebhookRejectsMalformedPayload(t *testing.T) {
	handler := newTestHandler(&recordingReconciliation{})
	payload := []byte(`not json`)

	err := handler.HandleWebhook(context.Background(), payload, sign(payload))
	require.Error(t, err)
	assert.True(t, ierr.IsValidation(err))
}

func TestHandleWebhookSwallowsProcessingErrors(t *testing.T) {
	reconciliation := &recordingReconciliation{err: errors.New("store unavailable")}
	handler := newTestHandler(reconciliation)
	payload := []byte(`{"id": "evt_1", "type": "invoice.paid", "data": {"invoice_id": "inv_1"}}`)

	err := handler.HandleWebhook(context.Background(), payload, sign(payload))
	assert.NoError(t, err, "processing failures must not trigger provider redelivery")
	assert.Len(t, reconciliation.paidEvents, 1)
}

func TestHandleWebhookSkipsUnparseableAmount(t *testing.T) {
	reconciliation := &recordingReconciliation{}
	handler := newTestHandler(reconciliation)
	payload := []byte(`{
		"id": "evt_1", "type": "subscription.updated",
		"data": {"subscription_id": "sub_1", "status": "active", "amount": "abc"}
	}`)

	err := handler.HandleWebhook(context.Background(), payload, sign(payload))
	assert.NoError(t, err)
	assert.Empty(t, reconciliation.updatedEvents, "events with broken amounts are dropped")
}
