package webhook

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/integration/opal"
	"github.com/wellpath/wellpath/internal/logger"
	"github.com/wellpath/wellpath/internal/service"
	"github.com/wellpath/wellpath/internal/types"
)

// Handler processes Opal webhook deliveries. Processing errors are logged
// and swallowed so Opal always receives a 2xx and does not redeliver events
// we cannot act on; only signature and decode failures are surfaced.
type Handler struct {
	client         *opal.Client
	reconciliation service.ReconciliationService
	logger         *logger.Logger
}

// NewHandler creates an Opal webhook handler.
func NewHandler(client *opal.Client, reconciliation service.ReconciliationService, log *logger.Logger) *Handler {
	return &Handler{
		client:         client,
		reconciliation: reconciliation,
		logger:         log,
	}
}

// HandleWebhook verifies, decodes and dispatches one delivery.
func (h *Handler) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if err := h.client.VerifyWebhookSignature(payload, signature); err != nil {
		return err
	}

	var envelope Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return ierr.WithError(err).
			WithHint("Malformed Opal webhook payload").
			Mark(ierr.ErrValidation)
	}

	h.logger.Infow("processing opal webhook event",
		"event_id", envelope.ID,
		"event_type", envelope.Type,
		"created_at", envelope.CreatedAt)

	switch envelope.Type {
	case EventInvoicePaid:
		h.handleInvoicePaid(ctx, envelope)
	case EventInvoicePaymentFailed:
		h.handleInvoicePaymentFailed(ctx, envelope)
	case EventSubscriptionCreated:
		h.handleSubscriptionCreated(ctx, envelope)
	case EventSubscriptionUpdated:
		h.handleSubscriptionUpdated(ctx, envelope)
	default:
		h.logger.Infow("ignoring unhandled opal event type", "event_type", envelope.Type)
	}
	return nil
}

func (h *Handler) handleInvoicePaid(ctx context.Context, envelope Envelope) {
	var data InvoiceEventData
	if !h.decode(envelope, &data) {
		return
	}
	err := h.reconciliation.HandleInvoicePaid(ctx, billing.InvoicePaidEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID:      data.InvoiceID,
			SubscriptionID: data.SubscriptionID,
			Vendor:         types.PaymentVendorOpal,
		},
	})
	h.logOutcome(envelope, err)
}

func (h *Handler) handleInvoicePaymentFailed(ctx context.Context, envelope Envelope) {
	var data InvoiceEventData
	if !h.decode(envelope, &data) {
		return
	}
	err := h.reconciliation.HandleInvoicePaymentFailed(ctx, billing.InvoicePaymentFailedEvent{
		InvoiceEvent: billing.InvoiceEvent{
			InvoiceID:      data.InvoiceID,
			SubscriptionID: data.SubscriptionID,
			Vendor:         types.PaymentVendorOpal,
		},
	})
	h.logOutcome(envelope, err)
}

func (h *Handler) handleSubscriptionCreated(ctx context.Context, envelope Envelope) {
	var data SubscriptionEventData
	if !h.decode(envelope, &data) {
		return
	}
	snapshot, ok := h.snapshot(envelope, data)
	if !ok {
		return
	}
	err := h.reconciliation.HandleSubscriptionCreated(ctx, billing.SubscriptionCreatedEvent{
		Subscription: snapshot,
		Vendor:       types.PaymentVendorOpal,
	})
	h.logOutcome(envelope, err)
}

func (h *Handler) handleSubscriptionUpdated(ctx context.Context, envelope Envelope) {
	var data SubscriptionEventData
	if !h.decode(envelope, &data) {
		return
	}
	snapshot, ok := h.snapshot(envelope, data)
	if !ok {
		return
	}
	err := h.reconciliation.HandleSubscriptionUpdated(ctx, billing.SubscriptionUpdatedEvent{
		Subscription: snapshot,
		Vendor:       types.PaymentVendorOpal,
	})
	h.logOutcome(envelope, err)
}

func (h *Handler) decode(envelope Envelope, out interface{}) bool {
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		h.logger.Errorw("failed to decode opal event data",
			"event_id", envelope.ID,
			"event_type", envelope.Type,
			"error", err)
		return false
	}
	return true
}

func (h *Handler) snapshot(envelope Envelope, data SubscriptionEventData) (billing.SubscriptionSnapshot, bool) {
	amount, err := decimal.NewFromString(data.Amount)
	if err != nil {
		h.logger.Errorw("opal event carries an unparseable amount",
			"event_id", envelope.ID,
			"amount", data.Amount,
			"error", err)
		return billing.SubscriptionSnapshot{}, false
	}
	return billing.SubscriptionSnapshot{
		ExternalID:         data.SubscriptionID,
		Status:             billing.ExternalSubscriptionStatus(data.Status),
		PlanRef:            data.PlanRef,
		Amount:             amount,
		Currency:           data.Currency,
		CurrentPeriodStart: data.CurrentPeriodStart,
		CurrentPeriodEnd:   data.CurrentPeriodEnd,
		CancelAtPeriodEnd:  data.CancelAtPeriodEnd,
		CustomerRef:        data.Metadata["patient_id"],
	}, true
}

func (h *Handler) logOutcome(envelope Envelope, err error) {
	if err != nil {
		h.logger.Errorw("opal webhook processing failed",
			"event_id", envelope.ID,
			"event_type", envelope.Type,
			"error", err)
		return
	}
	h.logger.Debugw("opal webhook processed",
		"event_id", envelope.ID,
		"event_type", envelope.Type)
}
