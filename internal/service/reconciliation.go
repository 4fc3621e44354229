package service

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/flow"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/publisher"
	"github.com/wellpath/wellpath/internal/types"
)

// ReconciliationService converges local subscription state with the billing
// provider's, driven by webhook events. Every handler is idempotent:
// providers redeliver webhooks, and local commands may have already applied
// the same change.
type ReconciliationService interface {
	HandleInvoicePaid(ctx context.Context, event billing.InvoicePaidEvent) error
	HandleInvoicePaymentFailed(ctx context.Context, event billing.InvoicePaymentFailedEvent) error
	HandleSubscriptionCreated(ctx context.Context, event billing.SubscriptionCreatedEvent) error
	HandleSubscriptionUpdated(ctx context.Context, event billing.SubscriptionUpdatedEvent) error
}

type reconciliationService struct {
	ServiceParams
	materializer *Materializer
	issues       PaymentIssueService
}

func NewReconciliationService(params ServiceParams) ReconciliationService {
	return &reconciliationService{
		ServiceParams: params,
		materializer:  NewMaterializer(params),
		issues:        NewPaymentIssueService(params),
	}
}

// HandleInvoicePaid resolves the outstanding payment issue for the paid
// invoice. Subscription invoices resolve by the subscription's external id;
// invoices without a subscription belong to a provider-side product
// purchase and settle the matching entitlement instead.
func (s *reconciliationService) HandleInvoicePaid(ctx context.Context, event billing.InvoicePaidEvent) error {
	if event.SubscriptionID != "" {
		return s.issues.ResolveIssue(ctx, event.Vendor, event.SubscriptionID)
	}

	if err := s.EntitlementRepo.MarkPaid(ctx, event.InvoiceID); err != nil {
		if ierr.IsNotFound(err) {
			// Nothing local references this invoice; the provider bills
			// things we do not track.
			s.Logger.Infow("ignoring paid invoice with no local reference",
				"invoice_id", event.InvoiceID,
				"vendor", event.Vendor)
			return nil
		}
		return err
	}
	// Product invoice issues correlate by invoice id.
	return s.issues.ResolveIssue(ctx, event.Vendor, event.InvoiceID)
}

// HandleInvoicePaymentFailed opens or progresses a payment issue for the
// failed charge. The subscription lookup retries on not-found: the webhook
// can arrive before the command that created the link has committed. A
// subscription that never appears is an orphan, provider-side state with no
// local owner, and gets canceled externally instead of tracked.
func (s *reconciliationService) HandleInvoicePaymentFailed(ctx context.Context, event billing.InvoicePaymentFailedEvent) error {
	if event.SubscriptionID == "" {
		return s.handleFailedProductInvoice(ctx, event)
	}

	link, err := s.lookupLinkWithRetry(ctx, event.Vendor, event.SubscriptionID)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return err
		}
		return s.cancelOrphan(ctx, event.Vendor, event.SubscriptionID)
	}

	issue, reused, err := s.issues.CreateOrProgressIssue(ctx, event.Vendor, event.SubscriptionID)
	if err != nil {
		return err
	}

	// A repeated failure on an already-open issue means the provider's
	// own retry also failed; move to notifying the patient without
	// waiting for the dunning job's next pass.
	if reused {
		sub, err := s.SubRepo.Get(ctx, link.SubscriptionID)
		if err != nil {
			return err
		}
		p, err := s.PatientRepo.Get(ctx, sub.PatientID)
		if err != nil {
			return err
		}
		gateway, err := s.BillingRegistry.Get(event.Vendor)
		if err != nil {
			return err
		}
		paymentLink, err := gateway.GeneratePaymentLink(ctx, p, event.SubscriptionID)
		if err != nil {
			s.Logger.Warnw("failed to generate payment link",
				"payment_issue_id", issue.ID,
				"error", err)
			paymentLink = ""
		}
		now := time.Now().UTC()
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			result, err := flow.ProcessPaymentIssueFlow{
				Issue:       issue,
				PaymentLink: paymentLink,
				Cooldown:    s.Config.PaymentIssue.NotificationCooldown,
				Now:         now,
			}.Execute()
			if err != nil {
				return err
			}
			return s.materializer.Apply(ctx, result.Actions)
		})
	}
	return nil
}

// HandleSubscriptionCreated mirrors a subscription created directly on the
// provider into a local one. Redeliveries and provider subscriptions our
// own commands created are detected through the integration link and
// skipped.
func (s *reconciliationService) HandleSubscriptionCreated(ctx context.Context, event billing.SubscriptionCreatedEvent) error {
	snapshot := event.Subscription

	if _, err := s.SubIntegrationRepo.GetByExternalID(ctx, event.Vendor, snapshot.ExternalID); err == nil {
		return nil
	} else if !ierr.IsNotFound(err) {
		return err
	}

	if snapshot.CustomerRef == "" {
		s.Logger.Warnw("external subscription has no customer reference, skipping",
			"external_id", snapshot.ExternalID,
			"vendor", event.Vendor)
		return nil
	}
	p, err := s.PatientRepo.Get(ctx, snapshot.CustomerRef)
	if err != nil {
		return err
	}

	priceID, err := s.mapCatalogPrice(ctx, event.Vendor, snapshot.PlanRef)
	if err != nil {
		return err
	}
	details, err := s.PlanRepo.GetPriceDetails(ctx, priceID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	start := now
	if snapshot.CurrentPeriodStart != nil {
		start = *snapshot.CurrentPeriodStart
	}

	// The patient holds at most one active subscription locally; a
	// provider-created duplicate is an operator conflict, not state to
	// mirror.
	latest, err := s.SubRepo.GetLatestByPatient(ctx, p.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}
	if latest != nil && latest.IsActive(start) {
		s.Logger.Warnw("patient already has an active subscription, not mirroring provider-created one",
			"patient_id", p.ID,
			"subscription_id", latest.ID,
			"external_id", snapshot.ExternalID)
		return nil
	}

	var sub *subscription.Subscription
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		result, err := flow.CreateSubscriptionFlow{
			Patient:          p,
			PriceDetails:     details,
			PaymentStrategy:  details.Period.DefaultPaymentStrategy,
			ChargeStartupFee: false,
			StartDate:        &start,
			Now:              now,
			Base:             types.GetDefaultBaseModel(ctx),
		}.Execute()
		if err != nil {
			return err
		}
		if err := s.materializer.Apply(ctx, result.Actions); err != nil {
			return err
		}
		sub = result.Subscription

		link, err := flow.MarkSubscriptionAsPaidFlow{
			Subscription: sub,
			Vendor:       event.Vendor,
			ExternalID:   snapshot.ExternalID,
			Now:          now,
			Base:         types.GetDefaultBaseModel(ctx),
		}.Execute()
		if err != nil {
			return err
		}
		return s.materializer.Apply(ctx, link.Actions)
	})
	if err != nil {
		return err
	}

	s.Logger.Infow("mirrored provider-created subscription",
		"subscription_id", sub.ID,
		"external_id", snapshot.ExternalID,
		"patient_id", p.ID)
	s.publishEvent(ctx, publisher.TopicSubscriptionCreated, publisher.SubscriptionEvent{
		SubscriptionID: sub.ID,
		PatientID:      sub.PatientID,
		PracticeID:     sub.PracticeID,
	})
	return nil
}

// HandleSubscriptionUpdated folds provider-side changes into local state.
// Only cancellations converge automatically; plan or price changes made on
// the provider's dashboard are logged and left for an operator, because
// applying them blindly would bypass promo and subsidy arbitration.
func (s *reconciliationService) HandleSubscriptionUpdated(ctx context.Context, event billing.SubscriptionUpdatedEvent) error {
	snapshot := event.Subscription

	link, err := s.lookupLinkWithRetry(ctx, event.Vendor, snapshot.ExternalID)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Warnw("update for unknown external subscription",
				"external_id", snapshot.ExternalID,
				"vendor", event.Vendor)
			return nil
		}
		return err
	}
	sub, err := s.SubRepo.Get(ctx, link.SubscriptionID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	if snapshot.Status.IsTerminal() {
		if sub.IsCanceled() {
			return nil
		}
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			issues, err := s.outstandingIssuesFor(ctx, sub.ID)
			if err != nil {
				return err
			}
			result, err := flow.CancelSubscriptionFlow{
				Subscription:      sub,
				OutstandingIssues: issues,
				ReasonType:        types.CancellationReasonCanceledInPaymentSystem,
				Reason:            "subscription " + string(snapshot.Status) + " at billing provider",
				AllowLapsedPeriod: true,
				Now:               now,
			}.Execute()
			if err != nil {
				return err
			}
			return s.materializer.Apply(ctx, result.Actions)
		})
	}

	if snapshot.CancelAtPeriodEnd && sub.CancellationRequest == nil && !sub.IsCanceled() {
		effective := sub.EndDate
		if snapshot.CurrentPeriodEnd != nil {
			effective = *snapshot.CurrentPeriodEnd
		}
		return s.DB.WithTx(ctx, func(ctx context.Context) error {
			result, err := flow.ScheduleCancellationFlow{
				Subscription:  sub,
				ReasonType:    types.CancellationReasonCanceledInPaymentSystem,
				Reason:        "cancel at period end requested at billing provider",
				EffectiveDate: effective,
				Now:           now,
			}.Execute()
			if err != nil {
				return err
			}
			return s.materializer.Apply(ctx, result.Actions)
		})
	}

	if !snapshot.Amount.Equal(sub.Price) {
		s.Logger.Warnw("provider-side price differs from local subscription, not applied",
			"subscription_id", sub.ID,
			"external_id", snapshot.ExternalID,
			"local_price", sub.Price,
			"external_amount", snapshot.Amount)
	}
	return nil
}

// lookupLinkWithRetry resolves an integration link, retrying a bounded
// number of times on not-found. Webhooks race the commands that write the
// link; a short fixed backoff covers the read-after-write lag without
// masking genuinely unknown subscriptions for long.
func (s *reconciliationService) lookupLinkWithRetry(ctx context.Context, vendor types.PaymentVendor, externalID string) (*subscription.SubscriptionIntegration, error) {
	attempts := s.Config.Webhook.NotFoundRetryAttempts
	backoff := s.Config.Webhook.NotFoundRetryBackoff

	var lastErr error
	for attempt := 0; ; attempt++ {
		link, err := s.SubIntegrationRepo.GetByExternalID(ctx, vendor, externalID)
		if err == nil {
			return link, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
		lastErr = err
		if attempt >= attempts {
			return nil, lastErr
		}
		s.Logger.Debugw("integration link not found, retrying",
			"vendor", vendor,
			"external_id", externalID,
			"attempt", attempt+1)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// handleFailedProductInvoice tracks a failed charge on a provider-side
// product purchase. No subscription is involved, so the issue correlates
// by invoice id; invoices nothing local references are ignored.
func (s *reconciliationService) handleFailedProductInvoice(ctx context.Context, event billing.InvoicePaymentFailedEvent) error {
	if _, err := s.EntitlementRepo.GetByExternalInvoiceID(ctx, event.InvoiceID); err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Infow("ignoring failed invoice with no local reference",
				"invoice_id", event.InvoiceID,
				"vendor", event.Vendor)
			return nil
		}
		return err
	}
	_, _, err := s.issues.CreateOrProgressIssue(ctx, event.Vendor, event.InvoiceID)
	return err
}

// cancelOrphan cancels a provider subscription that no local subscription
// owns. No payment issue is opened: there is nothing local to resolve.
func (s *reconciliationService) cancelOrphan(ctx context.Context, vendor types.PaymentVendor, externalID string) error {
	s.Logger.Warnw("failed payment for orphan external subscription, canceling it",
		"vendor", vendor,
		"external_id", externalID)
	gateway, err := s.BillingRegistry.Get(vendor)
	if err != nil {
		return err
	}
	found, err := gateway.TryCancelSubscription(ctx, externalID, nil, string(types.CancellationReasonNonPayment))
	if err != nil {
		return err
	}
	if !found {
		s.Logger.Infow("orphan external subscription already gone",
			"vendor", vendor,
			"external_id", externalID)
	}
	return nil
}

func (s *reconciliationService) outstandingIssuesFor(ctx context.Context, subscriptionID string) ([]*paymentissue.PaymentIssue, error) {
	links, err := s.SubIntegrationRepo.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	var issues []*paymentissue.PaymentIssue
	for _, link := range links {
		issue, err := s.PaymentIssueRepo.GetOutstandingByExternalID(ctx, link.Vendor, link.ExternalID)
		if err != nil {
			if ierr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func (s *reconciliationService) mapCatalogPrice(ctx context.Context, vendor types.PaymentVendor, planRef string) (string, error) {
	gateway, err := s.BillingRegistry.Get(vendor)
	if err != nil {
		return "", err
	}
	catalog, err := gateway.GetPriceCatalog(ctx)
	if err != nil {
		return "", err
	}
	entry, ok := lo.Find(catalog, func(c billing.CatalogPrice) bool { return c.ExternalPlanRef == planRef })
	if !ok {
		return "", ierr.NewErrorf("no local price mapped to provider plan %s", planRef).
			WithHint("Add the plan to the price catalog mapping").
			Mark(ierr.ErrValidation)
	}
	return entry.PaymentPriceID, nil
}

func (s *reconciliationService) publishEvent(ctx context.Context, topic string, payload interface{}) {
	if s.EventPublisher == nil {
		return
	}
	if err := s.EventPublisher.Publish(ctx, topic, payload); err != nil {
		s.Logger.Errorw("failed to publish event", "topic", topic, "error", err)
	}
}
