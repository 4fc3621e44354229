package service

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/api/dto"
	"github.com/wellpath/wellpath/internal/domain/employer"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/plan"
	"github.com/wellpath/wellpath/internal/domain/promocode"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/flow"
	"github.com/wellpath/wellpath/internal/integration/billing"
	"github.com/wellpath/wellpath/internal/publisher"
	"github.com/wellpath/wellpath/internal/types"
)

// SubscriptionService coordinates the membership lifecycle commands: load
// current state, run the flow, materialize its actions, call the billing
// gateway, compensate on failure, publish follow-on events.
type SubscriptionService interface {
	CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	ActivateSubscription(ctx context.Context, req dto.ActivateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	CancelSubscription(ctx context.Context, req dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error)
	ChangeSubscriptionPaymentPrice(ctx context.Context, req dto.ChangeSubscriptionPaymentPriceRequest) (*dto.SubscriptionResponse, error)
	ReplaceSubscription(ctx context.Context, req dto.ReplaceSubscriptionRequest) (*dto.SubscriptionResponse, error)
	RenewSubscriptions(ctx context.Context, req dto.RenewSubscriptionsRequest) (*dto.BatchResult, error)
	OverwriteSubscriptions(ctx context.Context, req dto.OverwriteSubscriptionsRequest) (*dto.BatchResult, error)
}

type subscriptionService struct {
	ServiceParams
	materializer *Materializer
}

func NewSubscriptionService(params ServiceParams) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		materializer:  NewMaterializer(params),
	}
}

func (s *subscriptionService) CreateSubscription(ctx context.Context, req dto.CreateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	p, err := s.PatientRepo.Get(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	details, err := s.PlanRepo.GetPriceDetails(ctx, req.PaymentPriceID)
	if err != nil {
		return nil, err
	}
	promo, err := s.loadPromo(ctx, req.PromoCodeCouponID)
	if err != nil {
		return nil, err
	}
	emp, err := s.loadEmployer(ctx, req.EmployerProductID)
	if err != nil {
		return nil, err
	}
	gateway, err := s.BillingRegistry.Get(req.Vendor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	start := now
	if req.StartDate != nil {
		start = *req.StartDate
	}

	// A patient holds at most one active subscription. Upgrades go
	// through replace, not a second create.
	active, err := s.SubRepo.List(ctx, &subscription.Filter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		PatientIDs:  []string{p.ID},
		ActiveAt:    &start,
	})
	if err != nil {
		return nil, err
	}
	if len(active) > 0 {
		return nil, ierr.NewError("patient already has an active subscription").
			WithHint("Cancel or replace the current subscription instead").
			WithReportableDetails(map[string]interface{}{
				"patient_id":      p.ID,
				"subscription_id": active[0].ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	var sub *subscription.Subscription
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		result, err := flow.CreateSubscriptionFlow{
			Patient:          p,
			PriceDetails:     details,
			EmployerProduct:  emp,
			PromoCode:        promo,
			PaymentStrategy:  req.PaymentStrategy,
			ChargeStartupFee: req.ChargeStartupFee,
			StartDate:        req.StartDate,
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

		// A create is always the first billing for this subscription: a
		// failed charge aborts everything, because the provider has no
		// dunning for subscriptions that never billed successfully.
		return s.billFirst(ctx, gateway, p, sub, nil, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, publisher.TopicSubscriptionCreated, sub)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) ActivateSubscription(ctx context.Context, req dto.ActivateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	p, err := s.PatientRepo.Get(ctx, sub.PatientID)
	if err != nil {
		return nil, err
	}
	details, err := s.PlanRepo.GetPriceDetails(ctx, sub.PaymentPriceID)
	if err != nil {
		return nil, err
	}
	gateway, err := s.BillingRegistry.Get(req.Vendor)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		result, err := flow.ActivateSubscriptionFlow{
			Subscription:   sub,
			PriceDetails:   details,
			ActivationDate: req.ActivationDate,
			Now:            now,
		}.Execute()
		if err != nil {
			return err
		}
		if err := s.materializer.Apply(ctx, result.Actions); err != nil {
			return err
		}
		return s.billFirst(ctx, gateway, p, sub, nil, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, publisher.TopicSubscriptionCreated, sub)
	return dto.NewSubscriptionResponse(sub), nil
}

func (s *subscriptionService) CancelSubscription(ctx context.Context, req dto.CancelSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	// A future effective date schedules the cancellation; the
	// cancellation job executes it (and the external cancel) when due.
	if req.EffectiveDate != nil && req.EffectiveDate.After(now) {
		err = s.DB.WithTx(ctx, func(ctx context.Context) error {
			result, err := flow.ScheduleCancellationFlow{
				Subscription:  sub,
				ReasonType:    req.ReasonType,
				Reason:        req.Reason,
				EffectiveDate: *req.EffectiveDate,
				Now:           now,
			}.Execute()
			if err != nil {
				return err
			}
			return s.materializer.Apply(ctx, result.Actions)
		})
		if err != nil {
			return nil, err
		}
		return dto.NewSubscriptionResponse(sub), nil
	}

	if err := s.cancelNow(ctx, sub, req.ReasonType, req.Reason, now); err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, publisher.TopicSubscriptionCanceled, sub)
	return dto.NewSubscriptionResponse(sub), nil
}

// cancelNow performs an immediate cancellation plus the external provider
// cancel, holding the transaction open until the external outcome is known.
func (s *subscriptionService) cancelNow(ctx context.Context, sub *subscription.Subscription, reasonType types.CancellationReasonType, reason string, now time.Time) error {
	links, err := s.SubIntegrationRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	issues, err := s.outstandingIssues(ctx, links)
	if err != nil {
		return err
	}

	return s.DB.WithTx(ctx, func(ctx context.Context) error {
		result, err := flow.CancelSubscriptionFlow{
			Subscription:      sub,
			OutstandingIssues: issues,
			ReasonType:        reasonType,
			Reason:            reason,
			Now:               now,
		}.Execute()
		if err != nil {
			return err
		}
		if err := s.materializer.Apply(ctx, result.Actions); err != nil {
			return err
		}

		for _, link := range links {
			gateway, err := s.BillingRegistry.Get(link.Vendor)
			if err != nil {
				return err
			}
			ok, err := gateway.TryCancelSubscription(ctx, link.ExternalID, nil, string(reasonType))
			if err != nil {
				return err
			}
			if !ok {
				// The provider no longer knows the subscription; local
				// cancellation still stands.
				s.Logger.Warnw("external subscription not found during cancel",
					"subscription_id", sub.ID,
					"vendor", link.Vendor,
					"external_id", link.ExternalID)
			}
		}
		return nil
	})
}

func (s *subscriptionService) ChangeSubscriptionPaymentPrice(ctx context.Context, req dto.ChangeSubscriptionPaymentPriceRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	p, err := s.PatientRepo.Get(ctx, sub.PatientID)
	if err != nil {
		return nil, err
	}
	oldDetails, err := s.PlanRepo.GetPriceDetails(ctx, sub.PaymentPriceID)
	if err != nil {
		return nil, err
	}
	newDetails, err := s.PlanRepo.GetPriceDetails(ctx, req.NewPaymentPriceID)
	if err != nil {
		return nil, err
	}
	promo, err := s.loadPromo(ctx, req.PromoCodeCouponID)
	if err != nil {
		return nil, err
	}
	emp, err := s.loadEmployer(ctx, req.EmployerProductID)
	if err != nil {
		return nil, err
	}
	links, err := s.SubIntegrationRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	issues, err := s.outstandingIssues(ctx, links)
	if err != nil {
		return nil, err
	}
	entitlements, err := s.EntitlementRepo.ListActiveBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var result *flow.ChangeSubscriptionPaymentPriceResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = flow.ChangeSubscriptionPaymentPriceFlow{
			Current:           sub,
			OutstandingIssues: issues,
			OldDetails:        oldDetails,
			NewDetails:        newDetails,
			EmployerProduct:   emp,
			PromoCode:         promo,
			Entitlements:      entitlements,
			Patient:           p,
			Reason:            req.Reason,
			Now:               now,
			Base:              types.GetDefaultBaseModel(ctx),
		}.Execute()
		if err != nil {
			return err
		}
		if err := s.materializer.Apply(ctx, result.Actions); err != nil {
			return err
		}

		// The provider keeps the same external subscription; only its
		// price changes. The new local row inherits the links.
		for _, link := range links {
			gateway, err := s.BillingRegistry.Get(link.Vendor)
			if err != nil {
				return err
			}
			price := toBillingPrice(newDetails, result.NewSubscription, promo)
			if err := gateway.UpdateSubscriptionPrice(ctx, sub.PracticeID, link.ExternalID, price); err != nil {
				return err
			}
			relink, err := flow.MarkSubscriptionAsPaidFlow{
				Subscription: result.NewSubscription,
				Vendor:       link.Vendor,
				ExternalID:   link.ExternalID,
				Now:          now,
				Base:         types.GetDefaultBaseModel(ctx),
			}.Execute()
			if err != nil {
				return err
			}
			if err := s.materializer.Apply(ctx, relink.Actions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.NeedsEntitlementSubstitution {
		// The funding category changed; entitlements are substituted by
		// a dedicated follow-on command rather than carried over.
		s.publishEvent(ctx, publisher.TopicEntitlementSubstitution, publisher.SubscriptionEvent{
			SubscriptionID: result.NewSubscription.ID,
			PatientID:      result.NewSubscription.PatientID,
			PracticeID:     result.NewSubscription.PracticeID,
		})
	}

	s.publishSubscriptionEvent(ctx, publisher.TopicSubscriptionReplaced, result.NewSubscription)
	return dto.NewSubscriptionResponse(result.NewSubscription), nil
}

func (s *subscriptionService) ReplaceSubscription(ctx context.Context, req dto.ReplaceSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	sub, err := s.SubRepo.Get(ctx, req.SubscriptionID)
	if err != nil {
		return nil, err
	}
	p, err := s.PatientRepo.Get(ctx, sub.PatientID)
	if err != nil {
		return nil, err
	}
	newDetails, err := s.PlanRepo.GetPriceDetails(ctx, req.NewPaymentPriceID)
	if err != nil {
		return nil, err
	}
	promo, err := s.loadPromo(ctx, req.PromoCodeCouponID)
	if err != nil {
		return nil, err
	}
	emp, err := s.loadEmployer(ctx, req.EmployerProductID)
	if err != nil {
		return nil, err
	}
	links, err := s.SubIntegrationRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	issues, err := s.outstandingIssues(ctx, links)
	if err != nil {
		return nil, err
	}
	entitlements, err := s.EntitlementRepo.ListActiveBySubscription(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	gateway, err := s.BillingRegistry.Get(req.Vendor)
	if err != nil {
		return nil, err
	}

	// First billing means no charge has ever succeeded for this
	// patient/provider pair. Its failure policy differs: the provider has
	// no retry path for a subscription that never billed, so a failed
	// first charge aborts the whole replacement.
	firstBilling := len(links) == 0

	now := time.Now().UTC()
	var result *flow.ReplaceSubscriptionResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = flow.ReplaceSubscriptionFlow{
			Current:           sub,
			OutstandingIssues: issues,
			Patient:           p,
			NewDetails:        newDetails,
			EmployerProduct:   emp,
			PromoCode:         promo,
			Entitlements:      entitlements,
			ChargeStartupFee:  req.ChargeStartupFee,
			FounderSponsorID:  req.FounderSponsorID,
			Reason:            req.Reason,
			Now:               now,
			Base:              types.GetDefaultBaseModel(ctx),
		}.Execute()
		if err != nil {
			return err
		}
		if err := s.materializer.Apply(ctx, result.Actions); err != nil {
			return err
		}

		if firstBilling {
			return s.billFirst(ctx, gateway, p, result.NewSubscription, sub, now)
		}
		return s.billSteadyState(ctx, gateway, p, result.NewSubscription, sub, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishSubscriptionEvent(ctx, publisher.TopicSubscriptionReplaced, result.NewSubscription)
	return dto.NewSubscriptionResponse(result.NewSubscription), nil
}

func (s *subscriptionService) RenewSubscriptions(ctx context.Context, req dto.RenewSubscriptionsRequest) (*dto.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, &subscription.Filter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		EndDateOn:   &req.TargetDate,
	})
	if err != nil {
		return nil, err
	}

	result := &dto.BatchResult{}
	for _, sub := range subs {
		if err := s.renewOne(ctx, sub, req.TargetDate, req.Vendor); err != nil {
			s.Logger.Errorw("failed to renew subscription",
				"subscription_id", sub.ID,
				"patient_id", sub.PatientID,
				"error", err)
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Processed++
	}
	return result, nil
}

func (s *subscriptionService) renewOne(ctx context.Context, sub *subscription.Subscription, targetDate time.Time, vendor types.PaymentVendor) error {
	if sub.IsCanceled() {
		return nil
	}

	p, err := s.PatientRepo.Get(ctx, sub.PatientID)
	if err != nil {
		return err
	}

	// Renewal happens on the patient's local renewal day. The flow is
	// time-zone-agnostic; this is the caller-side date check it trusts.
	if !types.LocalDate(sub.EndDate, p.TimeZone).Equal(types.LocalDate(targetDate, p.TimeZone)) {
		return nil
	}

	resolved, err := s.resolveRenewalPromo(ctx, sub)
	if err != nil {
		return err
	}
	details, err := s.PlanRepo.GetPriceDetails(ctx, resolved.PaymentPriceID)
	if err != nil {
		return err
	}
	emp, err := s.renewalEmployer(ctx, sub)
	if err != nil {
		return err
	}
	gateway, err := s.BillingRegistry.Get(vendor)
	if err != nil {
		return err
	}

	links, err := s.SubIntegrationRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}

	// Fetch the provider's view to detect drift before renewing.
	var external *billing.SubscriptionSnapshot
	if link, ok := lo.Find(links, func(l *subscription.SubscriptionIntegration) bool { return l.Vendor == vendor }); ok {
		external, err = gateway.GetPatientSubscription(ctx, p, link.ExternalID)
		if err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	var newSub *subscription.Subscription
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		result, err := flow.RenewSubscriptionFlow{
			Current:         sub,
			External:        external,
			Patient:         p,
			PriceDetails:    details,
			EmployerProduct: emp,
			PromoCode:       resolved.PromoCode,
			Vendor:          vendor,
			Now:             now,
			Base:            types.GetDefaultBaseModel(ctx),
		}.Execute()
		if err != nil {
			return err
		}
		if err := s.materializer.Apply(ctx, result.Actions); err != nil {
			return err
		}
		newSub = result.Subscription

		// Steady-state billing: the provider's dunning keeps retrying a
		// failed renewal charge, so failure surfaces as a payment issue
		// rather than aborting the renewal.
		return s.billSteadyState(ctx, gateway, p, newSub, sub, now)
	})
	if err != nil {
		return err
	}

	s.publishSubscriptionEvent(ctx, publisher.TopicSubscriptionRenewed, newSub)
	return nil
}

func (s *subscriptionService) OverwriteSubscriptions(ctx context.Context, req dto.OverwriteSubscriptionsRequest) (*dto.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &dto.BatchResult{}
	for _, item := range req.Items {
		err := s.DB.WithTx(ctx, func(ctx context.Context) error {
			sub, err := s.SubRepo.Get(ctx, item.SubscriptionID)
			if err != nil {
				return err
			}
			res, err := flow.OverwriteSubscriptionFlow{
				Subscription: sub,
				Overwrite: flow.SubscriptionOverwrite{
					StartDate:         item.StartDate,
					EndDate:           item.EndDate,
					PaymentStrategy:   item.PaymentStrategy,
					PaymentPriceID:    item.PaymentPriceID,
					PromoCodeCouponID: item.PromoCodeCouponID,
					EmployerProductID: item.EmployerProductID,
					Price:             item.Price,
					StartupFee:        item.StartupFee,
					Currency:          item.Currency,
				},
				Now: now,
			}.Execute()
			if err != nil {
				return err
			}
			return s.materializer.Apply(ctx, res.Actions)
		})
		if err != nil {
			s.Logger.Errorw("failed to overwrite subscription",
				"subscription_id", item.SubscriptionID,
				"error", err)
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Processed++
	}
	return result, nil
}

// billFirst charges the first-ever invoice for a subscription. Any failure
// is fatal: the external subscription (if created) is deleted and the error
// propagates so the local transaction rolls back.
func (s *subscriptionService) billFirst(ctx context.Context, gateway billing.Gateway, p *patient.Patient, sub *subscription.Subscription, previous *subscription.Subscription, now time.Time) error {
	details, err := s.PlanRepo.GetPriceDetails(ctx, sub.PaymentPriceID)
	if err != nil {
		return err
	}
	promo, err := s.loadPromo(ctx, sub.PromoCodeCouponID)
	if err != nil {
		return err
	}

	externalID, err := gateway.CreateOrUpdateSubscription(ctx, p, toBillingPrice(details, sub, promo), previous)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to create subscription with billing provider").
			Mark(ierr.ErrIntegration)
	}

	payResult, err := gateway.ProcessSubscriptionPayment(ctx, p, externalID)
	if err != nil || (payResult != nil && !payResult.Paid) {
		// Compensate before surfacing the failure: without this the
		// provider would keep billing a subscription we never recorded.
		if delErr := gateway.DeleteSubscription(ctx, externalID); delErr != nil {
			s.Logger.Errorw("failed to delete external subscription during compensation",
				"external_id", externalID,
				"error", delErr)
		}
		if err == nil {
			err = ierr.NewErrorf("first payment failed: %s", payResult.FailureMessage).
				Mark(ierr.ErrIntegration)
		}
		return ierr.WithError(err).
			WithHint("The first payment could not be completed").
			WithReportableDetails(map[string]interface{}{
				"subscription_id": sub.ID,
				"external_id":     externalID,
			}).
			Mark(ierr.ErrIntegration)
	}

	return s.markPaid(ctx, sub, gateway.Vendor(), externalID, now)
}

// billSteadyState charges a subscription for a patient the provider has
// billed before. A failed charge is tolerated: the provider's dunning will
// retry, and locally it surfaces as a payment issue.
func (s *subscriptionService) billSteadyState(ctx context.Context, gateway billing.Gateway, p *patient.Patient, sub *subscription.Subscription, previous *subscription.Subscription, now time.Time) error {
	details, err := s.PlanRepo.GetPriceDetails(ctx, sub.PaymentPriceID)
	if err != nil {
		return err
	}
	promo, err := s.loadPromo(ctx, sub.PromoCodeCouponID)
	if err != nil {
		return err
	}

	externalID, err := gateway.CreateOrUpdateSubscription(ctx, p, toBillingPrice(details, sub, promo), previous)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to update subscription with billing provider").
			Mark(ierr.ErrIntegration)
	}

	payResult, err := gateway.ProcessSubscriptionPayment(ctx, p, externalID)
	if err != nil || (payResult != nil && !payResult.Paid) {
		s.Logger.Warnw("steady-state payment failed, recording payment issue",
			"subscription_id", sub.ID,
			"external_id", externalID,
			"error", err)
		existing, lookupErr := s.PaymentIssueRepo.GetOutstandingByExternalID(ctx, gateway.Vendor(), externalID)
		if lookupErr != nil && !ierr.IsNotFound(lookupErr) {
			return lookupErr
		}
		issueRes, flowErr := flow.CreatePaymentIssueFlow{
			Existing:   existing,
			Vendor:     gateway.Vendor(),
			ExternalID: externalID,
			Now:        now,
			Base:       types.GetDefaultBaseModel(ctx),
		}.Execute()
		if flowErr != nil {
			return flowErr
		}
		if err := s.materializer.Apply(ctx, issueRes.Actions); err != nil {
			return err
		}
		s.publishEvent(ctx, publisher.TopicPaymentIssueOpened, publisher.PaymentIssueEvent{
			PaymentIssueID: issueRes.Issue.ID,
			ExternalID:     externalID,
			Vendor:         gateway.Vendor(),
		})
	}

	// The subscription exists externally either way; link it.
	return s.markPaid(ctx, sub, gateway.Vendor(), externalID, now)
}

// markPaid records the integration link, idempotently.
func (s *subscriptionService) markPaid(ctx context.Context, sub *subscription.Subscription, vendor types.PaymentVendor, externalID string, now time.Time) error {
	existing, err := s.SubIntegrationRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	result, err := flow.MarkSubscriptionAsPaidFlow{
		Subscription:  sub,
		ExistingLinks: existing,
		Vendor:        vendor,
		ExternalID:    externalID,
		Now:           now,
		Base:          types.GetDefaultBaseModel(ctx),
	}.Execute()
	if err != nil {
		return err
	}
	return s.materializer.Apply(ctx, result.Actions)
}

// resolveRenewalPromo arbitrates which price and promo apply at renewal.
func (s *subscriptionService) resolveRenewalPromo(ctx context.Context, sub *subscription.Subscription) (*flow.ResolvePromoCodeFlowResult, error) {
	currentPrice, err := s.PlanRepo.GetPrice(ctx, sub.PaymentPriceID)
	if err != nil {
		return nil, err
	}

	strategy, err := s.RenewalStrategyRepo.GetBySubscriptionID(ctx, sub.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}

	var strategyPromo *promocode.PromoCodeCoupon
	if strategy != nil && strategy.PromoCodeCouponID != nil {
		strategyPromo, err = s.PromoRepo.Get(ctx, *strategy.PromoCodeCouponID)
		if err != nil {
			return nil, err
		}
	}

	directPromo, err := s.loadPromo(ctx, sub.PromoCodeCouponID)
	if err != nil {
		return nil, err
	}

	// Translate the legacy coupon embedded on the price into a new-style
	// coupon when an equivalent exists; no equivalent means no promo, not
	// a failed renewal.
	var legacyPromo *promocode.PromoCodeCoupon
	if currentPrice.LegacyCouponCode != "" {
		legacyPromo, err = s.PromoRepo.GetByCode(ctx, currentPrice.LegacyCouponCode)
		if err != nil && !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	return flow.ResolvePromoCodeFlow{
		Strategy:      strategy,
		StrategyPromo: strategyPromo,
		DirectPromo:   directPromo,
		LegacyPromo:   legacyPromo,
		CurrentPrice:  currentPrice,
	}.Execute(), nil
}

// renewalEmployer resolves the employer product for the next period: the
// renewal strategy's override wins over the current subscription's.
func (s *subscriptionService) renewalEmployer(ctx context.Context, sub *subscription.Subscription) (*employer.EmployerProduct, error) {
	strategy, err := s.RenewalStrategyRepo.GetBySubscriptionID(ctx, sub.ID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if strategy != nil && strategy.EmployerProductID != nil {
		return s.EmployerRepo.Get(ctx, *strategy.EmployerProductID)
	}
	return s.loadEmployer(ctx, sub.EmployerProductID)
}

// outstandingIssues collects the unresolved payment issues for a
// subscription's integration links.
func (s *subscriptionService) outstandingIssues(ctx context.Context, links []*subscription.SubscriptionIntegration) ([]*paymentissue.PaymentIssue, error) {
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

func (s *subscriptionService) loadPromo(ctx context.Context, id *string) (*promocode.PromoCodeCoupon, error) {
	if id == nil {
		return nil, nil
	}
	return s.PromoRepo.Get(ctx, *id)
}

func (s *subscriptionService) loadEmployer(ctx context.Context, id *string) (*employer.EmployerProduct, error) {
	if id == nil {
		return nil, nil
	}
	return s.EmployerRepo.Get(ctx, *id)
}

func (s *subscriptionService) publishSubscriptionEvent(ctx context.Context, topic string, sub *subscription.Subscription) {
	s.publishEvent(ctx, topic, publisher.SubscriptionEvent{
		SubscriptionID: sub.ID,
		PatientID:      sub.PatientID,
		PracticeID:     sub.PracticeID,
	})
}

// publishEvent publishes a follow-on event after commit. Publish failures
// are logged, never surfaced: the command already succeeded.
func (s *subscriptionService) publishEvent(ctx context.Context, topic string, payload interface{}) {
	if s.EventPublisher == nil {
		return
	}
	if err := s.EventPublisher.Publish(ctx, topic, payload); err != nil {
		s.Logger.Errorw("failed to publish event", "topic", topic, "error", err)
	}
}

// toBillingPrice builds the provider-facing price details from the local
// price hierarchy and the subscription's discounted amount.
func toBillingPrice(details *plan.PriceDetails, sub *subscription.Subscription, promo *promocode.PromoCodeCoupon) billing.SubscriptionPriceDetails {
	price := billing.SubscriptionPriceDetails{
		PriceID:        details.Price.ID,
		PlanName:       details.Plan.Name,
		Amount:         sub.Price,
		StartupFee:     sub.StartupFee,
		Currency:       sub.Currency,
		PeriodInMonths: details.Period.PeriodInMonths,
	}
	if promo != nil {
		price.PromoCode = promo.Code
	}
	return price
}
