package service

import (
	"context"
	"time"

	"github.com/wellpath/wellpath/internal/api/dto"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/flow"
	"github.com/wellpath/wellpath/internal/publisher"
	"github.com/wellpath/wellpath/internal/types"
)

// CancellationJobService executes scheduled cancellations whose effective
// date has arrived. Scheduling only stamps a CancellationRequest on the
// subscription; this job performs the actual local cancel and the external
// provider cancel.
type CancellationJobService interface {
	ExecuteDueCancellations(ctx context.Context) (*dto.BatchResult, error)
}

type cancellationJobService struct {
	ServiceParams
	materializer *Materializer
}

func NewCancellationJobService(params ServiceParams) CancellationJobService {
	return &cancellationJobService{
		ServiceParams: params,
		materializer:  NewMaterializer(params),
	}
}

func (s *cancellationJobService) ExecuteDueCancellations(ctx context.Context) (*dto.BatchResult, error) {
	now := time.Now().UTC()
	subs, err := s.SubRepo.List(ctx, &subscription.Filter{
		QueryFilter:           types.NewNoLimitQueryFilter(),
		CancellationDueBefore: &now,
	})
	if err != nil {
		return nil, err
	}

	result := &dto.BatchResult{}
	for _, sub := range subs {
		if err := s.executeOne(ctx, sub, now); err != nil {
			s.Logger.Errorw("failed to execute scheduled cancellation",
				"subscription_id", sub.ID,
				"error", err)
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.Processed++
	}
	return result, nil
}

func (s *cancellationJobService) executeOne(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	if sub.CancellationRequest == nil || sub.IsCanceled() {
		return nil
	}
	req := *sub.CancellationRequest

	links, err := s.SubIntegrationRepo.ListBySubscription(ctx, sub.ID)
	if err != nil {
		return err
	}
	issues, err := s.outstandingIssuesFor(ctx, links)
	if err != nil {
		return err
	}

	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		// A cancellation effective at the period end only becomes due
		// once the period has lapsed; the flow must still accept it.
		result, err := flow.CancelSubscriptionFlow{
			Subscription:      sub,
			OutstandingIssues: issues,
			ReasonType:        req.ReasonType,
			Reason:            req.Reason,
			AllowLapsedPeriod: true,
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
			found, err := gateway.TryCancelSubscription(ctx, link.ExternalID, &req.EffectiveDate, string(req.ReasonType))
			if err != nil {
				return err
			}
			if !found {
				s.Logger.Warnw("external subscription already gone during scheduled cancel",
					"subscription_id", sub.ID,
					"vendor", link.Vendor,
					"external_id", link.ExternalID)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.EventPublisher != nil {
		event := publisher.SubscriptionEvent{
			SubscriptionID: sub.ID,
			PatientID:      sub.PatientID,
			PracticeID:     sub.PracticeID,
		}
		if err := s.EventPublisher.Publish(ctx, publisher.TopicSubscriptionCanceled, event); err != nil {
			s.Logger.Errorw("failed to publish event",
				"topic", publisher.TopicSubscriptionCanceled,
				"error", err)
		}
	}
	return nil
}

func (s *cancellationJobService) outstandingIssuesFor(ctx context.Context, links []*subscription.SubscriptionIntegration) ([]*paymentissue.PaymentIssue, error) {
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
