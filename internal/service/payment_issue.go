package service

import (
	"context"
	"time"

	"github.com/wellpath/wellpath/internal/api/dto"
	"github.com/wellpath/wellpath/internal/domain/patient"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/flow"
	"github.com/wellpath/wellpath/internal/publisher"
	"github.com/wellpath/wellpath/internal/types"
)

// PaymentIssueService manages the dunning lifecycle of payment issues:
// opening them on failed charges, notifying patients on a cooldown, and
// resolving them when payment lands.
type PaymentIssueService interface {
	// CreateOrProgressIssue opens an issue for a failed charge, or records
	// another failure on the existing outstanding one.
	CreateOrProgressIssue(ctx context.Context, vendor types.PaymentVendor, externalID string) (*paymentissue.PaymentIssue, bool, error)

	// ProcessPaymentIssues runs the notification pass over all outstanding
	// issues of the practice on the context.
	ProcessPaymentIssues(ctx context.Context) (*dto.BatchResult, error)

	// ResolveIssue marks the outstanding issue for the external id as
	// resolved. Missing or already-resolved issues are a no-op.
	ResolveIssue(ctx context.Context, vendor types.PaymentVendor, externalID string) error
}

type paymentIssueService struct {
	ServiceParams
	materializer *Materializer
}

func NewPaymentIssueService(params ServiceParams) PaymentIssueService {
	return &paymentIssueService{
		ServiceParams: params,
		materializer:  NewMaterializer(params),
	}
}

func (s *paymentIssueService) CreateOrProgressIssue(ctx context.Context, vendor types.PaymentVendor, externalID string) (*paymentissue.PaymentIssue, bool, error) {
	existing, err := s.PaymentIssueRepo.GetOutstandingByExternalID(ctx, vendor, externalID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, false, err
	}

	now := time.Now().UTC()
	var result *flow.CreatePaymentIssueResult
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = flow.CreatePaymentIssueFlow{
			Existing:   existing,
			Vendor:     vendor,
			ExternalID: externalID,
			Now:        now,
			Base:       types.GetDefaultBaseModel(ctx),
		}.Execute()
		if err != nil {
			return err
		}
		return s.materializer.Apply(ctx, result.Actions)
	})
	if err != nil {
		return nil, false, err
	}

	if !result.Reused {
		s.publishIssueEvent(ctx, publisher.TopicPaymentIssueOpened, result.Issue)
	}
	return result.Issue, result.Reused, nil
}

func (s *paymentIssueService) ProcessPaymentIssues(ctx context.Context) (*dto.BatchResult, error) {
	issues, err := s.PaymentIssueRepo.ListOutstanding(ctx)
	if err != nil {
		return nil, err
	}

	cooldown := s.Config.PaymentIssue.NotificationCooldown
	now := time.Now().UTC()

	result := &dto.BatchResult{}
	for _, issue := range issues {
		notified, err := s.processOne(ctx, issue, cooldown, now)
		if err != nil {
			s.Logger.Errorw("failed to process payment issue",
				"payment_issue_id", issue.ID,
				"external_id", issue.ExternalID,
				"error", err)
			result.Failed++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if notified {
			result.Processed++
		}
	}
	return result, nil
}

func (s *paymentIssueService) processOne(ctx context.Context, issue *paymentissue.PaymentIssue, cooldown time.Duration, now time.Time) (bool, error) {
	if !issue.CanNotify(now, cooldown) {
		return false, nil
	}

	// Generate the payment link best-effort. The notification goes out
	// regardless: a broken link generator must not stall dunning.
	link := ""
	if p, err := s.patientForIssue(ctx, issue); err == nil {
		gateway, gerr := s.BillingRegistry.Get(issue.Vendor)
		if gerr == nil {
			link, err = gateway.GeneratePaymentLink(ctx, p, issue.ExternalID)
			if err != nil {
				s.Logger.Warnw("failed to generate payment link",
					"payment_issue_id", issue.ID,
					"external_id", issue.ExternalID,
					"error", err)
				link = ""
			}
		}
	}

	var result *flow.ProcessPaymentIssueResult
	err := s.DB.WithTx(ctx, func(ctx context.Context) error {
		var err error
		result, err = flow.ProcessPaymentIssueFlow{
			Issue:       issue,
			PaymentLink: link,
			Cooldown:    cooldown,
			Now:         now,
		}.Execute()
		if err != nil {
			return err
		}
		return s.materializer.Apply(ctx, result.Actions)
	})
	if err != nil {
		return false, err
	}
	return result.Notified, nil
}

func (s *paymentIssueService) ResolveIssue(ctx context.Context, vendor types.PaymentVendor, externalID string) error {
	issue, err := s.PaymentIssueRepo.GetOutstandingByExternalID(ctx, vendor, externalID)
	if err != nil {
		if ierr.IsNotFound(err) {
			return nil
		}
		return err
	}

	now := time.Now().UTC()
	err = s.DB.WithTx(ctx, func(ctx context.Context) error {
		issue.Resolve(now)
		return s.materializer.Apply(ctx, []flow.Action{flow.UpdatePaymentIssue{Issue: issue}})
	})
	if err != nil {
		return err
	}

	s.publishIssueEvent(ctx, publisher.TopicPaymentIssueResolved, issue)
	return nil
}

// patientForIssue walks external id to integration link to subscription to
// patient.
func (s *paymentIssueService) patientForIssue(ctx context.Context, issue *paymentissue.PaymentIssue) (*patient.Patient, error) {
	link, err := s.SubIntegrationRepo.GetByExternalID(ctx, issue.Vendor, issue.ExternalID)
	if err != nil {
		return nil, err
	}
	sub, err := s.SubRepo.Get(ctx, link.SubscriptionID)
	if err != nil {
		return nil, err
	}
	return s.PatientRepo.Get(ctx, sub.PatientID)
}

func (s *paymentIssueService) publishIssueEvent(ctx context.Context, topic string, issue *paymentissue.PaymentIssue) {
	if s.EventPublisher == nil {
		return
	}
	event := publisher.PaymentIssueEvent{
		PaymentIssueID: issue.ID,
		ExternalID:     issue.ExternalID,
		Vendor:         issue.Vendor,
	}
	if err := s.EventPublisher.Publish(ctx, topic, event); err != nil {
		s.Logger.Errorw("failed to publish event", "topic", topic, "error", err)
	}
}
