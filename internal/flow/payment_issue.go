package flow

import (
	"time"

	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	"github.com/wellpath/wellpath/internal/types"
)

// CreatePaymentIssueFlow opens a payment issue for a failed charge, or
// progresses the existing outstanding one: at most one issue may be open
// per (vendor, external id), so a repeated failure never creates a
// duplicate.
type CreatePaymentIssueFlow struct {
	// Existing is the outstanding issue for the external id, nil if none.
	Existing   *paymentissue.PaymentIssue
	Vendor     types.PaymentVendor
	ExternalID string
	Now        time.Time
	Base       types.BaseModel
}

type CreatePaymentIssueResult struct {
	Issue *paymentissue.PaymentIssue
	// Reused is set when an existing outstanding issue was progressed
	// instead of a new one created.
	Reused  bool
	Actions []Action
}

func (f CreatePaymentIssueFlow) Execute() (*CreatePaymentIssueResult, error) {
	if f.Existing != nil && f.Existing.IsOutstanding() {
		if err := f.Existing.RecordFailure(f.Now); err != nil {
			return nil, err
		}
		return &CreatePaymentIssueResult{
			Issue:   f.Existing,
			Reused:  true,
			Actions: []Action{UpdatePaymentIssue{Issue: f.Existing}},
		}, nil
	}

	issue := paymentissue.New(f.Base, f.Vendor, f.ExternalID, f.Now)
	if err := issue.Validate(); err != nil {
		return nil, err
	}

	return &CreatePaymentIssueResult{
		Issue:   issue,
		Actions: []Action{CreatePaymentIssue{Issue: issue}},
	}, nil
}

// ProcessPaymentIssueFlow decides whether an outstanding issue should
// notify the patient: the cooldown must have elapsed, and a missing payment
// link is tolerated rather than blocking the notification.
type ProcessPaymentIssueFlow struct {
	Issue       *paymentissue.PaymentIssue
	PaymentLink string
	Cooldown    time.Duration
	Now         time.Time
}

type ProcessPaymentIssueResult struct {
	Issue *paymentissue.PaymentIssue
	// Notified is set when the issue transitioned to PatientNotified.
	Notified bool
	Actions  []Action
}

func (f ProcessPaymentIssueFlow) Execute() (*ProcessPaymentIssueResult, error) {
	if !f.Issue.CanNotify(f.Now, f.Cooldown) {
		return &ProcessPaymentIssueResult{Issue: f.Issue}, nil
	}
	if err := f.Issue.MarkNotified(f.PaymentLink, f.Now); err != nil {
		return nil, err
	}
	return &ProcessPaymentIssueResult{
		Issue:    f.Issue,
		Notified: true,
		Actions:  []Action{UpdatePaymentIssue{Issue: f.Issue}},
	}, nil
}
