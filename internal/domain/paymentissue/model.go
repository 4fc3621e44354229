package paymentissue

import (
	"time"

	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// PaymentIssue records a billing delinquency for a subscription, keyed by
// the provider-side external id because the originating webhooks only carry
// that id. At most one outstanding (Open or PatientNotified) issue exists
// per (vendor, external id).
type PaymentIssue struct {
	ID          string                   `json:"id"`
	Vendor      types.PaymentVendor      `json:"vendor"`
	ExternalID  string                   `json:"external_id"`
	IssueStatus types.PaymentIssueStatus `json:"issue_status"`

	// PaymentLinkURL is the patient-facing payment resolution link. May be
	// empty: link generation failure does not block notification.
	PaymentLinkURL string `json:"payment_link_url,omitempty"`

	FirstFailedAt  time.Time  `json:"first_failed_at"`
	LastFailedAt   time.Time  `json:"last_failed_at"`
	FailureCount   int        `json:"failure_count"`
	LastNotifiedAt *time.Time `json:"last_notified_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`

	types.BaseModel
}

// New opens a payment issue for a failed charge.
func New(base types.BaseModel, vendor types.PaymentVendor, externalID string, now time.Time) *PaymentIssue {
	return &PaymentIssue{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_ISSUE),
		Vendor:        vendor,
		ExternalID:    externalID,
		IssueStatus:   types.PaymentIssueStatusOpen,
		FirstFailedAt: now,
		LastFailedAt:  now,
		FailureCount:  1,
		BaseModel:     base,
	}
}

// IsOutstanding reports whether the issue still represents an unresolved
// dunning cycle.
func (p *PaymentIssue) IsOutstanding() bool {
	return p.IssueStatus.IsOutstanding()
}

// RecordFailure progresses the issue on a repeated payment-failed event.
func (p *PaymentIssue) RecordFailure(now time.Time) error {
	if !p.IsOutstanding() {
		return ierr.NewError("cannot record a failure on a resolved payment issue").
			WithReportableDetails(map[string]interface{}{
				"payment_issue_id": p.ID,
				"external_id":      p.ExternalID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	p.FailureCount++
	p.LastFailedAt = now
	p.UpdatedAt = now
	return nil
}

// CanNotify reports whether the notification cooldown has elapsed.
func (p *PaymentIssue) CanNotify(now time.Time, cooldown time.Duration) bool {
	if !p.IsOutstanding() {
		return false
	}
	if p.LastNotifiedAt == nil {
		return true
	}
	return now.Sub(*p.LastNotifiedAt) >= cooldown
}

// MarkNotified transitions the issue to PatientNotified. An empty link is
// tolerated: failing to generate a payment link must not block notifying
// the patient.
func (p *PaymentIssue) MarkNotified(link string, now time.Time) error {
	if !p.IsOutstanding() {
		return ierr.NewError("cannot notify on a resolved payment issue").
			WithReportableDetails(map[string]interface{}{
				"payment_issue_id": p.ID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	p.IssueStatus = types.PaymentIssueStatusPatientNotified
	if link != "" {
		p.PaymentLinkURL = link
	}
	p.LastNotifiedAt = &now
	p.UpdatedAt = now
	return nil
}

// Resolve transitions the issue to Resolved. Resolving an already-resolved
// issue is a no-op so paid webhooks stay idempotent.
func (p *PaymentIssue) Resolve(now time.Time) {
	if p.IssueStatus == types.PaymentIssueStatusResolved {
		return
	}
	p.IssueStatus = types.PaymentIssueStatusResolved
	p.ResolvedAt = &now
	p.UpdatedAt = now
}

func (p *PaymentIssue) Validate() error {
	if p.ExternalID == "" {
		return ierr.NewError("payment issue requires an external id").Mark(ierr.ErrValidation)
	}
	if err := p.Vendor.Validate(); err != nil {
		return err
	}
	return p.IssueStatus.Validate()
}
