package types

import ierr "github.com/wellpath/wellpath/internal/errors"

// PaymentIssueStatus is the dunning sub-state-machine:
// Open -> PatientNotified -> Resolved.
type PaymentIssueStatus string

const (
	PaymentIssueStatusOpen            PaymentIssueStatus = "open"
	PaymentIssueStatusPatientNotified PaymentIssueStatus = "patient_notified"
	PaymentIssueStatusResolved        PaymentIssueStatus = "resolved"
)

// IsOutstanding reports whether the issue still blocks plan changes.
func (s PaymentIssueStatus) IsOutstanding() bool {
	return s == PaymentIssueStatusOpen || s == PaymentIssueStatusPatientNotified
}

func (s PaymentIssueStatus) Validate() error {
	switch s {
	case PaymentIssueStatusOpen, PaymentIssueStatusPatientNotified, PaymentIssueStatusResolved:
		return nil
	default:
		return ierr.NewErrorf("invalid payment issue status: %s", s).
			WithHint("Unknown payment issue status").
			Mark(ierr.ErrValidation)
	}
}
