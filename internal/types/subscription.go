package types

import ierr "github.com/wellpath/wellpath/internal/errors"

// PaymentStrategy distinguishes paying the full period price up front from
// paying in monthly installments over the period.
type PaymentStrategy string

const (
	PaymentStrategyFullPayment  PaymentStrategy = "full_payment"
	PaymentStrategyInstallments PaymentStrategy = "installments"
)

func (s PaymentStrategy) Validate() error {
	switch s {
	case PaymentStrategyFullPayment, PaymentStrategyInstallments:
		return nil
	default:
		return ierr.NewErrorf("invalid payment strategy: %s", s).
			WithHint("Payment strategy must be full_payment or installments").
			Mark(ierr.ErrValidation)
	}
}

// PaymentFlowCategory classifies how a plan is funded. A change of category
// during a price change requires entitlement substitution rather than
// carry-over.
type PaymentFlowCategory string

const (
	PaymentFlowStandard           PaymentFlowCategory = "standard"
	PaymentFlowEmployerSubsidized PaymentFlowCategory = "employer_subsidized"
)

// CancellationReasonType is a closed enumeration driving downstream
// reporting and payment-issue cleanup.
type CancellationReasonType string

const (
	CancellationReasonPatientRequested        CancellationReasonType = "patient_requested"
	CancellationReasonReplaced                CancellationReasonType = "replaced"
	CancellationReasonCanceledInPaymentSystem CancellationReasonType = "canceled_in_payment_system"
	CancellationReasonNonPayment              CancellationReasonType = "non_payment"
	CancellationReasonPracticeInitiated       CancellationReasonType = "practice_initiated"
)

func (r CancellationReasonType) Validate() error {
	switch r {
	case CancellationReasonPatientRequested,
		CancellationReasonReplaced,
		CancellationReasonCanceledInPaymentSystem,
		CancellationReasonNonPayment,
		CancellationReasonPracticeInitiated:
		return nil
	default:
		return ierr.NewErrorf("invalid cancellation reason type: %s", r).
			WithHint("Unknown cancellation reason type").
			Mark(ierr.ErrValidation)
	}
}
