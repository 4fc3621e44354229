package types

import ierr "github.com/wellpath/wellpath/internal/errors"

// PaymentVendor tags which external billing provider an integration link or
// webhook event belongs to. One Gateway implementation exists per vendor.
type PaymentVendor string

const (
	PaymentVendorOpal PaymentVendor = "opal"
)

func (v PaymentVendor) Validate() error {
	switch v {
	case PaymentVendorOpal:
		return nil
	default:
		return ierr.NewErrorf("unsupported payment vendor: %s", v).
			WithHint("Unknown billing provider").
			Mark(ierr.ErrValidation)
	}
}
