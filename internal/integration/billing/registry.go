package billing

import (
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// Registry maps vendor tags to gateway implementations. Lookup failures
// surface as validation errors so a bad vendor tag in a webhook is not
// retried forever.
type Registry struct {
	gateways map[types.PaymentVendor]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[types.PaymentVendor]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Vendor()] = g
	}
	return r
}

// Get returns the gateway for a vendor.
func (r *Registry) Get(vendor types.PaymentVendor) (Gateway, error) {
	g, ok := r.gateways[vendor]
	if !ok {
		return nil, ierr.NewErrorf("no billing gateway registered for vendor %s", vendor).
			WithHint("Unknown billing provider").
			Mark(ierr.ErrValidation)
	}
	return g, nil
}
