package flow

import (
	"time"

	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// MarkSubscriptionAsPaidFlow records the (vendor, external id) integration
// link once billing succeeds. Idempotent: an existing identical link
// produces no actions.
type MarkSubscriptionAsPaidFlow struct {
	Subscription  *subscription.Subscription
	ExistingLinks []*subscription.SubscriptionIntegration
	Vendor        types.PaymentVendor
	ExternalID    string
	Now           time.Time
	Base          types.BaseModel
}

type MarkSubscriptionAsPaidResult struct {
	Link *subscription.SubscriptionIntegration
	// AlreadyLinked is set when the link existed before this flow ran.
	AlreadyLinked bool
	Actions       []Action
}

func (f MarkSubscriptionAsPaidFlow) Execute() (*MarkSubscriptionAsPaidResult, error) {
	if f.ExternalID == "" {
		return nil, ierr.NewError("external id is required").Mark(ierr.ErrValidation)
	}
	if err := f.Vendor.Validate(); err != nil {
		return nil, err
	}

	for _, link := range f.ExistingLinks {
		if link.Vendor == f.Vendor && link.ExternalID == f.ExternalID {
			return &MarkSubscriptionAsPaidResult{Link: link, AlreadyLinked: true}, nil
		}
	}

	link := &subscription.SubscriptionIntegration{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INTEGRATION),
		SubscriptionID: f.Subscription.ID,
		Vendor:         f.Vendor,
		ExternalID:     f.ExternalID,
		BaseModel:      f.Base,
	}

	return &MarkSubscriptionAsPaidResult{
		Link:    link,
		Actions: []Action{CreateIntegrationLink{Link: link}},
	}, nil
}
