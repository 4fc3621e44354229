package subscription

import (
	"context"
	"time"

	"github.com/wellpath/wellpath/internal/types"
)

// Repository defines the interface for subscription persistence operations
type Repository interface {
	// Create creates a new subscription
	Create(ctx context.Context, sub *Subscription) error

	// Get retrieves a subscription by ID
	Get(ctx context.Context, id string) (*Subscription, error)

	// Update persists changes to a subscription
	Update(ctx context.Context, sub *Subscription) error

	// Delete removes a subscription row. Only the overwrite migration
	// utility uses this.
	Delete(ctx context.Context, id string) error

	// GetLatestByPatient returns the patient's most recent subscription,
	// resolved by ordering on start date then id.
	GetLatestByPatient(ctx context.Context, patientID string) (*Subscription, error)

	// List returns subscriptions matching the filter
	List(ctx context.Context, filter *Filter) ([]*Subscription, error)
}

// IntegrationRepository persists (vendor, external id) links.
type IntegrationRepository interface {
	// Create records an integration link
	Create(ctx context.Context, link *SubscriptionIntegration) error

	// ListBySubscription returns all links for a subscription
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*SubscriptionIntegration, error)

	// GetByExternalID resolves a link by vendor and external id
	GetByExternalID(ctx context.Context, vendor types.PaymentVendor, externalID string) (*SubscriptionIntegration, error)
}

// RenewalStrategyRepository persists per-subscription renewal strategies.
type RenewalStrategyRepository interface {
	Create(ctx context.Context, strategy *RenewalStrategy) error
	Update(ctx context.Context, strategy *RenewalStrategy) error
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (*RenewalStrategy, error)
}

// Filter defines query parameters for listing subscriptions.
type Filter struct {
	QueryFilter *types.QueryFilter

	// PatientIDs filters by specific patients
	PatientIDs []string

	// EndDateOn selects subscriptions whose period ends on the given day
	// (UTC date match), used by the batch renewal command.
	EndDateOn *time.Time

	// CancellationDueBefore selects subscriptions with a pending
	// CancellationRequest whose effective date has arrived.
	CancellationDueBefore *time.Time

	// ActiveAt selects subscriptions active at the given time.
	ActiveAt *time.Time
}

func (f *Filter) GetLimit() int {
	if f == nil {
		return types.FilterDefaultLimit
	}
	return f.QueryFilter.GetLimit()
}

func (f *Filter) GetOffset() int {
	if f == nil {
		return 0
	}
	return f.QueryFilter.GetOffset()
}
