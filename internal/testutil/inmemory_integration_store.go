package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// InMemorySubscriptionIntegrationStore implements
// subscription.IntegrationRepository
type InMemorySubscriptionIntegrationStore struct {
	*InMemoryStore[*subscription.SubscriptionIntegration]
}

func NewInMemorySubscriptionIntegrationStore() *InMemorySubscriptionIntegrationStore {
	return &InMemorySubscriptionIntegrationStore{
		InMemoryStore: NewInMemoryStore[*subscription.SubscriptionIntegration](),
	}
}

func copyIntegration(link *subscription.SubscriptionIntegration) *subscription.SubscriptionIntegration {
	if link == nil {
		return nil
	}
	copied := *link
	return &copied
}

func (s *InMemorySubscriptionIntegrationStore) Create(ctx context.Context, link *subscription.SubscriptionIntegration) error {
	if link == nil {
		return ierr.NewError("integration link cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, link.ID, copyIntegration(link))
}

func (s *InMemorySubscriptionIntegrationStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*subscription.SubscriptionIntegration, error) {
	links := lo.Filter(s.All(ctx), func(link *subscription.SubscriptionIntegration, _ int) bool {
		return link.SubscriptionID == subscriptionID
	})
	return lo.Map(links, func(link *subscription.SubscriptionIntegration, _ int) *subscription.SubscriptionIntegration {
		return copyIntegration(link)
	}), nil
}

func (s *InMemorySubscriptionIntegrationStore) GetByExternalID(ctx context.Context, vendor types.PaymentVendor, externalID string) (*subscription.SubscriptionIntegration, error) {
	link, found := lo.Find(s.All(ctx), func(link *subscription.SubscriptionIntegration) bool {
		return link.Vendor == vendor && link.ExternalID == externalID
	})
	if !found {
		return nil, ierr.NewErrorf("no integration link for %s/%s", vendor, externalID).Mark(ierr.ErrNotFound)
	}
	return copyIntegration(link), nil
}

// InMemoryRenewalStrategyStore implements
// subscription.RenewalStrategyRepository
type InMemoryRenewalStrategyStore struct {
	*InMemoryStore[*subscription.RenewalStrategy]
}

func NewInMemoryRenewalStrategyStore() *InMemoryRenewalStrategyStore {
	return &InMemoryRenewalStrategyStore{
		InMemoryStore: NewInMemoryStore[*subscription.RenewalStrategy](),
	}
}

func copyRenewalStrategy(strategy *subscription.RenewalStrategy) *subscription.RenewalStrategy {
	if strategy == nil {
		return nil
	}
	copied := *strategy
	copied.PromoCodeCouponID = copyStringPtr(strategy.PromoCodeCouponID)
	copied.EmployerProductID = copyStringPtr(strategy.EmployerProductID)
	return &copied
}

func (s *InMemoryRenewalStrategyStore) Create(ctx context.Context, strategy *subscription.RenewalStrategy) error {
	if strategy == nil {
		return ierr.NewError("renewal strategy cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, strategy.ID, copyRenewalStrategy(strategy))
}

func (s *InMemoryRenewalStrategyStore) Update(ctx context.Context, strategy *subscription.RenewalStrategy) error {
	if strategy == nil {
		return ierr.NewError("renewal strategy cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, strategy.ID, copyRenewalStrategy(strategy))
}

func (s *InMemoryRenewalStrategyStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*subscription.RenewalStrategy, error) {
	strategy, found := lo.Find(s.All(ctx), func(strategy *subscription.RenewalStrategy) bool {
		return strategy.SubscriptionID == subscriptionID
	})
	if !found {
		return nil, ierr.NewErrorf("no renewal strategy for subscription %s", subscriptionID).Mark(ierr.ErrNotFound)
	}
	return copyRenewalStrategy(strategy), nil
}
