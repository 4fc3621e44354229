package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/domain/subscription"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}
	copied := *sub
	if sub.CancellationRequest != nil {
		req := *sub.CancellationRequest
		copied.CancellationRequest = &req
	}
	copied.PromoCodeCouponID = copyStringPtr(sub.PromoCodeCouponID)
	copied.EmployerProductID = copyStringPtr(sub.EmployerProductID)
	copied.CanceledAt = copyTimePtr(sub.CanceledAt)
	if sub.CanceledReasonType != nil {
		rt := *sub.CanceledReasonType
		copied.CanceledReasonType = &rt
	}
	return &copied
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("subscription %s not found", id).Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemorySubscriptionStore) GetLatestByPatient(ctx context.Context, patientID string) (*subscription.Subscription, error) {
	subs := lo.Filter(s.All(ctx), func(sub *subscription.Subscription, _ int) bool {
		return sub.PatientID == patientID && sub.Status == types.StatusPublished
	})
	if len(subs) == 0 {
		return nil, ierr.NewErrorf("no subscription found for patient %s", patientID).Mark(ierr.ErrNotFound)
	}
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].StartDate.Equal(subs[j].StartDate) {
			return subs[i].StartDate.After(subs[j].StartDate)
		}
		return subs[i].ID > subs[j].ID
	})
	return copySubscription(subs[0]), nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *subscription.Filter) ([]*subscription.Subscription, error) {
	matched := lo.Filter(s.All(ctx), func(sub *subscription.Subscription, _ int) bool {
		return subscriptionMatchesFilter(sub, filter)
	})
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ID < matched[j].ID
	})
	return lo.Map(matched, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func subscriptionMatchesFilter(sub *subscription.Subscription, filter *subscription.Filter) bool {
	if sub.Status != types.StatusPublished {
		return false
	}
	if filter == nil {
		return true
	}
	if len(filter.PatientIDs) > 0 && !lo.Contains(filter.PatientIDs, sub.PatientID) {
		return false
	}
	if filter.EndDateOn != nil && !sameUTCDate(sub.EndDate, *filter.EndDateOn) {
		return false
	}
	if filter.CancellationDueBefore != nil {
		if sub.CancellationRequest == nil || sub.IsCanceled() {
			return false
		}
		if sub.CancellationRequest.EffectiveDate.After(*filter.CancellationDueBefore) {
			return false
		}
	}
	if filter.ActiveAt != nil && !sub.IsActive(*filter.ActiveAt) {
		return false
	}
	return true
}

func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

func copyStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
