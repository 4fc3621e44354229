package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/wellpath/wellpath/internal/domain/entitlement"
	"github.com/wellpath/wellpath/internal/domain/paymentissue"
	ierr "github.com/wellpath/wellpath/internal/errors"
	"github.com/wellpath/wellpath/internal/types"
)

// InMemoryPaymentIssueStore implements paymentissue.Repository
type InMemoryPaymentIssueStore struct {
	*InMemoryStore[*paymentissue.PaymentIssue]
}

func NewInMemoryPaymentIssueStore() *InMemoryPaymentIssueStore {
	return &InMemoryPaymentIssueStore{
		InMemoryStore: NewInMemoryStore[*paymentissue.PaymentIssue](),
	}
}

func copyPaymentIssue(issue *paymentissue.PaymentIssue) *paymentissue.PaymentIssue {
	if issue == nil {
		return nil
	}
	copied := *issue
	copied.LastNotifiedAt = copyTimePtr(issue.LastNotifiedAt)
	copied.ResolvedAt = copyTimePtr(issue.ResolvedAt)
	return &copied
}

func (s *InMemoryPaymentIssueStore) Create(ctx context.Context, issue *paymentissue.PaymentIssue) error {
	if issue == nil {
		return ierr.NewError("payment issue cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, issue.ID, copyPaymentIssue(issue))
}

func (s *InMemoryPaymentIssueStore) Update(ctx context.Context, issue *paymentissue.PaymentIssue) error {
	if issue == nil {
		return ierr.NewError("payment issue cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, issue.ID, copyPaymentIssue(issue))
}

func (s *InMemoryPaymentIssueStore) Get(ctx context.Context, id string) (*paymentissue.PaymentIssue, error) {
	issue, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, ierr.NewErrorf("payment issue %s not found", id).Mark(ierr.ErrNotFound)
	}
	return copyPaymentIssue(issue), nil
}

func (s *InMemoryPaymentIssueStore) GetOutstandingByExternalID(ctx context.Context, vendor types.PaymentVendor, externalID string) (*paymentissue.PaymentIssue, error) {
	issue, found := lo.Find(s.All(ctx), func(issue *paymentissue.PaymentIssue) bool {
		return issue.Vendor == vendor && issue.ExternalID == externalID && issue.IsOutstanding()
	})
	if !found {
		return nil, ierr.NewErrorf("no outstanding payment issue for %s/%s", vendor, externalID).Mark(ierr.ErrNotFound)
	}
	return copyPaymentIssue(issue), nil
}

func (s *InMemoryPaymentIssueStore) ListOutstanding(ctx context.Context) ([]*paymentissue.PaymentIssue, error) {
	issues := lo.Filter(s.All(ctx), func(issue *paymentissue.PaymentIssue, _ int) bool {
		return issue.IsOutstanding()
	})
	return lo.Map(issues, func(issue *paymentissue.PaymentIssue, _ int) *paymentissue.PaymentIssue {
		return copyPaymentIssue(issue)
	}), nil
}

// InMemoryEntitlementStore implements entitlement.Repository
type InMemoryEntitlementStore struct {
	*InMemoryStore[*entitlement.Entitlement]
}

func NewInMemoryEntitlementStore() *InMemoryEntitlementStore {
	return &InMemoryEntitlementStore{
		InMemoryStore: NewInMemoryStore[*entitlement.Entitlement](),
	}
}

func copyEntitlement(e *entitlement.Entitlement) *entitlement.Entitlement {
	if e == nil {
		return nil
	}
	copied := *e
	copied.ExpiresAt = copyTimePtr(e.ExpiresAt)
	copied.PaidAt = copyTimePtr(e.PaidAt)
	return &copied
}

func (s *InMemoryEntitlementStore) Create(ctx context.Context, e *entitlement.Entitlement) error {
	if e == nil {
		return ierr.NewError("entitlement cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Create(ctx, e.ID, copyEntitlement(e))
}

func (s *InMemoryEntitlementStore) Update(ctx context.Context, e *entitlement.Entitlement) error {
	if e == nil {
		return ierr.NewError("entitlement cannot be nil").Mark(ierr.ErrValidation)
	}
	return s.InMemoryStore.Update(ctx, e.ID, copyEntitlement(e))
}

func (s *InMemoryEntitlementStore) ListActiveBySubscription(ctx context.Context, subscriptionID string) ([]*entitlement.Entitlement, error) {
	now := time.Now().UTC()
	items := lo.Filter(s.All(ctx), func(e *entitlement.Entitlement, _ int) bool {
		return e.SubscriptionID == subscriptionID && !e.IsExpired(now)
	})
	return lo.Map(items, func(e *entitlement.Entitlement, _ int) *entitlement.Entitlement {
		return copyEntitlement(e)
	}), nil
}

func (s *InMemoryEntitlementStore) GetByExternalInvoiceID(ctx context.Context, externalInvoiceID string) (*entitlement.Entitlement, error) {
	e, found := lo.Find(s.All(ctx), func(e *entitlement.Entitlement) bool {
		return e.ExternalInvoiceID == externalInvoiceID
	})
	if !found {
		return nil, ierr.NewErrorf("no entitlement for invoice %s", externalInvoiceID).Mark(ierr.ErrNotFound)
	}
	return copyEntitlement(e), nil
}

func (s *InMemoryEntitlementStore) MarkPaid(ctx context.Context, externalInvoiceID string) error {
	e, found := lo.Find(s.All(ctx), func(e *entitlement.Entitlement) bool {
		return e.ExternalInvoiceID == externalInvoiceID
	})
	if !found {
		return ierr.NewErrorf("no entitlement for invoice %s", externalInvoiceID).Mark(ierr.ErrNotFound)
	}
	now := time.Now().UTC()
	updated := copyEntitlement(e)
	updated.PaidAt = &now
	updated.UpdatedAt = now
	return s.InMemoryStore.Update(ctx, updated.ID, updated)
}
