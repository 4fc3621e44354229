package paymentissue

import (
	"context"

	"github.com/wellpath/wellpath/internal/types"
)

// Repository defines the interface for payment issue persistence operations
type Repository interface {
	// Create creates a new payment issue
	Create(ctx context.Context, issue *PaymentIssue) error

	// Update persists changes to a payment issue
	Update(ctx context.Context, issue *PaymentIssue) error

	// Get retrieves a payment issue by ID
	Get(ctx context.Context, id string) (*PaymentIssue, error)

	// GetOutstandingByExternalID returns the Open or PatientNotified issue
	// for a (vendor, external id) pair, or a not-found error.
	GetOutstandingByExternalID(ctx context.Context, vendor types.PaymentVendor, externalID string) (*PaymentIssue, error)

	// ListOutstanding returns all outstanding issues for the practice on
	// the context, used by the dunning notification job.
	ListOutstanding(ctx context.Context) ([]*PaymentIssue, error)
}
