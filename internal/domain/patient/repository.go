package patient

import "context"

// Repository defines the interface for patient persistence operations
type Repository interface {
	// Get retrieves a patient by ID
	Get(ctx context.Context, id string) (*Patient, error)

	// Update persists changes to a patient
	Update(ctx context.Context, p *Patient) error
}
