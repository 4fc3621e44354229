package employer

import "context"

// Repository defines the interface for employer product lookups.
type Repository interface {
	// Get retrieves an employer product by ID
	Get(ctx context.Context, id string) (*EmployerProduct, error)
}
