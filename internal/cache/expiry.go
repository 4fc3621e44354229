package cache

import "time"

const (
	ExpiryDefaultInMemory = 30 * time.Minute
	ExpiryCleanupInterval = 10 * time.Minute

	// ExpiryPriceCatalog bounds how stale the cached Opal price catalog
	// may be.
	ExpiryPriceCatalog = 15 * time.Minute
)
