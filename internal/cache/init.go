package cache

import (
	"github.com/wellpath/wellpath/internal/logger"
)

// Initialize initializes the cache system. Only the in-memory cache is
// supported; the price catalog is small and safe to cache per process.
func Initialize(log *logger.Logger) Cache {
	InitializeInMemoryCache()
	log.Infow("cache system initialized", "type", "inmemory")
	return GetInMemoryCache()
}
