package domain

import "errors"

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrNotConfigured is returned when catalog or model credentials are missing
	ErrNotConfigured = errors.New("credentials not configured")

	// ErrNoMatch is returned when the waterfall finished without an acceptable candidate
	ErrNoMatch = errors.New("no matching cheaper listing")

	// ErrCatalogUnavailable is returned when the catalog search could not be completed
	ErrCatalogUnavailable = errors.New("catalog search unavailable")

	// ErrCatalogAPIFailure is returned when a catalog API request fails
	ErrCatalogAPIFailure = errors.New("catalog API request failed")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrCacheUnavailable is returned when the result store cannot be reached
	ErrCacheUnavailable = errors.New("cache service unavailable")
)
