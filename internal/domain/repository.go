package domain

import (
	"context"
	"time"
)

// TextExtractor converts label images into text. Implementations hold a
// long-lived recognition session: Initialize once, extract many, Cleanup when
// the scanning session ends (on all exit paths).
type TextExtractor interface {
	Initialize(ctx context.Context) error
	ExtractText(ctx context.Context, image []byte) (string, error)
	ExtractStructured(ctx context.Context, image []byte) (*ExtractedText, error)
	Cleanup()
}

// RegistryClient reads the external compound registry.
type RegistryClient interface {
	ListCompounds(ctx context.Context, page, pageSize int) (*CompoundListing, error)
}

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
