// Package cache defines C5's shared contracts: the embedding/result cache
// key construction rules and the owner-scoped invalidation interface. The
// concrete get/set interfaces used by callers (retrieval.EmbeddingCache,
// retrieval.ResultCache) are declared next to their consumer to avoid an
// import cycle; internal/infra/cachestore implements this package's
// Invalidator alongside those structurally-matching interfaces.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Config holds the cache TTL defaults, overridable per deployment.
type Config struct {
	SearchTTL    time.Duration
	EmbeddingTTL time.Duration
}

// DefaultConfig returns the default TTLs: 15 minutes for search results,
// 24 hours for embeddings.
func DefaultConfig() Config {
	return Config{SearchTTL: 15 * time.Minute, EmbeddingTTL: 24 * time.Hour}
}

// EmbeddingKey builds the canonical embedding cache key: "emb:" + model +
// ":" + hex(sha256(text)).
func EmbeddingKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return "emb:" + model + ":" + hex.EncodeToString(sum[:])
}

// Invalidator removes every cached search result belonging to an owner,
// called whenever that owner's documents change. Embedding cache entries
// are untouched — they are keyed by text content, not by owner.
type Invalidator interface {
	InvalidateOwner(ownerID int64) error
}
