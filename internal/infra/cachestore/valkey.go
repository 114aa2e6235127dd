// Package cachestore implements the retrieval result/embedding cache
// against Valkey using a GET/SET-EX pattern, with owner-scoped
// invalidation.
package cachestore

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/raghavpatnecha/mnemosyne/internal/domain/cache"
	"github.com/raghavpatnecha/mnemosyne/internal/domain/retrieval"
)

// ValkeyCache implements both retrieval.EmbeddingCache/ResultCache and
// cache.Invalidator against one Valkey-compatible client.
type ValkeyCache struct {
	client valkey.Client
	cfg    cache.Config
}

// NewValkeyCache constructs the cache.
func NewValkeyCache(client valkey.Client, cfg cache.Config) *ValkeyCache {
	if cfg.SearchTTL <= 0 {
		cfg.SearchTTL = cache.DefaultConfig().SearchTTL
	}
	if cfg.EmbeddingTTL <= 0 {
		cfg.EmbeddingTTL = cache.DefaultConfig().EmbeddingTTL
	}
	return &ValkeyCache{client: client, cfg: cfg}
}

func (c *ValkeyCache) GetEmbedding(ctx context.Context, model, text string) ([]float32, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(cache.EmbeddingKey(model, text)).Build())
	payload, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var vec []float32
	if err := json.Unmarshal([]byte(payload), &vec); err != nil {
		return nil, false, err
	}
	return vec, true, nil
}

func (c *ValkeyCache) SetEmbedding(ctx context.Context, model, text string, embedding []float32) error {
	payload, err := json.Marshal(embedding)
	if err != nil {
		return err
	}
	return c.setString(ctx, cache.EmbeddingKey(model, text), string(payload), c.cfg.EmbeddingTTL)
}

func (c *ValkeyCache) GetResult(ctx context.Context, key string) (retrieval.Result, bool, error) {
	resp := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	payload, err := resp.ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return retrieval.Result{}, false, nil
		}
		return retrieval.Result{}, false, err
	}
	var result retrieval.Result
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return retrieval.Result{}, false, err
	}
	return result, true, nil
}

func (c *ValkeyCache) SetResult(ctx context.Context, key string, result retrieval.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.setString(ctx, key, string(payload), c.cfg.SearchTTL)
}

// InvalidateOwner drops every cached search result under an owner's
// namespace. Search keys are built as "search:<ownerId>:<hash>" precisely
// so this scan needs no secondary index. Embedding entries are untouched.
func (c *ValkeyCache) InvalidateOwner(ownerID int64) error {
	ctx := context.Background()
	pattern := "search:" + strconv.FormatInt(ownerID, 10) + ":*"
	var cursor uint64
	for {
		resp := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(pattern).Count(200).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return err
		}
		if len(entry.Elements) > 0 {
			cmd := c.client.B().Unlink().Key(entry.Elements...).Build()
			if err := c.client.Do(ctx, cmd).Error(); err != nil {
				return err
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			break
		}
	}
	return nil
}

func (c *ValkeyCache) setString(ctx context.Context, key, value string, ttl time.Duration) error {
	builder := c.client.B().Set().Key(key).Value(value)
	var cmd valkey.Completed
	if ttl > 0 {
		if ttl < time.Second {
			ttl = time.Second
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}
	return c.client.Do(ctx, cmd).Error()
}

var _ retrieval.EmbeddingCache = (*ValkeyCache)(nil)
var _ retrieval.ResultCache = (*ValkeyCache)(nil)
var _ cache.Invalidator = (*ValkeyCache)(nil)
