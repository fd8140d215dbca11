package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chikingsley/kreuzberg/internal/ocr"
)

// Results caches extraction output in Redis keyed by backend, language and
// image content hash, so identical uploads skip the engine entirely.
type Results struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewResults(rdb *redis.Client, ttl time.Duration) *Results {
	return &Results{rdb: rdb, ttl: ttl}
}

// Key derives the cache key for one image/backend/language combination.
func Key(backend, language string, image []byte) string {
	sum := sha256.Sum256(image)
	return "ocr:" + backend + ":" + language + ":" + hex.EncodeToString(sum[:])
}

// Get returns the cached result, or nil on miss or decode failure. Cache
// trouble never fails a request.
func (r *Results) Get(ctx context.Context, key string) *ocr.ExtractionResult {
	if r == nil || r.rdb == nil {
		return nil
	}
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil
	}
	var res ocr.ExtractionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil
	}
	return &res
}

// Set stores the result best-effort. A non-positive TTL disables caching.
func (r *Results) Set(ctx context.Context, key string, res *ocr.ExtractionResult) error {
	if r == nil || r.rdb == nil || r.ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, key, raw, r.ttl).Err()
}
