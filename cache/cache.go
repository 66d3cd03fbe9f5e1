package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("cache: key not found")

// Store memoizes raw response payloads keyed by request identity. It can be
// backed by memory, SQLite, or any other KV store.
//
// Staleness is decided at read time: Get with maxAge > 0 treats entries older
// than maxAge as expired, removes them, and reports ErrNotFound. With
// maxAge <= 0 an entry never goes stale by age.
type Store interface {
	Get(ctx context.Context, key string, maxAge time.Duration) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Len(ctx context.Context) (int, error)
}

// Key builds the deterministic cache key for a request. The key always
// combines method and full URL; the serialized body is appended only when
// matchBody is set and a body is present. A body that cannot be marshalled
// falls back to the method+URL key rather than failing.
func Key(method, url string, body any, matchBody bool) string {
	if matchBody && body != nil {
		if b, err := json.Marshal(body); err == nil {
			return method + ":" + url + ":" + string(b)
		}
	}
	return method + ":" + url
}
