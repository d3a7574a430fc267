package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gatherhq/gather-go/apierror"
	"github.com/gatherhq/gather-go/oauth"
)

// DefaultCachePrefix namespaces token keys in the shared cache.
const DefaultCachePrefix = "tokens"

// CacheClient is the slice of a Redis client the cache store uses.
// *redis.Client satisfies it; tests substitute a fake.
type CacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	ExpireAt(ctx context.Context, key string, tm time.Time) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// CacheStore persists tokens in a shared cache. Each record's key expires at
// the token's expiry instant, so stale credentials evict themselves; the
// refresh token goes with them, which suits deployments that re-authorize
// after long idle periods instead of refreshing.
type CacheStore struct {
	client CacheClient
	prefix string
}

// NewCacheStore wraps a cache client. An empty prefix falls back to
// DefaultCachePrefix.
func NewCacheStore(client CacheClient, prefix string) *CacheStore {
	if prefix == "" {
		prefix = DefaultCachePrefix
	}
	return &CacheStore{client: client, prefix: prefix}
}

// cacheKey returns the namespaced key for an identifier.
func (s *CacheStore) cacheKey(identifier string) string {
	return fmt.Sprintf("%s:%s", s.prefix, identifier)
}

// Store implements Store.Store. The record is serialized as JSON with the
// expiry as an RFC 3339 timestamp, and the key's own expiry is pinned to the
// token's.
func (s *CacheStore) Store(ctx context.Context, identifier string, token *oauth.Token) error {
	if err := validate(token); err != nil {
		return err
	}
	return s.write(ctx, identifier, token)
}

// Retrieve implements Store.Retrieve.
func (s *CacheStore) Retrieve(ctx context.Context, identifier string) (*oauth.Token, error) {
	raw, err := s.client.Get(ctx, s.cacheKey(identifier)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.KindNetwork, "reading token from cache", err)
	}

	var token oauth.Token
	if err := json.Unmarshal([]byte(raw), &token); err != nil {
		return nil, apierror.Wrap(apierror.KindStorage, fmt.Sprintf("cached token for %q is corrupted", identifier), err)
	}
	if token.Scopes == nil {
		token.Scopes = []string{}
	}

	return &token, nil
}

// Refresh implements Store.Refresh. The read-merge-write is not atomic
// across processes; concurrent refreshes land equivalent credentials and
// the last write wins.
func (s *CacheStore) Refresh(ctx context.Context, identifier string, token *oauth.Token) error {
	existing, err := s.Retrieve(ctx, identifier)
	if err != nil {
		return err
	}

	merged := merge(existing, token)
	if err := validate(merged); err != nil {
		return err
	}
	return s.write(ctx, identifier, merged)
}

// Delete implements Store.Delete.
func (s *CacheStore) Delete(ctx context.Context, identifier string) error {
	if err := s.client.Del(ctx, s.cacheKey(identifier)).Err(); err != nil {
		return apierror.Wrap(apierror.KindNetwork, "deleting token from cache", err)
	}
	return nil
}

// Available reports whether the cache answers a ping.
func (s *CacheStore) Available(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

func (s *CacheStore) write(ctx context.Context, identifier string, token *oauth.Token) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return apierror.Wrap(apierror.KindStorage, "serializing token record", err)
	}

	key := s.cacheKey(identifier)
	if err := s.client.Set(ctx, key, string(payload), 0).Err(); err != nil {
		return apierror.Wrap(apierror.KindNetwork, "writing token to cache", err)
	}
	if err := s.client.ExpireAt(ctx, key, token.ExpiresAt).Err(); err != nil {
		return apierror.Wrap(apierror.KindNetwork, "setting token expiry in cache", err)
	}

	return nil
}
