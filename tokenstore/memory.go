package tokenstore

import (
	"context"
	"sync"

	"github.com/jellydator/ttlcache/v3"

	"github.com/gatherhq/gather-go/oauth"
)

// MemoryStore keeps tokens in process memory. Suitable for tests and
// single-process tools; nothing survives a restart. Records carry no TTL:
// the refresh token must stay retrievable after the access token expires.
type MemoryStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, *oauth.Token]
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	cache := ttlcache.New(
		ttlcache.WithDisableTouchOnHit[string, *oauth.Token](),
	)
	go cache.Start()

	return &MemoryStore{cache: cache}
}

// Store implements Store.Store.
func (s *MemoryStore) Store(_ context.Context, identifier string, token *oauth.Token) error {
	if err := validate(token); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Set(identifier, cloneToken(token), ttlcache.NoTTL)

	return nil
}

// Retrieve implements Store.Retrieve.
func (s *MemoryStore) Retrieve(_ context.Context, identifier string) (*oauth.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(identifier)
	if item == nil {
		return nil, nil
	}

	return cloneToken(item.Value()), nil
}

// Refresh implements Store.Refresh. The read-merge-write runs under the
// store mutex so concurrent refreshes cannot interleave.
func (s *MemoryStore) Refresh(_ context.Context, identifier string, token *oauth.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *oauth.Token
	if item := s.cache.Get(identifier); item != nil {
		existing = item.Value()
	}

	merged := merge(existing, token)
	if err := validate(merged); err != nil {
		return err
	}
	s.cache.Set(identifier, cloneToken(merged), ttlcache.NoTTL)

	return nil
}

// Delete implements Store.Delete.
func (s *MemoryStore) Delete(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(identifier)

	return nil
}

// Available always reports true; memory needs no connection.
func (s *MemoryStore) Available(_ context.Context) bool {
	return true
}

// Close stops the cache's background goroutine.
func (s *MemoryStore) Close() {
	s.cache.Stop()
}
