package store

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/goodaegwang/cirrus/internal/core"
)

// CachedCredentialStore caches hot read paths in front of another
// credential store. Client rows and service existence change rarely but
// are hit on every token request; user rows are never cached because
// account closure must be seen immediately.
type CachedCredentialStore struct {
	core.CredentialStore
	cache *gocache.Cache
}

func NewCachedCredentialStore(inner core.CredentialStore, ttl time.Duration) *CachedCredentialStore {
	return &CachedCredentialStore{
		CredentialStore: inner,
		cache:           gocache.New(ttl, 2*ttl),
	}
}

// GetClient caches successful lookups keyed by the full credential pair.
// Failed lookups are not cached, so a registered client becomes visible
// without waiting for expiry.
func (s *CachedCredentialStore) GetClient(ctx context.Context, clientID, clientSecret string) (*core.Client, error) {
	key := "client\x00" + clientID + "\x00" + clientSecret
	if cached, ok := s.cache.Get(key); ok {
		out := *cached.(*core.Client)
		return &out, nil
	}

	client, err := s.CredentialStore.GetClient(ctx, clientID, clientSecret)
	if err != nil {
		return nil, err
	}
	s.cache.SetDefault(key, client)
	return client, nil
}

func (s *CachedCredentialStore) HasService(ctx context.Context, serviceID string) (bool, error) {
	key := "service\x00" + serviceID
	if cached, ok := s.cache.Get(key); ok {
		return cached.(bool), nil
	}

	exists, err := s.CredentialStore.HasService(ctx, serviceID)
	if err != nil {
		return false, err
	}
	if exists {
		// only positive results are cached; see GetClient
		s.cache.SetDefault(key, exists)
	}
	return exists, nil
}
