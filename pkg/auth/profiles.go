package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

// ErrNoProfile is returned for verified accounts without a portal profile
var ErrNoProfile = errors.New("account has no portal profile")

// ProfileLookup loads the profile of an account
type ProfileLookup interface {
	GetProfile(ctx context.Context, accountID string) (*models.Profile, error)
}

// CacheRecorder counts cache hits and misses
type CacheRecorder interface {
	RecordProfileCache(hit bool)
}

// ProfileResolver resolves account ids to profiles through a size and TTL bounded cache.
// Missing profiles are not cached so a freshly linked account gains access immediately.
type ProfileResolver struct {
	store    ProfileLookup
	cache    *lru.LRU[string, *models.Profile]
	recorder CacheRecorder
}

// NewProfileResolver creates a resolver caching up to size profiles for ttl
func NewProfileResolver(store ProfileLookup, size int, ttl time.Duration, recorder CacheRecorder) *ProfileResolver {
	if size <= 0 {
		size = 1024
	}
	return &ProfileResolver{
		store:    store,
		cache:    lru.NewLRU[string, *models.Profile](size, nil, ttl),
		recorder: recorder,
	}
}

// Resolve returns the profile of accountID
func (r *ProfileResolver) Resolve(ctx context.Context, accountID string) (*models.Profile, error) {
	if p, ok := r.cache.Get(accountID); ok {
		r.record(true)
		return p, nil
	}
	r.record(false)

	p, err := r.store.GetProfile(ctx, accountID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoProfile
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	r.cache.Add(accountID, p)
	return p, nil
}

// Invalidate drops the cached profile of accountID
func (r *ProfileResolver) Invalidate(accountID string) {
	r.cache.Remove(accountID)
}

func (r *ProfileResolver) record(hit bool) {
	if r.recorder != nil {
		r.recorder.RecordProfileCache(hit)
	}
}
