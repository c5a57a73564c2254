package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/storage"
)

type countingLookup struct {
	profiles map[string]*models.Profile
	err      error
	calls    int
}

func (l *countingLookup) GetProfile(ctx context.Context, accountID string) (*models.Profile, error) {
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	p, ok := l.profiles[accountID]
	if !ok {
		return nil, fmt.Errorf("get profile: %w", storage.ErrNotFound)
	}
	return p, nil
}

type cacheCounter struct{ hits, misses int }

func (c *cacheCounter) RecordProfileCache(hit bool) {
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

func TestProfileResolver_CachesHits(t *testing.T) {
	lookup := &countingLookup{profiles: map[string]*models.Profile{
		"acc-1": models.NewClientProfile("acc-1", 1),
	}}
	counter := &cacheCounter{}
	r := NewProfileResolver(lookup, 10, time.Minute, counter)

	for i := 0; i < 3; i++ {
		p, err := r.Resolve(context.Background(), "acc-1")
		require.NoError(t, err)
		assert.Equal(t, "acc-1", p.ID)
	}
	assert.Equal(t, 1, lookup.calls)
	assert.Equal(t, 2, counter.hits)
	assert.Equal(t, 1, counter.misses)

	r.Invalidate("acc-1")
	_, err := r.Resolve(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, lookup.calls)
}

func TestProfileResolver_MissingIsNotCached(t *testing.T) {
	lookup := &countingLookup{profiles: map[string]*models.Profile{}}
	r := NewProfileResolver(lookup, 10, time.Minute, nil)

	_, err := r.Resolve(context.Background(), "acc-2")
	assert.ErrorIs(t, err, ErrNoProfile)

	lookup.profiles["acc-2"] = models.NewClientProfile("acc-2", 2)
	p, err := r.Resolve(context.Background(), "acc-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), *p.ClientID)
	assert.Equal(t, 2, lookup.calls)
}

func TestProfileResolver_StoreError(t *testing.T) {
	lookup := &countingLookup{err: errors.New("connection refused")}
	r := NewProfileResolver(lookup, 0, time.Minute, nil)

	_, err := r.Resolve(context.Background(), "acc-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoProfile)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestProfileResolver_Expiry(t *testing.T) {
	lookup := &countingLookup{profiles: map[string]*models.Profile{
		"acc-1": {ID: "acc-1", Role: models.RoleAdmin},
	}}
	r := NewProfileResolver(lookup, 10, 20*time.Millisecond, nil)

	_, err := r.Resolve(context.Background(), "acc-1")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = r.Resolve(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, lookup.calls)
}
