package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/registrar/pkg/tenant"
)

func testContext(institutionID string) tenant.Context {
	return tenant.Context{
		InstitutionID: institutionID,
		PrincipalID:   "u-1",
		Institution:   tenant.Institution{ID: institutionID, Status: tenant.InstitutionStatusActive},
		Profile:       tenant.InstitutionProfile{InstitutionID: institutionID, Status: tenant.ProfileStatusActive},
		EstablishedAt: time.Now(),
	}
}

func TestMemoryStoreCreateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "u-1", sess.PrincipalID)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	now := time.Now()
	clock := func() time.Time { return now }
	store := NewMemoryStore(WithTTL(time.Hour), WithClock(func() time.Time { return clock() }))
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1")
	require.NoError(t, err)

	// Within the TTL the session survives.
	now = now.Add(30 * time.Minute)
	_, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)

	// Activity resets the window: another 45 minutes is still fine.
	now = now.Add(45 * time.Minute)
	_, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)

	// Past the TTL the entry is removed on read.
	now = now.Add(2 * time.Hour)
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := store.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryStoreSweep(t *testing.T) {
	now := time.Now()
	store := NewMemoryStore(WithTTL(time.Hour), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	stale, err := store.Create(ctx, "u-old")
	require.NoError(t, err)

	// Move time forward, then create a fresh session.
	now = now.Add(90 * time.Minute)
	fresh, err := store.Create(ctx, "u-new")
	require.NoError(t, err)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, stale.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestMemoryStoreSetAndSwitchContext(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1")
	require.NoError(t, err)

	require.NoError(t, store.SetContext(ctx, sess.ID, testContext("inst-a")))
	require.NoError(t, store.SetContext(ctx, sess.ID, testContext("inst-b")))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "inst-b", got.CurrentInstitutionID)
	assert.Len(t, got.Contexts, 2)

	// Switch drops every cached context, not just the current one.
	require.NoError(t, store.SwitchContext(ctx, sess.ID, testContext("inst-c")))
	got, err = store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "inst-c", got.CurrentInstitutionID)
	require.Len(t, got.Contexts, 1)
	_, hasA := got.Contexts["inst-a"]
	assert.False(t, hasA)
}

func TestMemoryStoreClearContexts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1")
	require.NoError(t, err)
	require.NoError(t, store.SetContext(ctx, sess.ID, testContext("inst-a")))

	require.NoError(t, store.ClearContexts(ctx, sess.ID))
	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Contexts)
	assert.Empty(t, got.CurrentInstitutionID)
	_, ok := got.CurrentContext()
	assert.False(t, ok)
}

func TestMemoryStoreDestroy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1")
	require.NoError(t, err)
	require.NoError(t, store.Destroy(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Destroying twice is not an error.
	assert.NoError(t, store.Destroy(ctx, sess.ID))
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1")
	require.NoError(t, err)
	require.NoError(t, store.SetContext(ctx, sess.ID, testContext("inst-a")))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	// Mutating the returned session must not affect the cache.
	delete(got.Contexts, "inst-a")
	got.CurrentInstitutionID = "inst-evil"

	again, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "inst-a", again.CurrentInstitutionID)
	assert.Contains(t, again.Contexts, "inst-a")
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	sess, err := store.Create(ctx, "u-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			inst := "inst-a"
			if n%2 == 0 {
				inst = "inst-b"
			}
			_ = store.SwitchContext(ctx, sess.ID, testContext(inst))
			got, err := store.Get(ctx, sess.ID)
			if err != nil {
				return
			}
			// A reader never observes a current institution without
			// its context: the switch is atomic.
			if got.CurrentInstitutionID != "" {
				if _, ok := got.Contexts[got.CurrentInstitutionID]; !ok {
					t.Errorf("half-switched session observed: current=%s contexts=%v",
						got.CurrentInstitutionID, got.Contexts)
				}
			}
		}(i)
	}
	wg.Wait()
}
