package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/tenant"
)

func newManager(t *testing.T) (*Manager, *tenant.MemoryStore) {
	t.Helper()

	store := tenant.NewMemoryStore()
	store.PutInstitution(tenant.Institution{ID: "inst-a", Status: tenant.InstitutionStatusActive})
	store.PutInstitution(tenant.Institution{ID: "inst-b", Status: tenant.InstitutionStatusActive})
	store.PutPrincipal(tenant.Principal{
		ID: "u-1",
		Profiles: []tenant.InstitutionProfile{
			{InstitutionID: "inst-a", Role: roles.RoleStudent, Status: tenant.ProfileStatusActive},
			{InstitutionID: "inst-b", Role: roles.RoleTeacher, Status: tenant.ProfileStatusActive},
		},
	})

	resolver := tenant.NewResolver(store, store, observability.NopLogger())
	manager := NewManager(NewMemoryStore(), resolver, observability.NopLogger(), observability.NewMetrics())
	return manager, store
}

func TestManagerEstablishAndCurrent(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	sess, err := manager.Login(ctx, "u-1")
	require.NoError(t, err)

	_, err = manager.CurrentContext(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrContextMissing)

	tc, err := manager.EstablishContext(ctx, sess.ID, "inst-a")
	require.NoError(t, err)
	assert.Equal(t, roles.RoleStudent, tc.Role())

	current, err := manager.CurrentContext(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "inst-a", current.InstitutionID)
}

func TestManagerEstablishDeniedWithoutProfile(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()

	store.PutInstitution(tenant.Institution{ID: "inst-c", Status: tenant.InstitutionStatusActive})

	sess, err := manager.Login(ctx, "u-1")
	require.NoError(t, err)

	_, err = manager.EstablishContext(ctx, sess.ID, "inst-c")
	assert.ErrorIs(t, err, tenant.ErrNoInstitutionalAccess)
}

func TestManagerSwitchLeavesNoResidue(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	sess, err := manager.Login(ctx, "u-1")
	require.NoError(t, err)

	_, err = manager.EstablishContext(ctx, sess.ID, "inst-a")
	require.NoError(t, err)

	tc, err := manager.Switch(ctx, sess.ID, "inst-b")
	require.NoError(t, err)
	assert.Equal(t, "inst-b", tc.InstitutionID)
	assert.Equal(t, roles.RoleTeacher, tc.Role())

	// After the switch no context for inst-a is observable.
	current, err := manager.CurrentContext(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "inst-b", current.InstitutionID)

	got, err := manager.store.Get(ctx, sess.ID)
	require.NoError(t, err)
	_, residual := got.Contexts["inst-a"]
	assert.False(t, residual)
}

func TestManagerSwitchToInaccessibleKeepsOldContext(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()

	store.PutInstitution(tenant.Institution{ID: "inst-c", Status: tenant.InstitutionStatusActive})

	sess, err := manager.Login(ctx, "u-1")
	require.NoError(t, err)
	_, err = manager.EstablishContext(ctx, sess.ID, "inst-a")
	require.NoError(t, err)

	// Establish-first ordering: a failed switch must not clear the
	// working context.
	_, err = manager.Switch(ctx, sess.ID, "inst-c")
	require.Error(t, err)

	current, err := manager.CurrentContext(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "inst-a", current.InstitutionID)
}

func TestManagerRebuildsCorruptContext(t *testing.T) {
	manager, store := newManager(t)
	ctx := context.Background()

	sess, err := manager.Login(ctx, "u-1")
	require.NoError(t, err)

	first, err := manager.EstablishContext(ctx, sess.ID, "inst-a")
	require.NoError(t, err)
	assert.Equal(t, roles.RoleStudent, first.Role())

	// Promote behind the session's back; cached context is now stale.
	principal, err := store.GetPrincipal(ctx, "u-1")
	require.NoError(t, err)
	profile, _ := principal.Profile("inst-a")
	profile.Role = roles.RoleTeacher
	require.NoError(t, store.SaveProfile(ctx, "u-1", profile))

	rebuilt, err := manager.EstablishContext(ctx, sess.ID, "inst-a")
	require.NoError(t, err)
	assert.Equal(t, roles.RoleTeacher, rebuilt.Role())
}

func TestManagerLogout(t *testing.T) {
	manager, _ := newManager(t)
	ctx := context.Background()

	sess, err := manager.Login(ctx, "u-1")
	require.NoError(t, err)
	require.NoError(t, manager.Logout(ctx, sess.ID))

	_, err = manager.CurrentContext(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
