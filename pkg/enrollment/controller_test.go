package enrollment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/registrar/pkg/access"
	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/tenant"
)

func testController(t *testing.T) (*Controller, *MemorySeatStore, *audit.MemorySink) {
	t.Helper()
	seats := NewMemorySeatStore()
	sink := audit.NewMemorySink(100, nil)
	logger := observability.NopLogger()
	validator := access.NewValidator(roles.NewRegistry(), tenant.NewMemoryStore(), nil, sink, logger, nil)
	return NewController(seats, validator, sink, logger, nil), seats, sink
}

func roleContext(principalID string, role roles.Role) tenant.Context {
	return tenant.Context{
		InstitutionID: "inst-1",
		PrincipalID:   principalID,
		Profile: tenant.InstitutionProfile{
			InstitutionID: "inst-1",
			Role:          role,
			Status:        tenant.ProfileStatusActive,
		},
	}
}

func TestStudentEnrollAndDrop(t *testing.T) {
	ctrl, seats, sink := testController(t)
	seedCourse(seats, "cs101", 2)
	student := roleContext("s1", roles.RoleStudent)

	result, err := ctrl.Enroll(context.Background(), student, "cs101", audit.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Enrolled)
	assert.False(t, result.WasOverCapacity)

	result, err = ctrl.Drop(context.Background(), student, "cs101", audit.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Enrolled)

	// permission check + outcome per operation
	entries, err := sink.Recent(context.Background(), "inst-1", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestStudentEnrollRespectsCapacity(t *testing.T) {
	ctrl, seats, sink := testController(t)
	seedCourse(seats, "cs101", 1, "other")

	_, err := ctrl.Enroll(context.Background(), roleContext("s1", roles.RoleStudent), "cs101", audit.RequestMeta{})
	assert.ErrorIs(t, err, ErrCourseFull)

	alerts, err := sink.Alerts(context.Background(), "inst-1", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, audit.EventEnroll, alerts[0].EventType)
}

func TestTeacherCannotEnroll(t *testing.T) {
	ctrl, seats, _ := testController(t)
	seedCourse(seats, "cs101", 5)

	_, err := ctrl.Enroll(context.Background(), roleContext("t1", roles.RoleTeacher), "cs101", audit.RequestMeta{})
	assert.ErrorIs(t, err, access.ErrInsufficientPrivileges)

	course, err := seats.GetCourse(context.Background(), "inst-1", "cs101")
	require.NoError(t, err)
	assert.Equal(t, 0, course.Seats())
}

func TestAdminEnrollBypassesCapacity(t *testing.T) {
	ctrl, seats, sink := testController(t)
	seedCourse(seats, "cs101", 1, "other")
	admin := roleContext("admin-1", roles.RoleInstitutionAdmin)

	result, err := ctrl.AdminEnroll(context.Background(), admin, "cs101", "s1", audit.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enrolled)
	assert.True(t, result.WasOverCapacity)

	entries, err := sink.Recent(context.Background(), "inst-1", 10)
	require.NoError(t, err)
	var found bool
	for _, e := range entries {
		if e.EventType == audit.EventAdminEnroll {
			found = true
			assert.True(t, e.Allowed)
			assert.Contains(t, e.Reason, "over capacity")
			assert.Equal(t, "s1", e.Metadata["student_id"])
		}
	}
	assert.True(t, found)
}

func TestAdminEnrollRequiresAdmin(t *testing.T) {
	ctrl, seats, _ := testController(t)
	seedCourse(seats, "cs101", 5)

	_, err := ctrl.AdminEnroll(context.Background(), roleContext("s1", roles.RoleStudent), "cs101", "s2", audit.RequestMeta{})
	assert.ErrorIs(t, err, access.ErrInsufficientPrivileges)
}

func TestAdminRemove(t *testing.T) {
	ctrl, seats, sink := testController(t)
	seedCourse(seats, "cs101", 5, "s1")
	admin := roleContext("admin-1", roles.RoleInstitutionAdmin)

	result, err := ctrl.AdminRemove(context.Background(), admin, "cs101", "s1", audit.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Enrolled)

	_, err = ctrl.AdminRemove(context.Background(), admin, "cs101", "s1", audit.RequestMeta{})
	assert.ErrorIs(t, err, ErrNotEnrolled)

	entries, err := sink.Recent(context.Background(), "inst-1", 10)
	require.NoError(t, err)
	var removals int
	for _, e := range entries {
		if e.EventType == audit.EventAdminRemove {
			removals++
		}
	}
	assert.Equal(t, 2, removals)
}

func TestCourseReadIsInstitutionScoped(t *testing.T) {
	ctrl, seats, _ := testController(t)
	seedCourse(seats, "cs101", 5)

	other := roleContext("s1", roles.RoleStudent)
	other.InstitutionID = "inst-2"
	other.Profile.InstitutionID = "inst-2"

	_, err := ctrl.Course(context.Background(), other, "cs101", audit.RequestMeta{})
	assert.ErrorIs(t, err, ErrCourseNotFound)
}
