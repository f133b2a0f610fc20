package api

import (
	"context"
	"errors"
	"strings"

	"github.com/campuskit/registrar/pkg/access"
	"github.com/campuskit/registrar/pkg/enrollment"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/tenant"
)

// Accessors builds the resource accessor dispatch table over the
// backing stores. Every resource type the role registry knows gets an
// accessor here; lookups are always filtered by the requesting
// institution, so resources from other tenants resolve to not-found.
func Accessors(seats enrollment.SeatStore, users tenant.UserStore, institutions tenant.InstitutionStore) map[roles.Resource]access.ResourceAccessor {
	return map[roles.Resource]access.ResourceAccessor{
		roles.ResourceCourse:      CourseAccessor(seats),
		roles.ResourceEnrollment:  EnrollmentAccessor(seats),
		roles.ResourceUser:        UserAccessor(users),
		roles.ResourceInstitution: InstitutionAccessor(institutions),
	}
}

// CourseAccessor resolves courses through the seat store.
func CourseAccessor(seats enrollment.SeatStore) access.ResourceAccessor {
	return access.AccessorFunc(func(ctx context.Context, institutionID, resourceID string) (*access.ResourceInfo, error) {
		course, err := seats.GetCourse(ctx, institutionID, resourceID)
		if err != nil {
			if errors.Is(err, enrollment.ErrCourseNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &access.ResourceInfo{
			ID:            course.CourseID,
			InstitutionID: course.InstitutionID,
			TeacherID:     course.TeacherID,
		}, nil
	})
}

// EnrollmentAccessor resolves "<course_id>:<student_id>" seat
// assignments. The enrolled student owns the enrollment; the course
// teacher is attached for ownCoursesOnly grants.
func EnrollmentAccessor(seats enrollment.SeatStore) access.ResourceAccessor {
	return access.AccessorFunc(func(ctx context.Context, institutionID, resourceID string) (*access.ResourceInfo, error) {
		courseID, studentID, ok := strings.Cut(resourceID, ":")
		if !ok || courseID == "" || studentID == "" {
			return nil, nil
		}
		course, err := seats.GetCourse(ctx, institutionID, courseID)
		if err != nil {
			if errors.Is(err, enrollment.ErrCourseNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if !course.Has(studentID) {
			return nil, nil
		}
		return &access.ResourceInfo{
			ID:            resourceID,
			InstitutionID: course.InstitutionID,
			OwnerID:       studentID,
			TeacherID:     course.TeacherID,
		}, nil
	})
}

// UserAccessor resolves principals holding a profile in the
// requesting institution. Principals without one stay invisible.
func UserAccessor(users tenant.UserStore) access.ResourceAccessor {
	return access.AccessorFunc(func(ctx context.Context, institutionID, resourceID string) (*access.ResourceInfo, error) {
		principal, err := users.GetPrincipal(ctx, resourceID)
		if err != nil {
			if errors.Is(err, tenant.ErrPrincipalNotFound) {
				return nil, nil
			}
			return nil, err
		}
		if _, ok := principal.Profile(institutionID); !ok {
			return nil, nil
		}
		return &access.ResourceInfo{
			ID:            principal.ID,
			InstitutionID: institutionID,
			OwnerID:       principal.ID,
		}, nil
	})
}

// InstitutionAccessor resolves the institution itself. Only the
// institution of the current tenant context is visible.
func InstitutionAccessor(institutions tenant.InstitutionStore) access.ResourceAccessor {
	return access.AccessorFunc(func(ctx context.Context, institutionID, resourceID string) (*access.ResourceInfo, error) {
		if resourceID != institutionID {
			return nil, nil
		}
		inst, err := institutions.GetInstitution(ctx, resourceID)
		if err != nil {
			if errors.Is(err, tenant.ErrInstitutionNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return &access.ResourceInfo{ID: inst.ID, InstitutionID: inst.ID}, nil
	})
}
