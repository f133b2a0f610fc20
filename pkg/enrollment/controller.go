package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/campuskit/registrar/pkg/access"
	"github.com/campuskit/registrar/pkg/audit"
	"github.com/campuskit/registrar/pkg/observability"
	"github.com/campuskit/registrar/pkg/roles"
	"github.com/campuskit/registrar/pkg/tenant"
)

// Controller is the admission front door. Every operation is
// permission-checked against the caller's role and recorded on the
// audit trail. Admin enrollment bypasses the capacity limit but is
// flagged when it pushes a course over.
type Controller struct {
	seats     SeatStore
	validator *access.Validator
	sink      audit.Sink
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewController creates an enrollment controller.
func NewController(seats SeatStore, validator *access.Validator, sink audit.Sink, logger *observability.Logger, metrics *observability.Metrics) *Controller {
	return &Controller{
		seats:     seats,
		validator: validator,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
	}
}

// Enroll admits the calling student into a course in their current
// institution, respecting capacity.
func (c *Controller) Enroll(ctx context.Context, tc tenant.Context, courseID string, meta audit.RequestMeta) (*Result, error) {
	ec := roles.EvalContext{UserID: tc.PrincipalID, ResourceOwnerID: tc.PrincipalID}
	decision := c.validator.CheckPermission(ctx, tc, roles.ResourceEnrollment, roles.ActionCreate, ec, meta)
	if !decision.Allowed {
		c.count("enroll", "denied")
		return nil, fmt.Errorf("%s: %w", decision.Reason, access.ErrInsufficientPrivileges)
	}
	return c.admit(ctx, tc, audit.EventEnroll, "enroll", courseID, tc.PrincipalID, false, meta)
}

// Drop releases the calling student's own seat.
func (c *Controller) Drop(ctx context.Context, tc tenant.Context, courseID string, meta audit.RequestMeta) (*Result, error) {
	ec := roles.EvalContext{UserID: tc.PrincipalID, ResourceOwnerID: tc.PrincipalID}
	decision := c.validator.CheckPermission(ctx, tc, roles.ResourceEnrollment, roles.ActionDelete, ec, meta)
	if !decision.Allowed {
		c.count("drop", "denied")
		return nil, fmt.Errorf("%s: %w", decision.Reason, access.ErrInsufficientPrivileges)
	}
	return c.release(ctx, tc, audit.EventDrop, "drop", courseID, tc.PrincipalID, meta)
}

// AdminEnroll places any student into a course, past capacity if need
// be. Over-capacity placements are flagged in the result and counted.
func (c *Controller) AdminEnroll(ctx context.Context, tc tenant.Context, courseID, studentID string, meta audit.RequestMeta) (*Result, error) {
	ec := roles.EvalContext{UserID: tc.PrincipalID, ResourceOwnerID: studentID}
	decision := c.validator.CheckPermission(ctx, tc, roles.ResourceEnrollment, roles.ActionCreate, ec, meta)
	if !decision.Allowed || tc.Role() != roles.RoleInstitutionAdmin {
		c.count("admin_enroll", "denied")
		return nil, fmt.Errorf("admin enrollment requires institution admin: %w", access.ErrInsufficientPrivileges)
	}
	return c.admit(ctx, tc, audit.EventAdminEnroll, "admin_enroll", courseID, studentID, true, meta)
}

// AdminRemove releases any student's seat.
func (c *Controller) AdminRemove(ctx context.Context, tc tenant.Context, courseID, studentID string, meta audit.RequestMeta) (*Result, error) {
	ec := roles.EvalContext{UserID: tc.PrincipalID, ResourceOwnerID: studentID}
	decision := c.validator.CheckPermission(ctx, tc, roles.ResourceEnrollment, roles.ActionDelete, ec, meta)
	if !decision.Allowed || tc.Role() != roles.RoleInstitutionAdmin {
		c.count("admin_remove", "denied")
		return nil, fmt.Errorf("admin removal requires institution admin: %w", access.ErrInsufficientPrivileges)
	}
	return c.release(ctx, tc, audit.EventAdminRemove, "admin_remove", courseID, studentID, meta)
}

// Course returns current seat state for a course in the caller's
// institution.
func (c *Controller) Course(ctx context.Context, tc tenant.Context, courseID string, meta audit.RequestMeta) (*CourseSeats, error) {
	decision := c.validator.CheckPermission(ctx, tc, roles.ResourceCourse, roles.ActionRead, roles.EvalContext{UserID: tc.PrincipalID}, meta)
	if !decision.Allowed {
		return nil, fmt.Errorf("%s: %w", decision.Reason, access.ErrInsufficientPrivileges)
	}
	return c.seats.GetCourse(ctx, tc.InstitutionID, courseID)
}

func (c *Controller) admit(ctx context.Context, tc tenant.Context, event audit.EventType, operation, courseID, studentID string, force bool, meta audit.RequestMeta) (*Result, error) {
	seats, err := c.seats.Enroll(ctx, tc.InstitutionID, courseID, studentID, force)
	if err != nil {
		c.count(operation, outcome(err))
		c.audit(ctx, tc, event, courseID, studentID, false, err.Error(), meta)
		return nil, err
	}

	result := &Result{
		CourseID:        courseID,
		StudentID:       studentID,
		Enrolled:        seats.Seats(),
		MaxStudents:     seats.MaxStudents,
		WasOverCapacity: seats.Seats() > seats.MaxStudents,
	}
	if result.WasOverCapacity && c.metrics != nil {
		c.metrics.OverCapacityEnrollsTotal.Inc()
	}

	c.count(operation, "admitted")
	reason := fmt.Sprintf("seat %d/%d", result.Enrolled, result.MaxStudents)
	if result.WasOverCapacity {
		reason += " (over capacity)"
	}
	c.audit(ctx, tc, event, courseID, studentID, true, reason, meta)
	return result, nil
}

func (c *Controller) release(ctx context.Context, tc tenant.Context, event audit.EventType, operation, courseID, studentID string, meta audit.RequestMeta) (*Result, error) {
	seats, err := c.seats.Drop(ctx, tc.InstitutionID, courseID, studentID)
	if err != nil {
		c.count(operation, outcome(err))
		c.audit(ctx, tc, event, courseID, studentID, false, err.Error(), meta)
		return nil, err
	}

	c.count(operation, "released")
	c.audit(ctx, tc, event, courseID, studentID, true, fmt.Sprintf("seat released, %d/%d", seats.Seats(), seats.MaxStudents), meta)
	return &Result{
		CourseID:    courseID,
		StudentID:   studentID,
		Enrolled:    seats.Seats(),
		MaxStudents: seats.MaxStudents,
	}, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrCourseFull):
		return "full"
	case errors.Is(err, ErrAlreadyEnrolled):
		return "duplicate"
	case errors.Is(err, ErrNotEnrolled):
		return "not_enrolled"
	case errors.Is(err, ErrCourseNotFound):
		return "not_found"
	case errors.Is(err, ErrConcurrentUpdate):
		return "contention"
	default:
		return "error"
	}
}

func (c *Controller) count(operation, outcome string) {
	if c.metrics != nil {
		c.metrics.EnrollmentAttemptsTotal.WithLabelValues(operation, outcome).Inc()
	}
}

func (c *Controller) audit(ctx context.Context, tc tenant.Context, event audit.EventType, courseID, studentID string, allowed bool, reason string, meta audit.RequestMeta) {
	entry := &audit.Entry{
		EventType:     event,
		PrincipalID:   tc.PrincipalID,
		InstitutionID: tc.InstitutionID,
		Action:        string(event),
		Resource:      string(roles.ResourceEnrollment),
		ResourceID:    courseID,
		Allowed:       allowed,
		Reason:        reason,
		Metadata:      map[string]string{"student_id": studentID},
	}
	if err := c.sink.Record(ctx, entry.WithMeta(meta)); err != nil {
		c.logger.WithError(err).Error("audit write failed")
	}
}
