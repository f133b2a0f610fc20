package enrollment

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCourseFull signals no seat was available at admission time.
	ErrCourseFull = errors.New("course is full")

	// ErrAlreadyEnrolled rejects a duplicate enrollment.
	ErrAlreadyEnrolled = errors.New("already enrolled")

	// ErrNotEnrolled rejects a drop for a student without a seat.
	ErrNotEnrolled = errors.New("not enrolled")

	// ErrCourseNotFound signals the course does not exist in the
	// institution.
	ErrCourseNotFound = errors.New("course not found")

	// ErrConcurrentUpdate signals the optimistic write lost every
	// retry attempt.
	ErrConcurrentUpdate = errors.New("concurrent enrollment update")
)

// CourseSeats is the admission-relevant state of one course.
type CourseSeats struct {
	CourseID      string    `json:"course_id"`
	InstitutionID string    `json:"institution_id"`
	Title         string    `json:"title,omitempty"`
	TeacherID     string    `json:"teacher_id,omitempty"`
	MaxStudents   int       `json:"max_students"`
	Enrolled      []string  `json:"enrolled"`
	Version       int64     `json:"version"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Seats returns the current occupancy.
func (c *CourseSeats) Seats() int {
	return len(c.Enrolled)
}

// Full reports whether admission would exceed capacity. Admin
// enrollment bypasses this check, so occupancy can legitimately sit
// above MaxStudents.
func (c *CourseSeats) Full() bool {
	return len(c.Enrolled) >= c.MaxStudents
}

// Has reports whether the student holds a seat.
func (c *CourseSeats) Has(studentID string) bool {
	for _, id := range c.Enrolled {
		if id == studentID {
			return true
		}
	}
	return false
}

// Result reports the outcome of one admission operation.
type Result struct {
	CourseID        string `json:"course_id"`
	StudentID       string `json:"student_id"`
	Enrolled        int    `json:"enrolled"`
	MaxStudents     int    `json:"max_students"`
	WasOverCapacity bool   `json:"was_over_capacity,omitempty"`
}

// SeatStore guards course seat state. Implementations must make
// Enroll and Drop atomic per course: two concurrent enrollments into
// the last seat must admit exactly one student.
type SeatStore interface {
	// GetCourse returns the seat state, ErrCourseNotFound when the
	// course does not exist under the institution.
	GetCourse(ctx context.Context, institutionID, courseID string) (*CourseSeats, error)

	// Enroll admits a student if a seat is free. force bypasses the
	// capacity check but never the duplicate check.
	Enroll(ctx context.Context, institutionID, courseID, studentID string, force bool) (*CourseSeats, error)

	// Drop releases the student's seat.
	Drop(ctx context.Context, institutionID, courseID, studentID string) (*CourseSeats, error)
}
