package enrollment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/campuskit/registrar/pkg/observability"
)

// maxEnrollRetries bounds the optimistic-write loop. Contention past
// this point surfaces as ErrConcurrentUpdate instead of spinning.
const maxEnrollRetries = 5

// PostgresSeatStore persists seat state in the courses table and
// resolves concurrent admissions with optimistic versioning: the
// UPDATE only lands when the version read is still current, losers
// re-read and retry.
type PostgresSeatStore struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewPostgresSeatStore creates a Postgres-backed seat store.
func NewPostgresSeatStore(db *sql.DB, metrics *observability.Metrics) *PostgresSeatStore {
	return &PostgresSeatStore{db: db, metrics: metrics}
}

const selectCourseQuery = `
	SELECT course_id, institution_id, title, teacher_id, max_students, enrolled_students, version, updated_at
	FROM courses
	WHERE institution_id = $1 AND course_id = $2`

func (s *PostgresSeatStore) getCourse(ctx context.Context, institutionID, courseID string) (*CourseSeats, error) {
	var (
		seats     CourseSeats
		teacherID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, selectCourseQuery, institutionID, courseID).Scan(
		&seats.CourseID,
		&seats.InstitutionID,
		&seats.Title,
		&teacherID,
		&seats.MaxStudents,
		pq.Array(&seats.Enrolled),
		&seats.Version,
		&seats.UpdatedAt,
	)
	seats.TeacherID = teacherID.String
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("course %s in institution %s: %w", courseID, institutionID, ErrCourseNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load course: %w", err)
	}
	return &seats, nil
}

// GetCourse implements SeatStore.
func (s *PostgresSeatStore) GetCourse(ctx context.Context, institutionID, courseID string) (*CourseSeats, error) {
	return s.getCourse(ctx, institutionID, courseID)
}

const updateSeatsQuery = `
	UPDATE courses
	SET enrolled_students = $1, version = version + 1, updated_at = NOW()
	WHERE institution_id = $2 AND course_id = $3 AND version = $4`

// writeSeats attempts the versioned write once. It reports whether
// the write landed.
func (s *PostgresSeatStore) writeSeats(ctx context.Context, seats *CourseSeats, enrolled []string) (bool, error) {
	res, err := s.db.ExecContext(ctx, updateSeatsQuery,
		pq.Array(enrolled), seats.InstitutionID, seats.CourseID, seats.Version)
	if err != nil {
		return false, fmt.Errorf("failed to update course seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// Enroll implements SeatStore.
func (s *PostgresSeatStore) Enroll(ctx context.Context, institutionID, courseID, studentID string, force bool) (*CourseSeats, error) {
	for attempt := 0; attempt < maxEnrollRetries; attempt++ {
		if attempt > 0 && s.metrics != nil {
			s.metrics.EnrollmentRetriesTotal.Inc()
		}

		seats, err := s.getCourse(ctx, institutionID, courseID)
		if err != nil {
			return nil, err
		}
		if seats.Has(studentID) {
			return nil, fmt.Errorf("student %s in course %s: %w", studentID, courseID, ErrAlreadyEnrolled)
		}
		if !force && seats.Full() {
			return nil, fmt.Errorf("course %s at %d/%d: %w", courseID, seats.Seats(), seats.MaxStudents, ErrCourseFull)
		}

		enrolled := append(append([]string(nil), seats.Enrolled...), studentID)
		landed, err := s.writeSeats(ctx, seats, enrolled)
		if err != nil {
			return nil, err
		}
		if landed {
			seats.Enrolled = enrolled
			seats.Version++
			return seats, nil
		}
	}
	return nil, fmt.Errorf("course %s after %d attempts: %w", courseID, maxEnrollRetries, ErrConcurrentUpdate)
}

// Drop implements SeatStore.
func (s *PostgresSeatStore) Drop(ctx context.Context, institutionID, courseID, studentID string) (*CourseSeats, error) {
	for attempt := 0; attempt < maxEnrollRetries; attempt++ {
		if attempt > 0 && s.metrics != nil {
			s.metrics.EnrollmentRetriesTotal.Inc()
		}

		seats, err := s.getCourse(ctx, institutionID, courseID)
		if err != nil {
			return nil, err
		}
		if !seats.Has(studentID) {
			return nil, fmt.Errorf("student %s in course %s: %w", studentID, courseID, ErrNotEnrolled)
		}

		enrolled := make([]string, 0, len(seats.Enrolled)-1)
		for _, id := range seats.Enrolled {
			if id != studentID {
				enrolled = append(enrolled, id)
			}
		}

		landed, err := s.writeSeats(ctx, seats, enrolled)
		if err != nil {
			return nil, err
		}
		if landed {
			seats.Enrolled = enrolled
			seats.Version++
			return seats, nil
		}
	}
	return nil, fmt.Errorf("course %s after %d attempts: %w", courseID, maxEnrollRetries, ErrConcurrentUpdate)
}
