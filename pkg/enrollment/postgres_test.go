package enrollment

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seatColumns() []string {
	return []string{"course_id", "institution_id", "title", "teacher_id", "max_students", "enrolled_students", "version", "updated_at"}
}

func seatRow(max int, enrolled []string, version int64) *sqlmock.Rows {
	return sqlmock.NewRows(seatColumns()).
		AddRow("cs101", "inst-1", "Intro CS", "t1", max, pq.Array(enrolled), version, time.Now())
}

func TestPostgresEnroll(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT course_id").
		WithArgs("inst-1", "cs101").
		WillReturnRows(seatRow(3, []string{"s1"}, 7))
	mock.ExpectExec("UPDATE courses").
		WithArgs(pq.Array([]string{"s1", "s2"}), "inst-1", "cs101", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresSeatStore(db, nil)
	seats, err := store.Enroll(context.Background(), "inst-1", "cs101", "s2", false)
	require.NoError(t, err)
	assert.Equal(t, 2, seats.Seats())
	assert.Equal(t, int64(8), seats.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnrollRetriesOnVersionConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// First write loses the race; the re-read sees the new version
	// and the second write lands.
	mock.ExpectQuery("SELECT course_id").
		WithArgs("inst-1", "cs101").
		WillReturnRows(seatRow(3, []string{"s1"}, 7))
	mock.ExpectExec("UPDATE courses").
		WithArgs(pq.Array([]string{"s1", "s2"}), "inst-1", "cs101", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT course_id").
		WithArgs("inst-1", "cs101").
		WillReturnRows(seatRow(3, []string{"s1", "s9"}, 8))
	mock.ExpectExec("UPDATE courses").
		WithArgs(pq.Array([]string{"s1", "s9", "s2"}), "inst-1", "cs101", int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresSeatStore(db, nil)
	seats, err := store.Enroll(context.Background(), "inst-1", "cs101", "s2", false)
	require.NoError(t, err)
	assert.Equal(t, 3, seats.Seats())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnrollSeesFullCourseAfterLosingRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// The losing re-read finds the last seat taken.
	mock.ExpectQuery("SELECT course_id").
		WithArgs("inst-1", "cs101").
		WillReturnRows(seatRow(2, []string{"s1"}, 7))
	mock.ExpectExec("UPDATE courses").
		WithArgs(pq.Array([]string{"s1", "s2"}), "inst-1", "cs101", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT course_id").
		WithArgs("inst-1", "cs101").
		WillReturnRows(seatRow(2, []string{"s1", "s9"}, 8))

	store := NewPostgresSeatStore(db, nil)
	_, err = store.Enroll(context.Background(), "inst-1", "cs101", "s2", false)
	assert.ErrorIs(t, err, ErrCourseFull)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresEnrollGivesUpAfterBoundedRetries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < maxEnrollRetries; i++ {
		mock.ExpectQuery("SELECT course_id").
			WithArgs("inst-1", "cs101").
			WillReturnRows(seatRow(10, []string{"s1"}, int64(7+i)))
		mock.ExpectExec("UPDATE courses").
			WithArgs(pq.Array([]string{"s1", "s2"}), "inst-1", "cs101", int64(7+i)).
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	store := NewPostgresSeatStore(db, nil)
	_, err = store.Enroll(context.Background(), "inst-1", "cs101", "s2", false)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetCourseNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT course_id").
		WithArgs("inst-1", "ghost").
		WillReturnRows(sqlmock.NewRows(seatColumns()))

	store := NewPostgresSeatStore(db, nil)
	_, err = store.GetCourse(context.Background(), "inst-1", "ghost")
	assert.ErrorIs(t, err, ErrCourseNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDrop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT course_id").
		WithArgs("inst-1", "cs101").
		WillReturnRows(seatRow(3, []string{"s1", "s2"}, 4))
	mock.ExpectExec("UPDATE courses").
		WithArgs(pq.Array([]string{"s2"}), "inst-1", "cs101", int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresSeatStore(db, nil)
	seats, err := store.Drop(context.Background(), "inst-1", "cs101", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, seats.Enrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
