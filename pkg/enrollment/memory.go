package enrollment

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemorySeatStore keeps seat state in process memory. Each course has
// its own lock so admission into one course never serializes another.
type MemorySeatStore struct {
	mu      sync.RWMutex
	courses map[string]*courseEntry
}

type courseEntry struct {
	mu    sync.Mutex
	seats CourseSeats
}

// NewMemorySeatStore creates an empty in-memory seat store.
func NewMemorySeatStore() *MemorySeatStore {
	return &MemorySeatStore{courses: make(map[string]*courseEntry)}
}

func seatKey(institutionID, courseID string) string {
	return institutionID + "/" + courseID
}

// PutCourse inserts or replaces a course. Meant for seeding and
// course administration, not the admission path.
func (s *MemorySeatStore) PutCourse(seats CourseSeats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := &courseEntry{seats: seats}
	entry.seats.Enrolled = append([]string(nil), seats.Enrolled...)
	s.courses[seatKey(seats.InstitutionID, seats.CourseID)] = entry
}

func (s *MemorySeatStore) entry(institutionID, courseID string) (*courseEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.courses[seatKey(institutionID, courseID)]
	if !ok {
		return nil, fmt.Errorf("course %s in institution %s: %w", courseID, institutionID, ErrCourseNotFound)
	}
	return entry, nil
}

func snapshot(seats CourseSeats) *CourseSeats {
	out := seats
	out.Enrolled = append([]string(nil), seats.Enrolled...)
	return &out
}

// GetCourse implements SeatStore.
func (s *MemorySeatStore) GetCourse(_ context.Context, institutionID, courseID string) (*CourseSeats, error) {
	entry, err := s.entry(institutionID, courseID)
	if err != nil {
		return nil, err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return snapshot(entry.seats), nil
}

// Enroll implements SeatStore. The capacity check and the append
// happen under the course lock, so the seat count never overshoots.
func (s *MemorySeatStore) Enroll(_ context.Context, institutionID, courseID, studentID string, force bool) (*CourseSeats, error) {
	entry, err := s.entry(institutionID, courseID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.seats.Has(studentID) {
		return nil, fmt.Errorf("student %s in course %s: %w", studentID, courseID, ErrAlreadyEnrolled)
	}
	if !force && entry.seats.Full() {
		return nil, fmt.Errorf("course %s at %d/%d: %w", courseID, entry.seats.Seats(), entry.seats.MaxStudents, ErrCourseFull)
	}

	entry.seats.Enrolled = append(entry.seats.Enrolled, studentID)
	entry.seats.Version++
	entry.seats.UpdatedAt = time.Now()
	return snapshot(entry.seats), nil
}

// Drop implements SeatStore.
func (s *MemorySeatStore) Drop(_ context.Context, institutionID, courseID, studentID string) (*CourseSeats, error) {
	entry, err := s.entry(institutionID, courseID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	for i, id := range entry.seats.Enrolled {
		if id == studentID {
			entry.seats.Enrolled = append(entry.seats.Enrolled[:i], entry.seats.Enrolled[i+1:]...)
			entry.seats.Version++
			entry.seats.UpdatedAt = time.Now()
			return snapshot(entry.seats), nil
		}
	}
	return nil, fmt.Errorf("student %s in course %s: %w", studentID, courseID, ErrNotEnrolled)
}
