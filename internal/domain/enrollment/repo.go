package enrollment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when an enrollment or attendance record does not
// exist.
var ErrNotFound = errors.New("not found")

type EnrollmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error)
	FindByPatientProgram(ctx context.Context, patientID, programID uuid.UUID) (*Enrollment, error)
	// UpdateProgress persists the recomputed derived fields.
	UpdateProgress(ctx context.Context, id uuid.UUID, completed, missed, attendanceRate, adherenceRate int) error
}

type AttendanceRepository interface {
	Create(ctx context.Context, a *Attendance) error
	GetByID(ctx context.Context, id uuid.UUID) (*Attendance, error)
	Update(ctx context.Context, a *Attendance) error
	// StatusCounts returns the number of recorded attendance rows per status
	// for a patient/program pair.
	StatusCounts(ctx context.Context, patientID, programID uuid.UUID) (map[AttendanceStatus]int, error)
}

// DispensationCounter is the slice of the dispense repository the progress
// recomputation needs.
type DispensationCounter interface {
	CountForProgramSince(ctx context.Context, patientID, programID uuid.UUID, since time.Time) (int, error)
}
