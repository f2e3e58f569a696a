// Package enrollment owns patient program enrollments, session attendance,
// and the cached progress summary recomputed after every attendance or
// dispensation write.
package enrollment

import (
	"time"

	"github.com/google/uuid"
)

// AttendanceStatus is the recorded outcome of a scheduled session.
type AttendanceStatus string

const (
	StatusPresent  AttendanceStatus = "Present"
	StatusAbsent   AttendanceStatus = "Absent"
	StatusLate     AttendanceStatus = "Late"
	StatusExcused  AttendanceStatus = "Excused"
	StatusCanceled AttendanceStatus = "Canceled"
)

var validStatuses = map[AttendanceStatus]bool{
	StatusPresent: true, StatusAbsent: true, StatusLate: true,
	StatusExcused: true, StatusCanceled: true,
}

// Completed reports whether the status counts toward completed sessions.
func (s AttendanceStatus) Completed() bool {
	return s == StatusPresent || s == StatusLate
}

// Attendance maps to the attendance table.
type Attendance struct {
	ID             uuid.UUID        `db:"id" json:"id"`
	PatientID      uuid.UUID        `db:"patient_id" json:"patient_id"`
	ProgramID      uuid.UUID        `db:"program_id" json:"program_id"`
	AttendanceDate time.Time        `db:"attendance_date" json:"attendance_date"`
	Status         AttendanceStatus `db:"status" json:"status"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// Enrollment maps to the patient_enrollment table. SessionsCompleted,
// SessionsMissed, AttendanceRate and AdherenceRate are derived state: they
// are recomputed from attendance and dispensation history on every write and
// must never be treated as authoritative inputs elsewhere.
type Enrollment struct {
	ID                uuid.UUID  `db:"id" json:"id"`
	PatientID         uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProgramID         uuid.UUID  `db:"program_id" json:"program_id"`
	EnrollmentDate    time.Time  `db:"enrollment_date" json:"enrollment_date"`
	IsCompleted       bool       `db:"is_completed" json:"is_completed"`
	EndDate           *time.Time `db:"end_date" json:"end_date,omitempty"`
	SessionsCompleted int        `db:"sessions_completed" json:"sessions_completed"`
	SessionsMissed    int        `db:"sessions_missed" json:"sessions_missed"`
	AttendanceRate    int        `db:"attendance_rate" json:"attendance_rate"`
	AdherenceRate     int        `db:"adherence_rate" json:"adherence_rate"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}
