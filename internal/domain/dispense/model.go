// Package dispense records medication dispensations and guards the one
// invariant the clinic cares most about: no two doses of the same medication
// to the same patient inside one scheduling window.
package dispense

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cliniccore/adherence/internal/domain/schedule"
)

// Dispensation maps to the dispensation table. Rows are insert-only; they are
// removed only when an administrative cascade deletes the patient.
type Dispensation struct {
	ID            uuid.UUID                    `db:"id" json:"id"`
	PatientID     uuid.UUID                    `db:"patient_id" json:"patient_id"`
	MedicationID  uuid.UUID                    `db:"medication_id" json:"medication_id"`
	ProgramID     uuid.UUID                    `db:"program_id" json:"program_id"`
	DispensedAt   time.Time                    `db:"dispensed_at" json:"dispensed_at"`
	Frequency     schedule.MedicationFrequency `db:"frequency" json:"frequency"`
	BucketType    schedule.BucketType          `db:"bucket_type" json:"bucket_type"`
	BucketStart   time.Time                    `db:"bucket_start" json:"bucket_start"`
	DispensedByID *uuid.UUID                   `db:"dispensed_by_id" json:"dispensed_by_id,omitempty"`
	Notes         *string                      `db:"notes" json:"notes,omitempty"`
	CreatedAt     time.Time                    `db:"created_at" json:"created_at"`
}

// ErrUniqueViolation is returned by the repository when an insert collides
// with the window uniqueness constraint. The service translates it into a
// DuplicateError; callers should never see it raw.
var ErrUniqueViolation = errors.New("dispensation window already occupied")

// DuplicateError rejects a dispense attempt whose window already holds a
// dose. It is user-visible and never retried automatically.
type DuplicateError struct {
	PatientID       uuid.UUID  `json:"patient_id"`
	MedicationID    uuid.UUID  `json:"medication_id"`
	LastDispensedAt *time.Time `json:"last_dispensed_at,omitempty"`
	Reason          string     `json:"reason"`
}

func (e *DuplicateError) Error() string {
	return e.Reason
}

func duplicateWithin(patientID, medicationID uuid.UUID, prior *Dispensation, at time.Time) *DuplicateError {
	hours := at.Sub(prior.DispensedAt).Hours()
	last := prior.DispensedAt
	return &DuplicateError{
		PatientID:       patientID,
		MedicationID:    medicationID,
		LastDispensedAt: &last,
		Reason:          fmt.Sprintf("duplicate prevented: last dose was %.1f hours ago", hours),
	}
}

func twiceDailyCap(patientID, medicationID uuid.UUID) *DuplicateError {
	return &DuplicateError{
		PatientID:    patientID,
		MedicationID: medicationID,
		Reason:       "twice-daily cap reached: 2 doses already recorded for this day",
	}
}

func duplicateWindow(patientID, medicationID uuid.UUID) *DuplicateError {
	return &DuplicateError{
		PatientID:    patientID,
		MedicationID: medicationID,
		Reason:       "duplicate prevented: a dose was already recorded for this window",
	}
}
