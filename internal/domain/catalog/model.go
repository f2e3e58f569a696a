// Package catalog exposes read models for the records the adherence core
// consumes but does not own: patients, health programs, and the medications
// assigned to each program. Their lifecycles (registration, program setup)
// live elsewhere; this package only looks them up.
package catalog

import (
	"time"

	"github.com/google/uuid"

	"github.com/cliniccore/adherence/internal/domain/schedule"
)

// Patient maps to the patient table.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Program maps to the program table.
type Program struct {
	ID               uuid.UUID                 `db:"id" json:"id"`
	Name             string                    `db:"name" json:"name"`
	SessionFrequency schedule.SessionFrequency `db:"session_frequency" json:"session_frequency"`
	IsActive         bool                      `db:"is_active" json:"is_active"`
	CreatedAt        time.Time                 `db:"created_at" json:"created_at"`
}

// Medication maps to the medication table. A medication is assigned to one
// program and carries the dosing frequency the duplicate guard enforces.
type Medication struct {
	ID        uuid.UUID                    `db:"id" json:"id"`
	ProgramID uuid.UUID                    `db:"program_id" json:"program_id"`
	Name      string                       `db:"name" json:"name"`
	Dosage    string                       `db:"dosage" json:"dosage"`
	Frequency schedule.MedicationFrequency `db:"frequency" json:"frequency"`
	IsActive  bool                         `db:"is_active" json:"is_active"`
	CreatedAt time.Time                    `db:"created_at" json:"created_at"`
}
