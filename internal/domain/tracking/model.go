// Package tracking builds the adherence tracking table staff work from: one
// row per active patient/medication/program combination with its next-due
// date and adherence rate. Rows are derived on every query and never stored.
package tracking

import (
	"time"

	"github.com/google/uuid"

	"github.com/cliniccore/adherence/internal/domain/schedule"
)

// Row is one tracking table entry. The compact JSON field names are the wire
// format existing consumers parse; do not rename them.
type Row struct {
	PatientID      uuid.UUID                    `json:"pId"`
	PatientName    string                       `json:"pName"`
	MedicationID   uuid.UUID                    `json:"mId"`
	MedicationName string                       `json:"mName"`
	Dosage         string                       `json:"d"`
	Frequency      schedule.MedicationFrequency `json:"f"`
	ProgramID      uuid.UUID                    `json:"prId"`
	ProgramName    string                       `json:"prName"`
	LastCollected  *time.Time                   `json:"lc"`
	NextDue        time.Time                    `json:"nd"`
	AdherenceRate  int                          `json:"ar"`

	overdue bool
}

// Table is one page of the tracking table plus the post-filter total.
type Table struct {
	Rows  []*Row `json:"rows"`
	Total int    `json:"total"`
}

// Assignment seeds one tracking row: an active, non-completed enrollment
// joined with one of its program's active medications.
type Assignment struct {
	PatientID        uuid.UUID
	PatientName      string
	MedicationID     uuid.UUID
	MedicationName   string
	Dosage           string
	Frequency        schedule.MedicationFrequency
	ProgramID        uuid.UUID
	ProgramName      string
	SessionFrequency schedule.SessionFrequency
	EnrollmentDate   time.Time
}

// Key identifies a patient/medication/program combination.
type Key struct {
	PatientID    uuid.UUID
	MedicationID uuid.UUID
	ProgramID    uuid.UUID
}

// PatientProgram identifies a patient/program pair.
type PatientProgram struct {
	PatientID uuid.UUID
	ProgramID uuid.UUID
}

// DispenseStat aggregates a combination's dispensation history.
type DispenseStat struct {
	LastCollected time.Time
	Count         int
}
