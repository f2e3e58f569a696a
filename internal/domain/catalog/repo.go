package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a referenced patient, program or medication
// does not exist. It is surfaced directly to callers; there is no recovery.
var ErrNotFound = errors.New("not found")

type Repository interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProgram(ctx context.Context, id uuid.UUID) (*Program, error)
	GetMedication(ctx context.Context, id uuid.UUID) (*Medication, error)
	ListProgramMedications(ctx context.Context, programID uuid.UUID) ([]*Medication, error)
}
