package dispense

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Create inserts the dispensation. A collision with the window
	// uniqueness constraint is reported as ErrUniqueViolation.
	Create(ctx context.Context, d *Dispensation) error
	// CountInRange counts dispensations of a medication to a patient whose
	// dispensed_at falls within [start, end].
	CountInRange(ctx context.Context, patientID, medicationID uuid.UUID, start, end time.Time) (int, error)
	// LatestInRange returns the most recent dispensation in [start, end], or
	// nil if there is none.
	LatestInRange(ctx context.Context, patientID, medicationID uuid.UUID, start, end time.Time) (*Dispensation, error)
	// CountForProgramSince counts a patient's dispensations across a
	// program's medications from `since` onward. Feeds the enrollment
	// progress heuristic.
	CountForProgramSince(ctx context.Context, patientID, programID uuid.UUID, since time.Time) (int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Dispensation, int, error)
	// InTx runs fn with a transaction carried in its context, so the
	// duplicate pre-check and the insert observe a single boundary.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
