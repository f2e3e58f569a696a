package tracking

import "context"

type Repository interface {
	// ActiveAssignments returns every tracking row seed: active patient,
	// active program, active medication, enrollment not completed.
	ActiveAssignments(ctx context.Context) ([]*Assignment, error)
	// DispenseStats returns last-collected and count per combination.
	DispenseStats(ctx context.Context) (map[Key]DispenseStat, error)
	// AttendanceCounts returns the number of Present/Late attendance rows
	// per patient/program pair.
	AttendanceCounts(ctx context.Context) (map[PatientProgram]int, error)
}
