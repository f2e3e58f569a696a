package tracking

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) ActiveAssignments(ctx context.Context) ([]*Assignment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.full_name,
		       m.id, m.name, m.dosage, m.frequency,
		       pr.id, pr.name, pr.session_frequency,
		       e.enrollment_date
		FROM patient_enrollment e
		JOIN patient p ON p.id = e.patient_id AND p.is_active
		JOIN program pr ON pr.id = e.program_id AND pr.is_active
		JOIN medication m ON m.program_id = pr.id AND m.is_active
		WHERE NOT e.is_completed`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.PatientID, &a.PatientName,
			&a.MedicationID, &a.MedicationName, &a.Dosage, &a.Frequency,
			&a.ProgramID, &a.ProgramName, &a.SessionFrequency,
			&a.EnrollmentDate); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *repoPG) DispenseStats(ctx context.Context) (map[Key]DispenseStat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT patient_id, medication_id, program_id, MAX(dispensed_at), COUNT(*)
		FROM dispensation
		GROUP BY patient_id, medication_id, program_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[Key]DispenseStat)
	for rows.Next() {
		var k Key
		var s DispenseStat
		if err := rows.Scan(&k.PatientID, &k.MedicationID, &k.ProgramID, &s.LastCollected, &s.Count); err != nil {
			return nil, err
		}
		stats[k] = s
	}
	return stats, rows.Err()
}

func (r *repoPG) AttendanceCounts(ctx context.Context) (map[PatientProgram]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT patient_id, program_id, COUNT(*)
		FROM attendance
		WHERE status IN ('Present', 'Late')
		GROUP BY patient_id, program_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[PatientProgram]int)
	for rows.Next() {
		var k PatientProgram
		var n int
		if err := rows.Scan(&k.PatientID, &k.ProgramID, &n); err != nil {
			return nil, err
		}
		counts[k] = n
	}
	return counts, rows.Err()
}
