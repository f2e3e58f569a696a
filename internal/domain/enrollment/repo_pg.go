package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cliniccore/adherence/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// =========== Enrollment Repository ===========

type enrollmentRepoPG struct{ pool *pgxpool.Pool }

func NewEnrollmentRepoPG(pool *pgxpool.Pool) EnrollmentRepository {
	return &enrollmentRepoPG{pool: pool}
}

const enrollmentCols = `id, patient_id, program_id, enrollment_date, is_completed, end_date,
	sessions_completed, sessions_missed, attendance_rate, adherence_rate, created_at, updated_at`

func scanEnrollment(row pgx.Row) (*Enrollment, error) {
	var e Enrollment
	err := row.Scan(&e.ID, &e.PatientID, &e.ProgramID, &e.EnrollmentDate, &e.IsCompleted, &e.EndDate,
		&e.SessionsCompleted, &e.SessionsMissed, &e.AttendanceRate, &e.AdherenceRate, &e.CreatedAt, &e.UpdatedAt)
	return &e, err
}

func (r *enrollmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	e, err := scanEnrollment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+enrollmentCols+` FROM patient_enrollment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("enrollment %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *enrollmentRepoPG) FindByPatientProgram(ctx context.Context, patientID, programID uuid.UUID) (*Enrollment, error) {
	e, err := scanEnrollment(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+enrollmentCols+` FROM patient_enrollment
		 WHERE patient_id = $1 AND program_id = $2 AND NOT is_completed
		 ORDER BY enrollment_date DESC LIMIT 1`, patientID, programID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("enrollment for patient %s in program %s: %w", patientID, programID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *enrollmentRepoPG) UpdateProgress(ctx context.Context, id uuid.UUID, completed, missed, attendanceRate, adherenceRate int) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE patient_enrollment
		SET sessions_completed=$2, sessions_missed=$3, attendance_rate=$4, adherence_rate=$5, updated_at=NOW()
		WHERE id = $1`,
		id, completed, missed, attendanceRate, adherenceRate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("enrollment %s: %w", id, ErrNotFound)
	}
	return nil
}

// =========== Attendance Repository ===========

type attendanceRepoPG struct{ pool *pgxpool.Pool }

func NewAttendanceRepoPG(pool *pgxpool.Pool) AttendanceRepository {
	return &attendanceRepoPG{pool: pool}
}

const attendanceCols = `id, patient_id, program_id, attendance_date, status, notes, created_at, updated_at`

func scanAttendance(row pgx.Row) (*Attendance, error) {
	var a Attendance
	err := row.Scan(&a.ID, &a.PatientID, &a.ProgramID, &a.AttendanceDate, &a.Status, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *attendanceRepoPG) Create(ctx context.Context, a *Attendance) error {
	a.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO attendance (id, patient_id, program_id, attendance_date, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.PatientID, a.ProgramID, a.AttendanceDate, a.Status, a.Notes)
	return err
}

func (r *attendanceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Attendance, error) {
	a, err := scanAttendance(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+attendanceCols+` FROM attendance WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("attendance %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *attendanceRepoPG) Update(ctx context.Context, a *Attendance) error {
	tag, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE attendance SET status=$2, attendance_date=$3, notes=$4, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.Status, a.AttendanceDate, a.Notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("attendance %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

func (r *attendanceRepoPG) StatusCounts(ctx context.Context, patientID, programID uuid.UUID) (map[AttendanceStatus]int, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT status, COUNT(*) FROM attendance
		WHERE patient_id = $1 AND program_id = $2
		GROUP BY status`, patientID, programID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[AttendanceStatus]int)
	for rows.Next() {
		var status AttendanceStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
