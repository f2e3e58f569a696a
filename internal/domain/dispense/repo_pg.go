package dispense

import (
	"context"
	"errors"
	"time"

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

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const cols = `id, patient_id, medication_id, program_id, dispensed_at,
	frequency, bucket_type, bucket_start, dispensed_by_id, notes, created_at`

func scan(row pgx.Row) (*Dispensation, error) {
	var d Dispensation
	err := row.Scan(&d.ID, &d.PatientID, &d.MedicationID, &d.ProgramID, &d.DispensedAt,
		&d.Frequency, &d.BucketType, &d.BucketStart, &d.DispensedByID, &d.Notes, &d.CreatedAt)
	return &d, err
}

func (r *repoPG) Create(ctx context.Context, d *Dispensation) error {
	d.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dispensation (id, patient_id, medication_id, program_id, dispensed_at,
			frequency, bucket_type, bucket_start, dispensed_by_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.PatientID, d.MedicationID, d.ProgramID, d.DispensedAt,
		d.Frequency, d.BucketType, d.BucketStart, d.DispensedByID, d.Notes)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 unique_violation: a concurrent writer took the window first.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrUniqueViolation
		}
		return err
	}
	return nil
}

func (r *repoPG) CountInRange(ctx context.Context, patientID, medicationID uuid.UUID, start, end time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM dispensation
		WHERE patient_id = $1 AND medication_id = $2 AND dispensed_at BETWEEN $3 AND $4`,
		patientID, medicationID, start, end).Scan(&n)
	return n, err
}

func (r *repoPG) LatestInRange(ctx context.Context, patientID, medicationID uuid.UUID, start, end time.Time) (*Dispensation, error) {
	d, err := scan(r.conn(ctx).QueryRow(ctx, `
		SELECT `+cols+` FROM dispensation
		WHERE patient_id = $1 AND medication_id = $2 AND dispensed_at BETWEEN $3 AND $4
		ORDER BY dispensed_at DESC LIMIT 1`,
		patientID, medicationID, start, end))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *repoPG) CountForProgramSince(ctx context.Context, patientID, programID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM dispensation
		WHERE patient_id = $1 AND program_id = $2 AND dispensed_at >= $3`,
		patientID, programID, since).Scan(&n)
	return n, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Dispensation, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM dispensation WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+cols+` FROM dispensation
		WHERE patient_id = $1
		ORDER BY dispensed_at DESC
		LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Dispensation
	for rows.Next() {
		d, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *repoPG) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, r.pool, fn)
}
