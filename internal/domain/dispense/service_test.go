package dispense

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliniccore/adherence/internal/domain/catalog"
	"github.com/cliniccore/adherence/internal/domain/schedule"
	"github.com/cliniccore/adherence/internal/platform/activity"
)

type mockRepo struct {
	items []*Dispensation
	// createErr, when set, is returned by Create after the pre-check has
	// already passed. Simulates a concurrent writer hitting the window
	// constraint first.
	createErr error
}

func (m *mockRepo) Create(ctx context.Context, d *Dispensation) error {
	if m.createErr != nil {
		return m.createErr
	}
	d.ID = uuid.New()
	d.CreatedAt = time.Now().UTC()
	m.items = append(m.items, d)
	return nil
}

func (m *mockRepo) CountInRange(ctx context.Context, patientID, medicationID uuid.UUID, start, end time.Time) (int, error) {
	n := 0
	for _, d := range m.items {
		if d.PatientID == patientID && d.MedicationID == medicationID &&
			!d.DispensedAt.Before(start) && !d.DispensedAt.After(end) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) LatestInRange(ctx context.Context, patientID, medicationID uuid.UUID, start, end time.Time) (*Dispensation, error) {
	var latest *Dispensation
	for _, d := range m.items {
		if d.PatientID != patientID || d.MedicationID != medicationID {
			continue
		}
		if d.DispensedAt.Before(start) || d.DispensedAt.After(end) {
			continue
		}
		if latest == nil || d.DispensedAt.After(latest.DispensedAt) {
			latest = d
		}
	}
	return latest, nil
}

func (m *mockRepo) CountForProgramSince(ctx context.Context, patientID, programID uuid.UUID, since time.Time) (int, error) {
	n := 0
	for _, d := range m.items {
		if d.PatientID == patientID && d.ProgramID == programID && !d.DispensedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Dispensation, int, error) {
	var out []*Dispensation
	for _, d := range m.items {
		if d.PatientID == patientID {
			out = append(out, d)
		}
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *mockRepo) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockCatalog struct {
	patients    map[uuid.UUID]*catalog.Patient
	programs    map[uuid.UUID]*catalog.Program
	medications map[uuid.UUID]*catalog.Medication
}

func (m *mockCatalog) GetPatient(ctx context.Context, id uuid.UUID) (*catalog.Patient, error) {
	if p, ok := m.patients[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) GetProgram(ctx context.Context, id uuid.UUID) (*catalog.Program, error) {
	if p, ok := m.programs[id]; ok {
		return p, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) GetMedication(ctx context.Context, id uuid.UUID) (*catalog.Medication, error) {
	if med, ok := m.medications[id]; ok {
		return med, nil
	}
	return nil, catalog.ErrNotFound
}

func (m *mockCatalog) ListProgramMedications(ctx context.Context, programID uuid.UUID) ([]*catalog.Medication, error) {
	var out []*catalog.Medication
	for _, med := range m.medications {
		if med.ProgramID == programID {
			out = append(out, med)
		}
	}
	return out, nil
}

type mockProgress struct {
	calls int
	err   error
}

func (m *mockProgress) RecomputeForPatientProgram(ctx context.Context, patientID, programID uuid.UUID) error {
	m.calls++
	return m.err
}

type captureFeed struct {
	events []activity.Event
}

func (f *captureFeed) Record(ctx context.Context, e activity.Event) {
	f.events = append(f.events, e)
}

type fixture struct {
	svc      *Service
	repo     *mockRepo
	progress *mockProgress
	feed     *captureFeed

	patientID    uuid.UUID
	programID    uuid.UUID
	medicationID uuid.UUID
}

func newFixture(t *testing.T, freq schedule.MedicationFrequency) *fixture {
	t.Helper()

	patientID := uuid.New()
	programID := uuid.New()
	medicationID := uuid.New()

	cat := &mockCatalog{
		patients: map[uuid.UUID]*catalog.Patient{
			patientID: {ID: patientID, FullName: "Jane Doe", IsActive: true},
		},
		programs: map[uuid.UUID]*catalog.Program{
			programID: {ID: programID, Name: "TB Program", SessionFrequency: schedule.SessionWeekly, IsActive: true},
		},
		medications: map[uuid.UUID]*catalog.Medication{
			medicationID: {ID: medicationID, ProgramID: programID, Name: "Rifampicin", Dosage: "600mg", Frequency: freq, IsActive: true},
		},
	}

	repo := &mockRepo{}
	progress := &mockProgress{}
	feed := &captureFeed{}
	svc := NewService(repo, cat, progress, feed, zerolog.Nop())

	return &fixture{
		svc: svc, repo: repo, progress: progress, feed: feed,
		patientID: patientID, programID: programID, medicationID: medicationID,
	}
}

func (f *fixture) request(at time.Time) DispenseRequest {
	return DispenseRequest{
		PatientID:    f.patientID,
		MedicationID: f.medicationID,
		ProgramID:    f.programID,
		DispensedAt:  at,
	}
}

func TestAttemptDispenseDailyDuplicate(t *testing.T) {
	f := newFixture(t, schedule.Daily)
	ctx := context.Background()

	morning := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	if _, err := f.svc.AttemptDispense(ctx, f.request(morning)); err != nil {
		t.Fatalf("first dose: unexpected error: %v", err)
	}

	// Same calendar day, rejected with a pointer at the prior dose.
	evening := time.Date(2025, 3, 10, 21, 30, 0, 0, time.UTC)
	_, err := f.svc.AttemptDispense(ctx, f.request(evening))
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if dup.LastDispensedAt == nil || !dup.LastDispensedAt.Equal(morning) {
		t.Errorf("LastDispensedAt = %v, want %v", dup.LastDispensedAt, morning)
	}
	if dup.Reason != "duplicate prevented: last dose was 12.5 hours ago" {
		t.Errorf("unexpected reason: %q", dup.Reason)
	}
	if len(f.repo.items) != 1 {
		t.Errorf("stored %d dispensations, want 1", len(f.repo.items))
	}

	// Next day is a fresh window.
	nextDay := time.Date(2025, 3, 11, 0, 30, 0, 0, time.UTC)
	if _, err := f.svc.AttemptDispense(ctx, f.request(nextDay)); err != nil {
		t.Fatalf("next-day dose: unexpected error: %v", err)
	}
	if len(f.repo.items) != 2 {
		t.Errorf("stored %d dispensations, want 2", len(f.repo.items))
	}
}

func TestAttemptDispenseTwiceDailyCap(t *testing.T) {
	f := newFixture(t, schedule.TwiceDaily)
	ctx := context.Background()

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, h := range []int{8, 20} {
		if _, err := f.svc.AttemptDispense(ctx, f.request(day.Add(time.Duration(h)*time.Hour))); err != nil {
			t.Fatalf("dose at %02d:00: unexpected error: %v", h, err)
		}
	}

	_, err := f.svc.AttemptDispense(ctx, f.request(day.Add(23*time.Hour)))
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("third dose: expected DuplicateError, got %v", err)
	}
	if dup.Reason != "twice-daily cap reached: 2 doses already recorded for this day" {
		t.Errorf("unexpected reason: %q", dup.Reason)
	}

	// Tomorrow the cap resets.
	if _, err := f.svc.AttemptDispense(ctx, f.request(day.AddDate(0, 0, 1).Add(8*time.Hour))); err != nil {
		t.Fatalf("next-day dose: unexpected error: %v", err)
	}
}

func TestAttemptDispenseWeeklyTrailingWindow(t *testing.T) {
	f := newFixture(t, schedule.Weekly)
	ctx := context.Background()

	first := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	if _, err := f.svc.AttemptDispense(ctx, f.request(first)); err != nil {
		t.Fatalf("first dose: unexpected error: %v", err)
	}

	// Three days later, still inside the trailing seven days.
	var dup *DuplicateError
	if _, err := f.svc.AttemptDispense(ctx, f.request(first.AddDate(0, 0, 3))); !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}

	// Eight days clears the window.
	if _, err := f.svc.AttemptDispense(ctx, f.request(first.AddDate(0, 0, 8))); err != nil {
		t.Fatalf("dose after 8 days: unexpected error: %v", err)
	}
}

func TestAttemptDispenseMonthlyBucket(t *testing.T) {
	f := newFixture(t, schedule.Monthly)
	ctx := context.Background()

	if _, err := f.svc.AttemptDispense(ctx, f.request(time.Date(2025, 1, 5, 10, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("first dose: unexpected error: %v", err)
	}

	// Last instant of the same month still collides.
	var dup *DuplicateError
	if _, err := f.svc.AttemptDispense(ctx, f.request(time.Date(2025, 1, 31, 23, 59, 0, 0, time.UTC))); !errors.As(err, &dup) {
		t.Fatalf("same month: expected DuplicateError, got %v", err)
	}

	// First of February is a new bucket.
	d, err := f.svc.AttemptDispense(ctx, f.request(time.Date(2025, 2, 1, 0, 30, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("february dose: unexpected error: %v", err)
	}
	if d.BucketType != schedule.BucketMonth {
		t.Errorf("BucketType = %s, want %s", d.BucketType, schedule.BucketMonth)
	}
	if want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC); !d.BucketStart.Equal(want) {
		t.Errorf("BucketStart = %v, want %v", d.BucketStart, want)
	}
}

func TestAttemptDispenseConstraintRace(t *testing.T) {
	// Pre-check passes (empty repo) but the insert loses a race against a
	// concurrent writer. The raw constraint error must come back as a
	// DuplicateError, never as ErrUniqueViolation.
	f := newFixture(t, schedule.Daily)
	f.repo.createErr = ErrUniqueViolation

	_, err := f.svc.AttemptDispense(context.Background(), f.request(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateError, got %v", err)
	}
	if errors.Is(err, ErrUniqueViolation) {
		t.Error("ErrUniqueViolation leaked to the caller")
	}
	if dup.Reason != "duplicate prevented: a dose was already recorded for this window" {
		t.Errorf("unexpected reason: %q", dup.Reason)
	}
}

func TestAttemptDispenseUnknownReferences(t *testing.T) {
	f := newFixture(t, schedule.Daily)
	ctx := context.Background()
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	req := f.request(at)
	req.PatientID = uuid.New()
	if _, err := f.svc.AttemptDispense(ctx, req); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("unknown patient: got %v, want ErrNotFound", err)
	}

	req = f.request(at)
	req.MedicationID = uuid.New()
	if _, err := f.svc.AttemptDispense(ctx, req); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("unknown medication: got %v, want ErrNotFound", err)
	}

	req = f.request(at)
	req.PatientID = uuid.Nil
	if _, err := f.svc.AttemptDispense(ctx, req); err == nil {
		t.Error("nil patient_id: expected validation error")
	}
}

func TestAttemptDispenseDefaultsToNow(t *testing.T) {
	f := newFixture(t, schedule.Daily)
	now := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	d, err := f.svc.AttemptDispense(context.Background(), f.request(time.Time{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.DispensedAt.Equal(now) {
		t.Errorf("DispensedAt = %v, want %v", d.DispensedAt, now)
	}
}

func TestAttemptDispenseSideEffects(t *testing.T) {
	f := newFixture(t, schedule.Daily)
	ctx := context.Background()

	if _, err := f.svc.AttemptDispense(ctx, f.request(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.progress.calls != 1 {
		t.Errorf("progress recompute calls = %d, want 1", f.progress.calls)
	}
	if len(f.feed.events) != 1 {
		t.Fatalf("activity events = %d, want 1", len(f.feed.events))
	}
	if got := f.feed.events[0].Message; got != "Rifampicin dispensed to Jane Doe" {
		t.Errorf("event message = %q", got)
	}

	// A failing recompute must not undo the accepted dose.
	f.progress.err = errors.New("progress store down")
	if _, err := f.svc.AttemptDispense(ctx, f.request(time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC))); err != nil {
		t.Fatalf("dose with failing recompute: unexpected error: %v", err)
	}
	if len(f.repo.items) != 2 {
		t.Errorf("stored %d dispensations, want 2", len(f.repo.items))
	}
}

func TestListByPatient(t *testing.T) {
	f := newFixture(t, schedule.Daily)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		if _, err := f.svc.AttemptDispense(ctx, f.request(time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC))); err != nil {
			t.Fatalf("dose on day %d: unexpected error: %v", day, err)
		}
	}

	items, total, err := f.svc.ListByPatient(ctx, f.patientID, 2, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(items) != 2 {
		t.Errorf("total = %d, page len = %d; want 3, 2", total, len(items))
	}

	if _, _, err := f.svc.ListByPatient(ctx, uuid.New(), 10, 0); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("unknown patient: got %v, want ErrNotFound", err)
	}
}
