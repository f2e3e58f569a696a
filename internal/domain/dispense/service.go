package dispense

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliniccore/adherence/internal/domain/catalog"
	"github.com/cliniccore/adherence/internal/domain/schedule"
	"github.com/cliniccore/adherence/internal/platform/activity"
)

// ProgressTrigger recomputes an enrollment's cached progress after a
// dispensation lands. Implemented by the enrollment service.
type ProgressTrigger interface {
	RecomputeForPatientProgram(ctx context.Context, patientID, programID uuid.UUID) error
}

type Service struct {
	dispensations Repository
	catalog       catalog.Repository
	progress      ProgressTrigger
	feed          activity.Recorder
	logger        zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewService(repo Repository, cat catalog.Repository, progress ProgressTrigger, feed activity.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		dispensations: repo,
		catalog:       cat,
		progress:      progress,
		feed:          feed,
		logger:        logger,
		now:           time.Now,
	}
}

// DispenseRequest carries one dispense attempt.
type DispenseRequest struct {
	PatientID     uuid.UUID  `json:"patient_id"`
	MedicationID  uuid.UUID  `json:"medication_id"`
	ProgramID     uuid.UUID  `json:"program_id"`
	DispensedAt   time.Time  `json:"dispensed_at"`
	DispensedByID *uuid.UUID `json:"dispensed_by_id,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

// AttemptDispense validates the request, runs the duplicate guard, and on
// acceptance persists the dose and kicks off the non-critical side effects.
// A rejected attempt returns *DuplicateError; unknown references return an
// error wrapping catalog.ErrNotFound.
func (s *Service) AttemptDispense(ctx context.Context, req DispenseRequest) (*Dispensation, error) {
	if req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("patient_id is required")
	}
	if req.MedicationID == uuid.Nil {
		return nil, fmt.Errorf("medication_id is required")
	}
	if req.ProgramID == uuid.Nil {
		return nil, fmt.Errorf("program_id is required")
	}

	patient, err := s.catalog.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	med, err := s.catalog.GetMedication(ctx, req.MedicationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.catalog.GetProgram(ctx, req.ProgramID); err != nil {
		return nil, err
	}

	at := req.DispensedAt
	if at.IsZero() {
		at = s.now()
	}
	at = at.UTC()

	d := &Dispensation{
		PatientID:     req.PatientID,
		MedicationID:  req.MedicationID,
		ProgramID:     req.ProgramID,
		DispensedAt:   at,
		Frequency:     med.Frequency,
		DispensedByID: req.DispensedByID,
		Notes:         req.Notes,
	}
	d.BucketType, d.BucketStart = schedule.BucketFor(at, med.Frequency)

	// Pre-check and insert share one transaction; the window uniqueness
	// constraint stays as the safety net for concurrent writers that slip
	// between the two.
	err = s.dispensations.InTx(ctx, func(ctx context.Context) error {
		if dup, err := s.check(ctx, req.PatientID, req.MedicationID, med.Frequency, at); err != nil {
			return err
		} else if dup != nil {
			return dup
		}

		if err := s.dispensations.Create(ctx, d); err != nil {
			if errors.Is(err, ErrUniqueViolation) {
				return duplicateWindow(req.PatientID, req.MedicationID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("patient_id", d.PatientID.String()).
		Str("medication_id", d.MedicationID.String()).
		Str("bucket_type", string(d.BucketType)).
		Time("bucket_start", d.BucketStart).
		Msg("dispensation accepted")

	s.afterAccept(ctx, d, patient.FullName, med.Name)
	return d, nil
}

// check runs the frequency-specific duplicate rule. A non-nil *DuplicateError
// with nil error means the attempt must be rejected.
func (s *Service) check(ctx context.Context, patientID, medicationID uuid.UUID, f schedule.MedicationFrequency, at time.Time) (*DuplicateError, error) {
	if f == schedule.TwiceDaily {
		// Count cap: two legitimate doses share the calendar day.
		start, end := schedule.DateRange(schedule.Daily, at)
		n, err := s.dispensations.CountInRange(ctx, patientID, medicationID, start, end)
		if err != nil {
			return nil, err
		}
		if n >= 2 {
			return twiceDailyCap(patientID, medicationID), nil
		}
		return nil, nil
	}

	start, end := schedule.DateRange(f, at)
	prior, err := s.dispensations.LatestInRange(ctx, patientID, medicationID, start, end)
	if err != nil {
		return nil, err
	}
	if prior != nil {
		return duplicateWithin(patientID, medicationID, prior, at), nil
	}
	return nil, nil
}

// afterAccept runs the non-critical side effects of an accepted dispensation.
// Failures here are logged and swallowed; the dose stays recorded.
func (s *Service) afterAccept(ctx context.Context, d *Dispensation, patientName, medicationName string) {
	if s.progress != nil {
		if err := s.progress.RecomputeForPatientProgram(ctx, d.PatientID, d.ProgramID); err != nil {
			s.logger.Warn().Err(err).
				Str("patient_id", d.PatientID.String()).
				Str("program_id", d.ProgramID.String()).
				Msg("progress recompute failed after dispensation")
		}
	}
	if s.feed != nil {
		s.feed.Record(ctx, activity.Event{
			Type:      activity.TypeDispensation,
			Message:   fmt.Sprintf("%s dispensed to %s", medicationName, patientName),
			PatientID: d.PatientID,
			ProgramID: &d.ProgramID,
			ActorID:   d.DispensedByID,
			CreatedAt: d.DispensedAt,
		})
	}
}

// ListByPatient returns a patient's dispensation history, newest first.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Dispensation, int, error) {
	if _, err := s.catalog.GetPatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	return s.dispensations.ListByPatient(ctx, patientID, limit, offset)
}
