package enrollment

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cliniccore/adherence/internal/platform/activity"
)

type Service struct {
	enrollments   EnrollmentRepository
	attendance    AttendanceRepository
	dispensations DispensationCounter
	feed          activity.Recorder
	logger        zerolog.Logger

	now func() time.Time
}

func NewService(enrollments EnrollmentRepository, attendance AttendanceRepository, dispensations DispensationCounter, feed activity.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		enrollments:   enrollments,
		attendance:    attendance,
		dispensations: dispensations,
		feed:          feed,
		logger:        logger,
		now:           time.Now,
	}
}

// MarkAttendance records a session attendance and recomputes the enrollment's
// cached progress. The patient must hold an active enrollment in the program.
func (s *Service) MarkAttendance(ctx context.Context, a *Attendance) error {
	if a.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if a.ProgramID == uuid.Nil {
		return fmt.Errorf("program_id is required")
	}
	if !validStatuses[a.Status] {
		return fmt.Errorf("invalid status: %s", a.Status)
	}
	if a.AttendanceDate.IsZero() {
		a.AttendanceDate = s.now().UTC()
	}

	enr, err := s.enrollments.FindByPatientProgram(ctx, a.PatientID, a.ProgramID)
	if err != nil {
		return err
	}

	if err := s.attendance.Create(ctx, a); err != nil {
		return err
	}

	s.recomputeBestEffort(ctx, enr)

	if s.feed != nil {
		s.feed.Record(ctx, activity.Event{
			Type:      activity.TypeAttendance,
			Message:   fmt.Sprintf("attendance marked %s", a.Status),
			PatientID: a.PatientID,
			ProgramID: &a.ProgramID,
			CreatedAt: a.AttendanceDate,
		})
	}
	return nil
}

// UpdateAttendance lets staff correct a recorded attendance, then recomputes
// the affected enrollment.
func (s *Service) UpdateAttendance(ctx context.Context, id uuid.UUID, status AttendanceStatus, date *time.Time, notes *string) (*Attendance, error) {
	if !validStatuses[status] {
		return nil, fmt.Errorf("invalid status: %s", status)
	}

	a, err := s.attendance.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	a.Status = status
	if date != nil {
		a.AttendanceDate = date.UTC()
	}
	if notes != nil {
		a.Notes = notes
	}
	if err := s.attendance.Update(ctx, a); err != nil {
		return nil, err
	}

	if enr, err := s.enrollments.FindByPatientProgram(ctx, a.PatientID, a.ProgramID); err == nil {
		s.recomputeBestEffort(ctx, enr)
	}
	return a, nil
}

// GetEnrollment returns the enrollment with its cached progress summary.
func (s *Service) GetEnrollment(ctx context.Context, id uuid.UUID) (*Enrollment, error) {
	return s.enrollments.GetByID(ctx, id)
}

// RecomputeProgress rebuilds the enrollment's cached summary from its
// attendance and dispensation history.
//
// sessionsExpected here is the count of recorded attendance rows, not a
// calendar projection; the tracking aggregator uses the projection. The two
// definitions coexist on purpose and must stay separate. The same goes for
// adherenceRate: this one is the trailing-7-day dispensation heuristic, not
// the aggregator's expected-vs-actual ratio.
func (s *Service) RecomputeProgress(ctx context.Context, enrollmentID uuid.UUID) error {
	enr, err := s.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return err
	}
	return s.recompute(ctx, enr)
}

// RecomputeForPatientProgram resolves the active enrollment for the pair and
// recomputes it. Used by the dispense service after an accepted dose.
func (s *Service) RecomputeForPatientProgram(ctx context.Context, patientID, programID uuid.UUID) error {
	enr, err := s.enrollments.FindByPatientProgram(ctx, patientID, programID)
	if err != nil {
		return err
	}
	return s.recompute(ctx, enr)
}

func (s *Service) recompute(ctx context.Context, enr *Enrollment) error {
	counts, err := s.attendance.StatusCounts(ctx, enr.PatientID, enr.ProgramID)
	if err != nil {
		return err
	}

	expected := 0
	for _, n := range counts {
		expected += n
	}
	completed := counts[StatusPresent] + counts[StatusLate]
	missed := counts[StatusAbsent]

	attendanceRate := 0
	if expected > 0 {
		attendanceRate = roundPct(completed, expected)
	}

	weekAgo := s.now().UTC().AddDate(0, 0, -7)
	recent, err := s.dispensations.CountForProgramSince(ctx, enr.PatientID, enr.ProgramID, weekAgo)
	if err != nil {
		return err
	}
	adherenceRate := roundPct(recent, 7)
	if adherenceRate > 100 {
		adherenceRate = 100
	}

	return s.enrollments.UpdateProgress(ctx, enr.ID, completed, missed, attendanceRate, adherenceRate)
}

// recomputeBestEffort logs and swallows recompute failures: the summary is
// derived state and self-corrects on the next trigger.
func (s *Service) recomputeBestEffort(ctx context.Context, enr *Enrollment) {
	if err := s.recompute(ctx, enr); err != nil {
		s.logger.Warn().Err(err).
			Str("enrollment_id", enr.ID.String()).
			Msg("progress recompute failed")
	}
}

func roundPct(numerator, denominator int) int {
	return int(math.Round(100 * float64(numerator) / float64(denominator)))
}
