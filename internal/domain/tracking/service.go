package tracking

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/cliniccore/adherence/internal/domain/schedule"
	"github.com/cliniccore/adherence/pkg/pagination"
)

type Service struct {
	repo Repository

	now func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Query selects and pages the tracking table.
type Query struct {
	Page        pagination.Params
	Search      string
	OverdueOnly bool
}

// TrackingTable recomputes the full table from current enrollment,
// dispensation and attendance data, then filters, sorts and pages it.
// Only rows due today or overdue are surfaced; that is display policy, the
// whole table is always computed.
func (s *Service) TrackingTable(ctx context.Context, q Query) (*Table, error) {
	assignments, err := s.repo.ActiveAssignments(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := s.repo.DispenseStats(ctx)
	if err != nil {
		return nil, err
	}
	attendance, err := s.repo.AttendanceCounts(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	endOfToday := schedule.EndOfDay(now)
	search := strings.ToLower(strings.TrimSpace(q.Search))

	var rows []*Row
	for _, a := range assignments {
		row := buildRow(a, stats, attendance, now)

		if row.NextDue.After(endOfToday) {
			continue
		}
		if q.OverdueOnly && !row.overdue {
			continue
		}
		if search != "" && !matches(row, search) {
			continue
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].NextDue.Equal(rows[j].NextDue) {
			return rows[i].NextDue.Before(rows[j].NextDue)
		}
		return rows[i].PatientName < rows[j].PatientName
	})

	total := len(rows)
	start, end := q.Page.Slice(total)
	page := rows[start:end]
	if page == nil {
		page = []*Row{}
	}
	return &Table{Rows: page, Total: total}, nil
}

func buildRow(a *Assignment, stats map[Key]DispenseStat, attendance map[PatientProgram]int, now time.Time) *Row {
	row := &Row{
		PatientID:      a.PatientID,
		PatientName:    a.PatientName,
		MedicationID:   a.MedicationID,
		MedicationName: a.MedicationName,
		Dosage:         a.Dosage,
		Frequency:      a.Frequency,
		ProgramID:      a.ProgramID,
		ProgramName:    a.ProgramName,
	}

	dispenseCount := 0
	anchor := a.EnrollmentDate
	if stat, ok := stats[Key{a.PatientID, a.MedicationID, a.ProgramID}]; ok {
		last := stat.LastCollected
		row.LastCollected = &last
		dispenseCount = stat.Count
		anchor = last
	}
	row.NextDue = schedule.NextDueDate(anchor, a.Frequency)

	expectedDoses := schedule.ExpectedOccurrences(a.Frequency, a.EnrollmentDate, now)
	expectedSessions := schedule.ExpectedSessions(a.SessionFrequency, a.EnrollmentDate, now)
	attended := attendance[PatientProgram{a.PatientID, a.ProgramID}]

	row.AdherenceRate = adherenceRate(dispenseCount+attended, expectedDoses+expectedSessions)

	// Same-day due dates count as due today, never overdue, even after the
	// due instant has passed within the day.
	row.overdue = row.NextDue.Before(now) && !schedule.SameCalendarDay(row.NextDue, now)
	return row
}

// adherenceRate is round(100*actual/expected) clamped to [0, 100], with 0 for
// an empty denominator.
func adherenceRate(actual, expected int) int {
	if expected <= 0 {
		return 0
	}
	rate := int(math.Round(100 * float64(actual) / float64(expected)))
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}

func matches(row *Row, search string) bool {
	return strings.Contains(strings.ToLower(row.PatientName), search) ||
		strings.Contains(strings.ToLower(row.MedicationName), search) ||
		strings.Contains(strings.ToLower(row.ProgramName), search)
}
