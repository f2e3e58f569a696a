package dispense

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cliniccore/adherence/internal/domain/schedule"
)

func performRequest(h *Handler, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	api := e.Group("/api/v1")
	h.RegisterRoutes(api)

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func dispenseBody(f *fixture, at time.Time) string {
	return fmt.Sprintf(`{"patient_id":%q,"medication_id":%q,"program_id":%q,"dispensed_at":%q}`,
		f.patientID, f.medicationID, f.programID, at.Format(time.RFC3339))
}

func TestCreateDispensationHandler(t *testing.T) {
	f := newFixture(t, schedule.Daily)
	h := NewHandler(f.svc)
	at := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	rec := performRequest(h, http.MethodPost, "/api/v1/dispensations", dispenseBody(f, at))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body: %s", rec.Code, rec.Body.String())
	}

	var created Dispensation
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if created.BucketType != schedule.BucketDay {
		t.Errorf("bucket_type = %s, want DAY", created.BucketType)
	}

	// Second attempt in the same window comes back 409 with the prior time.
	rec = performRequest(h, http.MethodPost, "/api/v1/dispensations", dispenseBody(f, at.Add(3*time.Hour)))
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status = %d, want 409; body: %s", rec.Code, rec.Body.String())
	}
	var conflict struct {
		Error           string     `json:"error"`
		LastDispensedAt *time.Time `json:"last_dispensed_at"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &conflict); err != nil {
		t.Fatalf("invalid conflict body: %v", err)
	}
	if conflict.Error == "" {
		t.Error("conflict body missing error message")
	}
	if conflict.LastDispensedAt == nil || !conflict.LastDispensedAt.Equal(at) {
		t.Errorf("last_dispensed_at = %v, want %v", conflict.LastDispensedAt, at)
	}
}

func TestCreateDispensationHandlerUnknownPatient(t *testing.T) {
	f := newFixture(t, schedule.Daily)
	h := NewHandler(f.svc)

	body := fmt.Sprintf(`{"patient_id":%q,"medication_id":%q,"program_id":%q}`,
		uuid.New(), f.medicationID, f.programID)
	rec := performRequest(h, http.MethodPost, "/api/v1/dispensations", body)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404; body: %s", rec.Code, rec.Body.String())
	}
}

func TestListPatientDispensationsHandler(t *testing.T) {
	f := newFixture(t, schedule.Daily)
	h := NewHandler(f.svc)

	for day := 1; day <= 3; day++ {
		at := time.Date(2025, 3, day, 9, 0, 0, 0, time.UTC)
		rec := performRequest(h, http.MethodPost, "/api/v1/dispensations", dispenseBody(f, at))
		if rec.Code != http.StatusCreated {
			t.Fatalf("seed dose %d: status = %d", day, rec.Code)
		}
	}

	rec := performRequest(h, http.MethodGet, "/api/v1/patients/"+f.patientID.String()+"/dispensations?page=1&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Data    []*Dispensation `json:"data"`
		Total   int             `json:"total"`
		HasMore bool            `json:"has_more"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Total != 3 || len(resp.Data) != 2 || !resp.HasMore {
		t.Errorf("total = %d, len = %d, has_more = %v; want 3, 2, true", resp.Total, len(resp.Data), resp.HasMore)
	}

	rec = performRequest(h, http.MethodGet, "/api/v1/patients/not-a-uuid/dispensations", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec.Code)
	}
}
