package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestFeed(max int) *Feed {
	return NewFeed(max, zerolog.New(os.Stderr))
}

func TestFeed_RecordAndRecent(t *testing.T) {
	f := newTestFeed(10)
	ctx := context.Background()

	f.Record(ctx, Event{Type: TypeDispensation, Message: "first", PatientID: uuid.New()})
	f.Record(ctx, Event{Type: TypeAttendance, Message: "second", PatientID: uuid.New()})

	got := f.Recent(10)
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Message != "second" {
		t.Errorf("expected newest first, got %q", got[0].Message)
	}
	if got[0].ID == uuid.Nil || got[0].CreatedAt.IsZero() {
		t.Error("expected ID and timestamp to be filled in")
	}
}

func TestFeed_RingEviction(t *testing.T) {
	f := newTestFeed(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		f.Record(ctx, Event{Type: TypeDispensation, Message: fmt.Sprintf("event %d", i), PatientID: uuid.New()})
	}

	got := f.Recent(0)
	if len(got) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(got))
	}
	if got[0].Message != "event 4" || got[2].Message != "event 2" {
		t.Errorf("unexpected retained window: %q .. %q", got[0].Message, got[2].Message)
	}
}

func TestFeed_DropsEmptyMessage(t *testing.T) {
	f := newTestFeed(10)
	f.Record(context.Background(), Event{Type: TypeDispensation})
	if got := f.Recent(0); len(got) != 0 {
		t.Errorf("expected empty feed, got %d events", len(got))
	}
}

func TestHandler_ListActivity(t *testing.T) {
	f := newTestFeed(10)
	f.Record(context.Background(), Event{Type: TypeDispensation, Message: "dispensed", PatientID: uuid.New()})

	h := NewHandler(f)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/activity", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.ListActivity(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	var events []Event
	json.Unmarshal(rec.Body.Bytes(), &events)
	if len(events) != 1 || events[0].Message != "dispensed" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}
