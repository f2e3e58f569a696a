// Package activity provides the best-effort activity feed shown to clinic
// staff. Recording an event must never fail the write that caused it: the
// feed swallows and logs its own errors.
package activity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// EventType categorizes feed entries.
type EventType string

const (
	TypeDispensation EventType = "dispensation"
	TypeAttendance   EventType = "attendance"
)

// Event is a single activity feed entry.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Type      EventType  `json:"type"`
	Message   string     `json:"message"`
	PatientID uuid.UUID  `json:"patient_id"`
	ProgramID *uuid.UUID `json:"program_id,omitempty"`
	ActorID   *uuid.UUID `json:"actor_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Recorder receives events. Implementations must be safe for concurrent use
// and must not propagate failures to callers.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// Feed is an in-memory ring of recent events.
type Feed struct {
	mu     sync.RWMutex
	events []Event
	max    int
	logger zerolog.Logger
}

// NewFeed creates a Feed that retains up to max recent events.
func NewFeed(max int, logger zerolog.Logger) *Feed {
	if max <= 0 {
		max = 200
	}
	return &Feed{max: max, logger: logger}
}

// Record implements Recorder. It never returns an error; a zero-value event
// is logged and dropped.
func (f *Feed) Record(_ context.Context, e Event) {
	if e.Message == "" {
		f.logger.Warn().Str("type", string(e.Type)).Msg("dropping activity event without message")
		return
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	if len(f.events) > f.max {
		f.events = f.events[len(f.events)-f.max:]
	}
}

// Recent returns up to n events, newest first.
func (f *Feed) Recent(n int) []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if n <= 0 || n > len(f.events) {
		n = len(f.events)
	}
	out := make([]Event, 0, n)
	for i := len(f.events) - 1; i >= len(f.events)-n; i-- {
		out = append(out, f.events[i])
	}
	return out
}

// Handler serves the activity feed.
type Handler struct {
	feed *Feed
}

func NewHandler(feed *Feed) *Handler {
	return &Handler{feed: feed}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/activity", h.ListActivity)
}

func (h *Handler) ListActivity(c echo.Context) error {
	return c.JSON(http.StatusOK, h.feed.Recent(50))
}
