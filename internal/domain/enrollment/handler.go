package enrollment

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/attendance", h.MarkAttendance)
	api.PUT("/attendance/:id", h.UpdateAttendance)
	api.GET("/enrollments/:id", h.GetEnrollment)
	api.POST("/enrollments/:id/recompute", h.RecomputeProgress)
}

func (h *Handler) MarkAttendance(c echo.Context) error {
	var a Attendance
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.MarkAttendance(c.Request().Context(), &a); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, a)
}

type updateAttendanceRequest struct {
	Status         AttendanceStatus `json:"status"`
	AttendanceDate *time.Time       `json:"attendance_date,omitempty"`
	Notes          *string          `json:"notes,omitempty"`
}

func (h *Handler) UpdateAttendance(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req updateAttendanceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	a, err := h.svc.UpdateAttendance(c.Request().Context(), id, req.Status, req.AttendanceDate, req.Notes)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "attendance not found")
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) GetEnrollment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	e, err := h.svc.GetEnrollment(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "enrollment not found")
	}
	return c.JSON(http.StatusOK, e)
}

// RecomputeProgress is the fire-and-forget trigger: the recompute runs
// synchronously but failures only get logged, so the caller always sees 202
// for a known enrollment.
func (h *Handler) RecomputeProgress(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.RecomputeProgress(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "enrollment not found")
		}
		h.svc.logger.Warn().Err(err).Str("enrollment_id", id.String()).Msg("manual recompute failed")
	}
	return c.NoContent(http.StatusAccepted)
}
