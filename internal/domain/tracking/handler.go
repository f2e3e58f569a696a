package tracking

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cliniccore/adherence/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/tracking", h.GetTrackingTable)
}

func (h *Handler) GetTrackingTable(c echo.Context) error {
	q := Query{
		Page:        pagination.FromContext(c),
		Search:      c.QueryParam("search"),
		OverdueOnly: c.QueryParam("overdue") == "true",
	}

	table, err := h.svc.TrackingTable(c.Request().Context(), q)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, table)
}
