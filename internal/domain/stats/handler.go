package stats

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/schemedesk/schemedesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/stats/dashboard", h.Dashboard)
}

// Dashboard reports stats for ?role=, defaulting to the caller's role.
func (h *Handler) Dashboard(c echo.Context) error {
	ctx := c.Request().Context()
	role := c.QueryParam("role")
	if role == "" {
		role = auth.RoleFromContext(ctx)
	}
	if !auth.ValidRole(role) {
		return echo.NewHTTPError(http.StatusBadRequest, "role must be facility, hospital, district, state, or super")
	}
	st, err := h.svc.ComputeDashboardStats(ctx, role)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, st)
}
