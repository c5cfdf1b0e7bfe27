package scheme

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
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
	api.GET("/schemes", h.ListSchemes)
	api.GET("/schemes/:id", h.GetScheme)
	api.POST("/schemes/eligibility", h.CheckEligibility)

	superOnly := auth.RequireRole(auth.RoleSuper)
	api.POST("/schemes", h.CreateScheme, superOnly)
	api.DELETE("/schemes/:id", h.DeleteScheme, superOnly)
}

func (h *Handler) ListSchemes(c echo.Context) error {
	schemes, err := h.svc.ListSchemes(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if schemes == nil {
		schemes = []*Scheme{}
	}
	return c.JSON(http.StatusOK, schemes)
}

func (h *Handler) GetScheme(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	s, err := h.svc.GetScheme(c.Request().Context(), id)
	if err != nil {
		return schemeError(err)
	}
	return c.JSON(http.StatusOK, s)
}

func (h *Handler) CreateScheme(c echo.Context) error {
	var s Scheme
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	s.ID = uuid.Nil
	if err := h.svc.CreateScheme(c.Request().Context(), &s); err != nil {
		return schemeError(err)
	}
	return c.JSON(http.StatusCreated, s)
}

func (h *Handler) DeleteScheme(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if err := h.svc.DeleteScheme(c.Request().Context(), id); err != nil {
		return schemeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) CheckEligibility(c echo.Context) error {
	var a Attributes
	if err := c.Bind(&a); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	matched, err := h.svc.Eligible(c.Request().Context(), a)
	if err != nil {
		return schemeError(err)
	}
	return c.JSON(http.StatusOK, matched)
}

func schemeError(err error) error {
	var verr *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "scheme not found")
	case errors.As(err, &verr):
		return echo.NewHTTPError(http.StatusBadRequest, verr.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
