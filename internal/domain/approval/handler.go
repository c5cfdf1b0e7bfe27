package approval

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/schemedesk/schemedesk/internal/platform/auth"
	"github.com/schemedesk/schemedesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/approvals", h.ListApprovals)
	api.GET("/approvals/:id", h.GetApproval)

	approvers := auth.RequireRole(auth.RoleFacility, auth.RoleHospital, auth.RoleDistrict, auth.RoleState)
	api.POST("/approvals/:id/approve", h.Approve, approvers)
	api.POST("/approvals/:id/reject", h.Reject, approvers)
}

type approveRequest struct {
	Comments string `json:"comments"`
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// ListApprovals serves a tier's pending queue. The tier defaults to the
// caller's role. Super without a role parameter gets every record, paginated.
func (h *Handler) ListApprovals(c echo.Context) error {
	ctx := c.Request().Context()
	callerRole := auth.RoleFromContext(ctx)
	role := c.QueryParam("role")

	if role == "" {
		if callerRole == auth.RoleSuper {
			pg := pagination.FromContext(c)
			recs, total, err := h.svc.ListRecords(ctx, pg.Limit, pg.Offset)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			return c.JSON(http.StatusOK, pagination.NewResponse(recs, total, pg.Limit, pg.Offset))
		}
		role = callerRole
	}
	if callerRole != "" && callerRole != auth.RoleSuper && role != callerRole {
		return echo.NewHTTPError(http.StatusForbidden, "cannot view another level's queue")
	}

	recs, err := h.svc.ListPendingByLevel(ctx, Level(role))
	if err != nil {
		return approvalError(err)
	}
	return c.JSON(http.StatusOK, recs)
}

func (h *Handler) GetApproval(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	rec, err := h.svc.GetRecord(c.Request().Context(), id)
	if err != nil {
		return approvalError(err)
	}
	c.Set("audit_patient_id", rec.PatientID.String())
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req approveRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}
	rec, err := h.svc.Approve(c.Request().Context(), id, req.Comments)
	if err != nil {
		return approvalError(err)
	}
	c.Set("audit_patient_id", rec.PatientID.String())
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.svc.Reject(c.Request().Context(), id, req.Reason)
	if err != nil {
		return approvalError(err)
	}
	c.Set("audit_patient_id", rec.PatientID.String())
	return c.JSON(http.StatusOK, rec)
}

func approvalError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrTerminal):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrForbiddenLevel):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrReasonRequired), errors.Is(err, ErrInvalidLevel):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
}
