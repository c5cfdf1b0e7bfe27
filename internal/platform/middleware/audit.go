package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/schemedesk/schemedesk/internal/platform/auth"
)

// AuditEntry records who touched which patient or approval record.
type AuditEntry struct {
	UserID     string
	Role       string
	Resource   string // patients, approvals, schemes, stats, auth
	RecordID   string
	PatientID  string
	Action     string // read, create, delete, approve, reject, login, logout
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit emits a type=access log line for every /api/v1 request after the
// handler has run, and hands the same entry to recorder when one is given.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil {
				status = http.StatusInternalServerError
			}

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: status,
				Resource:   extractResource(path),
				Action:     auditAction(req.Method, path),
			}

			// The handler may have replaced the request; read auth from the
			// current one.
			ctx := c.Request().Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.Role = auth.RoleFromContext(ctx)
			entry.RequestID, _ = c.Get("request_id").(string)

			if id := c.Param("id"); isUUID(id) {
				entry.RecordID = id
			}
			if entry.Resource == "patients" {
				entry.PatientID = entry.RecordID
			}
			if pid, ok := c.Get("audit_patient_id").(string); ok {
				entry.PatientID = pid
			}

			if recorder != nil {
				if recErr := recorder.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource", entry.Resource).
				Str("record_id", entry.RecordID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("access")

			return err
		}
	}
}

func auditAction(method, path string) string {
	switch {
	case method == http.MethodPost && strings.HasSuffix(path, "/approve"):
		return "approve"
	case method == http.MethodPost && strings.HasSuffix(path, "/reject"):
		return "reject"
	case method == http.MethodPost && strings.HasSuffix(path, "/auth/login"):
		return "login"
	case method == http.MethodPost && strings.HasSuffix(path, "/auth/logout"):
		return "logout"
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the first path segment under /api/v1/:
//
//	/api/v1/approvals/123/approve -> approvals
func extractResource(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}

func isUUID(s string) bool {
	if s == "" {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
