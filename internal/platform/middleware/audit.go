package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediconnect/mediconnect/internal/platform/auth"
)

// AuditEntry records who touched which clinical resource and with what outcome.
type AuditEntry struct {
	UserID       string
	Role         string
	ResourceType string
	ResourceID   string
	PatientID    string
	Action       string // read, create, update
	IPAddress    string
	UserAgent    string
	Path         string
	Method       string
	Timestamp    time.Time
	RequestID    string
	StatusCode   int
}

// AuditRecorder persists audit entries in addition to the log line.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// auditedResources are the /api/<segment> prefixes carrying patient data.
var auditedResources = map[string]bool{
	"patients":        true,
	"doctors":         true,
	"appointments":    true,
	"prescriptions":   true,
	"labs":            true,
	"bills":           true,
	"medical-records": true,
	"admin":           true,
}

// Audit emits a "phi_access" log line for every request to a clinical
// resource, after the handler and error handler have run.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			resource, resourceID := splitResource(path)
			if !auditedResources[resource] {
				return next(c)
			}

			if err := next(c); err != nil {
				c.Error(err)
			}

			entry := AuditEntry{
				Timestamp:    time.Now().UTC(),
				Path:         path,
				Method:       req.Method,
				IPAddress:    c.RealIP(),
				UserAgent:    req.UserAgent(),
				StatusCode:   c.Response().Status,
				Action:       httpMethodToAction(req.Method),
				ResourceType: resource,
				ResourceID:   resourceID,
				PatientID:    c.QueryParam("patient_id"),
				UserID:       auth.UserIDFromContext(req.Context()),
			}
			if p, ok := auth.PrincipalFromContext(req.Context()); ok {
				entry.Role = string(p.Role)
				if entry.PatientID == "" && p.PatientID != nil {
					entry.PatientID = p.PatientID.String()
				}
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			evt := logger.Info()
			if entry.StatusCode == http.StatusForbidden {
				evt = logger.Warn()
			}
			evt.
				Str("type", "phi_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("resource_type", entry.ResourceType).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return nil
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	default:
		return "read"
	}
}

// splitResource returns the first segment under /api/ and the first UUID
// segment after it, if any.
//
//	/api/appointments/<id>/cancel -> appointments, <id>
//	/api/patients/lab-results     -> patients, ""
func splitResource(path string) (string, string) {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return "", ""
	}
	segments := strings.Split(rest, "/")
	resource := segments[0]
	for _, s := range segments[1:] {
		if _, err := uuid.Parse(s); err == nil {
			return resource, s
		}
	}
	return resource, ""
}
