package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/epishare/epishare/internal/platform/auth"
)

// AuditEntry captures one access to surveillance data: who touched which
// entity, how, from where, and with what outcome.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	EntityType string
	EntityID   string
	PartnerID  string
	Action     string // read, create, update, delete
	IPAddress  string
	UserAgent  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AuditRecorder persists audit entries. The middleware falls back to
// structured logging when none is given, so tests can plug in a mock.
type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit returns middleware that writes an access trail for the operator API
// and the exchange endpoints. Case and contact records carry personal data,
// so every access is attributed to a user or, on exchange routes, to the
// sending partner instance.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			// Run the handler first so the response status is known.
			err := next(c)

			entry := AuditEntry{
				Timestamp:  time.Now().UTC(),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
			}

			ctx := req.Context()
			entry.UserID = auth.UserIDFromContext(ctx)
			entry.UserRoles = auth.RolesFromContext(ctx)
			entry.PartnerID = req.Header.Get("X-Sender-ID")

			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			entry.Action = httpMethodToAction(req.Method)
			entry.EntityType, entry.EntityID = splitEntityPath(path)

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "data_access").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("partner_id", entry.PartnerID).
				Str("entity_type", entry.EntityType).
				Str("entity_id", entry.EntityID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("data_access")

			return err
		}
	}
}

func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, "/api/v1/") || strings.HasPrefix(path, "/exchange/")
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
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

// splitEntityPath pulls the entity collection and, when present, the entity
// id from a path like /api/v1/cases/<uuid>/contacts or /exchange/case/save.
func splitEntityPath(path string) (entityType, entityID string) {
	var segments []string
	switch {
	case strings.HasPrefix(path, "/api/v1/"):
		segments = strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	case strings.HasPrefix(path, "/exchange/"):
		segments = strings.Split(strings.TrimPrefix(path, "/exchange/"), "/")
	}
	if len(segments) == 0 || segments[0] == "" {
		return "unknown", ""
	}
	entityType = segments[0]
	if len(segments) > 1 && isUUIDLike(segments[1]) {
		entityID = segments[1]
	}
	return entityType, entityID
}

func isUUIDLike(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
