package ginserver

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"cspace/internal/domain/shared/fault"
)

// statusFor maps a fault kind to its HTTP status.
func statusFor(err error) int {
	switch fault.Kind(err) {
	case fault.ErrNotFound:
		return http.StatusNotFound
	case fault.ErrDuplicate, fault.ErrInvalidTransition:
		return http.StatusConflict
	case fault.ErrExternalService:
		return http.StatusBadGateway
	case fault.ErrInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		}
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	body := gin.H{"error": err.Error()}
	if kind := fault.Kind(err); kind != nil {
		body["kind"] = kindName(kind)
	}
	c.JSON(status, body)
}

func kindName(kind error) string {
	switch {
	case errors.Is(kind, fault.ErrNotFound):
		return "not_found"
	case errors.Is(kind, fault.ErrDuplicate):
		return "duplicate"
	case errors.Is(kind, fault.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(kind, fault.ErrExternalService):
		return "external_service"
	case errors.Is(kind, fault.ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "kind": "invalid_input"})
}

// parseDate accepts yyyy-mm, yyyy-mm-dd or RFC 3339.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{"2006-01", time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fault.Invalid("invalid date %q", raw)
}

func optionalDate(c *gin.Context, key string) (time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := parseDate(raw)
	if err != nil {
		badRequest(c, err.Error())
		return time.Time{}, false
	}
	return t, true
}

func optionalInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		badRequest(c, key+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
