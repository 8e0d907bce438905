package obs

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultProbeTimeout = 2 * time.Second

// HealthCheck probes one dependency the service cannot serve without.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandlers serves the orchestrator probes. Readiness runs every check
// under one deadline and reports each dependency by name, so an operator can
// tell a Mongo outage from a Redis one.
type HealthHandlers struct {
	Checks  []HealthCheck
	Timeout time.Duration
}

func (h HealthHandlers) Livez(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (h HealthHandlers) Readyz(c *gin.Context) {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	ready := true
	results := make(map[string]string, len(h.Checks))
	for _, check := range h.Checks {
		if err := check.Probe(ctx); err != nil {
			ready = false
			results[check.Name] = err.Error()
			continue
		}
		results[check.Name] = "ok"
	}

	code := http.StatusOK
	if !ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"ready": ready, "checks": results})
}
