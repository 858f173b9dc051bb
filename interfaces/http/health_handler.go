package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"linkedpost/infrastructure/logger"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type IHealthHandler interface {
	Healthz(c *gin.Context)
}

type HealthHandler struct {
	checks map[string]HealthCheck
}

func NewHealthHandler(checks map[string]HealthCheck) IHealthHandler {
	return &HealthHandler{checks: checks}
}

// Healthz returns 200 when every dependency answers within two seconds.
func (h *HealthHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	deps := gin.H{}
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			logger.GetLogger().WithField("dependency", name).WithField("error", err).Warn("Health check failed")
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	res := gin.H{"status": "ok", "dependencies": deps}
	if status != http.StatusOK {
		res["status"] = "degraded"
	}
	c.JSON(status, res)
}
