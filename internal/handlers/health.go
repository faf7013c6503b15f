package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type healthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
	Environment  string            `json:"environment"`
}

// Health reports each dependency as ok or error. Any failure turns the response into a 503.
func (h HandlerSet) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:       "ok",
		Dependencies: make(map[string]string, len(h.checks)),
		Environment:  h.cfg.Environment,
	}

	for _, check := range h.checks {
		status := "ok"
		if err := check.Ping(ctx); err != nil {
			status = "error"
			resp.Status = "degraded"
			h.log.Error().Err(err).Str("dependency", check.Name).Msg("health check failed")
		}
		resp.Dependencies[check.Name] = status
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}
