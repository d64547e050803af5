package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-resilient-api/internal/resilience"
)

// Health reports liveness after pinging the database.
func (h *Handlers) Health(c *gin.Context) (any, error) {
	if h.ping != nil {
		if err := h.ping(c.Request.Context()); err != nil {
			return nil, resilience.NewHTTPError(http.StatusServiceUnavailable, map[string]any{
				"message": "Service unavailable",
				"details": err.Error(),
			})
		}
	}
	return gin.H{"status": "ok"}, nil
}
