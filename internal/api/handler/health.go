package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SessionCounter reports the number of open sessions.
type SessionCounter interface {
	Len() int
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	sessions SessionCounter
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions SessionCounter) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.sessions != nil {
		body["sessions"] = h.sessions.Len()
	}
	c.JSON(http.StatusOK, body)
}
