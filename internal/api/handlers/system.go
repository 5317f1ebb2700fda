package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListNetworks handles GET /networks.
func (s *Server) ListNetworks(c *gin.Context) {
	networks, err := s.ctrl.ListNetworks(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, NetworkList{Items: networks, Total: len(networks)})
}

// ListEvents handles GET /events.
func (s *Server) ListEvents(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	events, err := s.ctrl.ListEvents(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, EventList{Items: events, Total: len(events)})
}

// GetControllerHealth handles GET /health. It reports the controller's
// own per-subsystem site health, not the serve process liveness.
func (s *Server) GetControllerHealth(c *gin.Context) {
	health, err := s.ctrl.Health(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, HealthList{Items: health, Total: len(health)})
}
