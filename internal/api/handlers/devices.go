package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nc-warden.io/warden/internal/controller"
)

type locateRequest struct {
	Enabled bool `json:"enabled"`
}

// ListDevices handles GET /devices.
func (s *Server) ListDevices(c *gin.Context) {
	devices, err := s.ctrl.ListDevices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, DeviceList{Items: devices, Total: len(devices)})
}

// RestartDevice handles POST /devices/{mac}/restart. The controller
// acknowledges before the device finishes rebooting, hence 202.
func (s *Server) RestartDevice(c *gin.Context) {
	mac := c.Param("mac")
	if err := s.ctrl.RestartDevice(c.Request.Context(), mac); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, DeviceAction{
		MAC:    controller.NormalizeMAC(mac),
		Action: "restart",
	})
}

// LocateDevice handles POST /devices/{mac}/locate.
func (s *Server) LocateDevice(c *gin.Context) {
	var req locateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	mac := c.Param("mac")
	if err := s.ctrl.SetLocate(c.Request.Context(), mac, req.Enabled); err != nil {
		respondError(c, err)
		return
	}

	locating := req.Enabled
	c.JSON(http.StatusOK, DeviceAction{
		MAC:      controller.NormalizeMAC(mac),
		Action:   "locate",
		Locating: &locating,
	})
}
