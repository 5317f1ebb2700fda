package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nc-warden.io/warden/internal/controller"
)

// GetStatus handles GET /status. Reports the cached session state
// without touching the controller.
func (s *Server) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.statusView())
}

// Login handles POST /session/login. Forces a fresh login with the
// configured credentials.
func (s *Server) Login(c *gin.Context) {
	if _, err := s.session.Login(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.statusView())
}

// Logout handles POST /session/logout.
func (s *Server) Logout(c *gin.Context) {
	if err := s.session.Logout(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) statusView() Status {
	st := Status{
		State:         s.session.State().String(),
		ControllerURL: s.session.URL(),
		Site:          s.session.Site(),
	}
	if sess := s.session.Peek(); sess != nil {
		// Usable auth material exists; FAILED still wins because the
		// controller has rejected it.
		st.Authenticated = s.session.State() != controller.StateFailed
		st.Family = string(sess.Family)
		created := sess.CreatedAt
		st.CreatedAt = &created
		expires := sess.ExpiresAt()
		st.ExpiresAt = &expires
	}
	return st
}
