// Package handlers implements the serve-mode API over the controller
// management core. Handlers return plain structs; the OpenAPI document
// in internal/api is the contract they follow.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nc-warden.io/warden/internal/bulk"
	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/group"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
	"nc-warden.io/warden/internal/pkg/logger"
	"nc-warden.io/warden/internal/service"
)

// SessionControl is the slice of the session manager the API needs.
// *controller.Manager satisfies it.
type SessionControl interface {
	State() controller.State
	Peek() *controller.Session
	Login(ctx context.Context) (*controller.Session, error)
	Logout(ctx context.Context) error
	URL() string
	Site() string
}

// Server implements all serve-mode API handlers.
type Server struct {
	session  SessionControl
	ctrl     controller.Controller
	groups   *group.Store
	resolver *group.Resolver
	executor *bulk.Executor
	identify *service.Identifier
}

// ServerDeps holds all dependencies for creating a Server.
// Manual DI, no framework.
type ServerDeps struct {
	Session  SessionControl
	Ctrl     controller.Controller
	Groups   *group.Store
	Resolver *group.Resolver
	Executor *bulk.Executor
}

// NewServer creates a new Server with all dependencies.
func NewServer(deps ServerDeps) *Server {
	return &Server{
		session:  deps.Session,
		ctrl:     deps.Ctrl,
		groups:   deps.Groups,
		resolver: deps.Resolver,
		executor: deps.Executor,
		identify: service.NewIdentifier(deps.Ctrl),
	}
}

// RegisterRoutes mounts every handler on the given group (normally
// /api/v1). The log-level endpoint sits outside the OpenAPI contract;
// the validator middleware passes unknown paths through.
func (s *Server) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", s.GetStatus)
	rg.POST("/session/login", s.Login)
	rg.POST("/session/logout", s.Logout)

	rg.GET("/clients", s.ListClients)
	rg.GET("/clients/count", s.CountClients)
	rg.GET("/clients/:id", s.GetClient)
	rg.POST("/clients/:id/actions", s.ApplyClientAction)

	rg.GET("/groups", s.ListGroups)
	rg.POST("/groups", s.CreateGroup)
	rg.GET("/groups/export", s.ExportGroups)
	rg.POST("/groups/import", s.ImportGroups)
	rg.GET("/groups/:id", s.GetGroup)
	rg.PATCH("/groups/:id", s.EditGroup)
	rg.DELETE("/groups/:id", s.DeleteGroup)
	rg.POST("/groups/:id/members", s.AddGroupMembers)
	rg.POST("/groups/:id/members/remove", s.RemoveGroupMembers)
	rg.PUT("/groups/:id/alias", s.SetMemberAlias)
	rg.GET("/groups/:id/resolve", s.ResolveGroup)
	rg.POST("/groups/:id/actions", s.ApplyGroupAction)

	rg.GET("/devices", s.ListDevices)
	rg.POST("/devices/:mac/restart", s.RestartDevice)
	rg.POST("/devices/:mac/locate", s.LocateDevice)

	rg.GET("/networks", s.ListNetworks)
	rg.GET("/events", s.ListEvents)
	rg.GET("/health", s.GetControllerHealth)

	rg.GET("/log/level", gin.WrapH(logger.HTTPHandler()))
	rg.PUT("/log/level", gin.WrapH(logger.HTTPHandler()))
}

// respondError maps an error onto its HTTP shape. AppErrors carry their
// own status and code; anything else is a generic 500.
func respondError(c *gin.Context, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		payload := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		}
		if len(appErr.Params) > 0 {
			payload["params"] = appErr.Params
		}
		c.JSON(appErr.HTTPStatus, payload)
		return
	}

	logger.Error("Unhandled handler error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    apperrors.CodeInternal,
		"message": "An internal error occurred",
	})
}

func badRequest(c *gin.Context, err error) {
	respondError(c, apperrors.BadRequest(apperrors.CodeValidationFailed, err.Error()))
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(c.Query(name))
	return v
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
