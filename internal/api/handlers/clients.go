package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"nc-warden.io/warden/internal/bulk"
	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/service"
)

type actionRequest struct {
	Action string `json:"action"`
}

// ListClients handles GET /clients.
func (s *Server) ListClients(c *gin.Context) {
	ctx := c.Request.Context()

	clients, err := s.listing(ctx, queryBool(c, "all"))
	if err != nil {
		respondError(c, err)
		return
	}

	filter := service.Filter{
		Network:  c.Query("network"),
		Wired:    queryBool(c, "wired"),
		Wireless: queryBool(c, "wireless"),
		Blocked:  queryBool(c, "blocked"),
		Guest:    queryBool(c, "guest"),
	}
	clients, err = filter.Apply(clients)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, ClientList{Items: clientsToAPI(clients), Total: len(clients)})
}

// CountClients handles GET /clients/count.
func (s *Server) CountClients(c *gin.Context) {
	ctx := c.Request.Context()

	by, err := service.ParseCountBy(c.DefaultQuery("by", string(service.CountByType)))
	if err != nil {
		respondError(c, err)
		return
	}

	clients, err := s.listing(ctx, queryBool(c, "all"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, CountResult{
		By:     string(by),
		Counts: service.CountClients(clients, by),
		Total:  len(clients),
	})
}

// GetClient handles GET /clients/{id}. The id is a MAC in any common
// syntax or a display name/hostname.
func (s *Server) GetClient(c *gin.Context) {
	client, err := s.identify.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, clientToAPI(client))
}

// ApplyClientAction handles POST /clients/{id}/actions. A single client
// runs through the bulk executor so the outcome report has the same
// shape as group actions.
func (s *Server) ApplyClientAction(c *gin.Context) {
	ctx := c.Request.Context()

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	client, err := s.identify.Resolve(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	snapshot, err := controller.Snapshot(ctx, s.ctrl)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.executor.Apply(ctx, bulk.Action(req.Action), []string{client.MAC}, snapshot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// listing picks the client source: active clients by default, the full
// merged snapshot with all=true so offline clients appear with their
// stored attributes.
func (s *Server) listing(ctx context.Context, all bool) ([]controller.Client, error) {
	if all {
		return controller.Snapshot(ctx, s.ctrl)
	}
	return s.ctrl.ListActiveClients(ctx)
}
