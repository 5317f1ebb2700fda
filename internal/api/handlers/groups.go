package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nc-warden.io/warden/internal/bulk"
	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/group"
)

type createGroupRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Kind        string         `json:"kind"`
	Members     []group.Member `json:"members"`
	Rules       []group.Rule   `json:"rules"`
}

type editGroupRequest struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	Rules       []group.Rule `json:"rules"`
}

type addMembersRequest struct {
	Members []group.Member `json:"members"`
}

type removeMembersRequest struct {
	Refs []string `json:"refs"`
}

type setAliasRequest struct {
	MAC   string `json:"mac"`
	Alias string `json:"alias"`
}

// ListGroups handles GET /groups.
func (s *Server) ListGroups(c *gin.Context) {
	groups, err := s.groups.List()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GroupList{Items: groups, Total: len(groups)})
}

// CreateGroup handles POST /groups.
func (s *Server) CreateGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	g, err := s.groups.Create(req.Name, req.Description, group.Kind(req.Kind), req.Members, req.Rules)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

// GetGroup handles GET /groups/{id}.
func (s *Server) GetGroup(c *gin.Context) {
	g, err := s.groups.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// EditGroup handles PATCH /groups/{id}.
func (s *Server) EditGroup(c *gin.Context) {
	var req editGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	g, err := s.groups.Edit(c.Param("id"), group.Update{
		Name:        req.Name,
		Description: req.Description,
		Rules:       req.Rules,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// DeleteGroup handles DELETE /groups/{id}.
func (s *Server) DeleteGroup(c *gin.Context) {
	if err := s.groups.Delete(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddGroupMembers handles POST /groups/{id}/members.
func (s *Server) AddGroupMembers(c *gin.Context) {
	var req addMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	g, added, err := s.groups.AddMembers(c.Param("id"), req.Members)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MembersChanged{Changed: added, Group: g})
}

// RemoveGroupMembers handles POST /groups/{id}/members/remove. Member
// references may be MACs or aliases.
func (s *Server) RemoveGroupMembers(c *gin.Context) {
	var req removeMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	g, removed, err := s.groups.RemoveMembers(c.Param("id"), req.Refs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MembersChanged{Changed: removed, Group: g})
}

// SetMemberAlias handles PUT /groups/{id}/alias. An empty alias clears
// the member's alias.
func (s *Server) SetMemberAlias(c *gin.Context) {
	var req setAliasRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	g, err := s.groups.SetAlias(c.Param("id"), req.MAC, req.Alias)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

// ResolveGroup handles GET /groups/{id}/resolve. Static groups resolve
// without touching the controller; auto groups are evaluated against a
// fresh snapshot.
func (s *Server) ResolveGroup(c *gin.Context) {
	ctx := c.Request.Context()

	g, err := s.groups.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	var snapshot []controller.Client
	if !g.IsStatic() {
		snapshot, err = controller.Snapshot(ctx, s.ctrl)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	macs, err := s.resolver.ResolveGroup(g, snapshot)
	if err != nil {
		respondError(c, err)
		return
	}
	if macs == nil {
		macs = []string{}
	}

	c.JSON(http.StatusOK, Resolution{
		GroupID: g.ID,
		Kind:    string(g.Kind),
		MACs:    macs,
		Count:   len(macs),
	})
}

// ApplyGroupAction handles POST /groups/{id}/actions.
func (s *Server) ApplyGroupAction(c *gin.Context) {
	ctx := c.Request.Context()

	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	g, err := s.groups.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	snapshot, err := controller.Snapshot(ctx, s.ctrl)
	if err != nil {
		respondError(c, err)
		return
	}

	macs, err := s.resolver.ResolveGroup(g, snapshot)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := s.executor.Apply(ctx, bulk.Action(req.Action), macs, snapshot)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ExportGroups handles GET /groups/export.
func (s *Server) ExportGroups(c *gin.Context) {
	groups, err := s.groups.Export()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, GroupExport{Groups: groups})
}

// ImportGroups handles POST /groups/import.
func (s *Server) ImportGroups(c *gin.Context) {
	var doc GroupExport
	if err := c.ShouldBindJSON(&doc); err != nil {
		badRequest(c, err)
		return
	}

	result, err := s.groups.Import(doc.Groups, queryBool(c, "replace"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
