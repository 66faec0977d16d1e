// Package groups serves the group API. Group records own membership; every
// mutation is followed by a membership sync so User.Groups stays in step.
package groups

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/stockpile/pkg/stockpile/apierr"
	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// Syncer recomputes derived group membership.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Handler handles group-related requests
type Handler struct {
	store *store.Store
	sync  Syncer
}

// NewHandler creates a new groups handler
func NewHandler(s *store.Store, sync Syncer) *Handler {
	return &Handler{store: s, sync: sync}
}

// CreateGroupRequest represents the request to create a group
type CreateGroupRequest struct {
	Name      string   `json:"name" binding:"required,max=100"`
	MemberIDs []string `json:"memberIds"`
}

// UpdateGroupRequest represents the request to update a group
type UpdateGroupRequest struct {
	Name      *string  `json:"name" binding:"omitempty,max=100"`
	MemberIDs []string `json:"memberIds"`
}

// GroupResponse represents a group in API responses
type GroupResponse struct {
	models.Group
	MemberCount int `json:"memberCount"`
}

func newGroupResponse(g models.Group) GroupResponse {
	return GroupResponse{Group: g, MemberCount: len(g.MemberIDs)}
}

// List returns the groups visible to the caller
// @Summary List groups
// @Description Admins see every group; other users see the groups they belong to
// @Tags groups
// @Produce json
// @Success 200 {array} GroupResponse
// @Security BearerAuth
// @Router /groups [get]
func (h *Handler) List(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	groups := make([]GroupResponse, 0)
	for _, g := range h.store.ListGroups(c.Request.Context()) {
		if user.IsAdmin() || g.HasMember(user.ID) {
			groups = append(groups, newGroupResponse(g))
		}
	}
	c.JSON(http.StatusOK, groups)
}

// visible returns the group if the caller may see it.
func (h *Handler) visible(c *gin.Context) (models.Group, bool) {
	user, _ := auth.CurrentUser(c)
	g, ok := h.store.GetGroup(c.Request.Context(), c.Param("id"))
	if !ok || (!user.IsAdmin() && !g.HasMember(user.ID)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return models.Group{}, false
	}
	return g, true
}

// Get returns a specific group
// @Summary Get a group
// @Tags groups
// @Produce json
// @Param id path string true "Group ID"
// @Success 200 {object} GroupResponse
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	g, ok := h.visible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newGroupResponse(g))
}

// Create creates a new group (admin only)
// @Summary Create a group
// @Tags groups
// @Accept json
// @Produce json
// @Param request body CreateGroupRequest true "Group details"
// @Success 201 {object} GroupResponse
// @Failure 400 {object} apierr.ValidationResponse
// @Failure 403 {object} map[string]string "Admin access required"
// @Security BearerAuth
// @Router /groups [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		apierr.Field(c, "name", "is required")
		return
	}
	ctx := c.Request.Context()
	if !h.checkMembers(c, req.MemberIDs) {
		return
	}

	group, err := h.store.CreateGroup(ctx, models.Group{Name: name, MemberIDs: req.MemberIDs})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create group"})
		return
	}
	if !h.resync(c) {
		return
	}
	c.JSON(http.StatusCreated, newGroupResponse(group))
}

// Update renames a group or replaces its member list (admin only)
// @Summary Update a group
// @Tags groups
// @Accept json
// @Produce json
// @Param id path string true "Group ID"
// @Param request body UpdateGroupRequest true "Updated group details"
// @Success 200 {object} GroupResponse
// @Failure 400 {object} apierr.ValidationResponse
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	var req UpdateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	if !h.checkMembers(c, req.MemberIDs) {
		return
	}

	var patch models.GroupPatch
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			patch.Name = &name
		}
	}
	patch.MemberIDs = req.MemberIDs

	group, ok := h.store.UpdateGroup(c.Request.Context(), c.Param("id"), patch)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	if !h.resync(c) {
		return
	}
	c.JSON(http.StatusOK, newGroupResponse(group))
}

// Delete deletes a group (admin only)
// @Summary Delete a group
// @Tags groups
// @Param id path string true "Group ID"
// @Success 204
// @Failure 403 {object} map[string]string "Admin access required"
// @Failure 404 {object} map[string]string "Group not found"
// @Security BearerAuth
// @Router /groups/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	if !h.store.DeleteGroup(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Group not found"})
		return
	}
	if !h.resync(c) {
		return
	}
	c.Status(http.StatusNoContent)
}

// checkMembers rejects member ids that name no user.
func (h *Handler) checkMembers(c *gin.Context, ids []string) bool {
	ctx := c.Request.Context()
	var details []apierr.FieldError
	for _, id := range ids {
		if _, ok := h.store.GetUser(ctx, id); !ok {
			details = append(details, apierr.FieldError{Field: "memberIds", Message: "unknown user " + id})
		}
	}
	if len(details) > 0 {
		apierr.Validation(c, details...)
		return false
	}
	return true
}

func (h *Handler) resync(c *gin.Context) bool {
	if err := h.sync.Sync(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to synchronize group membership"})
		return false
	}
	return true
}

// RegisterRoutes registers group routes on an authenticated router group.
// Reads are open to members; writes require the admin role.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/groups", h.List)
	rg.GET("/groups/:id", h.Get)
	rg.GET("/groups/:id/members", h.ListMembers)

	admin := rg.Group("", auth.RequireAdmin())
	admin.POST("/groups", h.Create)
	admin.PATCH("/groups/:id", h.Update)
	admin.DELETE("/groups/:id", h.Delete)
	admin.POST("/groups/:id/members", h.AddMember)
	admin.DELETE("/groups/:id/members/:userId", h.RemoveMember)
}
