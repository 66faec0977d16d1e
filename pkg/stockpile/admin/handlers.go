// Package admin serves user management and system statistics to admins.
package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mikepea/stockpile/pkg/stockpile/apierr"
	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// Syncer recomputes derived group membership.
type Syncer interface {
	Sync(ctx context.Context) error
}

// Handler handles admin requests
type Handler struct {
	store *store.Store
	sync  Syncer
}

// NewHandler creates a new admin handler
func NewHandler(s *store.Store, sync Syncer) *Handler {
	return &Handler{store: s, sync: sync}
}

// CreateUserRequest represents the request to create a user
type CreateUserRequest struct {
	Username string   `json:"username" binding:"required,max=64"`
	Password string   `json:"password" binding:"required,min=6,max=72"`
	Role     string   `json:"role" binding:"omitempty,oneof=admin user"`
	Groups   []string `json:"groups"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Username *string  `json:"username" binding:"omitempty,min=1,max=64"`
	Password *string  `json:"password" binding:"omitempty,min=6,max=72"`
	Role     *string  `json:"role" binding:"omitempty,oneof=admin user"`
	Groups   []string `json:"groups"`
}

// StatsResponse represents system statistics
type StatsResponse struct {
	TotalUsers         int `json:"totalUsers"`
	AdminUsers         int `json:"adminUsers"`
	TotalGroups        int `json:"totalGroups"`
	TotalWarehouses    int `json:"totalWarehouses"`
	TotalComponents    int `json:"totalComponents"`
	LowStockComponents int `json:"lowStockComponents"`
	OrphanedComponents int `json:"orphanedComponents"`
}

// ListUsers returns all users (admin only)
// @Summary List users
// @Tags admin
// @Produce json
// @Param q query string false "Username substring"
// @Param role query string false "Role filter"
// @Success 200 {array} auth.UserResponse
// @Security BearerAuth
// @Router /users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	search := strings.ToLower(c.Query("q"))
	role := c.Query("role")

	users := make([]auth.UserResponse, 0)
	for _, u := range h.store.ListUsers(c.Request.Context()) {
		if search != "" && !strings.Contains(strings.ToLower(u.Username), search) {
			continue
		}
		if role != "" && string(u.Role) != role {
			continue
		}
		users = append(users, auth.NewUserResponse(u))
	}
	c.JSON(http.StatusOK, users)
}

// GetUser returns a single user by ID (admin only)
// @Summary Get user
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} auth.UserResponse
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	u, ok := h.store.GetUser(c.Request.Context(), c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	c.JSON(http.StatusOK, auth.NewUserResponse(u))
}

// CreateUser creates a user with an optional role and group list (admin only)
// @Summary Create user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "User"
// @Success 201 {object} auth.UserResponse
// @Failure 400 {object} apierr.ValidationResponse
// @Security BearerAuth
// @Router /users [post]
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		apierr.Field(c, "username", "is required")
		return
	}
	ctx := c.Request.Context()
	if !h.checkGroups(c, req.Groups) {
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}
	role := models.SystemRoleUser
	if req.Role != "" {
		role = models.SystemRole(req.Role)
	}

	user, err := h.store.CreateUser(ctx, models.User{Username: username, Password: hashedPassword, Role: role})
	if errors.Is(err, store.ErrConflict) {
		apierr.Field(c, "username", "already exists")
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	if req.Groups != nil {
		h.setMembership(ctx, user.ID, req.Groups)
	}
	if !h.resync(c) {
		return
	}
	user, _ = h.store.GetUser(ctx, user.ID)
	c.JSON(http.StatusCreated, auth.NewUserResponse(user))
}

// UpdateUser updates a user's profile (admin only)
// @Summary Update user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Fields to change"
// @Success 200 {object} auth.UserResponse
// @Failure 400 {object} apierr.ValidationResponse
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /users/{id} [patch]
func (h *Handler) UpdateUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, ok := h.store.GetUser(ctx, id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	// Prevent admin from demoting themselves
	current, _ := auth.CurrentUser(c)
	if id == current.ID && req.Role != nil && models.SystemRole(*req.Role) != models.SystemRoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}
	if !h.checkGroups(c, req.Groups) {
		return
	}

	var patch models.UserPatch
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			apierr.Field(c, "username", "is required")
			return
		}
		patch.Username = &username
	}
	if req.Password != nil {
		hashedPassword, err := auth.HashPassword(*req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
			return
		}
		patch.Password = &hashedPassword
	}
	if req.Role != nil {
		role := models.SystemRole(*req.Role)
		patch.Role = &role
	}

	user, ok, err := h.store.UpdateUser(ctx, id, patch)
	if errors.Is(err, store.ErrConflict) {
		apierr.Field(c, "username", "already taken")
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if req.Groups != nil {
		h.setMembership(ctx, id, req.Groups)
		if !h.resync(c) {
			return
		}
		user, _ = h.store.GetUser(ctx, id)
	}
	c.JSON(http.StatusOK, auth.NewUserResponse(user))
}

// DeleteUser removes a user and their group memberships (admin only)
// @Summary Delete user
// @Tags admin
// @Param id path string true "User ID"
// @Success 204
// @Failure 400 {object} map[string]string "Cannot delete yourself"
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	// Prevent admin from deleting themselves
	current, _ := auth.CurrentUser(c)
	if id == current.ID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}
	if _, ok := h.store.GetUser(ctx, id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	h.setMembership(ctx, id, nil)
	if !h.store.DeleteUser(ctx, id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if !h.resync(c) {
		return
	}
	c.Status(http.StatusNoContent)
}

// GetStats returns system-wide statistics (admin only)
// @Summary System statistics
// @Tags admin
// @Produce json
// @Success 200 {object} StatsResponse
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	ctx := c.Request.Context()
	var stats StatsResponse

	users := h.store.ListUsers(ctx)
	stats.TotalUsers = len(users)
	for _, u := range users {
		if u.IsAdmin() {
			stats.AdminUsers++
		}
	}
	stats.TotalGroups = len(h.store.ListGroups(ctx))

	warehouses := make(map[string]struct{})
	for _, w := range h.store.ListWarehouses(ctx) {
		warehouses[w.ID] = struct{}{}
	}
	stats.TotalWarehouses = len(warehouses)

	for _, comp := range h.store.ListComponents(ctx) {
		stats.TotalComponents++
		if comp.IsLowStock() {
			stats.LowStockComponents++
		}
		if comp.WarehouseID == nil {
			stats.OrphanedComponents++
			continue
		}
		if _, ok := warehouses[*comp.WarehouseID]; !ok {
			stats.OrphanedComponents++
		}
	}

	c.JSON(http.StatusOK, stats)
}

// checkGroups rejects group ids that name no group.
func (h *Handler) checkGroups(c *gin.Context, ids []string) bool {
	ctx := c.Request.Context()
	var details []apierr.FieldError
	for _, id := range ids {
		if _, ok := h.store.GetGroup(ctx, id); !ok {
			details = append(details, apierr.FieldError{Field: "groups", Message: "unknown group " + id})
		}
	}
	if len(details) > 0 {
		apierr.Validation(c, details...)
		return false
	}
	return true
}

// setMembership makes userID a member of exactly the groups in want by
// editing each group's member list.
func (h *Handler) setMembership(ctx context.Context, userID string, want []string) {
	wanted := make(map[string]struct{}, len(want))
	for _, id := range want {
		wanted[id] = struct{}{}
	}
	for _, g := range h.store.ListGroups(ctx) {
		_, shouldBe := wanted[g.ID]
		is := g.HasMember(userID)
		var members []string
		switch {
		case shouldBe && !is:
			members = append(g.MemberIDs, userID)
		case !shouldBe && is:
			members = make([]string, 0, len(g.MemberIDs))
			for _, m := range g.MemberIDs {
				if m != userID {
					members = append(members, m)
				}
			}
		default:
			continue
		}
		if _, ok := h.store.UpdateGroup(ctx, g.ID, models.GroupPatch{MemberIDs: members}); !ok {
			log.Warn().Str("group", g.ID).Str("user", userID).Msg("group vanished while updating membership")
		}
	}
}

func (h *Handler) resync(c *gin.Context) bool {
	if err := h.sync.Sync(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to synchronize group membership"})
		return false
	}
	return true
}

// RegisterRoutes registers admin routes on an authenticated router group.
// Every route requires the admin role.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("", auth.RequireAdmin())
	admin.GET("/admin/stats", h.GetStats)
	admin.GET("/users", h.ListUsers)
	admin.POST("/users", h.CreateUser)
	admin.GET("/users/:id", h.GetUser)
	admin.PATCH("/users/:id", h.UpdateUser)
	admin.DELETE("/users/:id", h.DeleteUser)
}
