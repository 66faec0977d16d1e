// Package warehouses serves the warehouse API.
package warehouses

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/mikepea/stockpile/pkg/stockpile/access"
	"github.com/mikepea/stockpile/pkg/stockpile/apierr"
	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// Handler handles warehouse-related requests
type Handler struct {
	store    *store.Store
	resolver *access.Resolver
}

// NewHandler creates a new warehouses handler
func NewHandler(s *store.Store, resolver *access.Resolver) *Handler {
	return &Handler{store: s, resolver: resolver}
}

// CreateWarehouseRequest represents the request to create a warehouse
type CreateWarehouseRequest struct {
	Name     string   `json:"name" binding:"max=100"`
	Type     string   `json:"type" binding:"omitempty,oneof=personal group"`
	GroupID  string   `json:"groupId"`
	GroupIDs []string `json:"groupIds"`
}

// UpdateWarehouseRequest represents the request to rename a warehouse
type UpdateWarehouseRequest struct {
	Name *string `json:"name" binding:"omitempty,max=100"`
}

// WarehouseResponse is a warehouse with its group's display name
type WarehouseResponse struct {
	models.Warehouse
	GroupName string `json:"groupName,omitempty"`
}

func (h *Handler) withGroupNames(ctx context.Context, warehouses []models.Warehouse) []WarehouseResponse {
	names := make(map[string]string)
	for _, g := range h.store.ListGroups(ctx) {
		names[g.ID] = g.Name
	}
	out := make([]WarehouseResponse, 0, len(warehouses))
	for _, w := range warehouses {
		out = append(out, WarehouseResponse{Warehouse: w, GroupName: names[w.GroupID()]})
	}
	return out
}

// ListWarehouses returns the warehouses visible to the caller
// @Summary List warehouses
// @Tags warehouses
// @Produce json
// @Success 200 {array} WarehouseResponse
// @Security BearerAuth
// @Router /warehouses [get]
func (h *Handler) ListWarehouses(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, h.withGroupNames(ctx, h.resolver.AccessibleWarehouses(ctx, user)))
}

// GetWarehouse returns one visible warehouse
// @Summary Get warehouse
// @Tags warehouses
// @Produce json
// @Param id path string true "Warehouse ID"
// @Success 200 {object} WarehouseResponse
// @Failure 404 {object} map[string]string "Warehouse not found"
// @Security BearerAuth
// @Router /warehouses/{id} [get]
func (h *Handler) GetWarehouse(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()
	w, ok := h.resolver.Warehouse(ctx, user, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Warehouse not found"})
		return
	}
	c.JSON(http.StatusOK, h.withGroupNames(ctx, []models.Warehouse{w})[0])
}

// CreateWarehouse creates a personal or group warehouse owned by the caller
// @Summary Create warehouse
// @Tags warehouses
// @Accept json
// @Produce json
// @Param request body CreateWarehouseRequest true "Warehouse"
// @Success 201 {object} models.Warehouse
// @Failure 400 {object} apierr.ValidationResponse
// @Failure 403 {object} map[string]string "Not a member of the group"
// @Security BearerAuth
// @Router /warehouses [post]
func (h *Handler) CreateWarehouse(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	var req CreateWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = "My Warehouse"
	}
	warehouse := models.Warehouse{
		Name:     name,
		OwnerID:  user.ID,
		Type:     models.WarehouseTypePersonal,
		GroupIDs: []string{},
	}

	if models.WarehouseType(req.Type) == models.WarehouseTypeGroup {
		candidate := req.GroupID
		if candidate == "" && len(req.GroupIDs) > 0 {
			candidate = req.GroupIDs[0]
		}
		group, ok := h.store.GetGroup(ctx, candidate)
		if !ok {
			apierr.Field(c, "groupId", "group not found")
			return
		}
		if !user.IsAdmin() && !group.HasMember(user.ID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Only group members can create group warehouses"})
			return
		}
		warehouse.Type = models.WarehouseTypeGroup
		warehouse.WarehouseGroupID = &group.ID
	} else {
		for _, gid := range req.GroupIDs {
			group, ok := h.store.GetGroup(ctx, gid)
			if !ok {
				apierr.Field(c, "groupIds", "group "+gid+" not found")
				return
			}
			if !user.IsAdmin() && !group.HasMember(user.ID) {
				c.JSON(http.StatusForbidden, gin.H{"error": "Can only share with groups you belong to"})
				return
			}
			warehouse.GroupIDs = append(warehouse.GroupIDs, group.ID)
		}
	}

	created, err := h.store.CreateWarehouse(ctx, warehouse)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create warehouse"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// manageable resolves a warehouse the caller may rename or delete. It writes
// the error response and returns false otherwise.
func (h *Handler) manageable(c *gin.Context, user *models.User, id string) (models.Warehouse, bool) {
	w, ok := h.resolver.Warehouse(c.Request.Context(), user, id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Warehouse not found"})
		return models.Warehouse{}, false
	}
	if !access.CanManageWarehouse(&w, user) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the warehouse owner can change it"})
		return models.Warehouse{}, false
	}
	return w, true
}

// UpdateWarehouse renames a warehouse
// @Summary Rename warehouse
// @Tags warehouses
// @Accept json
// @Produce json
// @Param id path string true "Warehouse ID"
// @Param request body UpdateWarehouseRequest true "New name"
// @Success 200 {object} models.Warehouse
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Warehouse not found"
// @Security BearerAuth
// @Router /warehouses/{id} [patch]
func (h *Handler) UpdateWarehouse(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req UpdateWarehouseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	existing, ok := h.manageable(c, user, c.Param("id"))
	if !ok {
		return
	}

	var patch models.WarehousePatch
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			patch.Name = &name
		}
	}
	updated, ok := h.store.UpdateWarehouse(c.Request.Context(), existing.ID, patch)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Warehouse not found"})
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DeleteWarehouse deletes a warehouse, leaving its components orphaned
// @Summary Delete warehouse
// @Tags warehouses
// @Param id path string true "Warehouse ID"
// @Success 204
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Warehouse not found"
// @Security BearerAuth
// @Router /warehouses/{id} [delete]
func (h *Handler) DeleteWarehouse(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	existing, ok := h.manageable(c, user, c.Param("id"))
	if !ok {
		return
	}

	orphaned := 0
	for _, comp := range h.store.ComponentsInWarehouse(ctx, existing.ID) {
		if _, ok := h.store.UpdateComponent(ctx, comp.ID, models.ComponentPatch{WarehouseID: models.Null[string]()}); !ok {
			log.Warn().Str("component", comp.ID).Str("warehouse", existing.ID).Msg("component vanished while orphaning")
			continue
		}
		orphaned++
	}
	log.Info().Str("warehouse", existing.ID).Int("orphaned", orphaned).Msg("warehouse deleted")

	if !h.store.DeleteWarehouse(ctx, existing.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Warehouse not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers warehouse routes on an authenticated router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/warehouses", h.ListWarehouses)
	rg.POST("/warehouses", h.CreateWarehouse)
	rg.GET("/warehouses/:id", h.GetWarehouse)
	rg.PATCH("/warehouses/:id", h.UpdateWarehouse)
	rg.DELETE("/warehouses/:id", h.DeleteWarehouse)
}
