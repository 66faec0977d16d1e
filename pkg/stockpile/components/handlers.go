// Package components serves the component inventory API.
package components

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mikepea/stockpile/pkg/stockpile/access"
	"github.com/mikepea/stockpile/pkg/stockpile/apierr"
	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// allCategories is the UI's "no filter" category value.
const allCategories = "All Categories"

// Handler handles component-related requests
type Handler struct {
	store    *store.Store
	resolver *access.Resolver
}

// NewHandler creates a new components handler
func NewHandler(s *store.Store, resolver *access.Resolver) *Handler {
	return &Handler{store: s, resolver: resolver}
}

// CreateComponentRequest represents the request to create a component
type CreateComponentRequest struct {
	Name          string `json:"name" binding:"required,max=200"`
	Category      string `json:"category" binding:"required,max=100"`
	Quantity      *int   `json:"quantity" binding:"omitempty,min=0"`
	Location      string `json:"location" binding:"max=100"`
	Description   string `json:"description" binding:"max=1000"`
	MinStockLevel *int   `json:"minStockLevel" binding:"omitempty,min=0"`
	WarehouseID   string `json:"warehouseId"`
}

// UpdateComponentRequest represents a partial component update
type UpdateComponentRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=200"`
	Category      *string `json:"category" binding:"omitempty,min=1,max=100"`
	Quantity      *int    `json:"quantity" binding:"omitempty,min=0"`
	Location      *string `json:"location" binding:"omitempty,max=100"`
	Description   *string `json:"description" binding:"omitempty,max=1000"`
	MinStockLevel *int    `json:"minStockLevel" binding:"omitempty,min=0"`
	WarehouseID   *string `json:"warehouseId" binding:"omitempty,min=1"`
}

// StatsResponse summarizes the caller's visible inventory
type StatsResponse struct {
	TotalComponents int `json:"totalComponents"`
	TotalQuantity   int `json:"totalQuantity"`
	Categories      int `json:"categories"`
	LowStockCount   int `json:"lowStockCount"`
}

// visible returns the components the user may see, optionally narrowed to one warehouse.
func (h *Handler) visible(ctx context.Context, user *models.User, components []models.Component, warehouseID string) []models.Component {
	out := h.resolver.Components(ctx, user, components)
	if warehouseID == "" {
		return out
	}
	filtered := out[:0]
	for _, c := range out {
		if c.InWarehouse(warehouseID) {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

func (h *Handler) visibleComponent(ctx context.Context, user *models.User, id string) (models.Component, bool) {
	c, ok := h.store.GetComponent(ctx, id)
	if !ok || !h.resolver.CanAccessComponent(ctx, user, &c) {
		return models.Component{}, false
	}
	return c, true
}

// ListComponents returns visible components
// @Summary List components
// @Tags components
// @Produce json
// @Param search query string false "Case-insensitive text search"
// @Param category query string false "Exact category"
// @Param warehouseId query string false "Warehouse filter"
// @Success 200 {array} models.Component
// @Security BearerAuth
// @Router /components [get]
func (h *Handler) ListComponents(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	components := h.visible(ctx, user, h.store.ListComponents(ctx), c.Query("warehouseId"))

	if category := c.Query("category"); category != "" && category != allCategories {
		filtered := components[:0]
		for _, comp := range components {
			if comp.Category == category {
				filtered = append(filtered, comp)
			}
		}
		components = filtered
	}

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filtered := components[:0]
		for _, comp := range components {
			if comp.Matches(search) {
				filtered = append(filtered, comp)
			}
		}
		components = filtered
	}

	c.JSON(http.StatusOK, components)
}

// GetComponent returns one component
// @Summary Get component
// @Tags components
// @Produce json
// @Param id path string true "Component ID"
// @Success 200 {object} models.Component
// @Failure 404 {object} map[string]string "Component not found"
// @Security BearerAuth
// @Router /components/{id} [get]
func (h *Handler) GetComponent(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	comp, ok := h.visibleComponent(c.Request.Context(), user, c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Component not found"})
		return
	}
	c.JSON(http.StatusOK, comp)
}

// targetWarehouse resolves where a new component goes: the requested
// warehouse, else the first visible one, else a fresh personal warehouse.
func (h *Handler) targetWarehouse(ctx context.Context, user *models.User, requested string) (models.Warehouse, bool, error) {
	if requested != "" {
		w, ok := h.resolver.Warehouse(ctx, user, requested)
		return w, ok, nil
	}
	if visible := h.resolver.AccessibleWarehouses(ctx, user); len(visible) > 0 {
		return visible[0], true, nil
	}
	w, err := h.store.CreateWarehouse(ctx, models.Warehouse{
		Name:    "My Warehouse",
		OwnerID: user.ID,
		Type:    models.WarehouseTypePersonal,
	})
	if err != nil {
		return models.Warehouse{}, false, err
	}
	return w, true, nil
}

// CreateComponent adds a component to a warehouse the caller can see
// @Summary Create component
// @Tags components
// @Accept json
// @Produce json
// @Param request body CreateComponentRequest true "Component"
// @Success 201 {object} models.Component
// @Failure 400 {object} apierr.ValidationResponse
// @Failure 403 {object} map[string]string "Warehouse not accessible"
// @Security BearerAuth
// @Router /components [post]
func (h *Handler) CreateComponent(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	var req CreateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		apierr.Field(c, "name", "is required")
		return
	}

	warehouse, ok, err := h.targetWarehouse(ctx, user, strings.TrimSpace(req.WarehouseID))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create warehouse"})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	comp, err := h.store.CreateComponent(ctx, models.ComponentInput{
		Name:             strings.TrimSpace(req.Name),
		Category:         req.Category,
		Quantity:         req.Quantity,
		Location:         req.Location,
		Description:      req.Description,
		MinStockLevel:    req.MinStockLevel,
		OwnerID:          user.ID,
		GroupIDs:         []string{},
		WarehouseID:      &warehouse.ID,
		WarehouseType:    warehouse.Type,
		WarehouseGroupID: warehouse.WarehouseGroupID,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create component"})
		return
	}
	c.JSON(http.StatusCreated, comp)
}

// UpdateComponent applies a partial update
// @Summary Update component
// @Tags components
// @Accept json
// @Produce json
// @Param id path string true "Component ID"
// @Param request body UpdateComponentRequest true "Fields to change"
// @Success 200 {object} models.Component
// @Failure 400 {object} apierr.ValidationResponse
// @Failure 403 {object} map[string]string "Target warehouse not accessible"
// @Failure 404 {object} map[string]string "Component not found"
// @Security BearerAuth
// @Router /components/{id} [patch]
func (h *Handler) UpdateComponent(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	var req UpdateComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	id := c.Param("id")
	if _, ok := h.visibleComponent(ctx, user, id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Component not found"})
		return
	}

	patch := models.ComponentPatch{
		Name:          req.Name,
		Category:      req.Category,
		Quantity:      req.Quantity,
		Location:      req.Location,
		Description:   req.Description,
		MinStockLevel: req.MinStockLevel,
	}
	if req.WarehouseID != nil {
		target, ok := h.resolver.Warehouse(ctx, user, *req.WarehouseID)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		wt := target.Type
		patch.WarehouseID = models.Some(target.ID)
		patch.WarehouseType = &wt
		if gid := target.GroupID(); gid != "" {
			patch.WarehouseGroupID = models.Some(gid)
		} else {
			patch.WarehouseGroupID = models.Null[string]()
		}
	}

	comp, ok := h.store.UpdateComponent(ctx, id, patch)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Component not found"})
		return
	}
	c.JSON(http.StatusOK, comp)
}

// DeleteComponent removes a component
// @Summary Delete component
// @Tags components
// @Param id path string true "Component ID"
// @Success 204
// @Failure 404 {object} map[string]string "Component not found"
// @Security BearerAuth
// @Router /components/{id} [delete]
func (h *Handler) DeleteComponent(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, ok := h.visibleComponent(ctx, user, id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Component not found"})
		return
	}
	if !h.store.DeleteComponent(ctx, id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Component not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// LowStock lists visible components at or below their minimum stock level
// @Summary Low stock alerts
// @Tags components
// @Produce json
// @Param warehouseId query string false "Warehouse filter"
// @Success 200 {array} models.Component
// @Security BearerAuth
// @Router /components/alerts/low-stock [get]
func (h *Handler) LowStock(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, h.visible(ctx, user, h.store.LowStockComponents(ctx), c.Query("warehouseId")))
}

// Categories lists the suggested component categories
func (h *Handler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, models.Categories)
}

// Stats summarizes the visible inventory
// @Summary Inventory statistics
// @Tags components
// @Produce json
// @Param warehouseId query string false "Warehouse filter"
// @Success 200 {object} StatsResponse
// @Security BearerAuth
// @Router /stats [get]
func (h *Handler) Stats(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()
	components := h.visible(ctx, user, h.store.ListComponents(ctx), c.Query("warehouseId"))

	var stats StatsResponse
	categories := make(map[string]struct{})
	for _, comp := range components {
		stats.TotalComponents++
		stats.TotalQuantity += comp.Quantity
		categories[comp.Category] = struct{}{}
		if comp.IsLowStock() {
			stats.LowStockCount++
		}
	}
	stats.Categories = len(categories)
	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers component routes on an authenticated router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/components", h.ListComponents)
	rg.POST("/components", h.CreateComponent)
	rg.GET("/components/categories", h.Categories)
	rg.GET("/components/alerts/low-stock", h.LowStock)
	rg.GET("/components/:id", h.GetComponent)
	rg.PATCH("/components/:id", h.UpdateComponent)
	rg.DELETE("/components/:id", h.DeleteComponent)
	rg.GET("/stats", h.Stats)
}
