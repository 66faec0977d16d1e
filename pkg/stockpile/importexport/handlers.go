// Package importexport moves components in and out of warehouses as JSON.
package importexport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/mikepea/stockpile/pkg/stockpile/access"
	"github.com/mikepea/stockpile/pkg/stockpile/apierr"
	"github.com/mikepea/stockpile/pkg/stockpile/auth"
	"github.com/mikepea/stockpile/pkg/stockpile/models"
	"github.com/mikepea/stockpile/pkg/stockpile/store"
)

// Handler handles import/export requests
type Handler struct {
	store    *store.Store
	resolver *access.Resolver
}

// NewHandler creates a new import/export handler
func NewHandler(s *store.Store, resolver *access.Resolver) *Handler {
	return &Handler{store: s, resolver: resolver}
}

// ComponentRecord is the portable form of a component. Ids and access
// fields are left out so an export can be imported into any warehouse.
type ComponentRecord struct {
	Name          string `json:"name" binding:"required,max=200"`
	Category      string `json:"category" binding:"required,max=100"`
	Quantity      *int   `json:"quantity,omitempty" binding:"omitempty,min=0"`
	Location      string `json:"location" binding:"max=100"`
	Description   string `json:"description" binding:"max=1000"`
	MinStockLevel *int   `json:"minStockLevel,omitempty" binding:"omitempty,min=0"`
}

// ImportRequest represents an import request
type ImportRequest struct {
	WarehouseID string            `json:"warehouseId" binding:"required"`
	Components  []ComponentRecord `json:"components" binding:"required"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ExportDocument is the body of GET /export
type ExportDocument struct {
	ExportedAt  time.Time         `json:"exportedAt"`
	WarehouseID string            `json:"warehouseId,omitempty"`
	Components  []ComponentRecord `json:"components"`
}

func toRecord(c models.Component) ComponentRecord {
	quantity, minStock := c.Quantity, c.MinStockLevel
	return ComponentRecord{
		Name:          c.Name,
		Category:      c.Category,
		Quantity:      &quantity,
		Location:      c.Location,
		Description:   c.Description,
		MinStockLevel: &minStock,
	}
}

// Import creates components from portable records in one warehouse
// @Summary Import components
// @Description Invalid records and records already present (same name and location) are skipped
// @Tags importexport
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Components to import"
// @Success 200 {object} ImportResult
// @Failure 404 {object} map[string]string "Warehouse not found"
// @Security BearerAuth
// @Router /import [post]
func (h *Handler) Import(c *gin.Context) {
	user, _ := auth.CurrentUser(c)

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierr.Bind(c, err)
		return
	}

	ctx := c.Request.Context()
	warehouse, ok := h.resolver.Warehouse(ctx, user, req.WarehouseID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Warehouse not found"})
		return
	}

	existing := make(map[string]struct{})
	for _, comp := range h.store.ComponentsInWarehouse(ctx, warehouse.ID) {
		existing[dedupeKey(comp.Name, comp.Location)] = struct{}{}
	}

	result := ImportResult{Errors: []string{}}
	for i, rec := range req.Components {
		rec.Name = strings.TrimSpace(rec.Name)
		if err := binding.Validator.ValidateStruct(&rec); err != nil {
			for _, d := range apierr.Details(err) {
				result.Errors = append(result.Errors, fmt.Sprintf("component %d: %s %s", i, d.Field, d.Message))
			}
			result.Skipped++
			continue
		}
		key := dedupeKey(rec.Name, rec.Location)
		if _, dup := existing[key]; dup {
			result.Errors = append(result.Errors, fmt.Sprintf("component %d: %q already exists in warehouse", i, rec.Name))
			result.Skipped++
			continue
		}

		if _, err := h.create(ctx, user, warehouse, rec); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("component %d: %v", i, err))
			result.Skipped++
			continue
		}
		existing[key] = struct{}{}
		result.Imported++
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) create(ctx context.Context, user *models.User, w models.Warehouse, rec ComponentRecord) (models.Component, error) {
	return h.store.CreateComponent(ctx, models.ComponentInput{
		Name:             rec.Name,
		Category:         rec.Category,
		Quantity:         rec.Quantity,
		Location:         rec.Location,
		Description:      rec.Description,
		MinStockLevel:    rec.MinStockLevel,
		OwnerID:          user.ID,
		GroupIDs:         []string{},
		WarehouseID:      &w.ID,
		WarehouseType:    w.Type,
		WarehouseGroupID: w.WarehouseGroupID,
	})
}

func dedupeKey(name, location string) string {
	return strings.ToLower(name) + "\x00" + strings.ToLower(location)
}

// Export returns the caller's accessible components in portable form
// @Summary Export components
// @Tags importexport
// @Produce json
// @Param warehouseId query string false "Limit to one warehouse"
// @Param download query bool false "Send as an attachment"
// @Success 200 {object} ExportDocument
// @Failure 404 {object} map[string]string "Warehouse not found"
// @Security BearerAuth
// @Router /export [get]
func (h *Handler) Export(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	var components []models.Component
	warehouseID := c.Query("warehouseId")
	if warehouseID != "" {
		if _, ok := h.resolver.Warehouse(ctx, user, warehouseID); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Warehouse not found"})
			return
		}
		components = h.store.ComponentsInWarehouse(ctx, warehouseID)
	} else {
		components = h.resolver.Components(ctx, user, h.store.ListComponents(ctx))
	}

	doc := ExportDocument{
		ExportedAt:  time.Now().UTC(),
		WarehouseID: warehouseID,
		Components:  make([]ComponentRecord, 0, len(components)),
	}
	for _, comp := range components {
		doc.Components = append(doc.Components, toRecord(comp))
	}

	// Set content disposition for download
	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=stockpile-export.json")
	}

	c.JSON(http.StatusOK, doc)
}

// ExportSingle exports one accessible component
func (h *Handler) ExportSingle(c *gin.Context) {
	user, _ := auth.CurrentUser(c)
	ctx := c.Request.Context()

	comp, ok := h.store.GetComponent(ctx, c.Param("id"))
	if !ok || !h.resolver.CanAccessComponent(ctx, user, &comp) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Component not found"})
		return
	}
	c.JSON(http.StatusOK, toRecord(comp))
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/import", h.Import)
	rg.GET("/export", h.Export)
	rg.GET("/export/:id", h.ExportSingle)
}
