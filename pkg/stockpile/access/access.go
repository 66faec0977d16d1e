// Package access decides which warehouses and components a user may see.
//
// The functions here are pure: they evaluate already-loaded records and never
// report errors. Denial and absence look the same to callers.
package access

import (
	"context"

	"github.com/mikepea/stockpile/pkg/stockpile/models"
)

// CanAccessWarehouse reports whether u may see w.
//
// Admins see every warehouse. A group warehouse is visible to members of its
// group; one without a group is visible to admins only. A personal warehouse
// is visible to its owner and to members of any group listed in GroupIDs.
func CanAccessWarehouse(w *models.Warehouse, u *models.User) bool {
	if w == nil || u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	if w.Type == models.WarehouseTypeGroup {
		groupID := w.GroupID()
		return groupID != "" && u.InGroup(groupID)
	}
	if w.OwnerID != "" && w.OwnerID == u.ID {
		return true
	}
	for _, g := range w.GroupIDs {
		if u.InGroup(g) {
			return true
		}
	}
	return false
}

// CanAccessComponent resolves c's warehouse within warehouses and checks it.
// A component whose warehouse is not in the set, including one orphaned by a
// warehouse delete, is inaccessible to everyone.
func CanAccessComponent(c *models.Component, u *models.User, warehouses []models.Warehouse) bool {
	if c == nil || u == nil || c.WarehouseID == nil {
		return false
	}
	for i := range warehouses {
		if warehouses[i].ID == *c.WarehouseID {
			return CanAccessWarehouse(&warehouses[i], u)
		}
	}
	return false
}

// CanManageWarehouse reports whether u may rename or delete w.
func CanManageWarehouse(w *models.Warehouse, u *models.User) bool {
	if w == nil || u == nil {
		return false
	}
	return u.IsAdmin() || (w.OwnerID != "" && w.OwnerID == u.ID)
}

// AccessibleWarehouses filters all down to the warehouses u may see.
func AccessibleWarehouses(all []models.Warehouse, u *models.User) []models.Warehouse {
	out := make([]models.Warehouse, 0, len(all))
	for i := range all {
		if CanAccessWarehouse(&all[i], u) {
			out = append(out, all[i])
		}
	}
	return out
}

// FilterComponents keeps the components u may see, given the warehouses
// visible to u.
func FilterComponents(components []models.Component, u *models.User, warehouses []models.Warehouse) []models.Component {
	out := make([]models.Component, 0, len(components))
	for i := range components {
		if CanAccessComponent(&components[i], u, warehouses) {
			out = append(out, components[i])
		}
	}
	return out
}

// WarehouseLister is the part of the store the Resolver needs.
type WarehouseLister interface {
	ListWarehouses(ctx context.Context) []models.Warehouse
}

// Resolver evaluates access against the current warehouse collection.
type Resolver struct {
	warehouses WarehouseLister
}

// NewResolver creates a Resolver reading from store.
func NewResolver(store WarehouseLister) *Resolver {
	return &Resolver{warehouses: store}
}

// AccessibleWarehouses returns the warehouses u may see.
func (r *Resolver) AccessibleWarehouses(ctx context.Context, u *models.User) []models.Warehouse {
	return AccessibleWarehouses(r.warehouses.ListWarehouses(ctx), u)
}

// Warehouse returns the warehouse with id when u may see it.
func (r *Resolver) Warehouse(ctx context.Context, u *models.User, id string) (models.Warehouse, bool) {
	for _, w := range r.AccessibleWarehouses(ctx, u) {
		if w.ID == id {
			return w, true
		}
	}
	return models.Warehouse{}, false
}

// Components filters components to those u may see.
func (r *Resolver) Components(ctx context.Context, u *models.User, components []models.Component) []models.Component {
	return FilterComponents(components, u, r.AccessibleWarehouses(ctx, u))
}

// CanAccessComponent checks one component against the current warehouses.
func (r *Resolver) CanAccessComponent(ctx context.Context, u *models.User, c *models.Component) bool {
	return CanAccessComponent(c, u, r.warehouses.ListWarehouses(ctx))
}
