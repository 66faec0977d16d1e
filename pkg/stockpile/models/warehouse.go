package models

// WarehouseType distinguishes personal warehouses from group-shared ones.
type WarehouseType string

const (
	WarehouseTypePersonal WarehouseType = "personal"
	WarehouseTypeGroup    WarehouseType = "group"
)

// Valid reports whether t is a known warehouse type.
func (t WarehouseType) Valid() bool {
	return t == WarehouseTypePersonal || t == WarehouseTypeGroup
}

// DefaultWarehouseID is the personal warehouse owned by the bootstrap admin.
const DefaultWarehouseID = "admin-default"

// Warehouse represents a named container of components.
// Personal warehouses are owned by one user; group warehouses are shared
// with the members of WarehouseGroupID.
type Warehouse struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	OwnerID          string        `json:"ownerId"`
	Type             WarehouseType `json:"type"`
	WarehouseGroupID *string       `json:"warehouseGroupId"`
	GroupIDs         []string      `json:"groupIds"`
}

// Key returns the record id.
func (w *Warehouse) Key() string { return w.ID }

// SetKey assigns the record id.
func (w *Warehouse) SetKey(id string) { w.ID = id }

// Clone returns a deep copy.
func (w *Warehouse) Clone() Warehouse {
	out := *w
	out.GroupIDs = cloneStrings(w.GroupIDs)
	out.WarehouseGroupID = cloneStringPtr(w.WarehouseGroupID)
	return out
}

// Normalize fills defaults that can be detected from zero values.
func (w *Warehouse) Normalize() {
	if !w.Type.Valid() {
		w.Type = WarehouseTypePersonal
	}
	if w.GroupIDs == nil {
		w.GroupIDs = []string{}
	}
}

// GroupID returns the associated group id, or "" when unset.
func (w Warehouse) GroupID() string {
	if w.WarehouseGroupID == nil {
		return ""
	}
	return *w.WarehouseGroupID
}

// WarehousePatch is a shallow partial update of a warehouse.
type WarehousePatch struct {
	Name             *string
	OwnerID          *string
	Type             *WarehouseType
	WarehouseGroupID Optional[string]
	GroupIDs         []string
}

// Apply merges the patch into w.
func (p WarehousePatch) Apply(w *Warehouse) {
	if p.Name != nil {
		w.Name = *p.Name
	}
	if p.OwnerID != nil {
		w.OwnerID = *p.OwnerID
	}
	if p.Type != nil {
		w.Type = *p.Type
	}
	p.WarehouseGroupID.applyTo(&w.WarehouseGroupID)
	if p.GroupIDs != nil {
		w.GroupIDs = cloneStrings(p.GroupIDs)
	}
}
