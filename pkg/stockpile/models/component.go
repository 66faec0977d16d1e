package models

import "strings"

// DefaultMinStockLevel is applied when a component is created without a threshold.
const DefaultMinStockLevel = 10

// Component represents a stocked inventory item.
// A nil WarehouseID marks a component orphaned by a warehouse deletion.
type Component struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	Category         string        `json:"category"`
	Quantity         int           `json:"quantity"`
	Location         string        `json:"location"`
	Description      string        `json:"description"`
	MinStockLevel    int           `json:"minStockLevel"`
	OwnerID          string        `json:"ownerId"`
	GroupIDs         []string      `json:"groupIds"`
	WarehouseID      *string       `json:"warehouseId"`
	WarehouseType    WarehouseType `json:"warehouseType"`
	WarehouseGroupID *string       `json:"warehouseGroupId"`
}

// IsLowStock reports whether the quantity is at or below the reorder threshold.
func (c Component) IsLowStock() bool {
	return c.Quantity <= c.MinStockLevel
}

// InWarehouse reports whether the component belongs to the given warehouse.
func (c Component) InWarehouse(warehouseID string) bool {
	return c.WarehouseID != nil && *c.WarehouseID == warehouseID
}

// Matches reports whether query appears, case-insensitively, in the name,
// description, category or location.
func (c Component) Matches(query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.Description), q) ||
		strings.Contains(strings.ToLower(c.Category), q) ||
		strings.Contains(strings.ToLower(c.Location), q)
}

// Key returns the record id.
func (c *Component) Key() string { return c.ID }

// SetKey assigns the record id.
func (c *Component) SetKey(id string) { c.ID = id }

// Clone returns a deep copy.
func (c *Component) Clone() Component {
	out := *c
	out.GroupIDs = cloneStrings(c.GroupIDs)
	out.WarehouseID = cloneStringPtr(c.WarehouseID)
	out.WarehouseGroupID = cloneStringPtr(c.WarehouseGroupID)
	return out
}

// Normalize fills defaults that can be detected from zero values.
func (c *Component) Normalize() {
	if c.GroupIDs == nil {
		c.GroupIDs = []string{}
	}
	if !c.WarehouseType.Valid() {
		c.WarehouseType = WarehouseTypePersonal
	}
}

// ComponentInput is the create-time shape of a component.
// Omitted numeric fields receive their defaults in Build.
type ComponentInput struct {
	ID               string
	Name             string
	Category         string
	Quantity         *int
	Location         string
	Description      string
	MinStockLevel    *int
	OwnerID          string
	GroupIDs         []string
	WarehouseID      *string
	WarehouseType    WarehouseType
	WarehouseGroupID *string
}

// Build returns the component described by the input with defaults applied.
func (in ComponentInput) Build() Component {
	c := Component{
		ID:               in.ID,
		Name:             in.Name,
		Category:         in.Category,
		Location:         in.Location,
		Description:      in.Description,
		MinStockLevel:    DefaultMinStockLevel,
		OwnerID:          in.OwnerID,
		GroupIDs:         cloneStrings(in.GroupIDs),
		WarehouseID:      cloneStringPtr(in.WarehouseID),
		WarehouseType:    in.WarehouseType,
		WarehouseGroupID: cloneStringPtr(in.WarehouseGroupID),
	}
	if in.Quantity != nil {
		c.Quantity = *in.Quantity
	}
	if in.MinStockLevel != nil {
		c.MinStockLevel = *in.MinStockLevel
	}
	c.Normalize()
	return c
}

// ComponentPatch is a shallow partial update. Nil pointers and unset
// Optionals leave the stored value untouched.
type ComponentPatch struct {
	Name             *string
	Category         *string
	Quantity         *int
	Location         *string
	Description      *string
	MinStockLevel    *int
	OwnerID          *string
	GroupIDs         []string
	WarehouseID      Optional[string]
	WarehouseType    *WarehouseType
	WarehouseGroupID Optional[string]
}

// Apply merges the patch into c.
func (p ComponentPatch) Apply(c *Component) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Category != nil {
		c.Category = *p.Category
	}
	if p.Quantity != nil {
		c.Quantity = *p.Quantity
	}
	if p.Location != nil {
		c.Location = *p.Location
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.MinStockLevel != nil {
		c.MinStockLevel = *p.MinStockLevel
	}
	if p.OwnerID != nil {
		c.OwnerID = *p.OwnerID
	}
	if p.GroupIDs != nil {
		c.GroupIDs = cloneStrings(p.GroupIDs)
	}
	p.WarehouseID.applyTo(&c.WarehouseID)
	if p.WarehouseType != nil {
		c.WarehouseType = *p.WarehouseType
	}
	p.WarehouseGroupID.applyTo(&c.WarehouseGroupID)
}
