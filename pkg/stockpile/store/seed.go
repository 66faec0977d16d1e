package store

import (
	"github.com/mikepea/stockpile/pkg/stockpile/models"
)

// AdminUserID is the owner of the default warehouse and the seeded components.
const AdminUserID = "admin"

func defaultWarehouse() models.Warehouse {
	return models.Warehouse{
		ID:       models.DefaultWarehouseID,
		Name:     "Admin Warehouse",
		OwnerID:  AdminUserID,
		Type:     models.WarehouseTypePersonal,
		GroupIDs: []string{},
	}
}

func sampleComponents() []models.Component {
	samples := []struct {
		name, category, location, description string
		quantity, minStock                    int
	}{
		{"ATmega328P-PU", "Integrated Circuits", "A1-B3", "8-bit AVR Microcontroller", 45, 10},
		{"470µF Electrolytic", "Capacitors", "C2-A1", "25V Radial Electrolytic Capacitor", 8, 20},
		{"10kΩ Resistor", "Resistors", "R1-A5", "1/4W Carbon Film Resistor", 250, 50},
		{"2N3904 NPN", "Transistors", "T1-C2", "General Purpose NPN Transistor", 0, 15},
		{"1N4148 Diode", "Diodes", "D1-A2", "High-speed switching diode", 5, 25},
	}

	out := make([]models.Component, 0, len(samples))
	for _, s := range samples {
		warehouseID := models.DefaultWarehouseID
		out = append(out, models.Component{
			Name:          s.name,
			Category:      s.category,
			Quantity:      s.quantity,
			Location:      s.location,
			Description:   s.description,
			MinStockLevel: s.minStock,
			OwnerID:       AdminUserID,
			GroupIDs:      []string{},
			WarehouseID:   &warehouseID,
			WarehouseType: models.WarehouseTypePersonal,
		})
	}
	return out
}
