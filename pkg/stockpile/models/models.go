package models

// Collection names used as snapshot keys by the durable backings.
const (
	CollectionComponents = "components"
	CollectionUsers      = "users"
	CollectionGroups     = "groups"
	CollectionWarehouses = "warehouses"
)

// AllCollections returns every collection in load order.
// Warehouses load before components so that seeding can see an existing default warehouse.
func AllCollections() []string {
	return []string{
		CollectionUsers,
		CollectionGroups,
		CollectionWarehouses,
		CollectionComponents,
	}
}

// Categories lists the component categories offered to clients.
// The list is advisory; unknown categories are accepted.
var Categories = []string{
	"Resistors",
	"Capacitors",
	"Integrated Circuits",
	"Transistors",
	"Diodes",
	"Connectors",
	"Inductors",
	"Switches",
	"Sensors",
	"Other",
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneStringPtr(in *string) *string {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
