package models

// Group represents a named set of users sharing access to group warehouses.
// MemberIDs is the authoritative membership list.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"memberIds"`
}

// HasMember reports whether userID is listed in MemberIDs.
func (g Group) HasMember(userID string) bool {
	return containsString(g.MemberIDs, userID)
}

// Key returns the record id.
func (g *Group) Key() string { return g.ID }

// SetKey assigns the record id.
func (g *Group) SetKey(id string) { g.ID = id }

// Clone returns a deep copy.
func (g *Group) Clone() Group {
	out := *g
	out.MemberIDs = cloneStrings(g.MemberIDs)
	return out
}

// Normalize fills defaults and drops duplicate member ids.
func (g *Group) Normalize() {
	g.MemberIDs = dedupe(g.MemberIDs)
}

// GroupPatch is a shallow partial update of a group.
type GroupPatch struct {
	Name      *string
	MemberIDs []string
}

// Apply merges the patch into g.
func (p GroupPatch) Apply(g *Group) {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.MemberIDs != nil {
		g.MemberIDs = dedupe(p.MemberIDs)
	}
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
