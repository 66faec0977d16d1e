package models

// SystemRole represents a user's system-wide role
type SystemRole string

const (
	SystemRoleAdmin SystemRole = "admin"
	SystemRoleUser  SystemRole = "user"
)

// Valid reports whether r is a known role.
func (r SystemRole) Valid() bool {
	return r == SystemRoleAdmin || r == SystemRoleUser
}

// User represents a user in the system.
// Groups is derived from Group.MemberIDs and rewritten by the membership synchronizer.
type User struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	Password           string     `json:"password"` // bcrypt hash
	Role               SystemRole `json:"role"`
	Groups             []string   `json:"groups"`
	DefaultWarehouseID string     `json:"defaultWarehouseId,omitempty"`
}

// IsAdmin reports whether the user holds the admin role. A nil user is not an admin.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == SystemRoleAdmin
}

// InGroup reports whether groupID is among the user's derived groups.
func (u *User) InGroup(groupID string) bool {
	return u != nil && groupID != "" && containsString(u.Groups, groupID)
}

// Key returns the record id.
func (u *User) Key() string { return u.ID }

// SetKey assigns the record id.
func (u *User) SetKey(id string) { u.ID = id }

// Clone returns a deep copy.
func (u *User) Clone() User {
	out := *u
	out.Groups = cloneStrings(u.Groups)
	return out
}

// Normalize fills defaults that can be detected from zero values.
func (u *User) Normalize() {
	if !u.Role.Valid() {
		u.Role = SystemRoleUser
	}
	if u.Groups == nil {
		u.Groups = []string{}
	}
}

// UserPatch is a shallow partial update of a user.
type UserPatch struct {
	Username           *string
	Password           *string
	Role               *SystemRole
	Groups             []string
	DefaultWarehouseID *string
}

// Apply merges the patch into u.
func (p UserPatch) Apply(u *User) {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.Password != nil {
		u.Password = *p.Password
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Groups != nil {
		u.Groups = cloneStrings(p.Groups)
	}
	if p.DefaultWarehouseID != nil {
		u.DefaultWarehouseID = *p.DefaultWarehouseID
	}
}
