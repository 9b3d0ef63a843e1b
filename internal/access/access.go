// Package access holds the workbasket permission model and the authorization
// guard. The permission model is pure data plus lookup; the guard decides
// whether an actor may perform an operation, either through an administrative
// role or through workbasket permission grants.
package access

// Permission is a single grantable right on a workbasket.
type Permission string

// Workbasket permission constants, in declared reporting order.
const (
	PermRead      Permission = "READ"
	PermReadTasks Permission = "READTASKS"
	PermEditTasks Permission = "EDITTASKS"
	PermAppend    Permission = "APPEND"
)

// allPermissions fixes the deterministic ordering used whenever a permission
// set is rendered or reported.
var allPermissions = []Permission{PermRead, PermReadTasks, PermEditTasks, PermAppend}

// IsValid checks if the permission value is valid.
func (p Permission) IsValid() bool {
	switch p {
	case PermRead, PermReadTasks, PermEditTasks, PermAppend:
		return true
	}
	return false
}

// PermissionSet is an unordered set of permissions.
type PermissionSet map[Permission]bool

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet, len(perms))
	for _, p := range perms {
		s[p] = true
	}
	return s
}

// Has reports whether the set contains p.
func (s PermissionSet) Has(p Permission) bool { return s[p] }

// HasAll reports whether the set contains every permission in perms.
func (s PermissionSet) HasAll(perms []Permission) bool {
	for _, p := range perms {
		if !s[p] {
			return false
		}
	}
	return true
}

// Union merges other into a new set, leaving both inputs unchanged.
func (s PermissionSet) Union(other PermissionSet) PermissionSet {
	merged := make(PermissionSet, len(s)+len(other))
	for p := range s {
		merged[p] = true
	}
	for p := range other {
		merged[p] = true
	}
	return merged
}

// Slice returns the set's members in declared order.
func (s PermissionSet) Slice() []Permission {
	var out []Permission
	for _, p := range allPermissions {
		if s[p] {
			out = append(out, p)
		}
	}
	return out
}

// AccessEntry binds an access id (a user or a group) to a workbasket with a
// set of granted permissions. Entries are immutable once created: they are
// looked up by the guard, never mutated.
type AccessEntry struct {
	WorkbasketID string        `json:"workbasket_id"`
	AccessID     string        `json:"access_id"`
	Permissions  PermissionSet `json:"permissions"`
}

// Role is an engine-wide role held by a subject, independent of workbaskets.
type Role string

// Role constants.
const (
	// RoleAdmin bypasses all workbasket permission checks.
	RoleAdmin Role = "ADMIN"
	// RoleTaskAdmin bypasses workbasket permission checks for task
	// operations.
	RoleTaskAdmin Role = "TASK_ADMIN"
)

// Subject identifies the acting user: its own id, the groups it belongs to,
// and any administrative roles it holds.
type Subject struct {
	UserID   string   `json:"user_id"`
	GroupIDs []string `json:"group_ids,omitempty"`
	Roles    []Role   `json:"roles,omitempty"`
}

// AccessIDs returns the ids whose grants apply to this subject: the user id
// followed by all group ids.
func (s Subject) AccessIDs() []string {
	ids := make([]string, 0, 1+len(s.GroupIDs))
	if s.UserID != "" {
		ids = append(ids, s.UserID)
	}
	ids = append(ids, s.GroupIDs...)
	return ids
}

// HasRole reports whether the subject holds the given role.
func (s Subject) HasRole(r Role) bool {
	for _, role := range s.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the subject holds any administrative role.
func (s Subject) IsAdmin() bool {
	return s.HasRole(RoleAdmin) || s.HasRole(RoleTaskAdmin)
}

// Required permission sets per operation class. Read-only queries need the
// read pair; mutating operations additionally need EDITTASKS; appending a
// task to a workbasket (create, transfer destination) needs APPEND.
var (
	ReadPermissions   = []Permission{PermRead, PermReadTasks}
	EditPermissions   = []Permission{PermRead, PermReadTasks, PermEditTasks}
	AppendPermissions = []Permission{PermAppend}
)
