package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNotAuthorized is returned when a permission or role check fails.
// The concrete NotAuthorizedError carries the detail a caller needs to
// render an actionable message without re-querying.
var ErrNotAuthorized = errors.New("not authorized")

// NotAuthorizedError reports exactly which permissions the acting user is
// missing on which workbasket.
type NotAuthorizedError struct {
	CurrentUserID       string
	WorkbasketID        string
	RequiredPermissions []Permission
}

func (e *NotAuthorizedError) Error() string {
	if e.WorkbasketID == "" {
		return fmt.Sprintf("user %s is not authorized: administrative role required", e.CurrentUserID)
	}
	perms := make([]string, len(e.RequiredPermissions))
	for i, p := range e.RequiredPermissions {
		perms[i] = string(p)
	}
	return fmt.Sprintf("user %s is missing permissions [%s] on workbasket %s",
		e.CurrentUserID, strings.Join(perms, ", "), e.WorkbasketID)
}

func (e *NotAuthorizedError) Is(target error) bool { return target == ErrNotAuthorized }

// Resolver looks up the effective permissions a set of access ids holds on a
// workbasket: the union of all matching access-entry permission sets.
type Resolver interface {
	PermissionsFor(ctx context.Context, workbasketID string, accessIDs []string) (PermissionSet, error)
}

// Guard decides whether a subject may perform an operation on a workbasket.
type Guard struct {
	resolver Resolver
}

// NewGuard creates a guard backed by the given permission resolver.
func NewGuard(resolver Resolver) *Guard {
	return &Guard{resolver: resolver}
}

// Authorize checks that the subject holds the required permissions on the
// workbasket. Administrative roles bypass the per-workbasket lookup
// unconditionally. On failure it returns a NotAuthorizedError naming the
// exact missing permissions.
func (g *Guard) Authorize(ctx context.Context, subject Subject, workbasketID string, required []Permission) error {
	if subject.IsAdmin() {
		return nil
	}
	held, err := g.resolver.PermissionsFor(ctx, workbasketID, subject.AccessIDs())
	if err != nil {
		return fmt.Errorf("resolve permissions for %s: %w", workbasketID, err)
	}
	missing := missingPermissions(held, required)
	if len(missing) == 0 {
		return nil
	}
	return &NotAuthorizedError{
		CurrentUserID:       subject.UserID,
		WorkbasketID:        workbasketID,
		RequiredPermissions: missing,
	}
}

// AuthorizeAdmin checks that the subject holds an administrative role.
// Used for terminate and delete, which have no workbasket-permission
// fallback for non-admins.
func (g *Guard) AuthorizeAdmin(ctx context.Context, subject Subject) error {
	if subject.IsAdmin() {
		return nil
	}
	return &NotAuthorizedError{CurrentUserID: subject.UserID}
}

// missingPermissions reports the permission gap in its deterministic
// reporting form. READ and READTASKS are reported as a pair whenever either
// is missing; other permissions are reported individually only when the read
// pair is satisfied.
func missingPermissions(held PermissionSet, required []Permission) []Permission {
	readRequired := false
	readMissing := false
	var rest []Permission
	for _, p := range required {
		switch p {
		case PermRead, PermReadTasks:
			readRequired = true
			if !held.Has(p) {
				readMissing = true
			}
		default:
			if !held.Has(p) {
				rest = append(rest, p)
			}
		}
	}
	if readRequired && readMissing {
		return []Permission{PermRead, PermReadTasks}
	}
	return rest
}
