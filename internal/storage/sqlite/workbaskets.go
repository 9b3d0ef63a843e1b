package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskbasket/taskbasket/internal/access"
	"github.com/taskbasket/taskbasket/internal/storage"
	"github.com/taskbasket/taskbasket/internal/task"
)

// CreateWorkbasket stores a new workbasket. The id must be unused.
func (s *Store) CreateWorkbasket(ctx context.Context, wb *task.Workbasket) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workbaskets (id, key, name) VALUES (?, ?, ?)
	`, wb.ID, wb.Key, wb.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("workbasket %s: %w", wb.ID, storage.ErrExists)
		}
		return wrapDBError("create workbasket", err)
	}
	return nil
}

// GetWorkbasket returns the workbasket summary.
func (s *Store) GetWorkbasket(ctx context.Context, id string) (*task.Workbasket, error) {
	var wb task.Workbasket
	err := s.db.QueryRowContext(ctx, `SELECT id, key, name FROM workbaskets WHERE id = ?`, id).
		Scan(&wb.ID, &wb.Key, &wb.Name)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get workbasket %s", id), err)
	}
	return &wb, nil
}

// CreateAccessEntry stores an access entry. Permissions are kept as a
// comma-joined list in declared order; re-inserting the same
// (workbasket, access id) pair replaces the grant.
func (s *Store) CreateAccessEntry(ctx context.Context, entry access.AccessEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO access_entries (workbasket_id, access_id, permissions)
		VALUES (?, ?, ?)
		ON CONFLICT (workbasket_id, access_id) DO UPDATE SET permissions = excluded.permissions
	`, entry.WorkbasketID, entry.AccessID, encodePermissions(entry.Permissions))
	if err != nil {
		return wrapDBError("create access entry", err)
	}
	return nil
}

// ListAccessEntries returns all entries for a workbasket.
func (s *Store) ListAccessEntries(ctx context.Context, workbasketID string) ([]access.AccessEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT workbasket_id, access_id, permissions
		FROM access_entries WHERE workbasket_id = ?
		ORDER BY access_id
	`, workbasketID)
	if err != nil {
		return nil, wrapDBError("list access entries", err)
	}
	defer rows.Close()

	var out []access.AccessEntry
	for rows.Next() {
		var entry access.AccessEntry
		var perms string
		if err := rows.Scan(&entry.WorkbasketID, &entry.AccessID, &perms); err != nil {
			return nil, wrapDBError("scan access entry", err)
		}
		entry.Permissions = decodePermissions(perms)
		out = append(out, entry)
	}
	return out, rows.Err()
}

// PermissionsFor unions the permission sets of all entries matching the
// workbasket and any of the access ids.
func (s *Store) PermissionsFor(ctx context.Context, workbasketID string, accessIDs []string) (access.PermissionSet, error) {
	held := access.NewPermissionSet()
	if len(accessIDs) == 0 {
		return held, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(accessIDs)), ", ")
	args := make([]any, 0, 1+len(accessIDs))
	args = append(args, workbasketID)
	for _, id := range accessIDs {
		args = append(args, id)
	}
	// nolint:gosec // G201: placeholders contains only "?" markers
	query := fmt.Sprintf(`SELECT permissions FROM access_entries WHERE workbasket_id = ? AND access_id IN (%s)`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("resolve permissions", err)
	}
	defer rows.Close()

	for rows.Next() {
		var perms string
		if err := rows.Scan(&perms); err != nil {
			return nil, wrapDBError("scan permissions", err)
		}
		held = held.Union(decodePermissions(perms))
	}
	return held, rows.Err()
}

func encodePermissions(set access.PermissionSet) string {
	perms := set.Slice()
	parts := make([]string, len(perms))
	for i, p := range perms {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func decodePermissions(s string) access.PermissionSet {
	set := access.NewPermissionSet()
	for _, part := range strings.Split(s, ",") {
		if part == "" {
			continue
		}
		set[access.Permission(part)] = true
	}
	return set
}
