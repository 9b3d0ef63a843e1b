package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/taskbasket/taskbasket/internal/storage"
	"github.com/taskbasket/taskbasket/internal/task"
)

// taskSelectColumns is the column list matching the scanTask order. The
// workbasket columns come from a LEFT JOIN so the summary survives a
// dangling reference.
const taskSelectColumns = `t.id, t.state, t.owner, t.workbasket_id,
    t.created_us, t.modified_us, t.claimed_us, t.completed_us,
    t.is_read, t.custom, w.key, w.name`

const taskSelectFrom = `FROM tasks t LEFT JOIN workbaskets w ON w.id = t.workbasket_id`

// scanTask scans a full task from a row scanner. The caller must ensure the
// query selected taskSelectColumns in order.
func scanTask(s interface{ Scan(dest ...any) error }) (*task.Task, error) {
	var t task.Task
	var createdUs, modifiedUs int64
	var claimedUs, completedUs sql.NullInt64
	var isRead int64
	var custom string
	var wbKey, wbName sql.NullString

	if err := s.Scan(
		&t.ID, &t.State, &t.Owner, &t.WorkbasketID,
		&createdUs, &modifiedUs, &claimedUs, &completedUs,
		&isRead, &custom, &wbKey, &wbName,
	); err != nil {
		return nil, err
	}

	t.Created = microsToTime(createdUs)
	t.Modified = microsToTime(modifiedUs)
	t.Claimed = parseNullMicros(claimedUs)
	t.Completed = parseNullMicros(completedUs)
	t.IsRead = isRead != 0
	if custom != "" && custom != "{}" {
		if err := json.Unmarshal([]byte(custom), &t.Custom); err != nil {
			return nil, fmt.Errorf("parse custom attributes for %s: %w", t.ID, err)
		}
	}
	if wbKey.Valid || wbName.Valid {
		t.Workbasket = &task.Workbasket{
			ID:   t.WorkbasketID,
			Key:  wbKey.String,
			Name: wbName.String,
		}
	}
	return &t, nil
}

func marshalCustom(custom map[string]string) (string, error) {
	if len(custom) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(custom)
	if err != nil {
		return "", fmt.Errorf("marshal custom attributes: %w", err)
	}
	return string(data), nil
}

func createTask(ctx context.Context, q querier, t *task.Task) error {
	custom, err := marshalCustom(t.Custom)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO tasks (id, state, owner, workbasket_id, created_us, modified_us, claimed_us, completed_us, is_read, custom)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.State, t.Owner, t.WorkbasketID,
		timeToMicros(t.Created), timeToMicros(t.Modified),
		nullMicros(t.Claimed), nullMicros(t.Completed),
		boolToInt(t.IsRead), custom)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("task %s: %w", t.ID, storage.ErrExists)
		}
		return wrapDBError("create task", err)
	}
	return nil
}

func getTask(ctx context.Context, q querier, id string) (*task.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskSelectColumns+` `+taskSelectFrom+` WHERE t.id = ?`, id)
	t, err := scanTask(row)
	if err != nil {
		return nil, wrapDBError(fmt.Sprintf("get task %s", id), err)
	}
	return t, nil
}

// updateTask saves the task with an optimistic check: the UPDATE only
// succeeds if modified_us still holds the expected value. A zero row count
// distinguishes a concurrent writer from a missing row.
func updateTask(ctx context.Context, q querier, t *task.Task, expectedModified time.Time) error {
	custom, err := marshalCustom(t.Custom)
	if err != nil {
		return err
	}
	result, err := q.ExecContext(ctx, `
		UPDATE tasks
		SET state = ?, owner = ?, workbasket_id = ?, modified_us = ?, claimed_us = ?, completed_us = ?, is_read = ?, custom = ?
		WHERE id = ? AND modified_us = ?
	`, t.State, t.Owner, t.WorkbasketID,
		timeToMicros(t.Modified), nullMicros(t.Claimed), nullMicros(t.Completed),
		boolToInt(t.IsRead), custom,
		t.ID, timeToMicros(expectedModified))
	if err != nil {
		return wrapDBError(fmt.Sprintf("update task %s", t.ID), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return wrapDBError("rows affected", err)
	}
	if rows == 0 {
		// Either the task is gone or someone else updated it first.
		var exists int
		if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE id = ?`, t.ID).Scan(&exists); err != nil {
			return wrapDBError(fmt.Sprintf("check task %s", t.ID), err)
		}
		if exists == 0 {
			return fmt.Errorf("task %s: %w", t.ID, storage.ErrNotFound)
		}
		return fmt.Errorf("task %s: %w", t.ID, storage.ErrConflict)
	}
	return nil
}

func deleteTask(ctx context.Context, q querier, id string) error {
	result, err := q.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return wrapDBError(fmt.Sprintf("delete task %s", id), err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return wrapDBError("rows affected", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// CreateTask stores a new task. The id must be unused.
func (s *Store) CreateTask(ctx context.Context, t *task.Task) error {
	return createTask(ctx, s.db, t)
}

// GetTask returns the task with its workbasket summary populated.
func (s *Store) GetTask(ctx context.Context, id string) (*task.Task, error) {
	return getTask(ctx, s.db, id)
}

// GetTasks returns the tasks that exist among ids; missing ids are absent
// from the result map.
func (s *Store) GetTasks(ctx context.Context, ids []string) (map[string]*task.Task, error) {
	out := make(map[string]*task.Task, len(ids))
	for _, id := range ids {
		t, err := getTask(ctx, s.db, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out[id] = t
	}
	return out, nil
}

// UpdateTask persists the task if the stored modified timestamp still
// equals expectedModified.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task, expectedModified time.Time) error {
	return updateTask(ctx, s.db, t, expectedModified)
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return deleteTask(ctx, s.db, id)
}

// ListTasks returns tasks matching the filter, ordered by creation time.
func (s *Store) ListTasks(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	query := `SELECT ` + taskSelectColumns + ` ` + taskSelectFrom
	var conds []string
	var args []any
	if filter.WorkbasketID != "" {
		conds = append(conds, "t.workbasket_id = ?")
		args = append(args, filter.WorkbasketID)
	}
	if filter.State != "" {
		conds = append(conds, "t.state = ?")
		args = append(args, filter.State)
	}
	if filter.Owner != nil {
		conds = append(conds, "t.owner = ?")
		args = append(args, *filter.Owner)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY t.created_us, t.id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list tasks", err)
	}
	defer rows.Close()

	var out []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, wrapDBError("scan task", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (tx *sqliteTx) CreateTask(ctx context.Context, t *task.Task) error {
	return createTask(ctx, tx.q, t)
}

func (tx *sqliteTx) GetTask(ctx context.Context, id string) (*task.Task, error) {
	return getTask(ctx, tx.q, id)
}

func (tx *sqliteTx) UpdateTask(ctx context.Context, t *task.Task, expectedModified time.Time) error {
	return updateTask(ctx, tx.q, t, expectedModified)
}

func (tx *sqliteTx) DeleteTask(ctx context.Context, id string) error {
	return deleteTask(ctx, tx.q, id)
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
