package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskbasket/taskbasket/internal/task"
)

func recordEvent(ctx context.Context, q querier, ev *task.HistoryEvent) error {
	details, err := ev.MarshalDetails()
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}
	_, err = q.ExecContext(ctx, `
		INSERT INTO events (id, task_id, event_type, user_id, created_us, details)
		VALUES (?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.TaskID, ev.EventType, ev.UserID, timeToMicros(ev.Created), string(details))
	if err != nil {
		return wrapDBError("record event", err)
	}
	return nil
}

func getEvents(ctx context.Context, q querier, taskID string, limit int) ([]*task.HistoryEvent, error) {
	query := `
		SELECT id, task_id, event_type, user_id, created_us, details
		FROM events WHERE task_id = ?
		ORDER BY created_us DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := q.QueryContext(ctx, query, taskID)
	if err != nil {
		return nil, wrapDBError("get events", err)
	}
	defer rows.Close()

	var out []*task.HistoryEvent
	for rows.Next() {
		var ev task.HistoryEvent
		var createdUs int64
		var details string
		if err := rows.Scan(&ev.ID, &ev.TaskID, &ev.EventType, &ev.UserID, &createdUs, &details); err != nil {
			return nil, wrapDBError("scan event", err)
		}
		ev.Created = microsToTime(createdUs)
		if err := ev.UnmarshalDetails([]byte(details)); err != nil {
			return nil, fmt.Errorf("parse details for event %s: %w", ev.ID, err)
		}
		out = append(out, &ev)
	}
	return out, rows.Err()
}

func deleteEventsByTaskIDs(ctx context.Context, q querier, taskIDs []string) error {
	if len(taskIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(taskIDs)), ", ")
	args := make([]any, len(taskIDs))
	for i, id := range taskIDs {
		args[i] = id
	}
	// nolint:gosec // G201: placeholders contains only "?" markers
	query := fmt.Sprintf(`DELETE FROM events WHERE task_id IN (%s)`, placeholders)
	if _, err := q.ExecContext(ctx, query, args...); err != nil {
		return wrapDBError("delete events", err)
	}
	return nil
}

// RecordEvent appends a history event.
func (s *Store) RecordEvent(ctx context.Context, ev *task.HistoryEvent) error {
	return recordEvent(ctx, s.db, ev)
}

// GetEvents returns a task's events, newest first.
func (s *Store) GetEvents(ctx context.Context, taskID string, limit int) ([]*task.HistoryEvent, error) {
	return getEvents(ctx, s.db, taskID, limit)
}

// DeleteEventsByTaskIDs removes all events for the given task ids.
func (s *Store) DeleteEventsByTaskIDs(ctx context.Context, taskIDs []string) error {
	return deleteEventsByTaskIDs(ctx, s.db, taskIDs)
}

func (tx *sqliteTx) RecordEvent(ctx context.Context, ev *task.HistoryEvent) error {
	return recordEvent(ctx, tx.q, ev)
}

func (tx *sqliteTx) DeleteEventsByTaskIDs(ctx context.Context, taskIDs []string) error {
	return deleteEventsByTaskIDs(ctx, tx.q, taskIDs)
}
