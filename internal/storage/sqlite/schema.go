package sqlite

// schema creates all tables if they don't exist. Timestamps are stored as
// unix microseconds so the optimistic modified check compares exactly.
const schema = `
CREATE TABLE IF NOT EXISTS workbaskets (
    id   TEXT PRIMARY KEY,
    key  TEXT NOT NULL DEFAULT '',
    name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS tasks (
    id            TEXT PRIMARY KEY,
    state         TEXT NOT NULL,
    owner         TEXT NOT NULL DEFAULT '',
    workbasket_id TEXT NOT NULL REFERENCES workbaskets(id),
    created_us    INTEGER NOT NULL,
    modified_us   INTEGER NOT NULL,
    claimed_us    INTEGER,
    completed_us  INTEGER,
    is_read       INTEGER NOT NULL DEFAULT 0,
    custom        TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_tasks_workbasket ON tasks(workbasket_id);
CREATE INDEX IF NOT EXISTS idx_tasks_state ON tasks(state);

CREATE TABLE IF NOT EXISTS access_entries (
    workbasket_id TEXT NOT NULL,
    access_id     TEXT NOT NULL,
    permissions   TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (workbasket_id, access_id)
);

CREATE TABLE IF NOT EXISTS events (
    id         TEXT PRIMARY KEY,
    task_id    TEXT NOT NULL,
    event_type TEXT NOT NULL,
    user_id    TEXT NOT NULL DEFAULT '',
    created_us INTEGER NOT NULL,
    details    TEXT NOT NULL DEFAULT '{"changes":[]}'
);

CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id, created_us);
`
