// Package diff compares two snapshots of a task and produces the ordered
// field-level change list recorded in history events.
//
// Only a fixed set of tracked fields is compared; untracked fields are
// ignored even when they differ. Emission order is the tracked-field
// declaration order, so serialized output is deterministic and diffable.
package diff

import (
	"sort"
	"strconv"
	"time"

	"github.com/taskbasket/taskbasket/internal/task"
)

// trackedField renders one tracked task field in its display form.
// Absent values (nil timestamps, empty owner) render as "".
type trackedField struct {
	name   string
	render func(t *task.Task) string
}

// trackedFields fixes both the set of compared fields and their emission
// order. Do not reorder: history payloads depend on it.
var trackedFields = []trackedField{
	{"claimed", func(t *task.Task) string { return renderTime(t.Claimed) }},
	{"completed", func(t *task.Task) string { return renderTime(t.Completed) }},
	{"modified", func(t *task.Task) string { return renderTime(&t.Modified) }},
	{"state", func(t *task.Task) string { return string(t.State) }},
	{"owner", func(t *task.Task) string { return t.Owner }},
	{"isRead", func(t *task.Task) string { return strconv.FormatBool(t.IsRead) }},
	{"workbasketSummary", func(t *task.Task) string { return t.Workbasket.Summary() }},
}

// Changes returns the ordered list of change records between two task
// snapshots. A field appears iff its rendered old and new values differ;
// nil and empty string compare equal because both render as "".
func Changes(oldTask, newTask *task.Task) []task.ChangeRecord {
	var records []task.ChangeRecord
	for _, f := range trackedFields {
		oldValue := f.render(oldTask)
		newValue := f.render(newTask)
		if oldValue == newValue {
			continue
		}
		records = append(records, task.ChangeRecord{
			FieldName: f.name,
			OldValue:  oldValue,
			NewValue:  newValue,
		})
	}
	records = append(records, customChanges(oldTask.Custom, newTask.Custom)...)
	return records
}

// customChanges emits one record per changed custom attribute. Keys are
// sorted so the tail of the change list stays deterministic.
func customChanges(oldCustom, newCustom map[string]string) []task.ChangeRecord {
	keys := make(map[string]bool, len(oldCustom)+len(newCustom))
	for k := range oldCustom {
		keys[k] = true
	}
	for k := range newCustom {
		keys[k] = true
	}
	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var records []task.ChangeRecord
	for _, k := range sorted {
		oldValue := oldCustom[k]
		newValue := newCustom[k]
		if oldValue == newValue {
			continue
		}
		records = append(records, task.ChangeRecord{
			FieldName: "custom." + k,
			OldValue:  oldValue,
			NewValue:  newValue,
		})
	}
	return records
}

// renderTime formats a nullable timestamp in its display form.
func renderTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
