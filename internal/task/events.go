package task

import (
	"encoding/json"
	"time"
)

// HistoryEvent is an immutable audit record of one successful mutation.
// Events are append-only: created once per transition, never updated.
type HistoryEvent struct {
	ID        string       `json:"id"`
	TaskID    string       `json:"task_id"`
	EventType EventType    `json:"event_type"`
	UserID    string       `json:"user_id"`
	Created   time.Time    `json:"created"`
	Details   EventDetails `json:"details"`
}

// EventDetails is the payload of a history event: the ordered field-level
// diff produced by the change detector for the recorded transition.
type EventDetails struct {
	Changes []ChangeRecord `json:"changes"`
}

// MarshalJSON renders a nil change list as an empty array so events with
// no diff (CREATED, DELETED) serialize as {"changes":[]}, not null.
func (d EventDetails) MarshalJSON() ([]byte, error) {
	changes := d.Changes
	if changes == nil {
		changes = []ChangeRecord{}
	}
	type wire struct {
		Changes []ChangeRecord `json:"changes"`
	}
	return json.Marshal(wire{Changes: changes})
}

// MarshalDetails renders the details payload in its wire form, a JSON object
// {"changes": [...]} with changes in change-detector emission order.
func (e *HistoryEvent) MarshalDetails() ([]byte, error) {
	return json.Marshal(e.Details)
}

// UnmarshalDetails parses a wire-form details payload into the event.
// An empty payload leaves Details zero-valued.
func (e *HistoryEvent) UnmarshalDetails(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &e.Details)
}

// ChangeRecord is a single field-level diff entry. Values carry the display
// form of the field; absent values render as the empty string.
type ChangeRecord struct {
	FieldName string `json:"fieldName"`
	OldValue  string `json:"oldValue"`
	NewValue  string `json:"newValue"`
}

// EventType categorizes history events.
type EventType string

// Event type constants for the audit trail.
const (
	EventCreated          EventType = "CREATED"
	EventClaimed          EventType = "CLAIMED"
	EventClaimCancelled   EventType = "CLAIM_CANCELLED"
	EventReviewRequested  EventType = "REVIEW_REQUESTED"
	EventChangesRequested EventType = "CHANGES_REQUESTED"
	EventCompleted        EventType = "COMPLETED"
	EventCancelled        EventType = "CANCELLED"
	EventTerminated       EventType = "TERMINATED"
	EventTransferred      EventType = "TRANSFERRED"
	EventUpdated          EventType = "UPDATED"
	EventDeleted          EventType = "DELETED"
)

// IsValid checks if the event type value is valid.
func (e EventType) IsValid() bool {
	switch e {
	case EventCreated, EventClaimed, EventClaimCancelled, EventReviewRequested,
		EventChangesRequested, EventCompleted, EventCancelled, EventTerminated,
		EventTransferred, EventUpdated, EventDeleted:
		return true
	}
	return false
}
