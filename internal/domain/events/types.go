package events

// EventType defines the type of event in the system
type EventType string

const (
	// Data events
	RecordCreated EventType = "record.created"
	RecordUpdated EventType = "record.updated"
	RecordDeleted EventType = "record.deleted"

	// Schema events
	SchemaUpdated EventType = "schema.updated"

	// Index maintenance events
	TableReindex EventType = "table.reindex"
	TableDropped EventType = "table.dropped"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// Broadcast scopes, the stable "type" field consumers pattern-match on
const (
	ScopeSchema = "schema_update"
	ScopeData   = "data_update"
)

// Broadcast actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// ChangePayload describes one schema or data mutation. It is the outbox row
// payload and, serialized, the JSON shape fanned out to subscribers. The shape
// is additive-only.
type ChangePayload struct {
	Scope     string `json:"type"`
	Action    string `json:"action"`
	Table     string `json:"table,omitempty"`
	LinkTable string `json:"link_table,omitempty"`
	Column    string `json:"column,omitempty"`
	Enum      string `json:"enum,omitempty"`
	TableID   int64  `json:"table_id,omitempty"`
	RecordID  int64  `json:"id,omitempty"`

	// PrevTable carries the previous table name on rename so the search
	// synchronizer can drop the stale index.
	PrevTable string `json:"prev_table,omitempty"`
}
