package model

import "time"

type ActorType string

const (
	ActorTypeShipper ActorType = "shipper"
	ActorTypeFleet   ActorType = "fleet"
	ActorTypeDriver  ActorType = "driver"
	ActorTypeAdmin   ActorType = "admin"
	ActorTypeSystem  ActorType = "system"
)

// AuditEntry is an append-only record of a state-changing action.
// Entries are never updated or deleted.
type AuditEntry struct {
	ID        string // ULID, lexically time-ordered
	SubjectID string // payment transaction or refund request id
	Action    string
	ActorID   string
	ActorType ActorType
	OldValues map[string]interface{} // JSONB snapshot, may be nil
	NewValues map[string]interface{}
	CreatedAt time.Time
}
