package models

import "time"

// StatusLogEntry is one immutable record of a workflow transition.
// Entries are append-only; no update or delete path exists. Insertion
// order is causal order for a given request.
type StatusLogEntry struct {
	ID         string        `db:"id" json:"id"`
	RequestID  string        `db:"request_id" json:"request_id"`
	FromStatus RequestStatus `db:"from_status" json:"from_status"`
	ToStatus   RequestStatus `db:"to_status" json:"to_status"`
	ActorID    string        `db:"actor_id" json:"actor_id"`
	Reason     string        `db:"reason" json:"reason"`
	Metadata   []byte        `db:"metadata" json:"metadata,omitempty"`
	OccurredAt time.Time     `db:"occurred_at" json:"occurred_at"`
}
