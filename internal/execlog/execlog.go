// Package execlog records the append-only audit trail of node executions.
// Entries are created by the executor, never mutated after append, and never
// deleted by the engine. Appends are independent and non-transactional; no
// transaction spans multiple nodes.
package execlog

import (
	"context"
	"time"
)

// Status is the lifecycle state recorded for one node operation.
type Status string

const (
	StatusStarted  Status = "started"
	StatusRetrying Status = "retrying"
	StatusComplete Status = "complete"
	StatusError    Status = "error"
)

// ActionType distinguishes retrieval from masking in the audit trail.
type ActionType string

const (
	ActionAccess  ActionType = "access"
	ActionErasure ActionType = "erasure"
)

// Entry is one immutable audit record.
type Entry struct {
	RequestID      string
	Dataset        string
	Collection     string
	FieldsAffected []string
	Action         ActionType
	Status         Status
	Message        string
	CreatedAt      time.Time
}

// Sink accepts audit records. Implementations must be safe for concurrent
// appends from independent requests.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}
