package entity

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var ErrInvocationNotFound = errors.New("invocation not found")

type Operation string

const (
	OperationCreate Operation = "CREATE"
	OperationSync   Operation = "SYNC"
	OperationClose  Operation = "CLOSE"
)

type InvocationStatus string

const (
	InvocationPending InvocationStatus = "PENDING"
	InvocationDone    InvocationStatus = "DONE"
)

// Invocation is one execution of a mutating lead operation. Its id is the
// idempotency key that lets a redelivered or recovered call resume.
type Invocation struct {
	ID        string           `json:"id"`
	LeadID    string           `json:"lead_id"`
	Operation Operation        `json:"operation"`
	Request   json.RawMessage  `json:"request,omitempty"`
	Status    InvocationStatus `json:"status"`
	Result    json.RawMessage  `json:"result,omitempty"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// StepRecord is the checkpoint of one completed side effect.
type StepRecord struct {
	InvocationID string          `json:"invocation_id"`
	StepID       string          `json:"step_id"`
	Result       json.RawMessage `json:"result,omitempty"`
	Failure      string          `json:"failure,omitempty"`
	RecordedAt   time.Time       `json:"recorded_at"`
}

// JournalRepository is the per-lead write-ahead log backing checkpointed steps.
type JournalRepository interface {
	// BeginInvocation stores inv unless an invocation with the same id exists,
	// in which case the stored one is returned.
	BeginInvocation(ctx context.Context, inv Invocation) (Invocation, error)
	CompleteInvocation(ctx context.Context, id string, result json.RawMessage, errMsg string) error
	PendingInvocations(ctx context.Context, olderThan time.Time) ([]Invocation, error)
	GetStep(ctx context.Context, invocationID, stepID string) (StepRecord, bool, error)
	RecordStep(ctx context.Context, rec StepRecord) error
}
