package entity

import (
	"context"
	"encoding/json"
	"time"
)

type SyncStatus string

const (
	SyncStatusNotSynced SyncStatus = "NOT_SYNCED"
	SyncStatusSyncing   SyncStatus = "SYNCING"
	SyncStatusSynced    SyncStatus = "SYNCED"
	SyncStatusError     SyncStatus = "ERROR"
	SyncStatusClosed    SyncStatus = "CLOSED"
)

// IntegrationState is the per-adapter progress record kept on a lead.
// Data belongs to the adapter and is never interpreted by the orchestrator.
type IntegrationState struct {
	SyncStatus SyncStatus      `json:"SyncStatus"`
	Data       json.RawMessage `json:"Data,omitempty"`
	LastSynced *time.Time      `json:"LastSynced,omitempty"`
	ErrorInfo  *ErrorInfo      `json:"ErrorInfo,omitempty"`
}

// NeverSucceeded reports whether create has to be attempted instead of sync.
func (s IntegrationState) NeverSucceeded() bool {
	switch s.SyncStatus {
	case SyncStatusNotSynced:
		return true
	case SyncStatusError:
		return s.LastSynced == nil
	default:
		return false
	}
}

// DecodeData unmarshals the adapter payload into v. Empty data leaves v untouched.
func (s IntegrationState) DecodeData(v any) error {
	if len(s.Data) == 0 || string(s.Data) == "null" {
		return nil
	}
	return json.Unmarshal(s.Data, v)
}

// WithData returns a copy of s carrying v as its adapter payload.
func (s IntegrationState) WithData(v any) (IntegrationState, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return s, err
	}
	s.Data = data
	return s, nil
}

// IntegrationAdapter is the uniform contract every external system connector
// implements. Adapters must be safe to call again with the same state: the
// orchestrator retries a step until its result has been checkpointed.
type IntegrationAdapter interface {
	Name() string
	DefaultState() IntegrationState
	ShouldRun(lead *Lead) bool
	Create(ctx context.Context, state IntegrationState, lead *Lead) (IntegrationState, error)
	Sync(ctx context.Context, state IntegrationState, lead *Lead) (IntegrationState, error)
	Close(ctx context.Context, state IntegrationState, lead *Lead) (IntegrationState, error)
}

// AdapterRegistry is the static table of adapters per lead type. Slice order
// is the order in which adapters run.
type AdapterRegistry map[LeadType][]IntegrationAdapter

func (r AdapterRegistry) For(t LeadType) []IntegrationAdapter {
	if r == nil {
		return nil
	}
	return r[t]
}
