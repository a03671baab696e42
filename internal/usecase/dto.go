package usecase

import (
	"github.com/xavierca1/leadsync/internal/entity"
)

type CreateLeadInput struct {
	LeadType            entity.LeadType `json:"LeadType"`
	UniversalRetailerID string          `json:"UniversalRetailerId"`
	LocationID          string          `json:"LocationId"`
	IPAddress           string          `json:"IPAddress,omitempty"`
	SyncImmediately     *bool           `json:"SyncImmediately,omitempty"`
	Lead                entity.Contact  `json:"Lead"`
}

// ShouldSyncImmediately defaults to true unless explicitly disabled.
func (in CreateLeadInput) ShouldSyncImmediately() bool {
	return in.SyncImmediately == nil || *in.SyncImmediately
}

type CloseLeadInput struct {
	Reason string `json:"Reason,omitempty"`
}

// CallOptions carries per-call metadata. InvocationID makes a call
// resumable: reusing it after a crash or redelivery skips finished steps.
type CallOptions struct {
	InvocationID string
}

type LeadCommand struct {
	LeadID       string           `json:"LeadId"`
	Operation    entity.Operation `json:"Operation"`
	Reason       string           `json:"Reason,omitempty"`
	InvocationID string           `json:"InvocationId"`
}

type BulkOperation string

const (
	BulkFind  BulkOperation = "FIND"
	BulkSync  BulkOperation = "SYNC"
	BulkClose BulkOperation = "CLOSE"
)

type BulkInput struct {
	Operation BulkOperation     `json:"Operation"`
	Filter    entity.LeadFilter `json:"Filter"`
	Reason    string            `json:"Reason,omitempty"`
	Verbose   bool              `json:"Verbose,omitempty"`
	Async     bool              `json:"Async,omitempty"`
}

type BulkItem struct {
	LeadID string       `json:"LeadId"`
	Status string       `json:"Status,omitempty"`
	Error  string       `json:"Error,omitempty"`
	Lead   *entity.Lead `json:"Lead,omitempty"`
}

type BulkOutput struct {
	Count  int        `json:"Count"`
	Result []BulkItem `json:"Result"`
}
