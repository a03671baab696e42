package entity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrLeadNotFound = errors.New("lead not found")

type Status string

const (
	StatusNonexistant Status = "NONEXISTANT"
	StatusValidating  Status = "VALIDATING"
	StatusActive      Status = "ACTIVE"
	StatusSyncing     Status = "SYNCING"
	StatusClosed      Status = "CLOSED"
	StatusError       Status = "ERROR"
)

type LeadType string

const (
	LeadTypeMessage  LeadType = "MESSAGE"
	LeadTypeCallback LeadType = "CALLBACK"
)

func (t LeadType) Valid() bool {
	return t == LeadTypeMessage || t == LeadTypeCallback
}

// Contact is the lead-type specific payload submitted by the end customer.
type Contact struct {
	Name        string `json:"Name"`
	PhoneNumber string `json:"PhoneNumber"`
	Email       string `json:"Email,omitempty"`
	Message     string `json:"Message,omitempty"`
}

type ErrorInfo struct {
	Message   string    `json:"Message"`
	Details   string    `json:"Details,omitempty"`
	ErrorDate time.Time `json:"ErrorDate"`
}

func NewErrorInfo(err error, now time.Time) *ErrorInfo {
	info := &ErrorInfo{Message: err.Error(), ErrorDate: now.UTC()}
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		info.Details = unwrapped.Error()
	}
	return info
}

// Lead is the aggregate root. Only the orchestrator mutates it.
type Lead struct {
	LeadID              string                      `json:"LeadId"`
	LeadType            LeadType                    `json:"LeadType,omitempty"`
	Status              Status                      `json:"Status"`
	UniversalRetailerID string                      `json:"UniversalRetailerId,omitempty"`
	LocationID          string                      `json:"LocationId,omitempty"`
	CloseReason         *string                     `json:"CloseReason,omitempty"`
	DateSubmitted       *time.Time                  `json:"DateSubmitted,omitempty"`
	IPAddress           string                      `json:"IPAddress,omitempty"`
	Lead                *Contact                    `json:"Lead,omitempty"`
	Integrations        map[string]IntegrationState `json:"Integrations,omitempty"`
	Error               *ErrorInfo                  `json:"Error,omitempty"`
}

// Nonexistant is the snapshot reported for ids with no record.
func Nonexistant(id string) *Lead {
	return &Lead{LeadID: id, Status: StatusNonexistant}
}

func (l *Lead) Exists() bool {
	return l != nil && l.Status != StatusNonexistant
}

// SetCloseReason keeps the first reason ever written.
func (l *Lead) SetCloseReason(reason string) {
	if l.CloseReason != nil {
		return
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}
	l.CloseReason = &reason
}

func (l *Lead) Clone() *Lead {
	if l == nil {
		return nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil
	}
	var clone Lead
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil
	}
	return &clone
}

// ParseLeadID accepts only canonical UUIDv4 strings.
func ParseLeadID(raw string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if id.Version() != 4 {
		return "", errors.New("lead id must be a version 4 uuid")
	}
	return id.String(), nil
}

func NewLeadID() string {
	return uuid.New().String()
}

// LeadRepository is the durable system of record for leads.
type LeadRepository interface {
	Get(ctx context.Context, id string) (json.RawMessage, error)
	Put(ctx context.Context, lead *Lead, record json.RawMessage) error
	Scan(ctx context.Context, filter LeadFilter) ([]*Lead, error)
}

// StateRepository holds the orchestrator's working copy of each lead,
// including the transient VALIDATING and ERROR states that are never sent
// to the system of record.
type StateRepository interface {
	LoadState(ctx context.Context, id string) (*Lead, error)
	SaveState(ctx context.Context, lead *Lead) error
	ClearState(ctx context.Context, id string) error
}
