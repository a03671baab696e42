package summary

import (
	"context"
	"strings"

	"github.com/xavierca1/leadsync/internal/entity"
)

const Name = "summary"

type Summarizer interface {
	Summarize(ctx context.Context, input SummarizeInput) (*SummarizeOutput, error)
}

// State is what the adapter keeps in IntegrationState.Data.
type State struct {
	SummaryID string `json:"SummaryId"`
	Summary   string `json:"Summary"`
}

// Adapter attaches a generated summary of the customer's message.
type Adapter struct {
	summarizer Summarizer
}

func NewAdapter(s Summarizer) *Adapter {
	return &Adapter{summarizer: s}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) DefaultState() entity.IntegrationState {
	return entity.IntegrationState{SyncStatus: entity.SyncStatusNotSynced}
}

func (a *Adapter) ShouldRun(lead *entity.Lead) bool {
	return lead.Lead != nil && strings.TrimSpace(lead.Lead.Message) != ""
}

func (a *Adapter) Create(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	out, err := a.summarizer.Summarize(ctx, SummarizeInput{Reference: lead.LeadID, Text: lead.Lead.Message})
	if err != nil {
		return state, err
	}
	state.SyncStatus = entity.SyncStatusSynced
	return state.WithData(State{SummaryID: out.ID, Summary: out.Summary})
}

// Sync keeps the existing summary; the message never changes after create.
func (a *Adapter) Sync(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	var data State
	if err := state.DecodeData(&data); err != nil {
		return state, err
	}
	if data.SummaryID == "" {
		return a.Create(ctx, state, lead)
	}
	state.SyncStatus = entity.SyncStatusSynced
	return state, nil
}

func (a *Adapter) Close(_ context.Context, state entity.IntegrationState, _ *entity.Lead) (entity.IntegrationState, error) {
	state.SyncStatus = entity.SyncStatusClosed
	return state, nil
}
