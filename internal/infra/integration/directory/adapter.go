package directory

import (
	"context"

	"github.com/xavierca1/leadsync/internal/entity"
)

const Name = "directory"

type Registrar interface {
	RegisterLead(ctx context.Context, input LeadInput) (string, error)
	UpdateLead(ctx context.Context, entryID string, input LeadInput) error
	CloseLead(ctx context.Context, entryID, reason string) error
}

// State is what the adapter keeps in IntegrationState.Data.
type State struct {
	EntryID string `json:"EntryId"`
}

// Adapter mirrors the lead into the retailer directory so the location
// sees it in its inbox.
type Adapter struct {
	registrar Registrar
}

func NewAdapter(r Registrar) *Adapter {
	return &Adapter{registrar: r}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) DefaultState() entity.IntegrationState {
	return entity.IntegrationState{SyncStatus: entity.SyncStatusNotSynced}
}

func (a *Adapter) ShouldRun(lead *entity.Lead) bool { return lead.LocationID != "" }

func (a *Adapter) Create(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	// Registration is a PUT keyed by lead id, so repeating it is harmless.
	id, err := a.registrar.RegisterLead(ctx, leadInput(lead))
	if err != nil {
		return state, err
	}
	state.SyncStatus = entity.SyncStatusSynced
	return state.WithData(State{EntryID: id})
}

func (a *Adapter) Sync(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	var data State
	if err := state.DecodeData(&data); err != nil {
		return state, err
	}
	if data.EntryID == "" {
		return a.Create(ctx, state, lead)
	}
	if err := a.registrar.UpdateLead(ctx, data.EntryID, leadInput(lead)); err != nil {
		return state, err
	}
	state.SyncStatus = entity.SyncStatusSynced
	return state, nil
}

func (a *Adapter) Close(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	var data State
	if err := state.DecodeData(&data); err != nil {
		return state, err
	}
	if data.EntryID != "" {
		reason := ""
		if lead.CloseReason != nil {
			reason = *lead.CloseReason
		}
		if err := a.registrar.CloseLead(ctx, data.EntryID, reason); err != nil {
			return state, err
		}
	}
	state.SyncStatus = entity.SyncStatusClosed
	return state, nil
}

func leadInput(lead *entity.Lead) LeadInput {
	in := LeadInput{
		LeadID:              lead.LeadID,
		LeadType:            string(lead.LeadType),
		UniversalRetailerID: lead.UniversalRetailerID,
		LocationID:          lead.LocationID,
		Status:              string(lead.Status),
	}
	if lead.Lead != nil {
		in.Name = lead.Lead.Name
		in.PhoneNumber = lead.Lead.PhoneNumber
		in.Email = lead.Lead.Email
		in.Message = lead.Lead.Message
	}
	return in
}
