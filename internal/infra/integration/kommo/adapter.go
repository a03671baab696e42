package kommo

import (
	"context"
	"fmt"
	"strings"

	"github.com/xavierca1/leadsync/internal/entity"
)

const Name = "kommo"

// CRM is the Kommo surface the adapter needs.
type CRM interface {
	CreateLead(ctx context.Context, input CreateLeadInput) (contactID, leadID int, err error)
	UpdateLead(ctx context.Context, leadID int, input CreateLeadInput) error
	CloseLead(ctx context.Context, leadID int, reason string) error
}

// Adapter files every lead as a CRM deal.
type Adapter struct {
	crm CRM
}

func NewAdapter(crm CRM) *Adapter {
	return &Adapter{crm: crm}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) DefaultState() entity.IntegrationState {
	return entity.IntegrationState{SyncStatus: entity.SyncStatusNotSynced}
}

func (a *Adapter) ShouldRun(lead *entity.Lead) bool { return lead.Lead != nil }

func (a *Adapter) Create(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	var data State
	if err := state.DecodeData(&data); err != nil {
		return state, err
	}
	if data.LeadID != 0 {
		return a.Sync(ctx, state, lead)
	}
	contactID, leadID, err := a.crm.CreateLead(ctx, leadInput(lead))
	if err != nil {
		return state, err
	}
	state.SyncStatus = entity.SyncStatusSynced
	return state.WithData(State{ContactID: contactID, LeadID: leadID})
}

func (a *Adapter) Sync(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	var data State
	if err := state.DecodeData(&data); err != nil {
		return state, err
	}
	if data.LeadID == 0 {
		return a.Create(ctx, state, lead)
	}
	if err := a.crm.UpdateLead(ctx, data.LeadID, leadInput(lead)); err != nil {
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
	if data.LeadID != 0 {
		reason := ""
		if lead.CloseReason != nil {
			reason = *lead.CloseReason
		}
		if err := a.crm.CloseLead(ctx, data.LeadID, reason); err != nil {
			return state, err
		}
	}
	state.SyncStatus = entity.SyncStatusClosed
	return state, nil
}

func leadInput(lead *entity.Lead) CreateLeadInput {
	return CreateLeadInput{
		Title:       fmt.Sprintf("%s - %s", lead.Lead.Name, strings.ToLower(string(lead.LeadType))),
		ContactName: lead.Lead.Name,
		Phone:       lead.Lead.PhoneNumber,
		Email:       lead.Lead.Email,
		Tags:        []string{"leadsync", strings.ToLower(string(lead.LeadType)), "location:" + lead.LocationID},
	}
}
