package whatsapp

import (
	"context"

	"github.com/xavierca1/leadsync/internal/entity"
)

const Name = "whatsapp"

type Messenger interface {
	SendMessage(ctx context.Context, input SendMessageInput) (string, error)
}

type Templates struct {
	Intake  string
	Closing string
}

// Adapter opens a conversation with the submitter of a MESSAGE lead.
type Adapter struct {
	messenger Messenger
	templates Templates
}

func NewAdapter(m Messenger, templates Templates) *Adapter {
	if templates.Intake == "" {
		templates.Intake = "lead_received"
	}
	if templates.Closing == "" {
		templates.Closing = "lead_closed"
	}
	return &Adapter{messenger: m, templates: templates}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) DefaultState() entity.IntegrationState {
	return entity.IntegrationState{SyncStatus: entity.SyncStatusNotSynced}
}

func (a *Adapter) ShouldRun(lead *entity.Lead) bool {
	return lead.LeadType == entity.LeadTypeMessage && lead.Lead != nil
}

func (a *Adapter) Create(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	var data State
	if err := state.DecodeData(&data); err != nil {
		return state, err
	}
	if data.IntakeMessageID == "" {
		id, err := a.messenger.SendMessage(ctx, SendMessageInput{
			PhoneNumber:  lead.Lead.PhoneNumber,
			TemplateName: a.templates.Intake,
			Parameters:   []string{lead.Lead.Name},
		})
		if err != nil {
			return state, err
		}
		data = State{To: lead.Lead.PhoneNumber, IntakeMessageID: id}
	}
	state.SyncStatus = entity.SyncStatusSynced
	return state.WithData(data)
}

// Sync has nothing to push once the intake message went out.
func (a *Adapter) Sync(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	return a.Create(ctx, state, lead)
}

func (a *Adapter) Close(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	var data State
	if err := state.DecodeData(&data); err != nil {
		return state, err
	}
	if data.IntakeMessageID != "" && data.ClosingMessageID == "" {
		id, err := a.messenger.SendMessage(ctx, SendMessageInput{
			PhoneNumber:  lead.Lead.PhoneNumber,
			TemplateName: a.templates.Closing,
			Parameters:   []string{lead.Lead.Name},
		})
		if err != nil {
			return state, err
		}
		data.ClosingMessageID = id
	}
	state.SyncStatus = entity.SyncStatusClosed
	return state.WithData(data)
}
