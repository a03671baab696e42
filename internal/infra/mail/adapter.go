package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

const AdapterName = "email"

type Notifier interface {
	SendLeadReceived(to string, data LeadEmailData) error
	SendLeadClosed(to string, data LeadEmailData) error
}

// State is what the adapter keeps in IntegrationState.Data.
type State struct {
	To         string     `json:"To,omitempty"`
	Location   string     `json:"Location,omitempty"`
	NotifiedAt *time.Time `json:"NotifiedAt,omitempty"`
	Skipped    bool       `json:"Skipped,omitempty"`
}

// Adapter notifies the destination location's inbox about the lead.
type Adapter struct {
	notifier  Notifier
	locations usecase.LocationService
	now       func() time.Time
}

func NewAdapter(n Notifier, locations usecase.LocationService) *Adapter {
	return &Adapter{notifier: n, locations: locations, now: time.Now}
}

func (a *Adapter) Name() string { return AdapterName }

func (a *Adapter) DefaultState() entity.IntegrationState {
	return entity.IntegrationState{SyncStatus: entity.SyncStatusNotSynced}
}

func (a *Adapter) ShouldRun(lead *entity.Lead) bool { return lead.Lead != nil }

func (a *Adapter) Create(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	location, err := a.locations.GetLocation(ctx, lead.UniversalRetailerID, lead.LocationID)
	if err != nil {
		return state, err
	}
	state.SyncStatus = entity.SyncStatusSynced
	if location.Email == "" {
		return state.WithData(State{Skipped: true})
	}
	if err := a.notifier.SendLeadReceived(location.Email, emailData(lead, location.Name)); err != nil {
		return state, err
	}
	sent := a.now().UTC()
	return state.WithData(State{To: location.Email, Location: location.Name, NotifiedAt: &sent})
}

// Sync never re-sends a notification.
func (a *Adapter) Sync(_ context.Context, state entity.IntegrationState, _ *entity.Lead) (entity.IntegrationState, error) {
	state.SyncStatus = entity.SyncStatusSynced
	return state, nil
}

func (a *Adapter) Close(ctx context.Context, state entity.IntegrationState, lead *entity.Lead) (entity.IntegrationState, error) {
	var data State
	if err := state.DecodeData(&data); err != nil {
		return state, err
	}
	if data.To != "" {
		// the name captured at create stands in while the directory is down
		name := data.Location
		location, err := a.locations.GetLocation(ctx, lead.UniversalRetailerID, lead.LocationID)
		switch {
		case err == nil:
			name = location.Name
		case name == "":
			return state, fmt.Errorf("resolve location %s: %w", lead.LocationID, err)
		}
		if err := a.notifier.SendLeadClosed(data.To, emailData(lead, name)); err != nil {
			return state, err
		}
	}
	state.SyncStatus = entity.SyncStatusClosed
	return state, nil
}

func emailData(lead *entity.Lead, locationName string) LeadEmailData {
	data := LeadEmailData{
		LocationName: locationName,
		LeadID:       lead.LeadID,
		LeadType:     string(lead.LeadType),
	}
	if lead.Lead != nil {
		data.Name = lead.Lead.Name
		data.PhoneNumber = lead.Lead.PhoneNumber
		data.Email = lead.Lead.Email
		data.Message = lead.Lead.Message
	}
	if lead.CloseReason != nil {
		data.Reason = *lead.CloseReason
	}
	return data
}
