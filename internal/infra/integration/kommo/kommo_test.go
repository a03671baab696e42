package kommo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadsync/internal/entity"
)

type fakeKommo struct {
	mu       sync.Mutex
	contacts []contactPayload
	leads    []leadPayload
	patches  []leadPayload
	known    bool
}

func (f *fakeKommo) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var resp embeddedResponse
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/contacts":
		if !f.known {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		resp.Embedded.Contacts = []idRef{{ID: 7}}
	case r.Method == http.MethodPost && r.URL.Path == "/contacts":
		var in []contactPayload
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.contacts = append(f.contacts, in...)
		resp.Embedded.Contacts = []idRef{{ID: 11}}
	case r.Method == http.MethodPost && r.URL.Path == "/leads":
		var in []leadPayload
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.leads = append(f.leads, in...)
		resp.Embedded.Leads = []idRef{{ID: 99}}
	case r.Method == http.MethodPatch && r.URL.Path == "/leads":
		var in []leadPayload
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.patches = append(f.patches, in...)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	_ = json.NewEncoder(w).Encode(resp)
}

func messageLead() *entity.Lead {
	return &entity.Lead{
		LeadID:     "lead-1",
		LeadType:   entity.LeadTypeMessage,
		LocationID: "loc-1",
		Lead:       &entity.Contact{Name: "Ana", PhoneNumber: "+15551234567", Email: "ana@example.com", Message: "hi"},
	}
}

func TestClientCreateLeadNewContact(t *testing.T) {
	fake := &fakeKommo{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL, APIToken: "token", PipelineID: 3, StatusID: 4})
	contactID, leadID, err := c.CreateLead(context.Background(), leadInput(messageLead()))
	require.NoError(t, err)

	assert.Equal(t, 11, contactID)
	assert.Equal(t, 99, leadID)
	require.Len(t, fake.contacts, 1)
	assert.Len(t, fake.contacts[0].CustomFields, 2)
	require.Len(t, fake.leads, 1)
	assert.Equal(t, "Ana - message", fake.leads[0].Name)
	assert.Equal(t, 3, fake.leads[0].PipelineID)
	assert.Equal(t, []idRef{{ID: 11}}, fake.leads[0].Embedded.Contacts)
}

func TestClientCreateLeadKnownContact(t *testing.T) {
	fake := &fakeKommo{known: true}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	contactID, _, err := NewClient(Config{BaseURL: srv.URL, APIToken: "token"}).CreateLead(context.Background(), leadInput(messageLead()))
	require.NoError(t, err)
	assert.Equal(t, 7, contactID)
	assert.Empty(t, fake.contacts)
}

func TestClientCloseLead(t *testing.T) {
	fake := &fakeKommo{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	require.NoError(t, NewClient(Config{BaseURL: srv.URL, APIToken: "token"}).CloseLead(context.Background(), 99, "sold"))
	require.Len(t, fake.patches, 1)
	assert.Equal(t, 143, fake.patches[0].StatusID)
	assert.Equal(t, []tag{{Name: "closed:sold"}}, fake.patches[0].Embedded.Tags)
}

func TestClientWithoutToken(t *testing.T) {
	_, _, err := NewClient(Config{BaseURL: "http://127.0.0.1:0"}).CreateLead(context.Background(), CreateLeadInput{})
	assert.Error(t, err)
}

func TestAdapterLifecycle(t *testing.T) {
	fake := &fakeKommo{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := NewAdapter(NewClient(Config{BaseURL: srv.URL, APIToken: "token"}))
	lead := messageLead()
	ctx := context.Background()

	state, err := a.Create(ctx, a.DefaultState(), lead)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusSynced, state.SyncStatus)
	var data State
	require.NoError(t, state.DecodeData(&data))
	assert.Equal(t, State{ContactID: 11, LeadID: 99}, data)

	// a second create with stored ids updates instead of duplicating
	state, err = a.Create(ctx, state, lead)
	require.NoError(t, err)
	assert.Len(t, fake.leads, 1)
	assert.Len(t, fake.patches, 1)

	reason := "sold"
	lead.CloseReason = &reason
	state, err = a.Close(ctx, state, lead)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusClosed, state.SyncStatus)
	assert.Len(t, fake.patches, 2)
}

func TestAdapterSyncWithoutIDsCreates(t *testing.T) {
	fake := &fakeKommo{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := NewAdapter(NewClient(Config{BaseURL: srv.URL, APIToken: "token"}))
	state, err := a.Sync(context.Background(), entity.IntegrationState{SyncStatus: entity.SyncStatusError}, messageLead())
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusSynced, state.SyncStatus)
	assert.Len(t, fake.leads, 1)
}

func TestAdapterCloseWithoutIDs(t *testing.T) {
	a := NewAdapter(NewClient(Config{BaseURL: "http://127.0.0.1:0", APIToken: "token"}))
	state, err := a.Close(context.Background(), a.DefaultState(), messageLead())
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusClosed, state.SyncStatus)
}
