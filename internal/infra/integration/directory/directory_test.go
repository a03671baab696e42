package directory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

func newDirectory(t *testing.T) (*Client, *[]string) {
	t.Helper()
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts/r-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"universalRetailerId":"r-1","name":"Shop","churned":true}`))
	})
	mux.HandleFunc("GET /accounts/r-1/locations/loc-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"loc-1","phoneNumber":"+15559876543"}`))
	})
	mux.HandleFunc("PUT /accounts/r-1/locations/loc-1/leads", func(w http.ResponseWriter, r *http.Request) {
		var in LeadInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		calls = append(calls, "register:"+in.LeadID+":"+in.Status)
		_, _ = w.Write([]byte(`{"id":"entry-1"}`))
	})
	mux.HandleFunc("PATCH /leads/entry-1", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "update")
	})
	mux.HandleFunc("POST /leads/entry-1/close", func(w http.ResponseWriter, r *http.Request) {
		var in closeRequest
		_ = json.NewDecoder(r.Body).Decode(&in)
		calls = append(calls, "close:"+in.Reason)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "key"), &calls
}

func TestClientLookups(t *testing.T) {
	c, _ := newDirectory(t)
	ctx := context.Background()

	account, err := c.GetAccount(ctx, "r-1")
	require.NoError(t, err)
	assert.True(t, account.Churned)

	_, err = c.GetAccount(ctx, "r-2")
	assert.ErrorIs(t, err, usecase.ErrNotFound)

	location, err := c.GetLocation(ctx, "r-1", "loc-1")
	require.NoError(t, err)
	assert.Equal(t, "+15559876543", location.PhoneNumber)

	_, err = c.GetLocation(ctx, "r-1", "loc-2")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestAdapterLifecycle(t *testing.T) {
	c, calls := newDirectory(t)
	a := NewAdapter(c)
	ctx := context.Background()
	lead := &entity.Lead{
		LeadID:              "lead-1",
		LeadType:            entity.LeadTypeCallback,
		Status:              entity.StatusSyncing,
		UniversalRetailerID: "r-1",
		LocationID:          "loc-1",
		Lead:                &entity.Contact{Name: "Ana", PhoneNumber: "+15551234567"},
	}

	state, err := a.Create(ctx, a.DefaultState(), lead)
	require.NoError(t, err)
	var data State
	require.NoError(t, state.DecodeData(&data))
	assert.Equal(t, "entry-1", data.EntryID)

	state, err = a.Sync(ctx, state, lead)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusSynced, state.SyncStatus)

	reason := "duplicate"
	lead.CloseReason = &reason
	state, err = a.Close(ctx, state, lead)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusClosed, state.SyncStatus)

	assert.Equal(t, []string{"register:lead-1:SYNCING", "update", "close:duplicate"}, *calls)
}

func TestCloseTreatsMissingEntryAsClosed(t *testing.T) {
	c, _ := newDirectory(t)
	assert.NoError(t, c.CloseLead(context.Background(), "gone", "sold"))
}

func TestShouldRun(t *testing.T) {
	a := NewAdapter(nil)
	assert.True(t, a.ShouldRun(&entity.Lead{LocationID: "loc-1"}))
	assert.False(t, a.ShouldRun(&entity.Lead{}))
}
