package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeLead() *Lead {
	submitted := time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)
	synced := submitted.Add(time.Minute)
	return &Lead{
		LeadID:              "3f1c2a9e-8b4d-4c7a-9e2f-1a2b3c4d5e6f",
		LeadType:            LeadTypeMessage,
		Status:              StatusActive,
		UniversalRetailerID: "retailer-1",
		LocationID:          "loc-1",
		DateSubmitted:       &submitted,
		Lead: &Contact{
			Name:        "Ana Souza",
			PhoneNumber: "+15551234567",
			Message:     "Is the store open on Sunday?",
		},
		Integrations: map[string]IntegrationState{
			"kommo": {SyncStatus: SyncStatusSynced, Data: json.RawMessage(`{"LeadId":12}`), LastSynced: &synced},
		},
	}
}

func TestParseLeadID(t *testing.T) {
	id, err := ParseLeadID(" 3F1C2A9E-8B4D-4C7A-9E2F-1A2B3C4D5E6F ")
	require.NoError(t, err)
	assert.Equal(t, "3f1c2a9e-8b4d-4c7a-9e2f-1a2b3c4d5e6f", id)

	_, err = ParseLeadID("not-a-uuid")
	assert.Error(t, err)

	// version 1
	_, err = ParseLeadID("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	assert.Error(t, err)
}

func TestSetCloseReasonKeepsFirst(t *testing.T) {
	l := &Lead{}
	l.SetCloseReason("  ")
	assert.Nil(t, l.CloseReason)

	l.SetCloseReason("sold")
	l.SetCloseReason("duplicate")
	require.NotNil(t, l.CloseReason)
	assert.Equal(t, "sold", *l.CloseReason)
}

func TestCloneIsDeep(t *testing.T) {
	l := activeLead()
	c := l.Clone()
	c.Lead.Name = "changed"
	c.Integrations["kommo"] = IntegrationState{SyncStatus: SyncStatusError}

	assert.Equal(t, "Ana Souza", l.Lead.Name)
	assert.Equal(t, SyncStatusSynced, l.Integrations["kommo"].SyncStatus)
}

func TestRecordRoundTrip(t *testing.T) {
	record, err := EncodeRecord(activeLead())
	require.NoError(t, err)

	decoded, err := DecodeRecord(record)
	require.NoError(t, err)
	assert.Equal(t, activeLead().LeadID, decoded.LeadID)
	assert.JSONEq(t, `{"LeadId":12}`, string(decoded.Integrations["kommo"].Data))
}

func TestEncodeRecordRejectsInvalidLeads(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Lead)
	}{
		{"transient status", func(l *Lead) { l.Status = StatusValidating }},
		{"error status", func(l *Lead) { l.Status = StatusError }},
		{"missing message", func(l *Lead) { l.Lead.Message = "" }},
		{"bad phone", func(l *Lead) { l.Lead.PhoneNumber = "555" }},
		{"missing location", func(l *Lead) { l.LocationID = "" }},
		{"unknown sync status", func(l *Lead) {
			l.Integrations["kommo"] = IntegrationState{SyncStatus: "PAUSED"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := activeLead()
			tt.mutate(l)
			_, err := EncodeRecord(l)
			assert.Error(t, err)
		})
	}
}

func TestCallbackSchemaAllowsMissingMessage(t *testing.T) {
	l := activeLead()
	l.LeadType = LeadTypeCallback
	l.Lead.Message = ""
	_, err := EncodeRecord(l)
	assert.NoError(t, err)
}

func TestDecodeRecordRejectsUnknownFields(t *testing.T) {
	record, err := EncodeRecord(activeLead())
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(record, &doc))
	doc["Surprise"] = true
	tampered, err := json.Marshal(doc)
	require.NoError(t, err)

	_, err = DecodeRecord(tampered)
	assert.Error(t, err)

	_, err = DecodeRecord([]byte(`[1,2,3]`))
	assert.Error(t, err)
}

func TestNeverSucceededProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)
	statuses := gen.OneConstOf(SyncStatusNotSynced, SyncStatusSyncing, SyncStatusSynced, SyncStatusError, SyncStatusClosed)

	properties.Property("create runs only before the first success", prop.ForAll(
		func(status SyncStatus, synced bool) bool {
			s := IntegrationState{SyncStatus: status}
			if synced {
				now := time.Now()
				s.LastSynced = &now
			}
			want := status == SyncStatusNotSynced || (status == SyncStatusError && !synced)
			return s.NeverSucceeded() == want
		},
		statuses, gen.Bool(),
	))

	properties.TestingRun(t)
}
