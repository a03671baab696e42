package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadFilterJSON(t *testing.T) {
	var all LeadFilter
	require.NoError(t, json.Unmarshal([]byte(`"*"`), &all))
	assert.True(t, all.All)

	data, err := json.Marshal(all)
	require.NoError(t, err)
	assert.Equal(t, `"*"`, string(data))

	var bad LeadFilter
	assert.Error(t, json.Unmarshal([]byte(`"status=ACTIVE"`), &bad))

	var obj LeadFilter
	require.NoError(t, json.Unmarshal([]byte(`{"Status":["ACTIVE","ERROR"],"UniversalRetailerId":"r-1"}`), &obj))
	assert.False(t, obj.All)
	assert.Equal(t, []Status{StatusActive, StatusError}, obj.Status)
	assert.Equal(t, "r-1", obj.UniversalRetailerID)
}

func TestLeadFilterMatch(t *testing.T) {
	submitted := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	lead := &Lead{
		LeadID:              "a",
		LeadType:            LeadTypeCallback,
		Status:              StatusClosed,
		UniversalRetailerID: "r-1",
		DateSubmitted:       &submitted,
	}
	before := submitted.Add(-time.Hour)
	after := submitted.Add(time.Hour)

	tests := []struct {
		name   string
		filter LeadFilter
		want   bool
	}{
		{"all", LeadFilter{All: true}, true},
		{"empty object", LeadFilter{}, true},
		{"status hit", LeadFilter{Status: []Status{StatusActive, StatusClosed}}, true},
		{"status miss", LeadFilter{Status: []Status{StatusActive}}, false},
		{"type miss", LeadFilter{LeadType: []LeadType{LeadTypeMessage}}, false},
		{"retailer miss", LeadFilter{UniversalRetailerID: "r-2"}, false},
		{"window hit", LeadFilter{SubmittedAfter: &before, SubmittedBefore: &after}, true},
		{"after is exclusive", LeadFilter{SubmittedAfter: &submitted}, false},
		{"before miss", LeadFilter{SubmittedBefore: &before}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(lead))
		})
	}

	assert.False(t, LeadFilter{All: true}.Match(nil))
	assert.False(t, LeadFilter{SubmittedAfter: &before}.Match(&Lead{}))
}
