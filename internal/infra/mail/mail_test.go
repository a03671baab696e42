package mail

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

type captureDialer struct {
	sent []*gomail.Message
	err  error
}

func (d *captureDialer) DialAndSend(m ...*gomail.Message) error {
	d.sent = append(d.sent, m...)
	return d.err
}

// MockNotifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendLeadReceived(to string, data LeadEmailData) error {
	return m.Called(to, data).Error(0)
}

func (m *MockNotifier) SendLeadClosed(to string, data LeadEmailData) error {
	return m.Called(to, data).Error(0)
}

// MockLocations
type MockLocations struct {
	mock.Mock
}

func (m *MockLocations) GetLocation(ctx context.Context, retailerID, locationID string) (*usecase.Location, error) {
	args := m.Called(ctx, retailerID, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Location), args.Error(1)
}

func lead() *entity.Lead {
	return &entity.Lead{
		LeadID:              "lead-1",
		LeadType:            entity.LeadTypeMessage,
		UniversalRetailerID: "r-1",
		LocationID:          "loc-1",
		Lead:                &entity.Contact{Name: "Ana <script>", PhoneNumber: "+15551234567", Message: "open on sunday?"},
	}
}

func TestSenderRendersTemplate(t *testing.T) {
	d := &captureDialer{}
	s := &EmailSender{From: "leads@example.com", dialer: d}

	require.NoError(t, s.SendLeadReceived("store@example.com", emailData(lead(), "Downtown")))
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"store@example.com"}, m.GetHeader("To"))
	assert.Equal(t, []string{"New lead from Ana <script>"}, m.GetHeader("Subject"))


	var body bytes.Buffer
	require.NoError(t, templates.ExecuteTemplate(&body, "lead_received.html", emailData(lead(), "Downtown")))
	assert.Contains(t, body.String(), "Hello Downtown")
	assert.Contains(t, body.String(), "&lt;script&gt;")
	assert.NotContains(t, body.String(), "<script>")
}

func TestSenderWrapsDialError(t *testing.T) {
	s := &EmailSender{From: "leads@example.com", dialer: &captureDialer{err: errors.New("connection refused")}}
	err := s.SendLeadClosed("store@example.com", emailData(lead(), ""))
	assert.ErrorContains(t, err, "connection refused")
}

func TestAdapterCreateNotifiesLocation(t *testing.T) {
	notifier := new(MockNotifier)
	locations := new(MockLocations)
	locations.On("GetLocation", mock.Anything, "r-1", "loc-1").Return(&usecase.Location{Name: "Downtown", Email: "store@example.com"}, nil)
	notifier.On("SendLeadReceived", "store@example.com", mock.MatchedBy(func(d LeadEmailData) bool {
		return d.LocationName == "Downtown" && d.LeadID == "lead-1"
	})).Return(nil)

	a := NewAdapter(notifier, locations)
	sent := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return sent }

	state, err := a.Create(context.Background(), a.DefaultState(), lead())
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusSynced, state.SyncStatus)

	var data State
	require.NoError(t, state.DecodeData(&data))
	assert.Equal(t, "store@example.com", data.To)
	assert.Equal(t, "Downtown", data.Location)
	assert.Equal(t, sent, *data.NotifiedAt)
	notifier.AssertExpectations(t)
}

func TestAdapterSkipsLocationWithoutEmail(t *testing.T) {
	notifier := new(MockNotifier)
	locations := new(MockLocations)
	locations.On("GetLocation", mock.Anything, "r-1", "loc-1").Return(&usecase.Location{Name: "Downtown"}, nil)

	a := NewAdapter(notifier, locations)
	state, err := a.Create(context.Background(), a.DefaultState(), lead())
	require.NoError(t, err)

	var data State
	require.NoError(t, state.DecodeData(&data))
	assert.True(t, data.Skipped)

	state, err = a.Close(context.Background(), state, lead())
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusClosed, state.SyncStatus)
	notifier.AssertNotCalled(t, "SendLeadReceived", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "SendLeadClosed", mock.Anything, mock.Anything)
}

func TestAdapterCloseSendsToOriginalRecipient(t *testing.T) {
	notifier := new(MockNotifier)
	locations := new(MockLocations)
	locations.On("GetLocation", mock.Anything, "r-1", "loc-1").Return(nil, errors.New("directory down"))
	notifier.On("SendLeadClosed", "old@example.com", mock.MatchedBy(func(d LeadEmailData) bool {
		return d.Reason == "sold" && d.LocationName == "Downtown"
	})).Return(nil)

	a := NewAdapter(notifier, locations)
	opened, _ := entity.IntegrationState{SyncStatus: entity.SyncStatusSynced}.WithData(State{To: "old@example.com", Location: "Downtown"})
	l := lead()
	l.SetCloseReason("sold")

	state, err := a.Close(context.Background(), opened, l)
	require.NoError(t, err)
	assert.Equal(t, entity.SyncStatusClosed, state.SyncStatus)
	notifier.AssertExpectations(t)
}

func TestAdapterCreateLocationFailure(t *testing.T) {
	locations := new(MockLocations)
	locations.On("GetLocation", mock.Anything, "r-1", "loc-1").Return(nil, errors.New("directory down"))

	a := NewAdapter(new(MockNotifier), locations)
	state, err := a.Create(context.Background(), a.DefaultState(), lead())
	assert.Error(t, err)
	assert.Equal(t, entity.SyncStatusNotSynced, state.SyncStatus)
}

func TestAdapterCloseLocationFailure(t *testing.T) {
	notifier := new(MockNotifier)
	locations := new(MockLocations)
	locations.On("GetLocation", mock.Anything, "r-1", "loc-1").Return(nil, errors.New("directory down"))

	a := NewAdapter(notifier, locations)
	opened, _ := entity.IntegrationState{SyncStatus: entity.SyncStatusSynced}.WithData(State{To: "old@example.com"})

	state, err := a.Close(context.Background(), opened, lead())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory down")
	assert.Equal(t, entity.SyncStatusSynced, state.SyncStatus)
	notifier.AssertNotCalled(t, "SendLeadClosed", mock.Anything, mock.Anything)
}
