package usecase

import (
	"context"
	"errors"
)

// ErrNotFound is returned by collaborators when the looked-up entity does not exist.
var ErrNotFound = errors.New("not found")

// Locker grants exclusive access to a lead. Acquire blocks until the key is
// free or ctx is done. Work done under the lock must use the returned
// context: it is cancelled if exclusivity is lost before release is called.
type Locker interface {
	Acquire(ctx context.Context, key string) (held context.Context, release func(), err error)
}

// Dispatcher triggers follow-up operations without waiting for them.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd LeadCommand) error
}

// Recorder receives domain metrics.
type Recorder interface {
	OperationCompleted(operation, outcome string)
	IntegrationError(adapter string)
	ValidationRejected(check string)
	BulkTargets(operation string, count int)
}

type Account struct {
	UniversalRetailerID string `json:"universalRetailerId"`
	Name                string `json:"name"`
	Churned             bool   `json:"churned"`
	OptedOut            bool   `json:"optedOut"`
}

type Location struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
}

// AccountService resolves the business account owning a lead.
type AccountService interface {
	GetAccount(ctx context.Context, universalRetailerID string) (*Account, error)
}

// LocationService resolves the destination location of a lead.
type LocationService interface {
	GetLocation(ctx context.Context, universalRetailerID, locationID string) (*Location, error)
}

type NumberInfo struct {
	PhoneNumber string `json:"phoneNumber"`
	Valid       bool   `json:"valid"`
	LineType    string `json:"lineType"`
	OptedOut    bool   `json:"optedOut"`
	Blocked     bool   `json:"blocked"`
}

// NumberIntelligence looks up carrier data and opt-out status for a number.
type NumberIntelligence interface {
	Lookup(ctx context.Context, phoneNumber string) (*NumberInfo, error)
}

type noopRecorder struct{}

func (noopRecorder) OperationCompleted(string, string) {}
func (noopRecorder) IntegrationError(string)           {}
func (noopRecorder) ValidationRejected(string)         {}
func (noopRecorder) BulkTargets(string, int)           {}
