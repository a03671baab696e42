package database

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
)

// MemoryStore implements the lead, state and journal repositories in
// process. Everything is copied on the way in and out.
type MemoryStore struct {
	mu          sync.RWMutex
	records     map[string]json.RawMessage
	states      map[string]json.RawMessage
	invocations map[string]entity.Invocation
	steps       map[string]entity.StepRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:     map[string]json.RawMessage{},
		states:      map[string]json.RawMessage{},
		invocations: map[string]entity.Invocation{},
		steps:       map[string]entity.StepRecord{},
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, entity.ErrLeadNotFound
	}
	return cloneRaw(record), nil
}

func (m *MemoryStore) Put(_ context.Context, lead *entity.Lead, record json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[lead.LeadID] = cloneRaw(record)
	return nil
}

// PutRaw stores a record without any checks. It exists for seeding and tests.
func (m *MemoryStore) PutRaw(id string, record json.RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id] = cloneRaw(record)
}

func (m *MemoryStore) Scan(_ context.Context, filter entity.LeadFilter) ([]*entity.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*entity.Lead
	for _, id := range ids {
		var lead entity.Lead
		if err := json.Unmarshal(m.records[id], &lead); err != nil {
			lead = entity.Lead{LeadID: id}
		}
		if filter.Match(&lead) {
			out = append(out, &lead)
		}
	}
	return out, nil
}

func (m *MemoryStore) LoadState(_ context.Context, id string) (*entity.Lead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.states[id]
	if !ok {
		return nil, entity.ErrLeadNotFound
	}
	var lead entity.Lead
	if err := json.Unmarshal(state, &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (m *MemoryStore) SaveState(_ context.Context, lead *entity.Lead) error {
	state, err := json.Marshal(lead)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[lead.LeadID] = state
	return nil
}

func (m *MemoryStore) ClearState(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
	return nil
}

func (m *MemoryStore) BeginInvocation(_ context.Context, inv entity.Invocation) (entity.Invocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.invocations[inv.ID]; ok {
		return existing, nil
	}
	inv.Request = cloneRaw(inv.Request)
	m.invocations[inv.ID] = inv
	return inv, nil
}

func (m *MemoryStore) CompleteInvocation(_ context.Context, id string, result json.RawMessage, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invocations[id]
	if !ok {
		return entity.ErrInvocationNotFound
	}
	inv.Status = entity.InvocationDone
	inv.Result = cloneRaw(result)
	inv.Error = errMsg
	inv.UpdatedAt = time.Now().UTC()
	m.invocations[id] = inv
	return nil
}

func (m *MemoryStore) PendingInvocations(_ context.Context, olderThan time.Time) ([]entity.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []entity.Invocation
	for _, inv := range m.invocations {
		if inv.Status == entity.InvocationPending && inv.UpdatedAt.Before(olderThan) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) GetStep(_ context.Context, invocationID, stepID string) (entity.StepRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.steps[stepKey(invocationID, stepID)]
	if !ok {
		return entity.StepRecord{}, false, nil
	}
	rec.Result = cloneRaw(rec.Result)
	return rec, true, nil
}

func (m *MemoryStore) RecordStep(_ context.Context, rec entity.StepRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stepKey(rec.InvocationID, rec.StepID)
	if _, exists := m.steps[key]; exists {
		return nil
	}
	rec.Result = cloneRaw(rec.Result)
	m.steps[key] = rec
	return nil
}

func stepKey(invocationID, stepID string) string {
	return invocationID + "\x00" + stepID
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
