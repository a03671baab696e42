package entity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// LeadFilter selects leads for bulk operations. In JSON it is either the
// string "*" or an object.
type LeadFilter struct {
	All                 bool       `json:"-"`
	Status              []Status   `json:"Status,omitempty"`
	LeadType            []LeadType `json:"LeadType,omitempty"`
	UniversalRetailerID string     `json:"UniversalRetailerId,omitempty"`
	SubmittedAfter      *time.Time `json:"SubmittedAfter,omitempty"`
	SubmittedBefore     *time.Time `json:"SubmittedBefore,omitempty"`
}

func (f *LeadFilter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw != "*" {
			return fmt.Errorf("unsupported filter expression %q", raw)
		}
		*f = LeadFilter{All: true}
		return nil
	}
	type plain LeadFilter
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*f = LeadFilter(p)
	return nil
}

func (f LeadFilter) MarshalJSON() ([]byte, error) {
	if f.All {
		return []byte(`"*"`), nil
	}
	type plain LeadFilter
	return json.Marshal(plain(f))
}

// Match is the in-memory equivalent of the SQL WHERE clause built for f.
func (f LeadFilter) Match(l *Lead) bool {
	if l == nil {
		return false
	}
	if f.All {
		return true
	}
	if len(f.Status) > 0 && !slices.Contains(f.Status, l.Status) {
		return false
	}
	if len(f.LeadType) > 0 && !slices.Contains(f.LeadType, l.LeadType) {
		return false
	}
	if f.UniversalRetailerID != "" && f.UniversalRetailerID != l.UniversalRetailerID {
		return false
	}
	if f.SubmittedAfter != nil && (l.DateSubmitted == nil || !l.DateSubmitted.After(*f.SubmittedAfter)) {
		return false
	}
	if f.SubmittedBefore != nil && (l.DateSubmitted == nil || !l.DateSubmitted.Before(*f.SubmittedBefore)) {
		return false
	}
	return true
}
