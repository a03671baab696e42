package integration

import (
	"github.com/xavierca1/leadsync/internal/entity"
)

// Adapters are the concrete connectors, one per external system.
type Adapters struct {
	WhatsApp  entity.IntegrationAdapter
	Kommo     entity.IntegrationAdapter
	Directory entity.IntegrationAdapter
	Summary   entity.IntegrationAdapter
	Email     entity.IntegrationAdapter
}

// NewRegistry builds the static run order for each lead type. Nil adapters
// are left out.
func NewRegistry(a Adapters) entity.AdapterRegistry {
	return entity.AdapterRegistry{
		entity.LeadTypeMessage:  compact(a.WhatsApp, a.Kommo, a.Directory, a.Summary, a.Email),
		entity.LeadTypeCallback: compact(a.Kommo, a.Directory, a.Email),
	}
}

func compact(adapters ...entity.IntegrationAdapter) []entity.IntegrationAdapter {
	out := make([]entity.IntegrationAdapter, 0, len(adapters))
	for _, a := range adapters {
		if a != nil {
			out = append(out, a)
		}
	}
	return out
}
