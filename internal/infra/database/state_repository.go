package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
)

// StateRepository keeps the orchestrator's working copy of each lead.
type StateRepository struct {
	DB sqlDB
}

func NewStateRepository(db *sql.DB) *StateRepository {
	return &StateRepository{DB: sqlDB{DB: db, dialect: postgresDialect}}
}

func (r *StateRepository) LoadState(ctx context.Context, id string) (*entity.Lead, error) {
	var state string
	err := r.DB.QueryRowContext(ctx, `SELECT state FROM lead_states WHERE lead_id = $1`, id).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	var lead entity.Lead
	if err := json.Unmarshal([]byte(state), &lead); err != nil {
		return nil, err
	}
	return &lead, nil
}

func (r *StateRepository) SaveState(ctx context.Context, lead *entity.Lead) error {
	state, err := json.Marshal(lead)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO lead_states (lead_id, state, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (lead_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`
	_, err = r.DB.ExecContext(ctx, query, lead.LeadID, string(state), time.Now().UTC())
	return err
}

func (r *StateRepository) ClearState(ctx context.Context, id string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM lead_states WHERE lead_id = $1`, id)
	return err
}
