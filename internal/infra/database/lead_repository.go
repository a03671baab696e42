package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
)

// LeadRepository is the SQL system of record. Placeholders are $n so the
// same statements run on Postgres and SQLite.
type LeadRepository struct {
	DB sqlDB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: sqlDB{DB: db, dialect: postgresDialect}}
}

func (r *LeadRepository) Get(ctx context.Context, id string) (json.RawMessage, error) {
	var record string
	err := r.DB.QueryRowContext(ctx, `SELECT record FROM leads WHERE lead_id = $1`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(record), nil
}

func (r *LeadRepository) Put(ctx context.Context, lead *entity.Lead, record json.RawMessage) error {
	query := `
		INSERT INTO leads (lead_id, lead_type, status, universal_retailer_id, date_submitted, record, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lead_id)
		DO UPDATE SET
			lead_type = EXCLUDED.lead_type,
			status = EXCLUDED.status,
			universal_retailer_id = EXCLUDED.universal_retailer_id,
			date_submitted = EXCLUDED.date_submitted,
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.DB.ExecContext(ctx, query,
		lead.LeadID,
		string(lead.LeadType),
		string(lead.Status),
		lead.UniversalRetailerID,
		nullTime(lead.DateSubmitted),
		string(record),
		time.Now().UTC(),
	)
	return err
}

// Scan returns the leads matching filter ordered by id. Rows whose record
// no longer decodes are still returned with their indexed columns, so bulk
// callers can report them.
func (r *LeadRepository) Scan(ctx context.Context, filter entity.LeadFilter) ([]*entity.Lead, error) {
	where, args := filterClause(filter)
	query := `SELECT lead_id, lead_type, status, record FROM leads` + where + ` ORDER BY lead_id`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var leads []*entity.Lead
	for rows.Next() {
		var id, leadType, status, record string
		if err := rows.Scan(&id, &leadType, &status, &record); err != nil {
			return nil, err
		}
		var lead entity.Lead
		if err := json.Unmarshal([]byte(record), &lead); err != nil || lead.LeadID != id {
			lead = entity.Lead{LeadID: id, LeadType: entity.LeadType(leadType), Status: entity.Status(status)}
		}
		leads = append(leads, &lead)
	}
	return leads, rows.Err()
}

func filterClause(f entity.LeadFilter) (string, []any) {
	if f.All {
		return "", nil
	}
	var conds []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(f.Status) > 0 {
		ph := make([]string, 0, len(f.Status))
		for _, s := range f.Status {
			ph = append(ph, next(string(s)))
		}
		conds = append(conds, "status IN ("+strings.Join(ph, ", ")+")")
	}
	if len(f.LeadType) > 0 {
		ph := make([]string, 0, len(f.LeadType))
		for _, t := range f.LeadType {
			ph = append(ph, next(string(t)))
		}
		conds = append(conds, "lead_type IN ("+strings.Join(ph, ", ")+")")
	}
	if f.UniversalRetailerID != "" {
		conds = append(conds, "universal_retailer_id = "+next(f.UniversalRetailerID))
	}
	if f.SubmittedAfter != nil {
		conds = append(conds, "date_submitted > "+next(f.SubmittedAfter.UTC()))
	}
	if f.SubmittedBefore != nil {
		conds = append(conds, "date_submitted < "+next(f.SubmittedBefore.UTC()))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
