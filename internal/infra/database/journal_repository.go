package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
)

// JournalRepository persists invocations and their step checkpoints.
type JournalRepository struct {
	DB sqlDB
}

func NewJournalRepository(db *sql.DB) *JournalRepository {
	return &JournalRepository{DB: sqlDB{DB: db, dialect: postgresDialect}}
}

const invocationColumns = `id, lead_id, operation, request, status, result, error, created_at, updated_at`

func (r *JournalRepository) BeginInvocation(ctx context.Context, inv entity.Invocation) (entity.Invocation, error) {
	query := `
		INSERT INTO invocations (` + invocationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, query,
		inv.ID,
		inv.LeadID,
		string(inv.Operation),
		nullJSON(inv.Request),
		string(inv.Status),
		nullJSON(inv.Result),
		inv.Error,
		inv.CreatedAt.UTC(),
		inv.UpdatedAt.UTC(),
	)
	if err != nil {
		return entity.Invocation{}, err
	}
	return r.getInvocation(ctx, inv.ID)
}

func (r *JournalRepository) getInvocation(ctx context.Context, id string) (entity.Invocation, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+invocationColumns+` FROM invocations WHERE id = $1`, id)
	inv, err := scanInvocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Invocation{}, entity.ErrInvocationNotFound
	}
	return inv, err
}

func (r *JournalRepository) CompleteInvocation(ctx context.Context, id string, result json.RawMessage, errMsg string) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE invocations SET status = $1, result = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(entity.InvocationDone), nullJSON(result), errMsg, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return entity.ErrInvocationNotFound
	}
	return nil
}

func (r *JournalRepository) PendingInvocations(ctx context.Context, olderThan time.Time) ([]entity.Invocation, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+invocationColumns+` FROM invocations WHERE status = $1 AND updated_at < $2 ORDER BY created_at`,
		string(entity.InvocationPending), olderThan.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []entity.Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *JournalRepository) GetStep(ctx context.Context, invocationID, stepID string) (entity.StepRecord, bool, error) {
	var (
		result sql.NullString
		rec    = entity.StepRecord{InvocationID: invocationID, StepID: stepID}
	)
	err := r.DB.QueryRowContext(ctx,
		`SELECT result, failure, recorded_at FROM invocation_steps WHERE invocation_id = $1 AND step_id = $2`,
		invocationID, stepID,
	).Scan(&result, &rec.Failure, &rec.RecordedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.StepRecord{}, false, nil
	}
	if err != nil {
		return entity.StepRecord{}, false, err
	}
	if result.Valid {
		rec.Result = json.RawMessage(result.String)
	}
	return rec, true, nil
}

// RecordStep keeps the first record written for a step.
func (r *JournalRepository) RecordStep(ctx context.Context, rec entity.StepRecord) error {
	query := `
		INSERT INTO invocation_steps (invocation_id, step_id, result, failure, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (invocation_id, step_id) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, query, rec.InvocationID, rec.StepID, nullJSON(rec.Result), rec.Failure, rec.RecordedAt.UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvocation(row rowScanner) (entity.Invocation, error) {
	var (
		inv       entity.Invocation
		operation string
		status    string
		request   sql.NullString
		result    sql.NullString
	)
	if err := row.Scan(&inv.ID, &inv.LeadID, &operation, &request, &status, &result, &inv.Error, &inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return entity.Invocation{}, err
	}
	inv.Operation = entity.Operation(operation)
	inv.Status = entity.InvocationStatus(status)
	if request.Valid {
		inv.Request = json.RawMessage(request.String)
	}
	if result.Valid {
		inv.Result = json.RawMessage(result.String)
	}
	return inv, nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
