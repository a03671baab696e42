package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/xavierca1/leadsync/internal/entity"
)

// RetryPolicy bounds how often a single step is attempted before its
// failure becomes the step's recorded outcome.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     5 * time.Second,
	}
}

// Permanent marks err as not worth retrying within the current step.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// invocation scopes checkpointed steps to one execution of a lead operation.
// Steps are identified by a stable id; a step recorded in the journal is
// never executed again for the same invocation.
type invocation struct {
	id      string
	leadID  string
	journal entity.JournalRepository
	policy  RetryPolicy
	log     *slog.Logger
	now     func() time.Time
}

type stepFailure struct {
	step    string
	message string
}

func (e *stepFailure) Error() string {
	return fmt.Sprintf("step %s failed: %s", e.step, e.message)
}

// runStep executes fn at most once per invocation (modulo crashes between the
// effect and its checkpoint) and returns the recorded result on replay.
func runStep[T any](ctx context.Context, inv *invocation, stepID string, fn func(context.Context) (T, error)) (T, error) {
	return runStepOrElse(ctx, inv, stepID, fn, nil)
}

// runStepOrElse is runStep where a failure that survives all retries is
// turned into a regular result by fallback, so it is replayed as data.
func runStepOrElse[T any](ctx context.Context, inv *invocation, stepID string, fn func(context.Context) (T, error), fallback func(error) T) (T, error) {
	var zero T

	rec, found, err := inv.journal.GetStep(ctx, inv.id, stepID)
	if err != nil {
		return zero, &TechnicalError{Code: "JOURNAL_ERROR", Message: "failed to read step " + stepID, Err: err}
	}
	if found {
		if rec.Failure != "" {
			return zero, &stepFailure{step: stepID, message: rec.Failure}
		}
		var out T
		if len(rec.Result) > 0 {
			if err := json.Unmarshal(rec.Result, &out); err != nil {
				return zero, &TechnicalError{Code: "JOURNAL_ERROR", Message: "failed to decode step " + stepID, Err: err}
			}
		}
		inv.log.DebugContext(ctx, "step replayed", "invocation_id", inv.id, "lead_id", inv.leadID, "step", stepID)
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return zero, err
	}
	result, runErr := backoff.Retry(ctx, func() (T, error) {
		return fn(ctx)
	}, inv.retryOptions()...)

	if runErr != nil && ctx.Err() != nil {
		// Cancelled calls are not checkpointed; the step runs again on resume.
		return zero, runErr
	}

	rec = entity.StepRecord{
		InvocationID: inv.id,
		StepID:       stepID,
		RecordedAt:   inv.now(),
	}
	if runErr != nil {
		if fallback == nil {
			rec.Failure = runErr.Error()
			if err := inv.journal.RecordStep(ctx, rec); err != nil {
				inv.log.ErrorContext(ctx, "failed to checkpoint step failure", "invocation_id", inv.id, "step", stepID, "error", err)
			}
			return zero, runErr
		}
		result = fallback(runErr)
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return zero, &TechnicalError{Code: "JOURNAL_ERROR", Message: "failed to encode step " + stepID, Err: err}
	}
	rec.Result = payload
	if err := inv.journal.RecordStep(ctx, rec); err != nil {
		return zero, &TechnicalError{Code: "JOURNAL_ERROR", Message: "failed to checkpoint step " + stepID, Err: err}
	}
	return result, nil
}

func (inv *invocation) retryOptions() []backoff.RetryOption {
	p := inv.policy
	if p.MaxAttempts == 0 {
		p = DefaultRetryPolicy()
	}
	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxAttempts),
	}
}

// recorded reports whether stepID completed successfully in this invocation.
func (inv *invocation) recorded(ctx context.Context, stepID string) (bool, error) {
	rec, found, err := inv.journal.GetStep(ctx, inv.id, stepID)
	if err != nil {
		return false, &TechnicalError{Code: "JOURNAL_ERROR", Message: "failed to read step " + stepID, Err: err}
	}
	return found && rec.Failure == "", nil
}

// clock returns a checkpointed timestamp so replays observe the same time.
func (inv *invocation) clock(ctx context.Context, stepID string) (time.Time, error) {
	return runStep(ctx, inv, "clock:"+stepID, func(context.Context) (time.Time, error) {
		return inv.now().UTC(), nil
	})
}
