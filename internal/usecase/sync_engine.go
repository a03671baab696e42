package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xavierca1/leadsync/internal/entity"
)

type engineMode string

const (
	modeSync  engineMode = "sync"
	modeClose engineMode = "close"
)

// runIntegrations walks the lead's adapters in registry order. An adapter
// failure is captured on its own IntegrationState and never stops the walk;
// only journal or store failures abort it.
func (o *LeadOrchestrator) runIntegrations(ctx context.Context, inv *invocation, lead *entity.Lead, mode engineMode) error {
	if lead.Integrations == nil {
		lead.Integrations = map[string]entity.IntegrationState{}
	}

	for _, adapter := range o.registry.For(lead.LeadType) {
		name := adapter.Name()
		if !adapter.ShouldRun(lead) {
			continue
		}
		state, ok := lead.Integrations[name]
		if !ok {
			state = adapter.DefaultState()
		}
		if state.SyncStatus == entity.SyncStatusClosed {
			continue
		}

		var method string
		var call func(context.Context, entity.IntegrationState, *entity.Lead) (entity.IntegrationState, error)
		switch {
		case mode == modeClose && state.SyncStatus == entity.SyncStatusNotSynced:
			continue
		case mode == modeClose:
			method, call = "close", adapter.Close
		case state.NeverSucceeded():
			method, call = "create", adapter.Create
		default:
			method, call = "sync", adapter.Sync
		}

		// Keyed without the method: on resume the state may have moved on,
		// and the recorded result must still be found.
		stepID := fmt.Sprintf("%s:%s", mode, name)
		input := state
		snapshot := lead.Clone()
		next, err := runStepOrElse(ctx, inv, stepID, func(ctx context.Context) (entity.IntegrationState, error) {
			result, err := invokeAdapter(ctx, call, input, snapshot)
			if err != nil {
				return result, err
			}
			return settle(result, input, method, inv.now()), nil
		}, func(err error) entity.IntegrationState {
			o.recorder.IntegrationError(name)
			inv.log.WarnContext(ctx, "integration failed", "lead_id", lead.LeadID, "adapter", name, "method", method, "error", err)
			failed := input
			failed.SyncStatus = entity.SyncStatusError
			failed.ErrorInfo = entity.NewErrorInfo(err, inv.now())
			return failed
		})
		if err != nil {
			return err
		}

		lead.Integrations[name] = next
		if err := o.checkpoint(ctx, inv, lead, stepID); err != nil {
			return err
		}
	}
	return nil
}

// settle normalizes what an adapter returned. Non-error results drop any
// previous error info; a successful create or sync stamps LastSynced.
func settle(result, input entity.IntegrationState, method string, now time.Time) entity.IntegrationState {
	if result.SyncStatus == "" || result.SyncStatus == entity.SyncStatusSyncing {
		if method == "close" {
			result.SyncStatus = entity.SyncStatusClosed
		} else {
			result.SyncStatus = entity.SyncStatusSynced
		}
	}
	if result.SyncStatus == entity.SyncStatusError {
		if result.ErrorInfo == nil {
			result.ErrorInfo = &entity.ErrorInfo{Message: "integration reported an error", ErrorDate: now.UTC()}
		}
		if result.LastSynced == nil {
			result.LastSynced = input.LastSynced
		}
		if len(result.Data) == 0 {
			result.Data = input.Data
		}
		return result
	}
	result.ErrorInfo = nil
	if method != "close" && result.SyncStatus == entity.SyncStatusSynced {
		stamped := now.UTC()
		result.LastSynced = &stamped
	} else if result.LastSynced == nil {
		result.LastSynced = input.LastSynced
	}
	return result
}

// invokeAdapter turns a panicking adapter into an ordinary error.
func invokeAdapter(ctx context.Context, call func(context.Context, entity.IntegrationState, *entity.Lead) (entity.IntegrationState, error), state entity.IntegrationState, lead *entity.Lead) (result entity.IntegrationState, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Sprint("adapter panic: ", r))
		}
	}()
	return call(ctx, state, lead)
}
