package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xavierca1/leadsync/internal/entity"
)

var (
	createAllowed = []entity.Status{entity.StatusNonexistant}
	syncAllowed   = []entity.Status{entity.StatusActive, entity.StatusSyncing}
	closeAllowed  = []entity.Status{entity.StatusActive, entity.StatusSyncing, entity.StatusClosed}
)

// Dependencies wires a LeadOrchestrator. Leads, States, Journal and Locker
// are required; everything else has a usable default.
type Dependencies struct {
	Leads      entity.LeadRepository
	States     entity.StateRepository
	Journal    entity.JournalRepository
	Locker     Locker
	Pipeline   *ValidationPipeline
	Registry   entity.AdapterRegistry
	Dispatcher Dispatcher
	Recorder   Recorder
	Retry      RetryPolicy
	BulkLimit  int
	Logger     *slog.Logger
	Now        func() time.Time
}

// LeadOrchestrator owns the lifecycle of every lead. Mutating operations on
// one lead are serialized through the Locker and journaled step by step.
type LeadOrchestrator struct {
	leads      entity.LeadRepository
	states     entity.StateRepository
	journal    entity.JournalRepository
	locker     Locker
	pipeline   *ValidationPipeline
	registry   entity.AdapterRegistry
	dispatcher Dispatcher
	recorder   Recorder
	retry      RetryPolicy
	bulkLimit  int
	log        *slog.Logger
	now        func() time.Time
}

func NewLeadOrchestrator(deps Dependencies) *LeadOrchestrator {
	o := &LeadOrchestrator{
		leads:      deps.Leads,
		states:     deps.States,
		journal:    deps.Journal,
		locker:     deps.Locker,
		pipeline:   deps.Pipeline,
		registry:   deps.Registry,
		dispatcher: deps.Dispatcher,
		recorder:   deps.Recorder,
		retry:      deps.Retry,
		bulkLimit:  deps.BulkLimit,
		log:        deps.Logger,
		now:        deps.Now,
	}
	if o.recorder == nil {
		o.recorder = noopRecorder{}
	}
	if o.retry.MaxAttempts == 0 {
		o.retry = DefaultRetryPolicy()
	}
	if o.bulkLimit <= 0 {
		o.bulkLimit = 8
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.dispatcher == nil {
		o.dispatcher = &InlineDispatcher{Orchestrator: o}
	}
	return o
}

// SetDispatcher replaces the dispatcher used for follow-up operations.
func (o *LeadOrchestrator) SetDispatcher(d Dispatcher) {
	if d != nil {
		o.dispatcher = d
	}
}

// Status returns the latest checkpointed snapshot without taking the lock.
func (o *LeadOrchestrator) Status(ctx context.Context, rawID string) (*entity.Lead, error) {
	id, err := entity.ParseLeadID(rawID)
	if err != nil {
		return nil, &BadRequestError{Message: "malformed lead id: " + rawID}
	}
	lead, err := o.states.LoadState(ctx, id)
	if err == nil {
		return lead, nil
	}
	if !errors.Is(err, entity.ErrLeadNotFound) {
		return nil, &TechnicalError{Code: "STATE_ERROR", Message: "failed to load lead state", Err: err}
	}
	record, err := o.leads.Get(ctx, id)
	if errors.Is(err, entity.ErrLeadNotFound) {
		return entity.Nonexistant(id), nil
	}
	if err != nil {
		return nil, &TechnicalError{Code: "STORE_ERROR", Message: "failed to read lead", Err: err}
	}
	lead, err = entity.DecodeRecord(record)
	if err != nil {
		return nil, &CorruptStateError{LeadID: id, Err: err}
	}
	return lead, nil
}

// Create validates and registers a new lead.
func (o *LeadOrchestrator) Create(ctx context.Context, rawID string, input CreateLeadInput, opts CallOptions) (*entity.Lead, error) {
	if input.LeadType == "" {
		input.LeadType = entity.LeadTypeMessage
	}
	return o.execute(ctx, entity.OperationCreate, rawID, input, opts, createAllowed,
		func(ctx context.Context, inv *invocation, lead *entity.Lead) (*entity.Lead, error) {
			return o.create(ctx, inv, lead, input)
		})
}

// Sync drives every applicable integration one step forward.
func (o *LeadOrchestrator) Sync(ctx context.Context, rawID string, opts CallOptions) (*entity.Lead, error) {
	return o.execute(ctx, entity.OperationSync, rawID, struct{}{}, opts, syncAllowed, o.sync)
}

// Close closes the lead and every integration that was engaged.
func (o *LeadOrchestrator) Close(ctx context.Context, rawID string, input CloseLeadInput, opts CallOptions) (*entity.Lead, error) {
	return o.execute(ctx, entity.OperationClose, rawID, input, opts, closeAllowed,
		func(ctx context.Context, inv *invocation, lead *entity.Lead) (*entity.Lead, error) {
			return o.close(ctx, inv, lead, input)
		})
}

type operationBody func(ctx context.Context, inv *invocation, lead *entity.Lead) (*entity.Lead, error)

func (o *LeadOrchestrator) execute(ctx context.Context, op entity.Operation, rawID string, request any, opts CallOptions, allowed []entity.Status, body operationBody) (*entity.Lead, error) {
	id, err := entity.ParseLeadID(rawID)
	if err != nil {
		return nil, &BadRequestError{Message: "malformed lead id: " + rawID}
	}

	parent := ctx
	ctx, release, err := o.locker.Acquire(parent, id)
	if err != nil {
		return nil, &TechnicalError{Code: "LOCK_UNAVAILABLE", Message: "could not acquire lead " + id, Err: err}
	}
	defer release()

	payload, err := json.Marshal(request)
	if err != nil {
		return nil, &BadRequestError{Message: "unencodable request: " + err.Error()}
	}
	invocationID := opts.InvocationID
	if invocationID == "" {
		invocationID = uuid.New().String()
	}
	now := o.now()
	stored, err := o.journal.BeginInvocation(ctx, entity.Invocation{
		ID:        invocationID,
		LeadID:    id,
		Operation: op,
		Request:   payload,
		Status:    entity.InvocationPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return nil, &TechnicalError{Code: "JOURNAL_ERROR", Message: "failed to begin invocation", Err: err}
	}
	if stored.LeadID != id || stored.Operation != op {
		return nil, &BadRequestError{Message: "invocation " + invocationID + " belongs to another operation"}
	}
	if stored.Status == entity.InvocationDone {
		o.log.InfoContext(ctx, "invocation already completed", "invocation_id", invocationID, "lead_id", id, "operation", op)
		return decodeCompleted(stored)
	}

	inv := &invocation{
		id:      invocationID,
		leadID:  id,
		journal: o.journal,
		policy:  o.retry,
		log:     o.log,
		now:     o.now,
	}
	log := o.log.With("lead_id", id, "invocation_id", invocationID, "operation", op)
	log.InfoContext(ctx, "operation started")

	lead, err := o.setup(ctx, inv, id, op, allowed)
	var result *entity.Lead
	if err == nil {
		result, err = body(ctx, inv, lead)
	}

	if err != nil && ctx.Err() != nil {
		// Left pending on purpose: the recovery sweep resumes it.
		if parent.Err() == nil {
			cause := context.Cause(ctx)
			log.ErrorContext(parent, "lead lock lost mid-operation", "error", cause)
			return nil, &TechnicalError{Code: "LOCK_UNAVAILABLE", Message: "lost lock on lead " + id, Err: cause}
		}
		log.WarnContext(parent, "operation interrupted", "error", err)
		return nil, err
	}
	o.complete(ctx, inv, result, err)
	o.recorder.OperationCompleted(string(op), outcome(err))
	if err != nil {
		log.WarnContext(ctx, "operation failed", "error", err, "status", HTTPStatus(err))
		return nil, err
	}
	log.InfoContext(ctx, "operation completed", "status", result.Status)
	return result, nil
}

type setupVerdict struct {
	Observed entity.Status `json:"observed"`
	Corrupt  string        `json:"corrupt,omitempty"`
}

// ownCheckpoints maps the statuses an operation moves a lead into that its
// own setup would reject, to the checkpoint that writes them.
var ownCheckpoints = map[entity.Operation]map[entity.Status]string{
	entity.OperationCreate: {
		entity.StatusValidating: "persist:validating",
		entity.StatusActive:     "persist:active",
	},
}

// setup is the prelude shared by every mutating operation. The verdict is
// checkpointed, but a resumed invocation still re-checks the current status:
// it may only continue from an allowed status or one it wrote itself.
func (o *LeadOrchestrator) setup(ctx context.Context, inv *invocation, id string, op entity.Operation, allowed []entity.Status) (*entity.Lead, error) {
	verdict, err := runStep(ctx, inv, "setup", func(ctx context.Context) (setupVerdict, error) {
		lead, err := o.receive(ctx, id)
		var corrupt *CorruptStateError
		if errors.As(err, &corrupt) {
			return setupVerdict{Observed: entity.StatusError, Corrupt: corrupt.Err.Error()}, nil
		}
		if err != nil {
			return setupVerdict{}, err
		}
		return setupVerdict{Observed: lead.Status}, nil
	})
	if err != nil {
		return nil, err
	}
	if verdict.Corrupt != "" {
		return nil, &CorruptStateError{LeadID: id, Err: errors.New(verdict.Corrupt)}
	}
	if !slices.Contains(allowed, verdict.Observed) {
		return nil, illegalState(op, id, verdict.Observed, allowed)
	}

	lead, err := o.receive(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, lead.Status) {
		own := false
		if stepID, ok := ownCheckpoints[op][lead.Status]; ok {
			if own, err = inv.recorded(ctx, stepID); err != nil {
				return nil, err
			}
		}
		if !own {
			o.log.WarnContext(ctx, "lead moved on since invocation started", "lead_id", id, "invocation_id", inv.id, "observed", verdict.Observed, "current", lead.Status)
			return nil, illegalState(op, id, lead.Status, allowed)
		}
	}
	return lead, nil
}

func illegalState(op entity.Operation, id string, current entity.Status, allowed []entity.Status) *IllegalStateError {
	return &IllegalStateError{
		Operation: string(op),
		Current:   string(current),
		Message:   fmt.Sprintf("cannot %s lead %s: status is %s, expected one of %v", strings.ToLower(string(op)), id, current, allowed),
	}
}

// receive returns the working copy of a lead. When there is none, or it is
// in ERROR, the working copy is discarded and replaced by the record from
// the durable store. A record that fails schema validation is fatal.
func (o *LeadOrchestrator) receive(ctx context.Context, id string) (*entity.Lead, error) {
	working, err := o.states.LoadState(ctx, id)
	switch {
	case err == nil && working.Status != entity.StatusError:
		return working, nil
	case err != nil && !errors.Is(err, entity.ErrLeadNotFound):
		return nil, &TechnicalError{Code: "STATE_ERROR", Message: "failed to load lead state", Err: err}
	}
	discarding := err == nil

	record, err := o.leads.Get(ctx, id)
	if errors.Is(err, entity.ErrLeadNotFound) {
		if discarding {
			if err := o.states.ClearState(ctx, id); err != nil {
				return nil, &TechnicalError{Code: "STATE_ERROR", Message: "failed to discard lead state", Err: err}
			}
			o.log.InfoContext(ctx, "discarded errored lead state", "lead_id", id)
		}
		return entity.Nonexistant(id), nil
	}
	if err != nil {
		return nil, &TechnicalError{Code: "STORE_ERROR", Message: "failed to read lead", Err: err}
	}

	lead, err := entity.DecodeRecord(record)
	if err == nil && lead.LeadID != id {
		err = fmt.Errorf("record id %s does not match", lead.LeadID)
	}
	if err != nil {
		o.log.ErrorContext(ctx, "stored lead failed validation", "lead_id", id, "error", err)
		failed := &entity.Lead{LeadID: id, Status: entity.StatusError, Error: entity.NewErrorInfo(err, o.now())}
		if saveErr := o.states.SaveState(ctx, failed); saveErr != nil {
			o.log.ErrorContext(ctx, "failed to flag corrupt lead", "lead_id", id, "error", saveErr)
		}
		return nil, &CorruptStateError{LeadID: id, Err: err}
	}
	if err := o.states.SaveState(ctx, lead); err != nil {
		return nil, &TechnicalError{Code: "STATE_ERROR", Message: "failed to replace lead state", Err: err}
	}
	if discarding {
		o.log.InfoContext(ctx, "reloaded lead after error", "lead_id", id, "status", lead.Status)
	}
	return lead, nil
}

// checkpoint persists the working copy and, for leads that exist in the
// system of record, SENDs it as well.
func (o *LeadOrchestrator) checkpoint(ctx context.Context, inv *invocation, lead *entity.Lead, stepID string) error {
	snapshot := lead.Clone()
	_, err := runStep(ctx, inv, "persist:"+stepID, func(ctx context.Context) (struct{}, error) {
		if durable(snapshot.Status) {
			record, err := entity.EncodeRecord(snapshot)
			if err != nil {
				return struct{}{}, Permanent(fmt.Errorf("refusing to send invalid lead: %w", err))
			}
			if err := o.leads.Put(ctx, snapshot, record); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, o.states.SaveState(ctx, snapshot)
	})
	if err != nil {
		return &TechnicalError{Code: "STORE_ERROR", Message: "failed to checkpoint lead at " + stepID, Err: err}
	}
	return nil
}

func durable(s entity.Status) bool {
	return s == entity.StatusActive || s == entity.StatusSyncing || s == entity.StatusClosed
}

func (o *LeadOrchestrator) create(ctx context.Context, inv *invocation, lead *entity.Lead, input CreateLeadInput) (*entity.Lead, error) {
	lead = &entity.Lead{LeadID: lead.LeadID, Status: entity.StatusValidating}
	if err := o.checkpoint(ctx, inv, lead, "validating"); err != nil {
		return nil, err
	}

	candidate := &entity.Lead{
		LeadID:              lead.LeadID,
		LeadType:            input.LeadType,
		Status:              entity.StatusValidating,
		UniversalRetailerID: input.UniversalRetailerID,
		LocationID:          input.LocationID,
		IPAddress:           input.IPAddress,
		Lead: &entity.Contact{
			Name:        input.Lead.Name,
			PhoneNumber: input.Lead.PhoneNumber,
			Email:       input.Lead.Email,
			Message:     input.Lead.Message,
		},
	}

	if fieldErrs := ValidateCreateLeadInput(input); len(fieldErrs) > 0 {
		o.recorder.ValidationRejected("request")
		return nil, o.fail(ctx, inv, lead, &ValidationError{
			Check:  "request",
			Status: string(CheckInvalid),
			Reason: fieldErrorsMessage(fieldErrs),
			Code:   400,
		})
	}

	rejection, err := o.pipeline.run(ctx, inv, candidate, o.recorder)
	if err != nil {
		return nil, o.fail(ctx, inv, lead, &TechnicalError{Code: "VALIDATION_UNAVAILABLE", Message: "lead validation could not complete", Err: err})
	}
	if rejection != nil {
		return nil, o.fail(ctx, inv, lead, rejection)
	}

	submitted, err := inv.clock(ctx, "submitted")
	if err != nil {
		return nil, err
	}
	candidate.Status = entity.StatusActive
	candidate.DateSubmitted = &submitted
	candidate.Integrations = map[string]entity.IntegrationState{}
	if err := o.checkpoint(ctx, inv, candidate, "active"); err != nil {
		return nil, err
	}

	if input.ShouldSyncImmediately() {
		_, err := runStep(ctx, inv, "dispatch:sync", func(ctx context.Context) (string, error) {
			cmd := LeadCommand{LeadID: candidate.LeadID, Operation: entity.OperationSync, InvocationID: inv.id + ":sync"}
			return cmd.InvocationID, o.dispatcher.Dispatch(context.WithoutCancel(ctx), cmd)
		})
		if err != nil {
			// The lead is created; a missed trigger only delays the first sync.
			o.log.WarnContext(ctx, "failed to trigger initial sync", "lead_id", candidate.LeadID, "error", err)
		}
	}
	return candidate.Clone(), nil
}

// fail flips the working copy to ERROR with the serialized failure and
// returns cause.
func (o *LeadOrchestrator) fail(ctx context.Context, inv *invocation, lead *entity.Lead, cause error) error {
	failedAt, err := inv.clock(ctx, "failed")
	if err != nil {
		return err
	}
	info := &entity.ErrorInfo{Message: cause.Error(), ErrorDate: failedAt}
	if details, err := json.Marshal(cause); err == nil && string(details) != "{}" {
		info.Details = string(details)
	}
	failed := &entity.Lead{LeadID: lead.LeadID, Status: entity.StatusError, Error: info}
	if err := o.checkpoint(ctx, inv, failed, "error"); err != nil {
		o.log.ErrorContext(ctx, "failed to record lead error", "lead_id", lead.LeadID, "error", err)
	}
	return cause
}

func (o *LeadOrchestrator) sync(ctx context.Context, inv *invocation, lead *entity.Lead) (*entity.Lead, error) {
	lead.Status = entity.StatusSyncing
	if err := o.checkpoint(ctx, inv, lead, "syncing"); err != nil {
		return nil, o.abandon(ctx, lead, err)
	}
	if err := o.runIntegrations(ctx, inv, lead, modeSync); err != nil {
		return nil, o.abandon(ctx, lead, err)
	}
	lead.Status = entity.StatusActive
	if err := o.checkpoint(ctx, inv, lead, "synced"); err != nil {
		return nil, o.abandon(ctx, lead, err)
	}
	return lead.Clone(), nil
}

func (o *LeadOrchestrator) close(ctx context.Context, inv *invocation, lead *entity.Lead, input CloseLeadInput) (*entity.Lead, error) {
	lead.SetCloseReason(input.Reason)
	if err := o.runIntegrations(ctx, inv, lead, modeClose); err != nil {
		return nil, o.abandon(ctx, lead, err)
	}
	lead.Status = entity.StatusClosed
	if err := o.checkpoint(ctx, inv, lead, "closed"); err != nil {
		return nil, o.abandon(ctx, lead, err)
	}
	return lead.Clone(), nil
}

// abandon marks the working copy as ERROR after an infrastructure failure,
// so the next call reloads the last state the store accepted.
func (o *LeadOrchestrator) abandon(ctx context.Context, lead *entity.Lead, cause error) error {
	if ctx.Err() != nil {
		return cause
	}
	failed := lead.Clone()
	failed.Status = entity.StatusError
	failed.Error = entity.NewErrorInfo(cause, o.now())
	if err := o.states.SaveState(ctx, failed); err != nil {
		o.log.ErrorContext(ctx, "failed to flag lead state", "lead_id", lead.LeadID, "error", err)
	}
	return cause
}

func (o *LeadOrchestrator) complete(ctx context.Context, inv *invocation, result *entity.Lead, cause error) {
	var payload json.RawMessage
	var errMsg string
	if cause != nil {
		data, _ := json.Marshal(RecordedError{Code: ErrorCode(cause), Status: HTTPStatus(cause), Message: cause.Error()})
		errMsg = string(data)
	} else if result != nil {
		payload, _ = json.Marshal(result)
	}
	if err := o.journal.CompleteInvocation(ctx, inv.id, payload, errMsg); err != nil {
		o.log.ErrorContext(ctx, "failed to complete invocation", "invocation_id", inv.id, "error", err)
	}
}

func decodeCompleted(inv entity.Invocation) (*entity.Lead, error) {
	if inv.Error != "" {
		var recorded RecordedError
		if err := json.Unmarshal([]byte(inv.Error), &recorded); err != nil {
			return nil, &RecordedError{Code: "INTERNAL_ERROR", Status: 500, Message: inv.Error}
		}
		return nil, &recorded
	}
	var lead entity.Lead
	if err := json.Unmarshal(inv.Result, &lead); err != nil {
		return nil, &TechnicalError{Code: "JOURNAL_ERROR", Message: "failed to decode invocation result", Err: err}
	}
	return &lead, nil
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorCode(err)
}

// Recover resumes every invocation still pending since before olderThan.
// Each one re-runs under its original id, so finished steps are skipped.
func (o *LeadOrchestrator) Recover(ctx context.Context, olderThan time.Time) (int, error) {
	pending, err := o.journal.PendingInvocations(ctx, olderThan)
	if err != nil {
		return 0, &TechnicalError{Code: "JOURNAL_ERROR", Message: "failed to list pending invocations", Err: err}
	}
	var errs []error
	resumed := 0
	for _, inv := range pending {
		if ctx.Err() != nil {
			break
		}
		o.log.InfoContext(ctx, "resuming invocation", "invocation_id", inv.ID, "lead_id", inv.LeadID, "operation", inv.Operation)
		if err := o.resume(ctx, inv); err != nil && !IsTerminal(err) {
			errs = append(errs, fmt.Errorf("invocation %s: %w", inv.ID, err))
			continue
		}
		resumed++
	}
	return resumed, errors.Join(errs...)
}

func (o *LeadOrchestrator) resume(ctx context.Context, inv entity.Invocation) error {
	opts := CallOptions{InvocationID: inv.ID}
	var err error
	switch inv.Operation {
	case entity.OperationCreate:
		var input CreateLeadInput
		if err := json.Unmarshal(inv.Request, &input); err != nil {
			return &BadRequestError{Message: "undecodable create request: " + err.Error()}
		}
		_, err = o.Create(ctx, inv.LeadID, input, opts)
	case entity.OperationSync:
		_, err = o.Sync(ctx, inv.LeadID, opts)
	case entity.OperationClose:
		var input CloseLeadInput
		if err := json.Unmarshal(inv.Request, &input); err != nil {
			return &BadRequestError{Message: "undecodable close request: " + err.Error()}
		}
		_, err = o.Close(ctx, inv.LeadID, input, opts)
	default:
		return &BadRequestError{Message: "unknown operation " + string(inv.Operation)}
	}
	return err
}

// InlineDispatcher runs commands on a detached goroutine in this process.
type InlineDispatcher struct {
	Orchestrator *LeadOrchestrator
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, cmd LeadCommand) error {
	go func() {
		if _, err := d.Orchestrator.Execute(context.WithoutCancel(ctx), cmd); err != nil && !IsTerminal(err) {
			d.Orchestrator.log.Error("dispatched command failed", "lead_id", cmd.LeadID, "operation", cmd.Operation, "error", err)
		}
	}()
	return nil
}

// Execute runs a queued command. It is the entry point used by workers.
func (o *LeadOrchestrator) Execute(ctx context.Context, cmd LeadCommand) (*entity.Lead, error) {
	opts := CallOptions{InvocationID: cmd.InvocationID}
	switch cmd.Operation {
	case entity.OperationSync:
		return o.Sync(ctx, cmd.LeadID, opts)
	case entity.OperationClose:
		return o.Close(ctx, cmd.LeadID, CloseLeadInput{Reason: cmd.Reason}, opts)
	default:
		return nil, &BadRequestError{Message: "unsupported command " + string(cmd.Operation)}
	}
}
