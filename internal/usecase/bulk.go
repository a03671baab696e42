package usecase

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xavierca1/leadsync/internal/entity"
)

// Bulk applies one operation to every lead matching the filter. Per-lead
// failures are reported in the result and never fail the whole call.
func (o *LeadOrchestrator) Bulk(ctx context.Context, input BulkInput) (*BulkOutput, error) {
	input.Operation = BulkOperation(strings.ToUpper(string(input.Operation)))
	switch input.Operation {
	case BulkFind, BulkSync, BulkClose:
	default:
		return nil, &BadRequestError{Message: "unknown bulk operation: " + string(input.Operation)}
	}

	leads, err := o.leads.Scan(ctx, input.Filter)
	if err != nil {
		return nil, &TechnicalError{Code: "STORE_ERROR", Message: "failed to scan leads", Err: err}
	}
	o.recorder.BulkTargets(string(input.Operation), len(leads))
	o.log.InfoContext(ctx, "bulk operation", "operation", input.Operation, "targets", len(leads), "async", input.Async)

	items := make([]BulkItem, len(leads))
	switch {
	case input.Operation == BulkFind:
		for i, lead := range leads {
			items[i] = BulkItem{LeadID: lead.LeadID, Status: string(lead.Status)}
			if input.Verbose {
				items[i].Lead = lead
			}
		}
	case input.Async:
		o.dispatchAll(ctx, input, leads, items)
	default:
		o.awaitAll(ctx, input, leads, items)
	}

	return &BulkOutput{Count: len(items), Result: items}, nil
}

func (o *LeadOrchestrator) dispatchAll(ctx context.Context, input BulkInput, leads []*entity.Lead, items []BulkItem) {
	for i, lead := range leads {
		cmd := LeadCommand{
			LeadID:       lead.LeadID,
			Operation:    bulkCommand(input.Operation),
			Reason:       input.Reason,
			InvocationID: uuid.New().String(),
		}
		items[i] = BulkItem{LeadID: lead.LeadID}
		if err := o.dispatcher.Dispatch(ctx, cmd); err != nil {
			o.log.WarnContext(ctx, "bulk dispatch failed", "lead_id", lead.LeadID, "error", err)
			items[i].Error = err.Error()
		}
	}
}

func (o *LeadOrchestrator) awaitAll(ctx context.Context, input BulkInput, leads []*entity.Lead, items []BulkItem) {
	var g errgroup.Group
	g.SetLimit(o.bulkLimit)
	for i, lead := range leads {
		g.Go(func() error {
			cmd := LeadCommand{LeadID: lead.LeadID, Operation: bulkCommand(input.Operation), Reason: input.Reason}
			result, err := o.Execute(ctx, cmd)
			item := BulkItem{LeadID: lead.LeadID}
			if err != nil {
				item.Error = err.Error()
			} else {
				item.Status = string(result.Status)
				if input.Verbose {
					item.Lead = result
				}
			}
			items[i] = item
			return nil
		})
	}
	_ = g.Wait()
}

func bulkCommand(op BulkOperation) entity.Operation {
	if op == BulkClose {
		return entity.OperationClose
	}
	return entity.OperationSync
}
