package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// CommandExecutor runs one lead command to completion.
type CommandExecutor interface {
	Execute(ctx context.Context, cmd usecase.LeadCommand) (*entity.Lead, error)
}

type Consumer interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

type Worker struct {
	Channel  Consumer
	Executor CommandExecutor
	Log      *slog.Logger
}

func NewWorker(ch Consumer, executor CommandExecutor, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{Channel: ch, Executor: executor, Log: log}
}

// Start consumes until ctx is done or the delivery channel closes.
func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.Channel.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	w.Log.Info("worker waiting for lead commands", "queue", queueName)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return nil
			}
			w.handle(ctx, d)
		}
	}
}

func (w *Worker) handle(ctx context.Context, d amqp.Delivery) {
	var cmd usecase.LeadCommand
	if err := json.Unmarshal(d.Body, &cmd); err != nil {
		w.Log.Error("malformed lead command", "error", err)
		_ = d.Nack(false, false)
		return
	}
	if cmd.InvocationID == "" {
		cmd.InvocationID = d.MessageId
	}

	log := w.Log.With("lead_id", cmd.LeadID, "operation", cmd.Operation, "invocation_id", cmd.InvocationID)
	if err := w.processMessage(ctx, cmd); err != nil {
		log.Error("lead command failed", "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

// processMessage returns an error only for failures worth dead lettering.
// Rejections by the lead's own rules are final and are acknowledged.
func (w *Worker) processMessage(ctx context.Context, cmd usecase.LeadCommand) error {
	lead, err := w.Executor.Execute(ctx, cmd)
	if err != nil {
		if usecase.IsTerminal(err) {
			w.Log.Warn("lead command rejected", "lead_id", cmd.LeadID, "operation", cmd.Operation, "error", err)
			return nil
		}
		return err
	}
	w.Log.Info("lead command processed", "lead_id", cmd.LeadID, "operation", cmd.Operation, "status", lead.Status)
	return nil
}
