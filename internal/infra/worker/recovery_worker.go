package worker

import (
	"context"
	"log/slog"
	"time"
)

// Recoverer resumes invocations left pending by a crash or cancellation.
type Recoverer interface {
	Recover(ctx context.Context, olderThan time.Time) (int, error)
}

type RecoveryWorker struct {
	recoverer    Recoverer
	staleAfter   time.Duration
	tickInterval time.Duration
	log          *slog.Logger
}

func NewRecoveryWorker(r Recoverer, interval time.Duration, log *slog.Logger) *RecoveryWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &RecoveryWorker{
		recoverer:    r,
		staleAfter:   interval,
		tickInterval: interval,
		log:          log,
	}
}

func (w *RecoveryWorker) Start(ctx context.Context) {
	w.log.Info("recovery worker started", "interval", w.tickInterval)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("recovery worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep and returns how many invocations resumed.
func (w *RecoveryWorker) RunOnce(ctx context.Context) int {
	resumed, err := w.recoverer.Recover(ctx, time.Now().Add(-w.staleAfter))
	if err != nil {
		w.log.Error("recovery sweep incomplete", "resumed", resumed, "error", err)
	} else if resumed > 0 {
		w.log.Info("recovery sweep finished", "resumed", resumed)
	}
	return resumed
}
