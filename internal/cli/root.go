package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/xavierca1/leadsync/internal/app"
	"github.com/xavierca1/leadsync/internal/config"
	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format      string // "json" | "text"
	DatabaseURL string

	newService serviceFactory
}

type serviceFactory func(ctx context.Context, opts *RootOptions) (Service, func(), error)

var ValidFormats = []string{"text", "json"}

// Service is the part of the orchestrator the CLI drives.
type Service interface {
	Status(ctx context.Context, rawID string) (*entity.Lead, error)
	Sync(ctx context.Context, rawID string, opts usecase.CallOptions) (*entity.Lead, error)
	Close(ctx context.Context, rawID string, input usecase.CloseLeadInput, opts usecase.CallOptions) (*entity.Lead, error)
	Bulk(ctx context.Context, input usecase.BulkInput) (*usecase.BulkOutput, error)
	Recover(ctx context.Context, olderThan time.Time) (int, error)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(openService)
}

func newRootCommand(factory serviceFactory) *cobra.Command {
	opts := &RootOptions{newService: factory}

	cmd := &cobra.Command{
		Use:   "leadctl",
		Short: "Operate on leads without going through the HTTP API",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DatabaseURL, "db", "", "store URL, overrides DATABASE_URL")

	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewCloseCommand(opts))
	cmd.AddCommand(NewBulkCommand(opts))
	cmd.AddCommand(NewRecoverCommand(opts))

	return cmd
}

func openService(ctx context.Context, opts *RootOptions) (Service, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if opts.DatabaseURL != "" {
		cfg.DatabaseURL = opts.DatabaseURL
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	a, err := app.New(ctx, cfg, log, true)
	if err != nil {
		return nil, nil, err
	}
	return a.Orchestrator, a.Close, nil
}

// render writes v as indented JSON, or through text when the format is text.
func render(cmd *cobra.Command, opts *RootOptions, v any, text func(io.Writer)) error {
	out := cmd.OutOrStdout()
	if opts.Format == "json" || text == nil {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(out)
	return nil
}
