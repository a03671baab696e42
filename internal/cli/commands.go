package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xavierca1/leadsync/internal/entity"
	"github.com/xavierca1/leadsync/internal/usecase"
)

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <lead-id>",
		Short: "Show the latest snapshot of a lead",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc Service) error {
				lead, err := svc.Status(ctx, args[0])
				if err != nil {
					return err
				}
				return renderLead(cmd, opts, lead)
			})
		},
	}
}

type mutateOptions struct {
	InvocationID string
	Reason       string
}

func NewSyncCommand(opts *RootOptions) *cobra.Command {
	m := &mutateOptions{}
	cmd := &cobra.Command{
		Use:   "sync <lead-id>",
		Short: "Push a lead to every integration it has not reached yet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc Service) error {
				lead, err := svc.Sync(ctx, args[0], usecase.CallOptions{InvocationID: m.InvocationID})
				if err != nil {
					return err
				}
				return renderLead(cmd, opts, lead)
			})
		},
	}
	cmd.Flags().StringVar(&m.InvocationID, "invocation", "", "resume a previous invocation by id")
	return cmd
}

func NewCloseCommand(opts *RootOptions) *cobra.Command {
	m := &mutateOptions{}
	cmd := &cobra.Command{
		Use:   "close <lead-id>",
		Short: "Close a lead in every integration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc Service) error {
				lead, err := svc.Close(ctx, args[0], usecase.CloseLeadInput{Reason: m.Reason}, usecase.CallOptions{InvocationID: m.InvocationID})
				if err != nil {
					return err
				}
				return renderLead(cmd, opts, lead)
			})
		},
	}
	cmd.Flags().StringVar(&m.Reason, "reason", "", "close reason stored on the lead")
	cmd.Flags().StringVar(&m.InvocationID, "invocation", "", "resume a previous invocation by id")
	return cmd
}

type bulkOptions struct {
	Filter  string
	Reason  string
	Verbose bool
	Async   bool
}

func NewBulkCommand(opts *RootOptions) *cobra.Command {
	b := &bulkOptions{}
	cmd := &cobra.Command{
		Use:   "bulk <find|sync|close>",
		Short: "Apply an operation to every lead matching a filter",
		Long: `Apply an operation to every lead matching a filter.

The filter is "*" or a JSON object, for example:
  leadctl bulk find --filter '{"Status":["ERROR"]}' --verbose
  leadctl bulk close --filter '*' --reason expired`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter entity.LeadFilter
			if err := json.Unmarshal(filterJSON(b.Filter), &filter); err != nil {
				return fmt.Errorf("invalid --filter: %w", err)
			}
			input := usecase.BulkInput{
				Operation: usecase.BulkOperation(strings.ToUpper(args[0])),
				Filter:    filter,
				Reason:    b.Reason,
				Verbose:   b.Verbose,
				Async:     b.Async,
			}
			return withService(cmd, opts, func(ctx context.Context, svc Service) error {
				out, err := svc.Bulk(ctx, input)
				if err != nil {
					return err
				}
				return render(cmd, opts, out, func(w io.Writer) {
					fmt.Fprintf(w, "%d lead(s)\n", out.Count)
					for _, item := range out.Result {
						line := item.LeadID
						if item.Status != "" {
							line += "\t" + item.Status
						}
						if item.Error != "" {
							line += "\terror: " + item.Error
						}
						fmt.Fprintln(w, line)
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&b.Filter, "filter", "*", `"*" or a JSON filter object`)
	cmd.Flags().StringVar(&b.Reason, "reason", "", "close reason for bulk close")
	cmd.Flags().BoolVar(&b.Verbose, "verbose", false, "include full leads for find")
	cmd.Flags().BoolVar(&b.Async, "async", false, "dispatch and return without waiting")
	return cmd
}

// filterJSON lets the shell-friendly bare * stand for the JSON string "*".
func filterJSON(raw string) []byte {
	raw = strings.TrimSpace(raw)
	if raw == "*" || raw == "" {
		return []byte(`"*"`)
	}
	return []byte(raw)
}

func NewRecoverCommand(opts *RootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Resume invocations that were interrupted before completing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd, opts, func(ctx context.Context, svc Service) error {
				resumed, err := svc.Recover(ctx, time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				return render(cmd, opts, map[string]int{"resumed": resumed}, func(w io.Writer) {
					fmt.Fprintf(w, "resumed %d invocation(s)\n", resumed)
				})
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", time.Minute, "only resume invocations idle for at least this long")
	return cmd
}

func withService(cmd *cobra.Command, opts *RootOptions, fn func(context.Context, Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, closeFn, err := opts.newService(ctx, opts)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(ctx, svc)
}

func renderLead(cmd *cobra.Command, opts *RootOptions, lead *entity.Lead) error {
	return render(cmd, opts, lead, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", lead.LeadID, lead.LeadType, lead.Status)
		for _, name := range slices.Sorted(maps.Keys(lead.Integrations)) {
			fmt.Fprintf(w, "  %s\t%s\n", name, lead.Integrations[name].SyncStatus)
		}
	})
}
