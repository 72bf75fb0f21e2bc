package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/assetdock/assetdock/internal/client"
	"github.com/assetdock/assetdock/internal/config"
	"github.com/assetdock/assetdock/internal/mapping"
	"github.com/assetdock/assetdock/internal/model"
	"github.com/assetdock/assetdock/internal/wizard"
)

var serverURL string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "assetdock: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg, _ := config.Load()
	defaultServer := "http://localhost:8080"
	if cfg != nil && cfg.ServerURL != "" {
		defaultServer = cfg.ServerURL
	}
	cmd := &cobra.Command{
		Use:   "assetdock",
		Short: "AssetDock bulk-import CLI",
		Long: `AssetDock imports asset and user spreadsheets: upload a file, review the
proposed column mapping, pick a merge strategy and track the import job to
its final summary.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "Base URL of the import API")
	cmd.AddCommand(
		newImportCmd(),
		newJobsCmd(),
		newConfigCmd(),
	)
	return cmd
}

func newImportCmd() *cobra.Command {
	var (
		entityType    string
		useAI         bool
		overrides     []string
		ignores       []string
		newSet        string
		existingSet   string
		createMissing bool
		waitBudget    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Upload a spreadsheet and run the import to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			kind := model.EntityKind(entityType)
			if !kind.Valid() {
				return fmt.Errorf("unknown --type %q (use asset or user)", entityType)
			}
			if newSet != "" && existingSet != "" {
				return fmt.Errorf("--new-set and --set are mutually exclusive")
			}

			w := wizard.New(client.New(serverURL))
			if err := w.Upload(ctx, args[0]); err != nil {
				return err
			}
			fmt.Printf("uploaded %s (job %s)\n", args[0], w.JobID())

			if err := w.Analyze(ctx, kind, useAI); err != nil {
				return err
			}
			if err := applyOverrides(w, overrides, ignores); err != nil {
				return err
			}
			printMapping(cmd, w.Mapping())

			switch {
			case newSet != "":
				if err := w.UseNewSet(newSet); err != nil {
					return err
				}
			case existingSet != "":
				if err := w.UseExistingSet(existingSet); err != nil {
					return err
				}
			default:
				if err := w.UseMerge(); err != nil {
					return err
				}
			}
			if createMissing {
				if err := w.CreateMissingFields(true); err != nil {
					return err
				}
			}
			if err := w.Execute(ctx); err != nil {
				return err
			}
			fmt.Println("import queued, waiting...")

			opts := client.DefaultWaitOptions()
			if waitBudget > 0 {
				opts.Budget = waitBudget
			}
			status, err := w.Wait(ctx, opts)
			if err != nil {
				if err == client.ErrWaitTimeout {
					return fmt.Errorf("job %s is still processing; check later with: assetdock jobs %s", w.JobID(), w.JobID())
				}
				return err
			}
			printStatus(cmd, status)
			if status.Status == model.StatusFailed {
				return fmt.Errorf("import failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&entityType, "type", "asset", "Entity type to import (asset or user)")
	cmd.Flags().BoolVar(&useAI, "ai", false, "Ask the configured LLM to suggest mappings for unmatched columns")
	cmd.Flags().StringArrayVar(&overrides, "map", nil, "Override a column mapping as header=field (repeatable)")
	cmd.Flags().StringArrayVar(&ignores, "ignore", nil, "Ignore a column (repeatable)")
	cmd.Flags().StringVar(&newSet, "new-set", "", "Import into a newly created set with this name")
	cmd.Flags().StringVar(&existingSet, "set", "", "Import into an existing set by id")
	cmd.Flags().BoolVar(&createMissing, "create-missing-fields", false, "Create custom field definitions for unmapped columns")
	cmd.Flags().DurationVar(&waitBudget, "wait", 0, "Maximum time to wait for the job (default 10m)")
	return cmd
}

func applyOverrides(w *wizard.Wizard, overrides, ignores []string) error {
	for _, ov := range overrides {
		header, field, ok := strings.Cut(ov, "=")
		if !ok {
			return fmt.Errorf("invalid --map %q (want header=field)", ov)
		}
		if err := w.Override(header, field); err != nil {
			return err
		}
	}
	for _, header := range ignores {
		if err := w.Override(header, mapping.Ignored); err != nil {
			return err
		}
	}
	return nil
}

func printMapping(cmd *cobra.Command, m *mapping.Mapping) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "column mapping:")
	for _, header := range m.Headers() {
		target, _ := m.Value(header)
		badge := sourceBadge(m.SourceOf(header))
		if target == mapping.Ignored {
			fmt.Fprintf(out, "  %-24s (ignored) %s\n", header, badge)
			continue
		}
		fmt.Fprintf(out, "  %-24s -> %-16s %s\n", header, target, badge)
	}
}

func sourceBadge(src mapping.Source) string {
	switch src {
	case mapping.SourceDeterministic:
		return "[matched]"
	case mapping.SourceAI:
		return "[ai]"
	case mapping.SourceManual:
		return "[manual]"
	}
	return ""
}

func printStatus(cmd *cobra.Command, status *client.JobStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "job %s: %s\n", status.JobID, status.Status)
	if status.Error != "" {
		fmt.Fprintf(out, "error: %s\n", status.Error)
	}
	if status.Result == nil {
		return
	}
	fmt.Fprintf(out, "imported: %d\n", status.Result.Imported)
	if status.Result.SetID != "" {
		fmt.Fprintf(out, "set: %s\n", status.Result.SetID)
	}
	if len(status.Result.Errors) > 0 {
		fmt.Fprintf(out, "row errors (%d):\n", len(status.Result.Errors))
		for _, e := range status.Result.Errors {
			fmt.Fprintf(out, "  %s\n", e)
		}
	}
}

func newJobsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs <job-id>",
		Short: "Show the status and result of an import job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			status, err := c.Job(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printStatus(cmd, status)
			return nil
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the server's upload constraints",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(serverURL)
			cfg, err := c.Config(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "allowed extensions: %s\n", strings.Join(cfg.AllowedExtensions, ", "))
			if cfg.MaxUploadMB == nil {
				fmt.Fprintln(out, "max upload size: unlimited")
			} else {
				fmt.Fprintf(out, "max upload size: %d MB\n", *cfg.MaxUploadMB)
			}
			return nil
		},
	}
}
