package cli

import (
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/mailtmpl/cli/internal/errors"
	"github.com/mailtmpl/cli/internal/interfaces"
	"github.com/mailtmpl/cli/internal/localstore"
	"github.com/mailtmpl/cli/internal/model"
	"github.com/mailtmpl/cli/internal/reconcile"
	"github.com/mailtmpl/cli/internal/state"
	"github.com/spf13/cobra"
)

// DefaultTemplatesDir is used by sync and export when no directory is given.
const DefaultTemplatesDir = "templates"

var (
	syncDirs            []string
	syncOnly            []string
	syncLanguages       []string
	syncDryRun          bool
	syncContinueOnError bool
	syncAllowDuplicates bool

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Push local templates to the tenant",
		Long: `Push every template under --dir to the tenant.

Templates that exist remotely for the same type and language are updated,
the rest are created. Remote templates without a local counterpart are left
untouched. When the tenant does not expose a template listing, every
template is upserted.

The run stops at the first failed template. Templates written before the
failure stay written; running sync again is safe.`,
		Args: cobra.NoArgs,
		RunE: runSync,
	}
)

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringArrayVarP(&syncDirs, "dir", "d", []string{DefaultTemplatesDir}, "template directory, repeatable")
	syncCmd.Flags().StringSliceVar(&syncOnly, "only", nil, "only these template types (comma separated)")
	syncCmd.Flags().StringSliceVar(&syncLanguages, "languages", nil, "only these language tags (comma separated)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "show what would be written without writing")
	syncCmd.Flags().BoolVar(&syncContinueOnError, "continue-on-error", false, "attempt every template and report all failures at the end")
	syncCmd.Flags().BoolVar(&syncAllowDuplicates, "allow-duplicates", false, "allow several directories to define the same template; the last one wins")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	logger := newLogger(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	filter := buildFilter(syncOnly, syncLanguages)
	dirs := syncDirs
	if len(dirs) == 0 {
		dirs = []string{DefaultTemplatesDir}
	}

	store := newTemplateStore(localstore.Options{Filter: filter, AllowDuplicates: syncAllowDuplicates})
	locals, err := store.Load(dirs...)
	if err != nil {
		return err
	}
	if len(locals) == 0 {
		fmt.Fprintf(out, "No templates found in %v%s\n", dirs, describeFilter(filter))
		return nil
	}

	var journal interfaces.StateManager
	if !syncDryRun {
		journal, err = openJournal(cfg.StateDB)
		if err != nil {
			return err
		}
		if journal != nil {
			defer journal.Close()
		}
	}

	engine := reconcile.NewEngine(newGateway(ctx, cfg, logger), logger)
	started := time.Now()
	report, err := engine.Sync(ctx, locals, reconcile.Options{
		DryRun:          syncDryRun,
		ContinueOnError: syncContinueOnError,
	})

	if report != nil {
		printReport(out, report)
	}
	if err != nil {
		recordRun(journal, logger, interfaces.RunRecord{
			Operation: state.OperationSync,
			Timestamp: started,
			Status:    syncStatus(report, err),
			Details:   firstLine(err.Error()),
		}, written(report, err))
		return classifySyncError(err)
	}

	recordRun(journal, logger, interfaces.RunRecord{
		Operation: state.OperationSync,
		Timestamp: started,
		Status:    state.StatusSuccess,
		Details:   report.Summary(),
	}, written(report, nil))
	return nil
}

// printReport writes one line per template followed by the summary.
func printReport(out io.Writer, report *reconcile.Report) {
	rows := make([][]string, 0, len(report.Items)+len(report.Failures))
	for _, item := range report.Items {
		via := item.Method
		if item.Strategy != "" {
			via = fmt.Sprintf("%s (%s)", item.Method, item.Strategy)
		}
		if item.DryRun {
			via = "dry run"
		}
		id := ""
		if item.Remote != nil {
			id = item.Remote.ID
		}
		rows = append(rows, []string{string(item.Action), item.Key, id, via})
	}
	for _, f := range report.Failures {
		rows = append(rows, []string{"failed", f.Key, "", firstLine(f.Err.Error())})
	}
	writeTable(out, nil, rows)
	fmt.Fprintln(out, report.Summary())
}

// classifySyncError keeps configuration and transport categories and marks
// item failures as sync errors.
func classifySyncError(err error) error {
	var cliErr *errors.CLIError
	if stderrors.As(err, &cliErr) {
		return err
	}
	var itemErr *reconcile.ItemError
	var partial *reconcile.PartialError
	if stderrors.As(err, &itemErr) || stderrors.As(err, &partial) {
		return errors.NewSyncError("sync did not complete", err)
	}
	return errors.NewRemoteError("sync failed", err)
}

func syncStatus(report *reconcile.Report, err error) string {
	if report != nil && len(report.Items) > 0 {
		return state.StatusPartial
	}
	var itemErr *reconcile.ItemError
	if stderrors.As(err, &itemErr) && itemErr.Applied > 0 {
		return state.StatusPartial
	}
	return state.StatusFailed
}

// written returns the remote state of every confirmed write, including those
// made before an aborting failure.
func written(report *reconcile.Report, err error) []model.Template {
	var items []reconcile.Item
	var itemErr *reconcile.ItemError
	switch {
	case report != nil && !report.DryRun:
		items = report.Items
	case stderrors.As(err, &itemErr):
		items = itemErr.Items
	}
	var out []model.Template
	for _, item := range items {
		if item.Remote != nil {
			out = append(out, *item.Remote)
		}
	}
	return out
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
