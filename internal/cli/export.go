package cli

import (
	"fmt"
	"time"

	"github.com/mailtmpl/cli/internal/export"
	"github.com/mailtmpl/cli/internal/interfaces"
	"github.com/mailtmpl/cli/internal/state"
	"github.com/spf13/cobra"
)

var (
	exportOut       string
	exportOnly      []string
	exportLanguages []string

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write the tenant's templates to a directory",
		Long: `Write every remote template to --out in the layout read by sync.

Files of the same name are overwritten; anything else in the directory is
left alone. Export needs the tenant's template listing.`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", DefaultTemplatesDir, "output directory")
	exportCmd.Flags().StringSliceVar(&exportOnly, "only", nil, "only these template types (comma separated)")
	exportCmd.Flags().StringSliceVar(&exportLanguages, "languages", nil, "only these language tags (comma separated)")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	logger := newLogger(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	journal, err := openJournal(cfg.StateDB)
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
	}

	filter := buildFilter(exportOnly, exportLanguages)
	started := time.Now()
	result, err := export.NewExporter(newGateway(ctx, cfg, logger), logger).Export(ctx, exportOut, filter)
	if err != nil {
		recordRun(journal, logger, interfaces.RunRecord{
			Operation: state.OperationExport,
			Timestamp: started,
			Status:    state.StatusFailed,
			Details:   firstLine(err.Error()),
		}, nil)
		return err
	}

	summary := fmt.Sprintf("Exported %d of %d remote template(s) to %s%s",
		result.Written, result.Seen, result.Dir, describeFilter(filter))
	fmt.Fprintln(out, summary)

	recordRun(journal, logger, interfaces.RunRecord{
		Operation: state.OperationExport,
		Timestamp: started,
		Status:    state.StatusSuccess,
		Details:   summary,
	}, result.Templates)
	return nil
}
