package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/mailtmpl/cli/internal/config"
	"github.com/mailtmpl/cli/internal/errors"
	"github.com/mailtmpl/cli/internal/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"

	subjectWidth = 48
	historyLimit = 20
)

var (
	listOnly      []string
	listLanguages []string
	listFormat    string
	listHistory   bool

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List the tenant's templates",
		Long: `List the email templates stored on the tenant, sorted by type and language.

With --history, show the most recent sync and export runs recorded in the
journal (STATE_DB) instead.`,
		Args: cobra.NoArgs,
		RunE: runList,
	}
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringSliceVar(&listOnly, "only", nil, "only these template types (comma separated)")
	listCmd.Flags().StringSliceVar(&listLanguages, "languages", nil, "only these language tags (comma separated)")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", formatTable, "output format: table, json or yaml")
	listCmd.Flags().BoolVar(&listHistory, "history", false, "show recorded runs instead of remote templates")
}

func runList(cmd *cobra.Command, args []string) error {
	switch listFormat {
	case formatTable, formatJSON, formatYAML:
	default:
		return errors.NewGenericError(fmt.Sprintf("unknown format %q (use table, json or yaml)", listFormat), nil)
	}

	if listHistory {
		return runListHistory(cmd)
	}

	ctx := cmd.Context()
	logger := newLogger(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	templates, ok, err := newGateway(ctx, cfg, logger).ListAll(ctx)
	if err != nil {
		return errors.NewRemoteError("failed to list remote templates", err)
	}
	if !ok {
		return listingUnavailable(cfg)
	}

	filter := buildFilter(listOnly, listLanguages)
	var selected []model.Template
	for _, t := range templates {
		if filter.Allows(t) {
			selected = append(selected, t)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].Key() < selected[j].Key() })

	return writeTemplates(cmd.OutOrStdout(), selected, listFormat)
}

func writeTemplates(out io.Writer, templates []model.Template, format string) error {
	if templates == nil {
		templates = []model.Template{}
	}
	switch format {
	case formatJSON:
		return writeJSON(out, templates)
	case formatYAML:
		return writeYAML(out, templates)
	}

	if len(templates) == 0 {
		fmt.Fprintln(out, "No templates found")
		return nil
	}
	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		contentType, subject := "", ""
		if t.Details != nil {
			contentType = t.Details.ContentType
			subject = ellipsize(t.Details.Subject, subjectWidth)
		}
		rows = append(rows, []string{t.TemplateType, t.LanguageTag, t.ID, contentType, subject})
	}
	if err := writeTable(out, []string{"TYPE", "LANGUAGE", "ID", "CONTENT TYPE", "SUBJECT"}, rows); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d template(s)\n", len(templates))
	return nil
}

// historyEntry is the serialized form of a journal row.
type historyEntry struct {
	ID        int64     `json:"id" yaml:"id"`
	Operation string    `json:"operation" yaml:"operation"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Status    string    `json:"status" yaml:"status"`
	Details   string    `json:"details,omitempty" yaml:"details,omitempty"`
}

func runListHistory(cmd *cobra.Command) error {
	v, err := loadViper()
	if err != nil {
		return err
	}
	path := v.GetString(config.KeyStateDB)
	if path == "" {
		return errors.NewConfigError("no journal configured; set STATE_DB or --state-db", nil)
	}

	journal, err := openJournal(path)
	if err != nil {
		return err
	}
	defer journal.Close()

	runs, err := journal.History(historyLimit)
	if err != nil {
		return err
	}

	entries := make([]historyEntry, 0, len(runs))
	for _, r := range runs {
		entries = append(entries, historyEntry{
			ID:        r.ID,
			Operation: r.Operation,
			Timestamp: r.Timestamp,
			Status:    r.Status,
			Details:   r.Details,
		})
	}

	out := cmd.OutOrStdout()
	switch listFormat {
	case formatJSON:
		return writeJSON(out, entries)
	case formatYAML:
		return writeYAML(out, entries)
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.ID),
			e.Timestamp.Local().Format(time.DateTime),
			e.Operation,
			e.Status,
			e.Details,
		})
	}
	return writeTable(out, []string{"ID", "TIME", "OPERATION", "STATUS", "DETAILS"}, rows)
}

func writeJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewGenericError("failed to encode JSON", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func writeYAML(out io.Writer, v any) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.NewGenericError("failed to encode YAML", err)
	}
	return enc.Close()
}
