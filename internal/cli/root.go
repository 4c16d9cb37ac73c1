package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/mailtmpl/cli/internal/auth"
	"github.com/mailtmpl/cli/internal/config"
	"github.com/mailtmpl/cli/internal/errors"
	"github.com/mailtmpl/cli/internal/interfaces"
	"github.com/mailtmpl/cli/internal/localstore"
	"github.com/mailtmpl/cli/internal/logging"
	"github.com/mailtmpl/cli/internal/model"
	"github.com/mailtmpl/cli/internal/remote"
	"github.com/mailtmpl/cli/internal/state"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	envFile       string
	endpoint      string
	tenantID      string
	clientID      string
	clientSecret  string
	templatesPath string
	stateDB       string
	verbose       bool

	rootCmd = &cobra.Command{
		Use:   "mailtmpl",
		Short: "Keep email templates in files and in sync with your tenant",
		Long: `mailtmpl reconciles a directory of email templates with the email template
collection of a tenant's management API.

Templates live on disk as <dir>/<templateType>/<languageTag>/ with a
subject.txt, exactly one of content.html or content.txt, and an optional
meta.json. Credentials are read from flags, the environment or a .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx, cancelled on interrupt by main.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&envFile, "env-file", config.DefaultEnvFile, "dotenv file to read configuration from")
	flags.StringVar(&endpoint, "endpoint", "", "tenant endpoint URL (ENDPOINT)")
	flags.StringVar(&tenantID, "tenant-id", "", "tenant id, derived from the endpoint host when omitted (TENANT_ID)")
	flags.StringVar(&clientID, "client-id", "", "machine-to-machine application id (CLIENT_ID)")
	flags.StringVar(&clientSecret, "client-secret", "", "machine-to-machine application secret (CLIENT_SECRET)")
	flags.StringVar(&templatesPath, "templates-path", "", "collection path below /api (EMAIL_TEMPLATES_PATH)")
	flags.StringVar(&stateDB, "state-db", "", "SQLite journal of runs, disabled when empty (STATE_DB)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every request and decision to stderr")
}

// loadViper layers flags over the environment over the env file.
func loadViper() (*viper.Viper, error) {
	v := config.NewViper()
	if err := config.ReadEnvFile(v, envFile, envFile != config.DefaultEnvFile); err != nil {
		return nil, err
	}

	overrides := map[string]string{
		config.KeyEndpoint:           endpoint,
		config.KeyTenantID:           tenantID,
		config.KeyClientID:           clientID,
		config.KeyClientSecret:       clientSecret,
		config.KeyEmailTemplatesPath: templatesPath,
		config.KeyStateDB:            stateDB,
	}
	for key, val := range overrides {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v, nil
}

// loadConfig resolves and validates the configuration for commands that talk to the API.
func loadConfig() (*config.Config, error) {
	v, err := loadViper()
	if err != nil {
		return nil, err
	}
	return config.Resolve(v)
}

// newLogger writes human-readable lines to a terminal and JSON lines otherwise.
func newLogger(cmd *cobra.Command) zerolog.Logger {
	w := cmd.ErrOrStderr()
	if logging.IsTerminal(w) {
		return logging.New(w, verbose)
	}
	return logging.NewJSON(w, verbose)
}

func newTemplateStore(opts localstore.Options) interfaces.TemplateStore {
	return localstore.NewStore(opts)
}

// newGateway builds an authenticated gateway for the configured tenant.
func newGateway(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *remote.Gateway {
	httpClient := auth.NewHTTPClient(ctx, cfg)
	client := remote.NewClient(cfg.Endpoint, httpClient, logger)
	return remote.NewGateway(client, cfg.BasePath(), logger)
}

// openJournal opens the run journal, or returns nil when none is configured.
func openJournal(path string) (interfaces.StateManager, error) {
	if path == "" {
		return nil, nil
	}
	mgr := state.NewManager()
	if err := mgr.Initialize(path); err != nil {
		return nil, err
	}
	return mgr, nil
}

// recordRun writes a run to the journal. Journal failures are logged, never fatal.
func recordRun(journal interfaces.StateManager, logger zerolog.Logger, run interfaces.RunRecord, written []model.Template) {
	if journal == nil {
		return
	}
	if err := journal.RecordRun(run); err != nil {
		logger.Warn().Err(err).Msg("could not record run in journal")
		return
	}
	if len(written) == 0 {
		return
	}
	if err := journal.RecordTemplates(state.RecordsFor(written), run.Timestamp); err != nil {
		logger.Warn().Err(err).Msg("could not record template state in journal")
	}
}

// buildFilter turns --only and --languages values into a filter. Entries may
// be repeated or comma separated.
func buildFilter(types, languages []string) model.Filter {
	return model.Filter{Types: splitList(types), Languages: splitList(languages)}
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func describeFilter(f model.Filter) string {
	var parts []string
	if len(f.Types) > 0 {
		parts = append(parts, "types "+strings.Join(f.Types, ","))
	}
	if len(f.Languages) > 0 {
		parts = append(parts, "languages "+strings.Join(f.Languages, ","))
	}
	if len(parts) == 0 {
		return ""
	}
	return fmt.Sprintf(" (%s)", strings.Join(parts, "; "))
}

func listingUnavailable(cfg *config.Config) error {
	return errors.NewListingUnavailableError(fmt.Sprintf(
		"GET %s%s is not available on this tenant; check EMAIL_TEMPLATES_PATH", cfg.Endpoint, cfg.BasePath()))
}
