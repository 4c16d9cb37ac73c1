package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mailtmpl/cli/internal/config"
	"github.com/mailtmpl/cli/internal/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	initNoInput bool
	initForce   bool

	// initPrompter is swapped out in tests.
	initPrompter prompter = surveyPrompter{}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a .env file with tenant credentials",
		Long: `Create the dotenv file read by every other command (--env-file, default .env).

Values already given as flags or found in the environment are used as
defaults; the remaining ones are asked for interactively. With --no-input,
nothing is asked and the required values must already be known.

The file is written with 0600 permissions because it holds the client secret.`,
		Args: cobra.NoArgs,
		RunE: runInit,
	}
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initNoInput, "no-input", false, "do not prompt; fail if a required value is missing")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing env file without asking")
}

func runInit(cmd *cobra.Command, args []string) error {
	path := envFile
	if path == "" {
		path = config.DefaultEnvFile
	}

	if _, err := os.Stat(path); err == nil && !initForce {
		if initNoInput {
			return errors.NewConfigError(fmt.Sprintf("%s already exists; use --force to overwrite it", path), nil)
		}
		overwrite, err := initPrompter.Confirm(fmt.Sprintf("%s already exists. Overwrite it?", path), false)
		if err != nil {
			return errors.NewGenericError("could not read confirmation", err)
		}
		if !overwrite {
			cmd.Println("Aborted; nothing was written.")
			return nil
		}
	}

	// Start from flags and the environment, never from the file being replaced.
	v := config.NewViper()
	for key, val := range map[string]string{
		config.KeyEndpoint:           endpoint,
		config.KeyTenantID:           tenantID,
		config.KeyClientID:           clientID,
		config.KeyClientSecret:       clientSecret,
		config.KeyEmailTemplatesPath: templatesPath,
		config.KeyStateDB:            stateDB,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}

	values, err := collectInitValues(v, initPrompter, !initNoInput)
	if err != nil {
		return err
	}

	// Validate before writing so a broken file is never produced.
	check := config.NewViper()
	for key, val := range values {
		check.Set(key, val)
	}
	cfg, err := config.Resolve(check)
	if err != nil {
		return err
	}

	if err := config.WriteEnvFile(path, values); err != nil {
		return err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	cmd.Printf("Wrote %s\n", abs)
	cmd.Printf("  endpoint:  %s\n", cfg.Endpoint)
	cmd.Printf("  tenant:    %s\n", cfg.TenantID)
	cmd.Printf("  templates: %s\n", cfg.BasePath())
	cmd.Println()
	cmd.Println("Next steps:")
	cmd.Println("  mailtmpl export --out templates   # pull the current templates")
	cmd.Println("  mailtmpl sync --dir templates --dry-run")
	return nil
}

// collectInitValues fills in every configuration key, asking for the missing
// ones when interactive is set.
func collectInitValues(v *viper.Viper, p prompter, interactive bool) (map[string]string, error) {
	values := make(map[string]string, len(config.Keys))
	for _, key := range config.Keys {
		values[key] = v.GetString(key)
	}
	if interactive {
		if err := promptInitValues(values, p); err != nil {
			return nil, err
		}
	}

	// Defaults need not be written out.
	if values[config.KeyPlatformDomain] == config.DefaultPlatformDomain {
		values[config.KeyPlatformDomain] = ""
	}
	if values[config.KeyEmailTemplatesPath] == config.DefaultEmailTemplatesPath {
		values[config.KeyEmailTemplatesPath] = ""
	}
	if values[config.KeyTimeout] == config.DefaultTimeout.String() {
		values[config.KeyTimeout] = ""
	}
	return values, nil
}

func promptInitValues(values map[string]string, p prompter) error {
	var err error
	ask := func(key, message string, required bool, validate func(interface{}) error) {
		if err != nil {
			return
		}
		var answer string
		answer, err = p.Input(message, values[key], required, validate)
		if err == nil {
			values[key] = answer
		}
	}

	ask(config.KeyEndpoint, "Tenant endpoint URL:", true, validateEndpoint)
	ask(config.KeyTenantID, "Tenant id (leave empty to derive it from the endpoint):", false, nil)
	ask(config.KeyClientID, "Machine-to-machine application id:", true, nil)
	if err != nil {
		return errors.NewGenericError("could not read configuration input", err)
	}

	if values[config.KeyClientSecret] == "" {
		secret, err := p.Secret("Machine-to-machine application secret:")
		if err != nil {
			return errors.NewGenericError("could not read client secret", err)
		}
		values[config.KeyClientSecret] = secret
	}

	ask(config.KeyEmailTemplatesPath, "Template collection path below /api:", false, nil)
	ask(config.KeyTimeout, "HTTP timeout:", false, validateDuration)
	ask(config.KeyStateDB, "Journal database path (leave empty to disable):", false, nil)
	if err != nil {
		return errors.NewGenericError("could not read configuration input", err)
	}
	return nil
}
