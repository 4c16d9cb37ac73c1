package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mailtmpl/cli/internal/errors"
	"github.com/spf13/viper"
)

// Configuration keys, as they appear lowercased inside viper. The matching
// environment variables and .env entries are the uppercase forms.
const (
	KeyEndpoint           = "endpoint"
	KeyTenantID           = "tenant_id"
	KeyClientID           = "client_id"
	KeyClientSecret       = "client_secret"
	KeyEmailTemplatesPath = "email_templates_path"
	KeyPlatformDomain     = "platform_domain"
	KeyTimeout            = "timeout"
	KeyStateDB            = "state_db"
)

// EnvPrefix is accepted in front of every environment variable name.
const EnvPrefix = "MAILTMPL"

const (
	DefaultEmailTemplatesPath = "email-templates"
	DefaultPlatformDomain     = "logto.app"
	DefaultTimeout            = 30 * time.Second
	DefaultEnvFile            = ".env"
)

// Keys lists every configuration key in the order they are written to a .env file.
var Keys = []string{
	KeyEndpoint,
	KeyTenantID,
	KeyClientID,
	KeyClientSecret,
	KeyEmailTemplatesPath,
	KeyPlatformDomain,
	KeyTimeout,
	KeyStateDB,
}

// Config is the resolved configuration for one invocation. It is built once
// at startup and handed to every collaborator.
type Config struct {
	Endpoint           string
	TenantID           string
	ClientID           string
	ClientSecret       string
	EmailTemplatesPath string
	PlatformDomain     string
	Timeout            time.Duration
	StateDB            string
}

// NewViper returns a viper instance with defaults and environment bindings.
// Both NAME and MAILTMPL_NAME are honored, the prefixed form first.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(KeyEmailTemplatesPath, DefaultEmailTemplatesPath)
	v.SetDefault(KeyPlatformDomain, DefaultPlatformDomain)
	v.SetDefault(KeyTimeout, DefaultTimeout.String())

	for _, key := range Keys {
		upper := strings.ToUpper(key)
		_ = v.BindEnv(key, EnvPrefix+"_"+upper, upper)
	}
	return v
}

// ReadEnvFile merges a dotenv file into v. A missing file is only an error
// when required is set.
func ReadEnvFile(v *viper.Viper, path string, required bool) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return errors.NewConfigError(fmt.Sprintf("cannot read env file %s", path), err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return errors.NewConfigError(fmt.Sprintf("failed to parse env file %s", path), err)
	}
	return nil
}

// Resolve validates the values held by v and produces a Config.
func Resolve(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Endpoint:           strings.TrimRight(strings.TrimSpace(v.GetString(KeyEndpoint)), "/"),
		TenantID:           strings.TrimSpace(v.GetString(KeyTenantID)),
		ClientID:           strings.TrimSpace(v.GetString(KeyClientID)),
		ClientSecret:       strings.TrimSpace(v.GetString(KeyClientSecret)),
		EmailTemplatesPath: NormalizeTemplatesPath(v.GetString(KeyEmailTemplatesPath)),
		PlatformDomain:     strings.Trim(strings.TrimSpace(v.GetString(KeyPlatformDomain)), "."),
		StateDB:            strings.TrimSpace(v.GetString(KeyStateDB)),
	}

	timeout, err := parseTimeout(v.GetString(KeyTimeout))
	if err != nil {
		return nil, err
	}
	cfg.Timeout = timeout

	var missing []string
	if cfg.Endpoint == "" {
		missing = append(missing, "ENDPOINT")
	}
	if cfg.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return nil, errors.NewConfigError(
			fmt.Sprintf("missing required configuration: %s (set them in the environment or a .env file)", strings.Join(missing, ", ")),
			nil,
		)
	}

	u, err := url.Parse(cfg.Endpoint)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.NewConfigError(fmt.Sprintf("ENDPOINT %q is not an absolute http(s) URL", cfg.Endpoint), err)
	}

	if cfg.PlatformDomain == "" {
		cfg.PlatformDomain = DefaultPlatformDomain
	}

	if cfg.TenantID == "" {
		cfg.TenantID = DeriveTenantID(u.Hostname(), cfg.PlatformDomain)
	}
	if cfg.TenantID == "" {
		return nil, errors.NewConfigError(
			fmt.Sprintf("cannot derive tenant id from endpoint host %q (expected <tenant>.%s); set TENANT_ID", u.Hostname(), cfg.PlatformDomain),
			nil,
		)
	}

	return cfg, nil
}

// DeriveTenantID returns the tenant id embedded in a <tenant>.<domain> host,
// or "" when the host does not have that shape.
func DeriveTenantID(host, platformDomain string) string {
	host = strings.ToLower(host)
	suffix := "." + strings.ToLower(platformDomain)
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	id := strings.TrimSuffix(host, suffix)
	if id == "" || strings.Contains(id, ".") {
		return ""
	}
	return id
}

// NormalizeTemplatesPath trims slashes from both ends and falls back to the default segment.
func NormalizeTemplatesPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return DefaultEmailTemplatesPath
	}
	return p
}

// BasePath is the collection path of the template resource, e.g. /api/email-templates.
func (c *Config) BasePath() string {
	return "/api/" + NormalizeTemplatesPath(c.EmailTemplatesPath)
}

// TokenURL is the OAuth2 token endpoint of the tenant.
func (c *Config) TokenURL() string {
	return c.Endpoint + "/oidc/token"
}

// Resource is the API resource indicator the access token is requested for.
func (c *Config) Resource() string {
	return fmt.Sprintf("https://%s.%s/api", c.TenantID, c.PlatformDomain)
}

func parseTimeout(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.NewConfigError(fmt.Sprintf("TIMEOUT %q is not a duration", raw), err)
	}
	if d <= 0 {
		return 0, errors.NewConfigError(fmt.Sprintf("TIMEOUT %q must be positive", raw), nil)
	}
	return d, nil
}

// WriteEnvFile stores values as a dotenv file at path. Empty values are skipped.
func WriteEnvFile(path string, values map[string]string) error {
	v := viper.New()
	v.SetConfigType("env")
	for _, key := range Keys {
		if val := strings.TrimSpace(values[key]); val != "" {
			v.Set(key, val)
		}
	}
	if err := v.WriteConfigAs(path); err != nil {
		return errors.NewGenericError(fmt.Sprintf("failed to write %s", path), err)
	}
	return os.Chmod(path, 0600)
}
