package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Travis-Britz/ddnsrelay"
	"go.yaml.in/yaml/v3"
)

// Config is the relay server configuration.
type Config struct {
	Credentials Credentials `yaml:"credentials"`
	Cloudflare  Cloudflare  `yaml:"cloudflare"`
	Server      Server      `yaml:"server"`
}

type Credentials struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type Cloudflare struct {
	APIToken string `yaml:"api_token"`
	ZoneID   string `yaml:"zone_id"`
	ZoneName string `yaml:"zone_name,omitempty"`
}

type Server struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	TrustedProxies  []string      `yaml:"trusted_proxies,omitempty"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	// MetricsPort serves /metrics on its own listener. Zero disables it.
	MetricsPort int `yaml:"metrics_port,omitempty"`
}

const (
	DefaultUsername = "ddns"
	DefaultPassword = "pass123"
	DefaultPort     = 5000
)

// Default returns the configuration used for anything a file or the environment leaves out.
func Default() Config {
	return Config{
		Credentials: Credentials{Username: DefaultUsername, Password: DefaultPassword},
		Server: Server{
			Host:            "127.0.0.1",
			Port:            DefaultPort,
			ProviderTimeout: 30 * time.Second,
		},
	}
}

// Load reads the YAML file at path over the defaults,
// replaces string values of the form ${VAR} with the environment variable,
// and applies environment overrides.
// A missing file is not an error; the defaults are used.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("reading config file: %w", err)
	default:
		if err := VerifyPermissions(path); err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.expandEnv()
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) expandEnv() {
	for _, s := range []*string{
		&c.Credentials.Username,
		&c.Credentials.Password,
		&c.Cloudflare.APIToken,
		&c.Cloudflare.ZoneID,
		&c.Cloudflare.ZoneName,
		&c.Server.Host,
	} {
		*s = expandRef(*s)
	}
}

// expandRef replaces a value that is exactly ${VAR} with the variable's value.
// Anything else is returned unchanged, so secrets may contain '$'.
func expandRef(s string) string {
	name, ok := strings.CutPrefix(s, "${")
	if !ok {
		return s
	}
	name, ok = strings.CutSuffix(name, "}")
	if !ok || name == "" || strings.ContainsAny(name, "${} ") {
		return s
	}
	return os.Getenv(name)
}

// ApplyEnv overrides settings from DDNS_USERNAME, DDNS_PASSWORD, DDNS_CF_API_TOKEN, DDNS_CF_ZONE_ID and DDNS_PORT.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for env, dst := range map[string]*string{
		"DDNS_USERNAME":     &c.Credentials.Username,
		"DDNS_PASSWORD":     &c.Credentials.Password,
		"DDNS_CF_API_TOKEN": &c.Cloudflare.APIToken,
		"DDNS_CF_ZONE_ID":   &c.Cloudflare.ZoneID,
	} {
		if v, ok := lookup(env); ok {
			*dst = v
		}
	}
	if v, ok := lookup("DDNS_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing DDNS_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate reports settings the server cannot start with.
// Missing Cloudflare settings are allowed; updates then fail per request.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("server.metrics_port %d is out of range", c.Server.MetricsPort))
	}
	if c.Server.MetricsPort != 0 && c.Server.MetricsPort == c.Server.Port {
		errs = append(errs, errors.New("server.metrics_port must differ from server.port"))
	}
	if c.Server.ProviderTimeout <= 0 {
		errs = append(errs, errors.New("server.provider_timeout must be positive"))
	}
	if _, err := ddnsrelay.ParsePrefixes(c.Server.TrustedProxies...); err != nil {
		errs = append(errs, fmt.Errorf("server.trusted_proxies: %w", err))
	}
	if c.Credentials.Username == "" || c.Credentials.Password == "" {
		errs = append(errs, errors.New("credentials.username and credentials.password cannot be empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// UsesDefaultCredentials reports whether the built-in password is still in place.
func (c Config) UsesDefaultCredentials() bool {
	return c.Credentials.Password == DefaultPassword
}

// CloudflareConfigured reports whether updates can reach Cloudflare.
func (c Config) CloudflareConfigured() bool {
	return c.Cloudflare.APIToken != "" && (c.Cloudflare.ZoneID != "" || c.Cloudflare.ZoneName != "")
}
