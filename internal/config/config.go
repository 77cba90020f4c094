// Package config loads todorest settings.
//
// Values are layered, each source overriding the previous one:
//  1. Defaults
//  2. TOML file named by -config or TODOREST_CONFIG
//  3. TODOREST_* environment variables
//  4. Command line flags
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/cirocosta/todorest/internal/logging"
)

// Default values
const (
	DefaultAddr            = ":8080"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultStoreDriver     = DriverMemory
	DefaultIssuer          = "todorest"
	DefaultTokenTTL        = 24 * time.Hour
	DefaultShutdownTimeout = 5 * time.Second
)

// Store drivers
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "TODOREST_"

// ErrMissingSecret is returned by RequireSecret when no signing secret is set
var ErrMissingSecret = errors.New("auth secret is required (auth.secret, TODOREST_AUTH_SECRET or -auth-secret)")

// Config holds every setting of the server and its commands
type Config struct {
	Addr            string   `toml:"addr"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	Log             Log      `toml:"log"`
	Store           Store    `toml:"store"`
	Auth            Auth     `toml:"auth"`
}

// Log configures the process logger
type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Store selects the entity store
type Store struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

// Auth configures bearer token verification
type Auth struct {
	Secret   string   `toml:"secret"`
	Issuer   string   `toml:"issuer"`
	TokenTTL Duration `toml:"token_ttl"`
}

// Duration is a time.Duration read from strings such as "30s"
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Load builds a Config from defaults, the config file, the environment and
// the flags in args. Flags are registered on fs, which may already carry
// command specific flags.
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	if fs == nil {
		fs = flag.NewFlagSet("todorest", flag.ContinueOnError)
	}

	cfg := &Config{}
	setDefaults(cfg)

	flags := registerFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	path := flags.configFile
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := loadConfigFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	flags.apply(fs, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	cfg.Addr = DefaultAddr
	cfg.ShutdownTimeout = Duration{DefaultShutdownTimeout}
	cfg.Log = Log{Level: DefaultLogLevel, Format: DefaultLogFormat}
	cfg.Store = Store{Driver: DefaultStoreDriver}
	cfg.Auth = Auth{Issuer: DefaultIssuer, TokenTTL: Duration{DefaultTokenTTL}}
}

func loadConfigFile(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}

	return nil
}

// loadFromEnv overrides cfg with the TODOREST_* variables that are set
func loadFromEnv(cfg *Config) error {
	strs := map[string]*string{
		"ADDR":         &cfg.Addr,
		"LOG_LEVEL":    &cfg.Log.Level,
		"LOG_FORMAT":   &cfg.Log.Format,
		"STORE_DRIVER": &cfg.Store.Driver,
		"STORE_DSN":    &cfg.Store.DSN,
		"AUTH_SECRET":  &cfg.Auth.Secret,
		"AUTH_ISSUER":  &cfg.Auth.Issuer,
	}
	for name, target := range strs {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*target = v
		}
	}

	durations := map[string]*Duration{
		"AUTH_TOKEN_TTL":   &cfg.Auth.TokenTTL,
		"SHUTDOWN_TIMEOUT": &cfg.ShutdownTimeout,
	}
	for name, target := range durations {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			continue
		}
		if err := target.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
	}

	return nil
}

// Validate checks settings that every command relies on
func (c *Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}

	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	if c.Auth.TokenTTL.Duration <= 0 {
		errs = append(errs, errors.New("auth.token_ttl must be positive"))
	}
	if c.ShutdownTimeout.Duration <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}

	return errors.Join(errs...)
}

// RequireSecret reports ErrMissingSecret when tokens can't be signed or verified
func (c *Config) RequireSecret() error {
	if c.Auth.Secret == "" {
		return ErrMissingSecret
	}
	return nil
}
