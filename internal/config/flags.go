package config

import (
	"flag"
	"time"
)

// flagValues holds what was passed on the command line. Only flags that
// were actually set override the other sources.
type flagValues struct {
	configFile      string
	addr            string
	logLevel        string
	logFormat       string
	storeDriver     string
	storeDSN        string
	authSecret      string
	authIssuer      string
	tokenTTL        time.Duration
	shutdownTimeout time.Duration
}

func registerFlags(fs *flag.FlagSet) *flagValues {
	v := &flagValues{}

	fs.StringVar(&v.configFile, "config", "", "Path to a TOML config file")
	fs.StringVar(&v.addr, "addr", DefaultAddr, "HTTP server address")
	fs.StringVar(&v.logLevel, "log-level", DefaultLogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&v.logFormat, "log-format", DefaultLogFormat, "Log format: text, logfmt, json")
	fs.StringVar(&v.storeDriver, "store-driver", DefaultStoreDriver, "Entity store: memory or postgres")
	fs.StringVar(&v.storeDSN, "store-dsn", "", "PostgreSQL connection string")
	fs.StringVar(&v.authSecret, "auth-secret", "", "HMAC secret used to sign and verify tokens")
	fs.StringVar(&v.authIssuer, "auth-issuer", DefaultIssuer, "Expected token issuer")
	fs.DurationVar(&v.tokenTTL, "token-ttl", DefaultTokenTTL, "Lifetime of issued tokens")
	fs.DurationVar(&v.shutdownTimeout, "shutdown-timeout", DefaultShutdownTimeout, "Graceful shutdown timeout")

	return v
}

// apply copies the flags set on fs into cfg
func (v *flagValues) apply(fs *flag.FlagSet, cfg *Config) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = v.addr
		case "log-level":
			cfg.Log.Level = v.logLevel
		case "log-format":
			cfg.Log.Format = v.logFormat
		case "store-driver":
			cfg.Store.Driver = v.storeDriver
		case "store-dsn":
			cfg.Store.DSN = v.storeDSN
		case "auth-secret":
			cfg.Auth.Secret = v.authSecret
		case "auth-issuer":
			cfg.Auth.Issuer = v.authIssuer
		case "token-ttl":
			cfg.Auth.TokenTTL = Duration{v.tokenTTL}
		case "shutdown-timeout":
			cfg.ShutdownTimeout = Duration{v.shutdownTimeout}
		}
	})
}
