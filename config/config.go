/*
config.go - Server configuration

PURPOSE:
  Loads the server configuration from, in order of precedence, command
  line flags, FARMENGINE_* environment variables, and an optional YAML
  config file. Everything has a development-friendly default except the
  token secret, which must be set explicitly.

KEYS:
  addr            Listen address                (default :8080)
  db-path         SQLite database file          (default farm.db)
  jwt-secret      HMAC secret for bearer tokens (required)
  jwt-issuer      Issuer claim on minted tokens (default farm-engine)
  cors-origins    Allowed CORS origins
  log-level       zap level: debug|info|warn|error (default info)
  demo-seed       Expose the demo seed endpoint (default false)

SEE ALSO:
  - cmd/server/main.go: flag registration and startup
*/
package config

import (
	"errors"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the resolved server configuration.
type Config struct {
	Addr        string
	DBPath      string
	JWTSecret   string
	JWTIssuer   string
	CORSOrigins []string
	LogLevel    string
	DemoSeed    bool
}

// RegisterFlags declares the config flags on a flag set.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("addr", ":8080", "listen address")
	fs.String("db-path", "farm.db", "sqlite database file")
	fs.String("jwt-secret", "", "HMAC secret for bearer tokens")
	fs.String("jwt-issuer", "farm-engine", "issuer claim on minted tokens")
	fs.StringSlice("cors-origins", []string{"http://localhost:5173", "http://localhost:8080"}, "allowed CORS origins")
	fs.String("log-level", "info", "log level: debug, info, warn or error")
	fs.Bool("demo-seed", false, "expose the demo seed endpoint")
	fs.String("config", "", "path to a YAML config file")
}

// Load resolves the configuration. Flags win over environment variables,
// which win over the config file.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FARMENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Addr:        v.GetString("addr"),
		DBPath:      v.GetString("db-path"),
		JWTSecret:   v.GetString("jwt-secret"),
		JWTIssuer:   v.GetString("jwt-issuer"),
		CORSOrigins: v.GetStringSlice("cors-origins"),
		LogLevel:    v.GetString("log-level"),
		DemoSeed:    v.GetBool("demo-seed"),
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt-secret is required (flag --jwt-secret or FARMENGINE_JWT_SECRET)")
	}
	return cfg, nil
}
