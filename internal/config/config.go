// Package config loads recsql settings from an optional YAML file,
// RECSQL_ prefixed environment variables and command-line flags, in
// increasing order of precedence.
//
//	database:
//	  driver: sqlite3
//	  dsn: recsql.db
//	  dialect: ""          # derived from the driver when empty
//	schemas: [schemas]
//	log:
//	  level: info          # debug|info|warn|error
//	  format: text         # text|json
//	authz:
//	  model: ""            # casbin model file, built-in when empty
//	  policy: ""           # casbin policy CSV file
//	  filters:
//	    - {entity: Person, mode: read, clause: "owner = :user"}
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/recsql/internal/authz"
	"github.com/roach88/recsql/internal/dialect"
)

// EnvPrefix prefixes every environment variable: RECSQL_DATABASE_DSN
// sets database.dsn.
const EnvPrefix = "RECSQL_"

// Config is the complete recsql configuration.
type Config struct {
	Database Database `mapstructure:"database"`
	Schemas  []string `mapstructure:"schemas"`
	Log      Log      `mapstructure:"log"`
	Authz    Authz    `mapstructure:"authz"`
}

type Database struct {
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn"`
	Dialect string `mapstructure:"dialect"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Authz selects the authorizer. A policy file yields a casbin Policy,
// filters alone a Static authorizer, and nothing at all allows all.
type Authz struct {
	Model   string   `mapstructure:"model"`
	Policy  string   `mapstructure:"policy"`
	Filters []Filter `mapstructure:"filters"`
}

// Filter is the security clause of one entity in one mode. ":user"
// expands to the quoted user name. A list rather than a map: viper
// lower-cases map keys, entity names are case-sensitive.
type Filter struct {
	Entity string `mapstructure:"entity"`
	Mode   string `mapstructure:"mode"`
	Clause string `mapstructure:"clause"`
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"driver":     "database.driver",
	"dsn":        "database.dsn",
	"dialect":    "database.dialect",
	"schemas":    "schemas",
	"log-level":  "log.level",
	"log-format": "log.format",
}

// Load reads the configuration. An explicit path must exist; without one,
// recsql.yaml in the working directory is used when present. Flags from fs
// that were set on the command line override everything else.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "recsql.db")
	v.SetDefault("schemas", []string{"schemas"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("recsql")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	// RECSQL_LOG_LEVEL -> log.level
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		prop := strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(key, EnvPrefix), "_", "."))
		if prop == "schemas" {
			v.Set(prop, strings.Split(value, ","))
			continue
		}
		v.Set(prop, value)
	}

	if fs != nil {
		for flag, key := range flagKeys {
			f := fs.Lookup(flag)
			if f == nil || !f.Changed {
				continue
			}
			// Set, not BindPFlag: environment values above are overrides too.
			if f.Value.Type() == "stringSlice" {
				list, err := fs.GetStringSlice(flag)
				if err != nil {
					return nil, fmt.Errorf("flag %s: %w", flag, err)
				}
				v.Set(key, list)
				continue
			}
			v.Set(key, f.Value.String())
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Database.Driver == "" {
		return fmt.Errorf("database.driver is required")
	}
	if _, err := c.Dialect(); err != nil {
		return err
	}
	if len(c.Schemas) == 0 {
		return fmt.Errorf("schemas: at least one directory is required")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: must be text or json", c.Log.Format)
	}
	for i, f := range c.Authz.Filters {
		if f.Entity == "" {
			return fmt.Errorf("authz.filters[%d]: entity is required", i)
		}
		switch authz.Mode(f.Mode) {
		case authz.Read, authz.Write:
		default:
			return fmt.Errorf("authz.filters[%d]: mode %q: must be read or write", i, f.Mode)
		}
	}
	return nil
}

// Dialect returns the configured dialect, or the driver's when unset.
func (c *Config) Dialect() (dialect.Dialect, error) {
	if c.Database.Dialect != "" {
		return dialect.ByName(c.Database.Dialect)
	}
	return dialect.ForDriver(c.Database.Driver)
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", c.Log.Level, err)
	}
	return l, nil
}

// Logger builds the slog logger described by the log section.
func (c *Config) Logger(w io.Writer) (*slog.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// Authorizer builds the authorizer described by the authz section.
func (c *Config) Authorizer() (authz.Authorizer, error) {
	a := c.Authz
	if a.Policy == "" {
		if len(a.Filters) == 0 {
			return authz.AllowAll{}, nil
		}
		filters := map[authz.Mode]map[string]string{authz.Read: {}, authz.Write: {}}
		for _, f := range a.Filters {
			filters[authz.Mode(f.Mode)][f.Entity] = f.Clause
		}
		return authz.Static{Filters: filters}, nil
	}

	var modelText string
	if a.Model != "" {
		data, err := os.ReadFile(a.Model)
		if err != nil {
			return nil, fmt.Errorf("authz model: %w", err)
		}
		modelText = string(data)
	}
	policyCSV, err := os.ReadFile(a.Policy)
	if err != nil {
		return nil, fmt.Errorf("authz policy: %w", err)
	}
	p, err := authz.NewPolicy(modelText, string(policyCSV))
	if err != nil {
		return nil, err
	}
	for _, f := range a.Filters {
		p.WithFilter(authz.Mode(f.Mode), f.Entity, f.Clause)
	}
	return p, nil
}
