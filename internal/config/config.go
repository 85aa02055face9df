package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment variables read by Load.
// A double underscore separates nesting levels: STUDYDECK_STORAGE__DRIVER.
const EnvPrefix = "STUDYDECK_"

// Config is the application configuration.
type Config struct {
	ConfigFile string        `koanf:"config"`
	Storage    StorageConfig `koanf:"storage" validate:"required"`
	HTTP       HTTPConfig    `koanf:"http"`
	Log        LogConfig     `koanf:"log"`
	Study      StudyConfig   `koanf:"study"`
	Import     ImportConfig  `koanf:"import"`
}

type StorageConfig struct {
	Driver     string `koanf:"driver" validate:"oneof=sqlite redis memory"`
	Path       string `koanf:"path" validate:"required_if=Driver sqlite"`
	RedisAddr  string `koanf:"redis_addr" validate:"required_if=Driver redis"`
	Key        string `koanf:"key" validate:"required"`
	MaxRetries int    `koanf:"max_retries" validate:"min=1,max=100"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" validate:"required"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type StudyConfig struct {
	DuePolicy string `koanf:"due_policy" validate:"oneof=inclusive strict"`
}

type ImportConfig struct {
	ReposDir string `koanf:"repos_dir" validate:"required"`
}

// Flags returns the flag set understood by Load, with defaults.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.String("config", "studydeck.yaml", "Path to a YAML config file (optional)")
	f.String("storage.driver", "sqlite", "Storage backend: sqlite, redis or memory")
	f.String("storage.path", "studydeck.db", "Path to the SQLite database file")
	f.String("storage.redis_addr", "", "Redis address (host:port)")
	f.String("storage.key", "studydeck_flashcard_decks", "Key holding the deck collection")
	f.Int("storage.max_retries", 5, "Attempts per write under concurrent updates")
	f.String("http.addr", ":8080", "HTTP listen address")
	f.String("log.level", "info", "Log level: debug, info, warn or error")
	f.String("log.format", "text", "Log format: text or json")
	f.String("study.due_policy", "inclusive", "Due policy: inclusive (learning cards always due) or strict")
	f.String("import.repos_dir", "repos", "Directory where git sources are cloned")
	return f
}

// Load parses args with f and merges, lowest precedence first: flag defaults,
// the YAML config file, STUDYDECK_ environment variables, explicitly set flags.
func Load(f *pflag.FlagSet, args []string) (*Config, error) {
	if err := f.Parse(args); err != nil {
		return nil, err
	}

	k := koanf.New(".")

	path, _ := f.GetString("config")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// The default config file is optional; an explicitly requested one is not.
		if !errors.Is(err, fs.ErrNotExist) || f.Changed("config") {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		var msgs []string
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("Field: %s, Tag: %s, Param: %s", fe.Namespace(), fe.Tag(), fe.Param()))
		}
		return fmt.Errorf("validation failed: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// envKey maps STUDYDECK_STORAGE__REDIS_ADDR to storage.redis_addr.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
