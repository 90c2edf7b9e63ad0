// Package config loads ptdump settings from a YAML file and the
// environment.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/robert-malhotra/go-tables/tables"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// levels: GOTABLES_TABLES__CHUNK_TIMES sets tables.chunk_times.
const EnvPrefix = "GOTABLES_"

// Config holds the settings of the command line tools.
type Config struct {
	// LogLevel is a zap level name.
	LogLevel string            `koanf:"log_level"`
	Tables   tables.Parameters `koanf:"tables"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		LogLevel: "warn",
		Tables:   tables.DefaultParameters(),
	}
}

// Load applies the YAML file at path, if path is not empty, and then the
// environment to the defaults.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Tables.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
