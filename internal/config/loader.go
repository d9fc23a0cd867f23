package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DotEnvPaths are tried in order; the first readable file wins.
var DotEnvPaths = []string{".env", "../.env", "../../.env"}

// LoadDotEnv loads the first .env file found into the process environment.
// It returns the path that was loaded, or "" when none was found.
func LoadDotEnv(paths ...string) string {
	if len(paths) == 0 {
		paths = DotEnvPaths
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err == nil {
			return path
		}
	}
	return ""
}

// Load builds a Config by layering, from low to high precedence:
//  1. defaults (New)
//  2. YAML file named by CONFIG_FILE, if set
//  3. environment variables, lower-cased (RIOT_API_KEY -> riot_api_key)
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	if path := LoadDotEnv(); path != "" {
		slog.Info("loaded .env", "tag", "config", "path", path)
	}

	k := koanf.New(".")

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadConfig, path, err)
		}
	}

	// Keys stay flat; underscores are part of the koanf tags.
	envProvider := env.Provider("", ".", strings.ToLower)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %v", ErrLoadConfig, err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
