// Package cli holds the vexil command's configuration and trusted-input
// loading: environment settings and the feature catalog descriptor file
// that stands in for compiled-in feature declarations when operating on
// snapshot files.
package cli

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds the runtime configuration for the vexil CLI.
type Config struct {
	LogLevel    string `env:"VEXIL_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"VEXIL_LOG_FORMAT" envDefault:"json"`
	ServiceName string `env:"VEXIL_SERVICE_NAME" envDefault:"vexil"`
}

// Load reads configuration from environment variables, applying defaults
// and validating values.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cfg.LogFormat)) {
	case "json", "text":
	default:
		return Config{}, fmt.Errorf("VEXIL_LOG_FORMAT must be \"json\" or \"text\", got %q", cfg.LogFormat)
	}

	return cfg, nil
}
