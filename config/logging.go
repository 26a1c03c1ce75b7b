package config

import (
	"fmt"
	"os"
	"strings"
)

// LoggingConfig selects the log output format for every component.
type LoggingConfig struct {
	// Env chooses the format: "dev" for human-readable console output,
	// "prod" for JSON lines.
	Env string `json:"env"`
}

// SetDefaults applies sane defaults. An unset value falls back to the
// APP_ENV environment variable, then to "prod".
func (c *LoggingConfig) SetDefaults() {
	if c.Env == "" {
		c.Env = strings.ToLower(os.Getenv("APP_ENV"))
	}
	if c.Env == "" {
		c.Env = "prod"
	}
}

// Validate checks mandatory fields.
func (c LoggingConfig) Validate() error {
	if c.Env != "dev" && c.Env != "prod" {
		return fmt.Errorf("unknown logging env %s", c.Env)
	}
	return nil
}
