// Package config loads the relay configuration from JSON or YAML files
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/aeroswarm/aeroswarm/core/metrics"
	"github.com/aeroswarm/aeroswarm/core/mission"
	"github.com/aeroswarm/aeroswarm/infra/bridge"
	"github.com/aeroswarm/aeroswarm/infra/planner"
	"github.com/aeroswarm/aeroswarm/infra/ws"
)

type Config struct {
	Server  ws.Config      `json:"server"`
	Mission mission.Config `json:"mission"`
	Planner planner.Config `json:"planner"`
	Metrics metrics.Config `json:"metrics"`
	Bridge  bridge.Config  `json:"bridge"`
	Logging LoggingConfig  `json:"logging"`
}

// Load reads the configuration file, applying K_ environment overrides
// (K_SERVER__ADDR maps to server.addr) and per-section defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Server.SetDefaults()
	cfg.Mission.SetDefaults()
	cfg.Planner.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Bridge.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Mission.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.SetDefaults()
	cfg.Mission.SetDefaults()
	cfg.Planner.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Bridge.SetDefaults()
	cfg.Logging.SetDefaults()
	return cfg
}
