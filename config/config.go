package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/agriexport/dispatchboard/core/dispatch"
	"github.com/agriexport/dispatchboard/core/metrics"
	"github.com/agriexport/dispatchboard/core/model"
	"github.com/agriexport/dispatchboard/infra/monitoring"
	"github.com/agriexport/dispatchboard/infra/mqtt"
)

// EnvPrefix selects the environment variables that override file values.
// K_MQTT__BROKER sets mqtt.broker.
const EnvPrefix = "K_"

type Config struct {
	HTTP     HTTPConfig        `json:"http"`
	Catalog  CatalogConfig     `json:"catalog"`
	Dispatch dispatch.Config   `json:"dispatch"`
	MQTT     mqtt.Config       `json:"mqtt"`
	Metrics  metrics.Config    `json:"metrics"`
	Logging  LoggingConfig     `json:"logging"`
	Sentry   monitoring.Config `json:"sentry"`
}

// HTTPConfig configures the board API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token enables bearer authentication when non-empty.
	Token string `json:"token"`
}

// CatalogConfig points at the seed file loaded at startup.
type CatalogConfig struct {
	SeedPath string `json:"seed_path"`
}

// DryRun reports whether no broker is configured. Notices are then kept in
// memory and acknowledged immediately.
func (c *Config) DryRun() bool { return c.MQTT.Broker == "" }

// DefaultMode returns the parsed dispatch.default_mode.
func (c *Config) DefaultMode() model.Mode {
	m, err := model.ParseMode(c.Dispatch.DefaultMode)
	if err != nil {
		return model.ModeFarmPickup
	}
	return m
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	c.Dispatch.SetDefaults()
	if !c.DryRun() {
		c.MQTT.SetDefaults()
	}
	c.Logging.SetDefaults()
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Catalog.SeedPath == "" {
		errs = append(errs, errors.New("catalog: seed_path is required"))
	}
	if err := c.Dispatch.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := model.ParseMode(c.Dispatch.DefaultMode); err != nil {
		errs = append(errs, fmt.Errorf("dispatch: default_mode: %w", err))
	}
	if !c.DryRun() {
		if err := c.MQTT.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range c.Metrics.Sinks {
		if s.Type == "" {
			errs = append(errs, errors.New("metrics: sink type is required"))
		}
	}
	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Load reads the file at path, applies K_ environment overrides, defaults
// and validation. An empty path loads from the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
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
	}
	// Optional environment overrides
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
