package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/yurie-chat/yurie/pkg/dotdir"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

// Configer reads and writes config.toml for the "yurie config" commands.
type Configer struct {
	targetPath string
}

// NewConfiger resolves the .yurie/ directory. When none exists, LoadConfig
// returns defaults and SaveConfig creates ~/.yurie/.
func NewConfiger(override string) (*Configer, error) {
	ddm := dotdir.NewManager()
	target, err := ddm.Target(override)
	if err != nil {
		return nil, err
	}

	if target == "" {
		return &Configer{}, nil
	}

	path := filepath.Join(target, configFile)
	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return &Configer{targetPath: path}, nil
}

// ValidConfigKeys returns every supported configuration key in TOML
// section order.
func ValidConfigKeys() []string {
	out := make([]string, 0, len(orderedKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

// GetTarget returns the config.toml path, or "" when unresolved.
func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml. A missing file yields NewDefaultConfig();
// fields absent from the file keep their defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	if c.targetPath == "" {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	fillDuration := func(dst *Duration, def Duration) {
		if *dst == 0 {
			*dst = def
		}
	}

	fill(&cfg.Relay.Listen, d.Relay.Listen)
	fillDuration(&cfg.Relay.MaxDuration, d.Relay.MaxDuration)

	fill(&cfg.OpenAI.BaseURL, d.OpenAI.BaseURL)
	fill(&cfg.OpenAI.Model, d.OpenAI.Model)
	fill(&cfg.OpenAI.ImageModel, d.OpenAI.ImageModel)
	fill(&cfg.OpenAI.PlaygroundModel, d.OpenAI.PlaygroundModel)

	fill(&cfg.Client.RelayTarget, d.Client.RelayTarget)
	fill(&cfg.Client.Model, d.Client.Model)

	fillDuration(&cfg.Models.CacheTTL, d.Models.CacheTTL)

	fill(&cfg.EventStream.Provider, d.EventStream.Provider)
	fill(&cfg.EventStream.Topic, d.EventStream.Topic)
}

// SaveConfig writes cfg to config.toml, creating ~/.yurie/ when no
// directory was resolved.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	if c.targetPath == "" {
		dir, err := dotdir.NewManager().Ensure("")
		if err != nil {
			return err
		}
		c.targetPath = filepath.Join(dir, configFile)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue loads the config, sets key to value, and saves it.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}
	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string form of key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}
	return info.get(cfg), nil
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}
	return cfg, nil
}
