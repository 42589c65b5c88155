package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the persistent yurie configuration stored as config.toml in the
// .yurie/ directory. The OpenAI API key is never stored here; it only comes
// from the OPENAI_API_KEY environment variable.
type Config struct {
	Version     int               `toml:"version"`
	Relay       RelayConfig       `toml:"relay"`
	OpenAI      OpenAIConfig      `toml:"openai"`
	Client      ClientConfig      `toml:"client"`
	Storage     StorageConfig     `toml:"storage"`
	Models      ModelsConfig      `toml:"models"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// RelayConfig holds settings for "yurie serve".
type RelayConfig struct {
	Listen      string   `toml:"listen,omitempty"`
	MaxDuration Duration `toml:"max_duration,omitempty"`

	// LogFile, when set, receives JSON logs while the terminal gets pretty
	// output.
	LogFile  string `toml:"log_file,omitempty"`
	LogLevel string `toml:"log_level,omitempty"`
}

// OpenAIConfig holds upstream provider settings.
type OpenAIConfig struct {
	BaseURL         string `toml:"base_url,omitempty"`
	Model           string `toml:"model,omitempty"`
	ImageModel      string `toml:"image_model,omitempty"`
	PlaygroundModel string `toml:"playground_model,omitempty"`
}

// ClientConfig holds settings for "yurie chat". RelayTarget is a full URL.
type ClientConfig struct {
	RelayTarget string `toml:"relay_target,omitempty"`
	Model       string `toml:"model,omitempty"`
}

// StorageConfig holds the local chat history location. Empty keeps history
// in memory for the lifetime of the process.
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path,omitempty"`
}

// ModelsConfig holds model catalog settings.
type ModelsConfig struct {
	CacheTTL Duration `toml:"cache_ttl,omitempty"`
}

// EventStreamConfig selects where turn telemetry is published.
type EventStreamConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// BrokerList splits the comma separated broker list.
func (e EventStreamConfig) BrokerList() []string {
	var out []string
	for b := range strings.SplitSeq(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Duration is a time.Duration stored as a string such as "60s" in TOML.
type Duration time.Duration

func (d Duration) String() string {
	if d == 0 {
		return ""
	}
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func durationKey(name string, field func(c *Config) *Duration) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return field(c).String() },
		set: func(c *Config, v string) error {
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			if d < 0 {
				return fmt.Errorf("invalid value for %s: must not be negative", name)
			}
			*field(c) = d
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"relay.listen":            stringKey(func(c *Config) *string { return &c.Relay.Listen }),
	"relay.max_duration":      durationKey("relay.max_duration", func(c *Config) *Duration { return &c.Relay.MaxDuration }),
	"relay.log_file":          stringKey(func(c *Config) *string { return &c.Relay.LogFile }),
	"openai.base_url":         stringKey(func(c *Config) *string { return &c.OpenAI.BaseURL }),
	"openai.model":            stringKey(func(c *Config) *string { return &c.OpenAI.Model }),
	"openai.image_model":      stringKey(func(c *Config) *string { return &c.OpenAI.ImageModel }),
	"openai.playground_model": stringKey(func(c *Config) *string { return &c.OpenAI.PlaygroundModel }),
	"client.relay_target":     stringKey(func(c *Config) *string { return &c.Client.RelayTarget }),
	"client.model":            stringKey(func(c *Config) *string { return &c.Client.Model }),
	"storage.sqlite_path":     stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"models.cache_ttl":        durationKey("models.cache_ttl", func(c *Config) *Duration { return &c.Models.CacheTTL }),
	"relay.log_level": {
		get: func(c *Config) string { return c.Relay.LogLevel },
		set: func(c *Config, v string) error {
			if err := ValidateLogLevel(v); err != nil {
				return fmt.Errorf("invalid value for relay.log_level: %w", err)
			}
			c.Relay.LogLevel = v
			return nil
		},
	},
	"eventstream.provider": {
		get: func(c *Config) string { return c.EventStream.Provider },
		set: func(c *Config, v string) error {
			switch v {
			case EventStreamNop, EventStreamKafka:
				c.EventStream.Provider = v
				return nil
			}
			return fmt.Errorf("invalid value for eventstream.provider: %q (available: %s, %s)", v, EventStreamNop, EventStreamKafka)
		},
	},
	"eventstream.brokers": stringKey(func(c *Config) *string { return &c.EventStream.Brokers }),
	"eventstream.topic":   stringKey(func(c *Config) *string { return &c.EventStream.Topic }),
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"relay.listen",
	"relay.max_duration",
	"relay.log_file",
	"relay.log_level",
	"openai.base_url",
	"openai.model",
	"openai.image_model",
	"openai.playground_model",
	"client.relay_target",
	"client.model",
	"storage.sqlite_path",
	"models.cache_ttl",
	"eventstream.provider",
	"eventstream.brokers",
	"eventstream.topic",
}

// ValidateLogLevel accepts "", debug, info, warn and error.
func ValidateLogLevel(name string) error {
	if name == "" {
		return nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("unknown log level %q (available: debug, info, warn, error)", name)
	}
	return nil
}
