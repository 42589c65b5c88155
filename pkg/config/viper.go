package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yurie-chat/yurie/pkg/dotdir"
)

// Environment variables read without the YURIE_ prefix, for compatibility
// with other OpenAI tooling.
const (
	EnvAPIKey     = "OPENAI_API_KEY"
	EnvModel      = "OPENAI_MODEL"
	EnvImageModel = "OPENAI_IMAGE_MODEL"
	EnvBaseURL    = "OPENAI_BASE_URL"

	// KeyAPIKey is the viper key of the API key. It has no config.toml
	// counterpart.
	KeyAPIKey = "openai.api_key"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads config.toml (if found via
// dotdir resolution), and binds environment variables with the YURIE_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (YURIE_RELAY_LISTEN, OPENAI_MODEL, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("YURIE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// BindEnv with explicit names bypasses the prefix. The first name found
	// in the environment wins.
	_ = v.BindEnv(KeyAPIKey, EnvAPIKey)
	_ = v.BindEnv("openai.model", "YURIE_OPENAI_MODEL", EnvModel)
	_ = v.BindEnv("openai.image_model", "YURIE_OPENAI_IMAGE_MODEL", EnvImageModel)
	_ = v.BindEnv("openai.base_url", "YURIE_OPENAI_BASE_URL", EnvBaseURL)

	return v, nil
}

// FromViper materialises a Config from the resolved viper values.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Relay: RelayConfig{
			Listen:      v.GetString("relay.listen"),
			MaxDuration: Duration(v.GetDuration("relay.max_duration")),
			LogFile:     v.GetString("relay.log_file"),
			LogLevel:    v.GetString("relay.log_level"),
		},
		OpenAI: OpenAIConfig{
			BaseURL:         v.GetString("openai.base_url"),
			Model:           v.GetString("openai.model"),
			ImageModel:      v.GetString("openai.image_model"),
			PlaygroundModel: v.GetString("openai.playground_model"),
		},
		Client: ClientConfig{
			RelayTarget: v.GetString("client.relay_target"),
			Model:       v.GetString("client.model"),
		},
		Storage: StorageConfig{
			SQLitePath: v.GetString("storage.sqlite_path"),
		},
		Models: ModelsConfig{
			CacheTTL: Duration(v.GetDuration("models.cache_ttl")),
		},
		EventStream: EventStreamConfig{
			Provider: v.GetString("eventstream.provider"),
			Brokers:  v.GetString("eventstream.brokers"),
			Topic:    v.GetString("eventstream.topic"),
		},
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.max_duration", time.Duration(d.Relay.MaxDuration))
	v.SetDefault("relay.log_file", d.Relay.LogFile)
	v.SetDefault("relay.log_level", d.Relay.LogLevel)

	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("openai.model", d.OpenAI.Model)
	v.SetDefault("openai.image_model", d.OpenAI.ImageModel)
	v.SetDefault("openai.playground_model", d.OpenAI.PlaygroundModel)

	v.SetDefault("client.relay_target", d.Client.RelayTarget)
	v.SetDefault("client.model", d.Client.Model)

	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)

	v.SetDefault("models.cache_ttl", time.Duration(d.Models.CacheTTL))

	v.SetDefault("eventstream.provider", d.EventStream.Provider)
	v.SetDefault("eventstream.brokers", d.EventStream.Brokers)
	v.SetDefault("eventstream.topic", d.EventStream.Topic)
}
