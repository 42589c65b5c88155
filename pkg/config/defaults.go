package config

import "time"

// Event stream providers.
const (
	EventStreamNop   = "nop"
	EventStreamKafka = "kafka"
)

const (
	defaultRelayListen      = ":8080"
	defaultMaxDuration      = 60 * time.Second
	defaultBaseURL          = "https://api.openai.com/v1"
	defaultModel            = "gpt-5"
	defaultImageModel       = "gpt-image-1"
	defaultPlaygroundModel  = "gpt-4o-mini"
	defaultRelayTarget      = "http://localhost:8080"
	defaultClientModel      = "gpt-5-nano"
	defaultModelsCacheTTL   = 5 * time.Minute
	defaultEventStreamTopic = "yurie.turns"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:      defaultRelayListen,
			MaxDuration: Duration(defaultMaxDuration),
		},
		OpenAI: OpenAIConfig{
			BaseURL:         defaultBaseURL,
			Model:           defaultModel,
			ImageModel:      defaultImageModel,
			PlaygroundModel: defaultPlaygroundModel,
		},
		Client: ClientConfig{
			RelayTarget: defaultRelayTarget,
			Model:       defaultClientModel,
		},
		Models: ModelsConfig{
			CacheTTL: Duration(defaultModelsCacheTTL),
		},
		EventStream: EventStreamConfig{
			Provider: EventStreamNop,
			Topic:    defaultEventStreamTopic,
		},
	}
}
