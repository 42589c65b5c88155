package relay

import (
	"time"

	"github.com/yurie-chat/yurie/pkg/models"
)

// DefaultMaxDuration bounds a streamed turn when Config.MaxDuration is zero.
const DefaultMaxDuration = 60 * time.Second

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// APIKey is the upstream credential. When no Upstream is injected and
	// APIKey is empty, every model route answers with a configuration error.
	APIKey string

	// BaseURL overrides the upstream API base URL.
	BaseURL string

	// DefaultModel is used by /api/chat when the request names no model.
	DefaultModel string

	// ImageModel is used by /api/images and image turns of /api/playground.
	ImageModel string

	// PlaygroundModel is used by /api/playground when the request names no model.
	PlaygroundModel string

	// MaxDuration is the wall-clock limit of a single turn.
	MaxDuration time.Duration

	// NumWorkers sizes the telemetry worker pool.
	NumWorkers uint

	// Catalog decides which models accept a reasoning effort. Defaults to the
	// static catalog.
	Catalog *models.Cache
}

func (c *Config) applyDefaults() {
	if c.DefaultModel == "" {
		c.DefaultModel = "gpt-5"
	}
	if c.ImageModel == "" {
		c.ImageModel = "gpt-image-1"
	}
	if c.PlaygroundModel == "" {
		c.PlaygroundModel = "gpt-4o-mini"
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.Catalog == nil {
		c.Catalog = models.NewCache(models.StaticLoader, models.DefaultTTL)
	}
}
