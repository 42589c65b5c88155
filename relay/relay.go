// Package relay is the streaming chat relay: it accepts chat, image and
// playground requests, streams them from the upstream model provider and
// re-frames the result for the client as it arrives.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"

	"github.com/yurie-chat/yurie/pkg/eventstream"
	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/llm/provider/openai"
	"github.com/yurie-chat/yurie/pkg/logger"
	"github.com/yurie-chat/yurie/relay/worker"
)

// Streaming routes.
const (
	RouteChat       = "/api/chat"
	RouteImages     = "/api/images"
	RoutePlayground = "/api/playground"
)

// Upstream is the model provider. *openai.Client satisfies it.
type Upstream interface {
	StreamResponse(ctx context.Context, req openai.ResponseRequest) (*openai.Stream, error)
	StreamImage(ctx context.Context, req openai.ImageGeneration) (*openai.Stream, error)
	GenerateImage(ctx context.Context, req openai.ImageGeneration) (string, error)
}

// Relay serves the streaming routes on a fiber app. Other route groups can
// be mounted on the same app with Mount.
type Relay struct {
	config     Config
	upstream   Upstream
	workerPool *worker.Pool
	logger     *slog.Logger
	server     *fiber.App
}

// New creates a Relay. When upstream is nil and config.APIKey is set, an
// OpenAI client is built from config. The publisher receives one TurnEvent
// per finished turn.
func New(config Config, upstream Upstream, publisher eventstream.Publisher, log *slog.Logger) (*Relay, error) {
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	if log == nil {
		log = logger.Nop()
	}
	config.applyDefaults()

	if upstream == nil && config.APIKey != "" {
		client, err := openai.New(openai.Config{
			APIKey:  config.APIKey,
			BaseURL: config.BaseURL,
			Logger:  log,
		})
		if err != nil {
			return nil, err
		}
		upstream = client
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	// Compression buffers output, which would hold back streamed frames.
	app.Use(compress.New(compress.Config{
		Next: func(c *fiber.Ctx) bool {
			switch c.Path() {
			case RouteChat, RoutePlayground:
				return true
			}
			return false
		},
	}))

	wp, err := worker.NewPool(&worker.Config{
		Publisher:  publisher,
		NumWorkers: config.NumWorkers,
		Logger:     log,
	})
	if err != nil {
		return nil, err
	}

	r := &Relay{
		config:     config,
		upstream:   upstream,
		workerPool: wp,
		logger:     log,
		server:     app,
	}

	app.Post(RouteChat, r.handleChat)
	app.Post(RouteImages, r.handleImages)
	app.Post(RoutePlayground, r.handlePlayground)

	return r, nil
}

// Mount registers additional routes on the relay's app.
func (r *Relay) Mount(register func(router fiber.Router)) {
	register(r.server)
}

// Run starts the relay on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"upstream_configured", r.upstream != nil,
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"upstream_configured", r.upstream != nil,
	)

	return r.server.Listener(listener)
}

// Close gracefully shuts down the relay and waits for the worker pool to drain.
func (r *Relay) Close() error {
	err := r.server.Shutdown()
	r.workerPool.Close()
	return err
}

// requireUpstream answers with a configuration error when no upstream
// credential is configured. It reports whether the handler may continue.
func (r *Relay) requireUpstream(c *fiber.Ctx) (bool, error) {
	if r.upstream != nil {
		return true, nil
	}
	return false, r.sendError(c, &llm.ConfigurationError{Setting: openai.CredentialEnv})
}

// sendError writes err as a JSON error response before streaming starts.
func (r *Relay) sendError(c *fiber.Ctx, err error) error {
	status := llm.HTTPStatus(err)
	r.logger.Warn("request failed before streaming",
		"path", c.Path(),
		"status", status,
		"error", err,
	)
	return c.Status(status).JSON(llm.ErrorResponse{Error: err.Error(), Code: llm.Code(err)})
}
