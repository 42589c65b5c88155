// Package servecmder provides the serve command, which runs the relay and
// the auxiliary API on one listener.
package servecmder

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yurie-chat/yurie/api"
	"github.com/yurie-chat/yurie/pkg/config"
	"github.com/yurie-chat/yurie/pkg/eventstream"
	"github.com/yurie-chat/yurie/pkg/eventstream/kafka"
	"github.com/yurie-chat/yurie/pkg/eventstream/nop"
	"github.com/yurie-chat/yurie/pkg/logger"
	"github.com/yurie-chat/yurie/pkg/models"
	"github.com/yurie-chat/yurie/relay"
)

type serveCommander struct {
	flags struct {
		listen          string
		baseURL         string
		model           string
		imageModel      string
		playgroundModel string
		maxDuration     time.Duration
		cacheTTL        time.Duration
		eventStream     string
		kafkaBrokers    string
		kafkaTopic      string
		logFile         string
		logLevel        string
	}

	viper  *viper.Viper
	debug  bool
	logger *slog.Logger
}

var serveFlags = []string{
	config.FlagListen,
	config.FlagBaseURL,
	config.FlagServeModel,
	config.FlagImageModel,
	config.FlagPlaygroundModel,
	config.FlagMaxDuration,
	config.FlagModelsCacheTTL,
	config.FlagEventStream,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagLogFile,
	config.FlagLogLevel,
}

const serveLongDesc string = `Run the yurie relay.

The relay streams OpenAI Responses API turns to clients as server-sent
events (/api/chat), generates images (/api/images), streams plain text for
the playground (/api/playground) and serves the model catalog, preferences
and chat stubs under /api.

The OpenAI API key is read only from the OPENAI_API_KEY environment
variable. Without it the model routes answer with a configuration error.

Examples:
  yurie serve
  yurie serve --listen :9000 --model gpt-5-mini
  yurie serve --eventstream-provider kafka --kafka-brokers localhost:9092
  yurie serve --log-file relay.log --log-level warn`

const serveShortDesc string = "Run the yurie relay"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.flags.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagBaseURL, &cmder.flags.baseURL)
	config.AddStringFlag(cmd, config.Flags, config.FlagServeModel, &cmder.flags.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagImageModel, &cmder.flags.imageModel)
	config.AddStringFlag(cmd, config.Flags, config.FlagPlaygroundModel, &cmder.flags.playgroundModel)
	config.AddDurationFlag(cmd, config.Flags, config.FlagMaxDuration, &cmder.flags.maxDuration)
	config.AddDurationFlag(cmd, config.Flags, config.FlagModelsCacheTTL, &cmder.flags.cacheTTL)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventStream, &cmder.flags.eventStream)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.flags.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &cmder.flags.kafkaTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.flags.logFile)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogLevel, &cmder.flags.logLevel)

	return cmd
}

func (c *serveCommander) run() error {
	cfg := config.FromViper(c.viper)

	var closeLog func() error
	var err error
	c.logger, closeLog, err = newLogger(c.debug, cfg.Relay, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	apiKey := c.viper.GetString(config.KeyAPIKey)
	if apiKey == "" {
		c.logger.Warn("no upstream credential configured", "env", config.EnvAPIKey)
	}

	publisher, err := newPublisher(cfg.EventStream, c.logger)
	if err != nil {
		return err
	}

	catalog := models.NewCache(models.StaticLoader, time.Duration(cfg.Models.CacheTTL))

	r, err := relay.New(relay.Config{
		ListenAddr:      cfg.Relay.Listen,
		APIKey:          apiKey,
		BaseURL:         cfg.OpenAI.BaseURL,
		DefaultModel:    cfg.OpenAI.Model,
		ImageModel:      cfg.OpenAI.ImageModel,
		PlaygroundModel: cfg.OpenAI.PlaygroundModel,
		MaxDuration:     time.Duration(cfg.Relay.MaxDuration),
		Catalog:         catalog,
	}, nil, publisher, c.logger)
	if err != nil {
		_ = publisher.Close()
		return fmt.Errorf("creating relay: %w", err)
	}

	apiServer := api.NewServer(api.Config{DefaultModel: cfg.Client.Model}, catalog, c.logger)
	r.Mount(apiServer.Register)

	errChan := make(chan error, 1)
	go func() {
		errChan <- r.Run()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case err := <-errChan:
		if err != nil {
			runErr = fmt.Errorf("relay error: %w", err)
		}
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	}

	return errors.Join(runErr, r.Close(), publisher.Close())
}

// newLogger builds the relay logger. Without a log file it writes JSON to
// stdout. With one, records go as JSON to the file and pretty to console.
func newLogger(debug bool, cfg config.RelayConfig, console io.Writer) (*slog.Logger, func() error, error) {
	if err := config.ValidateLogLevel(cfg.LogLevel); err != nil {
		return nil, nil, err
	}

	opts := func(extra ...logger.Option) []logger.Option {
		return append([]logger.Option{
			logger.WithDebug(debug),
			logger.WithSource(debug),
			logger.WithLevel(cfg.LogLevel),
		}, extra...)
	}

	if cfg.LogFile == "" {
		return logger.New(opts(logger.WithJSON(true))...), func() error { return nil }, nil
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	log := logger.Multi(
		logger.New(opts(logger.WithPretty(true), logger.WithWriter(console))...),
		logger.New(opts(logger.WithJSON(true), logger.WithWriter(f))...),
	)
	return log, f.Close, nil
}

func newPublisher(cfg config.EventStreamConfig, log *slog.Logger) (eventstream.Publisher, error) {
	switch cfg.Provider {
	case "", config.EventStreamNop:
		return nop.NewPublisher(), nil
	case config.EventStreamKafka:
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: cfg.BrokerList(),
			Topic:   cfg.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		log.Info("publishing turn events to kafka", "brokers", cfg.Brokers, "topic", cfg.Topic)
		return p, nil
	}
	return nil, fmt.Errorf("unsupported eventstream provider: %q", cfg.Provider)
}
