package config

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This keeps --model on
// "yurie serve" and "yurie chat" from drifting apart.
type Flag struct {
	// Name is the long flag name (e.g. "listen").
	Name string

	// Shorthand is the one-letter short flag (e.g. "l"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "relay.listen").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen          = "listen"
	FlagMaxDuration     = "max-duration"
	FlagLogFile         = "log-file"
	FlagLogLevel        = "log-level"
	FlagBaseURL         = "openai-base-url"
	FlagServeModel      = "serve-model"
	FlagImageModel      = "image-model"
	FlagPlaygroundModel = "playground-model"
	FlagRelayTarget     = "relay-target"
	FlagChatModel       = "chat-model"
	FlagSQLite          = "sqlite"
	FlagModelsCacheTTL  = "models-cache-ttl"
	FlagEventStream     = "eventstream-provider"
	FlagKafkaBrokers    = "kafka-brokers"
	FlagKafkaTopic      = "kafka-topic"
)

// Flags is the registry shared by every command.
var Flags = FlagSet{
	FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "relay.listen", Description: "Address for the relay to listen on"},
	FlagMaxDuration:     {Name: "max-duration", ViperKey: "relay.max_duration", Description: "Wall-clock limit for a single streamed turn"},
	FlagLogFile:         {Name: "log-file", ViperKey: "relay.log_file", Description: "Also write JSON logs to this file, with pretty logs on stderr"},
	FlagLogLevel:        {Name: "log-level", ViperKey: "relay.log_level", Description: "Minimum log level (debug, info, warn, error); overrides --debug"},
	FlagBaseURL:         {Name: "openai-base-url", ViperKey: "openai.base_url", Description: "OpenAI-compatible API base URL"},
	FlagServeModel:      {Name: "model", Shorthand: "m", ViperKey: "openai.model", Description: "Default chat model when a request names none"},
	FlagImageModel:      {Name: "image-model", ViperKey: "openai.image_model", Description: "Image generation model"},
	FlagPlaygroundModel: {Name: "playground-model", ViperKey: "openai.playground_model", Description: "Default playground model"},
	FlagRelayTarget:     {Name: "relay-target", Shorthand: "t", ViperKey: "client.relay_target", Description: "Relay URL to connect to"},
	FlagChatModel:       {Name: "model", Shorthand: "m", ViperKey: "client.model", Description: "Model to chat with"},
	FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the local chat history database (default: in-memory)"},
	FlagModelsCacheTTL:  {Name: "models-cache-ttl", ViperKey: "models.cache_ttl", Description: "How long the model catalog is cached"},
	FlagEventStream:     {Name: "eventstream-provider", ViperKey: "eventstream.provider", Description: "Turn event publisher (nop, kafka)"},
	FlagKafkaBrokers:    {Name: "kafka-brokers", ViperKey: "eventstream.brokers", Description: "Comma separated Kafka brokers"},
	FlagKafkaTopic:      {Name: "kafka-topic", ViperKey: "eventstream.topic", Description: "Kafka topic for turn events"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddDurationFlag registers a duration flag on cmd from the given FlagSet.
func AddDurationFlag(cmd *cobra.Command, fs FlagSet, key string, target *time.Duration) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaults().GetDuration(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().DurationVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().DurationVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
