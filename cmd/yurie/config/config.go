// Package configcmder provides the config command for managing persistent
// yurie configuration stored in the .yurie/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent yurie configuration.

Configuration is stored as config.toml in the .yurie/ directory and provides
default values for command flags. CLI flags and environment variables always
take precedence over config file values. The OpenAI API key is never stored
here; export OPENAI_API_KEY instead.

Keys use dotted notation matching the TOML section structure:
  relay.listen, relay.max_duration,
  openai.base_url, openai.model, openai.image_model, openai.playground_model,
  client.relay_target, client.model,
  storage.sqlite_path, models.cache_ttl,
  eventstream.provider, eventstream.brokers, eventstream.topic

Use subcommands to get, set, or list configuration values:
  yurie config set <key> <value>    Set a configuration value
  yurie config get <key>            Get a configuration value
  yurie config list                 List all configuration values

Examples:
  yurie config set relay.listen :9090
  yurie config set client.model gpt-5
  yurie config get openai.model
  yurie config list`

const configShortDesc string = "Manage persistent yurie configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
