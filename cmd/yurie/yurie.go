// Package yuriecmder is the root of the yurie command tree.
package yuriecmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/yurie-chat/yurie/cmd/yurie/chat"
	configcmder "github.com/yurie-chat/yurie/cmd/yurie/config"
	historycmder "github.com/yurie-chat/yurie/cmd/yurie/history"
	servecmder "github.com/yurie-chat/yurie/cmd/yurie/serve"
	versioncmder "github.com/yurie-chat/yurie/cmd/yurie/version"
)

const yurieLongDesc string = `Yurie streams chat completions from the OpenAI Responses API.

Run the relay, then talk to it:
  yurie serve      Run the streaming relay and API
  yurie chat       Chat with a running relay from the terminal
  yurie history    Inspect locally stored chats
  yurie config     Manage persistent configuration
  yurie version    Print build information`

const yurieShortDesc string = "Yurie - streaming chat relay"

func NewYurieCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "yurie",
		Short:        yurieShortDesc,
		Long:         yurieLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .yurie/ configuration directory")

	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(historycmder.NewHistoryCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
