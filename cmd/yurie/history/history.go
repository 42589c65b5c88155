// Package historycmder provides the history command for inspecting the local
// chat history.
package historycmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/yurie-chat/yurie/cmd/yurie/sqlitepath"
	"github.com/yurie-chat/yurie/pkg/cliui"
	"github.com/yurie-chat/yurie/pkg/config"
	"github.com/yurie-chat/yurie/pkg/history"
	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/storage/sqlite"
)

type historyCommander struct {
	sqlitePath string
	viper      *viper.Viper
}

const historyLongDesc string = `Inspect the local chat history.

History is read from the SQLite file given by --sqlite or the
storage.sqlite_path config key. Without either, .yurie/history.db in the
current directory, $XDG_DATA_HOME/yurie/history.db and ~/.yurie/history.db
are tried in that order. Chats kept in memory by "yurie chat" without a
history file are not visible here.

Examples:
  yurie history list
  yurie history show 3f1c2a...
  yurie history delete 3f1c2a...`

const historyShortDesc string = "Inspect the local chat history"

func NewHistoryCmd() *cobra.Command {
	cmder := &historyCommander{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: historyShortDesc,
		Long:  historyLongDesc,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagSQLite})
			cmder.viper = v
			return nil
		},
	}

	def := config.Flags[config.FlagSQLite]
	cmd.PersistentFlags().StringVarP(&cmder.sqlitePath, def.Name, def.Shorthand, "", def.Description)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.withStore(cmd, func(ctx context.Context, s *history.Store) error {
				return runList(ctx, s, cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <chat-id>",
		Short: "Print the messages of a chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withStore(cmd, func(ctx context.Context, s *history.Store) error {
				return runShow(ctx, s, args[0], cmd.OutOrStdout())
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "delete <chat-id>",
		Short: "Delete a chat and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.withStore(cmd, func(ctx context.Context, s *history.Store) error {
				return runDelete(ctx, s, args[0], cmd.OutOrStdout())
			})
		},
	})

	return cmd
}

func (c *historyCommander) withStore(cmd *cobra.Command, fn func(context.Context, *history.Store) error) error {
	path, err := sqlitepath.ResolveSQLitePath(c.viper.GetString(config.Flags[config.FlagSQLite].ViperKey))
	if err != nil {
		return err
	}

	driver, err := sqlite.NewDriver(path)
	if err != nil {
		return fmt.Errorf("opening chat history: %w", err)
	}
	defer driver.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, history.NewStore(driver))
}

func runList(ctx context.Context, s *history.Store, out io.Writer) error {
	chats, err := s.Chats(ctx)
	if err != nil {
		return fmt.Errorf("listing chats: %w", err)
	}
	if len(chats) == 0 {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No chats yet."))
		return nil
	}

	for _, c := range chats {
		fmt.Fprintf(out, "  %s  %s  %s %s\n",
			cliui.KeyStyle.Render(c.ID),
			c.Title,
			cliui.NameStyle.Render(c.Model),
			cliui.DimStyle.Render(c.UpdatedAt.Local().Format("2006-01-02 15:04")),
		)
	}
	return nil
}

func runShow(ctx context.Context, s *history.Store, id string, out io.Writer) error {
	chat, err := s.Chat(ctx, id)
	if err != nil {
		return fmt.Errorf("loading chat: %w", err)
	}
	msgs, err := s.Messages(ctx, id)
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	images := 0
	for _, m := range msgs {
		images += llm.CountImages(m.Content)
		if m.ImageBase64 != "" {
			images++
		}
	}

	fmt.Fprintf(out, "\n  %s %s\n", cliui.KeyStyle.Render(chat.Title), cliui.DimStyle.Render(chat.Model))
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render(fmt.Sprintf("%s, %s", plural(len(msgs), "message"), plural(images, "image"))))
	for _, m := range msgs {
		prompt := cliui.AssistantPrompt
		if m.Role == "user" {
			prompt = cliui.UserPrompt
		}
		content := cliui.ReplaceImages(m.Content)
		if m.ImageBase64 != "" {
			content += cliui.ImagePlaceholder(m.ImageBase64)
		}
		for _, a := range m.Attachments {
			content += "\n" + cliui.DimStyle.Render("attached: "+a.Name)
		}
		fmt.Fprintf(out, "%s%s\n\n", prompt, content)
	}
	return nil
}

func runDelete(ctx context.Context, s *history.Store, id string, out io.Writer) error {
	if _, err := s.Chat(ctx, id); err != nil {
		return fmt.Errorf("loading chat: %w", err)
	}
	if err := s.DeleteChat(ctx, id); err != nil {
		return fmt.Errorf("deleting chat: %w", err)
	}
	fmt.Fprintf(out, "  %s Deleted %s\n", cliui.SuccessMark, id)
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
