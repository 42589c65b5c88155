// Package chatcmder provides the chat command for interactive chat through
// a yurie relay.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/yurie-chat/yurie/pkg/attachments"
	"github.com/yurie-chat/yurie/pkg/cliui"
	"github.com/yurie-chat/yurie/pkg/client"
	"github.com/yurie-chat/yurie/pkg/config"
	"github.com/yurie-chat/yurie/pkg/dotdir"
	"github.com/yurie-chat/yurie/pkg/history"
	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/logger"
	"github.com/yurie-chat/yurie/pkg/storage"
	"github.com/yurie-chat/yurie/pkg/storage/inmemory"
	"github.com/yurie-chat/yurie/pkg/storage/sqlite"
)

type chatCommander struct {
	relayTarget string
	model       string
	system      string
	attach      []string
	chatID      string
	sqlitePath  string
	render      bool
	framesFile  string
	configDir   string
	debug       bool

	viper  *viper.Viper
	logger *slog.Logger
}

var chatFlags = []string{
	config.FlagRelayTarget,
	config.FlagChatModel,
	config.FlagSQLite,
}

const chatLongDesc string = `Start an interactive chat session through a yurie relay.

Answers stream token by token. Press Ctrl+C to stop the current answer; the
partial text is kept. Ask for a picture ("draw a fox in watercolor", or
start a line with /img) to generate an image instead of text.

Conversations are saved to the local history. Without --sqlite the history
lives in memory and is gone when the session ends. With a history file, a
plain "yurie chat" resumes the last conversation.

Type /exit or press Ctrl+D to quit, /new to start a fresh conversation.

Examples:
  yurie chat
  yurie chat --model gpt-5-mini --render
  yurie chat --attach diagram.png
  yurie chat --frames-file turns.sse
  yurie chat --sqlite ~/.yurie/history.db --chat-id 3f1c...`

const chatShortDesc string = "Interactive chat through the yurie relay"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, chatFlags)
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cfg := config.FromViper(cmder.viper)
			cmder.relayTarget = cfg.Client.RelayTarget
			cmder.model = cfg.Client.Model
			cmder.sqlitePath = cfg.Storage.SQLitePath

			return cmder.run(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagRelayTarget, &cmder.relayTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagChatModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	cmd.Flags().StringVar(&cmder.system, "system", "", "Instructions sent with every turn")
	cmd.Flags().StringArrayVar(&cmder.attach, "attach", nil, "File to attach to the first message (repeatable)")
	cmd.Flags().StringVar(&cmder.chatID, "chat-id", "", "Resume the chat with this id")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render answers as markdown once they finish")
	cmd.Flags().StringVar(&cmder.framesFile, "frames-file", "", "Append the raw SSE frames of every turn to this file")

	return cmd
}

func (c *chatCommander) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.logger = logger.New(logger.WithDebug(c.debug), logger.WithPretty(true), logger.WithWriter(os.Stderr))

	driver, err := c.newStorageDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	var atts []llm.Attachment
	for _, path := range c.attach {
		att, err := attachments.Load(path)
		if err != nil {
			return fmt.Errorf("attaching file: %w", err)
		}
		atts = append(atts, att)
	}

	relayClient := client.New(c.relayTarget, c.logger)
	if c.framesFile != "" {
		f, err := os.OpenFile(c.framesFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening frames file: %w", err)
		}
		defer f.Close()
		relayClient.Frames = f
	}

	sess := &session{
		client:  relayClient,
		store:   history.NewStore(driver),
		model:   c.model,
		system:  c.system,
		out:     out,
		render:  c.render && isTerminal(out),
		pending: atts,
	}

	if err := sess.open(ctx, c.resumeID()); err != nil {
		return err
	}
	c.saveSession(sess)

	fmt.Fprintln(out)
	if sess.resumed {
		fmt.Fprintf(out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(sess.chat.Title),
			cliui.DimStyle.Render(fmt.Sprintf("(%d messages)", len(sess.transcript.Messages()))),
		)
	} else {
		fmt.Fprintf(out, "  %s New conversation\n", cliui.DimStyle.Render("●"))
	}
	fmt.Fprintf(out, "  %s %s\n", cliui.KeyStyle.Render("Model:"), cliui.NameStyle.Render(sess.model))
	for _, a := range atts {
		fmt.Fprintf(out, "  %s %s %s\n", cliui.KeyStyle.Render("Attached:"), a.Name, cliui.DimStyle.Render(a.Type))
	}
	fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	interactive := isTerminal(in)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		if interactive {
			fmt.Fprint(out, cliui.UserPrompt)
		}
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(out)
			return nil
		case "/new":
			if err := sess.open(ctx, ""); err != nil {
				return err
			}
			c.saveSession(sess)
			fmt.Fprintf(out, "  %s New conversation\n\n", cliui.DimStyle.Render("●"))
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		err := sess.send(turnCtx, input)
		stop()
		if err != nil {
			fmt.Fprintf(out, "\n  %s %s\n\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()))
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

// resumeID is the chat to reopen: --chat-id, else the last session's chat.
// In-memory history has nothing to resume, so the session file is only read
// when a history file is in use.
func (c *chatCommander) resumeID() string {
	if c.chatID != "" {
		return c.chatID
	}
	if c.sqlitePath == "" {
		return ""
	}
	s, err := dotdir.NewManager().LoadSession(c.configDir)
	if err != nil {
		c.logger.Debug("could not load session", "error", err)
		return ""
	}
	if s == nil {
		return ""
	}
	return s.ChatID
}

func (c *chatCommander) saveSession(sess *session) {
	if c.sqlitePath == "" {
		return
	}
	err := dotdir.NewManager().SaveSession(&dotdir.Session{ChatID: sess.chat.ID, Model: sess.model}, c.configDir)
	if err != nil {
		c.logger.Debug("could not save session", "error", err)
	}
}

func (c *chatCommander) newStorageDriver() (storage.Driver, error) {
	if c.sqlitePath != "" {
		driver, err := sqlite.NewDriver(c.sqlitePath)
		if err != nil {
			return nil, fmt.Errorf("opening chat history: %w", err)
		}
		c.logger.Debug("using SQLite history", "path", c.sqlitePath)
		return driver, nil
	}

	c.logger.Debug("using in-memory history")
	return inmemory.NewDriver(), nil
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// errCancelled is reported when the user stops a turn.
var errCancelled = errors.New("cancelled")
