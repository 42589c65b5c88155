package chatcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yurie-chat/yurie/pkg/attachments"
	"github.com/yurie-chat/yurie/pkg/cliui"
	"github.com/yurie-chat/yurie/pkg/client"
	"github.com/yurie-chat/yurie/pkg/history"
	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/sse"
	"github.com/yurie-chat/yurie/pkg/storage"
	"github.com/yurie-chat/yurie/pkg/transcript"
	"github.com/yurie-chat/yurie/pkg/utils"
)

const maxTitleChars = 40

// session is one open conversation: the relay client, the persisted chat
// and the in-memory transcript reduced from relay frames.
type session struct {
	client *client.Client
	store  *history.Store
	model  string
	system string
	out    io.Writer
	render bool

	// pending attachments go out with the next turn only.
	pending []llm.Attachment

	chat       *history.Chat
	transcript *transcript.Transcript
	resumed    bool
}

// open resumes chatID when it exists in the store and starts a new chat
// otherwise.
func (s *session) open(ctx context.Context, chatID string) error {
	s.resumed = false
	if chatID != "" {
		chat, err := s.store.Chat(ctx, chatID)
		switch {
		case err == nil:
			msgs, err := s.store.Messages(ctx, chat.ID)
			if err != nil {
				return fmt.Errorf("loading chat history: %w", err)
			}
			s.chat = chat
			s.transcript = transcript.New(msgs...)
			s.resumed = true
			if s.model == "" {
				s.model = chat.Model
			}
			return nil
		case !storage.IsNotFound(err):
			return fmt.Errorf("loading chat: %w", err)
		}
	}

	chat, err := s.store.CreateChat(ctx, "", s.model)
	if err != nil {
		return fmt.Errorf("creating chat: %w", err)
	}
	s.chat = chat
	s.model = chat.Model
	s.transcript = transcript.New()
	return nil
}

// send runs one turn and persists both messages. Cancelling ctx stops the
// turn and keeps what arrived.
func (s *session) send(ctx context.Context, text string) error {
	prior := s.transcript.Messages()
	atts := s.pending

	user := llm.NewMessage(llm.RoleUser, text)
	user.Attachments = atts
	user.CreatedAt = time.Now().UnixMilli()
	if _, err := s.transcript.Submit(user); err != nil {
		return err
	}
	s.pending = nil

	var err error
	if llm.WantsImage(text) {
		err = s.image(ctx, text)
	} else {
		err = s.stream(ctx, prior, text, atts)
	}

	switch {
	case err == nil:
	case llm.IsAbort(err):
		s.transcript.Cancel()
		fmt.Fprintf(s.out, "\n  %s\n", cliui.DimStyle.Render("("+errCancelled.Error()+")"))
		err = nil
	default:
		s.transcript.Fail(llm.FriendlyMessage(err))
		err = errors.New(llm.FriendlyMessage(err))
	}

	if s.transcript.Status() == transcript.StatusError && err == nil {
		err = errors.New(s.transcript.Err())
	}

	// The turn context may be cancelled already; saving must still happen.
	if perr := s.persist(context.WithoutCancel(ctx), text); perr != nil {
		return errors.Join(err, perr)
	}
	return err
}

func (s *session) stream(ctx context.Context, prior []llm.ChatMessage, text string, atts []llm.Attachment) error {
	input, err := attachments.BuildInput(prior, text, atts)
	if err != nil {
		return fmt.Errorf("building input: %w", err)
	}

	fmt.Fprint(s.out, cliui.AssistantPrompt)

	printed := 0
	err = s.client.StreamChat(ctx, llm.ChatRequest{
		Model:        s.model,
		Instructions: s.system,
		Input:        input,
	}, func(ev sse.Event) bool {
		done := s.transcript.Apply(ev)
		if !s.render {
			msg, _ := s.transcript.Active()
			if len(msg.Content) > printed {
				fmt.Fprint(s.out, cliui.ReplaceImages(msg.Content[printed:]))
				printed = len(msg.Content)
			}
		}
		return !done
	})
	if err != nil {
		return err
	}
	s.transcript.Finish()

	msg, _ := s.transcript.Active()
	if s.render && msg.Content != "" {
		rendered, rerr := cliui.RenderMarkdown(cliui.ReplaceImages(msg.Content))
		if rerr != nil {
			rendered = cliui.ReplaceImages(msg.Content)
		}
		fmt.Fprint(s.out, "\n"+rendered)
	}
	fmt.Fprint(s.out, "\n\n")
	return nil
}

func (s *session) image(ctx context.Context, text string) error {
	var b64 string
	err := cliui.Step(s.out, "Generating image", func() error {
		var err error
		b64, err = s.client.GenerateImage(ctx, llm.ImageRequest{Prompt: llm.ImagePrompt(text)})
		return err
	})
	if err != nil {
		return err
	}

	s.transcript.SetImage(b64)
	fmt.Fprintf(s.out, "%s%s\n\n", cliui.AssistantPrompt, cliui.ImagePlaceholder(b64))
	return nil
}

// persist stores the turn's user and assistant messages, and names a new
// chat after its first message.
func (s *session) persist(ctx context.Context, text string) error {
	msgs := s.transcript.Messages()
	if len(msgs) < 2 {
		return nil
	}
	for _, m := range msgs[len(msgs)-2:] {
		if err := s.store.AddMessage(ctx, s.chat.ID, m); err != nil {
			return fmt.Errorf("saving message: %w", err)
		}
	}

	if s.chat.Title == history.DefaultTitle {
		chat, err := s.store.UpdateTitle(ctx, s.chat.ID, titleFrom(text))
		if err != nil {
			return fmt.Errorf("naming chat: %w", err)
		}
		s.chat = chat
	}
	return nil
}

func titleFrom(text string) string {
	return utils.Truncate(strings.Join(strings.Fields(llm.StripImageData(text)), " "), maxTitleChars)
}
