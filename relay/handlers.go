package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"

	"github.com/yurie-chat/yurie/pkg/eventstream"
	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/llm/provider/openai"
	"github.com/yurie-chat/yurie/relay/header"
	"github.com/yurie-chat/yurie/relay/worker"
)

const (
	defaultImageSize = "1024x1024"

	// maxPromptChars keeps the playground prompt within a sane request size.
	// Older history is dropped first.
	maxPromptChars = 100000

	playgroundInstructions = "You are Yurie, a creative and helpful AI assistant."
	imageTurnPreamble      = "Here is your image.\n"
	imageFallbackPrompt    = "Generate an image based on the conversation context"
)

var playgroundRules = strings.Join([]string{
	"SYSTEM RULES:",
	"- You are Yurie, a helpful AI assistant specializing in deep research, writing, storytelling and coding.",
	"- Do NOT scaffold entire apps.",
	"- For code, output valid fenced Markdown.",
}, "\n")

// handleChat relays one Responses API turn as server-sent events.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	reqID := header.RequestID(c)
	if ok, err := r.requireUpstream(c); !ok {
		return err
	}

	var req llm.ChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return r.sendError(c, fmt.Errorf("%w: chat request: %v", llm.ErrParse, err))
	}

	input, err := req.ResolveInput()
	if err != nil {
		return r.sendError(c, fmt.Errorf("%w: chat input: %v", llm.ErrParse, err))
	}

	model := req.Model
	if model == "" {
		model = r.config.DefaultModel
	}

	r.logger.Debug("chat turn",
		"request_id", reqID,
		"model", model,
		"message_count", len(req.Messages),
		"raw_input", len(req.Input) > 0,
	)

	t := newTurn(RouteChat, model)
	ctx, cancel := r.turnContext()
	stream, err := r.upstream.StreamResponse(ctx, openai.ResponseRequest{
		Model:        model,
		Instructions: req.Instructions,
		Input:        input,
	})
	if err != nil {
		cancel()
		return r.failTurn(c, t, err)
	}

	header.SetEventStream(c)
	r.streamBody(c, stream, t, cancel, func(w io.Writer) framer {
		return newSSEFramer(w)
	})
	return nil
}

// handleImages runs one non-streaming image generation.
func (r *Relay) handleImages(c *fiber.Ctx) error {
	header.RequestID(c)
	if ok, err := r.requireUpstream(c); !ok {
		return err
	}

	var req llm.ImageRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return r.sendError(c, fmt.Errorf("%w: image request: %v", llm.ErrParse, err))
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "missing prompt"})
	}
	if req.Size == "" {
		req.Size = defaultImageSize
	}

	t := newTurn(RouteImages, r.config.ImageModel)
	defer r.publish(t)

	ctx, cancel := r.turnContext()
	defer cancel()

	b64, err := r.upstream.GenerateImage(ctx, openai.ImageGeneration{
		Model:  r.config.ImageModel,
		Prompt: req.Prompt,
		Size:   req.Size,
	})
	switch {
	case errors.Is(err, openai.ErrNoImage):
		t.fail(err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
	case err != nil:
		t.fail(err.Error())
		r.logger.Warn("image generation failed", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(llm.ErrorResponse{Error: err.Error(), Code: llm.Code(err)})
	}

	t.images = 1
	return c.JSON(llm.ImageResponse{Image: b64})
}

// handlePlayground streams plain text: a generated image when the last user
// message asks for one, a text answer otherwise.
func (r *Relay) handlePlayground(c *fiber.Ctx) error {
	header.RequestID(c)

	var req llm.PlaygroundRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil || req.Messages == nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Invalid body: messages[] required"})
	}
	if ok, err := r.requireUpstream(c); !ok {
		return err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = r.config.PlaygroundModel
	}

	last := req.LastUserText()
	if llm.WantsImage(last) {
		return r.playgroundImage(c, last)
	}

	t := newTurn(RoutePlayground, model)
	ctx, cancel := r.turnContext()
	stream, err := r.upstream.StreamResponse(ctx, openai.ResponseRequest{
		Model:        model,
		Instructions: playgroundInstructions,
		Input:        mustJSON(playgroundPrompt(req.Messages)),
		Tools:        []openai.Tool{openai.ToolWebSearch, openai.ToolImageGeneration},
		Reasoning:    r.reasoning(ctx, model),
	})
	if err != nil {
		cancel()
		return r.failTurn(c, t, err)
	}

	header.SetTextStream(c)
	r.streamBody(c, stream, t, cancel, func(w io.Writer) framer {
		return &textFramer{w: w, errPrefix: "\n[error] "}
	})
	return nil
}

func (r *Relay) playgroundImage(c *fiber.Ctx, last string) error {
	prompt := llm.ImagePrompt(last)
	if prompt == "" {
		prompt = imageFallbackPrompt
	}

	t := newTurn(RoutePlayground, r.config.ImageModel)
	ctx, cancel := r.turnContext()
	stream, err := r.upstream.StreamImage(ctx, openai.ImageGeneration{
		Model:         r.config.ImageModel,
		Prompt:        prompt,
		Size:          defaultImageSize,
		PartialImages: 2,
	})
	if err != nil {
		cancel()
		return r.failTurn(c, t, err)
	}

	header.SetTextStream(c)
	r.streamBody(c, stream, t, cancel, func(w io.Writer) framer {
		return &preambleFramer{
			textFramer: textFramer{w: w, errPrefix: "There was an error generating the image: ", partials: true},
			preamble:   imageTurnPreamble,
		}
	})
	return nil
}

// streamBody hands fasthttp a pipe whose writer is fed by pump.
//
// io.Pipe + SetBodyStream is used instead of SetBodyStreamWriter so that
// every write blocks until fasthttp has consumed it; fasthttp flushes to the
// socket after each chunk of an unknown-length (-1) body, which gives
// per-event delivery with direct backpressure.
func (r *Relay) streamBody(c *fiber.Ctx, stream *openai.Stream, t *turn, cancel context.CancelFunc, newFramer func(io.Writer) framer) {
	pr, pw := io.Pipe()

	go func() {
		defer cancel()
		defer pw.Close()
		defer r.publish(t)

		pump(stream, newFramer(pw), t, r.logger)
	}()

	c.Context().Response.SetBodyStream(&cancelOnClose{PipeReader: pr, abort: stream.Abort}, -1)
}

// turnContext bounds a turn by MaxDuration. It is detached from the fasthttp
// request context, which is recycled as soon as the handler returns.
func (r *Relay) turnContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.config.MaxDuration)
}

// failTurn records a turn that failed before streaming and answers with a
// JSON error.
func (r *Relay) failTurn(c *fiber.Ctx, t *turn, err error) error {
	if llm.IsAbort(err) {
		t.status = eventstream.StatusAborted
	} else {
		t.fail(err.Error())
	}
	r.publish(t)
	return r.sendError(c, err)
}

func (r *Relay) publish(t *turn) {
	r.workerPool.Enqueue(worker.Job{Event: t.event()})
}

// reasoning requests high effort from models that support it.
func (r *Relay) reasoning(ctx context.Context, model string) *openai.Reasoning {
	m, ok, err := r.config.Catalog.Lookup(ctx, model)
	if err != nil || !ok || !m.Reasoning {
		return nil
	}
	return &openai.Reasoning{Effort: "high"}
}

// preambleFramer writes a fixed preamble before the first event.
type preambleFramer struct {
	textFramer
	preamble string
	started  bool
}

func (f *preambleFramer) frame(ev llm.StreamEvent) error {
	if err := f.start(); err != nil {
		return err
	}
	return f.textFramer.frame(ev)
}

func (f *preambleFramer) close(llm.StreamEvent) {
	_ = f.start()
}

func (f *preambleFramer) start() error {
	if f.started {
		return nil
	}
	f.started = true
	_, err := io.WriteString(f.w, f.preamble)
	return err
}

// playgroundPrompt flattens the conversation into one prompt, with image
// data removed, truncated from the front to maxPromptChars.
func playgroundPrompt(msgs []llm.ChatMessage) string {
	var b strings.Builder
	b.WriteString(playgroundRules)
	b.WriteString("\n\nConversation history follows. Respond as Yurie.\n")
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		speaker := "Yurie"
		if m.Role == llm.RoleUser {
			speaker = "User"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(llm.StripImageData(m.Content))
	}
	b.WriteString("\nYurie:")

	prompt := b.String()
	if utf8.RuneCountInString(prompt) > maxPromptChars {
		runes := []rune(prompt)
		prompt = string(runes[len(runes)-maxPromptChars:])
	}
	return prompt
}

func mustJSON(s string) json.RawMessage {
	out, _ := json.Marshal(s)
	return out
}
