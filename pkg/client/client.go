// Package client talks to a yurie relay: SSE chat turns, image generation
// and the plain-text playground stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/logger"
	"github.com/yurie-chat/yurie/pkg/sse"
)

// Relay routes.
const (
	ChatPath       = "/api/chat"
	ImagesPath     = "/api/images"
	PlaygroundPath = "/api/playground"
)

const maxErrorBody = 64 * 1024

// Client calls a yurie relay.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Frames, when set, receives the raw SSE bytes of every chat turn.
	Frames io.Writer
}

// New returns a Client for the relay at baseURL. Requests have no client
// timeout; turns are bounded by the caller's context and the relay.
func New(baseURL string, log *slog.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Logger:     log,
	}
}

// StreamChat posts one chat turn and calls fn for every frame, in order.
// It returns after a terminal frame, when fn returns false, or when the body
// ends. Cancelling ctx returns llm.ErrAborted.
func (c *Client) StreamChat(ctx context.Context, req llm.ChatRequest, fn func(sse.Event) bool) error {
	resp, err := c.post(ctx, ChatPath, req, "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	reader := sse.NewTeeReader(resp.Body, c.Frames)
	for {
		ev, err := reader.Next()
		if err != nil {
			return c.readError(ctx, err)
		}
		if ev == nil {
			return nil
		}
		if !fn(*ev) {
			return nil
		}
		if ev.Terminal() {
			return nil
		}
	}
}

// GenerateImage runs one image generation and returns the base64 PNG.
func (c *Client) GenerateImage(ctx context.Context, req llm.ImageRequest) (string, error) {
	resp, err := c.post(ctx, ImagesPath, req, "application/json")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out llm.ImageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: image response: %v", llm.ErrParse, err)
	}
	if out.Image == "" {
		return "", &llm.UpstreamError{Message: "No image generated"}
	}
	return out.Image, nil
}

// Playground copies the plain-text playground stream to w as it arrives.
func (c *Client) Playground(ctx context.Context, req llm.PlaygroundRequest, w io.Writer) error {
	resp, err := c.post(ctx, PlaygroundPath, req, "text/plain")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(flushWriter{w}, resp.Body); err != nil {
		return c.readError(ctx, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any, accept string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)

	c.Logger.Debug("sending relay request", "path", path, "bytes", len(payload))

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", llm.ErrAborted, err)
		}
		return nil, &llm.TransportError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readHTTPError(resp)
	}
	return resp, nil
}

// readError classifies a failure after the response started.
func (c *Client) readError(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", llm.ErrAborted, err)
	}
	c.Logger.Debug("relay stream failed", "error", err)
	return fmt.Errorf("reading stream: %w", err)
}

// readHTTPError turns a non-200 response into an UpstreamError. JSON error
// bodies contribute their message; anything else is kept as text.
func readHTTPError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))

	var body llm.ErrorResponse
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &llm.UpstreamError{StatusCode: resp.StatusCode, Message: msg}
}

// flushWriter flushes after every write when the destination supports it.
type flushWriter struct {
	w io.Writer
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if fl, ok := f.w.(interface{ Flush() error }); ok && err == nil {
		err = fl.Flush()
	}
	return n, err
}
