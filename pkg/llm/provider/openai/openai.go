// Package openai is the upstream adapter for the OpenAI Responses and Images
// APIs. Streams are exposed as a channel of llm.StreamEvent values that
// always ends with exactly one terminal event.
package openai

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
)

// DefaultBaseURL is the public OpenAI API.
const DefaultBaseURL = "https://api.openai.com/v1"

// CredentialEnv names the environment variable holding the API key.
const CredentialEnv = "OPENAI_API_KEY"

// ErrNoImage is returned when an image call succeeds without image data.
var ErrNoImage = errors.New("No image generated")

const maxErrorBody = 64 * 1024

// Config configures a Client.
type Config struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client calls the OpenAI HTTP API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// New returns a Client. A missing API key is a configuration error and no
// network call is ever attempted.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &llm.ConfigurationError{Setting: CredentialEnv}
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		// No client timeout: streams are bounded by the caller's context.
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		logger:  cfg.Logger.With("provider", "openai"),
	}, nil
}

// StreamResponse opens a streaming Responses API call. Transport failures
// and non-2xx statuses are returned here, before any event is produced.
func (c *Client) StreamResponse(ctx context.Context, req ResponseRequest) (*Stream, error) {
	req.Stream = true
	return c.stream(ctx, "/responses", req, mapResponseEvent)
}

// StreamImage opens a streaming image generation. Partial and final images
// arrive as ImagePartial events.
func (c *Client) StreamImage(ctx context.Context, req ImageGeneration) (*Stream, error) {
	req.Stream = true
	if req.PartialImages == 0 {
		req.PartialImages = 2
	}
	return c.stream(ctx, "/images/generations", req, mapImageEvent)
}

// GenerateImage runs a non-streaming image generation and returns the
// base64 PNG.
func (c *Client) GenerateImage(ctx context.Context, req ImageGeneration) (string, error) {
	req.Stream = false
	req.PartialImages = 0

	resp, err := c.post(ctx, "/images/generations", req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body imagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: images response: %v", llm.ErrParse, err)
	}
	if len(body.Data) == 0 || body.Data[0].B64JSON == "" {
		return "", ErrNoImage
	}
	return body.Data[0].B64JSON, nil
}

func (c *Client) stream(ctx context.Context, path string, body any, mapper eventMapper) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	resp, err := c.post(streamCtx, path, body)
	if err != nil {
		cancel()
		return nil, err
	}

	s := newStream(ctx, streamCtx, cancel, resp.Body, mapper, c.logger)
	go s.run()
	return s, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream, application/json")

	c.logger.Debug("upstream request", "path", path, "bytes", len(payload))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %v", llm.ErrAborted, err)
		}
		return nil, &llm.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	msg := strings.TrimSpace(string(raw))
	var envelope apiError
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error.Message != "" {
		msg = envelope.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &llm.UpstreamError{StatusCode: resp.StatusCode, Message: msg}
}
