package llm

import (
	"encoding/json"
	"strings"
)

// Input part types for multimodal Responses API input.
const (
	PartInputText  = "input_text"
	PartInputImage = "input_image"
)

// ChatRequest is the body accepted by the chat endpoint.
// Input is forwarded verbatim when present. Otherwise Messages are mapped to
// plain {role, content} items.
type ChatRequest struct {
	Model        string          `json:"model,omitempty"`
	Instructions string          `json:"instructions,omitempty"`
	Input        json.RawMessage `json:"input,omitempty"`
	Messages     []ChatMessage   `json:"messages,omitempty"`
}

// InputPart is one structured content part of a user turn.
type InputPart struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// InputMessage is one item of a Responses API input array. Content is either
// a string or a []InputPart.
type InputMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// ResolveInput returns the upstream input payload for the request.
func (r *ChatRequest) ResolveInput() (json.RawMessage, error) {
	if len(r.Input) > 0 && string(r.Input) != "null" {
		return r.Input, nil
	}

	items := make([]InputMessage, 0, len(r.Messages))
	for _, m := range r.Messages {
		items = append(items, InputMessage{Role: m.Role, Content: m.Content})
	}
	return json.Marshal(items)
}

// ImageRequest is the body accepted by the image endpoint.
type ImageRequest struct {
	Prompt string `json:"prompt"`
	Size   string `json:"size,omitempty"`
}

// ImageResponse is the successful image endpoint reply.
type ImageResponse struct {
	Image string `json:"image"`
}

// PlaygroundRequest is the body accepted by the plain-text playground stream.
type PlaygroundRequest struct {
	Messages []ChatMessage `json:"messages"`
	Model    string        `json:"model,omitempty"`
}

// LastUserText returns the content of the most recent user message.
func (p *PlaygroundRequest) LastUserText() string {
	for i := len(p.Messages) - 1; i >= 0; i-- {
		if p.Messages[i].Role == RoleUser {
			return strings.TrimSpace(p.Messages[i].Content)
		}
	}
	return ""
}

// ErrorResponse is the JSON body of every non-streaming failure.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
