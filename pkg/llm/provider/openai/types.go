package openai

import "encoding/json"

// Tool enables a hosted tool for a Responses API call.
type Tool struct {
	Type string `json:"type"`
}

// Hosted tools used by the playground.
var (
	ToolWebSearch       = Tool{Type: "web_search_preview"}
	ToolImageGeneration = Tool{Type: "image_generation"}
)

// Reasoning configures reasoning effort for models that support it.
type Reasoning struct {
	Effort string `json:"effort"`
}

// ResponseRequest is the body of a streaming Responses API call.
type ResponseRequest struct {
	Model        string          `json:"model"`
	Instructions string          `json:"instructions,omitempty"`
	Input        json.RawMessage `json:"input"`
	Tools        []Tool          `json:"tools,omitempty"`
	Reasoning    *Reasoning      `json:"reasoning,omitempty"`
	Stream       bool            `json:"stream"`
}

// ImageGeneration is the body of an images/generations call.
type ImageGeneration struct {
	Model         string `json:"model"`
	Prompt        string `json:"prompt"`
	Size          string `json:"size,omitempty"`
	N             int    `json:"n,omitempty"`
	Stream        bool   `json:"stream,omitempty"`
	PartialImages int    `json:"partial_images,omitempty"`
}

// Upstream SSE event types.
const (
	eventTextDelta       = "response.output_text.delta"
	eventTextDone        = "response.output_text.done"
	eventCompleted       = "response.completed"
	eventFailed          = "response.failed"
	eventResponseError   = "response.error"
	eventError           = "error"
	eventPartialImage    = "response.image_generation_call.partial_image"
	eventImagePartial    = "image_generation.partial_image"
	eventImageCompleted  = "image_generation.completed"
	eventImageFinalImage = "image_generation.image"
)

// streamPayload is the union of the upstream event fields the adapter reads.
type streamPayload struct {
	Type            string `json:"type"`
	Delta           string `json:"delta"`
	Message         string `json:"message"`
	PartialImageB64 string `json:"partial_image_b64"`
	B64JSON         string `json:"b64_json"`
	Error           *struct {
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"response"`
}

func (p *streamPayload) errorMessage() string {
	switch {
	case p.Message != "":
		return p.Message
	case p.Error != nil && p.Error.Message != "":
		return p.Error.Message
	case p.Response != nil && p.Response.Error != nil && p.Response.Error.Message != "":
		return p.Response.Error.Message
	}
	return "Unknown error"
}

// apiError is the error envelope of a failed HTTP call.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// imagesResponse is the body of a non-streaming images/generations call.
type imagesResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}
