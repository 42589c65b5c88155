package llm

import "encoding/json"

// EventKind identifies a StreamEvent.
type EventKind int

const (
	// TextDelta carries an incremental fragment of output text.
	TextDelta EventKind = iota
	// TextDone marks the end of an output text item.
	TextDone
	// Completed carries the final response envelope.
	Completed
	// ImagePartial carries a partial or final generated image.
	ImagePartial
	// Error carries a provider or transport failure message.
	Error
	// Aborted is terminal: the consumer cancelled the turn.
	Aborted
	// Ended is terminal: the upstream stream was exhausted.
	Ended
)

// Wire event names, shared by the relay and its clients.
const (
	EventTextDelta    = "response.output_text.delta"
	EventTextDone     = "response.output_text.done"
	EventCompleted    = "response.completed"
	EventImagePartial = "response.image_generation_call.partial_image"
	EventError        = "error"
	EventResponseErr  = "response.error"
	EventDone         = "done"
)

func (k EventKind) String() string {
	switch k {
	case TextDelta:
		return "text.delta"
	case TextDone:
		return "text.done"
	case Completed:
		return "completed"
	case ImagePartial:
		return "image.partial"
	case Error:
		return "error"
	case Aborted:
		return "aborted"
	case Ended:
		return "ended"
	}
	return "unknown"
}

// StreamEvent is one typed notification from the upstream adapter.
type StreamEvent struct {
	Kind EventKind

	// Delta and Snapshot are set for TextDelta. Snapshot is the cumulative
	// text so far and is advisory only.
	Delta    string
	Snapshot string

	// Message is set for Error.
	Message string

	// ImageBase64 is set for ImagePartial.
	ImageBase64 string

	// Raw is the provider payload for TextDone and Completed.
	Raw json.RawMessage
}

// Terminal reports whether no events follow this one.
func (e StreamEvent) Terminal() bool {
	return e.Kind == Aborted || e.Kind == Ended
}

// Name returns the wire event name the relay emits for e.
func (e StreamEvent) Name() string {
	switch e.Kind {
	case TextDelta:
		return EventTextDelta
	case TextDone:
		return EventTextDone
	case Completed:
		return EventCompleted
	case ImagePartial:
		return EventImagePartial
	case Error:
		return EventError
	}
	return EventDone
}

// DeltaPayload is the data of a text delta frame.
type DeltaPayload struct {
	Delta    string `json:"delta"`
	Snapshot string `json:"snapshot,omitempty"`
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ImagePayload is the data of a partial image frame.
type ImagePayload struct {
	ImageBase64 string `json:"b64_json"`
}

// Payload returns the JSON-serialisable frame data for e.
func (e StreamEvent) Payload() any {
	switch e.Kind {
	case TextDelta:
		return DeltaPayload{Delta: e.Delta, Snapshot: e.Snapshot}
	case TextDone, Completed:
		if len(e.Raw) > 0 {
			return e.Raw
		}
		return struct{}{}
	case ImagePartial:
		return ImagePayload{ImageBase64: e.ImageBase64}
	case Error:
		return ErrorPayload{Message: e.Message}
	}
	return struct{}{}
}

// CompletedEnvelope is the subset of a response.completed payload that
// carries generated images.
type CompletedEnvelope struct {
	Response struct {
		Output []OutputItem `json:"output"`
	} `json:"response"`
}

// OutputItem is one entry of a response's output list.
type OutputItem struct {
	Type   string `json:"type"`
	Result string `json:"result,omitempty"`
}

// GeneratedImages returns the base64 results of every image_generation_call
// in a response.completed payload, in output order.
func GeneratedImages(raw json.RawMessage) []string {
	var env CompletedEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil
	}

	var images []string
	for _, item := range env.Response.Output {
		if item.Type == "image_generation_call" && item.Result != "" {
			images = append(images, item.Result)
		}
	}
	return images
}
