// Package sse frames and parses Server-Sent Events for the yurie relay.
//
// The relay writes frames with Encoder. Clients reassemble frames that
// arrive split across network reads with Parser (push style) or Reader
// (pull style over an io.Reader).
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"encoding/json"
	"fmt"

	"github.com/yurie-chat/yurie/pkg/llm"
)

// DefaultEventName is used when a frame carries no "event:" field.
const DefaultEventName = "message"

// DoneData is the data value some providers use as an end marker.
const DoneData = "[DONE]"

// Event is one parsed SSE frame.
type Event struct {
	// Type is the first "event:" field of the frame. Empty means "message".
	Type string

	// Data is every "data:" line of the frame joined with "\n".
	Data string

	// ID is the last "id:" field, if any.
	ID string
}

// Name returns the event name, defaulting to "message".
func (e *Event) Name() string {
	if e.Type == "" {
		return DefaultEventName
	}
	return e.Type
}

// Terminal reports whether the frame ends the stream. This holds whether
// or not the data is valid JSON.
func (e *Event) Terminal() bool {
	return e.Data == DoneData || e.Type == llm.EventDone
}

// Decode unmarshals the frame data into v. Failures wrap llm.ErrParse.
func (e *Event) Decode(v any) error {
	if e.Data == "" {
		return fmt.Errorf("%w: empty data in %q frame", llm.ErrParse, e.Name())
	}
	if err := json.Unmarshal([]byte(e.Data), v); err != nil {
		return fmt.Errorf("%w: %q frame: %v", llm.ErrParse, e.Name(), err)
	}
	return nil
}
