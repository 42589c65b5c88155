package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/yurie-chat/yurie/pkg/llm"
)

// ErrClosed is returned by writes after the terminal frame.
var ErrClosed = errors.New("sse: encoder closed")

// Headers are set on every event-stream response.
var Headers = [][2]string{
	{"Content-Type", "text/event-stream; charset=utf-8"},
	{"Cache-Control", "no-cache, no-transform"},
	{"Connection", "keep-alive"},
	{"X-Accel-Buffering", "no"},
}

// SetHeaders applies Headers through set.
func SetHeaders(set func(key, value string)) {
	for _, h := range Headers {
		set(h[0], h[1])
	}
}

type errFlusher interface {
	Flush() error
}

type flusher interface {
	Flush()
}

// Encoder writes "event: <name>\ndata: <json>\n\n" frames. It writes at
// most one terminal frame and nothing after it.
type Encoder struct {
	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one frame with payload serialised as JSON.
func (e *Encoder) Encode(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", name, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	return e.write(name, data)
}

// Done writes the terminal "done" frame and closes the encoder.
func (e *Encoder) Done() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.closed = true
	return e.write(llm.EventDone, []byte("{}"))
}

// Close stops further writes without emitting a terminal frame.
func (e *Encoder) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// Closed reports whether the terminal frame was written or Close called.
func (e *Encoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Encoder) write(name string, data []byte) error {
	frame := make([]byte, 0, len(name)+len(data)+16)
	frame = append(frame, "event: "...)
	frame = append(frame, name...)
	frame = append(frame, "\ndata: "...)
	frame = append(frame, data...)
	frame = append(frame, "\n\n"...)

	if _, err := e.w.Write(frame); err != nil {
		return err
	}

	switch f := e.w.(type) {
	case errFlusher:
		return f.Flush()
	case flusher:
		f.Flush()
	}
	return nil
}
