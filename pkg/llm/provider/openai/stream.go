package openai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/sse"
)

// TimeoutMessage is the error text sent when a turn outlives its deadline.
const TimeoutMessage = "request timed out"

// eventMapper turns one upstream frame into zero or one StreamEvent.
// snapshot accumulates output text across calls.
type eventMapper func(ev *sse.Event, payload *streamPayload, snapshot *strings.Builder) (llm.StreamEvent, bool)

// Stream is one open upstream stream.
//
// Events delivers every mapped event in upstream order and is closed after
// exactly one terminal event (llm.Aborted or llm.Ended). Consumers must keep
// receiving until the channel closes, including after calling Abort.
type Stream struct {
	events chan llm.StreamEvent

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	body   io.ReadCloser
	mapper eventMapper
	logger *slog.Logger

	abortOnce sync.Once
	aborted   chan struct{}
}

func newStream(parent, ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, mapper eventMapper, log *slog.Logger) *Stream {
	return &Stream{
		events:  make(chan llm.StreamEvent, 16),
		parent:  parent,
		ctx:     ctx,
		cancel:  cancel,
		body:    body,
		mapper:  mapper,
		logger:  log,
		aborted: make(chan struct{}),
	}
}

// Events returns the receive side of the stream.
func (s *Stream) Events() <-chan llm.StreamEvent {
	return s.events
}

// Abort cancels the upstream call and releases its connection. It is safe to
// call more than once and from any goroutine.
func (s *Stream) Abort() {
	s.abortOnce.Do(func() {
		close(s.aborted)
		s.cancel()
	})
}

func (s *Stream) run() {
	defer close(s.events)
	defer s.cancel()
	defer s.body.Close()

	var snapshot strings.Builder
	reader := sse.NewReader(s.body)

	for {
		ev, err := reader.Next()
		if err != nil {
			s.finish(err)
			return
		}
		if ev == nil {
			s.finish(nil)
			return
		}

		var payload streamPayload
		if ev.Data != "" && ev.Data != sse.DoneData {
			if err := ev.Decode(&payload); err != nil {
				s.logger.Debug("skipping malformed upstream frame", "event", ev.Name(), "error", err)
				continue
			}
		}

		out, ok := s.mapper(ev, &payload, &snapshot)
		if !ok {
			continue
		}

		select {
		case s.events <- out:
		case <-s.ctx.Done():
			s.finish(s.ctx.Err())
			return
		}
	}
}

// finish emits the terminal sequence for the way the stream ended.
func (s *Stream) finish(cause error) {
	switch {
	case s.wasAborted():
		s.events <- llm.StreamEvent{Kind: llm.Aborted}
		return
	case errors.Is(s.parent.Err(), context.DeadlineExceeded):
		s.events <- llm.StreamEvent{Kind: llm.Error, Message: TimeoutMessage}
	case cause != nil:
		s.logger.Warn("upstream stream failed", "error", cause)
		s.events <- llm.StreamEvent{Kind: llm.Error, Message: cause.Error()}
	}
	s.events <- llm.StreamEvent{Kind: llm.Ended}
}

func (s *Stream) wasAborted() bool {
	select {
	case <-s.aborted:
		return true
	default:
	}
	return errors.Is(s.parent.Err(), context.Canceled)
}

func eventType(ev *sse.Event, payload *streamPayload) string {
	if ev.Type != "" {
		return ev.Type
	}
	return payload.Type
}

func mapResponseEvent(ev *sse.Event, payload *streamPayload, snapshot *strings.Builder) (llm.StreamEvent, bool) {
	switch eventType(ev, payload) {
	case eventTextDelta:
		snapshot.WriteString(payload.Delta)
		return llm.StreamEvent{Kind: llm.TextDelta, Delta: payload.Delta, Snapshot: snapshot.String()}, true
	case eventTextDone:
		return llm.StreamEvent{Kind: llm.TextDone, Raw: []byte(ev.Data)}, true
	case eventCompleted:
		return llm.StreamEvent{Kind: llm.Completed, Raw: []byte(ev.Data)}, true
	case eventPartialImage:
		if payload.PartialImageB64 == "" {
			return llm.StreamEvent{}, false
		}
		return llm.StreamEvent{Kind: llm.ImagePartial, ImageBase64: payload.PartialImageB64}, true
	case eventError, eventFailed, eventResponseError:
		return llm.StreamEvent{Kind: llm.Error, Message: payload.errorMessage()}, true
	}
	return llm.StreamEvent{}, false
}

func mapImageEvent(ev *sse.Event, payload *streamPayload, _ *strings.Builder) (llm.StreamEvent, bool) {
	switch eventType(ev, payload) {
	case eventImagePartial, eventImageCompleted, eventImageFinalImage:
		b64 := payload.B64JSON
		if b64 == "" {
			b64 = payload.PartialImageB64
		}
		if b64 == "" {
			return llm.StreamEvent{}, false
		}
		return llm.StreamEvent{Kind: llm.ImagePartial, ImageBase64: b64}, true
	case eventError, eventFailed:
		return llm.StreamEvent{Kind: llm.Error, Message: payload.errorMessage()}, true
	}
	return llm.StreamEvent{}, false
}
