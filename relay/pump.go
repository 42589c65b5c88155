package relay

import (
	"io"
	"log/slog"
	"time"

	"github.com/yurie-chat/yurie/pkg/eventstream"
	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/llm/provider/openai"
	"github.com/yurie-chat/yurie/pkg/sse"
)

// framer renders stream events onto the client connection.
type framer interface {
	// frame writes one non-terminal event. An error means the client is gone.
	frame(ev llm.StreamEvent) error

	// close is called once with the terminal event.
	close(ev llm.StreamEvent)
}

// sseFramer writes "event: <name>\ndata: <json>\n\n" frames and one final
// done frame.
type sseFramer struct {
	enc *sse.Encoder
}

func newSSEFramer(w io.Writer) *sseFramer {
	return &sseFramer{enc: sse.NewEncoder(w)}
}

func (f *sseFramer) frame(ev llm.StreamEvent) error {
	return f.enc.Encode(ev.Name(), ev.Payload())
}

func (f *sseFramer) close(llm.StreamEvent) {
	// After an abort the pipe is usually closed already.
	_ = f.enc.Done()
}

// textFramer writes raw text for the playground. Images become sentinel
// lines and errors become inline text.
type textFramer struct {
	w io.Writer

	// errPrefix introduces an inline error message.
	errPrefix string

	// partials writes ImagePartial events. Only image turns set it.
	partials bool
}

func (f *textFramer) frame(ev llm.StreamEvent) error {
	var out string
	switch ev.Kind {
	case llm.TextDelta:
		out = ev.Delta
	case llm.Error:
		out = f.errPrefix + ev.Message
	case llm.Completed:
		for _, b64 := range llm.GeneratedImages(ev.Raw) {
			out += "\n" + llm.ImageSentinel(b64) + "\n"
		}
	case llm.ImagePartial:
		if f.partials {
			out = llm.ImageSentinel(ev.ImageBase64) + "\n"
		}
	}

	if out == "" {
		return nil
	}
	_, err := io.WriteString(f.w, out)
	return err
}

func (f *textFramer) close(llm.StreamEvent) {}

// turn accumulates what the telemetry event reports about one request.
type turn struct {
	route     string
	model     string
	startedAt time.Time

	status string
	deltas int
	bytes  int64
	images int
	errMsg string
}

func newTurn(route, model string) *turn {
	return &turn{route: route, model: model, startedAt: time.Now(), status: eventstream.StatusCompleted}
}

func (t *turn) observe(ev llm.StreamEvent) {
	switch ev.Kind {
	case llm.TextDelta:
		t.deltas++
		t.bytes += int64(len(ev.Delta))
	case llm.ImagePartial:
		t.images++
	case llm.Completed:
		t.images += len(llm.GeneratedImages(ev.Raw))
	case llm.Error:
		t.fail(ev.Message)
	case llm.Aborted:
		if t.status != eventstream.StatusError {
			t.status = eventstream.StatusAborted
		}
	}
}

func (t *turn) fail(msg string) {
	t.status = eventstream.StatusError
	if t.errMsg == "" {
		t.errMsg = msg
	}
}

func (t *turn) event() *eventstream.TurnEvent {
	ev := eventstream.NewTurnEvent(t.route, t.model, t.startedAt)
	ev.Status = t.status
	ev.Deltas = t.deltas
	ev.Bytes = t.bytes
	ev.Images = t.images
	ev.Error = t.errMsg
	return ev
}

// pump forwards every event of stream to f in order and returns once the
// stream's channel is closed. A failed write means the client went away, so
// the upstream is aborted; the channel is still drained to its end.
func pump(stream *openai.Stream, f framer, t *turn, log *slog.Logger) {
	gone := false
	for ev := range stream.Events() {
		t.observe(ev)

		if ev.Terminal() {
			if !gone {
				f.close(ev)
			}
			continue
		}
		if gone {
			continue
		}

		if err := f.frame(ev); err != nil {
			log.Debug("client write failed, aborting upstream", "route", t.route, "error", err)
			gone = true
			stream.Abort()
		}
	}
}

// cancelOnClose is the body stream handed to fasthttp. fasthttp closes it
// when the response ends or the client connection fails; either way the
// upstream stream is aborted.
type cancelOnClose struct {
	*io.PipeReader
	abort func()
}

func (c *cancelOnClose) Close() error {
	c.abort()
	return c.PipeReader.Close()
}
