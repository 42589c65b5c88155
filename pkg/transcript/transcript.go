// Package transcript reduces a stream of relay frames into a live chat
// transcript. It owns the per-turn state machine:
//
//	idle → submitted → streaming → ready | error
//
// with user cancellation moving submitted or streaming back to ready.
package transcript

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/sse"
)

// Status is the state of the current turn.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusReady     Status = "ready"
	StatusError     Status = "error"
)

// ErrTurnInFlight is returned by Submit while a turn is still streaming.
var ErrTurnInFlight = errors.New("a turn is already in flight")

// Transcript is an in-memory conversation. It is not safe for concurrent
// use; a single goroutine applies every frame.
type Transcript struct {
	messages []llm.ChatMessage
	status   Status
	activeID string
	frozen   bool
	errMsg   string
	now      func() time.Time
	newID    func() string
}

// New returns an idle transcript seeded with history.
func New(history ...llm.ChatMessage) *Transcript {
	msgs := make([]llm.ChatMessage, len(history))
	copy(msgs, history)
	return &Transcript{messages: msgs, status: StatusIdle, now: time.Now, newID: uuid.NewString}
}

// Status returns the current turn status.
func (t *Transcript) Status() Status { return t.status }

// Err returns the error message of a failed turn.
func (t *Transcript) Err() string { return t.errMsg }

// InFlight reports whether a turn is submitted or streaming.
func (t *Transcript) InFlight() bool {
	return t.status == StatusSubmitted || t.status == StatusStreaming
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []llm.ChatMessage {
	out := make([]llm.ChatMessage, len(t.messages))
	copy(out, t.messages)
	return out
}

// Active returns the assistant message targeted by the current or last turn.
func (t *Transcript) Active() (llm.ChatMessage, bool) {
	if i := t.activeIndex(); i >= 0 {
		return t.messages[i], true
	}
	return llm.ChatMessage{}, false
}

// Submit appends the user message and an empty assistant placeholder and
// returns the placeholder id. Only one turn may be in flight.
func (t *Transcript) Submit(user llm.ChatMessage) (string, error) {
	if t.InFlight() {
		return "", ErrTurnInFlight
	}

	stamp := t.now().UnixMilli()
	if user.ID == "" {
		user.ID = t.newID()
	}
	if user.Role == "" {
		user.Role = llm.RoleUser
	}
	if user.CreatedAt == 0 {
		user.CreatedAt = stamp
	}

	assistant := llm.ChatMessage{ID: t.newID(), Role: llm.RoleAssistant, CreatedAt: stamp + 1}

	t.messages = append(t.messages, user, assistant)
	t.activeID = assistant.ID
	t.status = StatusSubmitted
	t.frozen = false
	t.errMsg = ""
	return assistant.ID, nil
}

// Apply reduces one parsed frame into the active assistant message. Unknown
// events and undecodable payloads are ignored. It reports whether the frame
// ended the turn.
func (t *Transcript) Apply(ev sse.Event) bool {
	i := t.activeIndex()
	if i < 0 || t.frozen {
		return t.frozen
	}

	if ev.Terminal() {
		t.finish()
		return true
	}

	if t.status == StatusSubmitted {
		t.status = StatusStreaming
	}
	msg := &t.messages[i]

	switch ev.Name() {
	case llm.EventTextDelta, sse.DefaultEventName:
		var p llm.DeltaPayload
		if ev.Decode(&p) == nil && p.Delta != "" {
			msg.Content += p.Delta
		}
	case llm.EventTextDone:
		// Deltas are authoritative. The final text is not re-applied.
	case llm.EventCompleted:
		for _, img := range llm.GeneratedImages([]byte(ev.Data)) {
			msg.Content += "\n" + llm.ImageSentinel(img) + "\n"
		}
		t.finish()
		return true
	case llm.EventImagePartial:
		var p llm.ImagePayload
		if ev.Decode(&p) == nil && p.ImageBase64 != "" {
			msg.ImageBase64 = p.ImageBase64
		}
	case llm.EventError, llm.EventResponseErr:
		var p llm.ErrorPayload
		if ev.Decode(&p) != nil || p.Message == "" {
			p.Message = "Unknown error"
		}
		t.status = StatusError
		t.errMsg = p.Message
	}
	return false
}

// SetImage stores a generated image on the active message and completes
// the turn.
func (t *Transcript) SetImage(b64 string) {
	if i := t.activeIndex(); i >= 0 && !t.frozen {
		t.messages[i].ImageBase64 = b64
		t.finish()
	}
}

// Fail ends the turn as an error, keeping partial content.
func (t *Transcript) Fail(msg string) {
	if t.activeIndex() < 0 || t.frozen {
		return
	}
	t.status = StatusError
	t.errMsg = msg
	t.frozen = true
}

// Cancel ends an in-flight turn on user request. Partial content is kept and
// the transcript becomes ready for the next turn.
func (t *Transcript) Cancel() bool {
	if !t.InFlight() {
		return false
	}
	t.status = StatusReady
	t.frozen = true
	return true
}

// Finish ends the turn when the stream closes without a terminal frame.
func (t *Transcript) Finish() {
	if t.activeIndex() >= 0 && !t.frozen {
		t.finish()
	}
}

func (t *Transcript) finish() {
	if t.status != StatusError {
		t.status = StatusReady
	}
	t.frozen = true
}

func (t *Transcript) activeIndex() int {
	if t.activeID == "" {
		return -1
	}
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].ID == t.activeID {
			return i
		}
	}
	return -1
}

// Replay applies events to a fresh single-turn transcript and returns the
// resulting assistant message with its final status. The same events always
// yield the same content.
func Replay(events []sse.Event) (llm.ChatMessage, Status) {
	t := New()
	t.now = func() time.Time { return time.Time{} }
	seq := 0
	t.newID = func() string {
		seq++
		return fmt.Sprintf("replay-%d", seq)
	}
	if _, err := t.Submit(llm.ChatMessage{Role: llm.RoleUser}); err != nil {
		return llm.ChatMessage{}, StatusError
	}
	for _, ev := range events {
		if t.Apply(ev) {
			break
		}
	}
	t.Finish()

	msg, _ := t.Active()
	return msg, t.Status()
}
