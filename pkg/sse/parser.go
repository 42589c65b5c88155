package sse

import (
	"bytes"
	"strings"
)

var (
	frameDelimiter = []byte("\n\n")
	crlf           = []byte("\r\n")
	lf             = []byte("\n")
)

// Parser reassembles SSE frames from arbitrarily chunked input. Feeding the
// same bytes in any split yields the same events.
//
// A Parser is not safe for concurrent use.
type Parser struct {
	buf []byte
}

// NewParser returns an empty Parser.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the buffer and returns every frame it completes.
func (p *Parser) Feed(chunk []byte) []Event {
	p.buf = append(p.buf, chunk...)
	if bytes.IndexByte(p.buf, '\r') >= 0 {
		// A trailing lone '\r' stays until its '\n' arrives.
		p.buf = bytes.ReplaceAll(p.buf, crlf, lf)
	}

	var events []Event
	for {
		idx := bytes.Index(p.buf, frameDelimiter)
		if idx < 0 {
			break
		}

		raw := string(p.buf[:idx])
		p.buf = p.buf[idx+len(frameDelimiter):]

		if ev, ok := parseFrame(raw); ok {
			events = append(events, ev)
		}
	}

	if len(p.buf) == 0 {
		p.buf = nil
	}
	return events
}

// Flush parses whatever remains buffered once the input is exhausted and
// resets the Parser. Leftover content with no SSE fields is treated as the
// data of a bare "message" frame.
func (p *Parser) Flush() []Event {
	rest := strings.TrimSpace(string(p.buf))
	p.buf = nil
	if rest == "" {
		return nil
	}

	if ev, ok := parseFrame(rest); ok {
		return []Event{ev}
	}
	return []Event{{Data: rest}}
}

// parseFrame extracts fields from one raw frame. ok is false for frames
// made only of comments or blank lines (keep-alives).
func parseFrame(raw string) (ev Event, ok bool) {
	sawType := false
	sawData := false

	for line := range strings.SplitSeq(raw, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			if !sawType {
				ev.Type = strings.TrimSpace(value)
				sawType = true
			}
			ok = true
		case "data":
			if sawData {
				ev.Data += "\n"
			}
			ev.Data += value
			sawData = true
			ok = true
		case "id":
			ev.ID = value
			ok = true
		default:
			// "retry" and unknown fields are ignored.
		}
	}
	return ev, ok
}
