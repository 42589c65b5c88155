package sse

import (
	"errors"
	"io"
)

const readChunkSize = 32 * 1024

// Reader pulls SSE events from an io.Reader. Optionally it copies every raw
// byte it reads to a destination writer, for callers that forward the stream
// verbatim while inspecting it.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │  Reader.Next()   │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
type Reader struct {
	src  io.Reader
	dest io.Writer

	parser  *Parser
	pending []Event
	chunk   []byte
	done    bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	return NewTeeReader(src, nil)
}

// NewTeeReader returns a Reader over src that also writes all raw bytes to
// dest. A nil dest disables the copy.
func NewTeeReader(src io.Reader, dest io.Writer) *Reader {
	return &Reader{
		src:    src,
		dest:   dest,
		parser: NewParser(),
		chunk:  make([]byte, readChunkSize),
	}
}

// Next blocks until a complete event is available and returns it. After the
// source is exhausted any leftover bytes are flushed once. Next returns
// nil, nil when no events remain.
func (r *Reader) Next() (*Event, error) {
	for len(r.pending) == 0 {
		if r.done {
			return nil, nil
		}
		if err := r.fill(); err != nil {
			return nil, err
		}
	}

	ev := r.pending[0]
	r.pending = r.pending[1:]
	return &ev, nil
}

func (r *Reader) fill() error {
	n, err := r.src.Read(r.chunk)
	if n > 0 {
		if r.dest != nil {
			if _, werr := r.dest.Write(r.chunk[:n]); werr != nil {
				return werr
			}
		}
		r.pending = append(r.pending, r.parser.Feed(r.chunk[:n])...)
	}

	switch {
	case errors.Is(err, io.EOF):
		r.pending = append(r.pending, r.parser.Flush()...)
		r.done = true
		return nil
	case err != nil:
		return err
	}
	return nil
}
