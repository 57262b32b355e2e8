// Package sse provides a minimal reader for server-sent event streams
// as emitted by chat/completions-style endpoints.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line; completions deltas are small,
// but reasoning models can emit long single-event payloads.
const maxLineSize = 1024 * 1024

// Event is one parsed server-sent event.
type Event struct {
	Name string // value of the "event:" field, if any
	Data string // concatenated "data:" lines, newline-joined
}

// Reader parses server-sent events from a response body.
type Reader struct {
	s *bufio.Scanner
}

// NewReader wraps r for event-by-event reading.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{s: s}
}

// Next returns the next event, or io.EOF when the stream ends.
// Comment lines and unknown fields are skipped per the SSE spec.
func (r *Reader) Next() (Event, error) {
	var (
		ev       Event
		dataSeen bool
		data     []string
	)
	for r.s.Scan() {
		line := r.s.Text()
		switch {
		case line == "":
			// Blank line terminates an event, but only if one started.
			if dataSeen || ev.Name != "" {
				ev.Data = strings.Join(data, "\n")
				return ev, nil
			}
		case strings.HasPrefix(line, "data:"):
			dataSeen = true
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, ":"):
			// comment, skip
		}
	}
	if err := r.s.Err(); err != nil {
		return Event{}, err
	}
	if dataSeen {
		ev.Data = strings.Join(data, "\n")
		return ev, nil
	}
	return Event{}, io.EOF
}
