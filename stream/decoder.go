package stream

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

// doneSentinel terminates a sequence regardless of any bytes that follow.
const doneSentinel = "[DONE]"

// DecoderConfig configures a stream decoder.
type DecoderConfig struct {
	// MaxFrameSize bounds a single frame. A frame growing past this
	// without a delimiter aborts the sequence with ErrFrameTooLarge.
	// Default: 64 KiB
	MaxFrameSize int

	// MaxMalformed is the number of consecutive unparseable frames
	// tolerated before the sequence aborts with *MalformedError.
	// Default: 3
	MaxMalformed int

	// OnMalformed is called with each skipped frame payload.
	OnMalformed func(frame []byte)
}

// Decoder converts a byte stream into a lazy, finite, non-restartable
// sequence of events. Consumers pull one event at a time with Next; the
// decoder never reads ahead of what the next frame requires. A Decoder is
// call-scoped and not safe for concurrent use.
type Decoder struct {
	config DecoderConfig
	r      io.Reader

	buf       []byte
	scratch   []byte
	done      bool
	closed    bool
	sawFinish bool

	events       int64
	malformed    int64
	malformedRun int
	truncated    bool
}

// Stats reports decoder-lifetime counters.
type Stats struct {
	// Events is the number of events yielded.
	Events int64

	// Malformed is the number of frames skipped as unparseable.
	Malformed int64

	// Truncated reports whether the stream ended with unconsumed bytes
	// and no terminal marker.
	Truncated bool
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, config DecoderConfig) *Decoder {
	if config.MaxFrameSize <= 0 {
		config.MaxFrameSize = 64 * 1024
	}
	if config.MaxMalformed <= 0 {
		config.MaxMalformed = 3
	}
	return &Decoder{
		config:  config,
		r:       r,
		scratch: make([]byte, 4096),
	}
}

// Next returns the next event. It returns io.EOF when the sequence has
// terminated cleanly, and a non-EOF error when it aborts. After a non-nil
// return the decoder yields no further events.
func (d *Decoder) Next() (Event, error) {
	if d.closed {
		return Event{}, ErrClosed
	}
	if d.done {
		return Event{}, io.EOF
	}

	for {
		frame, ok := d.extractFrame()
		if !ok {
			if len(d.buf) > d.config.MaxFrameSize {
				d.done = true
				return Event{}, ErrFrameTooLarge
			}
			if err := d.fill(); err != nil {
				d.done = true
				if err != io.EOF {
					return Event{}, err
				}
				// Leftover bytes at end-of-stream are a clean end;
				// without a terminal marker they count as truncation.
				if len(bytes.TrimSpace(d.buf)) > 0 && !d.sawFinish {
					d.truncated = true
				}
				return Event{}, io.EOF
			}
			continue
		}

		payload, hasData := framePayload(frame)
		if !hasData {
			// Comment or keep-alive frame.
			continue
		}
		if payload == "" || payload == doneSentinel {
			d.done = true
			return Event{}, io.EOF
		}

		var c chunk
		if err := json.Unmarshal([]byte(payload), &c); err != nil {
			d.malformed++
			d.malformedRun++
			if d.config.OnMalformed != nil {
				d.config.OnMalformed([]byte(payload))
			}
			if d.malformedRun >= d.config.MaxMalformed {
				d.done = true
				return Event{}, &MalformedError{
					Consecutive: d.malformedRun,
					Frame:       truncate(payload, 128),
				}
			}
			continue
		}
		d.malformedRun = 0

		ev := classify([]byte(payload), c)
		if ev.Kind == KindFinish {
			d.sawFinish = true
		}
		d.events++
		return ev, nil
	}
}

// Close releases the decoder. If the underlying reader is an io.Closer it
// is closed, which releases the connection for a caller that stops pulling.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.done = true
	if c, ok := d.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Stats returns decoder-lifetime counters.
func (d *Decoder) Stats() Stats {
	return Stats{Events: d.events, Malformed: d.malformed, Truncated: d.truncated}
}

// extractFrame pops one blank-line-delimited frame from the buffer.
func (d *Decoder) extractFrame() ([]byte, bool) {
	lf := bytes.Index(d.buf, []byte("\n\n"))
	crlf := bytes.Index(d.buf, []byte("\r\n\r\n"))

	switch {
	case lf < 0 && crlf < 0:
		return nil, false
	case crlf < 0 || (lf >= 0 && lf < crlf):
		frame := d.buf[:lf]
		d.buf = d.buf[lf+2:]
		return frame, true
	default:
		frame := d.buf[:crlf]
		d.buf = d.buf[crlf+4:]
		return frame, true
	}
}

// fill pulls more bytes from the underlying reader into the buffer.
func (d *Decoder) fill() error {
	n, err := d.r.Read(d.scratch)
	if n > 0 {
		d.buf = append(d.buf, d.scratch[:n]...)
		return nil
	}
	if err == nil {
		err = io.EOF
	}
	return err
}

// framePayload joins the data lines of a frame. Multiple data lines
// concatenate with a newline; comment and field lines are ignored.
func framePayload(frame []byte) (string, bool) {
	var parts []string
	hasData := false
	for _, line := range strings.Split(string(frame), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		hasData = true
		parts = append(parts, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
	}
	return strings.Join(parts, "\n"), hasData
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
