// Package chunk turns the raw byte chunks of a streamed backend response into
// decode results, buffering partial JSON until a whole value is available.
package chunk

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"

	"github.com/tjfontaine/courtside/internal/domain"
)

// DefaultMaxFrameBytes bounds how much unparsed data a Decoder holds before
// giving up on the pending frame.
const DefaultMaxFrameBytes = 4 << 20

// Kind classifies a decode attempt.
type Kind int

const (
	// KindIncomplete means more bytes are needed; the data stays buffered.
	KindIncomplete Kind = iota
	// KindDecoded means a complete JSON value was parsed.
	KindDecoded
	// KindMalformedTerminal means bytes that can never parse: a bad line
	// mid-stream, a frame over the limit, or leftovers at end of stream.
	KindMalformedTerminal
)

func (k Kind) String() string {
	switch k {
	case KindIncomplete:
		return "incomplete"
	case KindDecoded:
		return "decoded"
	case KindMalformedTerminal:
		return "malformed_terminal"
	default:
		return "unknown"
	}
}

// Result is the outcome of one decode attempt.
type Result struct {
	Kind Kind
	// Raw holds the exact bytes the result covers, including surrounding
	// whitespace, so relaying Raw reproduces the upstream byte stream.
	// Empty for KindIncomplete.
	Raw []byte
	// Directive is set when a decoded object carries a non-empty message.tool_calls.
	Directive *domain.ToolCallDirective
}

// HasToolCall reports whether the result carries a tool-call directive.
func (r Result) HasToolCall() bool {
	return r.Kind == KindDecoded && r.Directive != nil
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxFrameBytes sets the pending-frame limit. Values <= 0 disable it.
func WithMaxFrameBytes(n int) Option {
	return func(d *Decoder) {
		d.maxFrame = n
	}
}

// Decoder incrementally decodes a stream of concatenated JSON values
// (newline-delimited or not). A line that can never parse is reported as
// KindMalformedTerminal and decoding resumes after it. It is not safe for
// concurrent use.
type Decoder struct {
	buf      []byte
	maxFrame int

	// Scan state of the pending value, so each byte is examined once
	// between decode attempts.
	scan     int
	depth    int
	inString bool
	escaped  bool
}

// NewDecoder creates a Decoder.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{maxFrame: DefaultMaxFrameBytes}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Buffered returns the number of bytes waiting for a complete value.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Feed appends p to the buffer and returns every value that can now be decoded,
// in stream order. When bytes remain pending the last result is KindIncomplete.
func (d *Decoder) Feed(p []byte) []Result {
	d.buf = append(d.buf, p...)

	var out []Result
decode:
	for {
		start := skipSpace(d.buf, 0)
		if start == len(d.buf) || !d.ready(start) {
			break
		}

		dec := json.NewDecoder(bytes.NewReader(d.buf[start:]))
		var value json.RawMessage
		err := dec.Decode(&value)

		var syntaxErr *json.SyntaxError
		switch {
		case err == nil:
			end := consumeLineEnd(d.buf, start+int(dec.InputOffset()))
			out = append(out, Result{
				Kind:      KindDecoded,
				Raw:       bytes.Clone(d.buf[:end]),
				Directive: ProbeToolCall(value),
			})
			d.advance(end)
		case errors.As(err, &syntaxErr):
			end := badLineEnd(d.buf, start, start+int(syntaxErr.Offset)-1)
			if end < 0 {
				// The rest of the bad line has not arrived yet.
				break decode
			}
			out = append(out, Result{Kind: KindMalformedTerminal, Raw: bytes.Clone(d.buf[:end])})
			d.advance(end)
		default:
			// Truncated so far. Keep scanning what is already buffered
			// before waiting for more bytes.
			if d.scan >= len(d.buf) {
				break decode
			}
		}
	}

	if len(d.buf) == 0 {
		d.advance(0)
		return out
	}

	if d.maxFrame > 0 && len(d.buf) > d.maxFrame {
		out = append(out, Result{Kind: KindMalformedTerminal, Raw: d.buf})
		d.buf = nil
		d.advance(0)
		return out
	}

	return append(out, Result{Kind: KindIncomplete})
}

// ready reports whether the value starting at start may be complete. Objects
// and arrays are ready once their brackets balance, or at a newline, which
// ends an NDJSON line whether or not it parses. Anything else is tried as is.
func (d *Decoder) ready(start int) bool {
	if c := d.buf[start]; c != '{' && c != '[' {
		d.scan = len(d.buf)
		return true
	}
	if d.scan < start {
		d.scan = start
	}
	for d.scan < len(d.buf) {
		c := d.buf[d.scan]
		d.scan++
		if d.inString {
			switch {
			case c == '\n':
				return true
			case d.escaped:
				d.escaped = false
			case c == '\\':
				d.escaped = true
			case c == '"':
				d.inString = false
			}
			continue
		}
		switch c {
		case '"':
			d.inString = true
		case '{', '[':
			d.depth++
		case '}', ']':
			d.depth--
			if d.depth <= 0 {
				return true
			}
		case '\n':
			return true
		}
	}
	return false
}

// advance drops the first n buffered bytes and resets the scan state.
func (d *Decoder) advance(n int) {
	d.buf = d.buf[n:]
	if len(d.buf) == 0 {
		d.buf = nil
	}
	d.scan, d.depth = 0, 0
	d.inString, d.escaped = false, false
}

// badLineEnd returns the end of the unparseable line that starts at start,
// given the offset of the offending byte, or -1 if that line is not yet
// terminated. When the offending byte opens a new line, the value before it
// was cut short and only the earlier lines are bad.
func badLineEnd(b []byte, start, bad int) int {
	bad = max(bad, start)
	if i := bytes.LastIndexByte(b[start:bad], '\n'); i >= 0 {
		return start + i + 1
	}
	if i := bytes.IndexByte(b[bad:], '\n'); i >= 0 {
		return bad + i + 1
	}
	return -1
}

// Close flushes the decoder at end of stream. Leftover bytes that never formed
// a value are returned as KindMalformedTerminal; a whitespace-only tail is
// returned as an empty KindDecoded result so no byte is lost.
func (d *Decoder) Close() []Result {
	if len(d.buf) == 0 {
		return nil
	}
	rest := d.buf
	d.buf = nil

	if skipSpace(rest, 0) == len(rest) {
		return []Result{{Kind: KindDecoded, Raw: rest}}
	}
	return []Result{{Kind: KindMalformedTerminal, Raw: rest}}
}

// ProbeToolCall extracts the first entry of message.tool_calls from a decoded
// chat chunk. It returns nil when the field is absent or empty.
func ProbeToolCall(value []byte) *domain.ToolCallDirective {
	calls := gjson.GetBytes(value, "message.tool_calls")
	if !calls.IsArray() {
		return nil
	}
	entries := calls.Array()
	if len(entries) == 0 {
		return nil
	}

	fn := entries[0].Get("function")
	directive := &domain.ToolCallDirective{
		Name:      fn.Get("name").String(),
		Arguments: json.RawMessage("{}"),
	}

	// Ollama sends arguments as an object; OpenAI-style backends send a JSON string.
	switch args := fn.Get("arguments"); args.Type {
	case gjson.JSON:
		directive.Arguments = json.RawMessage(args.Raw)
	case gjson.String:
		if args.Str != "" {
			directive.Arguments = json.RawMessage(args.Str)
		}
	}
	return directive
}

func skipSpace(b []byte, i int) int {
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	return i
}

// consumeLineEnd extends end over trailing blanks up to and including the
// first newline, so each result owns its delimiter.
func consumeLineEnd(b []byte, end int) int {
	for end < len(b) && isSpace(b[end]) {
		end++
		if b[end-1] == '\n' {
			break
		}
	}
	return end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
