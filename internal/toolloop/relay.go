package toolloop

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// Content types for the two transfer modes.
const (
	ContentTypeNDJSON = "application/x-ndjson"
	ContentTypeJSON   = "application/json"
)

// Relay delivers backend bytes to the client in the requested transfer mode.
// In streaming mode every write is flushed immediately; in buffered mode
// output is held until Flush so an attempt can still be discarded.
type Relay struct {
	w       http.ResponseWriter
	flusher http.Flusher
	stream  bool

	contentType string

	buf        bytes.Buffer
	committed  bool
	headerSent bool
	failed     bool
}

// NewRelay creates a relay writing to w.
func NewRelay(w http.ResponseWriter, stream bool) *Relay {
	r := &Relay{w: w, stream: stream}
	r.flusher, _ = w.(http.Flusher)
	return r
}

// Streaming reports whether the relay is in streaming mode.
func (r *Relay) Streaming() bool { return r.stream }

// SetContentType overrides the content type chosen by the transfer mode.
// It has no effect once the header was sent.
func (r *Relay) SetContentType(ct string) {
	r.contentType = ct
}

// ContentType returns the response content type for the transfer mode.
func (r *Relay) ContentType() string {
	if r.contentType != "" {
		return r.contentType
	}
	if r.stream {
		return ContentTypeNDJSON
	}
	return ContentTypeJSON
}

// Committed reports whether any bytes have reached the client. Committed
// output cannot be retracted, so retries are only possible before this.
func (r *Relay) Committed() bool { return r.committed }

// Pending returns the number of buffered bytes not yet sent.
func (r *Relay) Pending() int { return r.buf.Len() }

// Write relays p.
func (r *Relay) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if !r.stream {
		return r.buf.Write(p)
	}
	if err := r.send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Discard drops buffered output that has not been sent.
func (r *Relay) Discard() {
	r.buf.Reset()
}

// Flush sends buffered output. The response header is written even when
// there is nothing to send.
func (r *Relay) Flush() error {
	if r.buf.Len() == 0 && r.headerSent {
		return nil
	}
	data := bytes.Clone(r.buf.Bytes())
	r.buf.Reset()
	return r.send(data)
}

// Fail sends a single {"error": msg} object, newline-terminated in streaming
// mode. Buffered output that was not yet sent is dropped so the client never
// receives two JSON documents. Only the first call has an effect.
func (r *Relay) Fail(msg string) error {
	if r.failed {
		return nil
	}
	r.failed = true
	r.Discard()

	data, err := json.Marshal(map[string]string{"error": msg})
	if err != nil {
		return err
	}
	if r.stream {
		data = append(data, '\n')
	}
	return r.send(data)
}

// Failed reports whether an error object was sent.
func (r *Relay) Failed() bool { return r.failed }

func (r *Relay) send(p []byte) error {
	if !r.headerSent {
		r.headerSent = true
		r.w.Header().Set("Content-Type", r.ContentType())
		r.w.WriteHeader(http.StatusOK)
	}
	if len(p) == 0 {
		return nil
	}
	r.committed = true
	if _, err := r.w.Write(p); err != nil {
		return err
	}
	if r.stream && r.flusher != nil {
		r.flusher.Flush()
	}
	return nil
}
