// Package ollama is a minimal streaming client for the Ollama HTTP API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/courtside/internal/domain"
)

const (
	defaultBaseURL = "http://localhost:11434"
	readBufferSize = 32 * 1024
	maxErrorBody   = 64 * 1024
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// Client talks to an Ollama server. It is safe for concurrent use; the
// underlying connection pool is shared by all requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Ollama API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		// No client timeout: streamed generations may run for minutes and are
		// bounded by the request context instead.
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Chat issues POST /api/chat and returns the response body as a chunk stream.
// The stream is lazy and not restartable; retries need a fresh call.
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (ChunkReader, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.post(ctx, "/api/chat", body)
}

// Generate issues POST /api/generate with a prepared body.
func (c *Client) Generate(ctx context.Context, body []byte) (ChunkReader, error) {
	return c.post(ctx, "/api/generate", body)
}

// Tags retrieves the list of local models as raw JSON.
func (c *Client) Tags(ctx context.Context) (json.RawMessage, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorKindTransport, "ollama request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, backendError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorKindTransport, "failed to read response", err)
	}
	if !json.Valid(body) {
		return nil, domain.NewError(domain.ErrorKindDecode, "ollama returned an invalid model list")
	}
	return body, nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (ChunkReader, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, domain.WrapError(domain.ErrorKindTransport, "ollama request failed", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, backendError(resp)
	}

	return &Stream{body: resp.Body, buf: make([]byte, readBufferSize)}, nil
}

// backendError converts a non-2xx response into an upstream_backend error,
// preferring Ollama's {"error": "..."} message when present.
func backendError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	if e := gjson.GetBytes(raw, "error"); e.Type == gjson.String {
		msg = e.Str
	}
	if msg == "" {
		msg = resp.Status
	}
	return domain.NewError(domain.ErrorKindUpstreamBackend,
		fmt.Sprintf("ollama returned status %d: %s", resp.StatusCode, msg)).
		WithStatusCode(resp.StatusCode)
}

// Stream is a ChunkReader over an HTTP response body.
type Stream struct {
	body io.ReadCloser
	buf  []byte
	err  error
}

// Next returns the bytes delivered by the next body read.
func (s *Stream) Next() ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	for {
		n, err := s.body.Read(s.buf)
		if n > 0 {
			chunk := bytes.Clone(s.buf[:n])
			if err != nil {
				s.err = classifyReadError(err)
			}
			return chunk, nil
		}
		if err != nil {
			s.err = classifyReadError(err)
			return nil, s.err
		}
	}
}

// Close closes the response body.
func (s *Stream) Close() error {
	if s.err == nil {
		s.err = io.EOF
	}
	return s.body.Close()
}

func classifyReadError(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return domain.WrapError(domain.ErrorKindTransport, "ollama stream interrupted", err)
}
