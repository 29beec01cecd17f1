package ollama

import (
	"encoding/json"

	"github.com/tjfontaine/courtside/internal/domain"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model    string               `json:"model"`
	Messages []domain.ChatMessage `json:"messages"`
	Tools    []domain.Tool        `json:"tools,omitempty"`
	Stream   bool                 `json:"stream"`

	// Pass-through fields forwarded untouched from the client.
	Format    json.RawMessage `json:"format,omitempty"`
	Options   json.RawMessage `json:"options,omitempty"`
	KeepAlive json.RawMessage `json:"keep_alive,omitempty"`
}

// ChunkReader yields the raw body of a streamed response chunk by chunk.
type ChunkReader interface {
	// Next returns the next chunk as it arrives, or io.EOF once the backend
	// closes the response.
	Next() ([]byte, error)
	// Close releases the connection. Unread data is discarded.
	Close() error
}
