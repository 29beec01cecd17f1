// Package storage defines the audit record of tool invocations and the
// store interface its backends implement.
package storage

import (
	"context"
	"encoding/json"
	"time"
)

// DefaultListLimit caps list results when no limit is given.
const DefaultListLimit = 50

// Invocation records one capability invocation made on behalf of a chat request.
type Invocation struct {
	ID         string          `json:"id"`
	RequestID  string          `json:"request_id,omitempty"`
	Model      string          `json:"model"`
	Capability string          `json:"capability"`
	Arguments  json.RawMessage `json:"arguments"`
	Attempt    int             `json:"attempt"`
	Result     string          `json:"result,omitempty"`
	Truncated  bool            `json:"truncated,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration_ns"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ListOptions filters ListInvocations.
type ListOptions struct {
	// Capability restricts results to one capability name.
	Capability string
	// Limit caps the number of results; <= 0 uses DefaultListLimit.
	Limit int
}

// EffectiveLimit returns the limit to apply.
func (o ListOptions) EffectiveLimit() int {
	if o.Limit <= 0 {
		return DefaultListLimit
	}
	return o.Limit
}

// InvocationStore persists invocation records.
type InvocationStore interface {
	// RecordInvocation stores inv. CreatedAt is set when zero.
	RecordInvocation(ctx context.Context, inv *Invocation) error
	// ListInvocations returns records newest first.
	ListInvocations(ctx context.Context, opts ListOptions) ([]*Invocation, error)
	Close() error
}
