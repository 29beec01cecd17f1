package toolloop

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/courtside/internal/storage"
	"github.com/tjfontaine/courtside/internal/tokens"
)

// ToolErrorPolicy decides what a failed capability invocation does to the loop.
type ToolErrorPolicy string

const (
	// ToolErrorRetry counts the failure against the attempt budget.
	ToolErrorRetry ToolErrorPolicy = "retry"
	// ToolErrorFatal ends the request on the first failure.
	ToolErrorFatal ToolErrorPolicy = "fatal"
)

// ParseToolErrorPolicy parses a policy name. Empty selects ToolErrorRetry.
func ParseToolErrorPolicy(s string) (ToolErrorPolicy, error) {
	switch ToolErrorPolicy(s) {
	case "", ToolErrorRetry:
		return ToolErrorRetry, nil
	case ToolErrorFatal:
		return ToolErrorFatal, nil
	default:
		return "", fmt.Errorf("unknown tool error policy %q (want retry or fatal)", s)
	}
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithTracer sets the tracer used for attempt and invocation spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(l *Loop) {
		l.tracer = tracer
	}
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) Option {
	return func(l *Loop) {
		l.maxAttempts = n
	}
}

// WithToolErrorPolicy sets how failed invocations are treated.
func WithToolErrorPolicy(p ToolErrorPolicy) Option {
	return func(l *Loop) {
		l.toolErrorPolicy = p
	}
}

// WithCorrectiveReprompt appends a user message describing the previous
// failure before each retry. Disabled by default; retries resend the same
// conversation.
func WithCorrectiveReprompt(enabled bool) Option {
	return func(l *Loop) {
		l.correctiveReprompt = enabled
	}
}

// WithMaxFrameBytes bounds a single undecodable frame of backend output.
func WithMaxFrameBytes(n int) Option {
	return func(l *Loop) {
		l.maxFrameBytes = n
	}
}

// WithInvocationStore records every capability invocation.
func WithInvocationStore(store storage.InvocationStore) Option {
	return func(l *Loop) {
		l.store = store
	}
}

// WithResultBudget truncates capability results before they are injected.
func WithResultBudget(budget *tokens.Budget) Option {
	return func(l *Loop) {
		l.budget = budget
	}
}
