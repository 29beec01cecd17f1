package toolloop

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/courtside/internal/backend/ollama"
	"github.com/tjfontaine/courtside/internal/chunk"
	"github.com/tjfontaine/courtside/internal/domain"
	"github.com/tjfontaine/courtside/internal/storage"
	"github.com/tjfontaine/courtside/internal/tokens"
)

const tracerName = "github.com/tjfontaine/courtside/internal/toolloop"

// Upstream is the inference backend.
type Upstream interface {
	Chat(ctx context.Context, req *ollama.ChatRequest) (ollama.ChunkReader, error)
}

// Toolbox offers capabilities to the model and runs them.
type Toolbox interface {
	Tools() []domain.Tool
	Invoke(ctx context.Context, name string, args json.RawMessage) (string, error)
}

// Request is one chat exchange.
type Request struct {
	// ID correlates logs and invocation records.
	ID       string
	Model    string
	Messages []domain.ChatMessage
	Stream   bool
	// UseTools enables the tool loop. When false the request is relayed in a
	// single pass without tools.
	UseTools bool

	Format    json.RawMessage
	Options   json.RawMessage
	KeepAlive json.RawMessage
}

// Outcome summarizes a finished Run.
type Outcome struct {
	State    State
	Attempts int
	// Capability is the name of the capability that ran, if any.
	Capability string
	// Err is the failure reported to the client, if any.
	Err error
	// RetrySuppressed is set when a failure had attempts left but was not
	// retried because part of the answer had already been streamed.
	RetrySuppressed bool
}

// Loop runs chat requests against the backend. It holds no per-request state
// and is safe for concurrent use.
type Loop struct {
	upstream Upstream
	tools    Toolbox

	logger             *slog.Logger
	tracer             trace.Tracer
	maxAttempts        int
	toolErrorPolicy    ToolErrorPolicy
	correctiveReprompt bool
	maxFrameBytes      int
	store              storage.InvocationStore
	budget             *tokens.Budget
}

// New creates a Loop.
func New(upstream Upstream, tools Toolbox, opts ...Option) *Loop {
	l := &Loop{
		upstream:        upstream,
		tools:           tools,
		logger:          slog.Default(),
		tracer:          otel.Tracer(tracerName),
		maxAttempts:     DefaultMaxAttempts,
		toolErrorPolicy: ToolErrorRetry,
		maxFrameBytes:   chunk.DefaultMaxFrameBytes,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run executes req and relays the result. Failures are delivered to the
// client through relay as a single error object and also returned in Outcome.
func (l *Loop) Run(ctx context.Context, req *Request, relay *Relay) Outcome {
	logger := l.logger.With("request_id", req.ID, "model", req.Model)

	if !req.UseTools {
		err := l.relayPass(ctx, l.chatRequest(req, req.Messages, nil), relay)
		if err != nil {
			l.fail(ctx, logger, relay, err)
			return Outcome{State: StateFailedTransport, Attempts: 1, Err: err}
		}
		return Outcome{State: StateDirectAnswer, Attempts: 1}
	}

	ctrl := NewController(l.maxAttempts)
	messages := slices.Clone(req.Messages)
	tools := l.tools.Tools()
	var (
		invoked    string
		suppressed bool
	)

	for ctrl.Begin() {
		attempt := ctrl.Attempt()
		relay.Discard()

		actx, span := l.tracer.Start(ctx, "toolloop.attempt",
			trace.WithAttributes(attribute.Int("toolloop.attempt", attempt)))

		directive, err := l.firstPass(actx, l.chatRequest(req, messages, tools), relay)
		if err == nil && directive == nil {
			span.SetAttributes(attribute.String("toolloop.result", "direct_answer"))
			span.End()
			ctrl.Answer()
			break
		}

		if err == nil {
			logger.Info("tool call detected", "capability", directive.Name, "attempt", attempt)
			var result string
			result, err = l.invoke(actx, req, attempt, directive)
			if err == nil {
				span.SetAttributes(attribute.String("toolloop.result", "tool_call"))
				span.End()
				ctrl.Succeed()
				invoked = directive.Name
				// Buffered pass-1 text is superseded by the second pass.
				relay.Discard()
				messages = append(messages, domain.ChatMessage{
					Role:     domain.RoleTool,
					Content:  result,
					ToolName: directive.Name,
				})
				break
			}
			if l.toolErrorPolicy == ToolErrorFatal {
				span.RecordError(err)
				span.End()
				ctrl.Abort(err)
				break
			}
		}

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()

		if ctx.Err() != nil {
			// Client went away; nothing left to deliver.
			ctrl.Abort(domain.WrapError(domain.ErrorKindTransport, "request canceled", ctx.Err()))
			return Outcome{State: ctrl.State(), Attempts: attempt, Err: ctx.Err()}
		}

		logger.Warn("tool call attempt failed", "attempt", attempt, "max_attempts", ctrl.MaxAttempts(), "error", err)

		if relay.Committed() {
			// Output already reached the client and cannot be retracted, so a
			// retry would repeat it.
			suppressed = attempt < ctrl.MaxAttempts()
			if suppressed {
				logger.Warn("not retrying after streamed output", "attempt", attempt, "max_attempts", ctrl.MaxAttempts())
			}
			ctrl.Abort(err)
			break
		}
		if !ctrl.Fail(err) {
			break
		}
		if l.correctiveReprompt {
			messages = append(messages, domain.ChatMessage{
				Role:    domain.RoleUser,
				Content: fmt.Sprintf("The previous attempt failed: %v. If a tool is needed, call it with all required arguments.", err),
			})
		}
	}

	out := Outcome{State: ctrl.State(), Attempts: ctrl.Attempt(), Capability: invoked, RetrySuppressed: suppressed}
	switch ctrl.State() {
	case StateDirectAnswer:
		if err := relay.Flush(); err != nil {
			out.Err = err
		}
	case StateSucceeded:
		if err := l.relayPass(ctx, l.chatRequest(req, messages, nil), relay); err != nil {
			l.fail(ctx, logger, relay, err)
			out.Err = err
		}
	default:
		out.Err = ctrl.Err()
		l.fail(ctx, logger, relay, out.Err)
	}

	logger.Info("tool loop finished", "state", out.State.String(), "attempts", out.Attempts, "capability", invoked)
	return out
}

func (l *Loop) chatRequest(req *Request, messages []domain.ChatMessage, tools []domain.Tool) *ollama.ChatRequest {
	return &ollama.ChatRequest{
		Model:     req.Model,
		Messages:  messages,
		Tools:     tools,
		Stream:    req.Stream,
		Format:    req.Format,
		Options:   req.Options,
		KeepAlive: req.KeepAlive,
	}
}

// firstPass streams one backend response, relaying chunks until a tool call
// appears. It returns the directive, or nil when the model answered directly.
func (l *Loop) firstPass(ctx context.Context, creq *ollama.ChatRequest, relay *Relay) (*domain.ToolCallDirective, error) {
	stream, err := l.upstream.Chat(ctx, creq)
	if err != nil {
		return nil, err
	}
	// Closing on return also short-circuits the rest of the response once a
	// tool call is found.
	defer stream.Close()

	p := &pass{relay: relay, dec: chunk.NewDecoder(chunk.WithMaxFrameBytes(l.maxFrameBytes))}
	for {
		data, readErr := stream.Next()
		if len(data) > 0 {
			if d, err := p.consume(p.dec.Feed(data)); d != nil || err != nil {
				return d, err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return p.consume(p.dec.Close())
}

type pass struct {
	relay   *Relay
	dec     *chunk.Decoder
	relayed bool
}

func (p *pass) consume(results []chunk.Result) (*domain.ToolCallDirective, error) {
	for _, r := range results {
		switch r.Kind {
		case chunk.KindDecoded:
			if r.HasToolCall() {
				return r.Directive, nil
			}
			if err := p.write(r.Raw); err != nil {
				return nil, err
			}
			if len(bytes.TrimSpace(r.Raw)) > 0 {
				p.relayed = true
			}
		case chunk.KindMalformedTerminal:
			// Nothing usable yet: the attempt failed. After real output the
			// tail is passed through as the model produced it.
			if !p.relayed {
				return nil, domain.NewError(domain.ErrorKindDecode, "backend returned malformed output")
			}
			if err := p.write(r.Raw); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

func (p *pass) write(raw []byte) error {
	if _, err := p.relay.Write(raw); err != nil {
		return domain.WrapError(domain.ErrorKindTransport, "failed to write to client", err)
	}
	return nil
}

// relayPass sends creq and relays the whole response verbatim.
func (l *Loop) relayPass(ctx context.Context, creq *ollama.ChatRequest, relay *Relay) error {
	stream, err := l.upstream.Chat(ctx, creq)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		data, err := stream.Next()
		if len(data) > 0 {
			if _, werr := relay.Write(data); werr != nil {
				return domain.WrapError(domain.ErrorKindTransport, "failed to write to client", werr)
			}
		}
		if errors.Is(err, io.EOF) {
			return relay.Flush()
		}
		if err != nil {
			return err
		}
	}
}

func (l *Loop) invoke(ctx context.Context, req *Request, attempt int, d *domain.ToolCallDirective) (string, error) {
	ctx, span := l.tracer.Start(ctx, "toolloop.invoke",
		trace.WithAttributes(attribute.String("toolloop.capability", d.Name)))
	defer span.End()

	start := time.Now()
	result, err := l.tools.Invoke(ctx, d.Name, d.Arguments)
	duration := time.Since(start)

	var truncated bool
	if err == nil {
		result, truncated = l.budget.Truncate(result)
		if truncated {
			l.logger.Info("capability result truncated", "request_id", req.ID,
				"capability", d.Name, "max_tokens", l.budget.Max())
		}
	} else {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	l.record(ctx, &storage.Invocation{
		ID:         uuid.NewString(),
		RequestID:  req.ID,
		Model:      req.Model,
		Capability: d.Name,
		Arguments:  d.Arguments,
		Attempt:    attempt,
		Result:     result,
		Truncated:  truncated,
		ErrorKind:  string(domain.KindOf(err)),
		Error:      errorString(err),
		Duration:   duration,
	})
	return result, err
}

func (l *Loop) record(ctx context.Context, inv *storage.Invocation) {
	if l.store == nil {
		return
	}
	// Recording must not depend on the client still being connected.
	if err := l.store.RecordInvocation(context.WithoutCancel(ctx), inv); err != nil {
		l.logger.Warn("failed to record invocation", "capability", inv.Capability, "error", err)
	}
}

func (l *Loop) fail(ctx context.Context, logger *slog.Logger, relay *Relay, err error) {
	if ctx.Err() != nil {
		return
	}
	logger.Error("chat request failed", "error", err)
	if werr := relay.Fail(err.Error()); werr != nil {
		logger.Warn("failed to deliver error to client", "error", werr)
	}
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
