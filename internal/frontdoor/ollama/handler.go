// Package ollama serves the Ollama-compatible HTTP surface that chat UIs talk
// to, routing chat turns through the tool loop.
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	backend "github.com/tjfontaine/courtside/internal/backend/ollama"
	"github.com/tjfontaine/courtside/internal/domain"
	"github.com/tjfontaine/courtside/internal/server"
	"github.com/tjfontaine/courtside/internal/storage"
	"github.com/tjfontaine/courtside/internal/toolloop"
)

const (
	// Version is reported by /api/version.
	Version = "0.1.0"

	DefaultModel        = "llama3.2:1b"
	DefaultTaskModel    = "llama3.2:1b"
	DefaultPromptPrefix = "Process this request: "
	DefaultSystemPrompt = "You are an assistant with access to tools, if you do not have a tool to deal with the user's request but you think you can answer do it so, if not explain your capabilities"

	maxRequestBody = 32 << 20
)

// housekeepingTasks are UI-internal requests that never use tools.
var housekeepingTasks = map[string]bool{
	"title_generation":        true,
	"tags_generation":         true,
	"autocomplete_generation": true,
}

// IsHousekeepingTask reports whether task is answered without tools by the
// task model.
func IsHousekeepingTask(task string) bool {
	return housekeepingTasks[task]
}

// Upstream is the part of the Ollama client the handlers need.
type Upstream interface {
	toolloop.Upstream
	Generate(ctx context.Context, body []byte) (backend.ChunkReader, error)
	Tags(ctx context.Context) (json.RawMessage, error)
}

// Runner executes a chat exchange.
type Runner interface {
	Run(ctx context.Context, req *toolloop.Request, relay *toolloop.Relay) toolloop.Outcome
}

// HandlerRegistration binds a handler to a route.
type HandlerRegistration struct {
	Path    string
	Method  string
	Handler http.HandlerFunc
}

// Handler implements the Ollama API endpoints.
type Handler struct {
	upstream Upstream
	runner   Runner
	store    storage.InvocationStore
	logger   *slog.Logger

	defaultModel string
	taskModel    string
	systemPrompt string
	promptPrefix string
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithDefaultModel sets the model used when a chat request names none.
func WithDefaultModel(model string) Option {
	return func(h *Handler) { h.defaultModel = model }
}

// WithTaskModel sets the model used for housekeeping tasks.
func WithTaskModel(model string) Option {
	return func(h *Handler) { h.taskModel = model }
}

// WithSystemPrompt sets the system message injected into conversations that
// carry none.
func WithSystemPrompt(prompt string) Option {
	return func(h *Handler) { h.systemPrompt = prompt }
}

// WithPromptPrefix sets the text prepended to /api/generate prompts.
func WithPromptPrefix(prefix string) Option {
	return func(h *Handler) { h.promptPrefix = prefix }
}

// WithInvocationStore exposes recorded invocations under /admin/invocations.
func WithInvocationStore(store storage.InvocationStore) Option {
	return func(h *Handler) { h.store = store }
}

// NewHandler creates the handler set.
func NewHandler(upstream Upstream, runner Runner, opts ...Option) *Handler {
	h := &Handler{
		upstream:     upstream,
		runner:       runner,
		logger:       slog.Default(),
		defaultModel: DefaultModel,
		taskModel:    DefaultTaskModel,
		systemPrompt: DefaultSystemPrompt,
		promptPrefix: DefaultPromptPrefix,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handlers returns the routes served by h.
func (h *Handler) Handlers() []HandlerRegistration {
	regs := []HandlerRegistration{
		{Path: "/healthz", Method: http.MethodGet, Handler: h.HandleHealth},
		{Path: "/api/version", Method: http.MethodGet, Handler: h.HandleVersion},
		{Path: "/api/tags", Method: http.MethodGet, Handler: h.HandleTags},
		{Path: "/api/chat", Method: http.MethodPost, Handler: h.HandleChat},
		{Path: "/api/generate", Method: http.MethodPost, Handler: h.HandleGenerate},
	}
	if h.store != nil {
		regs = append(regs, HandlerRegistration{Path: "/admin/invocations", Method: http.MethodGet, Handler: h.HandleInvocations})
	}
	return regs
}

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Model     string               `json:"model"`
	Messages  []domain.ChatMessage `json:"messages"`
	Stream    *bool                `json:"stream,omitempty"`
	Metadata  *ChatMetadata        `json:"metadata,omitempty"`
	Format    json.RawMessage      `json:"format,omitempty"`
	Options   json.RawMessage      `json:"options,omitempty"`
	KeepAlive json.RawMessage      `json:"keep_alive,omitempty"`
}

// ChatMetadata carries UI hints sent alongside a chat request.
type ChatMetadata struct {
	Task string `json:"task,omitempty"`
}

// Streaming reports the requested transfer mode. Streaming is the default.
func (r *ChatRequest) Streaming() bool {
	return r.Stream == nil || *r.Stream
}

// Task returns the housekeeping task name, if any.
func (r *ChatRequest) Task() string {
	if r.Metadata == nil {
		return ""
	}
	return r.Metadata.Task
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) HandleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"version": Version, "custom_server": true})
}

// HandleTags passes the backend's model list through unchanged.
func (h *Handler) HandleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.upstream.Tags(r.Context())
	if err != nil {
		h.logger.Error("failed to list models", slog.String("request_id", server.GetRequestID(r.Context())), slog.String("error", err.Error()))
		server.AddError(r.Context(), err)
		writeError(w, http.StatusOK, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(tags)
}

// HandleChat runs a chat turn, using tools unless the request is a
// housekeeping task.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	requestID := server.GetRequestID(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.badRequest(w, r, fmt.Errorf("invalid chat request: %w", err))
		return
	}
	if len(req.Messages) == 0 {
		h.badRequest(w, r, errors.New("messages is required"))
		return
	}

	task := req.Task()
	useTools := !IsHousekeepingTask(task)

	model := req.Model
	if !useTools {
		model = h.taskModel
	} else if model == "" {
		model = h.defaultModel
	}

	server.AddLogField(r.Context(), "requested_model", req.Model)
	server.AddLogField(r.Context(), "model", model)
	server.AddLogField(r.Context(), "task", task)

	relay := toolloop.NewRelay(w, req.Streaming())
	out := h.runner.Run(r.Context(), &toolloop.Request{
		ID:        requestID,
		Model:     model,
		Messages:  domain.WithSystemPrompt(req.Messages, h.systemPrompt),
		Stream:    req.Streaming(),
		UseTools:  useTools,
		Format:    req.Format,
		Options:   req.Options,
		KeepAlive: req.KeepAlive,
	}, relay)

	server.AddLogField(r.Context(), "tool_loop_state", out.State.String())
	server.AddLogField(r.Context(), "capability", out.Capability)
	if out.Attempts > 1 {
		server.AddLogField(r.Context(), "attempts", strconv.Itoa(out.Attempts))
	}
	if out.RetrySuppressed {
		server.AddLogField(r.Context(), "retry_suppressed", "true")
	}
	server.AddError(r.Context(), out.Err)
}

// HandleGenerate forwards a completion request with the prompt prefixed and
// streams the backend response back.
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	requestID := server.GetRequestID(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		h.badRequest(w, r, fmt.Errorf("failed to read request: %w", err))
		return
	}
	body, err = h.rewriteGenerate(body)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	server.AddLogField(r.Context(), "model", gjson.GetBytes(body, "model").String())

	relay := toolloop.NewRelay(w, true)
	relay.SetContentType(toolloop.ContentTypeJSON)

	if err := h.relayGenerate(r.Context(), body, relay); err != nil {
		server.AddError(r.Context(), err)
		if r.Context().Err() != nil {
			return
		}
		h.logger.Error("generate request failed", slog.String("request_id", requestID), slog.String("error", err.Error()))
		if werr := relay.Fail(err.Error()); werr != nil {
			h.logger.Warn("failed to deliver error to client", slog.String("request_id", requestID), slog.String("error", werr.Error()))
		}
	}
}

// rewriteGenerate prefixes the prompt, fills in the default model and forces
// streaming. Every other field is forwarded as sent.
func (h *Handler) rewriteGenerate(body []byte) ([]byte, error) {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, errors.New("invalid generate request: body must be a JSON object")
	}
	prompt := gjson.GetBytes(body, "prompt")
	if prompt.Exists() && prompt.Type != gjson.String {
		return nil, errors.New("invalid generate request: prompt must be a string")
	}

	out, err := sjson.SetBytes(body, "prompt", h.promptPrefix+prompt.String())
	if err != nil {
		return nil, fmt.Errorf("rewrite prompt: %w", err)
	}
	if gjson.GetBytes(out, "model").String() == "" {
		if out, err = sjson.SetBytes(out, "model", h.defaultModel); err != nil {
			return nil, fmt.Errorf("set model: %w", err)
		}
	}
	if out, err = sjson.SetBytes(out, "stream", true); err != nil {
		return nil, fmt.Errorf("set stream: %w", err)
	}
	return out, nil
}

func (h *Handler) relayGenerate(ctx context.Context, body []byte, relay *toolloop.Relay) error {
	stream, err := h.upstream.Generate(ctx, body)
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

// HandleInvocations lists recorded capability invocations, newest first.
func (h *Handler) HandleInvocations(w http.ResponseWriter, r *http.Request) {
	opts := storage.ListOptions{Capability: r.URL.Query().Get("capability")}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			h.badRequest(w, r, fmt.Errorf("invalid limit %q", v))
			return
		}
		opts.Limit = limit
	}

	records, err := h.store.ListInvocations(r.Context(), opts)
	if err != nil {
		server.AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []*storage.Invocation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invocations": records})
}

func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("rejected request",
		slog.String("request_id", server.GetRequestID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	server.AddError(r.Context(), err)
	writeError(w, http.StatusBadRequest, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
