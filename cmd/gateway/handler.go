package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dileep-u-k/function-gateway/internal/chat"
	"github.com/dileep-u-k/function-gateway/internal/function"
	"github.com/dileep-u-k/function-gateway/internal/llm"
	"github.com/dileep-u-k/function-gateway/internal/manifest"
	"github.com/dileep-u-k/function-gateway/internal/metrics"
	"github.com/dileep-u-k/function-gateway/internal/sandbox"
	"github.com/dileep-u-k/function-gateway/internal/session"
	"github.com/dileep-u-k/function-gateway/internal/version"
)

// =================================================================================
// Request and response bodies
// =================================================================================

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message" binding:"required"`
}

type chatResponse struct {
	ConversationID string          `json:"conversation_id"`
	Events         []session.Event `json:"events"`
	Usage          llm.Usage       `json:"usage"`
	LatencyMS      int64           `json:"latency_ms"`
	Error          string          `json:"error,omitempty"`
}

type dispatchRequest struct {
	Name           string `json:"name"`
	Arguments      any    `json:"arguments"`
	LastMessage    string `json:"last_message"`
	ConversationID string `json:"conversation_id"`
}

type emitBody struct {
	Method string `json:"method"`
	Data   any    `json:"data"`
}

type dispatchResponse struct {
	Message      string         `json:"message"`
	FunctionName string         `json:"function_name"`
	CallLLM      bool           `json:"call_llm"`
	Emit         *emitBody      `json:"emit,omitempty"`
	Messages     []chat.Message `json:"messages"`
}

// =================================================================================
// Gateway Handler
// =================================================================================

// GatewayHandler serves chat turns and single dispatches against one manifest.
type GatewayHandler struct {
	manifest *manifest.Manifest
	client   llm.LLMClient
	store    chat.Store
	runtime  *sandbox.Runtime
	metrics  *metrics.Metrics
	reporter function.Reporter
	logger   *slog.Logger
	model    string
	verbose  bool
}

func NewGatewayHandler(
	m *manifest.Manifest,
	client llm.LLMClient,
	store chat.Store,
	runtime *sandbox.Runtime,
	met *metrics.Metrics,
	reporter function.Reporter,
	logger *slog.Logger,
	cfg *AppConfig,
) *GatewayHandler {
	return &GatewayHandler{
		manifest: m,
		client:   client,
		store:    store,
		runtime:  runtime,
		metrics:  met,
		reporter: reporter,
		logger:   logger,
		model:    cfg.Model,
		verbose:  cfg.Verbose,
	}
}

// RegisterRoutes mounts the API on engine.
func (h *GatewayHandler) RegisterRoutes(engine *gin.Engine) {
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/chat", h.HandleChat)
		v1.POST("/dispatch", h.HandleDispatch)
	}
	engine.GET("/healthz", h.HandleHealth)
}

// HandleChat runs one user turn through the session loop.
func (h *GatewayHandler) HandleChat(c *gin.Context) {
	start := time.Now()
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if h.client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no LLM provider is configured"})
		return
	}

	ctx := c.Request.Context()
	conv, err := h.loadConversation(ctx, req.ConversationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	sess := session.New(h.manifest, h.client, conv,
		session.WithModel(h.model),
		session.WithSandbox(h.runtime),
		session.WithMetrics(h.metrics),
		session.WithLogger(h.logger),
		session.WithReporter(h.reporter),
		session.WithVerbose(h.verbose),
	)
	sess.AppendUserQuestion(req.Message)

	resp := chatResponse{ConversationID: conv.ID(), Events: []session.Event{}}
	loopErr := sess.CallLoop(ctx, func(e session.Event) {
		resp.Events = append(resp.Events, e)
	})
	resp.Usage = sess.Usage()
	resp.LatencyMS = time.Since(start).Milliseconds()

	if err := h.store.Save(ctx, conv); err != nil {
		h.logger.Error("failed to save conversation", slog.String("conversation", conv.ID()), slog.Any("error", err))
	}

	if loopErr != nil {
		resp.Error = loopErr.Error()
		status := http.StatusBadGateway
		if errors.Is(loopErr, session.ErrTooManyFunctionCalls) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleDispatch processes a single function call without calling an LLM.
func (h *GatewayHandler) HandleDispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	id := req.ConversationID
	if id == "" {
		id = chat.NewConversationID()
	}
	conv := chat.NewContext(id)
	if req.LastMessage != "" {
		conv.AppendUserQuestion(req.LastMessage)
	}

	opts := []function.Option{function.WithLogger(h.logger), function.WithVerbose(h.verbose)}
	if h.reporter != nil {
		opts = append(opts, function.WithReporter(h.reporter))
	}
	if h.metrics != nil {
		opts = append(opts, function.WithObserver(h.metrics))
	}
	call := function.NewCall(&function.Request{Name: req.Name, Arguments: req.Arguments}, h.manifest, opts...)

	var lookup function.Lookup
	if h.runtime != nil {
		lookup = h.runtime.Notebook(conv.ID())
	}
	out, err := call.Process(c.Request.Context(), conv, lookup)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, function.ErrSandboxMisconfigured) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	resp := dispatchResponse{
		Message:      out.Message,
		FunctionName: out.FunctionName,
		CallLLM:      out.CallLLM,
		Messages:     conv.Messages(),
	}
	if data, method := call.EmitData(); method != "" {
		resp.Emit = &emitBody{Method: method, Data: data}
	}
	c.JSON(http.StatusOK, resp)
}

// HandleHealth reports liveness and the loaded manifest.
func (h *GatewayHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"manifest": h.manifest.Title(),
		"version":  version.GetBuildInfo().Version,
		"sandbox":  h.runtime != nil,
	})
}

func (h *GatewayHandler) loadConversation(ctx context.Context, id string) (*chat.Context, error) {
	if id == "" {
		return chat.NewContext(chat.NewConversationID()), nil
	}
	conv, err := h.store.Load(ctx, id)
	if errors.Is(err, chat.ErrConversationNotFound) {
		return chat.NewContext(id), nil
	}
	return conv, err
}
