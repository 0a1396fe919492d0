// Package orchestrator drives one chat channel's AI responses: it owns the
// model session, turns inbound messages into per-response handlers, and keeps
// the channel's outbound placeholder messages, indicators, and cancellation
// consistent while responses stream.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ripple/internal/chat"
	"ripple/internal/llm"
	"ripple/internal/tools"
)

const (
	defaultCommitInterval = time.Second
	defaultMaxTokens      = 1024
	defaultMaxToolRounds  = 8
	placeholderText       = "…"

	defaultSystemPrompt = "You are a helpful assistant in a chat channel. " +
		"Answer concisely in plain language. When a question needs current " +
		"information, use the web_search tool and cite what you found. If a " +
		"tool returns an error payload, explain the limitation instead of " +
		"inventing an answer."
)

var (
	// ErrProviderRequired indicates missing model provider dependency.
	ErrProviderRequired = errors.New("provider is required")
	// ErrTransportRequired indicates missing chat transport dependency.
	ErrTransportRequired = errors.New("transport is required")
	// ErrModelRequired indicates a missing model name.
	ErrModelRequired = errors.New("model is required")
	// ErrClosed indicates use after Close.
	ErrClosed = errors.New("orchestrator is closed")
	// ErrHandlerExists indicates a second handler for one outbound message id.
	ErrHandlerExists = errors.New("response handler already active for message")
	// ErrTooManyToolRounds indicates a response looped on tool calls too long.
	// The message must stay clear of the quota classifier's marker words so
	// the loop bound is never reported as a provider billing problem.
	ErrTooManyToolRounds = errors.New("too many tool invocation rounds")
)

// Config configures Orchestrator creation.
type Config struct {
	ChannelID      string
	Provider       llm.Provider
	Transport      chat.Transport
	Registry       *tools.Registry
	Model          string
	SystemPrompt   string
	MaxTokens      int
	CommitInterval time.Duration
	MaxToolRounds  int
	Logger         *slog.Logger
}

// Orchestrator owns one channel's model session and the fleet of in-flight
// response handlers.
type Orchestrator struct {
	channelID      string
	provider       llm.Provider
	transport      chat.Transport
	registry       *tools.Registry
	commitInterval time.Duration
	maxToolRounds  int
	logger         *slog.Logger
	sess           *session

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	handlers        map[string]*responseHandler
	lastInteraction time.Time
	closed          bool
}

// New creates an orchestrator with explicit dependencies. The model session
// starts empty; the declared tool schemas come from the registry.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, ErrProviderRequired
	}
	if cfg.Transport == nil {
		return nil, ErrTransportRequired
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, ErrModelRequired
	}

	registry := cfg.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}
	systemPrompt := strings.TrimSpace(cfg.SystemPrompt)
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	commitInterval := cfg.CommitInterval
	if commitInterval <= 0 {
		commitInterval = defaultCommitInterval
	}
	maxToolRounds := cfg.MaxToolRounds
	if maxToolRounds <= 0 {
		maxToolRounds = defaultMaxToolRounds
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	specs := registry.Specs()
	toolSpecs := make([]llm.ToolSpec, 0, len(specs))
	for _, spec := range specs {
		toolSpecs = append(toolSpecs, llm.ToolSpec{
			Name:        spec.Name,
			Description: spec.Description,
			Schema:      spec.Schema,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		channelID:      strings.TrimSpace(cfg.ChannelID),
		provider:       cfg.Provider,
		transport:      cfg.Transport,
		registry:       registry,
		commitInterval: commitInterval,
		maxToolRounds:  maxToolRounds,
		logger:         logger,
		sess: &session{
			model:     strings.TrimSpace(cfg.Model),
			system:    systemPrompt,
			maxTokens: maxTokens,
			tools:     toolSpecs,
		},
		ctx:             ctx,
		cancel:          cancel,
		handlers:        make(map[string]*responseHandler),
		lastInteraction: time.Now(),
	}, nil
}

// HandleInbound reacts to one inbound chat event. Agent-authored and empty
// messages are ignored. For qualifying messages it creates the outbound
// placeholder, emits THINKING, and starts a response handler asynchronously;
// HandleInbound does not wait for the response to finish.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg chat.InboundMessage) error {
	if msg.FromAgent || strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.lastInteraction = time.Now()
	o.mu.Unlock()

	channelID := msg.ChannelID
	if channelID == "" {
		channelID = o.channelID
	}

	messageID, err := o.transport.CreateMessage(ctx, channelID, placeholderText)
	if err != nil {
		o.logger.Error("create placeholder failed", "channel", channelID, "error", err)
		return fmt.Errorf("create placeholder: %w", err)
	}
	o.transport.Indicate(chat.Indicator{
		Kind:      chat.IndicatorThinking,
		MessageID: messageID,
		ChannelID: channelID,
	})

	handler := newResponseHandler(o.ctx, handlerConfig{
		messageID:      messageID,
		channelID:      channelID,
		userText:       annotateUserText(msg),
		provider:       o.provider,
		transport:      o.transport,
		registry:       o.registry,
		sess:           o.sess,
		commitInterval: o.commitInterval,
		maxToolRounds:  o.maxToolRounds,
		logger:         o.logger,
		onRemove:       o.removeHandler,
	})

	if err := o.registerHandler(handler); err != nil {
		o.reportInboundFailure(messageID, channelID, err)
		return err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		handler.run()
	}()
	return nil
}

// HandleStop cancels the handler targeted by a stop request, if it is active.
// Stops for unknown or already-terminal message ids are ignored.
func (o *Orchestrator) HandleStop(req chat.StopRequest) {
	o.mu.Lock()
	handler := o.handlers[req.MessageID]
	o.mu.Unlock()

	if handler != nil {
		handler.stop()
	}
}

// LastInteraction returns when the channel last received a qualifying message.
func (o *Orchestrator) LastInteraction() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastInteraction
}

// ActiveResponses returns the number of in-flight response handlers.
func (o *Orchestrator) ActiveResponses() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.handlers)
}

// Close disposes every active handler, waits for their goroutines to drain,
// and releases the session. Idempotent.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	active := make([]*responseHandler, 0, len(o.handlers))
	for _, handler := range o.handlers {
		active = append(active, handler)
	}
	o.mu.Unlock()

	for _, handler := range active {
		handler.stop()
	}
	o.cancel()
	o.wg.Wait()

	o.mu.Lock()
	o.handlers = make(map[string]*responseHandler)
	o.mu.Unlock()
	o.sess.reset()
}

func (o *Orchestrator) registerHandler(handler *responseHandler) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if _, exists := o.handlers[handler.messageID]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, handler.messageID)
	}
	o.handlers[handler.messageID] = handler
	return nil
}

func (o *Orchestrator) removeHandler(messageID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.handlers, messageID)
}

// reportInboundFailure surfaces a synchronous setup failure on the placeholder
// that was already created for the response.
func (o *Orchestrator) reportInboundFailure(messageID, channelID string, err error) {
	o.logger.Error("inbound handling failed", "message", messageID, "error", err)
	o.transport.Indicate(chat.Indicator{
		Kind:      chat.IndicatorError,
		MessageID: messageID,
		ChannelID: channelID,
	})
	if commitErr := o.transport.UpdateMessage(context.Background(), messageID, userFacingMessage(err)); commitErr != nil {
		o.logger.Error("failure commit failed", "message", messageID, "error", commitErr)
	}
}

// annotateUserText prefixes the user text with a bracketed context marker when
// the inbound message carries a context tag. The marker is plain text and
// participates in the conversation turn like any other user text.
func annotateUserText(msg chat.InboundMessage) string {
	text := strings.TrimSpace(msg.Text)
	tag := strings.TrimSpace(msg.ContextTag)
	if tag == "" {
		return text
	}
	return fmt.Sprintf("[context: %s] %s", tag, text)
}

// session is the channel's single live model conversation: the system prompt,
// declared tools, and the append-only turn history. Appends are atomic, but
// ordering across concurrently running handlers is not serialized; each
// handler appends its turns as it progresses.
type session struct {
	model     string
	system    string
	maxTokens int
	tools     []llm.ToolSpec

	mu      sync.Mutex
	history []llm.Message
}

// append adds turns to the conversation history.
func (s *session) append(msgs ...llm.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range msgs {
		s.history = append(s.history, msg.Clone())
	}
}

// request snapshots the conversation into a provider request.
func (s *session) request() *llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	messages := make([]llm.Message, 0, len(s.history))
	for _, msg := range s.history {
		messages = append(messages, msg.Clone())
	}
	return &llm.Request{
		Model:     s.model,
		System:    s.system,
		Messages:  messages,
		Tools:     s.tools,
		MaxTokens: s.maxTokens,
	}
}

// reset clears the conversation history.
func (s *session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = nil
}

// len reports the number of recorded turns.
func (s *session) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
