package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ripple/internal/chat"
	"ripple/internal/llm"
	"ripple/internal/tools"
)

const (
	maxToolResultContentLen = 10_000
	toolResultHeadLen       = 4_000
	toolResultTailLen       = 4_000
	toolResultTruncateMark  = "\n...[truncated]...\n"

	emptyResponseText = "(no response)"
)

// errResponseStopped unwinds a run that was preempted by a stop request; the
// stop path already emitted the terminal indicator.
var errResponseStopped = errors.New("response stopped")

type handlerConfig struct {
	messageID      string
	channelID      string
	userText       string
	provider       llm.Provider
	transport      chat.Transport
	registry       *tools.Registry
	sess           *session
	commitInterval time.Duration
	maxToolRounds  int
	logger         *slog.Logger
	onRemove       func(messageID string)
}

// streamResult is one stream consumption round: the aggregated text, the tool
// calls surfaced by chunks, and the number of chunks observed.
type streamResult struct {
	text   string
	calls  []llm.ToolCall
	chunks int
}

// responseHandler drives one response end-to-end: stream tokens into the
// outbound message with throttled partial commits, execute surfaced tool
// calls, and terminate in exactly one of CLEARED or ERROR. The terminal flag
// is one-way; once set, no further commits or indicator transitions happen.
type responseHandler struct {
	messageID      string
	channelID      string
	userText       string
	provider       llm.Provider
	transport      chat.Transport
	registry       *tools.Registry
	sess           *session
	commitInterval time.Duration
	maxToolRounds  int
	logger         *slog.Logger
	onRemove       func(messageID string)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	done     bool
	disposed bool

	finished chan struct{}
}

func newResponseHandler(parent context.Context, cfg handlerConfig) *responseHandler {
	ctx, cancel := context.WithCancel(parent)
	return &responseHandler{
		messageID:      cfg.messageID,
		channelID:      cfg.channelID,
		userText:       cfg.userText,
		provider:       cfg.provider,
		transport:      cfg.transport,
		registry:       cfg.registry,
		sess:           cfg.sess,
		commitInterval: cfg.commitInterval,
		maxToolRounds:  cfg.maxToolRounds,
		logger:         cfg.logger,
		onRemove:       cfg.onRemove,
		ctx:            ctx,
		cancel:         cancel,
		finished:       make(chan struct{}),
	}
}

// run executes the full response lifecycle. Disposal is guaranteed on every
// path; failures are classified and reported exactly once.
func (h *responseHandler) run() {
	defer close(h.finished)
	defer h.dispose()

	err := h.respond(h.ctx)
	switch {
	case err == nil:
	case errors.Is(err, errResponseStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		// Preempted by a stop or teardown; the stop path owns the terminal
		// indicator and no text may be committed after it.
	default:
		h.fail(err)
	}
}

// respond runs the phase sequence: GENERATING, stream consumption with
// throttled commits, tool rounds, final commit, CLEARED.
func (h *responseHandler) respond(ctx context.Context) error {
	h.indicate(chat.IndicatorGenerating)
	h.sess.append(llm.UserMessage(h.userText))

	text, err := h.generate(ctx)
	if err != nil {
		return err
	}
	return h.finish(ctx, text)
}

// generate drives the model until a round produces no tool calls, committing
// throttled partials during the first round only. Later rounds replace the
// accumulated text with the follow-up completion.
func (h *responseHandler) generate(ctx context.Context) (string, error) {
	for round := 0; ; round++ {
		if round >= h.maxToolRounds {
			return "", ErrTooManyToolRounds
		}

		stream, err := h.provider.Stream(ctx, h.sess.request())
		if err != nil {
			return "", err
		}

		result, err := h.consume(ctx, stream, round == 0)
		if err != nil {
			return "", err
		}
		h.logger.Debug("stream round finished",
			"message", h.messageID,
			"round", round,
			"chunks", result.chunks,
			"tool_calls", len(result.calls),
		)

		h.sess.append(assistantMessage(result.text, result.calls))
		if len(result.calls) == 0 {
			return result.text, nil
		}

		h.indicate(chat.IndicatorExternalSources)
		for _, call := range result.calls {
			toolTurn, err := h.executeToolCall(ctx, call)
			if err != nil {
				return "", err
			}
			h.sess.append(toolTurn)
		}
		h.indicate(chat.IndicatorGenerating)
	}
}

// consume reads one stream to exhaustion. Text fragments accumulate into the
// round buffer; completed tool calls are captured without interrupting the
// stream; the terminal flag is checked on every chunk. Throttled partial
// commits happen only when streamPartials is set.
func (h *responseHandler) consume(ctx context.Context, stream <-chan llm.Event, streamPartials bool) (streamResult, error) {
	var buffer strings.Builder
	var calls []llm.ToolCall
	chunks := 0
	lastCommit := time.Now()

	for {
		if h.isDone() {
			return streamResult{}, errResponseStopped
		}

		select {
		case <-ctx.Done():
			return streamResult{}, ctx.Err()
		case ev, ok := <-stream:
			if !ok {
				return streamResult{}, errors.New("provider stream ended without terminal event")
			}
			chunks++

			switch ev.Type {
			case llm.EventTextDelta:
				buffer.WriteString(ev.TextDelta)
				if streamPartials && time.Since(lastCommit) >= h.commitInterval {
					if err := h.commit(ctx, buffer.String()); err != nil {
						return streamResult{}, err
					}
					lastCommit = time.Now()
				}

			case llm.EventToolCallEnd:
				if ev.ToolCall != nil {
					calls = append(calls, ev.ToolCall.Clone())
				}

			case llm.EventError:
				err := ev.Err
				if err == nil {
					err = errors.New("provider stream failed")
				}
				return streamResult{}, err

			case llm.EventDone:
				return streamResult{text: buffer.String(), calls: calls, chunks: chunks}, nil
			}
		}
	}
}

// executeToolCall invokes one captured tool call and wraps the outcome as a
// tool-response turn. Provider failures become structured error payloads and
// never abort the response; only cancellation unwinds.
func (h *responseHandler) executeToolCall(ctx context.Context, call llm.ToolCall) (llm.Message, error) {
	payload, isErr, err := h.registry.Invoke(ctx, call.Name, call.Arguments)
	if err != nil {
		return llm.Message{}, err
	}
	if isErr {
		h.logger.Warn("tool call failed",
			"message", h.messageID,
			"tool", call.Name,
		)
	}

	return llm.Message{
		Role: llm.RoleTool,
		ToolResult: &llm.ToolResult{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Content:    truncateToolResultContent(string(payload)),
			IsError:    isErr,
		},
	}, nil
}

// finish commits the final text unconditionally and emits CLEARED, unless a
// stop won the race to the terminal flag.
func (h *responseHandler) finish(ctx context.Context, text string) error {
	if !h.markDone() {
		return nil
	}

	if strings.TrimSpace(text) == "" {
		text = emptyResponseText
	}
	if err := h.transport.UpdateMessage(ctx, h.messageID, text); err != nil {
		h.logger.Error("final commit failed", "message", h.messageID, "error", err)
	}
	h.transport.Indicate(chat.Indicator{
		Kind:      chat.IndicatorCleared,
		MessageID: h.messageID,
		ChannelID: h.channelID,
	})
	return nil
}

// fail classifies the error, commits the user-facing message, and emits ERROR.
func (h *responseHandler) fail(err error) {
	if !h.markDone() {
		return
	}

	h.logger.Error("response failed", "message", h.messageID, "error", err)

	// The run context may already be canceled; the failure text still must
	// reach the placeholder so it is never left blank.
	if commitErr := h.transport.UpdateMessage(context.Background(), h.messageID, userFacingMessage(err)); commitErr != nil {
		h.logger.Error("failure commit failed", "message", h.messageID, "error", commitErr)
	}
	h.transport.Indicate(chat.Indicator{
		Kind:      chat.IndicatorError,
		MessageID: h.messageID,
		ChannelID: h.channelID,
	})
}

// stop preempts the response for an out-of-band stop request. No text is
// committed: partials already sent by throttling stay as-is.
func (h *responseHandler) stop() {
	if !h.markDone() {
		return
	}

	h.cancel()
	h.transport.Indicate(chat.Indicator{
		Kind:      chat.IndicatorCleared,
		MessageID: h.messageID,
		ChannelID: h.channelID,
	})
	h.dispose()
}

// commit performs one throttled partial commit, suppressed once terminal.
func (h *responseHandler) commit(ctx context.Context, text string) error {
	if h.isDone() {
		return errResponseStopped
	}
	return h.transport.UpdateMessage(ctx, h.messageID, text)
}

func (h *responseHandler) indicate(kind chat.IndicatorKind) {
	if h.isDone() {
		return
	}
	h.transport.Indicate(chat.Indicator{
		Kind:      kind,
		MessageID: h.messageID,
		ChannelID: h.channelID,
	})
}

// markDone flips the one-way terminal flag; only the first caller proceeds
// with terminal side effects.
func (h *responseHandler) markDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return false
	}
	h.done = true
	return true
}

func (h *responseHandler) isDone() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// dispose releases the cancellation token and removes the handler from the
// orchestrator's active set. Safe to call multiple times; only the first call
// has effect.
func (h *responseHandler) dispose() {
	h.mu.Lock()
	if h.disposed {
		h.mu.Unlock()
		return
	}
	h.disposed = true
	h.mu.Unlock()

	h.cancel()
	if h.onRemove != nil {
		h.onRemove(h.messageID)
	}
}

// assistantMessage builds the assistant turn recorded for one stream round.
func assistantMessage(text string, calls []llm.ToolCall) llm.Message {
	msg := llm.Message{Role: llm.RoleAssistant, ToolCalls: calls}
	if text != "" {
		msg.Content = []llm.ContentBlock{{Type: llm.ContentTypeText, Text: text}}
	}
	return msg
}

// truncateToolResultContent bounds tool output submitted back to the model.
func truncateToolResultContent(content string) string {
	if len(content) <= maxToolResultContentLen {
		return content
	}
	return content[:toolResultHeadLen] + toolResultTruncateMark + content[len(content)-toolResultTailLen:]
}
