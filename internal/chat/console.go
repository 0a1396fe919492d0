package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

var (
	// ErrMessageNotFound indicates an update against an unknown message id.
	ErrMessageNotFound = errors.New("message not found")
	// ErrWriterRequired indicates console construction without an output writer.
	ErrWriterRequired = errors.New("writer is required")
)

var (
	consoleIndicatorStyle = lipgloss.NewStyle().Faint(true)
	consoleErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Console is a single-channel Transport that renders message commits and
// indicator transitions to a writer. It exists for local runs and as a
// readable reference implementation of the Transport contract.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	logger   *slog.Logger
	messages map[string]string
	lastID   string
}

// NewConsole constructs a console transport writing to w.
func NewConsole(w io.Writer, logger *slog.Logger) (*Console, error) {
	if w == nil {
		return nil, ErrWriterRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Console{
		w:        w,
		logger:   logger,
		messages: make(map[string]string),
	}, nil
}

// CreateMessage allocates an outbound message id and records its initial text.
func (c *Console) CreateMessage(ctx context.Context, channelID, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()

	c.mu.Lock()
	c.messages[id] = text
	c.lastID = id
	c.mu.Unlock()

	c.logger.Debug("console message created", "channel", channelID, "message", id)
	return id, nil
}

// UpdateMessage replaces the full text of an existing message and redraws it.
func (c *Console) UpdateMessage(ctx context.Context, messageID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.messages[messageID]; !ok {
		return fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	c.messages[messageID] = text

	_, err := fmt.Fprintf(c.w, "\r\033[2K%s\n", strings.TrimRight(text, "\n"))
	return err
}

// Indicate renders an indicator transition as a faint status line.
func (c *Console) Indicate(indicator Indicator) {
	c.mu.Lock()
	defer c.mu.Unlock()

	style := consoleIndicatorStyle
	if indicator.Kind == IndicatorError {
		style = consoleErrorStyle
	}
	line := style.Render(fmt.Sprintf("[%s]", indicator.Kind))
	if _, err := fmt.Fprintln(c.w, line); err != nil {
		c.logger.Warn("console indicator write failed", "error", err)
	}
}

// LastMessageID returns the most recently created message id, for wiring
// console stop commands to a target message.
func (c *Console) LastMessageID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastID
}

// Text returns the current committed text for a message id.
func (c *Console) Text(messageID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.messages[messageID]
	return text, ok
}
