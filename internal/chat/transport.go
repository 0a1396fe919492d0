// Package chat defines the transport boundary between the response
// orchestration core and a concrete chat backend. The core reacts to inbound
// and stop events, creates and rewrites outbound messages, and broadcasts
// ephemeral indicator events; connecting these to a real backend's
// subscribe/send primitives is an adapter concern.
package chat

import "context"

// IndicatorKind is the ephemeral status phase of one outbound response.
type IndicatorKind string

const (
	IndicatorThinking        IndicatorKind = "thinking"
	IndicatorGenerating      IndicatorKind = "generating"
	IndicatorExternalSources IndicatorKind = "external_sources"
	IndicatorError           IndicatorKind = "error"
	IndicatorCleared         IndicatorKind = "cleared"
)

// Indicator is an out-of-band status broadcast. It is always attached to the
// outbound message it describes and is never part of the message content.
type Indicator struct {
	Kind      IndicatorKind
	MessageID string
	ChannelID string
}

// InboundMessage is one user-visible message delivered by the transport.
type InboundMessage struct {
	ChannelID string
	Text      string
	// FromAgent marks messages authored by the agent's own identity so the
	// core can avoid responding to itself.
	FromAgent bool
	// ContextTag optionally names the task/context the message belongs to.
	ContextTag string
}

// StopRequest asks the core to abandon the response for one outbound message.
type StopRequest struct {
	MessageID string
}

// Transport is the minimal outbound contract the core depends on.
//
// UpdateMessage is an idempotent set-full-text operation: the core calls it
// repeatedly for one message (throttled partials plus one final commit) and
// relies on later calls fully replacing earlier text. Indicate is
// fire-and-forget; transports must not block on delivery acknowledgement.
type Transport interface {
	CreateMessage(ctx context.Context, channelID, text string) (string, error)
	UpdateMessage(ctx context.Context, messageID, text string) error
	Indicate(indicator Indicator)
}
