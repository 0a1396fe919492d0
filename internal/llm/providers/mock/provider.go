package mockprovider

import (
	"context"
	"time"

	"ripple/internal/llm/core"
)

// Provider emits a predefined event script for deterministic tests.
// When Scripts is set, each Stream call consumes the next script in order
// and the last script repeats; otherwise Events is replayed on every call.
type Provider struct {
	Events  []core.Event
	Scripts [][]core.Event
	Delay   time.Duration

	calls int
}

// TextScript builds a plain streamed-text event sequence.
func TextScript(fragments ...string) []core.Event {
	events := []core.Event{{Type: core.EventStart}}
	for _, fragment := range fragments {
		events = append(events, core.Event{Type: core.EventTextDelta, TextDelta: fragment})
	}
	return append(events, core.Event{
		Type: core.EventDone,
		Done: &core.DonePayload{Reason: core.StopReasonStop},
	})
}

// Stream emits scripted events in order until exhaustion or cancellation.
func (m *Provider) Stream(ctx context.Context, req *core.Request) (<-chan core.Event, error) {
	_ = req

	script := m.Events
	if len(m.Scripts) > 0 {
		idx := m.calls
		if idx >= len(m.Scripts) {
			idx = len(m.Scripts) - 1
		}
		script = m.Scripts[idx]
		m.calls++
	}

	out := make(chan core.Event, 1)
	go func() {
		defer close(out)
		for _, ev := range script {
			if m.Delay > 0 {
				if err := core.SleepContext(ctx, m.Delay); err != nil {
					core.SendTerminalEvent(out, core.Event{
						Type: core.EventError,
						Done: &core.DonePayload{Reason: core.StopReasonAborted},
						Err:  err,
					})
					return
				}
			}

			select {
			case <-ctx.Done():
				core.SendTerminalEvent(out, core.Event{
					Type: core.EventError,
					Done: &core.DonePayload{Reason: core.StopReasonAborted},
					Err:  ctx.Err(),
				})
				return
			case out <- ev:
			}
		}
	}()

	return out, nil
}
