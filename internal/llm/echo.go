package llm

import (
	"context"
	"time"
)

// EchoProvider answers with the last user message, word by word. It backs the
// "mock" upstream so the relay can be exercised without credentials.
type EchoProvider struct {
	Delay time.Duration
}

func (p *EchoProvider) Name() string { return "mock (echo)" }

func (p *EchoProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	text := lastUserText(req.Messages)
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		for _, chunk := range chunkText(text, 8) {
			if p.Delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.Delay):
				}
			}
			if err := emit(ctx, events, Event{Type: EventTextDelta, Text: chunk}); err != nil {
				return err
			}
		}
		use := &Usage{InputTokens: CountMessageTokens(req.Messages), OutputTokens: CountTokens(text)}
		if err := emit(ctx, events, Event{Type: EventUsage, Use: use}); err != nil {
			return err
		}
		return emit(ctx, events, Event{Type: EventDone})
	}), nil
}
