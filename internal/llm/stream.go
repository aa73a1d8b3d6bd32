package llm

import (
	"context"
	"io"
	"strings"
)

type channelStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	events <-chan Event
}

// newEventStream runs producer in its own goroutine and exposes its events as a Stream.
// A non-nil error from run becomes a final EventError.
func newEventStream(ctx context.Context, run func(context.Context, chan<- Event) error) Stream {
	streamCtx, cancel := context.WithCancel(ctx)
	ch := make(chan Event, 16)
	go func() {
		defer close(ch)
		if err := run(streamCtx, ch); err != nil {
			// The consumer may be gone; never block past cancellation.
			select {
			case ch <- Event{Type: EventError, Err: err}:
			case <-streamCtx.Done():
			}
		}
	}()
	return &channelStream{ctx: streamCtx, cancel: cancel, events: ch}
}

func (s *channelStream) Recv() (Event, error) {
	// Non-blocking drain: consume any buffered event before checking ctx.Done().
	// This prevents dropping EventUsage/EventDone when ctx and events are both ready.
	select {
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	default:
	}

	select {
	case <-s.ctx.Done():
		return Event{}, s.ctx.Err()
	case event, ok := <-s.events:
		if !ok {
			return Event{}, io.EOF
		}
		return event, nil
	}
}

func (s *channelStream) Close() error {
	s.cancel()
	return nil
}

// emit sends ev unless ctx is done first.
func emit(ctx context.Context, events chan<- Event, ev Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case events <- ev:
		return nil
	}
}

// Collect drains stream and returns the concatenated text deltas.
func Collect(stream Stream) (string, *Usage, error) {
	var b strings.Builder
	var usage *Usage
	for {
		ev, err := stream.Recv()
		if err == io.EOF {
			return b.String(), usage, nil
		}
		if err != nil {
			return b.String(), usage, err
		}
		switch ev.Type {
		case EventTextDelta:
			b.WriteString(ev.Text)
		case EventUsage:
			usage = ev.Use
		case EventError:
			return b.String(), usage, ev.Err
		}
	}
}
