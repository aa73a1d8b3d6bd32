package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockTurn represents a single response turn from the mock provider.
type MockTurn struct {
	Text       string        // Text to emit (will be chunked for realistic streaming)
	Chunks     []string      // Exact deltas to emit instead of Text, empty ones included
	Usage      *Usage        // Token usage to report
	Delay      time.Duration // Optional delay before responding (for timeout tests)
	ChunkDelay time.Duration // Optional delay before each chunk (for mid-stream timeouts)
	Error      error         // Fail with this error instead of responding
	ErrorAfter bool          // Emit the chunks first, then fail with Error
	StartError error         // Returned synchronously from Stream
}

// MockProvider is a configurable provider for testing.
// It returns scripted responses and records all requests for verification.
type MockProvider struct {
	name      string
	turns     []MockTurn
	turnIndex int
	Requests  []Request // Recorded requests for verification
	mu        sync.Mutex
}

// NewMockProvider creates a new mock provider with the given name.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

// Name returns the provider name.
func (m *MockProvider) Name() string {
	return m.name
}

// AddTurn adds a response turn and returns the provider for chaining.
func (m *MockProvider) AddTurn(t MockTurn) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, t)
	return m
}

// AddTextResponse is a convenience method to add a simple text response.
func (m *MockProvider) AddTextResponse(text string) *MockProvider {
	return m.AddTurn(MockTurn{Text: text})
}

// AddChunks adds a turn emitting exactly the given deltas.
func (m *MockProvider) AddChunks(chunks ...string) *MockProvider {
	return m.AddTurn(MockTurn{Chunks: chunks})
}

// AddError adds a turn that returns an error.
func (m *MockProvider) AddError(err error) *MockProvider {
	return m.AddTurn(MockTurn{Error: err})
}

// Reset clears recorded requests and resets the turn index.
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnIndex = 0
	m.Requests = nil
}

// RequestCount returns the number of Stream calls seen so far.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent request, or the zero Request.
func (m *MockProvider) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return Request{}
	}
	return m.Requests[len(m.Requests)-1]
}

// Stream implements the Provider interface.
func (m *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)

	if m.turnIndex >= len(m.turns) {
		m.mu.Unlock()
		return nil, fmt.Errorf("mock provider: no more turns configured (expected turn %d, have %d)", m.turnIndex, len(m.turns))
	}

	turn := m.turns[m.turnIndex]
	m.turnIndex++
	m.mu.Unlock()

	if turn.StartError != nil {
		return nil, turn.StartError
	}

	return newEventStream(ctx, func(ctx context.Context, ch chan<- Event) error {
		if err := sleepCtx(ctx, turn.Delay); err != nil {
			return err
		}

		if turn.Error != nil && !turn.ErrorAfter {
			return turn.Error
		}

		chunks := turn.Chunks
		if chunks == nil {
			chunks = chunkText(turn.Text, 10)
		}
		for _, chunk := range chunks {
			if err := sleepCtx(ctx, turn.ChunkDelay); err != nil {
				return err
			}
			if err := emit(ctx, ch, Event{Type: EventTextDelta, Text: chunk}); err != nil {
				return err
			}
		}

		if turn.Error != nil {
			return turn.Error
		}

		if turn.Usage != nil {
			if err := emit(ctx, ch, Event{Type: EventUsage, Use: turn.Usage}); err != nil {
				return err
			}
		}
		return emit(ctx, ch, Event{Type: EventDone})
	}), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// chunkText splits text into chunks of approximately the given size.
// It tries to break at word boundaries when possible.
func chunkText(text string, chunkSize int) []string {
	if len(text) == 0 {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	for len(text) > 0 {
		if len(text) <= chunkSize {
			chunks = append(chunks, text)
			break
		}

		// Find a good break point (space) near the chunk size
		breakPoint := chunkSize
		for i := chunkSize; i > chunkSize/2; i-- {
			if text[i] == ' ' {
				breakPoint = i + 1 // include the space in current chunk
				break
			}
		}

		chunks = append(chunks, text[:breakPoint])
		text = text[breakPoint:]
	}
	return chunks
}
