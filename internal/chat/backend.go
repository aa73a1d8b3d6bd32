package chat

import (
	"context"

	"github.com/samsaffron/relaychat/internal/llm"
)

// Backend issues one relay call per Chat.
type Backend interface {
	Chat(ctx context.Context, messages []llm.Message, model string) (ChunkStream, error)
}

// ChunkStream yields the relay's text chunks in order.
type ChunkStream interface {
	// Next returns the next chunk, io.EOF on clean completion, or the failure
	// that terminated the stream.
	Next() (string, error)
	// Usage returns token accounting once the stream has completed, if known.
	Usage() *llm.Usage
	Close() error
}
