package chat

import (
	"context"

	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/serve/relay"
)

// LocalBackend runs the relay in-process, with no network hop.
type LocalBackend struct {
	relay *relay.Relay
}

func NewLocalBackend(r *relay.Relay) *LocalBackend {
	return &LocalBackend{relay: r}
}

func (b *LocalBackend) Chat(ctx context.Context, messages []llm.Message, model string) (ChunkStream, error) {
	stream, err := b.relay.Open(ctx, relay.ChatRequest{Messages: messages, Model: model})
	if err != nil {
		return nil, err
	}
	return localStream{stream}, nil
}

type localStream struct {
	*relay.Stream
}

func (s localStream) Close() error {
	s.Stream.Close()
	return nil
}
