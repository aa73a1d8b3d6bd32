package chat

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/serve/relay"
)

// WSBackend sends calls over one long-lived WebSocket to /api/chat/ws.
// Calls are serialized; the connection is redialled after any broken call.
type WSBackend struct {
	url   string
	token string

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSBackend(rawURL, token string) (*WSBackend, error) {
	wsURL, err := normalizeWSURL(rawURL)
	if err != nil {
		return nil, err
	}
	return &WSBackend{url: wsURL, token: strings.TrimSpace(token)}, nil
}

func (b *WSBackend) Chat(ctx context.Context, messages []llm.Message, model string) (ChunkStream, error) {
	b.mu.Lock()
	conn, err := b.connect(ctx)
	if err != nil {
		b.mu.Unlock()
		return nil, err
	}
	if err := conn.WriteJSON(relay.Frame{Type: relay.FrameChat, Messages: messages, Model: model}); err != nil {
		b.dropLocked()
		b.mu.Unlock()
		return nil, errors.Wrapf(ErrRelayUnreachable, "send: %v", err)
	}
	s := &wsStream{backend: b, conn: conn}
	// Unblock a pending read when the caller gives up.
	s.stop = context.AfterFunc(ctx, func() { _ = conn.Close() })
	return s, nil
}

// Close drops the connection. Safe to call while no call is in flight.
func (b *WSBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dropLocked()
	return nil
}

func (b *WSBackend) connect(ctx context.Context) (*websocket.Conn, error) {
	if b.conn != nil {
		return b.conn, nil
	}
	headers := http.Header{}
	if b.token != "" {
		headers.Set("Authorization", "Bearer "+b.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, headers)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrRelayUnreachable, "%s: %v", b.url, err)
	}
	b.conn = conn
	return conn, nil
}

func (b *WSBackend) dropLocked() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}

type wsStream struct {
	backend *WSBackend
	conn    *websocket.Conn
	stop    func() bool
	usage   *llm.Usage
	ended   bool
	broken  bool
	closed  sync.Once
}

func (s *wsStream) Next() (string, error) {
	if s.ended {
		return "", io.EOF
	}
	for {
		var f relay.Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			s.ended, s.broken = true, true
			return "", &relay.Error{Kind: relay.ErrUpstreamFailure, Cause: err}
		}
		switch f.Type {
		case relay.FrameChunk:
			if f.Text == "" {
				continue
			}
			return f.Text, nil
		case relay.FrameDone:
			s.ended = true
			s.usage = f.Usage
			return "", io.EOF
		case relay.FrameError:
			s.ended = true
			return "", frameError(f)
		}
	}
}

func (s *wsStream) Usage() *llm.Usage { return s.usage }

// Close releases the backend for the next call. A call abandoned before its
// terminal frame leaves the connection out of step, so it is dropped.
func (s *wsStream) Close() error {
	s.closed.Do(func() {
		if !s.stop() || !s.ended || s.broken {
			s.backend.dropLocked()
		}
		s.backend.mu.Unlock()
	})
	return nil
}

func frameError(f relay.Frame) error {
	var kind error
	switch f.Code {
	case relay.CodeTimeout:
		kind = relay.ErrUpstreamTimeout
	case relay.CodeMalformed:
		kind = relay.ErrMalformedRequest
	default:
		kind = relay.ErrUpstreamFailure
	}
	return &relay.Error{Kind: kind, Cause: errors.New(f.Message)}
}

func normalizeWSURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", errors.New("relay URL is required")
	}
	if !strings.HasPrefix(value, "ws://") && !strings.HasPrefix(value, "wss://") && !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		value = "ws://" + value
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "http":
		parsed.Scheme = "ws"
	case "https":
		parsed.Scheme = "wss"
	}
	path := strings.TrimSuffix(parsed.Path, "/")
	if !strings.HasSuffix(path, "/api/chat/ws") {
		path += "/api/chat/ws"
	}
	parsed.Path = path
	return parsed.String(), nil
}
