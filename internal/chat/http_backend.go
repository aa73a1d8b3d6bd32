package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/serve/relay"
)

// HTTPBackend calls POST /api/chat and reads the raw chunked body.
type HTTPBackend struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPBackend targets the relay at baseURL. A nil client uses a client
// with no overall timeout; the relay enforces its own.
func NewHTTPBackend(baseURL, token string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPBackend{
		baseURL: strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		client:  client,
	}
}

func (b *HTTPBackend) Chat(ctx context.Context, messages []llm.Message, model string) (ChunkStream, error) {
	payload, err := json.Marshal(relay.ChatRequest{Messages: messages, Model: model})
	if err != nil {
		return nil, errors.Wrap(err, "encode chat request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build chat request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("TE", "trailers")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ErrRelayUnreachable, "%s: %v", b.baseURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return &httpStream{resp: resp, buf: make([]byte, 4096)}, nil
}

func statusError(resp *http.Response) error {
	var body relay.ErrorBody
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	cause := errors.Errorf("relay returned %d: %s", resp.StatusCode, body.Error)
	kind := relay.ErrUpstreamFailure
	if resp.StatusCode == http.StatusRequestTimeout {
		kind = relay.ErrUpstreamTimeout
	}
	return &relay.Error{Kind: kind, Cause: cause}
}

type httpStream struct {
	resp  *http.Response
	buf   []byte
	usage *llm.Usage
	done  bool
}

func (s *httpStream) Next() (string, error) {
	if s.done {
		return "", io.EOF
	}
	for {
		n, err := s.resp.Body.Read(s.buf)
		if n > 0 {
			// Trailers are only populated after EOF, so hand back data first.
			return string(s.buf[:n]), nil
		}
		if err == io.EOF {
			s.done = true
			return "", s.finish()
		}
		if err != nil {
			s.done = true
			return "", &relay.Error{Kind: relay.ErrUpstreamFailure, Cause: err}
		}
	}
}

// finish inspects trailers once the body is exhausted.
func (s *httpStream) finish() error {
	trailer := s.resp.Trailer
	if code := trailer.Get(relay.TrailerError); code != "" {
		kind := relay.ErrUpstreamFailure
		if code == relay.CodeTimeout {
			kind = relay.ErrUpstreamTimeout
		}
		return &relay.Error{Kind: kind, Cause: errors.Errorf("relay stream ended with %s", code)}
	}
	in, inErr := strconv.Atoi(trailer.Get(relay.TrailerInputTokens))
	out, outErr := strconv.Atoi(trailer.Get(relay.TrailerOutputTokens))
	if inErr == nil && outErr == nil {
		s.usage = &llm.Usage{InputTokens: in, OutputTokens: out}
	}
	return io.EOF
}

func (s *httpStream) Usage() *llm.Usage { return s.usage }

func (s *httpStream) Close() error { return s.resp.Body.Close() }
