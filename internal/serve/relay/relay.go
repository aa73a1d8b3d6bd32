// Package relay forwards chat requests to an upstream model and re-frames the
// token stream as raw text chunks.
package relay

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/llm"
)

// SystemPreamble is prepended to every forwarded conversation.
const SystemPreamble = "You are a helpful assistant. You provide clear and concise answers."

// Fixed upstream parameters; callers cannot override them.
const (
	DefaultModel    = "mixtral-8x7b-32768"
	DefaultTimeout  = 30 * time.Second
	Temperature     = 0.7
	MaxOutputTokens = 1000
)

var (
	ErrUpstreamTimeout  = errors.New("Request timeout")
	ErrUpstreamFailure  = errors.New("upstream failure")
	ErrMalformedRequest = errors.New("malformed request")
)

// Error codes carried by stream termination signals.
const (
	CodeTimeout   = "timeout"
	CodeUpstream  = "upstream"
	CodeMalformed = "malformed"
)

// Error wraps a failure with its taxonomy sentinel.
type Error struct {
	Kind  error
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Cause.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

// Code returns the wire code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUpstreamTimeout):
		return CodeTimeout
	case errors.Is(err, ErrMalformedRequest):
		return CodeMalformed
	default:
		return CodeUpstream
	}
}

// ChatRequest is the relay's input.
type ChatRequest struct {
	Messages []llm.Message `json:"messages"`
	Model    string        `json:"model,omitempty"`
}

// Validate rejects requests the upstream could not interpret.
func (r ChatRequest) Validate() error {
	if r.Messages == nil {
		return &Error{Kind: ErrMalformedRequest, Cause: errors.New("messages is required")}
	}
	for i, msg := range r.Messages {
		if !msg.Role.Valid() {
			return &Error{Kind: ErrMalformedRequest, Cause: errors.Errorf("messages[%d]: invalid role %q", i, msg.Role)}
		}
	}
	return nil
}

// Options configures a Relay.
type Options struct {
	DefaultModel string
	Timeout      time.Duration
}

// Relay is stateless; one Open drives exactly one upstream call.
type Relay struct {
	provider     llm.Provider
	defaultModel string
	timeout      time.Duration
}

func New(provider llm.Provider, opts Options) *Relay {
	if strings.TrimSpace(opts.DefaultModel) == "" {
		opts.DefaultModel = DefaultModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Relay{provider: provider, defaultModel: opts.DefaultModel, timeout: opts.Timeout}
}

// DefaultModel returns the model used when a request names none.
func (r *Relay) DefaultModel() string { return r.defaultModel }

// Timeout returns the per-call wall-clock budget.
func (r *Relay) Timeout() time.Duration { return r.timeout }

// BuildRequest applies the preamble and fixed sampling parameters.
func (r *Relay) BuildRequest(req ChatRequest) llm.Request {
	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.SystemText(SystemPreamble))
	messages = append(messages, req.Messages...)
	return llm.Request{
		Model:           chooseModel(req.Model, r.defaultModel),
		Messages:        messages,
		Temperature:     Temperature,
		MaxOutputTokens: MaxOutputTokens,
	}
}

// Open starts the upstream call and waits for its first chunk, so failures that
// happen before any output are returned here rather than from Next. The timeout
// clock starts when Open is called. The caller must Close the returned Stream.
func (r *Relay) Open(ctx context.Context, req ChatRequest) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	upstreamReq := r.BuildRequest(req)
	upstream, err := r.provider.Stream(ctx, upstreamReq)
	if err != nil {
		defer cancel()
		return nil, classify(ctx, err)
	}

	s := &Stream{ctx: ctx, cancel: cancel, upstream: upstream, model: upstreamReq.Model}
	first, err := s.next()
	if err == io.EOF {
		s.finished = true
		return s, nil
	}
	if err != nil {
		s.Close()
		return nil, err
	}
	s.pending = &first
	return s, nil
}

// Stream is one in-progress relay call.
type Stream struct {
	ctx      context.Context
	cancel   context.CancelFunc
	upstream llm.Stream
	model    string
	pending  *string
	finished bool
	usage    *llm.Usage
	chunks   int
}

// Next returns the next non-empty chunk in upstream order, io.EOF when the
// upstream completed, or an *Error on timeout or failure.
func (s *Stream) Next() (string, error) {
	if s.pending != nil {
		chunk := *s.pending
		s.pending = nil
		return chunk, nil
	}
	if s.finished {
		return "", io.EOF
	}
	chunk, err := s.next()
	if err == io.EOF {
		s.finished = true
	}
	return chunk, err
}

func (s *Stream) next() (string, error) {
	for {
		ev, err := s.upstream.Recv()
		if err == io.EOF {
			return "", io.EOF
		}
		if err != nil {
			return "", classify(s.ctx, err)
		}
		switch ev.Type {
		case llm.EventTextDelta:
			if ev.Text == "" {
				continue
			}
			s.chunks++
			return ev.Text, nil
		case llm.EventUsage:
			s.usage = ev.Use
		case llm.EventDone:
			return "", io.EOF
		case llm.EventError:
			return "", classify(s.ctx, ev.Err)
		}
	}
}

// Usage returns token accounting if the upstream reported it.
func (s *Stream) Usage() *llm.Usage { return s.usage }

// Model returns the model the call was sent to.
func (s *Stream) Model() string { return s.model }

// Chunks returns the number of chunks produced so far.
func (s *Stream) Chunks() int { return s.chunks }

// Close aborts the upstream call if it is still running.
func (s *Stream) Close() {
	_ = s.upstream.Close()
	s.cancel()
}

func classify(ctx context.Context, err error) error {
	var relayErr *Error
	if errors.As(err, &relayErr) {
		return err
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Kind: ErrUpstreamTimeout, Cause: err}
	}
	return &Error{Kind: ErrUpstreamFailure, Cause: err}
}

func chooseModel(requested, fallback string) string {
	if strings.TrimSpace(requested) != "" {
		return requested
	}
	return fallback
}
