// Package chat implements the client-side conversation session: it drives
// title and answer calls against a relay and reconciles the streamed answer
// into the persisted conversation list.
package chat

import (
	"context"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samsaffron/relaychat/internal/catalog"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/session"
	"github.com/samsaffron/relaychat/internal/usage"
)

// State is the submission phase of a Session.
type State string

const (
	StateIdle                   State = "idle"
	StateTitlePending           State = "title-pending"
	StateUserTurnCommitted      State = "user-turn-committed"
	StateAnswerStreaming        State = "answer-streaming"
	StateAssistantTurnCommitted State = "assistant-turn-committed"
)

// Event is delivered to Options.OnUpdate on every state change and chunk.
type Event struct {
	State State
	// Chunk is set for answer chunks only.
	Chunk string
}

type Options struct {
	// DefaultModel is selected until a conversation with its own model is
	// activated. Empty means the catalog default.
	DefaultModel string
	Catalog      *catalog.Catalog
	Logger       zerolog.Logger
	// OnUpdate is called synchronously from the submitting goroutine.
	OnUpdate func(Event)
	Now      func() time.Time
	// Usage, when set, records the token usage of every committed answer.
	Usage *usage.Logger
}

// Session owns the conversation list, the active conversation, the selected
// model and the streaming buffer. At most one submission runs at a time.
type Session struct {
	store    *session.Store
	backend  Backend
	catalog  *catalog.Catalog
	log      zerolog.Logger
	onUpdate func(Event)
	now      func() time.Time
	usage    *usage.Logger

	inFlight atomic.Bool

	mu        sync.Mutex
	convs     session.List
	activeID  string
	model     string
	state     State
	streaming strings.Builder
	lastUsage *llm.Usage
}

func NewSession(store *session.Store, backend Backend, opts Options) *Session {
	if opts.Catalog == nil {
		opts.Catalog = catalog.New(nil)
	}
	if opts.Now == nil {
		opts.Now = session.Now
	}
	model := strings.TrimSpace(opts.DefaultModel)
	if model == "" {
		model = opts.Catalog.Default().ID
	}
	return &Session{
		store:    store,
		backend:  backend,
		catalog:  opts.Catalog,
		log:      opts.Logger,
		onUpdate: opts.OnUpdate,
		now:      opts.Now,
		usage:    opts.Usage,
		convs:    session.List{},
		model:    model,
		state:    StateIdle,
	}
}

// Load reads the persisted list and activates its first conversation.
func (s *Session) Load(ctx context.Context) error {
	list, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = list
	s.activeID = ""
	if len(list) > 0 {
		s.activateLocked(list[0])
	}
	return nil
}

// NewConversation prepends an empty conversation bound to the selected model
// and makes it active.
func (s *Session) NewConversation(ctx context.Context) (session.Conversation, error) {
	s.mu.Lock()
	conv := session.NewConversation(s.model, s.now())
	s.convs = s.convs.Prepend(conv)
	s.activeID = conv.ID
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		return conv, err
	}
	return conv, nil
}

// Select makes id the active conversation and adopts its model.
func (s *Session) Select(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.convs.Index(id)
	if i < 0 {
		return errors.Wrap(ErrUnknownConversation, id)
	}
	s.activateLocked(s.convs[i])
	return nil
}

// SelectModel changes the model used for subsequent calls. Stored
// conversations keep the model they were created with.
func (s *Session) SelectModel(id string) error {
	m, err := s.catalog.Resolve(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.model = m.ID
	s.mu.Unlock()
	return nil
}

func (s *Session) activateLocked(conv session.Conversation) {
	s.activeID = conv.ID
	if conv.Model != "" {
		s.model = conv.Model
	}
}

// Submit sends input as the next user turn of the active conversation and
// streams the answer. Rejections (empty input, no active conversation, a
// submission already running) have no side effects. Any failure after the
// user turn is committed returns a *SubmitError; the user turn stays.
func (s *Session) Submit(ctx context.Context, input string) error {
	text := strings.TrimSpace(input)
	if text == "" {
		return ErrEmptyInput
	}
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrSubmissionInFlight
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	i := s.convs.Index(s.activeID)
	if i < 0 {
		s.mu.Unlock()
		return ErrNoActiveConversation
	}
	conv := s.convs[i].Clone()
	model := s.model
	s.mu.Unlock()

	defer s.setState(StateIdle)

	title := conv.Title
	if len(conv.Messages) == 0 {
		s.setState(StateTitlePending)
		generated, err := s.generateTitle(ctx, text, model)
		if err != nil {
			s.log.Debug().Err(err).Str("conversation", conv.ID).Msg("keeping previous title")
		} else {
			title = generated
		}
	}

	history, err := s.commit(ctx, conv.ID, func(c *session.Conversation) {
		c.Title = title
		c.AppendTurn(session.Message{Role: llm.RoleUser, Content: text}, s.now())
	})
	if err != nil {
		return &SubmitError{Cause: err}
	}
	s.setState(StateUserTurnCommitted)

	answer, err := s.streamAnswer(ctx, history, model)
	if err != nil {
		s.resetStreaming()
		s.log.Warn().Err(err).Str("conversation", conv.ID).Str("model", model).Msg("answer failed")
		return &SubmitError{Cause: err}
	}

	_, err = s.commit(ctx, conv.ID, func(c *session.Conversation) {
		c.AppendTurn(session.Message{Role: llm.RoleAssistant, Content: answer}, s.now())
	})
	s.resetStreaming()
	if err != nil {
		return &SubmitError{Cause: err}
	}
	s.setState(StateAssistantTurnCommitted)
	s.recordUsage(conv.ID, model)
	return nil
}

func (s *Session) recordUsage(convID, model string) {
	u := s.LastUsage()
	if s.usage == nil || u == nil {
		return
	}
	err := s.usage.Log(usage.Entry{
		Timestamp:      s.now(),
		ConversationID: convID,
		Model:          model,
		InputTokens:    u.InputTokens,
		OutputTokens:   u.OutputTokens,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("record usage")
	}
}

// commit applies mutate to the stored conversation id and persists the list.
// It returns the conversation's history after the mutation.
func (s *Session) commit(ctx context.Context, id string, mutate func(*session.Conversation)) ([]llm.Message, error) {
	s.mu.Lock()
	i := s.convs.Index(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, errors.Wrap(ErrUnknownConversation, id)
	}
	conv := s.convs[i].Clone()
	mutate(&conv)
	s.convs[i] = conv
	history := conv.History()
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if err := s.store.Save(ctx, snapshot); err != nil {
		return history, errors.Wrap(err, "persist conversations")
	}
	return history, nil
}

func (s *Session) generateTitle(ctx context.Context, text, model string) (string, error) {
	messages := []llm.Message{llm.SystemText(TitlePrompt), llm.UserText(text)}
	stream, err := s.backend.Chat(ctx, messages, model)
	if err != nil {
		return "", errors.Wrap(ErrTitleGeneration, err.Error())
	}
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(ErrTitleGeneration, err.Error())
		}
		b.WriteString(chunk)
	}
	title := NormalizeTitle(b.String())
	if title == "" {
		return "", errors.Wrap(ErrTitleGeneration, "empty title")
	}
	return title, nil
}

func (s *Session) streamAnswer(ctx context.Context, history []llm.Message, model string) (string, error) {
	stream, err := s.backend.Chat(ctx, history, model)
	if err != nil {
		return "", err
	}
	defer stream.Close()
	s.setState(StateAnswerStreaming)

	for {
		chunk, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.streaming.WriteString(chunk)
		s.mu.Unlock()
		s.emit(Event{State: StateAnswerStreaming, Chunk: chunk})
	}

	s.mu.Lock()
	answer := s.streaming.String()
	s.lastUsage = stream.Usage()
	s.mu.Unlock()
	return answer, nil
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	changed := s.state != st
	s.state = st
	s.mu.Unlock()
	if changed {
		s.emit(Event{State: st})
	}
}

func (s *Session) resetStreaming() {
	s.mu.Lock()
	s.streaming.Reset()
	s.mu.Unlock()
}

func (s *Session) emit(ev Event) {
	if s.onUpdate != nil {
		s.onUpdate(ev)
	}
}

func (s *Session) snapshotLocked() session.List {
	out := make(session.List, len(s.convs))
	for i, c := range s.convs {
		out[i] = c.Clone()
	}
	return out
}

// Conversations returns a copy of the list, most recent first.
func (s *Session) Conversations() session.List {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Active returns a copy of the active conversation.
func (s *Session) Active() (session.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.convs.Index(s.activeID)
	if i < 0 {
		return session.Conversation{}, false
	}
	return s.convs[i].Clone(), true
}

// Streaming returns the partial answer of the running submission.
func (s *Session) Streaming() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streaming.String()
}

func (s *Session) InFlight() bool { return s.inFlight.Load() }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) SelectedModel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// LastUsage returns token accounting from the last completed answer, if any.
func (s *Session) LastUsage() *llm.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsage
}

// ContextUsage estimates how much of the selected model's window the active
// conversation fills.
func (s *Session) ContextUsage() llm.ContextUsage {
	conv, _ := s.Active()
	model := s.catalog.Lookup(s.SelectedModel())
	return llm.EstimateContext(conv.History(), model.ContextWindow)
}
