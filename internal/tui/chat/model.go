// Package chat is the interactive terminal client. It runs in bubbletea's
// inline mode: committed turns are printed to the scrollback and only the
// streaming answer, the composer and the status line are redrawn.
package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/catalog"
	appchat "github.com/samsaffron/relaychat/internal/chat"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/session"
	"github.com/samsaffron/relaychat/internal/ui"
)

// EventBridge carries session updates from the submitting goroutine into the
// bubbletea loop. Pass Send as chat.Options.OnUpdate.
type EventBridge struct {
	ch   chan appchat.Event
	done chan struct{}
	once sync.Once
}

func NewEventBridge() *EventBridge {
	return &EventBridge{ch: make(chan appchat.Event, 256), done: make(chan struct{})}
}

// Send blocks until the UI takes the event or the bridge is closed.
func (b *EventBridge) Send(ev appchat.Event) {
	select {
	case b.ch <- ev:
	case <-b.done:
	}
}

func (b *EventBridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *EventBridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-b.ch:
			return sessionEventMsg(ev)
		case <-b.done:
			return nil
		}
	}
}

type sessionEventMsg appchat.Event

type submitDoneMsg struct {
	err error
}

// Options configures the TUI.
type Options struct {
	Session *appchat.Session
	Catalog *catalog.Catalog
	Bridge  *EventBridge
	Styles  *ui.Styles
}

// Model is the bubbletea model for the chat screen.
type Model struct {
	ctx     context.Context
	session *appchat.Session
	catalog *catalog.Catalog
	bridge  *EventBridge
	styles  *ui.Styles

	textarea textarea.Model
	spinner  spinner.Model
	dialog   *DialogModel
	width    int

	submitting   bool
	cancelSubmit context.CancelFunc
	state        appchat.State
	partial      strings.Builder
	printed      int // turns of the active conversation already in scrollback
	quitting     bool
}

var (
	keySend      = key.NewBinding(key.WithKeys("enter"))
	keyQuit      = key.NewBinding(key.WithKeys("ctrl+c"))
	keyCancel    = key.NewBinding(key.WithKeys("esc"))
	keyNew       = key.NewBinding(key.WithKeys("ctrl+n"))
	keyModel     = key.NewBinding(key.WithKeys("ctrl+l"))
	keyChats     = key.NewBinding(key.WithKeys("ctrl+o"))
	keyNextEntry = key.NewBinding(key.WithKeys("ctrl+j", "alt+enter"))
)

func New(ctx context.Context, opts Options) *Model {
	if opts.Styles == nil {
		opts.Styles = ui.DefaultStyles()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.New(nil)
	}
	if opts.Bridge == nil {
		opts.Bridge = NewEventBridge()
	}

	ta := textarea.New()
	ta.Placeholder = "Ask anything. /help for commands"
	ta.ShowLineNumbers = false
	ta.Prompt = ""
	ta.CharLimit = 0
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = keyNextEntry
	ta.Focus()

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = opts.Styles.Highlighted

	return &Model{
		ctx:      ctx,
		session:  opts.Session,
		catalog:  opts.Catalog,
		bridge:   opts.Bridge,
		styles:   opts.Styles,
		textarea: ta,
		spinner:  sp,
		dialog:   NewDialogModel(opts.Styles),
		width:    80,
		state:    appchat.StateIdle,
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.bridge.wait(), m.printConversation())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.textarea.SetWidth(max(msg.Width-4, 10))
		m.dialog.SetWidth(msg.Width)
		return m, nil

	case sessionEventMsg:
		return m, tea.Batch(m.handleSessionEvent(appchat.Event(msg)), m.bridge.wait())

	case submitDoneMsg:
		return m, m.finishSubmit(msg.err)

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keyQuit) {
		return m.cmdQuit()
	}

	if m.dialog.IsOpen() {
		if key.Matches(msg, keySend) {
			return m.applyDialog()
		}
		var cmd tea.Cmd
		m.dialog, cmd = m.dialog.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, keyCancel):
		if m.submitting && m.cancelSubmit != nil {
			m.cancelSubmit()
		}
		return m, nil
	case key.Matches(msg, keyNew):
		return m.cmdNew()
	case key.Matches(msg, keyModel):
		return m.cmdModel(nil)
	case key.Matches(msg, keyChats):
		return m.cmdChats(nil)
	case key.Matches(msg, keySend):
		return m.submit()
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *Model) applyDialog() (tea.Model, tea.Cmd) {
	item := m.dialog.Selected()
	kind := m.dialog.Type()
	m.dialog.Close()
	if item == nil {
		return m, nil
	}
	switch kind {
	case DialogModelPicker:
		return m.switchModel(item.ID)
	case DialogConversationList:
		return m.switchConversation(item.ID)
	}
	return m, nil
}

func (m *Model) submit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, nil
	}
	if strings.HasPrefix(input, "/") {
		return m.ExecuteCommand(input)
	}
	if m.submitting {
		// Keep the draft; one submission at a time.
		return m, nil
	}
	if _, ok := m.session.Active(); !ok {
		if _, err := m.session.NewConversation(m.ctx); err != nil {
			return m.showSystemMessage("Could not start a conversation: " + err.Error())
		}
	}

	m.textarea.Reset()
	m.submitting = true
	m.partial.Reset()
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancelSubmit = cancel
	sess := m.session
	return m, tea.Batch(m.spinner.Tick, func() tea.Msg {
		return submitDoneMsg{err: sess.Submit(ctx, input)}
	})
}

func (m *Model) handleSessionEvent(ev appchat.Event) tea.Cmd {
	if ev.Chunk != "" {
		m.partial.WriteString(ev.Chunk)
		return nil
	}
	m.state = ev.State
	switch ev.State {
	case appchat.StateUserTurnCommitted, appchat.StateAssistantTurnCommitted:
		if ev.State == appchat.StateAssistantTurnCommitted {
			m.partial.Reset()
		}
		return m.printNewTurns()
	}
	return nil
}

func (m *Model) finishSubmit(err error) tea.Cmd {
	m.submitting = false
	if m.cancelSubmit != nil {
		m.cancelSubmit()
		m.cancelSubmit = nil
	}
	m.partial.Reset()
	m.state = appchat.StateIdle

	cmds := []tea.Cmd{m.printNewTurns()}
	if err != nil {
		msg := err.Error()
		if errors.Is(err, context.Canceled) {
			msg = "Cancelled."
		}
		cmds = append(cmds, tea.Println(m.styles.Error.Render(msg)+"\n"))
	}
	return tea.Sequence(cmds...)
}

// printConversation prints the active conversation from its first turn.
func (m *Model) printConversation() tea.Cmd {
	m.printed = 0
	conv, ok := m.session.Active()
	if !ok {
		return tea.Println(m.styles.Muted.Render("No conversation yet. Type a message to start one.") + "\n")
	}
	header := m.styles.Title.Render(conv.Title) + m.styles.Muted.Render("  "+m.catalog.Lookup(conv.Model).Name)
	return tea.Sequence(tea.Println(header+"\n"), m.printNewTurns())
}

// printNewTurns prints turns of the active conversation not yet in scrollback.
func (m *Model) printNewTurns() tea.Cmd {
	conv, ok := m.session.Active()
	if !ok || m.printed >= len(conv.Messages) {
		return nil
	}
	var parts []string
	for _, turn := range conv.Messages[m.printed:] {
		parts = append(parts, m.renderTurn(turn.Message))
	}
	m.printed = len(conv.Messages)
	return tea.Println(strings.Join(parts, "\n\n") + "\n")
}

func (m *Model) renderTurn(msg session.Message) string {
	if msg.Role == llm.RoleUser {
		return m.styles.UserLabel.Render("You") + "\n" + msg.Content
	}
	return m.styles.AssistantLabel.Render("Assistant") + "\n" + m.renderMarkdown(msg.Content)
}

func (m *Model) renderMarkdown(content string) string {
	return ui.RenderMarkdown(content, max(m.width-2, 20))
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	if m.submitting {
		if m.partial.Len() > 0 {
			b.WriteString(m.styles.AssistantLabel.Render("Assistant"))
			b.WriteString("\n")
			b.WriteString(m.renderMarkdown(m.partial.String()))
			b.WriteString("\n")
		}
		b.WriteString(m.spinner.View() + " " + m.styles.Muted.Render(stateLabel(m.state)))
		b.WriteString("\n")
	}
	if m.dialog.IsOpen() {
		b.WriteString(m.dialog.View())
		b.WriteString("\n")
	}
	b.WriteString(m.styles.Input.Render(m.textarea.View()))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	return b.String()
}

func stateLabel(st appchat.State) string {
	switch st {
	case appchat.StateTitlePending:
		return "naming conversation..."
	case appchat.StateAnswerStreaming:
		return "streaming..."
	default:
		return "waiting for response..."
	}
}

func (m *Model) statusLine() string {
	title := session.DefaultTitle
	if conv, ok := m.session.Active(); ok {
		title = conv.Title
	}
	model := m.catalog.Lookup(m.session.SelectedModel())
	usage := m.session.ContextUsage()
	parts := []string{
		ui.Truncate(title, 32),
		model.Name,
		fmt.Sprintf("%s (%.0f%%)", usage.String(), usage.Percent()),
		"ctrl+l model · ctrl+o chats · /help",
	}
	return m.styles.StatusBar.Render(strings.Join(parts, " · "))
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, opts Options) error {
	m := New(ctx, opts)
	defer m.bridge.Close()
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
