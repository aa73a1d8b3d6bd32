package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/samsaffron/relaychat/internal/chat"
	"github.com/samsaffron/relaychat/internal/exitcode"
	"github.com/samsaffron/relaychat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	askFlags    clientFlags
	askContinue bool
	askText     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question and stream the answer",
	Long: `Ask one question, stream the answer and store the exchange as a conversation.

Use "-" as the question to read it from stdin.

Examples:
  relaychat ask "What is the capital of France?"
  relaychat ask --continue "and of Spain?"
  relaychat ask --transport local --model gemma2-9b-it "hello"
  git diff | relaychat ask -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	addClientFlags(askCmd, &askFlags)
	askCmd.Flags().BoolVarP(&askContinue, "continue", "c", false, "Continue the most recent conversation")
	askCmd.Flags().BoolVarP(&askText, "text", "t", false, "Output plain text instead of rendered markdown")
	rootCmd.AddCommand(askCmd)
}

func addClientFlags(cmd *cobra.Command, f *clientFlags) {
	cmd.Flags().StringVar(&f.relayURL, "relay", "", "Relay base URL (default from client.relay_url)")
	cmd.Flags().StringVar(&f.transport, "transport", "", "Transport: http, ws or local")
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "Model id or fuzzy name")
}

func readQuestion(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "read question from stdin")
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(args, " ")), nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	question, err := readQuestion(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if question == "" {
		return exitcode.BadUsage("question is empty")
	}

	ctx, stop := signalContext()
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	output := make(chan string, 64)
	onUpdate := func(ev chat.Event) {
		if ev.Chunk == "" {
			return
		}
		select {
		case output <- ev.Chunk:
		case <-ctx.Done():
		}
	}

	sess, _, cleanup, err := openSession(ctx, cfg, askFlags, onUpdate)
	if err != nil {
		return err
	}
	defer cleanup()

	if _, ok := sess.Active(); !askContinue || !ok {
		if _, err := sess.NewConversation(ctx); err != nil {
			return err
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- sess.Submit(ctx, question)
		close(output)
	}()

	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); ok && !askText && term.IsTerminal(int(f.Fd())) {
		err = streamWithBubbleTea(output, cancel)
	} else {
		streamPlainText(out, output)
	}

	submitErr := <-errChan
	if submitErr != nil {
		return submitErr
	}
	return err
}

// streamPlainText copies chunks to w as they arrive.
func streamPlainText(w io.Writer, output <-chan string) {
	wrote := false
	for chunk := range output {
		fmt.Fprint(w, chunk)
		wrote = true
	}
	if wrote {
		fmt.Fprintln(w)
	}
}

// askModel is the bubbletea model for streaming with glamour
type askModel struct {
	spinner    spinner.Model
	content    *strings.Builder
	output     <-chan string
	cancel     context.CancelFunc
	width      int
	done       bool
	finalView  string
	hasContent bool
}

// chunkMsg carries a streaming chunk
type chunkMsg string

// doneMsg signals streaming is complete
type doneMsg struct{}

func newAskModel(output <-chan string, cancel context.CancelFunc) askModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return askModel{
		spinner: s,
		content: &strings.Builder{},
		output:  output,
		cancel:  cancel,
	}
}

func (m askModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForChunk(m.output))
}

// waitForChunk reads from the channel and sends chunks as messages
func waitForChunk(output <-chan string) tea.Cmd {
	return func() tea.Msg {
		chunk, ok := <-output
		if !ok {
			return doneMsg{}
		}
		return chunkMsg(chunk)
	}
}

func (m askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.cancel()
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case chunkMsg:
		m.content.WriteString(string(msg))
		m.hasContent = true
		return m, waitForChunk(m.output)

	case doneMsg:
		m.done = true
		if m.content.Len() > 0 {
			m.finalView = ui.RenderMarkdown(m.content.String(), m.width) + "\n"
		}
		return m, tea.Quit
	}

	return m, nil
}

func (m askModel) View() string {
	if m.done {
		return m.finalView
	}
	if !m.hasContent {
		return m.spinner.View() + " Thinking..."
	}
	return ui.RenderMarkdown(m.content.String(), m.width)
}

// streamWithBubbleTea renders the answer as markdown while it streams.
func streamWithBubbleTea(output <-chan string, cancel context.CancelFunc) error {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		streamPlainText(os.Stdout, output)
		return nil
	}
	defer tty.Close()

	p := tea.NewProgram(newAskModel(output, cancel), tea.WithInput(tty), tea.WithOutput(os.Stdout))
	if _, err := p.Run(); err != nil {
		cancel()
		// Drain so the submitting goroutine can finish.
		for range output {
		}
		return err
	}
	return nil
}
