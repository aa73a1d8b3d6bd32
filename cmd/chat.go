package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samsaffron/relaychat/internal/chat"
	"github.com/samsaffron/relaychat/internal/logging"
	tuichat "github.com/samsaffron/relaychat/internal/tui/chat"
	"github.com/samsaffron/relaychat/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	chatFlags clientFlags
	chatNew   bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long: `Start an interactive chat session. Conversations are stored locally and
resumed on the next run.

When stdin is not a terminal each input line is submitted as one message and
the answers are written to stdout.

Examples:
  relaychat chat
  relaychat chat --new
  relaychat chat --transport ws --relay http://10.0.0.2:8787
  printf 'hi\nthanks\n' | relaychat chat --transport local

Keyboard shortcuts:
  Enter        - Send message
  Ctrl+J       - Insert newline
  Esc          - Cancel the answer in flight
  Ctrl+N       - New conversation
  Ctrl+L       - Pick a model
  Ctrl+O       - Switch conversation
  Ctrl+C       - Quit

Slash commands:
  /help /new /model [name] /chats [n] /export [path] /quit`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	addClientFlags(chatCmd, &chatFlags)
	chatCmd.Flags().BoolVar(&chatNew, "new", false, "Start with a fresh conversation")
	rootCmd.AddCommand(chatCmd)
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	in, inOK := cmd.InOrStdin().(*os.File)
	out, outOK := cmd.OutOrStdout().(*os.File)
	if inOK && outOK && isTerminal(in) && isTerminal(out) {
		return runChatTUI(ctx)
	}
	return runChatLines(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
}

func runChatTUI(ctx context.Context) error {
	// The TUI owns the terminal; logs go to a file.
	closer, err := logging.SetupFile(cfg.Log.Level, filepath.Join(cfg.Client.DataDir, "relaychat.log"))
	if err != nil {
		return err
	}
	defer closer.Close()

	bridge := tuichat.NewEventBridge()
	sess, cat, cleanup, err := openSession(ctx, cfg, chatFlags, bridge.Send)
	if err != nil {
		return err
	}
	defer cleanup()

	if chatNew {
		if _, err := sess.NewConversation(ctx); err != nil {
			return err
		}
	}

	err = tuichat.Run(ctx, tuichat.Options{
		Session: sess,
		Catalog: cat,
		Bridge:  bridge,
		Styles:  ui.DefaultStyles(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "failed to run chat")
	}
	return nil
}

// runChatLines submits each non-empty input line and writes the answers to w.
// A failed submission is reported and the loop continues.
func runChatLines(ctx context.Context, r io.Reader, w io.Writer) error {
	sess, _, cleanup, err := openSession(ctx, cfg, chatFlags, func(ev chat.Event) {
		if ev.Chunk != "" {
			fmt.Fprint(w, ev.Chunk)
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	if _, ok := sess.Active(); chatNew || !ok {
		if _, err := sess.NewConversation(ctx); err != nil {
			return err
		}
	}

	var lastErr error
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		err := sess.Submit(ctx, line)
		fmt.Fprintln(w)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn().Err(err).Msg("submission failed")
			fmt.Fprintln(w, ui.DefaultStyles().FormatResult(false, err.Error()))
			lastErr = err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "read input")
	}
	return lastErr
}
