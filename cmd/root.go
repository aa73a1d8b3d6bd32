package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samsaffron/relaychat/internal/chat"
	"github.com/samsaffron/relaychat/internal/config"
	"github.com/samsaffron/relaychat/internal/exitcode"
	"github.com/samsaffron/relaychat/internal/logging"
	"github.com/samsaffron/relaychat/internal/ui"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFormat  string

	// cfg is loaded once per invocation by the root pre-run hook.
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/relaychat/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: console or json")
}

var rootCmd = &cobra.Command{
	Use:   "relaychat",
	Short: "Stream chat completions through a relay and keep the history locally",
	Long: `relaychat runs a small streaming relay in front of a hosted LLM API and a
terminal chat client that talks to it.

Examples:
  relaychat serve                         # start the relay on 127.0.0.1:8787
  relaychat chat                          # interactive chat against the relay
  relaychat ask "what is a goroutine?"    # one-shot question
  relaychat chat --transport local        # no relay process, call upstream directly
  relaychat conversations list            # stored conversations`,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stderr)
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	loaded, err := config.Load(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config")
	}
	if logLevel != "" {
		loaded.Log.Level = logLevel
	}
	if logFormat != "" {
		loaded.Log.Format = logFormat
	}
	return loaded, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	var exitErr exitcode.ExitError
	switch {
	case err == nil:
		return exitcode.Success
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, context.Canceled):
		return exitcode.Cancelled
	case errors.Is(err, chat.ErrRelayUnreachable):
		return exitcode.Unreachable
	case errors.Is(err, chat.ErrSubmissionFailed):
		return exitcode.SubmissionFailed
	default:
		return exitcode.Error
	}
}

func reportError(w io.Writer, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	styles := ui.DefaultStyles()
	fmt.Fprintln(w, styles.FormatResult(false, err.Error()))
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		log.Debug().Err(err).Msg("command failed")
		reportError(os.Stderr, err)
	}
	os.Exit(exitCode(err))
}
