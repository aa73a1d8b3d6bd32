package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samsaffron/relaychat/internal/pprof"
	"github.com/samsaffron/relaychat/internal/serve/relay"
	"github.com/spf13/cobra"
)

var (
	serveAddr  string
	serveToken string
	servePprof int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the streaming relay",
	Long: `Run the HTTP relay in front of the configured upstream.

Endpoints:
  POST /api/chat      stream a completion as plain text
  GET  /api/chat/ws   the same over a WebSocket
  GET  /api/models    the model catalog
  GET  /healthz       liveness

Examples:
  relaychat serve
  relaychat serve --addr 0.0.0.0:9000 --token s3cret
  RELAYCHAT_UPSTREAM_PROVIDER=mock relaychat serve
  relaychat serve --pprof 0      # also expose runtime profiles on loopback`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from server.addr)")
	serveCmd.Flags().StringVar(&serveToken, "token", "", "Require this bearer token on /api routes")
	serveCmd.Flags().IntVar(&servePprof, "pprof", -1, "Serve runtime profiles on 127.0.0.1:PORT (0 picks a port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveToken != "" {
		cfg.Server.Token = serveToken
	}

	r, err := newRelay(ctx, cfg)
	if err != nil {
		return err
	}
	handler := relay.NewHandler(r, relay.HandlerOptions{
		Catalog: newCatalog(cfg),
		Token:   cfg.Server.Token,
		Logger:  log.Logger,
	})

	if servePprof >= 0 {
		prof := pprof.NewServer(log.Logger)
		port, err := prof.Start(servePprof)
		if err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = prof.Stop(stopCtx)
		}()
		pprof.PrintUsage(cmd.ErrOrStderr(), port)
	}

	log.Info().
		Str("addr", cfg.Server.Addr).
		Str("upstream", cfg.Upstream.Provider).
		Str("default_model", r.DefaultModel()).
		Dur("timeout", r.Timeout()).
		Msg("relay listening")
	return relay.NewServer(cfg.Server.Addr, handler).Run(ctx)
}
