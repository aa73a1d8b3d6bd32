// Package pprof exposes runtime profiles for a running relay on loopback.
package pprof

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Server wraps the net/http/pprof handlers on a dedicated listener.
type Server struct {
	server   *http.Server
	listener net.Listener
	port     int
	log      zerolog.Logger
}

func NewServer(log zerolog.Logger) *Server {
	return &Server{log: log}
}

// Start binds to 127.0.0.1:port and serves in the background.
// Port 0 picks a free port. The bound port is returned.
func (s *Server) Start(port int) (int, error) {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return 0, errors.Wrapf(err, "bind pprof to %s", addr)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	// Dedicated mux so nothing registered on http.DefaultServeMux leaks out.
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	s.server = &http.Server{Handler: mux}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("pprof server stopped")
		}
	}()
	return s.port, nil
}

func (s *Server) Port() int {
	return s.port
}

// Stop shuts the server down; it is a no-op if Start was never called.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// PrintUsage prints go tool pprof invocations for the server on port.
func PrintUsage(w io.Writer, port int) {
	base := fmt.Sprintf("http://127.0.0.1:%d/debug/pprof", port)
	fmt.Fprintf(w, "\npprof server: %s/\n\n", base)
	fmt.Fprintf(w, "Quick commands (from another terminal):\n")
	fmt.Fprintf(w, "  go tool pprof %s/profile?seconds=30   # CPU\n", base)
	fmt.Fprintf(w, "  go tool pprof %s/heap                 # memory\n", base)
	fmt.Fprintf(w, "  curl '%s/goroutine?debug=2'           # goroutine dump\n\n", base)
}
