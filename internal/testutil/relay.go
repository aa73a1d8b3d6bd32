package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/serve/relay"
)

// RelayServer starts a relay in front of provider for the duration of the test.
func RelayServer(t *testing.T, provider llm.Provider, opts relay.Options) *httptest.Server {
	t.Helper()
	h := relay.NewHandler(relay.New(provider, opts), relay.HandlerOptions{Logger: zerolog.Nop()})
	srv := httptest.NewServer(h.HTTPHandler())
	t.Cleanup(srv.Close)
	return srv
}
