package cmd

import (
	"context"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/samsaffron/relaychat/internal/catalog"
	"github.com/samsaffron/relaychat/internal/chat"
	"github.com/samsaffron/relaychat/internal/config"
	"github.com/samsaffron/relaychat/internal/exitcode"
	"github.com/samsaffron/relaychat/internal/llm"
	"github.com/samsaffron/relaychat/internal/serve/relay"
	"github.com/samsaffron/relaychat/internal/session"
	"github.com/samsaffron/relaychat/internal/usage"
)

// clientFlags are shared by chat and ask.
type clientFlags struct {
	relayURL  string
	transport string
	model     string
}

func (f clientFlags) apply(c *config.Config) {
	if f.relayURL != "" {
		c.Client.RelayURL = f.relayURL
	}
	if f.transport != "" {
		c.Client.Transport = f.transport
	}
}

func newCatalog(c *config.Config) *catalog.Catalog {
	return catalog.FromConfig(c.Models)
}

func newRelay(ctx context.Context, c *config.Config) (*relay.Relay, error) {
	provider, err := llm.NewProvider(ctx, c.Upstream)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("provider", provider.Name()).Str("default_model", c.Upstream.DefaultModel).Msg("upstream ready")
	return relay.New(provider, relay.Options{
		DefaultModel: c.Upstream.DefaultModel,
		Timeout:      c.Server.Timeout,
	}), nil
}

// newBackend builds the client transport. The returned cleanup is never nil.
func newBackend(ctx context.Context, c *config.Config) (chat.Backend, func(), error) {
	noop := func() {}
	switch c.Client.Transport {
	case config.TransportHTTP, "":
		return chat.NewHTTPBackend(c.Client.RelayURL, c.Server.Token, nil), noop, nil
	case config.TransportWS:
		ws, err := chat.NewWSBackend(c.Client.RelayURL, c.Server.Token)
		if err != nil {
			return nil, noop, exitcode.BadUsage(err.Error())
		}
		return ws, func() { _ = ws.Close() }, nil
	case config.TransportLocal:
		r, err := newRelay(ctx, c)
		if err != nil {
			return nil, noop, err
		}
		return chat.NewLocalBackend(r), noop, nil
	default:
		return nil, noop, exitcode.BadUsage("unknown transport " + c.Client.Transport + " (want http, ws or local)")
	}
}

func openStore(c *config.Config) (*session.Store, error) {
	storage, err := session.OpenStorage(c.Client.Store, c.Client.DataDir)
	if err != nil {
		return nil, errors.Wrap(err, "open conversation store")
	}
	return session.NewStore(storage), nil
}

// openSession wires store, backend and catalog into a loaded Session.
// The returned cleanup closes the backend and the store.
func openSession(ctx context.Context, c *config.Config, flags clientFlags, onUpdate func(chat.Event)) (*chat.Session, *catalog.Catalog, func(), error) {
	flags.apply(c)
	cat := newCatalog(c)

	store, err := openStore(c)
	if err != nil {
		return nil, nil, nil, err
	}
	backend, closeBackend, err := newBackend(ctx, c)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		closeBackend()
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("close conversation store")
		}
	}

	sess := chat.NewSession(store, backend, chat.Options{
		DefaultModel: c.Upstream.DefaultModel,
		Catalog:      cat,
		Logger:       log.Logger,
		OnUpdate:     onUpdate,
		Usage:        usageLogger(c),
	})
	if err := sess.Load(ctx); err != nil {
		cleanup()
		return nil, nil, nil, errors.Wrap(err, "load conversations")
	}
	if flags.model != "" {
		if err := sess.SelectModel(resolveModel(cat, flags.model)); err != nil {
			cleanup()
			return nil, nil, nil, exitcode.BadUsage(err.Error())
		}
	}
	return sess, cat, cleanup, nil
}

// resolveModel accepts an exact id or the best fuzzy match.
func resolveModel(cat *catalog.Catalog, query string) string {
	if m, err := cat.Resolve(query); err == nil {
		return m.ID
	}
	if matches := cat.Find(query); len(matches) > 0 {
		return matches[0].ID
	}
	return query
}

func usageDir(c *config.Config) string {
	return filepath.Join(c.Client.DataDir, "usage")
}

// usageLogger is nil for the memory store, which leaves nothing on disk.
func usageLogger(c *config.Config) *usage.Logger {
	if c.Client.Store == config.StoreMemory {
		return nil
	}
	return usage.NewLogger(usageDir(c))
}
