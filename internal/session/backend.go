package session

import (
	"context"
	"fmt"
	"log/slog"

	"ccgraph/internal/adapter"
	"ccgraph/internal/cache"
	"ccgraph/internal/config"
	"ccgraph/internal/repository"
	"ccgraph/internal/repository/memory"
	"ccgraph/internal/repository/sqlite"
)

// FromConfig returns an Opener for the backend cfg selects, wrapped in the
// adjacency cache when it is enabled.
func FromConfig(cfg *config.Config, logger *slog.Logger) Opener {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context) (repository.GraphStore, error) {
		store, identity, err := openBackend(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		if !cfg.Cache.Enabled {
			return store, nil
		}

		cached, err := cache.New(store, cache.Config{
			Dir:       cfg.Cache.Dir,
			InMemory:  cfg.Cache.InMemory,
			Namespace: cache.Namespace(cfg.Snapshot.Version, string(cfg.Store.Backend), identity),
			Logger:    logger.With("component", "cache"),
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		return cached, nil
	}
}

// openBackend returns the store plus a string identifying what it serves.
func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.GraphStore, string, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		repo, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, "", err
		}
		return repo, cfg.Store.Path, nil

	case config.BackendMemory:
		return memory.New(), "memory", nil

	case config.BackendRemote:
		store, err := openRemote(ctx, cfg.Store.Remote, logger)
		if err != nil {
			return nil, "", err
		}
		return store, cfg.Store.Remote.URL, nil

	default:
		return nil, "", fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func openRemote(ctx context.Context, rc config.RemoteConfig, logger *slog.Logger) (*adapter.RemoteStore, error) {
	remoteCfg := adapter.RemoteConfig{
		BaseURL:   rc.URL,
		Timeout:   rc.Timeout.Duration(),
		RateLimit: rc.RateLimit,
		Burst:     rc.Burst,
		Token:     rc.Token,
		Serialize: rc.Serialize,
	}

	var tunnel *adapter.Tunnel
	if rc.SSH.Enabled() {
		var err error
		tunnel, err = adapter.OpenTunnel(ctx, adapter.TunnelConfig{
			Host:       rc.SSH.Host,
			User:       rc.SSH.User,
			KeyFile:    rc.SSH.KeyFile,
			Password:   rc.SSH.Password,
			KnownHosts: rc.SSH.KnownHosts,
			Timeout:    rc.Timeout.Duration(),
		})
		if err != nil {
			return nil, fmt.Errorf("ssh tunnel to %s: %w", rc.SSH.Host, err)
		}
		remoteCfg.Dial = tunnel.DialContext
		logger.Info("ssh tunnel established", "host", rc.SSH.Host)
	}

	store, err := adapter.NewRemoteStore(remoteCfg, logger.With("component", "remote"))
	if err != nil {
		if tunnel != nil {
			tunnel.Close()
		}
		return nil, err
	}
	if tunnel != nil {
		store.AddCloser(tunnel)
	}
	return store, nil
}
