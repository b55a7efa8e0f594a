// Package main provides the ccgraph CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"ccgraph/internal/config"
	"ccgraph/internal/logging"
	"ccgraph/internal/service"
	"ccgraph/internal/session"
)

// Version is set at build time
var Version = "dev"

// --- Global flags ---
var (
	configPath string
	logLevel   string
	logFormat  string
	backend    string
	storePath  string
	remoteURL  string

	cfg    *config.Config
	logger *slog.Logger

	rootCmd = &cobra.Command{
		Use:   "ccgraph",
		Short: "Find the domains that link to, or are linked from, a set of seed domains",
		Long: `ccgraph queries a CommonCrawl domain-level web graph.

Given seed domains it ranks the neighbors shared by many of them
(backlinks or outlinks), lists shared neighbors via the store's
intersection query, and looks up individual domains. The graph is
read from an imported sqlite snapshot or a remote store endpoint.`,
		Version:           Version,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default: search standard locations)")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&logFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&backend, "backend", "", "graph store backend: sqlite, remote or memory")
	pf.StringVar(&storePath, "store", "", "sqlite snapshot path")
	pf.StringVar(&remoteURL, "remote", "", "remote store URL (implies --backend remote)")

	rootCmd.AddCommand(
		discoverCmd,
		sharedCmd,
		validateCmd,
		lookupCmd,
		neighborsCmd,
		convertCmd,
		importCmd,
		fetchCmd,
		checkCmd,
		versionsCmd,
		serveStoreCmd,
		tokenCmd,
		configCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads config, applies flag overrides and installs the logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if configPath != "" {
		cfg, _, err = config.LoadFromPath(configPath)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		return err
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if remoteURL != "" {
		cfg.Store.Backend = config.BackendRemote
		cfg.Store.Remote.URL = remoteURL
	}
	if backend != "" {
		cfg.Store.Backend = config.ParseBackend(backend)
	}
	if storePath != "" {
		cfg.Store.Path = storePath
	}

	logger, err = logging.Setup(cfg.Log.Level, cfg.Log.Format)
	return err
}

// openSession opens the configured store. The caller closes it.
func openSession(ctx context.Context) (*session.Session, error) {
	sess := session.New(session.FromConfig(cfg, logger), logger)
	if err := sess.Open(ctx); err != nil {
		return nil, fmt.Errorf("open graph store (%s): %w", cfg.Store.Backend, err)
	}
	return sess, nil
}

// queryServices wires the query services over an open session.
type queryServices struct {
	client      *service.Client
	discovery   *service.Discovery
	intersector *service.Intersector
}

func newQueryServices(sess *session.Session) *queryServices {
	client := service.NewClient(sess, logger)
	events := service.NewEventBus()
	return &queryServices{
		client:      client,
		discovery:   service.NewDiscovery(client, events, cfg.Discovery.Workers),
		intersector: service.NewIntersector(client, events),
	}
}
