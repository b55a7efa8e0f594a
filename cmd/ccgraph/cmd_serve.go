package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"ccgraph/internal/adapter"
	"ccgraph/internal/auth"
	"ccgraph/internal/config"
)

var (
	storeAddr   string
	tokenScopes []string
	tokenTTL    time.Duration
	tokenSubj   string

	serveStoreCmd = &cobra.Command{
		Use:   "serve-store",
		Short: "Expose the local graph store to remote clients",
		Long: `Serve the configured store over the HTTP protocol the remote backend
speaks, so other machines can query a snapshot held here. When
server.auth.jwt_secret is set, callers need a bearer token with the
"store" scope (see 'ccgraph token').`,
		RunE: runServeStore,
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with server.auth.jwt_secret",
		RunE:  runToken,
	}
)

func init() {
	serveStoreCmd.Flags().StringVar(&storeAddr, "addr", ":8090", "listen address")

	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", []string{"query", "store"}, "scopes to grant")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 30*24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenSubj, "subject", "ccgraph", "token subject")
}

func runServeStore(cmd *cobra.Command, args []string) error {
	if cfg.Store.Backend == config.BackendRemote {
		return errors.New("serve-store needs a local backend (sqlite or memory)")
	}

	ctx := cmd.Context()
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	store, err := sess.Store()
	if err != nil {
		return err
	}

	var tokens *auth.TokenService
	if cfg.Server.Auth.Enabled() {
		tokens = auth.NewTokenService([]byte(cfg.Server.Auth.JWTSecret), cfg.Server.Auth.Issuer, 0)
	}

	server := &http.Server{
		Addr:        storeAddr,
		Handler:     adapter.NewStoreServer(store, tokens, logger).Handler(),
		ReadTimeout: cfg.Server.ReadTimeout.Duration(),
		IdleTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("store endpoint listening", "addr", storeAddr, "backend", cfg.Store.Backend, "auth", tokens != nil)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("store endpoint: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runToken(cmd *cobra.Command, args []string) error {
	if !cfg.Server.Auth.Enabled() {
		return errors.New("server.auth.jwt_secret is not set")
	}
	tokens := auth.NewTokenService([]byte(cfg.Server.Auth.JWTSecret), cfg.Server.Auth.Issuer, tokenTTL)
	token, err := tokens.Generate(tokenSubj, tokenScopes)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
