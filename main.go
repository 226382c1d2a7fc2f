package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"jotter/config"
	"jotter/config/database"
	"jotter/internal/jot/repository"
	"jotter/internal/jot/service"
	"jotter/middleware"
	"jotter/pkg/logger"
	"jotter/router"
	"jotter/socket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "jotter",
		Short:        "jotter scratchpad server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the jotter server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}

	mintCmd := &cobra.Command{
		Use:   "mint",
		Short: "create a new jot and print its link",
		RunE: func(cmd *cobra.Command, args []string) error {
			return mint(cmd.Context(), cmd)
		},
	}

	rootCmd.AddCommand(serveCmd, mintCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Sugar.Errorf("jotter: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

// openStore builds the configured DocumentStore. The returned closer releases backend resources.
func openStore(ctx context.Context, cfg *config.Config) (repository.DocumentStore, func(), error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresStore(db), func() { closeDB(db) }, nil
	case config.BackendS3:
		s, err := repository.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	default:
		s, err := repository.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	}
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		logger.Sugar.Warnf("Failed to close database: %v", err)
	}
}

func setup(ctx context.Context) (*config.Config, repository.DocumentStore, *service.TokenStore, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	logger.Init(logger.Options{File: cfg.LogFile, Debug: cfg.LogDebug})

	docs, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	tokens, err := service.NewTokenStore(cfg.Mode, docs, cfg.BaseURL, cfg.TokenFile)
	if err != nil {
		closeStore()
		return nil, nil, nil, nil, err
	}
	return cfg, docs, tokens, closeStore, nil
}

func serve(ctx context.Context) error {
	cfg, docs, tokens, closeStore, err := setup(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	defer logger.Sync()

	hub := socket.NewHub()
	go hub.Run(ctx)

	if cfg.Backend == config.BackendFile && cfg.FSNotify {
		notifier, err := socket.NewDirNotifier(cfg.Dir, hub)
		if err != nil {
			// Polling still works, hints are only an optimisation.
			logger.Sugar.Warnf("File notifications disabled: %v", err)
		} else {
			go notifier.Run(ctx)
		}
	}

	writers := service.NewWriterAttribution()
	watcher := service.NewChangeWatcher(docs, writers, cfg.PollInterval, hub)
	svc := service.NewSyncService(tokens, docs, writers, watcher, hub)

	sessions, err := middleware.NewSessionIssuer(cfg.SessionSecret, cfg.TLSEnabled())
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router.Setup(svc, sessions, cfg.TLSEnabled()),
		ReadHeaderTimeout: 10 * time.Second,
		// Long-lived /updates connections end with this context on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSEnabled() {
			logger.Sugar.Infof("Starting TLS server on https://%s (%s mode, %s backend)", cfg.Addr(), cfg.Mode, cfg.Backend)
			errCh <- httpServer.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
			return
		}
		logger.Sugar.Infof("Starting server on http://%s (%s mode, %s backend)", cfg.Addr(), cfg.Mode, cfg.Backend)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Sugar.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Sugar.Info("Server exiting")
	return nil
}

func mint(ctx context.Context, cmd *cobra.Command) error {
	cfg, docs, tokens, closeStore, err := setup(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	token := tokens.FixedToken()
	if cfg.Mode == config.ModeMulti {
		if token, err = tokens.NewDocument(ctx, ""); err != nil {
			return err
		}
	} else if _, err := docs.CreateIfAbsent(ctx, token, tokens.Welcome(token)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), service.AccessURL(cfg.BaseURL, token))
	return nil
}
