package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suitesync/suitesync/internal/api"
	"github.com/suitesync/suitesync/internal/api/admin"
	"github.com/suitesync/suitesync/internal/api/events"
	"github.com/suitesync/suitesync/internal/api/mappings"
	"github.com/suitesync/suitesync/internal/config"
	"github.com/suitesync/suitesync/internal/sync"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and configuration HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
}

func runServe(cmd *cobra.Command) error {
	cfg := config.Load()

	crmClient, err := newCRMClient(cfg)
	if err != nil {
		return err
	}
	surveyClient, err := newSurveyClient(cfg)
	if err != nil {
		return err
	}

	db, err := openDatabase(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	s := newStore(db)
	cache := newFieldCache(cfg, db, crmClient)
	settingsStore := newSettingsStore(db)

	orchestrator := sync.New(sync.Params{
		Enabled:   cfg.Enabled,
		RefPrefix: cfg.RefPrefix,
		Settings:  settingsStore,
		Mappings:  s.Mappings,
		SyncLog:   s.SyncLog,
		Fields:    cache,
		CRM:       crmClient,
		Responses: surveyClient,
		Questions: surveyClient,
	})

	registry := sync.NewRegistry()
	orchestrator.Register(registry)

	mux := http.NewServeMux()
	events.RegisterRoutes(mux, registry)
	mappings.RegisterRoutes(mux, s)
	admin.RegisterRoutes(mux, cache, crmClient)

	// Catch-all: unknown routes get the standard error envelope.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteError(w, http.StatusNotFound, api.NewNotFoundError(
			fmt.Sprintf("No route found for %s %s", r.Method, r.URL.Path),
			api.CorrelationID(r.Context()),
		))
	})

	handler := api.Chain(mux,
		api.Recovery(),
		api.RequestID(),
		api.Auth(cfg.AuthToken),
		api.Logging(nil),
	)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		slog.Info("shutting down server")
		if err := srv.Shutdown(context.Background()); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting suitesync server", "addr", cfg.Addr, "enabled", cfg.Enabled)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}

	return nil
}
