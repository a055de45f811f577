// Package cli wires the suitesync commands. Configuration comes from the
// environment; commands validate only the options they actually need.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/suitesync/suitesync/internal/config"
	"github.com/suitesync/suitesync/internal/crm"
	"github.com/suitesync/suitesync/internal/database"
	"github.com/suitesync/suitesync/internal/fieldcache"
	"github.com/suitesync/suitesync/internal/settings"
	"github.com/suitesync/suitesync/internal/store"
	"github.com/suitesync/suitesync/internal/survey"
)

// NewRootCommand creates the root command for the suitesync CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suitesync",
		Short: "Sync completed survey responses into SuiteCRM",
		Long: `suitesync listens for survey-completion events, transforms answers
through configured field mappings, and creates SuiteCRM records.

All configuration is read from SUITESYNC_* environment variables
(a .env file in the working directory is honored).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(config.Load().Debug)
		},
	}

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewTestConnectionCommand())
	cmd.AddCommand(NewRefreshCacheCommand())
	cmd.AddCommand(NewSyncStatsCommand())
	cmd.AddCommand(NewSyncCommand())

	return cmd
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openDatabase opens the configured SQLite database and brings the schema up
// to date. The caller closes it.
func openDatabase(cmd *cobra.Command, cfg config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := database.Migrate(cmd.Context(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func newCRMClient(cfg config.Config) (*crm.Client, error) {
	if err := cfg.ValidateCRM(); err != nil {
		return nil, err
	}
	return crm.New(crm.Config{
		BaseURL:      cfg.CRMURL,
		ClientID:     cfg.OAuthClientID,
		ClientSecret: cfg.OAuthClientSecret,
		Username:     cfg.CRMUser,
		Password:     cfg.CRMPassword,
		Debug:        cfg.Debug,
	}), nil
}

func newSurveyClient(cfg config.Config) (*survey.Client, error) {
	if err := cfg.ValidateSurvey(); err != nil {
		return nil, err
	}
	return survey.New(survey.Config{
		BaseURL:  cfg.SurveyURL,
		Username: cfg.SurveyUser,
		Password: cfg.SurveyPassword,
		Debug:    cfg.Debug,
	}), nil
}

func newFieldCache(cfg config.Config, db *sql.DB, crmClient *crm.Client) *fieldcache.Cache {
	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
	return fieldcache.New(settings.NewSQLiteStore(db), crmClient, ttl, nil)
}

func newStore(db *sql.DB) *store.Store {
	return store.New(db)
}

func newSettingsStore(db *sql.DB) *settings.SQLiteStore {
	return settings.NewSQLiteStore(db)
}
