package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/suitesync/suitesync/internal/config"
	"github.com/suitesync/suitesync/internal/sync"
)

// NewSyncCommand creates the sync command, a manual re-run of the pipeline
// for one response.
func NewSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync <surveyId> <responseId>",
		Short: "Run the sync pipeline for one completed response",
		Long: `Run the full pipeline for one completed response, exactly as the
survey-complete webhook would: fetch the response, apply the survey's
field mappings, create CRM records, and append to the sync log.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			surveyID, err := strconv.Atoi(args[0])
			if err != nil || surveyID <= 0 {
				return fmt.Errorf("surveyId must be a positive integer, got %q", args[0])
			}
			responseID, err := strconv.Atoi(args[1])
			if err != nil || responseID <= 0 {
				return fmt.Errorf("responseId must be a positive integer, got %q", args[1])
			}

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
			orchestrator := sync.New(sync.Params{
				Enabled:   cfg.Enabled,
				RefPrefix: cfg.RefPrefix,
				Settings:  newSettingsStore(db),
				Mappings:  s.Mappings,
				SyncLog:   s.SyncLog,
				Fields:    newFieldCache(cfg, db, crmClient),
				CRM:       crmClient,
				Responses: surveyClient,
				Questions: surveyClient,
			})

			ev := sync.Event{SurveyID: surveyID, ResponseID: responseID}
			if err := orchestrator.HandleSurveyComplete(cmd.Context(), ev); err != nil {
				return err
			}

			stats, err := s.SyncLog.Stats(cmd.Context(), surveyID)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}
