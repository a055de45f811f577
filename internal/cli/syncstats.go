package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/suitesync/suitesync/internal/config"
)

// NewSyncStatsCommand creates the sync-stats command.
func NewSyncStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-stats <surveyId>",
		Short: "Show aggregate sync counters for one survey",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			surveyID, err := strconv.Atoi(args[0])
			if err != nil || surveyID <= 0 {
				return fmt.Errorf("surveyId must be a positive integer, got %q", args[0])
			}

			db, err := openDatabase(cmd, config.Load())
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			stats, err := newStore(db).SyncLog.Stats(cmd.Context(), surveyID)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}
