package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suitesync/suitesync/internal/config"
)

// NewRefreshCacheCommand creates the refresh-cache command.
func NewRefreshCacheCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-cache [module...]",
		Short: "Force-refresh cached CRM field definitions",
		Long: `Force-refresh the cached field definitions of the named CRM modules.
With no arguments every module the CRM reports is refreshed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			crmClient, err := newCRMClient(cfg)
			if err != nil {
				return err
			}

			db, err := openDatabase(cmd, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			modules := args
			if len(modules) == 0 {
				modules, err = crmClient.ListModules(cmd.Context())
				if err != nil {
					return fmt.Errorf("list crm modules: %w", err)
				}
			}

			cache := newFieldCache(cfg, db, crmClient)
			report := cache.RefreshAll(cmd.Context(), modules)
			if err := printJSON(cmd, report); err != nil {
				return err
			}

			for module, result := range report {
				if !result.Success {
					return fmt.Errorf("refresh of %s failed: %s", module, result.Error)
				}
			}
			return nil
		},
	}
}
