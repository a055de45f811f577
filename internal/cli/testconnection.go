package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suitesync/suitesync/internal/config"
)

// NewTestConnectionCommand creates the test-connection command.
func NewTestConnectionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Verify the CRM credentials and list visible modules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			crmClient, err := newCRMClient(config.Load())
			if err != nil {
				return err
			}

			report := crmClient.TestConnection(cmd.Context())
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			if !report.Success {
				return fmt.Errorf("connection test failed: %s", report.Message)
			}
			return nil
		},
	}
}

// printJSON writes v as indented JSON to the command's stdout.
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
