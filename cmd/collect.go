package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCollectCmd creates the 'collect' subcommand, which runs one collection
// in the foreground. Interrupting it cancels the run; whatever was collected
// is still exported.
func newCollectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "collect <title or URL>",
		Short: "Collect one series or book into a report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			res, err := appInstance.Collect(cmd.Context(), query)
			if err != nil {
				return fmt.Errorf("collect %q: %w", query, err)
			}

			logger := appInstance.Logger()
			if len(res.Failed) > 0 {
				logger.Warn("some books could not be collected", zap.Strings("asins", res.Failed))
			}
			if res.Cancelled {
				logger.Warn("collection interrupted, partial report exported")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d book(s) to %s\n", len(res.Model.Books), res.Location)
			return nil
		},
	}
}
