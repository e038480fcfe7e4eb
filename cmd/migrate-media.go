package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newMigrateMediaCmd creates the 'migrate-media' subcommand: the one-shot
// CLI path to StartMediaInliner (§10.3).
func newMigrateMediaCmd() *cobra.Command {
	var domains []string

	cmd := &cobra.Command{
		Use:   "migrate-media",
		Short: "Fetches legacy-CDN media referenced by the CMS and rewrites it to local copies",
		Long: `Runs the media inliner job once against the configured CMS, fetching
every media reference under the given domains (or the built-in defaults),
storing it locally or in object storage, and rewriting the reference to a
__GHOST_URL__ token.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateMedia(cmd, domains)
		},
	}
	cmd.Flags().StringSliceVar(&domains, "domain", nil, "legacy CDN domain to migrate (repeatable); defaults to the built-in list")

	return cmd
}

func runMigrateMedia(cmd *cobra.Command, domains []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	result, err := appInstance.StartMediaInliner(cmd.Context(), domains)
	if err != nil {
		return fmt.Errorf("run media inliner: %w", err)
	}

	appInstance.GetLogger().Info("media inliner run finished",
		zap.String("job_id", result.JobID),
		zap.Int("fetched", result.Counts.Fetched),
		zap.Int("cached", result.Counts.Cached),
		zap.Int("failed", result.Counts.Failed),
		zap.Int("rewritten", result.Counts.Rewritten),
	)
	fmt.Printf("job %s: fetched=%d cached=%d failed=%d rewritten=%d\n",
		result.JobID, result.Counts.Fetched, result.Counts.Cached, result.Counts.Failed, result.Counts.Rewritten)
	return nil
}
