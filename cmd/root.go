// Package cmd defines the CLI commands for the media-inliner binary,
// mirroring the teacher's cmd/root.go + cmd/crawl.go split: a persistent
// --config flag and an App built once in PersistentPreRunE and threaded to
// subcommands through the command context.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/media-inliner/internal/app"
	"github.com/JakeFAU/media-inliner/internal/config"
)

var cfgFile string

type appKeyType string

const appKey appKeyType = "app"

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media-inliner",
		Short: "Rewrites legacy-CDN media references in CMS content to locally stored copies.",
		Long: `media-inliner fetches media referenced by legacy CDN URLs in a CMS's
posts, post meta, tags, and users, stores it locally (or in object storage),
and rewrites the reference to a __GHOST_URL__ token the CMS resolves at
serve time.`,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			appInstance, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(*app.App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: no file, env + defaults only)")

	cmd.AddCommand(newMigrateMediaCmd())
	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the binary's entry point.
func Execute() error {
	return newRootCmd().Execute()
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}
