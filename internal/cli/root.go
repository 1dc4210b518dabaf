// Package cli implements directoryctl, the offline maintenance tool. Every
// command opens the store directly, so the service must be stopped first;
// the data directory lock enforces this.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/indexer/segmenter"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/store"
	"github.com/Adithya-Monish-Kumar-K/club-directory/internal/store/entrylog"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/club-directory/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	cfg *config.Config
}

// NewRootCommand creates the directoryctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "directoryctl",
		Short: "Maintenance tool for the club directory",
		Long:  "Bulk-import entries and export capability keys against a stopped directory store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			level := cfg.Logging.Level
			if opts.Verbose {
				level = "debug"
			}
			logger.SetupTo(cmd.ErrOrStderr(), level, "text")
			opts.cfg = cfg
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))

	return cmd
}

func (o *RootOptions) openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, o.cfg.Store, entrylog.FromConfig(o.cfg), segmenter.New())
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	return st, nil
}
