package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/dendrascience/h5seek/internal/watch"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates and returns the watch subcommand.
func NewWatchCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep indexes current while packages change",
		Long: `Watch the package directories and, once changes have settled for the
configured debounce period, forget replaced packages, index new ones and
flush indexes that are no longer needed. Pending packages are indexed once
at startup.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reindex := watch.Reindex(s.res, nil)
			w, err := watch.New(watch.Config{
				Root:     s.cfg.Root,
				Layout:   s.cfg.Layout(),
				Debounce: s.cfg.Watch.Debounce,
				OnChange: reindex,
				Logger:   s.logger.WithPrefix("watch"),
			})
			if err != nil {
				return err
			}
			if err := reindex(ctx, nil); err != nil {
				s.logger.Error("initial indexing incomplete", "err", err)
			}
			s.logger.Info("watching packages", "dirs", w.Dirs(), "debounce", s.cfg.Watch.Debounce)
			return w.Run(ctx)
		},
	}
	return cmd
}
