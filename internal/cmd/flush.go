package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewFlushCmd creates and returns the flush subcommand.
func NewFlushCmd(opts *globalOptions) *cobra.Command {
	var prune bool

	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove indexes no package needs anymore",
		Long: `Remove every index directory the catalog does not reference, including
leftovers of interrupted index builds, and drop catalog entries whose index
has disappeared.

With --prune, catalog entries for packages that were replaced or deleted are
dropped first, so their indexes are removed too.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			if prune {
				dropped, err := s.res.PruneCatalog()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Pruned %d catalog entries\n", len(dropped))
			}
			removed, err := s.res.Flush(cmd.Context())
			for _, dir := range removed {
				fmt.Fprintf(out, "  removed %s\n", dir)
			}
			fmt.Fprintf(out, "Flushed %d index directories\n", len(removed))
			return err
		},
	}

	cmd.Flags().BoolVarP(&prune, "prune", "p", false, "Forget indexes of replaced or deleted packages first")

	return cmd
}
