package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/dendrascience/h5seek/resolver"
	"github.com/spf13/cobra"
)

// NewIndexCmd creates and returns the index subcommand.
// It builds indexes for every package the catalog does not cover yet.
func NewIndexCmd(opts *globalOptions) *cobra.Command {
	var (
		verbose bool
		dryRun  bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index new or replaced packages",
		Long: `Index every package that has no usable index yet.

Each index records, for every entry of its package, the name, timestamp, size
and position in the package, so later lookups need not open the package.
Indexes are stored in the index directory and registered in the catalog.
A package that fails to index is reported and stays scanned; the others are
indexed regardless.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			pending := s.res.Unindexed()
			if len(pending) == 0 {
				fmt.Fprintln(out, "All packages are indexed")
				return nil
			}
			if dryRun {
				fmt.Fprintln(out, "Packages that would be indexed:")
				for _, p := range pending {
					fmt.Fprintf(out, "  %s\n", p)
				}
				return nil
			}

			var progress resolver.ProgressFunc
			if verbose {
				progress = func(p resolver.Progress) {
					if p.Done == p.Total {
						fmt.Fprintf(out, "Indexed package %d/%d: %s (%d entries)\n",
							p.Number, p.Archives, filepath.Base(p.Archive), p.Total)
					}
				}
			}
			err = s.res.BuildIndexes(cmd.Context(), progress)

			left := s.res.Unindexed()
			fmt.Fprintf(out, "Indexing complete:\n")
			fmt.Fprintf(out, "  Packages indexed: %d\n", len(pending)-len(left))
			fmt.Fprintf(out, "  Packages failed: %d\n", len(left))
			fmt.Fprintf(out, "  Catalog: %s (%d indexes)\n", s.res.Catalog().Path(), s.res.Catalog().Len())
			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report each package as it is indexed")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show which packages would be indexed without indexing them")

	return cmd
}
