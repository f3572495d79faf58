package cmd

import (
	"fmt"
	"path"

	"github.com/dendrascience/h5seek/resolver"
	"github.com/spf13/cobra"
)

// NewLsCmd creates and returns the ls subcommand. It lists the merged
// resource tree, or counts it with --count.
func NewLsCmd(opts *globalOptions) *cobra.Command {
	var (
		recursive    bool
		count        bool
		showProgress bool
	)

	cmd := &cobra.Command{
		Use:   "ls [DIR]",
		Short: "List the merged resource tree",
		Long: `List the resources directly below DIR across the data folder and every
package. Directories are printed with a trailing slash.

With --count the tree below DIR is walked and only the number of resources
is printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			files := 0
			err = walk(s.res, dir, recursive || count, func(p string, isDir bool) {
				if !isDir {
					files++
					if showProgress && files%10000 == 0 {
						fmt.Fprintf(cmd.ErrOrStderr(), "Progress: %d resources counted\n", files)
					}
				}
				if count {
					return
				}
				if isDir {
					p += "/"
				}
				fmt.Fprintln(out, p)
			})
			if err != nil {
				return err
			}
			if count {
				fmt.Fprintf(out, "Total resources: %d\n", files)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "R", false, "List subdirectories recursively")
	cmd.Flags().BoolVar(&count, "count", false, "Only count resources below DIR")
	cmd.Flags().BoolVar(&showProgress, "progress", false, "Show progress every 10,000 resources")

	return cmd
}

// walk visits the entries below dir in sorted order, descending into
// subdirectories when recursive is set.
func walk(res *resolver.Resolver, dir string, recursive bool, fn func(p string, isDir bool)) error {
	entries, err := res.List(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		p := path.Join(dir, e.Name)
		fn(p, e.Dir)
		if e.Dir && recursive {
			if err := walk(res, p, recursive, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
