package cmd

import (
	"fmt"
	"time"

	"github.com/dendrascience/h5seek/internal/seed"
	"github.com/spf13/cobra"
)

// NewSeedCmd creates and returns the seed subcommand.
// It generates a synthetic game installation for trying out and benchmarking
// resolution and indexing.
func NewSeedCmd() *cobra.Command {
	var (
		outputPath string
		opts       seed.Options
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a synthetic game installation",
		Long: `Generate a game installation for testing h5seek.

Creates bin/ and data/ below the output directory, loose resource files in
data/, .pak packages in data/ and .h5u mods in UserMODs/. Entries are spread
over a handful of resource folders with timestamps within a year; mods
override entries of the first package with later timestamps. Each resource
holds a single UUID line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if verbose {
				fmt.Fprintf(out, "Generating %d packages of %d entries in %s\n", opts.Archives, opts.Entries, outputPath)
				opts.Progress = func(archive string, entries int) {
					fmt.Fprintf(out, "Created %s (%d entries)\n", archive, entries)
				}
			}
			start := time.Now()
			sum, err := seed.Generate(outputPath, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %d packages, %d entries and %d loose files in %s\n",
				len(sum.Archives), sum.Entries, sum.LooseFiles, time.Since(start).Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path to output directory (required)")
	cmd.Flags().IntVarP(&opts.Archives, "archives", "a", 4, "Number of data/*.pak packages")
	cmd.Flags().IntVarP(&opts.Entries, "entries", "e", 10000, "Entries per package")
	cmd.Flags().IntVarP(&opts.LooseFiles, "loose", "l", 100, "Number of loose files in data/")
	cmd.Flags().IntVarP(&opts.Mods, "mods", "m", 2, "Number of UserMODs/*.h5u packages")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	cmd.MarkFlagRequired("output")

	return cmd
}
