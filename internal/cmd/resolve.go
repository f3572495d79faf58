package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// NewResolveCmd creates and returns the resolve subcommand.
func NewResolveCmd(opts *globalOptions) *cobra.Command {
	var (
		which       bool
		metricsFile string
	)

	cmd := &cobra.Command{
		Use:   "resolve PATH...",
		Short: "Print the winning copy of resources",
		Long: `Resolve resource paths against the loose data folder and every package.

The copy with the newest timestamp wins; on equal timestamps the folder beats
packages, and packages are consulted in directory order. Paths use forward
slashes or backslashes and are matched case-sensitively.

With --which only the winning backend and timestamp are printed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			for _, p := range args {
				if which {
					src, err := s.res.Stat(p)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "%s\t%s\t%s\n", src.Path, src.Backend, src.ModTime.Format(time.RFC3339))
					continue
				}
				res, err := s.res.Resolve(p)
				if err != nil {
					return err
				}
				fmt.Fprint(out, strings.Join(res.Lines, ""))
			}

			if metricsFile != "" {
				return prometheus.WriteToTextfile(metricsFile, s.registry)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&which, "which", "w", false, "Print the winning backend instead of the content")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "Write resolver metrics in Prometheus text format to this file")

	return cmd
}
