package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/h5seek/archive"
	"github.com/dendrascience/h5seek/index"
	"github.com/spf13/cobra"
)

// NewValidateCmd creates and returns the validate subcommand.
// It checks every cataloged index against the package it was built from.
func NewValidateCmd(opts *globalOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check cached indexes against their packages",
		Long: `Validate every index registered in the catalog.

Each index must open, carry metadata for the identity it is registered under,
and list exactly the entries a fresh scan of its package finds, with the same
timestamps, sizes and positions. Indexes whose package has been replaced or
removed are reported as stale; "flush --prune" removes them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			catalog := s.res.Catalog()
			locations := catalog.Locations()
			var totalErrors, stale int
			for _, key := range catalog.Keys() {
				dir := locations[key]
				if verbose {
					fmt.Fprintf(out, "Validating index: %s\n", dir)
				}
				res := validateIndex(cmd.Context(), key, dir, s.logger.WithPrefix("validate"))
				if res.stale {
					stale++
					fmt.Fprintf(out, "Index %s is stale: %s\n", dir, res.archive)
					continue
				}
				if len(res.problems) > 0 {
					fmt.Fprintf(out, "Index %s has %d errors:\n", dir, len(res.problems))
					for _, p := range res.problems {
						fmt.Fprintf(out, "  - %s\n", p)
					}
					totalErrors += len(res.problems)
				} else if verbose {
					fmt.Fprintf(out, "Index %s is valid\n", dir)
				}
			}

			fmt.Fprintf(out, "\nValidation complete:\n")
			fmt.Fprintf(out, "  Indexes checked: %d\n", catalog.Len())
			fmt.Fprintf(out, "  Stale indexes: %d\n", stale)
			fmt.Fprintf(out, "  Total errors: %d\n", totalErrors)
			if totalErrors > 0 {
				return fmt.Errorf("%d problems found", totalErrors)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

type validation struct {
	archive  string
	stale    bool
	problems []string
}

func validateIndex(ctx context.Context, key, dir string, logger *log.Logger) validation {
	var v validation
	ix, err := index.Open(dir, logger)
	if err != nil {
		v.problems = append(v.problems, fmt.Sprintf("Failed to open index: %v", err))
		return v
	}
	defer ix.Close()

	meta, err := ix.Metadata()
	if err != nil {
		v.problems = append(v.problems, err.Error())
		return v
	}
	v.archive = meta.Archive
	if meta.Identity != key {
		v.problems = append(v.problems, fmt.Sprintf("Metadata identity mismatch: registered as %s, built for %s", key, meta.Identity))
	}

	id, err := index.IdentityOf(meta.Archive)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && id.Key() != key) {
		v.stale = true
		return v
	}
	if err != nil {
		v.problems = append(v.problems, fmt.Sprintf("Failed to identify package: %v", err))
		return v
	}

	stored, err := ix.Table()
	if err != nil {
		v.problems = append(v.problems, err.Error())
		return v
	}
	if stored.Len() != meta.EntryCount {
		v.problems = append(v.problems, fmt.Sprintf("Metadata entry count mismatch: expected %d, got %d",
			meta.EntryCount, stored.Len()))
	}

	zrc, err := archive.Open(meta.Archive)
	if err != nil {
		v.problems = append(v.problems, fmt.Sprintf("Failed to open package: %v", err))
		return v
	}
	defer zrc.Close()
	fresh, err := index.Build(ctx, &zrc.Reader, nil, logger)
	if err != nil {
		v.problems = append(v.problems, fmt.Sprintf("Failed to scan package: %v", err))
		return v
	}

	byName := make(map[string]index.LookupEntry, stored.Len())
	for e := range stored.Iterate {
		byName[e.Name] = e
	}
	for want := range fresh.Iterate {
		got, ok := byName[want.Name]
		delete(byName, want.Name)
		switch {
		case !ok:
			v.problems = append(v.problems, fmt.Sprintf("Index is missing entry: %s", want.Name))
		case got.Ordinal != want.Ordinal:
			v.problems = append(v.problems, fmt.Sprintf("Entry %s at position %d, package has it at %d", want.Name, got.Ordinal, want.Ordinal))
		case !got.Modified.Equal(want.Modified):
			v.problems = append(v.problems, fmt.Sprintf("Entry %s timestamp %s, package has %s", want.Name, got.Modified, want.Modified))
		case got.FileSize != want.FileSize:
			v.problems = append(v.problems, fmt.Sprintf("Entry %s size %d, package has %d", want.Name, got.FileSize, want.FileSize))
		}
	}
	for _, name := range slices.Sorted(maps.Keys(byName)) {
		v.problems = append(v.problems, fmt.Sprintf("Index references missing entry: %s", name))
	}
	return v
}
