package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/dendrascience/h5seek/version"
	"github.com/dendrascience/h5seek/vfs"
	"github.com/spf13/cobra"
)

// NewMountCmd creates and returns the mount subcommand.
// It serves the merged resource tree read-only over FUSE.
func NewMountCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mount MOUNTPOINT",
		Short: "Mount the merged resource tree read-only",
		Long: `Mount the merged resource tree at MOUNTPOINT.

Every file shows the content of its winning copy. The mount is read-only and
stays up until interrupted or unmounted. The mountpoint must not lie inside
the game root or the index cache, nor contain them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mountpoint := args[0]
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, p := range []string{s.res.Root().Path(), s.res.IndexDir(), filepath.Dir(s.res.Catalog().Path())} {
				if pathsOverlap(p, mountpoint) {
					return fmt.Errorf("mountpoint %s overlaps %s", mountpoint, p)
				}
			}
			if err := os.MkdirAll(mountpoint, 0o755); err != nil {
				return fmt.Errorf("failed to create mountpoint: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s.logger.Info("h5seek starting", "version", version.GetFullVersion())
			if n := len(s.res.Unindexed()); n > 0 {
				s.logger.Warn("some packages are not indexed, lookups will be slower", "unindexed", n)
			}
			return vfs.Mount(ctx, vfs.NewFS(s.res, s.logger.WithPrefix("vfs")), mountpoint)
		},
	}
}

// pathsOverlap reports whether one path equals or contains the other.
func pathsOverlap(path1, path2 string) bool {
	abs1, err1 := filepath.Abs(path1)
	abs2, err2 := filepath.Abs(path2)
	if err1 != nil || err2 != nil {
		return filepath.Clean(path1) == filepath.Clean(path2)
	}
	return within(abs1, abs2) || within(abs2, abs1)
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
