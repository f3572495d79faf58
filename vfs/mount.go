package vfs

import (
	"context"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

// Mount serves f read-only at mountpoint until ctx is cancelled or the
// filesystem is unmounted from outside. Cancellation is a clean shutdown.
func Mount(ctx context.Context, f *FS, mountpoint string) error {
	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("h5seek"),
		fuse.Subtype("h5seek"),
		fuse.ReadOnly(),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	served := make(chan error, 1)
	go func() {
		served <- fs.Serve(c, f)
	}()

	f.logger.Info("mounted", "mountpoint", mountpoint, "root", f.res.Root().Path())
	select {
	case err := <-served:
		return err
	case <-ctx.Done():
		f.logger.Info("unmounting", "mountpoint", mountpoint)
		if err := fuse.Unmount(mountpoint); err != nil {
			return err
		}
		return <-served
	}
}
