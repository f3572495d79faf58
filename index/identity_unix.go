//go:build linux || darwin || freebsd || netbsd || openbsd

package index

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// createdTime uses the inode change time, which moves whenever a package is
// replaced or rewritten in place.
func createdTime(path string, _ os.FileInfo) time.Time {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return time.Time{}
	}
	return time.Unix(st.Ctim.Unix())
}
