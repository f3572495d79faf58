package vfs

import (
	"context"
	"errors"
	"os"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/charmbracelet/log"
	"github.com/dendrascience/h5seek/resolver"
)

// attrValid is how long the kernel may cache attributes. Packages change
// rarely, but a watcher may swap them at any time.
const attrValid = 5 * time.Second

// FS implements the read-only resource filesystem
type FS struct {
	res     *resolver.Resolver
	inodes  *Inodes
	logger  *log.Logger
	mounted time.Time
}

// NewFS creates a filesystem serving res.
func NewFS(res *resolver.Resolver, logger *log.Logger) *FS {
	if logger == nil {
		logger = log.Default().WithPrefix("vfs")
	}
	return &FS{
		res:     res,
		inodes:  NewInodes(),
		logger:  logger,
		mounted: time.Now(),
	}
}

// Root returns the root directory node
func (f *FS) Root() (fs.Node, error) {
	return &Dir{fs: f, path: ""}, nil
}

// errno maps resolver failures onto what a filesystem caller expects.
func (f *FS) errno(op, p string, err error) error {
	if errors.Is(err, resolver.ErrNotFound) {
		return syscall.ENOENT
	}
	f.logger.Error(op+" failed", "path", p, "err", err)
	return syscall.EIO
}

// Dir is a directory of the merged view.
type Dir struct {
	fs   *FS
	path string
}

var (
	_ fs.Node               = (*Dir)(nil)
	_ fs.NodeStringLookuper = (*Dir)(nil)
	_ fs.HandleReadDirAller = (*Dir)(nil)
)

// Attr returns directory attributes
func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = d.fs.inodes.For(d.path)
	a.Mode = os.ModeDir | 0o555
	a.Mtime = d.fs.mounted
	a.Ctime = d.fs.mounted
	a.Atime = d.fs.mounted
	a.Valid = attrValid
	return nil
}

// Lookup resolves name below d. A name served as a file by any backend is a
// file; otherwise it is a directory when some backend lists children for it.
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	p := path.Join(d.path, name)

	src, err := d.fs.res.Stat(p)
	if err == nil {
		return &File{fs: d.fs, path: p, modified: src.ModTime}, nil
	}
	if !errors.Is(err, resolver.ErrNotFound) {
		return nil, d.fs.errno("lookup", p, err)
	}

	children, err := d.fs.res.List(p)
	if err != nil {
		return nil, d.fs.errno("lookup", p, err)
	}
	if len(children) == 0 {
		return nil, syscall.ENOENT
	}
	return &Dir{fs: d.fs, path: p}, nil
}

// ReadDirAll lists the union of every backend's entries below d.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.res.List(d.path)
	if err != nil {
		return nil, d.fs.errno("readdir", d.path, err)
	}
	out := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		typ := fuse.DT_File
		if e.Dir {
			typ = fuse.DT_Dir
		}
		out = append(out, fuse.Dirent{
			Inode: d.fs.inodes.For(path.Join(d.path, e.Name)),
			Name:  e.Name,
			Type:  typ,
		})
	}
	return out, nil
}

// File is a resolved resource. Its content is resolved once per node and
// kept, so size and data always agree.
type File struct {
	fs       *FS
	path     string
	modified time.Time

	mu   sync.Mutex
	data []byte
}

var (
	_ fs.Node            = (*File)(nil)
	_ fs.HandleReadAller = (*File)(nil)
)

func (f *File) load() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data != nil {
		return f.data, nil
	}
	res, err := f.fs.res.Resolve(f.path)
	if err != nil {
		return nil, f.fs.errno("read", f.path, err)
	}
	f.data = []byte(strings.Join(res.Lines, ""))
	f.modified = res.ModTime
	return f.data, nil
}

// Attr returns file attributes
func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	data, err := f.load()
	if err != nil {
		return err
	}
	a.Inode = f.fs.inodes.For(f.path)
	a.Mode = 0o444
	a.Size = uint64(len(data))
	a.Mtime = f.modified
	a.Ctime = f.modified
	a.Atime = f.modified
	a.Valid = attrValid
	return nil
}

// ReadAll returns the resolved content
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	return f.load()
}
