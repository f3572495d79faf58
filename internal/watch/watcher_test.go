package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/h5seek/internal/seed"
	"github.com/dendrascience/h5seek/resolver"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t2020 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.Local)

func quietLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

func newWatcher(t *testing.T, root string, onChange func(context.Context, []string) error) *Watcher {
	t.Helper()
	w, err := New(Config{
		Root:     root,
		Layout:   resolver.DefaultLayout(),
		Debounce: 100 * time.Millisecond,
		OnChange: onChange,
		Logger:   quietLogger(),
	})
	require.NoError(t, err)
	return w
}

func TestRelevant(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, seed.Skeleton(root))
	w := newWatcher(t, root, nil)
	t.Cleanup(func() { w.fsw.Close() })

	assert.Equal(t, []string{filepath.Join(root, "UserMODs"), filepath.Join(root, "data")}, w.Dirs())

	tests := []struct {
		name string
		path string
		op   fsnotify.Op
		want bool
	}{
		{"pak in data", "data/patch.pak", fsnotify.Write, true},
		{"extension case", "data/PATCH.PAK", fsnotify.Create, true},
		{"removed mod", "UserMODs/m.h5u", fsnotify.Remove, true},
		{"mod extension in data", "data/m.h5u", fsnotify.Create, false},
		{"loose file", "data/types.xml", fsnotify.Write, false},
		{"nested pak", "data/sub/x.pak", fsnotify.Create, false},
		{"mods dir created", "UserMODs", fsnotify.Create, true},
		{"unrelated dir", "bin", fsnotify.Create, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt := fsnotify.Event{Name: filepath.Join(root, filepath.FromSlash(tt.path)), Op: tt.op}
			assert.Equal(t, tt.want, w.relevant(evt))
		})
	}
}

func TestRun_Debounces(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, seed.Skeleton(root))

	var (
		mu    sync.Mutex
		calls [][]string
	)
	done := make(chan struct{}, 1)
	w := newWatcher(t, root, func(_ context.Context, changed []string) error {
		mu.Lock()
		calls = append(calls, changed)
		mu.Unlock()
		select {
		case done <- struct{}{}:
		default:
		}
		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(ctx) }()

	a := filepath.Join(root, "data", "a.pak")
	b := filepath.Join(root, "data", "b.pak")
	for _, p := range []string{a, b} {
		require.NoError(t, seed.WriteArchive(p, []seed.Entry{{Name: "x.txt", Body: "x", Modified: t2020}}))
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, seed.WriteFile(root, "data/loose.xdb", "loose", t2020))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for callback")
	}
	time.Sleep(300 * time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{a, b}, calls[0])

	assert.Error(t, w.Run(t.Context()), "Run is single use")
}

func TestReindex(t *testing.T) {
	root := t.TempDir()
	cache := t.TempDir()
	require.NoError(t, seed.Skeleton(root))
	pak := filepath.Join(root, "data", "a.pak")
	require.NoError(t, seed.WriteArchive(pak, []seed.Entry{{Name: "x.txt", Body: "v1\n", Modified: t2020}}))

	r, err := resolver.New(resolver.Config{
		Root:        root,
		CatalogPath: filepath.Join(cache, "index.db"),
		IndexDir:    filepath.Join(cache, "indexes"),
		Logger:      quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	reindex := Reindex(r, nil)
	require.NoError(t, reindex(t.Context(), []string{pak}))
	assert.Empty(t, r.Unindexed())
	assert.Equal(t, 1, r.Catalog().Len())

	// a replaced package gets a new index and the old one goes away
	require.NoError(t, seed.WriteArchive(pak, []seed.Entry{{Name: "x.txt", Body: "version two\n", Modified: t2020.Add(time.Hour)}}))
	require.NoError(t, reindex(t.Context(), []string{pak}))
	assert.Empty(t, r.Unindexed())
	assert.Equal(t, 1, r.Catalog().Len())

	dirs, err := filepath.Glob(filepath.Join(cache, "indexes", "*", "*"))
	require.NoError(t, err)
	assert.Len(t, dirs, 1)

	res, err := r.Resolve("x.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"version two\n"}, res.Lines)
	assert.Equal(t, "index:"+pak, res.Backend)
}

func TestIsFatal(t *testing.T) {
	assert.True(t, isFatal(os.NewSyscallError("inotify_add_watch", syscall.ENOSPC)))
	assert.False(t, isFatal(os.ErrPermission))
}
