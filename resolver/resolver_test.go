package resolver

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/h5seek/archive"
	"github.com/dendrascience/h5seek/index"
	"github.com/dendrascience/h5seek/internal/seed"
	"github.com/dendrascience/h5seek/seeker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	t2019 = time.Date(2019, 6, 1, 12, 0, 0, 0, time.Local)
	t2020 = time.Date(2020, 6, 1, 12, 0, 0, 0, time.Local)
	t2021 = time.Date(2021, 6, 1, 12, 0, 0, 0, time.Local)
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

type fixture struct {
	root  string
	cache string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, seed.Skeleton(root))
	return fixture{root: root, cache: t.TempDir()}
}

func (f fixture) config() Config {
	return Config{
		Root:        f.root,
		CatalogPath: filepath.Join(f.cache, "index.db"),
		IndexDir:    filepath.Join(f.cache, "indexes"),
		Logger:      quietLogger(),
	}
}

func (f fixture) open(t *testing.T) *Resolver {
	t.Helper()
	return f.openWith(t, f.config())
}

func (f fixture) openWith(t *testing.T, cfg Config) *Resolver {
	t.Helper()
	r, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func (f fixture) loose(t *testing.T, name, body string, mt time.Time) {
	t.Helper()
	require.NoError(t, seed.WriteFile(filepath.Join(f.root, "data"), name, body, mt))
}

func (f fixture) pkg(t *testing.T, rel string, entries ...seed.Entry) string {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, seed.WriteArchive(path, entries))
	return path
}

// indexDirs lists every <bucket>/<key> directory below the index directory.
func (f fixture) indexDirs(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(f.cache, "indexes", "*", "*"))
	require.NoError(t, err)
	return matches
}

func entry(name, body string, mt time.Time) seed.Entry {
	return seed.Entry{Name: name, Body: body, Modified: mt}
}

func TestNew_InvalidRoot(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{name: "empty", setup: func(t *testing.T) string { return "" }},
		{name: "missing", setup: func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }},
		{name: "no bin", setup: func(t *testing.T) string {
			root := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
			return root
		}},
		{name: "data is a file", setup: func(t *testing.T) string {
			root := t.TempDir()
			require.NoError(t, os.MkdirAll(filepath.Join(root, "bin"), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(root, "data"), nil, 0o644))
			return root
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := t.TempDir()
			_, err := New(Config{
				Root:        tt.setup(t),
				CatalogPath: filepath.Join(cache, "index.db"),
				IndexDir:    filepath.Join(cache, "indexes"),
				Logger:      quietLogger(),
			})
			require.ErrorIs(t, err, ErrInvalidRoot)
		})
	}
}

func TestNew_DetectsUnindexed(t *testing.T) {
	f := newFixture(t)
	a := f.pkg(t, "data/a.pak", entry("x.txt", "x", t2020))
	b := f.pkg(t, "data/B.PAK", entry("y.txt", "y", t2020))
	f.pkg(t, "data/notes.zip", entry("z.txt", "z", t2020))
	m := f.pkg(t, "UserMODs/mod.h5u", entry("x.txt", "mod", t2021))

	r := f.open(t)
	assert.Equal(t, []string{m, b, a}, r.Unindexed(), "sorted by path")
	assert.NoFileExists(t, filepath.Join(f.cache, "index.db"), "detection writes nothing")
}

func TestResolve_FolderBeatsOlderArchive(t *testing.T) {
	f := newFixture(t)
	f.loose(t, "types.xml", "<loose/>\n", t2021)
	f.pkg(t, "data/data.pak", entry("types.xml", "<packed/>\n", t2020))
	r := f.open(t)

	res, err := r.Resolve("types.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"<loose/>\n"}, res.Lines)
	assert.Equal(t, "folder:"+filepath.Join(f.root, "data"), res.Backend)
	assert.True(t, res.ModTime.Equal(t2021))
}

func TestResolve_NewerArchiveBeatsFolder(t *testing.T) {
	f := newFixture(t)
	f.loose(t, "types.xml", "<loose/>\n", t2020)
	pak := f.pkg(t, "data/data.pak", entry(`\types.xml`, "<packed/>\n", t2021))
	r := f.open(t)

	res, err := r.Resolve("/types.xml")
	require.NoError(t, err)
	assert.Equal(t, []string{"<packed/>\n"}, res.Lines)
	assert.Equal(t, "archive:"+pak, res.Backend)
	assert.Equal(t, "types.xml", res.Path)
}

func TestResolve_TiesGoToFirstBackend(t *testing.T) {
	f := newFixture(t)
	f.loose(t, "a.txt", "loose\n", t2020)
	f.pkg(t, "data/p1.pak", entry("a.txt", "p1\n", t2020), entry("b.txt", "p1\n", t2020))
	f.pkg(t, "data/p2.pak", entry("a.txt", "p2\n", t2020), entry("b.txt", "p2\n", t2020))
	f.pkg(t, "UserMODs/m.h5u", entry("b.txt", "mod\n", t2020))
	r := f.open(t)

	for range 3 {
		res, err := r.Resolve("a.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"loose\n"}, res.Lines)

		res, err = r.Resolve("b.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1\n"}, res.Lines)
	}
}

func TestResolve_NewestWinsWhateverTheOrder(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(filepath.Join(f.root, "patches"), 0o755))
	f.pkg(t, "data/old.pak", entry("a.txt", "old\n", t2019))
	f.pkg(t, "patches/new.pak", entry("a.txt", "new\n", t2021))
	f.pkg(t, "UserMODs/mid.h5u", entry("a.txt", "mid\n", t2020))

	specs := []ArchiveSpec{{Dir: "data", Ext: ".pak"}, {Dir: "patches", Ext: ".pak"}, {Dir: "UserMODs", Ext: ".h5u"}}
	orders := [][]int{{0, 1, 2}, {2, 1, 0}, {1, 0, 2}, {2, 0, 1}}
	for _, order := range orders {
		layout := Layout{Folders: []string{"data"}}
		for _, i := range order {
			layout.Archives = append(layout.Archives, specs[i])
		}
		cfg := f.config()
		cfg.Layout = layout
		r := f.openWith(t, cfg)

		res, err := r.Resolve("a.txt")
		require.NoError(t, err)
		assert.Equal(t, []string{"new\n"}, res.Lines, "order %v", order)
		require.NoError(t, r.Close())
	}
}

func TestResolve_NotFound(t *testing.T) {
	f := newFixture(t)
	f.loose(t, "Text/a.txt", "a", t2020)
	f.pkg(t, "data/data.pak", entry("Text/b.txt", "b", t2020))
	r := f.open(t)

	for _, p := range []string{"Text/c.txt", "Text", "text/a.txt", "Text/b", ""} {
		_, err := r.Resolve(p)
		require.ErrorIs(t, err, ErrNotFound, p)
		var rerr *ResolveError
		assert.NotErrorAs(t, err, &rerr, "not found is not a backend failure")
	}
}

func TestResolve_MissingModsDirIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.pkg(t, "data/data.pak", entry("a.txt", "a\n", t2020))
	r := f.open(t)

	res, err := r.Resolve("a.txt")
	require.NoError(t, err)
	assert.Equal(t, []string{"a\n"}, res.Lines)
}

func TestArchives_SkipsNonRegularEntries(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f fixture) string
		keep  bool
	}{
		{
			name: "directory named like a package",
			setup: func(t *testing.T, f fixture) string {
				p := filepath.Join(f.root, "data", "dir.pak")
				require.NoError(t, os.MkdirAll(p, 0o755))
				return p
			},
		},
		{
			name: "symlink to a directory",
			setup: func(t *testing.T, f fixture) string {
				p := filepath.Join(f.root, "data", "link.pak")
				require.NoError(t, os.Symlink(t.TempDir(), p))
				return p
			},
		},
		{
			name: "dangling symlink",
			setup: func(t *testing.T, f fixture) string {
				p := filepath.Join(f.root, "data", "gone.pak")
				require.NoError(t, os.Symlink(filepath.Join(t.TempDir(), "missing.pak"), p))
				return p
			},
		},
		{
			name: "symlink to a package",
			setup: func(t *testing.T, f fixture) string {
				target := filepath.Join(t.TempDir(), "real.pak")
				require.NoError(t, seed.WriteArchive(target, []seed.Entry{entry("b.txt", "b\n", t2021)}))
				p := filepath.Join(f.root, "data", "real.pak")
				require.NoError(t, os.Symlink(target, p))
				return p
			},
			keep: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			pak := f.pkg(t, "data/data.pak", entry("a.txt", "a\n", t2020))
			odd := tt.setup(t, f)
			r := f.open(t)

			archives, err := r.Archives()
			require.NoError(t, err)
			assert.Contains(t, archives, pak)
			if tt.keep {
				assert.Contains(t, archives, odd)
			} else {
				assert.NotContains(t, archives, odd)
				assert.NotContains(t, r.Unindexed(), odd)
			}

			res, err := r.Resolve("a.txt")
			require.NoError(t, err)
			assert.Equal(t, []string{"a\n"}, res.Lines)
			assert.Equal(t, "archive:"+pak, res.Backend)
		})
	}
}

func TestResolve_CorruptArchiveDoesNotFallBack(t *testing.T) {
	f := newFixture(t)
	f.loose(t, "a.txt", "loose\n", t2020)
	bad := filepath.Join(f.root, "UserMODs", "broken.h5u")
	require.NoError(t, os.MkdirAll(filepath.Dir(bad), 0o755))
	require.NoError(t, os.WriteFile(bad, []byte("not a zip at all"), 0o644))
	r := f.open(t)

	_, err := r.Resolve("a.txt")
	require.ErrorIs(t, err, archive.ErrCorruptArchive)
	var rerr *ResolveError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "archive:"+bad, rerr.Backend)
	assert.Equal(t, "a.txt", rerr.Path)
}

func TestResolve_CorruptIndexDoesNotFallBack(t *testing.T) {
	f := newFixture(t)
	pak := f.pkg(t, "data/data.pak", entry("a.txt", "a\n", t2020))
	id, err := index.IdentityOf(pak)
	require.NoError(t, err)

	// a catalog entry pointing at a directory that is not an index
	junk := filepath.Join(f.cache, "indexes", "000", id.Key())
	require.NoError(t, os.MkdirAll(junk, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(junk, "MANIFEST"), []byte("garbage"), 0o644))
	cat, err := index.LoadCatalog(filepath.Join(f.cache, "index.db"), quietLogger())
	require.NoError(t, err)
	cat.Register(id.Key(), cat.LocationOf(junk))
	require.NoError(t, cat.Save())

	r := f.open(t)
	assert.Empty(t, r.Unindexed())

	_, err = r.Resolve("a.txt")
	require.ErrorIs(t, err, index.ErrCorruptIndex)
}

func TestResolve_IndexedMatchesScanned(t *testing.T) {
	f := newFixture(t)
	sum, err := seed.Generate(f.root, seed.Options{Archives: 3, Entries: 40, LooseFiles: 10, Mods: 2})
	require.NoError(t, err)
	r := f.open(t)
	require.Len(t, r.Unindexed(), len(sum.Archives))

	var names []string
	for _, pkg := range sum.Archives {
		zrc, err := archive.Open(pkg)
		require.NoError(t, err)
		for _, file := range zrc.File {
			names = append(names, file.Name)
		}
		zrc.Close()
	}

	before := make(map[string]Resource, len(names))
	for _, name := range names {
		res, err := r.Resolve(name)
		require.NoError(t, err)
		before[name] = res
	}

	require.NoError(t, r.BuildIndexes(t.Context(), nil))
	assert.Empty(t, r.Unindexed())

	for _, name := range names {
		res, err := r.Resolve(name)
		require.NoError(t, err)
		want := before[name]
		assert.Equal(t, want.Lines, res.Lines, name)
		assert.True(t, want.ModTime.Equal(res.ModTime), name)
		assert.Equal(t, strings.TrimPrefix(want.Backend, "archive:"), strings.TrimPrefix(res.Backend, "index:"), name)
	}
}

func TestStat(t *testing.T) {
	f := newFixture(t)
	pak := f.pkg(t, "data/data.pak", entry("a.txt", "a\n", t2021))
	f.loose(t, "a.txt", "loose\n", t2020)
	r := f.open(t)

	src, err := r.Stat(`\a.txt`)
	require.NoError(t, err)
	assert.Equal(t, Source{Path: "a.txt", Backend: "archive:" + pak, ModTime: src.ModTime}, src)
	assert.True(t, src.ModTime.Equal(t2021))

	_, err = r.Stat("b.txt")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_UnionsBackends(t *testing.T) {
	f := newFixture(t)
	f.loose(t, "Text/loose.txt", "l", t2020)
	f.loose(t, "Maps", "a file named like a packed directory", t2020)
	f.pkg(t, "data/data.pak", entry("Text/packed.txt", "p", t2020), entry("Maps/m.xdb", "m", t2020), entry("types.xml", "t", t2020))
	f.pkg(t, "UserMODs/mod.h5u", entry("Text/Mod/x.txt", "x", t2021))
	r := f.open(t)

	check := func() {
		got, err := r.List("")
		require.NoError(t, err)
		assert.Equal(t, []seeker.DirEntry{
			{Name: "Maps", Dir: true},
			{Name: "Text", Dir: true},
			{Name: "data.pak"},
			{Name: "types.xml"},
		}, got)

		got, err = r.List("Text/")
		require.NoError(t, err)
		assert.Equal(t, []seeker.DirEntry{
			{Name: "Mod", Dir: true},
			{Name: "loose.txt"},
			{Name: "packed.txt"},
		}, got)

		got, err = r.List("Nope")
		require.NoError(t, err)
		assert.Empty(t, got)
	}

	check()
	require.NoError(t, r.BuildIndexes(t.Context(), nil))
	check()
}

func TestResolve_ConcurrentWithBuild(t *testing.T) {
	f := newFixture(t)
	_, err := seed.Generate(f.root, seed.Options{Archives: 2, Entries: 50, Mods: 1})
	require.NoError(t, err)
	r := f.open(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				res, err := r.Resolve("types.xml")
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, []string{"<Types>\n", "</Types>\n"}, res.Lines)
			}
		}()
	}

	buildErr := r.BuildIndexes(t.Context(), nil)
	close(stop)
	wg.Wait()
	require.NoError(t, buildErr)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	f.loose(t, "a.txt", "a\n", t2020)
	f.pkg(t, "data/data.pak", entry("b.txt", "b\n", t2020))

	reg := prometheus.NewRegistry()
	cfg := f.config()
	cfg.Registerer = reg
	r := f.openWith(t, cfg)

	_, err := r.Resolve("a.txt")
	require.NoError(t, err)
	_, err = r.Resolve("missing.txt")
	require.ErrorIs(t, err, ErrNotFound)

	assert.InDelta(t, 1, testutil.ToFloat64(r.metrics.resolves.WithLabelValues("found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.metrics.resolves.WithLabelValues("not_found")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.metrics.lookups.WithLabelValues("folder")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(r.metrics.lookups.WithLabelValues("archive")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(r.metrics.unindexed), 0)

	require.NoError(t, r.BuildIndexes(t.Context(), nil))
	assert.InDelta(t, 1, testutil.ToFloat64(r.metrics.indexBuilds.WithLabelValues("ok")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(r.metrics.unindexed), 0)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

// An archive directory nested inside the loose folder is supplied through
// the layout; its packages still override older loose files.
func TestResolve_CustomLayout(t *testing.T) {
	f := newFixture(t)
	f.loose(t, "Scripts/a.xdb", "loose\n", t2020)
	mod := f.pkg(t, "data/Mods/mod.pak", entry("Scripts/a.xdb", "packed\n", t2021))
	f.pkg(t, "data/ignored.pak", entry("Scripts/a.xdb", "not in layout\n", t2021.Add(time.Hour)))

	cfg := f.config()
	cfg.Layout = Layout{
		Folders:  []string{"data"},
		Archives: []ArchiveSpec{{Dir: "data/Mods", Ext: "pak"}},
	}
	r := f.openWith(t, cfg)

	res, err := r.Resolve("Scripts/a.xdb")
	require.NoError(t, err)
	assert.Equal(t, []string{"packed\n"}, res.Lines)
	assert.Equal(t, "archive:"+mod, res.Backend)
	assert.Equal(t, []string{mod}, r.Unindexed())
}
