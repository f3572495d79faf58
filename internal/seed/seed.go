// Package seed generates synthetic game installations: a root with bin/ and
// data/ directories, loose resource files and zip packages with controlled
// entry timestamps. It backs the seed command and the test fixtures of the
// other packages.
package seed

import (
	"archive/zip"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Entry is one file stored in a generated package.
type Entry struct {
	Name     string
	Body     string
	Modified time.Time
	Store    bool // store uncompressed instead of deflating
}

// WriteArchive writes a zip package at path holding entries in order.
// Names are written verbatim, so callers can produce backslash separators or
// duplicate names on purpose.
func WriteArchive(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := zip.NewWriter(f)
	for _, e := range entries {
		method := zip.Deflate
		if e.Store {
			method = zip.Store
		}
		writer, err := w.CreateHeader(&zip.FileHeader{
			Name:     e.Name,
			Method:   method,
			Modified: e.Modified,
		})
		if err != nil {
			return fmt.Errorf("create entry %s: %w", e.Name, err)
		}
		if _, err := writer.Write([]byte(e.Body)); err != nil {
			return fmt.Errorf("write entry %s: %w", e.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return err
	}
	return f.Close()
}

// WriteFile writes a loose file below root and stamps it with modified.
func WriteFile(root, name, body string, modified time.Time) error {
	path := filepath.Join(root, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return err
	}
	return os.Chtimes(path, modified, modified)
}

// Skeleton creates the bin and data directories that make root a valid game
// installation.
func Skeleton(root string) error {
	for _, dir := range []string{"bin", "data"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Options controls Generate.
type Options struct {
	Archives   int       // number of data/*.pak packages
	Entries    int       // entries per package
	LooseFiles int       // loose files under data/
	Mods       int       // number of UserMODs/*.h5u packages overriding pak entries
	BaseTime   time.Time // earliest timestamp handed out
	Progress   func(archive string, entries int)
}

// Summary describes what Generate produced.
type Summary struct {
	Archives   []string
	Entries    int
	LooseFiles int
}

// Generate builds a synthetic installation under root. Entry names are spread
// over a handful of resource folders, payloads are UUID lines, and timestamps
// fall within a year after BaseTime. Mods copy a slice of the first package's
// names with later timestamps so they win arbitration.
func Generate(root string, opts Options) (Summary, error) {
	var sum Summary
	if opts.BaseTime.IsZero() {
		opts.BaseTime = time.Date(2006, 5, 16, 0, 0, 0, 0, time.Local)
	}
	if err := Skeleton(root); err != nil {
		return sum, err
	}

	folders := []string{"GameMechanics/RPGStats", "MapObjects", "Scripts", "Text/Game", "UI"}
	var firstNames []string

	for i := range opts.LooseFiles {
		name := fmt.Sprintf("%s/loose-%05d.xdb", folders[i%len(folders)], i)
		if err := WriteFile(filepath.Join(root, "data"), name, payload(), randomTime(opts.BaseTime)); err != nil {
			return sum, err
		}
		sum.LooseFiles++
	}

	for a := range opts.Archives {
		path := filepath.Join(root, "data", fmt.Sprintf("data%03d.pak", a))
		entries := make([]Entry, 0, opts.Entries)
		for i := range opts.Entries {
			n, err := rand.Int(rand.Reader, big.NewInt(0xFFFFFFFF))
			if err != nil {
				return sum, err
			}
			entries = append(entries, Entry{
				Name:     fmt.Sprintf("%s/%08x.xdb", folders[i%len(folders)], n.Int64()),
				Body:     payload(),
				Modified: randomTime(opts.BaseTime),
			})
		}
		if a == 0 {
			for _, e := range entries {
				firstNames = append(firstNames, e.Name)
			}
			entries = append(entries, Entry{Name: "types.xml", Body: "<Types>\n</Types>\n", Modified: opts.BaseTime})
		}
		if err := WriteArchive(path, entries); err != nil {
			return sum, err
		}
		sum.Archives = append(sum.Archives, path)
		sum.Entries += len(entries)
		if opts.Progress != nil {
			opts.Progress(path, len(entries))
		}
	}

	later := opts.BaseTime.AddDate(2, 0, 0)
	for m := range opts.Mods {
		path := filepath.Join(root, "UserMODs", fmt.Sprintf("mod%02d.h5u", m))
		var entries []Entry
		for i := m; i < len(firstNames); i += opts.Mods + 1 {
			entries = append(entries, Entry{Name: firstNames[i], Body: payload(), Modified: later})
		}
		if err := WriteArchive(path, entries); err != nil {
			return sum, err
		}
		sum.Archives = append(sum.Archives, path)
		sum.Entries += len(entries)
		if opts.Progress != nil {
			opts.Progress(path, len(entries))
		}
	}
	return sum, nil
}

func payload() string {
	return uuid.New().String() + "\r\n"
}

func randomTime(base time.Time) time.Time {
	days, _ := rand.Int(rand.Reader, big.NewInt(365))
	secs, _ := rand.Int(rand.Reader, big.NewInt(86400))
	return base.AddDate(0, 0, int(days.Int64())).Add(time.Duration(secs.Int64()) * time.Second)
}
