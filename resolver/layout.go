package resolver

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ArchiveSpec selects the packages in Dir (relative to the game root) whose
// extension matches Ext, case-insensitively.
type ArchiveSpec struct {
	Dir string
	Ext string
}

// Matches reports whether the file name carries the extension.
func (s ArchiveSpec) Matches(name string) bool {
	ext := s.Ext
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return len(name) > len(ext) && strings.EqualFold(name[len(name)-len(ext):], ext)
}

// Layout declares where resources live below a game root. Folders are
// consulted before archives; within each list, declaration order is
// consultation order.
type Layout struct {
	Folders  []string
	Archives []ArchiveSpec
}

// DefaultLayout is the layout of a stock installation: loose files in data,
// patches in data/*.pak and user mods in UserMODs/*.h5u.
func DefaultLayout() Layout {
	return Layout{
		Folders: []string{"data"},
		Archives: []ArchiveSpec{
			{Dir: "data", Ext: ".pak"},
			{Dir: "UserMODs", Ext: ".h5u"},
		},
	}
}

// Validate rejects layouts that would leave the game root.
func (l Layout) Validate() error {
	for _, f := range l.Folders {
		if !isLocalDir(f) {
			return fmt.Errorf("folder %q is not below the game root", f)
		}
	}
	for _, a := range l.Archives {
		if !isLocalDir(a.Dir) {
			return fmt.Errorf("archive directory %q is not below the game root", a.Dir)
		}
		if strings.Trim(a.Ext, ".") == "" {
			return fmt.Errorf("archive directory %q has no extension", a.Dir)
		}
	}
	return nil
}

func isLocalDir(rel string) bool {
	return rel == "." || rel == "" || filepath.IsLocal(filepath.FromSlash(rel))
}
