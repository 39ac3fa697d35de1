// Package fs walks project trees, reads source files and watches them for
// changes.
package fs

import (
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"ctxopt/internal/port"
)

// DefaultExcludes skips version control, dependency and build directories.
var DefaultExcludes = []string{
	".git/**", "**/.git/**",
	"node_modules/**", "**/node_modules/**",
	"vendor/**", "**/vendor/**",
	".ctxopt/**", "**/.ctxopt/**",
	"dist/**", "build/**", "target/**",
	"**/__pycache__/**", "**/.venv/**",
}

var _ port.FileWalker = (*Walker)(nil)

// Walker lists files under a root that match the include globs and none of
// the exclude globs. Globs are matched against slash-separated paths
// relative to the root.
type Walker struct {
	includes []string
	excludes []string
}

func NewWalker(includes, excludes []string) *Walker {
	if len(includes) == 0 {
		includes = []string{"**/*"}
	}
	if excludes == nil {
		excludes = DefaultExcludes
	}
	return &Walker{
		includes: includes,
		excludes: excludes,
	}
}

// Walk returns absolute paths. A root that is a file yields just that file
// when it matches.
func (w *Walker) Walk(root string) ([]port.FileInfo, error) {
	var files []port.FileInfo

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []port.FileInfo{{Path: root, ModTime: info.ModTime().Unix(), Size: info.Size()}}, nil
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if relPath != "." && w.Excluded(relPath+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if !w.Included(relPath) || w.Excluded(relPath) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, port.FileInfo{
			Path:    path,
			ModTime: info.ModTime().Unix(),
			Size:    info.Size(),
		})
		return nil
	})

	return files, err
}

func (w *Walker) Included(relPath string) bool {
	for _, pattern := range w.includes {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

func (w *Walker) Excluded(relPath string) bool {
	for _, pattern := range w.excludes {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}
