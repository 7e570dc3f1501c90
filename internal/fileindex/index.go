// Package fileindex keeps the workspace path list offered by the mention menu.
package fileindex

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/user/planbridge/internal/types"
)

var errLimit = errors.New("index limit reached")

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
}

// Index is a snapshot of workspace paths. Paths are "/"-prefixed relative
// to the root; directories carry a trailing "/".
type Index struct {
	root       string
	maxEntries int

	mu    sync.RWMutex
	paths []string
}

var _ types.FileIndex = (*Index)(nil)

// New creates an empty index over root. maxEntries <= 0 means no limit.
func New(root string, maxEntries int) *Index {
	return &Index{root: root, maxEntries: maxEntries}
}

// Root returns the indexed directory.
func (ix *Index) Root() string { return ix.root }

// Paths returns a copy of the current snapshot.
func (ix *Index) Paths() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.paths...)
}

// Scan walks the root and replaces the snapshot. Hidden entries and
// skipDirs are left out.
func (ix *Index) Scan() error {
	var paths []string
	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == ix.root {
				return err
			}
			return nil
		}
		if path == ix.root {
			return nil
		}
		name := d.Name()
		if strings.HasPrefix(name, ".") || (d.IsDir() && skipDirs[name]) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ix.maxEntries > 0 && len(paths) >= ix.maxEntries {
			return errLimit
		}
		paths = append(paths, ix.entry(path, d.IsDir()))
		return nil
	})
	if err != nil && !errors.Is(err, errLimit) {
		return fmt.Errorf("scan workspace: %w", err)
	}
	if errors.Is(err, errLimit) {
		slog.Warn("file index truncated", "root", ix.root, "max_entries", ix.maxEntries)
	}

	ix.mu.Lock()
	ix.paths = paths
	ix.mu.Unlock()
	slog.Debug("file index scanned", "root", ix.root, "entries", len(paths))
	return nil
}

func (ix *Index) entry(path string, dir bool) string {
	rel, err := filepath.Rel(ix.root, path)
	if err != nil {
		rel = path
	}
	p := "/" + filepath.ToSlash(rel)
	if dir {
		p += "/"
	}
	return p
}
