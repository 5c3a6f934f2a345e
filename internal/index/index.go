// Package index builds an on-demand index of workspace files with a short
// TTL, used for project maps, relevance gathering, and codebase search.
package index

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/isocode-ai/isocode/internal/logging"
)

// TTL is how long a built index stays fresh.
const TTL = 60 * time.Second

// maxKeyFileExcerpt caps the stored prefix of key files.
const maxKeyFileExcerpt = 2000

// ignoredDirs are never descended into.
var ignoredDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"out":          true,
	"build":        true,
	"bin":          true,
	"obj":          true,
	"vendor":       true,
	"target":       true,
	"__pycache__":  true,
}

// binaryExts are excluded from the file list.
var binaryExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".pdf": true, ".zip": true, ".tar": true, ".gz": true, ".bz2": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".class": true, ".jar": true, ".woff": true, ".woff2": true,
	".ttf": true, ".eot": true, ".mp3": true, ".mp4": true, ".mov": true,
	".db": true, ".sqlite": true, ".wasm": true,
}

// keyFileNames get their head captured into the index.
var keyFileNames = map[string]bool{
	"README.md": true, "readme.md": true, "go.mod": true, "package.json": true,
	"pyproject.toml": true, "Cargo.toml": true, "Makefile": true,
	"tsconfig.json": true, "requirements.txt": true,
}

// FileEntry is one indexed file.
type FileEntry struct {
	RelativePath string `json:"relativePath"`
	Extension    string `json:"extension"`
	Size         int64  `json:"size"`
	Dir          string `json:"dir"`
}

// Snapshot is one built index.
type Snapshot struct {
	Files    []FileEntry       `json:"files"`
	Dirs     []string          `json:"dirs"`
	KeyFiles map[string]string `json:"keyFiles"`
	Total    int               `json:"total"`
	BuiltAt  time.Time         `json:"builtAt"`
}

// Index caches one snapshot per workspace root with a TTL.
type Index struct {
	root string

	mu       sync.Mutex
	snapshot *Snapshot
}

// New creates an index for the workspace root.
func New(root string) *Index {
	return &Index{root: root}
}

// Snapshot returns a fresh-enough snapshot, rebuilding when stale.
func (ix *Index) Snapshot() (*Snapshot, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.snapshot != nil && time.Since(ix.snapshot.BuiltAt) < TTL {
		return ix.snapshot, nil
	}

	snap, err := build(ix.root)
	if err != nil {
		return nil, err
	}
	ix.snapshot = snap
	return snap, nil
}

// Invalidate drops the cached snapshot so the next access rebuilds.
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	ix.snapshot = nil
	ix.mu.Unlock()
}

func build(root string) (*Snapshot, error) {
	start := time.Now()
	snap := &Snapshot{KeyFiles: make(map[string]string), BuiltAt: start}
	dirSet := map[string]bool{}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if ignoredDirs[name] || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			rel, _ := filepath.Rel(root, path)
			dirSet[filepath.ToSlash(rel)] = true
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if binaryExts[ext] {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return nil
		}

		snap.Files = append(snap.Files, FileEntry{
			RelativePath: rel,
			Extension:    ext,
			Size:         info.Size(),
			Dir:          filepath.ToSlash(filepath.Dir(rel)),
		})

		if keyFileNames[name] {
			if data, err := os.ReadFile(path); err == nil {
				excerpt := string(data)
				if len(excerpt) > maxKeyFileExcerpt {
					excerpt = excerpt[:maxKeyFileExcerpt]
				}
				snap.KeyFiles[rel] = excerpt
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for dir := range dirSet {
		snap.Dirs = append(snap.Dirs, dir)
	}
	sort.Strings(snap.Dirs)
	snap.Total = len(snap.Files)

	logging.Debug().
		Int("files", snap.Total).
		Dur("took", time.Since(start)).
		Msg("file index built")
	return snap, nil
}
