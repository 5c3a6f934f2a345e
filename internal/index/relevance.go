package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxRelevanceChars caps the auto-gathered context appended to an initial
// user message when no explicit file context was attached.
const maxRelevanceChars = 3000

// ProjectMap renders a compact summary of the workspace for the system
// prompt: directory list plus key-file excerpts.
func (ix *Index) ProjectMap() string {
	snap, err := ix.Snapshot()
	if err != nil {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Project: %d files.\n", snap.Total)
	if len(snap.Dirs) > 0 {
		dirs := snap.Dirs
		if len(dirs) > 40 {
			dirs = dirs[:40]
		}
		sb.WriteString("Directories: ")
		sb.WriteString(strings.Join(dirs, ", "))
		sb.WriteString("\n")
	}
	paths := make([]string, 0, len(snap.KeyFiles))
	for path := range snap.KeyFiles {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		fmt.Fprintf(&sb, "--- %s ---\n%s\n", path, firstLines(snap.KeyFiles[path], 12))
	}
	return sb.String()
}

// GatherRelevance finds files whose paths or contents match terms from the
// query and returns a bounded context block, empty when nothing matches.
func (ix *Index) GatherRelevance(query string) string {
	snap, err := ix.Snapshot()
	if err != nil {
		return ""
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return ""
	}

	type scored struct {
		entry FileEntry
		score int
	}
	var hits []scored
	for _, f := range snap.Files {
		lower := strings.ToLower(f.RelativePath)
		score := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{f, score})
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	var sb strings.Builder
	sb.WriteString("\n\nPossibly relevant files:\n")
	budget := maxRelevanceChars
	for _, h := range hits {
		if budget <= 0 || h.entry.Size > 64*1024 {
			break
		}
		line := fmt.Sprintf("- %s (%d bytes)\n", h.entry.RelativePath, h.entry.Size)
		if len(line) > budget {
			break
		}
		sb.WriteString(line)
		budget -= len(line)

		// Include a short head of the best few matches.
		if h.score > 1 && budget > 400 {
			data, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(h.entry.RelativePath)))
			if err == nil {
				head := firstLines(string(data), 10)
				if len(head) > budget-100 {
					head = head[:budget-100]
				}
				fmt.Fprintf(&sb, "%s\n", head)
				budget -= len(head) + 1
			}
		}
	}
	if budget == maxRelevanceChars {
		return ""
	}
	return sb.String()
}

// Search scans indexed files for a case-insensitive substring, returning
// path:line matches.
func (ix *Index) Search(query string, maxResults int) ([]string, error) {
	snap, err := ix.Snapshot()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)

	var results []string
	for _, f := range snap.Files {
		if len(results) >= maxResults {
			break
		}
		if f.Size > 512*1024 {
			continue
		}
		data, err := os.ReadFile(filepath.Join(ix.root, filepath.FromSlash(f.RelativePath)))
		if err != nil {
			continue
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(strings.ToLower(line), needle) {
				results = append(results, fmt.Sprintf("%s:%d: %s", f.RelativePath, i+1, strings.TrimSpace(line)))
				if len(results) >= maxResults {
					break
				}
			}
		}
	}
	return results, nil
}

func queryTerms(query string) []string {
	var terms []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `"'.,;:!?()`+"`")
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}

func firstLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
