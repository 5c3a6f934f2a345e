// Package diff creates and applies unified diffs for proposed file edits.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// CreateUnified builds a unified diff that transforms before into after.
// When path is non-empty the diff is prefixed with ---/+++ file headers.
func CreateUnified(path, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	patches := dmp.PatchMake(before, diffs)
	text := dmp.PatchToText(patches)
	if text == "" {
		return ""
	}

	var sb strings.Builder
	if path != "" {
		fmt.Fprintf(&sb, "--- %s\n", path)
		fmt.Fprintf(&sb, "+++ %s\n", path)
	}
	sb.WriteString(text)
	return sb.String()
}

// Apply applies a diff produced by CreateUnified to original. It errors when
// any hunk fails to apply.
func Apply(original, diffText string) (string, error) {
	patched, ok := TryApplyPatch(original, diffText)
	if !ok {
		return "", fmt.Errorf("diff does not apply cleanly")
	}
	return patched, nil
}

// TryApplyPatch attempts to apply diffText to original. On any failure it
// reports ok=false and returns the original untouched.
func TryApplyPatch(original, diffText string) (string, bool) {
	body := stripHeaders(diffText)
	if strings.TrimSpace(body) == "" {
		return original, false
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(body)
	if err != nil || len(patches) == 0 {
		return original, false
	}

	patched, applied := dmp.PatchApply(patches, original)
	for _, ok := range applied {
		if !ok {
			return original, false
		}
	}
	return patched, true
}

// Stats counts added and deleted lines between two versions.
func Stats(before, after string) (additions, deletions int) {
	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}
	return additions, deletions
}

// stripHeaders drops ---/+++ file header lines so the patch body parses.
func stripHeaders(diffText string) string {
	var kept []string
	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
