package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateUnifiedRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		before string
		after  string
	}{
		{"line change", "a\nb\nc\n", "a\nB\nc\n"},
		{"append", "a\nb\n", "a\nb\nc\nd\n"},
		{"delete", "a\nb\nc\n", "a\nc\n"},
		{"create from empty", "", "package main\n\nfunc main() {}\n"},
		{"truncate to empty", "stale content\n", ""},
		{"no trailing newline", "x\ny", "x\nz"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := CreateUnified("file.txt", tc.before, tc.after)
			require.NotEmpty(t, d)

			got, err := Apply(tc.before, d)
			require.NoError(t, err)
			assert.Equal(t, tc.after, got)
		})
	}
}

func TestCreateUnifiedIdentical(t *testing.T) {
	assert.Empty(t, CreateUnified("file.txt", "same\n", "same\n"))
}

func TestCreateUnifiedHeaders(t *testing.T) {
	d := CreateUnified("src/a.ts", "foo\n", "bar\n")
	assert.Contains(t, d, "--- src/a.ts\n")
	assert.Contains(t, d, "+++ src/a.ts\n")
}

func TestTryApplyPatchFailureLeavesOriginal(t *testing.T) {
	original := "completely unrelated content\n"
	d := CreateUnified("f", "the patch expects this exact text here\nand this line too\n", "something else entirely\nreplacing both lines\n")

	got, ok := TryApplyPatch(original, d)
	assert.False(t, ok)
	assert.Equal(t, original, got)
}

func TestTryApplyPatchGarbage(t *testing.T) {
	original := "keep me\n"
	got, ok := TryApplyPatch(original, "not a diff at all")
	assert.False(t, ok)
	assert.Equal(t, original, got)

	got, ok = TryApplyPatch(original, "")
	assert.False(t, ok)
	assert.Equal(t, original, got)
}

func TestStats(t *testing.T) {
	adds, dels := Stats("a\nb\nc\n", "a\nB\nc\nd\n")
	assert.Equal(t, 2, adds)
	assert.Equal(t, 1, dels)

	adds, dels = Stats("same\n", "same\n")
	assert.Zero(t, adds)
	assert.Zero(t, dels)
}
