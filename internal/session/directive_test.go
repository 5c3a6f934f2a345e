package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocode-ai/isocode/pkg/types"
)

func TestParseDirectiveStrict(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		typ  string
	}{
		{"thought", `{"type":"thought","content":"PLAN:\n1. read"}`, types.DirectiveThought},
		{"action", `{"type":"action","tool":"read_file","args":{"path":"a.go"}}`, types.DirectiveAction},
		{"diff", `{"type":"diff_request","filePath":"a.go","diff":"@@ -1 +1 @@"}`, types.DirectiveDiffRequest},
		{"delegate", `{"type":"delegate","tasks":[{"task":"do x"}]}`, types.DirectiveDelegate},
		{"final", `{"type":"final","content":"done"}`, types.DirectiveFinal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDirective(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.typ, d.Type)
		})
	}
}

func TestParseDirectiveFencedBlock(t *testing.T) {
	raw := "Here is my next step:\n```json\n{\"type\":\"action\",\"tool\":\"glob\",\"args\":{\"pattern\":\"**/*.go\"}}\n```\n"
	d, err := ParseDirective(raw)
	require.NoError(t, err)
	assert.Equal(t, "glob", d.Tool)
}

func TestParseDirectiveChannelMarkers(t *testing.T) {
	raw := `<|assistant|>{"type":"final","content":"all done"}`
	d, err := ParseDirective(raw)
	require.NoError(t, err)
	assert.Equal(t, types.DirectiveFinal, d.Type)
	assert.Equal(t, "all done", d.Content)
}

func TestParseDirectiveEmbeddedJSON(t *testing.T) {
	raw := `I think the next move is {"type":"thought","content":"checking the tests"} as planned.`
	d, err := ParseDirective(raw)
	require.NoError(t, err)
	assert.Equal(t, "checking the tests", d.Content)
}

func TestLargestJSONObject(t *testing.T) {
	s := `{"small":1} text {"type":"action","tool":"grep","args":{"pattern":"x"}}`
	got := largestJSONObject(s)
	assert.Contains(t, got, `"tool":"grep"`)

	assert.Empty(t, largestJSONObject("no json here"))
	assert.Empty(t, largestJSONObject(`{"unbalanced":`))
}

func TestLargestJSONObjectRespectsStrings(t *testing.T) {
	s := `{"content":"a brace } inside a string"}`
	assert.Equal(t, s, largestJSONObject(s))
}

func TestRegexSalvage(t *testing.T) {
	d, err := ParseDirective(`action="read_file" args={"path":"src/a.ts"}`)
	require.NoError(t, err)
	assert.Equal(t, types.DirectiveAction, d.Type)
	assert.Equal(t, "read_file", d.Tool)
	assert.Equal(t, "src/a.ts", d.Args["path"])
}

func TestHeuristicSalvage(t *testing.T) {
	d, err := ParseDirective("I will read the file src/main.go to understand the entry point")
	require.NoError(t, err)
	assert.Equal(t, "read_file", d.Tool)
	assert.Equal(t, "src/main.go", d.Args["path"])

	d, err = ParseDirective("Next, run `go test ./...` to verify")
	require.NoError(t, err)
	assert.Equal(t, "run_command", d.Tool)
	assert.Equal(t, "go test ./...", d.Args["command"])

	d, err = ParseDirective("Let me think about the architecture first")
	require.NoError(t, err)
	assert.Equal(t, types.DirectiveThought, d.Type)

	d, err = ParseDirective("list the files in internal/server please")
	require.NoError(t, err)
	assert.Equal(t, "list_files", d.Tool)
}

func TestParseDirectiveFailure(t *testing.T) {
	_, err := ParseDirective("The weather is nice today.")
	require.Error(t, err)

	var pf *ParseFailure
	assert.ErrorAs(t, err, &pf)
}

func TestParseDirectiveRejectsInvalidVariants(t *testing.T) {
	for _, raw := range []string{
		`{"type":"action"}`,
		`{"type":"diff_request","filePath":"a.go"}`,
		`{"type":"delegate","tasks":[]}`,
		`{"type":"mystery","content":"x"}`,
	} {
		_, err := ParseDirective(raw)
		assert.Error(t, err, "raw: %s", raw)
	}
}
