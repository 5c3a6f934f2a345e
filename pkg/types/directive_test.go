package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectiveJSONRoundTrip(t *testing.T) {
	d := Directive{
		Type: DirectiveAction,
		Tool: "read_file",
		Args: map[string]any{"path": "a.go"},
	}

	var back Directive
	require.NoError(t, json.Unmarshal([]byte(d.JSON()), &back))
	assert.Equal(t, d.Type, back.Type)
	assert.Equal(t, d.Tool, back.Tool)
	assert.Equal(t, "a.go", back.Args["path"])
}

func TestDirectiveJSONOmitsEmptyFields(t *testing.T) {
	d := Directive{Type: DirectiveFinal, Content: "done"}
	out := d.JSON()
	assert.NotContains(t, out, "tool")
	assert.NotContains(t, out, "filePath")
	assert.NotContains(t, out, "tasks")
}

func TestEventConstructors(t *testing.T) {
	ev := DiffRequestEvent("s1", "a.go", "@@")
	assert.Equal(t, EventDiffRequest, ev.Type)
	assert.Equal(t, "s1", ev.SessionID)

	assert.Equal(t, EventDone, DoneEvent().Type)
	assert.Equal(t, "delta", ChunkEvent("delta").Content)
}
