package contextmgr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isocode-ai/isocode/pkg/types"
)

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 1, EstimateTokens(""))
	// 35 chars at 3.5 chars per token plus one.
	assert.Equal(t, 11, EstimateTokens(strings.Repeat("x", 35)))
}

func TestBudget(t *testing.T) {
	assert.Equal(t, DefaultWindow-ReplyReserve, Budget(0))
	assert.Equal(t, 8192-ReplyReserve, Budget(8192))
	assert.Equal(t, 1, Budget(100))
}

func TestTrimToBudgetFitsEverything(t *testing.T) {
	msgs := []types.Message{
		types.SystemMessage("system prompt"),
		types.UserMessage("hello"),
		types.AssistantMessage("hi"),
	}
	out := TrimToBudget(msgs, 10000)
	assert.Equal(t, msgs, out)
}

func TestTrimToBudgetInvariant(t *testing.T) {
	var msgs []types.Message
	msgs = append(msgs, types.SystemMessage("the system prompt"))
	for i := 0; i < 50; i++ {
		msgs = append(msgs, types.UserMessage(strings.Repeat("m", 400)))
	}

	for _, budget := range []int{300, 500, 1000, 2000} {
		out := TrimToBudget(msgs, budget)
		require.NotEmpty(t, out)
		assert.Equal(t, types.RoleSystem, out[0].Role)
		assert.LessOrEqual(t, EstimateConversationTokens(out), budget,
			"budget %d", budget)
	}
}

func TestTrimToBudgetKeepsNewest(t *testing.T) {
	msgs := []types.Message{
		types.SystemMessage("sys"),
		types.UserMessage("oldest " + strings.Repeat("x", 1000)),
		types.UserMessage("newest"),
	}
	out := TrimToBudget(msgs, 60)

	assert.Equal(t, "sys", out[0].Content)
	assert.Equal(t, "newest", out[len(out)-1].Content)
}

func TestTrimToBudgetOversizedSystem(t *testing.T) {
	msgs := []types.Message{
		types.SystemMessage(strings.Repeat("s", 20000)),
		types.UserMessage("first"),
		types.UserMessage("last"),
	}
	out := TrimToBudget(msgs, 500)

	require.Len(t, out, 2)
	assert.Equal(t, types.RoleSystem, out[0].Role)
	assert.Contains(t, out[0].Content, "characters omitted")
	assert.Contains(t, out[1].Content, "last")
}

func TestTrimToBudgetEmpty(t *testing.T) {
	assert.Nil(t, TrimToBudget(nil, 100))
}
