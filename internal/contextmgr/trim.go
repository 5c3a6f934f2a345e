package contextmgr

import "github.com/isocode-ai/isocode/pkg/types"

// minPartialChars is the least remaining budget, in characters, worth filling
// with a truncated prefix of the oldest partially-fitting message.
const minPartialChars = 200

// TrimToBudget returns a view of the conversation whose estimated token count
// fits the budget. The system message is always kept (smart-truncated itself
// if it alone exceeds the budget); remaining messages are taken newest-first.
func TrimToBudget(messages []types.Message, budget int) []types.Message {
	if len(messages) == 0 {
		return nil
	}

	system := messages[0]
	rest := messages[1:]

	systemTokens := EstimateMessageTokens(system)
	if systemTokens >= budget {
		// Degenerate case: shrink the system prompt and pair it with only the
		// most recent message.
		maxChars := int(float64(budget-MessageOverheadTokens*2) * CharsPerToken / 2)
		if maxChars < minPartialChars {
			maxChars = minPartialChars
		}
		out := []types.Message{{Role: system.Role, Content: SmartTruncate(system.Content, maxChars)}}
		if len(rest) > 0 {
			last := rest[len(rest)-1]
			out = append(out, types.Message{Role: last.Role, Content: SmartTruncate(last.Content, maxChars)})
		}
		return out
	}

	remaining := budget - systemTokens

	// Walk newest to oldest, collecting whole messages that fit.
	var kept []types.Message
	i := len(rest) - 1
	for ; i >= 0; i-- {
		cost := EstimateMessageTokens(rest[i])
		if cost > remaining {
			break
		}
		kept = append(kept, rest[i])
		remaining -= cost
	}

	// The oldest message that only partially fits is included truncated when
	// enough budget is left to be useful.
	if i >= 0 {
		budgetChars := int(float64(remaining-MessageOverheadTokens) * CharsPerToken)
		content := SmartTruncate(rest[i].Content, budgetChars)
		// The omission marker and the estimator's rounding can push the
		// truncated text past what is left; shrink until it fits.
		for budgetChars >= minPartialChars && EstimateTokens(content)+MessageOverheadTokens > remaining {
			budgetChars -= 8
			content = SmartTruncate(rest[i].Content, budgetChars)
		}
		if budgetChars >= minPartialChars {
			kept = append(kept, types.Message{
				Role:    rest[i].Role,
				Content: content,
			})
		}
	}

	// kept is newest-first; reverse into chronological order after the system
	// message.
	out := make([]types.Message, 0, len(kept)+1)
	out = append(out, system)
	for j := len(kept) - 1; j >= 0; j-- {
		out = append(out, kept[j])
	}
	return out
}
