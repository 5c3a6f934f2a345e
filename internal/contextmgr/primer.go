package contextmgr

import (
	"fmt"
	"strings"

	"github.com/isocode-ai/isocode/internal/storage"
)

// primerMemories is how many recent session summaries feed the primer.
const primerMemories = 3

// MemoryPrimer concatenates the most recent session summaries into a short
// block appended to the system prompt of new sessions. Empty when no
// summaries exist.
func MemoryPrimer(store *storage.Store) string {
	memories, err := store.RecentMemories(primerMemories)
	if err != nil || len(memories) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Recent session summaries:\n")
	for _, mem := range memories {
		fmt.Fprintf(&sb, "- %s\n", SmartTruncate(mem.Summary, 400))
	}
	return sb.String()
}
