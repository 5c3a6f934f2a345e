package contextmgr

import (
	"encoding/json"
	"fmt"
)

const (
	// Per-field caps applied to well-known tool result fields.
	maxContentField = 4000
	maxStdoutField  = 2000
	maxStderrField  = 1000
	maxFilesItems   = 80
	maxMatchesItems = 30

	// toolResultLimit is the serialized-size target for tool observations.
	toolResultLimit = 3000
	// toolResultSlack allows modest overshoot before smart truncation kicks in.
	toolResultSlack = 500
)

// SmartTruncate shortens a string longer than max, keeping a head of 70% of
// max and a tail of 20% of max with an omission marker between them. The
// marker is not counted against max, so for small max the result can be
// somewhat longer than max.
func SmartTruncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	head := max * 7 / 10
	tail := max * 2 / 10
	omitted := len(s) - head - tail
	return fmt.Sprintf("%s… [%d characters omitted] …%s", s[:head], omitted, s[len(s)-tail:])
}

// TruncateToolResult bounds a tool observation before it enters the
// conversation. Well-known fields are clipped first; if the serialized form
// is still oversized the whole JSON is smart-truncated.
func TruncateToolResult(result map[string]any) string {
	if result == nil {
		return "null"
	}

	clipped := make(map[string]any, len(result))
	for k, v := range result {
		clipped[k] = v
	}

	if s, ok := clipped["content"].(string); ok && len(s) > maxContentField {
		clipped["content"] = SmartTruncate(s, maxContentField)
	}
	if s, ok := clipped["stdout"].(string); ok && len(s) > maxStdoutField {
		clipped["stdout"] = SmartTruncate(s, maxStdoutField)
	}
	if s, ok := clipped["stderr"].(string); ok && len(s) > maxStderrField {
		clipped["stderr"] = SmartTruncate(s, maxStderrField)
	}
	if files, ok := clipped["files"].([]any); ok && len(files) > maxFilesItems {
		clipped["files"] = files[:maxFilesItems]
		clipped["filesNote"] = fmt.Sprintf("%d more files omitted", len(files)-maxFilesItems)
	}
	if matches, ok := clipped["matches"].([]any); ok && len(matches) > maxMatchesItems {
		clipped["matches"] = matches[:maxMatchesItems]
		clipped["matchesNote"] = fmt.Sprintf("showing first %d of %d matches", maxMatchesItems, len(matches))
	}

	data, err := json.Marshal(clipped)
	if err != nil {
		return fmt.Sprintf(`{"error":"unserializable tool result: %v"}`, err)
	}
	if len(data) > toolResultLimit+toolResultSlack {
		return SmartTruncate(string(data), toolResultLimit)
	}
	return string(data)
}
