package llm

// maxScanFieldLen bounds the last-ditch scan so huge embedded blobs are not
// mistaken for reply content.
const maxScanFieldLen = 500_000

// ExtractContent pulls the reply text out of a decoded provider response,
// trying the known shapes in order and ending with a scan over any non-empty
// string field.
func ExtractContent(payload map[string]any) string {
	// message.content
	if msg, ok := payload["message"].(map[string]any); ok {
		if s, ok := msg["content"].(string); ok && s != "" {
			return s
		}
		// content as array of parts
		if parts, ok := msg["content"].([]any); ok {
			if s := joinParts(parts); s != "" {
				return s
			}
		}
		if s, ok := msg["reasoning_content"].(string); ok && s != "" {
			return s
		}
	}

	// choices[0].{message.content, text}
	if choices, ok := payload["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if s, ok := msg["content"].(string); ok && s != "" {
					return s
				}
				if parts, ok := msg["content"].([]any); ok {
					if s := joinParts(parts); s != "" {
						return s
					}
				}
				if s, ok := msg["reasoning_content"].(string); ok && s != "" {
					return s
				}
			}
			if s, ok := choice["text"].(string); ok && s != "" {
				return s
			}
		}
	}

	// top-level output / text / response
	for _, key := range []string{"output", "text", "response"} {
		if s, ok := payload[key].(string); ok && s != "" {
			return s
		}
	}

	// Last ditch: any non-empty string field of plausible size.
	return scanStrings(payload, 0)
}

func joinParts(parts []any) string {
	var out string
	for _, p := range parts {
		part, ok := p.(map[string]any)
		if !ok {
			continue
		}
		if s, ok := part["text"].(string); ok {
			out += s
		}
	}
	return out
}

// scanStrings walks the payload depth-first looking for a usable string.
func scanStrings(v any, depth int) string {
	if depth > 6 {
		return ""
	}
	switch val := v.(type) {
	case string:
		if val != "" && len(val) < maxScanFieldLen {
			return val
		}
	case map[string]any:
		for _, key := range []string{"content", "text", "output", "response", "message"} {
			if inner, ok := val[key]; ok {
				if s := scanStrings(inner, depth+1); s != "" {
					return s
				}
			}
		}
		for _, inner := range val {
			if s := scanStrings(inner, depth+1); s != "" {
				return s
			}
		}
	case []any:
		for _, inner := range val {
			if s := scanStrings(inner, depth+1); s != "" {
				return s
			}
		}
	}
	return ""
}
