package session

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/isocode-ai/isocode/pkg/types"
)

// ParseFailure reports that a model reply could not be interpreted as a
// directive, even after salvage.
type ParseFailure struct {
	Raw    string
	Reason string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("unparsable directive: %s", e.Reason)
}

// ParseDirective interprets a raw model reply. It tries, in order: strict
// JSON after unwrapping, a regex key-value salvage, and a heuristic mapping
// of imperative English onto actions. A nil error means a usable directive.
func ParseDirective(raw string) (*types.Directive, error) {
	cleaned := unwrap(raw)

	if jsonText := largestJSONObject(cleaned); jsonText != "" {
		if d, err := decodeDirective(jsonText); err == nil {
			return d, nil
		}
	}

	if d := regexSalvage(cleaned); d != nil {
		return d, nil
	}
	if d := heuristicSalvage(cleaned); d != nil {
		return d, nil
	}

	return nil, &ParseFailure{Raw: raw, Reason: "no directive recognized"}
}

// decodeDirective parses one JSON object into a directive, validating the
// discriminator and the per-variant required fields.
func decodeDirective(jsonText string) (*types.Directive, error) {
	var d types.Directive
	if err := json.Unmarshal([]byte(jsonText), &d); err != nil {
		return nil, err
	}

	switch d.Type {
	case types.DirectiveThought, types.DirectiveFinal:
		if d.Content == "" {
			return nil, fmt.Errorf("%s directive without content", d.Type)
		}
	case types.DirectiveAction:
		if d.Tool == "" {
			return nil, fmt.Errorf("action directive without tool")
		}
		if d.Args == nil {
			d.Args = map[string]any{}
		}
	case types.DirectiveDiffRequest:
		if d.FilePath == "" || d.Diff == "" {
			return nil, fmt.Errorf("diff_request directive missing filePath or diff")
		}
	case types.DirectiveDelegate:
		if len(d.Tasks) == 0 {
			return nil, fmt.Errorf("delegate directive without tasks")
		}
	default:
		return nil, fmt.Errorf("unknown directive type %q", d.Type)
	}
	return &d, nil
}

var (
	fencePattern   = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	channelPattern = regexp.MustCompile(`<\|[a-z_]+\|>`)
)

// unwrap strips fenced code blocks and assistant-channel markers so the JSON
// body is exposed.
func unwrap(raw string) string {
	s := strings.TrimSpace(raw)

	if m := fencePattern.FindStringSubmatch(s); m != nil {
		inner := strings.TrimSpace(m[1])
		if strings.HasPrefix(inner, "{") {
			s = inner
		}
	}

	s = channelPattern.ReplaceAllString(s, "")

	for _, prefix := range []string{"assistantfinal", "assistant", "final:"} {
		if strings.HasPrefix(strings.ToLower(s), prefix) {
			rest := strings.TrimSpace(s[len(prefix):])
			if strings.HasPrefix(rest, "{") {
				s = rest
			}
		}
	}
	return strings.TrimSpace(s)
}

// largestJSONObject extracts the largest balanced {...} substring, respecting
// strings and escapes.
func largestJSONObject(s string) string {
	best := ""
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if len(candidate) > len(best) && json.Valid([]byte(candidate)) {
						best = candidate
					}
					i = len(s)
				}
			}
		}
	}
	return best
}

var (
	kvActionPattern = regexp.MustCompile(`(?s)action\s*[:=]\s*"?([a-z_]+)"?.*?args\s*[:=]\s*(\{.*?\})`)
	kvToolPattern   = regexp.MustCompile(`"?tool"?\s*[:=]\s*"([a-z_]+)"`)
)

// regexSalvage recovers key-value shaped replies like `action="read_file"
// args={"path":"x"}`.
func regexSalvage(s string) *types.Directive {
	if m := kvActionPattern.FindStringSubmatch(s); m != nil {
		var args map[string]any
		if err := json.Unmarshal([]byte(m[2]), &args); err == nil {
			return &types.Directive{Type: types.DirectiveAction, Tool: m[1], Args: args}
		}
	}
	if m := kvToolPattern.FindStringSubmatch(s); m != nil {
		if obj := largestJSONObject(s); obj != "" {
			var parsed struct {
				Args map[string]any `json:"args"`
			}
			if err := json.Unmarshal([]byte(obj), &parsed); err == nil && parsed.Args != nil {
				return &types.Directive{Type: types.DirectiveAction, Tool: m[1], Args: parsed.Args}
			}
		}
	}
	return nil
}

var (
	readFilePattern = regexp.MustCompile(`(?i)read (?:the )?file\s+["'` + "`" + `]?([\w./\\-]+)`)
	runCmdPattern   = regexp.MustCompile("(?i)run\\s+`([^`]+)`")
	searchPattern   = regexp.MustCompile(`(?i)search for\s+["'` + "`" + `]?([^"'` + "`" + `\n]+)`)
	listPattern     = regexp.MustCompile(`(?i)list (?:the )?files in\s+["'` + "`" + `]?([\w./\\-]+)`)
	thoughtPattern  = regexp.MustCompile(`(?i)^\s*(let me|my plan|first,|i will|i'll)`)
)

// heuristicSalvage maps imperative English onto an action or thought.
func heuristicSalvage(s string) *types.Directive {
	if m := readFilePattern.FindStringSubmatch(s); m != nil {
		return &types.Directive{Type: types.DirectiveAction, Tool: "read_file", Args: map[string]any{"path": m[1]}}
	}
	if m := runCmdPattern.FindStringSubmatch(s); m != nil {
		return &types.Directive{Type: types.DirectiveAction, Tool: "run_command", Args: map[string]any{"command": m[1]}}
	}
	if m := searchPattern.FindStringSubmatch(s); m != nil {
		return &types.Directive{Type: types.DirectiveAction, Tool: "grep", Args: map[string]any{"pattern": regexp.QuoteMeta(strings.TrimSpace(m[1]))}}
	}
	if m := listPattern.FindStringSubmatch(s); m != nil {
		return &types.Directive{Type: types.DirectiveAction, Tool: "list_files", Args: map[string]any{"path": m[1]}}
	}
	if thoughtPattern.MatchString(s) {
		return &types.Directive{Type: types.DirectiveThought, Content: strings.TrimSpace(s)}
	}
	return nil
}

// jsonReminder is the user-role nudge injected after a parse failure.
const jsonReminder = `Your last reply was not a valid directive. Reply with exactly one JSON object: {"type":"thought","content":...}, {"type":"action","tool":...,"args":{...}}, {"type":"diff_request","filePath":...,"diff":...}, or {"type":"final","content":...}.`
