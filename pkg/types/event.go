package types

// Event types carried on the SSE stream to the editor.
const (
	EventChunk       = "chunk"
	EventDone        = "done"
	EventThought     = "thought"
	EventAction      = "action"
	EventObservation = "observation"
	EventFinal       = "final"
	EventDiffRequest = "diff_request"
	EventOpenFile    = "open_file"
	EventError       = "error"
)

// Event is a single SSE frame payload. The server writes it as
// "data: <json>\n\n".
type Event struct {
	Type      string         `json:"type"`
	Content   string         `json:"content,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	FilePath  string         `json:"filePath,omitempty"`
	Diff      string         `json:"diff,omitempty"`
	Path      string         `json:"path,omitempty"`
	SessionID string         `json:"sessionId,omitempty"`
}

// ChunkEvent builds a streaming-chat token delta frame.
func ChunkEvent(delta string) Event {
	return Event{Type: EventChunk, Content: delta}
}

// DoneEvent builds the streaming-chat terminator frame.
func DoneEvent() Event {
	return Event{Type: EventDone}
}

// ThoughtEvent builds a thought frame.
func ThoughtEvent(content string) Event {
	return Event{Type: EventThought, Content: content}
}

// ActionEvent builds an action frame.
func ActionEvent(tool string, args map[string]any) Event {
	return Event{Type: EventAction, Tool: tool, Args: args}
}

// ObservationEvent builds an observation frame.
func ObservationEvent(content string) Event {
	return Event{Type: EventObservation, Content: content}
}

// FinalEvent builds a final frame.
func FinalEvent(content string) Event {
	return Event{Type: EventFinal, Content: content}
}

// DiffRequestEvent builds an approval-request frame.
func DiffRequestEvent(sessionID, filePath, diff string) Event {
	return Event{Type: EventDiffRequest, SessionID: sessionID, FilePath: filePath, Diff: diff}
}

// OpenFileEvent hints the editor to reveal a workspace-relative path.
func OpenFileEvent(path string) Event {
	return Event{Type: EventOpenFile, Path: path}
}

// ErrorEvent builds an out-of-band error frame.
func ErrorEvent(content string) Event {
	return Event{Type: EventError, Content: content}
}
