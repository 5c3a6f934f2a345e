package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/isocode-ai/isocode/pkg/types"
)

// taskItem is one entry on a session's in-memory task list.
type taskItem struct {
	Text string `json:"text"`
	Done bool   `json:"done"`
}

// TaskLists holds per-session task lists for the lifetime of the process.
type TaskLists struct {
	mu    sync.Mutex
	lists map[string][]taskItem
}

// NewTaskLists creates the shared task-list owner.
func NewTaskLists() *TaskLists {
	return &TaskLists{lists: make(map[string][]taskItem)}
}

func (tl *TaskLists) add(session, text string) int {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.lists[session] = append(tl.lists[session], taskItem{Text: text})
	return len(tl.lists[session])
}

func (tl *TaskLists) complete(session string, index int) error {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	list := tl.lists[session]
	if index < 1 || index > len(list) {
		return fmt.Errorf("no task #%d (list has %d)", index, len(list))
	}
	list[index-1].Done = true
	return nil
}

func (tl *TaskLists) snapshot(session string) []taskItem {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make([]taskItem, len(tl.lists[session]))
	copy(out, tl.lists[session])
	return out
}

// Drop discards a session's list when the session ends.
func (tl *TaskLists) Drop(session string) {
	tl.mu.Lock()
	delete(tl.lists, session)
	tl.mu.Unlock()
}

// TaskAddTool appends a task to the session's list.
type TaskAddTool struct{ Lists *TaskLists }

func (t TaskAddTool) Name() string        { return "task_add" }
func (t TaskAddTool) Category() string    { return CategoryTasks }
func (t TaskAddTool) Description() string { return "Add a task to this session's task list" }
func (t TaskAddTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (t TaskAddTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"text": {"type": "string", "description": "Task description"}
		},
		"required": ["text"]
	}`)
}

func (t TaskAddTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	text, err := requireString(args, "text")
	if err != nil {
		return nil, err
	}
	n := t.Lists.add(tctx.SessionID, text)
	return map[string]any{"added": n, "text": text}, nil
}

// TaskCompleteTool marks a task done by 1-based index.
type TaskCompleteTool struct{ Lists *TaskLists }

func (t TaskCompleteTool) Name() string        { return "task_complete" }
func (t TaskCompleteTool) Category() string    { return CategoryTasks }
func (t TaskCompleteTool) Description() string { return "Mark a task done by its number" }
func (t TaskCompleteTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (t TaskCompleteTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"index": {"type": "integer", "description": "1-based task number"}
		},
		"required": ["index"]
	}`)
}

func (t TaskCompleteTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	index := argInt(args, "index")
	if err := t.Lists.complete(tctx.SessionID, index); err != nil {
		return nil, err
	}
	return map[string]any{"completed": index}, nil
}

// TaskListTool returns the session's task list.
type TaskListTool struct{ Lists *TaskLists }

func (t TaskListTool) Name() string        { return "task_list" }
func (t TaskListTool) Category() string    { return CategoryTasks }
func (t TaskListTool) Description() string { return "Show this session's task list" }
func (t TaskListTool) DefaultAction() types.PermissionAction {
	return types.ActionAlways
}

func (t TaskListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t TaskListTool) Execute(ctx context.Context, args map[string]any, tctx *Context) (map[string]any, error) {
	items := t.Lists.snapshot(tctx.SessionID)
	out := make([]any, len(items))
	done := 0
	for i, item := range items {
		status := " "
		if item.Done {
			status = "x"
			done++
		}
		out[i] = fmt.Sprintf("[%s] %d. %s", status, i+1, item.Text)
	}
	return map[string]any{"tasks": out, "total": len(items), "done": done}, nil
}
