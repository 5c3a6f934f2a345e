package session

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/isocode-ai/isocode/internal/llm"
	"github.com/isocode-ai/isocode/internal/logging"
	"github.com/isocode-ai/isocode/pkg/types"
)

const (
	// workerStepCap bounds each delegated sub-agent's loop.
	workerStepCap = 15
	// minWorkers / maxWorkers clamp the configured pool width.
	minWorkers = 1
	maxWorkers = 5
	// defaultWorkers applies when the setting is unset.
	defaultWorkers = 2
)

// fatalPattern marks delegation failures that disable further delegation.
var fatalPattern = regexp.MustCompile(`memory|heap|ENOMEM|out of memory|ECONNRESET|socket hang up|abort`)

// Task classes for model selection.
const (
	classVision  = "vision"
	classCoder   = "coder"
	classGeneral = "general"
)

var (
	visionTaskPattern = regexp.MustCompile(`(?i)screenshot|browser|image|picture|what is on the screen|look at`)
	coderTaskPattern  = regexp.MustCompile(`(?i)implement|fix|refactor|edit|write|file|apply_diff|code|function|test`)
)

// classModelPatterns score a model id against a task class.
var classModelPatterns = map[string][]string{
	classVision:  {"vision", "llava", "vl", "multimodal", "pixtral"},
	classCoder:   {"coder", "code", "starcoder", "deepseek-coder", "codellama", "qwen2.5-coder"},
	classGeneral: {"instruct", "chat", "llama", "mistral", "qwen", "gemma"},
}

// Pool runs delegated subtasks on bounded concurrent sub-agents with
// per-task model selection and fallback.
type Pool struct {
	engine *Engine
	llm    llm.Client
}

// NewPool creates the delegation pool.
func NewPool(engine *Engine, client llm.Client) *Pool {
	return &Pool{engine: engine, llm: client}
}

// Run executes the tasks in chunks of the configured worker count and
// returns the final texts in input order. A fatal failure on any task, or
// every task failing, raises an error.
func (p *Pool) Run(ctx context.Context, parent *Session, tasks []types.DelegateTask) ([]string, error) {
	if len(tasks) == 0 {
		return nil, fmt.Errorf("delegate directive carried no tasks")
	}

	available, err := p.llm.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	workers := parent.Settings.MaxWorkers
	if workers == 0 {
		workers = defaultWorkers
	}
	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}

	results := make([]string, len(tasks))
	errs := make([]error, len(tasks))

	for start := 0; start < len(tasks); start += workers {
		end := start + workers
		if end > len(tasks) {
			end = len(tasks)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = p.runTask(ctx, parent, i, tasks[i], available)
			}(i)
		}
		wg.Wait()
	}

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		if fatalPattern.MatchString(err.Error()) {
			return nil, fmt.Errorf("fatal worker failure on subtask %d: %w", i+1, err)
		}
		results[i] = fmt.Sprintf("subtask failed: %v", err)
	}
	if failed == len(tasks) {
		return nil, fmt.Errorf("every delegated subtask failed")
	}
	return results, nil
}

// runTask tries a task's ranked model list until one succeeds. Non-fatal
// failures fall through to the next model; fatal ones abort immediately.
func (p *Pool) runTask(ctx context.Context, parent *Session, i int, task types.DelegateTask, available []types.ModelInfo) (string, error) {
	models := rankModels(task, available, parent.Model, parent.Settings.VisionModel)
	if len(models) == 0 {
		return "", fmt.Errorf("no model available for subtask")
	}

	var lastErr error
	for _, model := range models {
		out, err := p.runWorker(ctx, parent, i, task.Task, model)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if fatalPattern.MatchString(err.Error()) {
			return "", err
		}
		logging.Debug().Err(err).Str("model", model).Int("subtask", i+1).Msg("worker failed, trying next model")
	}
	return "", lastErr
}

// runWorker spawns one sub-agent session and captures only its final text.
func (p *Pool) runWorker(ctx context.Context, parent *Session, i int, taskText, model string) (string, error) {
	worker := &Session{
		ID:            fmt.Sprintf("%s.worker-%d-%s", parent.ID, i+1, strings.ToLower(ulid.Make().String()[:8])),
		Model:         model,
		AgentPlus:     true,
		WorkspaceRoot: parent.WorkspaceRoot,
		MaxSteps:      workerStepCap,
		Settings:      parent.Settings,
		Store:         parent.Store,
		Index:         parent.Index,
		// A worker never re-delegates.
		DelegationDisabled: true,
	}

	system := renderSystemPrompt(true, catalogFor(p.engine.dispatcher), promptContext{})
	worker.Append(
		types.SystemMessage(system),
		types.UserMessage(taskText),
	)

	var final string
	var failure string
	sink := func(ev types.Event) error {
		switch ev.Type {
		case types.EventFinal:
			final = ev.Content
		case types.EventError:
			failure = ev.Content
		}
		return nil
	}

	p.engine.Run(ctx, worker, sink)

	if failure != "" {
		return "", fmt.Errorf("%s", failure)
	}
	if strings.TrimSpace(final) == "" {
		return "", fmt.Errorf("worker produced no final")
	}
	if strings.HasPrefix(final, "The model backend failed") {
		return "", fmt.Errorf("%s", final)
	}
	return final, nil
}

// rankModels computes the ordered model list for one task: explicit hint
// first, then the best class match, then the remaining models, the
// configured vision model, and the session default.
func rankModels(task types.DelegateTask, available []types.ModelInfo, sessionDefault, visionModel string) []string {
	if task.Model != "" {
		return []string{task.Model}
	}

	class := classifyTask(task.Task)

	primary := ""
	bestScore := 0
	for _, m := range available {
		if score := scoreModel(m.ID, class); score > bestScore {
			bestScore = score
			primary = m.ID
		}
	}

	// Vision tasks with no vision-capable model: avoid a coder default,
	// preferring any non-coder model, then the configured vision model.
	if class == classVision && primary == "" {
		if scoreModel(sessionDefault, classCoder) > 0 {
			for _, m := range available {
				if scoreModel(m.ID, classCoder) == 0 {
					primary = m.ID
					break
				}
			}
		}
		if primary == "" {
			primary = visionModel
		}
	}

	var ordered []string
	seen := map[string]bool{}
	push := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ordered = append(ordered, id)
		}
	}

	push(primary)
	for _, m := range available {
		push(m.ID)
	}
	push(visionModel)
	push(sessionDefault)
	return ordered
}

// classifyTask buckets a task description.
func classifyTask(text string) string {
	switch {
	case visionTaskPattern.MatchString(text):
		return classVision
	case coderTaskPattern.MatchString(text):
		return classCoder
	default:
		return classGeneral
	}
}

// scoreModel counts class pattern hits in a model id.
func scoreModel(modelID, class string) int {
	id := strings.ToLower(modelID)
	score := 0
	for _, pat := range classModelPatterns[class] {
		if strings.Contains(id, pat) {
			score++
		}
	}
	return score
}
