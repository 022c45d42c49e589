package boardflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Compiler turns a natural-language instruction into an identity-free
// Skeleton with exactly one model call.
//
// The prompt enumerates the intent schema and the current board (titles,
// status, priority, due dates, selection) so the model can describe tasks,
// but the model is never permitted to originate an ID it was not shown -
// and even shown IDs are re-validated by the resolver rather than trusted.
// There is no retry inside this stage: bad output is a CompilerError and
// the turn is over.
type Compiler struct {
	model  ModelClient
	logger *zap.Logger
}

// NewCompiler creates a skeleton compiler backed by the given model.
func NewCompiler(model ModelClient, logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{model: model, logger: logger}
}

// Compile performs the single compiler model call.
//
// hint is advisory fast-path output and may be nil. The returned error is
// always a *CompilerError; model failures are wrapped so callers can still
// reach the underlying *ModelError via errors.As.
func (c *Compiler) Compile(ctx context.Context, instruction string, snap *Snapshot, hint *Hint) (*Skeleton, error) {
	system := compilerSystemPrompt
	user := buildCompilerUserPrompt(instruction, snap, hint)

	output, err := c.model.Complete(ctx, system, user)
	if err != nil {
		modelErr := &ModelError{Stage: "skeleton compiler", Cause: err}
		return nil, &CompilerError{Message: modelErr.Error(), Cause: modelErr}
	}

	raw, ok := extractJSON(output)
	if !ok {
		c.logger.Debug("compiler output contained no JSON",
			zap.String("output", truncate(output, 200)))
		return nil, &CompilerError{Message: "model output contained no JSON object"}
	}

	sk, err := ParseSkeleton([]byte(raw))
	if err != nil {
		return nil, err
	}

	c.logger.Debug("compiled skeleton",
		zap.String("kind", string(sk.Kind)),
		zap.Float64("confidence", sk.Confidence))
	return sk, nil
}

// compilerSystemPrompt enumerates the skeleton schema. Reference fields
// are descriptive on purpose: the schema has no slot for a task ID.
const compilerSystemPrompt = `You convert a task board instruction into one JSON object and nothing else.

Schema:
{"kind": "<kind>", "confidence": <0..1>, ...kind fields}

Kinds and their fields:
- create_task: "tasks": [{"title", "description"?, "status"?, "priority"?, "dueDate"?, "assignee"?, "tags"?}]
- update_task: "target": <ref>, "changes": {"title"?, "description"?, "status"?, "priority"?, "dueDate"?, "assignee"?, "tags"?}
- change_status: "targets": [<ref>...], "status": "todo"|"in-progress"|"review"|"done"
- delete_task / restore_task: "targets": [<ref>...]
- select_task: "target": <ref>
- query_tasks: "filter": {"status"?, "priority"?, "tag"?, "text"?, "dueBefore"?, "includeDeleted"?}
- change_view: "view": "kanban"|"table"|"todo"
- set_date_filter: "dateFilter": "<value or empty to clear>"
- undo: no extra fields
- toggle_assistant: "enabled"? (omit to invert)
- request_clarification: "question": "<question for the user>"

A <ref> describes a task, it never identifies one:
{"text": "<words from the instruction or the title you saw>"} or
{"selected": true} for "this"/"it"/the selected task, or
{"all": true, "status"?: "<status>"} for bulk references.

Never invent task IDs. If the instruction is too ambiguous to act on,
emit request_clarification.`

// buildCompilerUserPrompt renders the board context plus the instruction.
func buildCompilerUserPrompt(instruction string, snap *Snapshot, hint *Hint) string {
	var b strings.Builder

	b.WriteString("Current board:\n")
	active := snap.ActiveTasks()
	if len(active) == 0 {
		b.WriteString("(no active tasks)\n")
	}
	for _, t := range active {
		fmt.Fprintf(&b, "- %q [%s, %s", t.Title, t.Status, t.Priority)
		if t.DueDate != "" {
			fmt.Fprintf(&b, ", due %s", t.DueDate)
		}
		b.WriteString("]\n")
	}
	if deleted := snap.DeletedTasks(); len(deleted) > 0 {
		b.WriteString("Deleted tasks (restorable):\n")
		for _, t := range deleted {
			fmt.Fprintf(&b, "- %q\n", t.Title)
		}
	}
	if sel := snap.SelectedTask(); sel != nil {
		fmt.Fprintf(&b, "Selected task: %q\n", sel.Title)
	}
	fmt.Fprintf(&b, "View: %s\n", snap.State.ViewMode)

	if hint != nil && (hint.Kind != "" || hint.Status != "" || hint.Bulk) {
		payload, err := json.Marshal(hint)
		if err == nil {
			fmt.Fprintf(&b, "Routing hint (advisory): %s\n", payload)
		}
	}

	fmt.Fprintf(&b, "\nInstruction: %s\n", instruction)
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
