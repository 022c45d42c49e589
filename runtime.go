package boardflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Runtime executes resolved intents against a snapshot.
//
// Execute is a pure function of (intent, snapshot) and the runtime's
// injected generators: no I/O, no model calls, and the input snapshot is
// never mutated. All it produces is an ordered effect list that the owner
// of persistent state applies atomically. Domain failures come back as
// ExecResult.Error codes, never as panics.
type Runtime struct {
	newID func() string
	now   func() time.Time
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithIDGenerator overrides task ID generation. Tests inject a sequential
// generator so effect lists are reproducible byte for byte.
func WithIDGenerator(gen func() string) RuntimeOption {
	return func(rt *Runtime) {
		rt.newID = gen
	}
}

// WithClock overrides the deletion-timestamp clock.
func WithClock(now func() time.Time) RuntimeOption {
	return func(rt *Runtime) {
		rt.now = now
	}
}

// NewRuntime creates a runtime. By default task IDs are random UUIDs and
// deletion timestamps come from the wall clock.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// ExecResult is the discriminated outcome of executing one intent.
type ExecResult struct {
	// Success reports whether the intent executed.
	Success bool `json:"success"`

	// Effects is the ordered patch list on success. Queries and
	// clarifications succeed with no effects.
	Effects []Effect `json:"effects,omitempty"`

	// Error is "<code>: <detail>" on failure, empty on success.
	Error string `json:"error,omitempty"`

	// Tasks carries query results for query_tasks.
	Tasks []Task `json:"tasks,omitempty"`

	// CreatedTaskIDs lists the IDs assigned by create_task.
	CreatedTaskIDs []string `json:"createdTaskIds,omitempty"`
}

func execFailure(code, format string, args ...any) ExecResult {
	err := &RuntimeError{Code: code, Detail: fmt.Sprintf(format, args...)}
	return ExecResult{Error: err.Error()}
}

// Execute runs a resolved intent against the snapshot.
func (rt *Runtime) Execute(intent Intent, snap *Snapshot) ExecResult {
	switch in := intent.(type) {
	case CreateTaskIntent:
		return rt.execCreate(in, snap)
	case UpdateTaskIntent:
		return rt.execUpdate(in, snap)
	case ChangeStatusIntent:
		return rt.execChangeStatus(in, snap)
	case DeleteTaskIntent:
		return rt.execDelete(in, snap)
	case RestoreTaskIntent:
		return rt.execRestore(in, snap)
	case SelectTaskIntent:
		return rt.execSelect(in, snap)
	case QueryTasksIntent:
		return rt.execQuery(in, snap)
	case ChangeViewIntent:
		return rt.execChangeView(in)
	case SetDateFilterIntent:
		return ExecResult{
			Success: true,
			Effects: []Effect{NewPatch(PatchOp{
				Op:    OpSet,
				Path:  StatePath("dateFilter"),
				Value: in.Filter,
			})},
		}
	case UndoIntent:
		return rt.execUndo(snap)
	case ToggleAssistantIntent:
		return rt.execToggleAssistant(in, snap)
	case RequestClarificationIntent:
		// Asking a question mutates nothing.
		return ExecResult{Success: true}
	default:
		return execFailure(RuntimeCodeEmptyTargets,
			"unsupported intent kind %s", intent.IntentKind())
	}
}

func (rt *Runtime) execCreate(in CreateTaskIntent, snap *Snapshot) ExecResult {
	if len(in.Tasks) == 0 {
		return execFailure(RuntimeCodeEmptyTargets, "create_task with no tasks")
	}

	var ops []PatchOp
	var ids []string
	for _, draft := range in.Tasks {
		if draft.Title == "" {
			return execFailure(RuntimeCodeEmptyTitle, "task title is required")
		}
		status := draft.Status
		if status == "" {
			status = TaskStatusTodo
		}
		if !status.Valid() {
			return execFailure(RuntimeCodeInvalidStatus, "unknown status %q", status)
		}
		priority := draft.Priority
		if priority == "" {
			priority = TaskPriorityMedium
		}
		if !priority.Valid() {
			return execFailure(RuntimeCodeInvalidStatus, "unknown priority %q", priority)
		}

		task := Task{
			ID:          rt.newID(),
			Title:       draft.Title,
			Description: draft.Description,
			Status:      status,
			Priority:    priority,
			DueDate:     draft.DueDate,
			Assignee:    draft.Assignee,
			Tags:        draft.Tags,
		}
		ids = append(ids, task.ID)
		ops = append(ops, PatchOp{Op: OpAppend, Path: "data.tasks", Value: task})
	}
	ops = append(ops, PatchOp{
		Op:    OpSet,
		Path:  StatePath("lastCreatedTaskIds"),
		Value: ids,
	})

	return ExecResult{
		Success:        true,
		Effects:        []Effect{NewPatch(ops...)},
		CreatedTaskIDs: ids,
	}
}

func (rt *Runtime) execUpdate(in UpdateTaskIntent, snap *Snapshot) ExecResult {
	task := snap.FindActiveTask(in.TaskID)
	if task == nil {
		return execFailure(RuntimeCodeTaskNotFound, "no active task %s", in.TaskID)
	}
	if in.Changes.Empty() {
		return execFailure(RuntimeCodeEmptyTargets, "update_task with empty change set")
	}

	var ops []PatchOp
	set := func(field string, value any) {
		ops = append(ops, PatchOp{
			Op:    OpSet,
			Path:  TaskFieldPath(in.TaskID, field),
			Value: value,
		})
	}
	if in.Changes.Title != nil {
		if *in.Changes.Title == "" {
			return execFailure(RuntimeCodeEmptyTitle, "task title cannot be cleared")
		}
		set("title", *in.Changes.Title)
	}
	if in.Changes.Description != nil {
		set("description", *in.Changes.Description)
	}
	if in.Changes.Status != nil {
		if !in.Changes.Status.Valid() {
			return execFailure(RuntimeCodeInvalidStatus, "unknown status %q", *in.Changes.Status)
		}
		set("status", *in.Changes.Status)
	}
	if in.Changes.Priority != nil {
		if !in.Changes.Priority.Valid() {
			return execFailure(RuntimeCodeInvalidStatus, "unknown priority %q", *in.Changes.Priority)
		}
		set("priority", *in.Changes.Priority)
	}
	if in.Changes.DueDate != nil {
		set("dueDate", *in.Changes.DueDate)
	}
	if in.Changes.Assignee != nil {
		set("assignee", *in.Changes.Assignee)
	}
	if in.Changes.Tags != nil {
		set("tags", in.Changes.Tags)
	}
	ops = append(ops, PatchOp{
		Op:    OpSet,
		Path:  StatePath("lastModifiedTaskId"),
		Value: in.TaskID,
	})

	return ExecResult{Success: true, Effects: []Effect{NewPatch(ops...)}}
}

func (rt *Runtime) execChangeStatus(in ChangeStatusIntent, snap *Snapshot) ExecResult {
	if !in.Status.Valid() {
		return execFailure(RuntimeCodeInvalidStatus, "unknown status %q", in.Status)
	}
	if len(in.TaskIDs) == 0 {
		return execFailure(RuntimeCodeEmptyTargets, "change_status with no targets")
	}

	var ops []PatchOp
	for _, id := range in.TaskIDs {
		if snap.FindActiveTask(id) == nil {
			return execFailure(RuntimeCodeTaskNotFound, "no active task %s", id)
		}
		ops = append(ops, PatchOp{
			Op:    OpSet,
			Path:  TaskFieldPath(id, "status"),
			Value: in.Status,
		})
	}
	if len(in.TaskIDs) == 1 {
		ops = append(ops, PatchOp{
			Op:    OpSet,
			Path:  StatePath("lastModifiedTaskId"),
			Value: in.TaskIDs[0],
		})
	}

	return ExecResult{Success: true, Effects: []Effect{NewPatch(ops...)}}
}

func (rt *Runtime) execDelete(in DeleteTaskIntent, snap *Snapshot) ExecResult {
	if len(in.TaskIDs) == 0 {
		return execFailure(RuntimeCodeEmptyTargets, "delete_task with no targets")
	}

	deletedAt := rt.now().UTC().Format(time.RFC3339)
	var ops []PatchOp
	for _, id := range in.TaskIDs {
		if snap.FindActiveTask(id) == nil {
			return execFailure(RuntimeCodeTaskNotFound, "no active task %s", id)
		}
		// Soft delete: the record stays, only the timestamp is set.
		ops = append(ops, PatchOp{
			Op:    OpRemove,
			Path:  TaskPath(id),
			Value: deletedAt,
		})
	}

	return ExecResult{Success: true, Effects: []Effect{NewPatch(ops...)}}
}

func (rt *Runtime) execRestore(in RestoreTaskIntent, snap *Snapshot) ExecResult {
	if len(in.TaskIDs) == 0 {
		return execFailure(RuntimeCodeEmptyTargets, "restore_task with no targets")
	}

	var ops []PatchOp
	for _, id := range in.TaskIDs {
		task := snap.FindTask(id)
		if task == nil {
			return execFailure(RuntimeCodeTaskNotFound, "no task %s", id)
		}
		// Restoring an active task is a no-op success.
		if !task.Deleted() {
			continue
		}
		ops = append(ops, PatchOp{Op: OpRestore, Path: TaskPath(id)})
	}
	if len(ops) == 0 {
		return ExecResult{Success: true}
	}

	return ExecResult{Success: true, Effects: []Effect{NewPatch(ops...)}}
}

func (rt *Runtime) execSelect(in SelectTaskIntent, snap *Snapshot) ExecResult {
	if snap.FindActiveTask(in.TaskID) == nil {
		return execFailure(RuntimeCodeTaskNotFound, "no active task %s", in.TaskID)
	}
	return ExecResult{
		Success: true,
		Effects: []Effect{NewPatch(PatchOp{
			Op:    OpSet,
			Path:  StatePath("selectedTaskId"),
			Value: in.TaskID,
		})},
	}
}

func (rt *Runtime) execQuery(in QueryTasksIntent, snap *Snapshot) ExecResult {
	scope := snap.ActiveTasks()
	if in.Filter.IncludeDeleted {
		scope = append([]Task(nil), snap.Data.Tasks...)
	}

	var matches []Task
	for _, t := range scope {
		if !matchesFilter(t, in.Filter) {
			continue
		}
		matches = append(matches, t)
	}
	return ExecResult{Success: true, Tasks: matches}
}

func matchesFilter(t Task, f QueryFilter) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.Priority != nil && t.Priority != *f.Priority {
		return false
	}
	if f.Tag != "" && !t.HasTag(f.Tag) {
		return false
	}
	if f.Text != "" {
		needle := lowerFold(f.Text)
		if !containsFold(t.Title, needle) && !containsFold(t.Description, needle) {
			return false
		}
	}
	if f.DueBefore != "" {
		// Lexicographic comparison works for YYYY-MM-DD.
		if t.DueDate == "" || t.DueDate >= f.DueBefore {
			return false
		}
	}
	return true
}

func lowerFold(s string) string {
	return strings.ToLower(s)
}

func containsFold(s, loweredNeedle string) bool {
	return strings.Contains(strings.ToLower(s), loweredNeedle)
}

func (rt *Runtime) execChangeView(in ChangeViewIntent) ExecResult {
	if !in.View.Valid() {
		return execFailure(RuntimeCodeInvalidView, "unknown view %q", in.View)
	}
	return ExecResult{
		Success: true,
		Effects: []Effect{NewPatch(PatchOp{
			Op:    OpSet,
			Path:  StatePath("viewMode"),
			Value: in.View,
		})},
	}
}

// execUndo reverts the last mutation where an inverse is derivable from
// snapshot state: creations are soft-deleted again. Other mutations do
// not record enough to invert and fail with nothing_to_undo.
func (rt *Runtime) execUndo(snap *Snapshot) ExecResult {
	if len(snap.State.LastCreatedTaskIDs) > 0 {
		deletedAt := rt.now().UTC().Format(time.RFC3339)
		var ops []PatchOp
		for _, id := range snap.State.LastCreatedTaskIDs {
			if snap.FindActiveTask(id) == nil {
				continue
			}
			ops = append(ops, PatchOp{
				Op:    OpRemove,
				Path:  TaskPath(id),
				Value: deletedAt,
			})
		}
		ops = append(ops, PatchOp{
			Op:    OpSet,
			Path:  StatePath("lastCreatedTaskIds"),
			Value: []string{},
		})
		return ExecResult{Success: true, Effects: []Effect{NewPatch(ops...)}}
	}

	return execFailure(RuntimeCodeNothingToUndo,
		"no recorded mutation can be undone")
}

func (rt *Runtime) execToggleAssistant(in ToggleAssistantIntent, snap *Snapshot) ExecResult {
	enabled := !snap.State.AssistantOpen
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	return ExecResult{
		Success: true,
		Effects: []Effect{NewPatch(PatchOp{
			Op:    OpSet,
			Path:  StatePath("assistantOpen"),
			Value: enabled,
		})},
	}
}
