package boardflow

import (
	"encoding/json"
	"fmt"
)

// IntentKind discriminates the closed set of intent variants.
type IntentKind string

const (
	// IntentCreateTask adds one or more new tasks to the board.
	IntentCreateTask IntentKind = "create_task"

	// IntentUpdateTask changes fields of an existing task.
	IntentUpdateTask IntentKind = "update_task"

	// IntentChangeStatus moves tasks to a different status column.
	IntentChangeStatus IntentKind = "change_status"

	// IntentDeleteTask soft-deletes tasks.
	IntentDeleteTask IntentKind = "delete_task"

	// IntentRestoreTask revives soft-deleted tasks.
	IntentRestoreTask IntentKind = "restore_task"

	// IntentSelectTask changes the board selection.
	IntentSelectTask IntentKind = "select_task"

	// IntentQueryTasks filters tasks without mutating anything.
	IntentQueryTasks IntentKind = "query_tasks"

	// IntentChangeView switches the board view mode.
	IntentChangeView IntentKind = "change_view"

	// IntentSetDateFilter sets or clears the due-date filter.
	IntentSetDateFilter IntentKind = "set_date_filter"

	// IntentUndo reverts the most recent undoable mutation.
	IntentUndo IntentKind = "undo"

	// IntentToggleAssistant opens or closes the assistant panel.
	IntentToggleAssistant IntentKind = "toggle_assistant"

	// IntentRequestClarification asks the user a disambiguating question.
	IntentRequestClarification IntentKind = "request_clarification"
)

// knownIntentKinds is the closed set accepted by ParseSkeleton.
var knownIntentKinds = map[IntentKind]bool{
	IntentCreateTask:           true,
	IntentUpdateTask:           true,
	IntentChangeStatus:         true,
	IntentDeleteTask:           true,
	IntentRestoreTask:          true,
	IntentSelectTask:           true,
	IntentQueryTasks:           true,
	IntentChangeView:           true,
	IntentSetDateFilter:        true,
	IntentUndo:                 true,
	IntentToggleAssistant:      true,
	IntentRequestClarification: true,
}

// IntentSource records who produced an intent.
type IntentSource string

const (
	// SourceHuman marks intents compiled from a typed instruction.
	SourceHuman IntentSource = "human"

	// SourceUI marks intents triggered by direct UI interaction.
	SourceUI IntentSource = "ui"

	// SourceAgent marks intents synthesized by an orchestrated agent.
	SourceAgent IntentSource = "agent"
)

// IntentMeta carries the fields every intent variant shares.
type IntentMeta struct {
	// Confidence is the compiler's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Source records who produced the intent.
	Source IntentSource `json:"source"`
}

// Meta returns the shared metadata.
func (m IntentMeta) Meta() IntentMeta { return m }

// Intent is a fully resolved, executable operation. Every task reference
// inside an Intent is a concrete ID present in the snapshot the resolver
// bound it against - descriptive references never survive resolution.
type Intent interface {
	IntentKind() IntentKind
	Meta() IntentMeta
}

/// NewTask describes a task to be created. The ID is absent on purpose:
// the runtime assigns it at execution time.
type NewTask struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
	DueDate     string       `json:"dueDate,omitempty"`
	Assignee    string       `json:"assignee,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
}

// TaskChanges is a sparse field update. Nil pointers mean "leave as is";
// a nil Tags slice leaves tags untouched while an empty one clears them.
type TaskChanges struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
	DueDate     *string       `json:"dueDate,omitempty"`
	Assignee    *string       `json:"assignee,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

// Empty reports whether the change set touches nothing.
func (c TaskChanges) Empty() bool {
	return c.Title == nil && c.Description == nil && c.Status == nil &&
		c.Priority == nil && c.DueDate == nil && c.Assignee == nil &&
		c.Tags == nil
}

// QueryFilter selects tasks for QueryTasks.
type QueryFilter struct {
	Status         *TaskStatus   `json:"status,omitempty"`
	Priority       *TaskPriority `json:"priority,omitempty"`
	Tag            string        `json:"tag,omitempty"`
	Text           string        `json:"text,omitempty"`
	DueBefore      string        `json:"dueBefore,omitempty"`
	IncludeDeleted bool          `json:"includeDeleted,omitempty"`
}

// CreateTaskIntent adds new tasks to the board.
type CreateTaskIntent struct {
	IntentMeta
	Kind  IntentKind `json:"kind"` // Always "create_task"
	Tasks []NewTask  `json:"tasks"`
}

// IntentKind implements Intent.
func (CreateTaskIntent) IntentKind() IntentKind { return IntentCreateTask }

// UpdateTaskIntent changes fields of one existing task.
type UpdateTaskIntent struct {
	IntentMeta
	Kind    IntentKind  `json:"kind"` // Always "update_task"
	TaskID  string      `json:"taskId"`
	Changes TaskChanges `json:"changes"`
}

// IntentKind implements Intent.
func (UpdateTaskIntent) IntentKind() IntentKind { return IntentUpdateTask }

// ChangeStatusIntent moves one or more tasks to a new status.
type ChangeStatusIntent struct {
	IntentMeta
	Kind    IntentKind `json:"kind"` // Always "change_status"
	TaskIDs []string   `json:"taskIds"`
	Status  TaskStatus `json:"status"`
}

// IntentKind implements Intent.
func (ChangeStatusIntent) IntentKind() IntentKind { return IntentChangeStatus }

// DeleteTaskIntent soft-deletes one or more tasks.
type DeleteTaskIntent struct {
	IntentMeta
	Kind    IntentKind `json:"kind"` // Always "delete_task"
	TaskIDs []string   `json:"taskIds"`
}

// IntentKind implements Intent.
func (DeleteTaskIntent) IntentKind() IntentKind { return IntentDeleteTask }

// RestoreTaskIntent revives soft-deleted tasks. Restoring an already
// active task is a no-op, not an error.
type RestoreTaskIntent struct {
	IntentMeta
	Kind    IntentKind `json:"kind"` // Always "restore_task"
	TaskIDs []string   `json:"taskIds"`
}

// IntentKind implements Intent.
func (RestoreTaskIntent) IntentKind() IntentKind { return IntentRestoreTask }

// SelectTaskIntent changes the board selection.
type SelectTaskIntent struct {
	IntentMeta
	Kind   IntentKind `json:"kind"` // Always "select_task"
	TaskID string     `json:"taskId"`
}

// IntentKind implements Intent.
func (SelectTaskIntent) IntentKind() IntentKind { return IntentSelectTask }

// QueryTasksIntent filters tasks without mutating anything.
type QueryTasksIntent struct {
	IntentMeta
	Kind   IntentKind  `json:"kind"` // Always "query_tasks"
	Filter QueryFilter `json:"filter"`
}

// IntentKind implements Intent.
func (QueryTasksIntent) IntentKind() IntentKind { return IntentQueryTasks }

// ChangeViewIntent switches the board view mode.
type ChangeViewIntent struct {
	IntentMeta
	Kind IntentKind `json:"kind"` // Always "change_view"
	View ViewMode   `json:"view"`
}

// IntentKind implements Intent.
func (ChangeViewIntent) IntentKind() IntentKind { return IntentChangeView }

// SetDateFilterIntent sets or clears the due-date filter.
type SetDateFilterIntent struct {
	IntentMeta
	Kind   IntentKind `json:"kind"` // Always "set_date_filter"
	Filter string     `json:"filter"`
}

// IntentKind implements Intent.
func (SetDateFilterIntent) IntentKind() IntentKind { return IntentSetDateFilter }

// UndoIntent reverts the most recent undoable mutation.
type UndoIntent struct {
	IntentMeta
	Kind IntentKind `json:"kind"` // Always "undo"
}

// IntentKind implements Intent.
func (UndoIntent) IntentKind() IntentKind { return IntentUndo }

// ToggleAssistantIntent opens or closes the assistant panel. A nil
// Enabled inverts the current state.
type ToggleAssistantIntent struct {
	IntentMeta
	Kind    IntentKind `json:"kind"` // Always "toggle_assistant"
	Enabled *bool      `json:"enabled,omitempty"`
}

// IntentKind implements Intent.
func (ToggleAssistantIntent) IntentKind() IntentKind { return IntentToggleAssistant }

// RequestClarificationIntent asks the user a disambiguating question
// instead of mutating anything.
type RequestClarificationIntent struct {
	IntentMeta
	Kind     IntentKind `json:"kind"` // Always "request_clarification"
	Question string     `json:"question"`
}

// IntentKind implements Intent.
func (RequestClarificationIntent) IntentKind() IntentKind { return IntentRequestClarification }

// ParseIntent parses a JSON intent into the appropriate concrete variant.
//
// This is the inverse of marshaling a resolved intent: it inspects the
// "kind" field and unmarshals accordingly. Unknown kinds return an error.
func ParseIntent(data []byte) (Intent, error) {
	var kindOnly struct {
		Kind IntentKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &kindOnly); err != nil {
		return nil, err
	}

	switch kindOnly.Kind {
	case IntentCreateTask:
		var in CreateTaskIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentUpdateTask:
		var in UpdateTaskIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentChangeStatus:
		var in ChangeStatusIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentDeleteTask:
		var in DeleteTaskIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentRestoreTask:
		var in RestoreTaskIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentSelectTask:
		var in SelectTaskIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentQueryTasks:
		var in QueryTasksIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentChangeView:
		var in ChangeViewIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentSetDateFilter:
		var in SetDateFilterIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentUndo:
		var in UndoIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentToggleAssistant:
		var in ToggleAssistantIntent
		err := json.Unmarshal(data, &in)
		return in, err

	case IntentRequestClarification:
		var in RequestClarificationIntent
		err := json.Unmarshal(data, &in)
		return in, err

	default:
		return nil, fmt.Errorf("unknown intent kind: %q", kindOnly.Kind)
	}
}
