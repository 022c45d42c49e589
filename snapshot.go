package boardflow

// TaskStatus represents the lifecycle column of a task on the board.
type TaskStatus string

const (
	// TaskStatusTodo indicates the task has not been started.
	TaskStatusTodo TaskStatus = "todo"

	// TaskStatusInProgress indicates the task is actively being worked on.
	TaskStatusInProgress TaskStatus = "in-progress"

	// TaskStatusReview indicates the task is awaiting review.
	TaskStatusReview TaskStatus = "review"

	// TaskStatusDone indicates the task has been finished.
	TaskStatusDone TaskStatus = "done"
)

// Valid reports whether s is one of the four known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusReview, TaskStatusDone:
		return true
	default:
		return false
	}
}

// TaskPriority represents the urgency of a task.
type TaskPriority string

const (
	// TaskPriorityLow is the lowest priority level.
	TaskPriorityLow TaskPriority = "low"

	// TaskPriorityMedium is the default priority level.
	TaskPriorityMedium TaskPriority = "medium"

	// TaskPriorityHigh is the highest priority level.
	TaskPriorityHigh TaskPriority = "high"
)

// Valid reports whether p is one of the three known priorities.
func (p TaskPriority) Valid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	default:
		return false
	}
}

// ViewMode identifies which board view the UI is showing.
type ViewMode string

const (
	// ViewModeKanban shows tasks as columns by status.
	ViewModeKanban ViewMode = "kanban"

	// ViewModeTable shows tasks as a sortable table.
	ViewModeTable ViewMode = "table"

	// ViewModeTodo shows tasks as a flat checklist.
	ViewModeTodo ViewMode = "todo"
)

// Valid reports whether v is one of the known view modes.
func (v ViewMode) Valid() bool {
	switch v {
	case ViewModeKanban, ViewModeTable, ViewModeTodo:
		return true
	default:
		return false
	}
}

// Task is a single item on the task board.
//
// The ID is stable and opaque: it is assigned once at creation and is never
// derived from the title text. A deleted task is a live record with a
// non-empty DeletedAt timestamp - records are never removed by the core.
type Task struct {
	// ID is the stable, opaque task identifier.
	ID string `json:"id"`

	// Title is the short task summary shown on cards.
	Title string `json:"title"`

	// Description holds optional long-form detail.
	Description string `json:"description,omitempty"`

	// Status is the lifecycle column the task sits in.
	Status TaskStatus `json:"status"`

	// Priority is the urgency level. Defaults to medium at creation.
	Priority TaskPriority `json:"priority"`

	// DueDate is an optional due date in YYYY-MM-DD form.
	DueDate string `json:"dueDate,omitempty"`

	// Assignee is the optional person responsible for the task.
	Assignee string `json:"assignee,omitempty"`

	// Tags carry set semantics - order is irrelevant and duplicates
	// are not meaningful.
	Tags []string `json:"tags,omitempty"`

	// DeletedAt is the soft-delete timestamp (RFC 3339). Empty means
	// the task is active.
	DeletedAt string `json:"deletedAt,omitempty"`
}

// Deleted reports whether the task has been soft-deleted.
func (t *Task) Deleted() bool {
	return t.DeletedAt != ""
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// BoardData holds the task records of a snapshot.
type BoardData struct {
	Tasks []Task `json:"tasks"`
}

// BoardState holds the UI-facing state of a snapshot.
type BoardState struct {
	// ViewMode is the active board view.
	ViewMode ViewMode `json:"viewMode,omitempty"`

	// DateFilter is the active due-date filter, empty for none.
	DateFilter string `json:"dateFilter,omitempty"`

	// SelectedTaskID is the task the user currently has selected.
	// Deictic references ("this", "it") resolve against it.
	SelectedTaskID string `json:"selectedTaskId,omitempty"`

	// AssistantOpen reports whether the assistant panel is visible.
	AssistantOpen bool `json:"assistantOpen,omitempty"`

	// LastCreatedTaskIDs are the IDs appended by the most recent
	// CreateTask execution. Consumed by Undo.
	LastCreatedTaskIDs []string `json:"lastCreatedTaskIds,omitempty"`

	// LastModifiedTaskID is the target of the most recent mutation.
	LastModifiedTaskID string `json:"lastModifiedTaskId,omitempty"`
}

// Snapshot is the immutable-per-request view of the board.
//
// Every pipeline stage receives the same snapshot; mutation only ever
// happens by applying Effect patches, which is the job of whoever owns
// the persistent state. Task IDs are unique and stable for the lifetime
// of a snapshot.
type Snapshot struct {
	Data  BoardData  `json:"data"`
	State BoardState `json:"state"`
}

// NewSnapshot returns an empty board in the default kanban view.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Data:  BoardData{Tasks: []Task{}},
		State: BoardState{ViewMode: ViewModeKanban},
	}
}

// ActiveTasks returns the non-deleted tasks in snapshot order.
func (s *Snapshot) ActiveTasks() []Task {
	out := make([]Task, 0, len(s.Data.Tasks))
	for _, t := range s.Data.Tasks {
		if !t.Deleted() {
			out = append(out, t)
		}
	}
	return out
}

// DeletedTasks returns the soft-deleted tasks in snapshot order.
func (s *Snapshot) DeletedTasks() []Task {
	var out []Task
	for _, t := range s.Data.Tasks {
		if t.Deleted() {
			out = append(out, t)
		}
	}
	return out
}

// FindTask returns the task with the given ID, deleted or not.
// Returns nil if no such task exists.
func (s *Snapshot) FindTask(id string) *Task {
	for i := range s.Data.Tasks {
		if s.Data.Tasks[i].ID == id {
			return &s.Data.Tasks[i]
		}
	}
	return nil
}

// FindActiveTask returns the non-deleted task with the given ID,
// or nil if the task is missing or soft-deleted.
func (s *Snapshot) FindActiveTask(id string) *Task {
	t := s.FindTask(id)
	if t == nil || t.Deleted() {
		return nil
	}
	return t
}

// SelectedTask returns the currently selected active task, or nil when
// nothing is selected or the selection points at a deleted task.
func (s *Snapshot) SelectedTask() *Task {
	if s.State.SelectedTaskID == "" {
		return nil
	}
	return s.FindActiveTask(s.State.SelectedTaskID)
}

// Clone returns a deep copy of the snapshot.
//
// Effects are applied to clones so the original request snapshot is never
// touched.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Data:  BoardData{Tasks: make([]Task, len(s.Data.Tasks))},
		State: s.State,
	}
	for i, t := range s.Data.Tasks {
		copied := t
		if t.Tags != nil {
			copied.Tags = append([]string(nil), t.Tags...)
		}
		out.Data.Tasks[i] = copied
	}
	if s.State.LastCreatedTaskIDs != nil {
		out.State.LastCreatedTaskIDs = append([]string(nil), s.State.LastCreatedTaskIDs...)
	}
	return out
}
