package boardflow

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequentialIDs returns an ID generator yielding task-1, task-2, ...
func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("task-%d", n)
	}
}

// fixedClock freezes the runtime clock for reproducible timestamps.
func fixedClock() func() time.Time {
	at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return at }
}

func testRuntime() *Runtime {
	return NewRuntime(WithIDGenerator(sequentialIDs()), WithClock(fixedClock()))
}

// TestExecuteCreateAppliesDefaults verifies defaulted status/priority and
// the lastCreatedTaskIds bookkeeping op.
func TestExecuteCreateAppliesDefaults(t *testing.T) {
	rt := testRuntime()
	intent := CreateTaskIntent{
		Kind:  IntentCreateTask,
		Tasks: []NewTask{{Title: "Buy milk"}, {Title: "Call dentist", Priority: TaskPriorityHigh}},
	}

	exec := rt.Execute(intent, testBoard())
	require.True(t, exec.Success)
	assert.Equal(t, []string{"task-1", "task-2"}, exec.CreatedTaskIDs)

	require.Len(t, exec.Effects, 1)
	ops := exec.Effects[0].Ops
	require.Len(t, ops, 3)

	first := ops[0].Value.(Task)
	assert.Equal(t, "task-1", first.ID)
	assert.Equal(t, TaskStatusTodo, first.Status)
	assert.Equal(t, TaskPriorityMedium, first.Priority)

	second := ops[1].Value.(Task)
	assert.Equal(t, TaskPriorityHigh, second.Priority)

	assert.Equal(t, StatePath("lastCreatedTaskIds"), ops[2].Path)
	assert.Equal(t, []string{"task-1", "task-2"}, ops[2].Value)
}

// TestExecuteCreateRejectsEmptyTitle fails with empty_title.
func TestExecuteCreateRejectsEmptyTitle(t *testing.T) {
	rt := testRuntime()
	exec := rt.Execute(CreateTaskIntent{Kind: IntentCreateTask, Tasks: []NewTask{{}}}, testBoard())
	assert.False(t, exec.Success)
	assert.Contains(t, exec.Error, RuntimeCodeEmptyTitle)
}

// TestExecuteUpdateEmitsOnlyChangedFields verifies sparse updates.
func TestExecuteUpdateEmitsOnlyChangedFields(t *testing.T) {
	rt := testRuntime()
	title := "Fix login bug ASAP"
	priority := TaskPriorityLow
	intent := UpdateTaskIntent{
		Kind:    IntentUpdateTask,
		TaskID:  "t-1",
		Changes: TaskChanges{Title: &title, Priority: &priority},
	}

	exec := rt.Execute(intent, testBoard())
	require.True(t, exec.Success)
	require.Len(t, exec.Effects, 1)

	ops := exec.Effects[0].Ops
	require.Len(t, ops, 3)
	assert.Equal(t, TaskFieldPath("t-1", "title"), ops[0].Path)
	assert.Equal(t, TaskFieldPath("t-1", "priority"), ops[1].Path)
	assert.Equal(t, StatePath("lastModifiedTaskId"), ops[2].Path)
	assert.Equal(t, "t-1", ops[2].Value)
}

// TestExecuteUpdateUnknownTask fails with task_not_found.
func TestExecuteUpdateUnknownTask(t *testing.T) {
	rt := testRuntime()
	title := "x"
	exec := rt.Execute(UpdateTaskIntent{
		Kind:    IntentUpdateTask,
		TaskID:  "ghost",
		Changes: TaskChanges{Title: &title},
	}, testBoard())
	assert.False(t, exec.Success)
	assert.Contains(t, exec.Error, RuntimeCodeTaskNotFound)
}

// TestExecuteUpdateDeletedTaskFails verifies soft-deleted tasks are not
// reachable through update.
func TestExecuteUpdateDeletedTaskFails(t *testing.T) {
	rt := testRuntime()
	title := "x"
	exec := rt.Execute(UpdateTaskIntent{
		Kind:    IntentUpdateTask,
		TaskID:  "t-5",
		Changes: TaskChanges{Title: &title},
	}, testBoard())
	assert.False(t, exec.Success)
	assert.Contains(t, exec.Error, RuntimeCodeTaskNotFound)
}

// TestExecuteChangeStatusBulk emits one op per target plus no selection
// bookkeeping for multi-target moves.
func TestExecuteChangeStatusBulk(t *testing.T) {
	rt := testRuntime()
	exec := rt.Execute(ChangeStatusIntent{
		Kind:    IntentChangeStatus,
		TaskIDs: []string{"t-2", "t-3"},
		Status:  TaskStatusDone,
	}, testBoard())

	require.True(t, exec.Success)
	ops := exec.Effects[0].Ops
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, OpSet, op.Op)
		assert.Equal(t, TaskStatusDone, op.Value)
	}
}

// TestExecuteChangeStatusInvalid rejects unknown statuses up front.
func TestExecuteChangeStatusInvalid(t *testing.T) {
	rt := testRuntime()
	exec := rt.Execute(ChangeStatusIntent{
		Kind:    IntentChangeStatus,
		TaskIDs: []string{"t-1"},
		Status:  "archived",
	}, testBoard())
	assert.False(t, exec.Success)
	assert.Contains(t, exec.Error, RuntimeCodeInvalidStatus)
}

// TestExecuteDeleteIsSoft verifies delete emits remove ops carrying the
// deletion timestamp instead of dropping records.
func TestExecuteDeleteIsSoft(t *testing.T) {
	rt := testRuntime()
	exec := rt.Execute(DeleteTaskIntent{
		Kind:    IntentDeleteTask,
		TaskIDs: []string{"t-1", "t-4"},
	}, testBoard())

	require.True(t, exec.Success)
	ops := exec.Effects[0].Ops
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, OpRemove, op.Op)
		assert.Equal(t, "2026-08-29T12:00:00Z", op.Value)
	}
	assert.Equal(t, TaskPath("t-1"), ops[0].Path)
	assert.Equal(t, TaskPath("t-4"), ops[1].Path)
}

// TestExecuteRestoreIsIdempotent verifies restoring an active task
// succeeds with no effects.
func TestExecuteRestoreIsIdempotent(t *testing.T) {
	rt := testRuntime()

	exec := rt.Execute(RestoreTaskIntent{Kind: IntentRestoreTask, TaskIDs: []string{"t-5"}}, testBoard())
	require.True(t, exec.Success)
	require.Len(t, exec.Effects, 1)
	assert.Equal(t, OpRestore, exec.Effects[0].Ops[0].Op)

	exec = rt.Execute(RestoreTaskIntent{Kind: IntentRestoreTask, TaskIDs: []string{"t-1"}}, testBoard())
	require.True(t, exec.Success)
	assert.Empty(t, exec.Effects)
}

// TestExecuteQueryFilters exercises the filter predicate combinations.
func TestExecuteQueryFilters(t *testing.T) {
	rt := testRuntime()
	snap := testBoard()

	status := TaskStatusTodo
	exec := rt.Execute(QueryTasksIntent{Kind: IntentQueryTasks, Filter: QueryFilter{Status: &status}}, snap)
	require.True(t, exec.Success)
	require.Len(t, exec.Tasks, 2)
	assert.Empty(t, exec.Effects, "queries never mutate")

	exec = rt.Execute(QueryTasksIntent{Kind: IntentQueryTasks, Filter: QueryFilter{Tag: "auth"}}, snap)
	require.Len(t, exec.Tasks, 1)
	assert.Equal(t, "t-1", exec.Tasks[0].ID)

	exec = rt.Execute(QueryTasksIntent{Kind: IntentQueryTasks, Filter: QueryFilter{Text: "SIGNUP"}}, snap)
	require.Len(t, exec.Tasks, 1)
	assert.Equal(t, "t-4", exec.Tasks[0].ID)

	exec = rt.Execute(QueryTasksIntent{Kind: IntentQueryTasks, Filter: QueryFilter{DueBefore: "2026-10-01"}}, snap)
	require.Len(t, exec.Tasks, 1)

	// Deleted tasks only show with includeDeleted.
	exec = rt.Execute(QueryTasksIntent{Kind: IntentQueryTasks, Filter: QueryFilter{Text: "migration"}}, snap)
	assert.Empty(t, exec.Tasks)
	exec = rt.Execute(QueryTasksIntent{Kind: IntentQueryTasks, Filter: QueryFilter{Text: "migration", IncludeDeleted: true}}, snap)
	require.Len(t, exec.Tasks, 1)
}

// TestExecuteViewAndFilterOps covers change_view, set_date_filter and
// toggle_assistant effects.
func TestExecuteViewAndFilterOps(t *testing.T) {
	rt := testRuntime()
	snap := testBoard()

	exec := rt.Execute(ChangeViewIntent{Kind: IntentChangeView, View: ViewModeTable}, snap)
	require.True(t, exec.Success)
	assert.Equal(t, StatePath("viewMode"), exec.Effects[0].Ops[0].Path)

	exec = rt.Execute(ChangeViewIntent{Kind: IntentChangeView, View: "calendar"}, snap)
	assert.False(t, exec.Success)
	assert.Contains(t, exec.Error, RuntimeCodeInvalidView)

	exec = rt.Execute(SetDateFilterIntent{Kind: IntentSetDateFilter, Filter: "today"}, snap)
	require.True(t, exec.Success)
	assert.Equal(t, "today", exec.Effects[0].Ops[0].Value)

	// Toggle without explicit target inverts current state.
	exec = rt.Execute(ToggleAssistantIntent{Kind: IntentToggleAssistant}, snap)
	require.True(t, exec.Success)
	assert.Equal(t, true, exec.Effects[0].Ops[0].Value)
}

// TestExecuteUndoRevertsCreation soft-deletes the last created tasks and
// clears the bookkeeping.
func TestExecuteUndoRevertsCreation(t *testing.T) {
	rt := testRuntime()
	snap := testBoard()
	snap.State.LastCreatedTaskIDs = []string{"t-4"}

	exec := rt.Execute(UndoIntent{Kind: IntentUndo}, snap)
	require.True(t, exec.Success)

	ops := exec.Effects[0].Ops
	require.Len(t, ops, 2)
	assert.Equal(t, OpRemove, ops[0].Op)
	assert.Equal(t, TaskPath("t-4"), ops[0].Path)
	assert.Equal(t, StatePath("lastCreatedTaskIds"), ops[1].Path)
	assert.Equal(t, []string{}, ops[1].Value)
}

// TestExecuteUndoWithoutHistory fails with nothing_to_undo.
func TestExecuteUndoWithoutHistory(t *testing.T) {
	rt := testRuntime()
	exec := rt.Execute(UndoIntent{Kind: IntentUndo}, testBoard())
	assert.False(t, exec.Success)
	assert.Contains(t, exec.Error, RuntimeCodeNothingToUndo)
}

// TestExecuteClarificationIsNoop verifies asking a question produces no
// effects.
func TestExecuteClarificationIsNoop(t *testing.T) {
	rt := testRuntime()
	exec := rt.Execute(RequestClarificationIntent{Kind: IntentRequestClarification, Question: "Which?"}, testBoard())
	assert.True(t, exec.Success)
	assert.Empty(t, exec.Effects)
}

// TestExecuteNeverMutatesSnapshot verifies purity: the input snapshot is
// byte-identical before and after execution.
func TestExecuteNeverMutatesSnapshot(t *testing.T) {
	rt := testRuntime()
	snap := testBoard()
	before, err := json.Marshal(snap)
	require.NoError(t, err)

	title := "changed"
	intents := []Intent{
		CreateTaskIntent{Kind: IntentCreateTask, Tasks: []NewTask{{Title: "New"}}},
		UpdateTaskIntent{Kind: IntentUpdateTask, TaskID: "t-1", Changes: TaskChanges{Title: &title}},
		DeleteTaskIntent{Kind: IntentDeleteTask, TaskIDs: []string{"t-2"}},
		RestoreTaskIntent{Kind: IntentRestoreTask, TaskIDs: []string{"t-5"}},
		UndoIntent{Kind: IntentUndo},
	}
	for _, intent := range intents {
		rt.Execute(intent, snap)
	}

	after, err := json.Marshal(snap)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

// TestExecuteDeterministicEffects verifies two runtimes with identical
// injected generators produce byte-identical effect lists.
func TestExecuteDeterministicEffects(t *testing.T) {
	intent := CreateTaskIntent{
		Kind:  IntentCreateTask,
		Tasks: []NewTask{{Title: "A"}, {Title: "B", Status: TaskStatusReview}},
	}

	first := NewRuntime(WithIDGenerator(sequentialIDs()), WithClock(fixedClock())).
		Execute(intent, testBoard())
	second := NewRuntime(WithIDGenerator(sequentialIDs()), WithClock(fixedClock())).
		Execute(intent, testBoard())

	a, err := json.Marshal(first.Effects)
	require.NoError(t, err)
	b, err := json.Marshal(second.Effects)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
