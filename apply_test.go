package boardflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestApplySetTaskField sets one field through the keyed path.
func TestApplySetTaskField(t *testing.T) {
	snap := testBoard()
	after, err := ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op:    OpSet,
		Path:  TaskFieldPath("t-2", "status"),
		Value: TaskStatusDone,
	})})
	require.NoError(t, err)

	assert.Equal(t, TaskStatusDone, after.FindTask("t-2").Status)
	assert.Equal(t, TaskStatusTodo, snap.FindTask("t-2").Status, "input snapshot untouched")
}

// TestApplyAppendTask appends a new record and rejects duplicates.
func TestApplyAppendTask(t *testing.T) {
	snap := testBoard()
	task := Task{ID: "t-9", Title: "New one", Status: TaskStatusTodo, Priority: TaskPriorityLow}

	after, err := ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op: OpAppend, Path: "data.tasks", Value: task,
	})})
	require.NoError(t, err)
	require.Len(t, after.Data.Tasks, 6)
	assert.Equal(t, "New one", after.FindTask("t-9").Title)

	_, err = ApplyEffects(after, []Effect{NewPatch(PatchOp{
		Op: OpAppend, Path: "data.tasks", Value: task,
	})})
	assert.Error(t, err, "duplicate ID must be rejected")
}

// TestApplyAppendDecodesGenericJSON accepts an append whose value
// round-tripped through the wire as generic JSON.
func TestApplyAppendDecodesGenericJSON(t *testing.T) {
	snap := testBoard()
	value := map[string]any{
		"id":       "t-9",
		"title":    "From the wire",
		"status":   "todo",
		"priority": "high",
		"tags":     []any{"imported"},
	}

	after, err := ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op: OpAppend, Path: "data.tasks", Value: value,
	})})
	require.NoError(t, err)

	task := after.FindTask("t-9")
	require.NotNil(t, task)
	assert.Equal(t, TaskPriorityHigh, task.Priority)
	assert.Equal(t, []string{"imported"}, task.Tags)
}

// TestApplyRemoveAndRestore covers the soft-delete cycle.
func TestApplyRemoveAndRestore(t *testing.T) {
	snap := testBoard()

	after, err := ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op:    OpRemove,
		Path:  TaskPath("t-1"),
		Value: "2026-08-29T12:00:00Z",
	})})
	require.NoError(t, err)
	assert.True(t, after.FindTask("t-1").Deleted())
	require.Len(t, after.Data.Tasks, 5, "soft delete keeps the record")

	restored, err := ApplyEffects(after, []Effect{NewPatch(PatchOp{
		Op:   OpRestore,
		Path: TaskPath("t-1"),
	})})
	require.NoError(t, err)
	assert.False(t, restored.FindTask("t-1").Deleted())
}

// TestApplyRemoveNeedsTimestamp rejects removes without a deletion
// timestamp.
func TestApplyRemoveNeedsTimestamp(t *testing.T) {
	snap := testBoard()
	_, err := ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op:   OpRemove,
		Path: TaskPath("t-1"),
	})})
	assert.Error(t, err)
}

// TestApplyStateFields covers every state field setter.
func TestApplyStateFields(t *testing.T) {
	snap := testBoard()
	after, err := ApplyEffects(snap, []Effect{NewPatch(
		PatchOp{Op: OpSet, Path: StatePath("viewMode"), Value: "table"},
		PatchOp{Op: OpSet, Path: StatePath("dateFilter"), Value: "this-week"},
		PatchOp{Op: OpSet, Path: StatePath("selectedTaskId"), Value: "t-3"},
		PatchOp{Op: OpSet, Path: StatePath("assistantOpen"), Value: true},
		PatchOp{Op: OpSet, Path: StatePath("lastCreatedTaskIds"), Value: []string{"t-3"}},
		PatchOp{Op: OpSet, Path: StatePath("lastModifiedTaskId"), Value: "t-3"},
	)})
	require.NoError(t, err)

	assert.Equal(t, ViewModeTable, after.State.ViewMode)
	assert.Equal(t, "this-week", after.State.DateFilter)
	assert.Equal(t, "t-3", after.State.SelectedTaskID)
	assert.True(t, after.State.AssistantOpen)
	assert.Equal(t, []string{"t-3"}, after.State.LastCreatedTaskIDs)
	assert.Equal(t, "t-3", after.State.LastModifiedTaskID)
}

// TestApplyLegacyIndexPath still applies old positional paths.
func TestApplyLegacyIndexPath(t *testing.T) {
	snap := testBoard()
	after, err := ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op:    OpSet,
		Path:  "data.tasks.0.title",
		Value: "Renamed",
	})})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", after.Data.Tasks[0].Title)
}

// TestApplyErrorLeavesOriginal verifies atomicity from the caller's
// view: on any error no new snapshot is produced and the input stays
// intact.
func TestApplyErrorLeavesOriginal(t *testing.T) {
	snap := testBoard()
	after, err := ApplyEffects(snap, []Effect{NewPatch(
		PatchOp{Op: OpSet, Path: StatePath("viewMode"), Value: "table"},
		PatchOp{Op: OpSet, Path: TaskFieldPath("ghost", "title"), Value: "x"},
	)})
	assert.Error(t, err)
	assert.Nil(t, after)
	assert.Equal(t, ViewModeKanban, snap.State.ViewMode)
}

// TestApplyRejectsUnknownFields covers unknown task field, unknown state
// field and unknown op.
func TestApplyRejectsUnknownFields(t *testing.T) {
	snap := testBoard()

	_, err := ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op: OpSet, Path: TaskFieldPath("t-1", "owner"), Value: "x",
	})})
	assert.Error(t, err)

	_, err = ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op: OpSet, Path: StatePath("theme"), Value: "dark",
	})})
	assert.Error(t, err)

	_, err = ApplyEffects(snap, []Effect{NewPatch(PatchOp{
		Op: "merge", Path: StatePath("viewMode"), Value: "table",
	})})
	assert.Error(t, err)

	_, err = ApplyEffects(snap, []Effect{{Type: "unknown.effect"}})
	assert.Error(t, err)
}
