package boardflow

import (
	"fmt"
	"strconv"
	"strings"
)

// EffectTypeSnapshotPatch is the only effect type the core emits.
const EffectTypeSnapshotPatch = "snapshot.patch"

// PatchOpType identifies the kind of a single patch operation.
type PatchOpType string

const (
	// OpSet overwrites a task field or state field with a new value.
	OpSet PatchOpType = "set"

	// OpAppend appends a new task record to data.tasks.
	OpAppend PatchOpType = "append"

	// OpRemove soft-deletes a task: the value carries the deletion
	// timestamp, the record itself stays in place.
	OpRemove PatchOpType = "remove"

	// OpRestore clears a task's deletion timestamp.
	OpRestore PatchOpType = "restore"
)

// PatchOp is a single mutation instruction inside an Effect.
//
// Paths address either a state field ("state.viewMode") or a task by its
// stable key ("data.tasks.id:<taskID>.<field>"). A legacy index-based form
// ("data.tasks.<index>.<field>") is still accepted by ApplyEffects for
// backward compatibility, but the core never emits it.
type PatchOp struct {
	Op    PatchOpType `json:"op"`
	Path  string      `json:"path"`
	Value any         `json:"value,omitempty"`
}

// Effect is the only channel through which the core communicates mutation
// intent to the owner of persistent state.
type Effect struct {
	Type string    `json:"type"` // Always "snapshot.patch"
	Ops  []PatchOp `json:"ops"`
}

// NewPatch wraps patch operations in a snapshot.patch effect.
func NewPatch(ops ...PatchOp) Effect {
	return Effect{Type: EffectTypeSnapshotPatch, Ops: ops}
}

// TaskPath returns the stable-key path addressing a whole task record.
func TaskPath(taskID string) string {
	return "data.tasks.id:" + taskID
}

// TaskFieldPath returns the stable-key path addressing one field of a task.
func TaskFieldPath(taskID, field string) string {
	return "data.tasks.id:" + taskID + "." + field
}

// StatePath returns the path addressing a board state field.
func StatePath(field string) string {
	return "state." + field
}

// parsedPath is the decoded form of a patch op path.
type parsedPath struct {
	state      bool   // state.<field>
	stateField string
	taskID     string // data.tasks.id:<id>[.<field>]
	taskIndex  int    // legacy data.tasks.<index>[.<field>], -1 if keyed
	taskField  string // empty when the path addresses the whole record
	tasksRoot  bool   // exactly "data.tasks"
}

// parsePath decodes a patch op path. The legacy positional form is kept
// only so old persisted effect logs still apply.
func parsePath(path string) (parsedPath, error) {
	if field, ok := strings.CutPrefix(path, "state."); ok {
		if field == "" {
			return parsedPath{}, fmt.Errorf("empty state field in path %q", path)
		}
		return parsedPath{state: true, stateField: field}, nil
	}
	if path == "data.tasks" {
		return parsedPath{tasksRoot: true, taskIndex: -1}, nil
	}
	rest, ok := strings.CutPrefix(path, "data.tasks.")
	if !ok || rest == "" {
		return parsedPath{}, fmt.Errorf("unsupported patch path %q", path)
	}
	if keyed, ok := strings.CutPrefix(rest, "id:"); ok {
		id, field, _ := strings.Cut(keyed, ".")
		if id == "" {
			return parsedPath{}, fmt.Errorf("missing task ID in path %q", path)
		}
		return parsedPath{taskID: id, taskIndex: -1, taskField: field}, nil
	}
	idxText, field, _ := strings.Cut(rest, ".")
	idx, err := strconv.Atoi(idxText)
	if err != nil || idx < 0 {
		return parsedPath{}, fmt.Errorf("unsupported patch path %q", path)
	}
	return parsedPath{taskIndex: idx, taskField: field}, nil
}
