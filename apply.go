package boardflow

import (
	"encoding/json"
	"fmt"
)

// ApplyEffects applies an effect list to a snapshot and returns the new
// snapshot. The input snapshot is never modified.
//
// Application is owned by the state layer in production; this reference
// implementation exists so the diff stage, the round-trip tests, and the
// bundled binaries have an authoritative applier. The whole effect list
// is applied to one clone, so from the caller's point of view application
// is atomic: on any error the original snapshot is still the truth.
func ApplyEffects(snap *Snapshot, effects []Effect) (*Snapshot, error) {
	next := snap.Clone()
	for _, effect := range effects {
		if effect.Type != EffectTypeSnapshotPatch {
			return nil, fmt.Errorf("unknown effect type %q", effect.Type)
		}
		for _, op := range effect.Ops {
			if err := applyOp(next, op); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

func applyOp(snap *Snapshot, op PatchOp) error {
	path, err := parsePath(op.Path)
	if err != nil {
		return err
	}

	switch op.Op {
	case OpSet:
		if path.state {
			return setStateField(&snap.State, path.stateField, op.Value)
		}
		task, err := lookupTask(snap, path)
		if err != nil {
			return err
		}
		if path.taskField == "" {
			return fmt.Errorf("set on %q addresses no field", op.Path)
		}
		return setTaskField(task, path.taskField, op.Value)

	case OpAppend:
		if !path.tasksRoot {
			return fmt.Errorf("append only applies to data.tasks, got %q", op.Path)
		}
		task, err := decodeTask(op.Value)
		if err != nil {
			return err
		}
		if task.ID == "" {
			return fmt.Errorf("appended task has no ID")
		}
		if snap.FindTask(task.ID) != nil {
			return fmt.Errorf("task %s already exists", task.ID)
		}
		snap.Data.Tasks = append(snap.Data.Tasks, task)
		return nil

	case OpRemove:
		task, err := lookupTask(snap, path)
		if err != nil {
			return err
		}
		stamp, ok := op.Value.(string)
		if !ok || stamp == "" {
			return fmt.Errorf("remove on %q needs a deletion timestamp", op.Path)
		}
		task.DeletedAt = stamp
		return nil

	case OpRestore:
		task, err := lookupTask(snap, path)
		if err != nil {
			return err
		}
		task.DeletedAt = ""
		return nil

	default:
		return fmt.Errorf("unknown patch op %q", op.Op)
	}
}

func lookupTask(snap *Snapshot, path parsedPath) (*Task, error) {
	if path.taskID != "" {
		task := snap.FindTask(path.taskID)
		if task == nil {
			return nil, fmt.Errorf("task %s not found", path.taskID)
		}
		return task, nil
	}
	if path.taskIndex >= 0 {
		if path.taskIndex >= len(snap.Data.Tasks) {
			return nil, fmt.Errorf("task index %d out of range", path.taskIndex)
		}
		return &snap.Data.Tasks[path.taskIndex], nil
	}
	return nil, fmt.Errorf("path does not address a task")
}

// decodeTask converts an op value into a Task. Values arrive either as a
// typed Task (runtime output applied in-process) or as generic JSON (an
// effect list that round-tripped through the wire).
func decodeTask(value any) (Task, error) {
	if task, ok := value.(Task); ok {
		return task, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return Task{}, fmt.Errorf("decode appended task: %w", err)
	}
	var task Task
	if err := json.Unmarshal(raw, &task); err != nil {
		return Task{}, fmt.Errorf("decode appended task: %w", err)
	}
	return task, nil
}

func setTaskField(task *Task, field string, value any) error {
	switch field {
	case "title":
		s, err := asString(value)
		if err != nil {
			return err
		}
		task.Title = s
	case "description":
		s, err := asString(value)
		if err != nil {
			return err
		}
		task.Description = s
	case "status":
		s, err := asString(value)
		if err != nil {
			return err
		}
		task.Status = TaskStatus(s)
	case "priority":
		s, err := asString(value)
		if err != nil {
			return err
		}
		task.Priority = TaskPriority(s)
	case "dueDate":
		s, err := asString(value)
		if err != nil {
			return err
		}
		task.DueDate = s
	case "assignee":
		s, err := asString(value)
		if err != nil {
			return err
		}
		task.Assignee = s
	case "tags":
		tags, err := asStringSlice(value)
		if err != nil {
			return err
		}
		task.Tags = tags
	case "deletedAt":
		s, err := asString(value)
		if err != nil {
			return err
		}
		task.DeletedAt = s
	default:
		return fmt.Errorf("unknown task field %q", field)
	}
	return nil
}

func setStateField(state *BoardState, field string, value any) error {
	switch field {
	case "viewMode":
		s, err := asString(value)
		if err != nil {
			return err
		}
		state.ViewMode = ViewMode(s)
	case "dateFilter":
		s, err := asString(value)
		if err != nil {
			return err
		}
		state.DateFilter = s
	case "selectedTaskId":
		s, err := asString(value)
		if err != nil {
			return err
		}
		state.SelectedTaskID = s
	case "assistantOpen":
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("assistantOpen needs a bool, got %T", value)
		}
		state.AssistantOpen = b
	case "lastCreatedTaskIds":
		ids, err := asStringSlice(value)
		if err != nil {
			return err
		}
		state.LastCreatedTaskIDs = ids
	case "lastModifiedTaskId":
		s, err := asString(value)
		if err != nil {
			return err
		}
		state.LastModifiedTaskID = s
	default:
		return fmt.Errorf("unknown state field %q", field)
	}
	return nil
}

func asString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case TaskStatus:
		return string(v), nil
	case TaskPriority:
		return string(v), nil
	case ViewMode:
		return string(v), nil
	default:
		return "", fmt.Errorf("expected string value, got %T", value)
	}
}

func asStringSlice(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected string list, got %T", value)
	}
}
