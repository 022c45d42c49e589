package boardflow

import (
	"fmt"
	"sort"
	"strings"
)

// FieldChange is one before/after delta on a single field.
type FieldChange struct {
	Field  string `json:"field"`
	Before any    `json:"before"`
	After  any    `json:"after"`
}

// TaskDiff describes how one task changed between two snapshots.
type TaskDiff struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title"`

	// Added means the task exists only in the after snapshot.
	Added bool `json:"added,omitempty"`

	// Deleted means the task was soft-deleted between the snapshots.
	Deleted bool `json:"deleted,omitempty"`

	// Restored means the task's deletion timestamp was cleared.
	Restored bool `json:"restored,omitempty"`

	// Changes lists the field-level deltas, sorted by field name.
	Changes []FieldChange `json:"changes,omitempty"`
}

// SnapshotDiff is the audit-grade delta between two snapshots. Tasks are
// compared by ID, never by position, so the diff is independent of task
// ordering.
type SnapshotDiff struct {
	Tasks []TaskDiff    `json:"tasks,omitempty"`
	State []FieldChange `json:"state,omitempty"`
}

// Empty reports whether nothing changed.
func (d *SnapshotDiff) Empty() bool {
	return len(d.Tasks) == 0 && len(d.State) == 0
}

// Summary renders a short human-readable description of the diff, used
// as context for the result interpreter.
func (d *SnapshotDiff) Summary() string {
	if d.Empty() {
		return "nothing changed"
	}
	var parts []string
	for _, td := range d.Tasks {
		switch {
		case td.Added:
			parts = append(parts, fmt.Sprintf("added %q", td.Title))
		case td.Deleted:
			parts = append(parts, fmt.Sprintf("deleted %q", td.Title))
		case td.Restored:
			parts = append(parts, fmt.Sprintf("restored %q", td.Title))
		default:
			fields := make([]string, len(td.Changes))
			for i, c := range td.Changes {
				fields[i] = fmt.Sprintf("%s: %v -> %v", c.Field, c.Before, c.After)
			}
			parts = append(parts, fmt.Sprintf("%q (%s)", td.Title, strings.Join(fields, ", ")))
		}
	}
	for _, sc := range d.State {
		parts = append(parts, fmt.Sprintf("%s: %v -> %v", sc.Field, sc.Before, sc.After))
	}
	return strings.Join(parts, "; ")
}

// DiffSnapshots computes the field-level delta between two snapshots.
//
// The result is deterministic: tasks appear in the before snapshot's
// order, with newly added tasks following in the after snapshot's order.
// Tags compare as sets. Diffing is idempotent - diffing a snapshot
// against itself is always empty.
func DiffSnapshots(before, after *Snapshot) *SnapshotDiff {
	diff := &SnapshotDiff{}

	afterByID := make(map[string]*Task, len(after.Data.Tasks))
	for i := range after.Data.Tasks {
		afterByID[after.Data.Tasks[i].ID] = &after.Data.Tasks[i]
	}

	seen := make(map[string]bool, len(before.Data.Tasks))
	for i := range before.Data.Tasks {
		b := &before.Data.Tasks[i]
		seen[b.ID] = true
		a, ok := afterByID[b.ID]
		if !ok {
			// Hard removal is outside the core's vocabulary but the
			// differ still reports it faithfully.
			diff.Tasks = append(diff.Tasks, TaskDiff{
				TaskID:  b.ID,
				Title:   b.Title,
				Deleted: true,
			})
			continue
		}
		if td, changed := diffTask(b, a); changed {
			diff.Tasks = append(diff.Tasks, td)
		}
	}
	for i := range after.Data.Tasks {
		a := &after.Data.Tasks[i]
		if !seen[a.ID] {
			diff.Tasks = append(diff.Tasks, TaskDiff{
				TaskID: a.ID,
				Title:  a.Title,
				Added:  true,
			})
		}
	}

	diff.State = diffState(&before.State, &after.State)
	return diff
}

func diffTask(before, after *Task) (TaskDiff, bool) {
	td := TaskDiff{TaskID: before.ID, Title: after.Title}

	if !before.Deleted() && after.Deleted() {
		td.Deleted = true
	}
	if before.Deleted() && !after.Deleted() {
		td.Restored = true
	}

	addChange := func(field string, b, a any) {
		if b != a {
			td.Changes = append(td.Changes, FieldChange{Field: field, Before: b, After: a})
		}
	}
	addChange("title", before.Title, after.Title)
	addChange("description", before.Description, after.Description)
	addChange("status", string(before.Status), string(after.Status))
	addChange("priority", string(before.Priority), string(after.Priority))
	addChange("dueDate", before.DueDate, after.DueDate)
	addChange("assignee", before.Assignee, after.Assignee)
	if !equalTagSets(before.Tags, after.Tags) {
		td.Changes = append(td.Changes, FieldChange{
			Field:  "tags",
			Before: before.Tags,
			After:  after.Tags,
		})
	}

	sort.Slice(td.Changes, func(i, j int) bool {
		return td.Changes[i].Field < td.Changes[j].Field
	})

	return td, td.Deleted || td.Restored || len(td.Changes) > 0
}

func diffState(before, after *BoardState) []FieldChange {
	var changes []FieldChange
	add := func(field string, b, a any) {
		if b != a {
			changes = append(changes, FieldChange{Field: field, Before: b, After: a})
		}
	}
	add("viewMode", string(before.ViewMode), string(after.ViewMode))
	add("dateFilter", before.DateFilter, after.DateFilter)
	add("selectedTaskId", before.SelectedTaskID, after.SelectedTaskID)
	add("assistantOpen", before.AssistantOpen, after.AssistantOpen)
	add("lastModifiedTaskId", before.LastModifiedTaskID, after.LastModifiedTaskID)
	if !equalStringSlices(before.LastCreatedTaskIDs, after.LastCreatedTaskIDs) {
		changes = append(changes, FieldChange{
			Field:  "lastCreatedTaskIds",
			Before: before.LastCreatedTaskIDs,
			After:  after.LastCreatedTaskIDs,
		})
	}
	return changes
}

// equalTagSets compares tags with set semantics.
func equalTagSets(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, tag := range a {
		set[tag]++
	}
	for _, tag := range b {
		set[tag]--
		if set[tag] < 0 {
			return false
		}
	}
	return true
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
