package boardflow

import (
	"encoding/json"
	"fmt"
	"strings"
)

// TaskRef is a descriptive, identity-free reference to a task.
//
// The skeleton compiler's contract is that the language model describes
// tasks ("the task about milk", "first one", "this") and never originates
// stable IDs. Even when a snapshot ID happens to round-trip through the
// model, the resolver re-validates it against the snapshot rather than
// trusting it.
type TaskRef struct {
	// Text is the free-form description of the task.
	Text string `json:"text,omitempty"`

	// Selected marks a deictic reference ("this", "it", "selected")
	// that binds to the snapshot's current selection.
	Selected bool `json:"selected,omitempty"`

	// All marks a bulk reference ("all", "everything").
	All bool `json:"all,omitempty"`

	// Status scopes a bulk reference to one status column.
	Status TaskStatus `json:"status,omitempty"`
}

// Empty reports whether the reference carries no binding information.
func (r TaskRef) Empty() bool {
	return strings.TrimSpace(r.Text) == "" && !r.Selected && !r.All
}

// Skeleton is the identity-free draft intent produced by the skeleton
// compiler. It is the same shape family as Intent, but every task
// reference is a TaskRef rather than an ID. ParseSkeleton guarantees the
// structural invariants per kind; the resolver performs identity binding.
type Skeleton struct {
	// Kind declares which intent variant this skeleton drafts.
	Kind IntentKind `json:"kind"`

	// Confidence is the model's self-reported confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Tasks holds drafts for create_task.
	Tasks []NewTask `json:"tasks,omitempty"`

	// Target is the single task reference for update_task and
	// select_task.
	Target *TaskRef `json:"target,omitempty"`

	// Targets holds task references for change_status, delete_task and
	// restore_task.
	Targets []TaskRef `json:"targets,omitempty"`

	// Changes is the sparse field update for update_task.
	Changes *TaskChanges `json:"changes,omitempty"`

	// Status is the destination status for change_status.
	Status TaskStatus `json:"status,omitempty"`

	// View is the destination view for change_view.
	View ViewMode `json:"view,omitempty"`

	// DateFilter is the filter value for set_date_filter.
	DateFilter string `json:"dateFilter,omitempty"`

	// Filter is the query for query_tasks.
	Filter *QueryFilter `json:"filter,omitempty"`

	// Enabled is the explicit target state for toggle_assistant.
	Enabled *bool `json:"enabled,omitempty"`

	// Question is the text for request_clarification.
	Question string `json:"question,omitempty"`
}

// ParseSkeleton parses and structurally validates compiler output.
//
// Structural failures - malformed JSON, an unknown kind, or a missing
// required field for the declared kind - surface as *CompilerError.
// Semantic gaps (an empty title, an empty change set) are deliberately
// left to the resolver, which turns them into clarification questions
// instead of hard failures.
func ParseSkeleton(data []byte) (*Skeleton, error) {
	var sk Skeleton
	if err := json.Unmarshal(data, &sk); err != nil {
		return nil, &CompilerError{
			Message: fmt.Sprintf("malformed skeleton JSON: %v", err),
			Cause:   err,
		}
	}
	if err := validateSkeleton(&sk); err != nil {
		return nil, err
	}
	return &sk, nil
}

// validateSkeleton enforces the kind-specific required fields.
func validateSkeleton(sk *Skeleton) error {
	if !knownIntentKinds[sk.Kind] {
		return &CompilerError{Message: fmt.Sprintf("unknown intent kind: %q", sk.Kind)}
	}
	if sk.Confidence < 0 || sk.Confidence > 1 {
		return &CompilerError{
			Message: fmt.Sprintf("confidence %v outside [0, 1]", sk.Confidence),
		}
	}

	missing := func(field string) error {
		return &CompilerError{
			Message: fmt.Sprintf("%s skeleton is missing required field %q", sk.Kind, field),
		}
	}

	switch sk.Kind {
	case IntentCreateTask:
		if len(sk.Tasks) == 0 {
			return missing("tasks")
		}

	case IntentUpdateTask:
		if sk.Target == nil {
			return missing("target")
		}
		if sk.Changes == nil {
			return missing("changes")
		}

	case IntentChangeStatus:
		if len(sk.Targets) == 0 {
			return missing("targets")
		}
		if sk.Status == "" {
			return missing("status")
		}

	case IntentDeleteTask, IntentRestoreTask:
		if len(sk.Targets) == 0 {
			return missing("targets")
		}

	case IntentSelectTask:
		if sk.Target == nil {
			return missing("target")
		}

	case IntentChangeView:
		if sk.View == "" {
			return missing("view")
		}

	case IntentQueryTasks:
		if sk.Filter == nil {
			// An unconstrained query is still a query.
			sk.Filter = &QueryFilter{}
		}

	case IntentRequestClarification:
		if strings.TrimSpace(sk.Question) == "" {
			return missing("question")
		}
	}

	return nil
}
