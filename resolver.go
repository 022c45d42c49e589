package boardflow

import (
	"fmt"
	"strings"
)

// Resolver binds the descriptive references in a Skeleton to concrete
// task IDs, or declares ambiguity.
//
// Resolution is deterministic: the same (skeleton, snapshot) pair always
// produces the same result, with no external calls. This is the only
// place identity binding happens. Every ID in a resolved Intent is
// guaranteed to come from the snapshot's task set - the active set for
// everything except restore_task, which resolves against the deleted set.
//
// Policy for ambiguity: the resolver always fails closed. Two or more
// matches produce a multiple_matches clarification with all candidates in
// snapshot order; it never auto-picks.
type Resolver struct{}

// NewResolver creates a symbol resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// deicticWords are pronoun references that bind to the current selection.
var deicticWords = map[string]bool{
	"this": true, "it": true, "that": true, "selected": true,
	"this one": true, "this task": true,
	"이거": true, "그거": true, "이것": true, "저것": true, "선택된 작업": true,
}

// bulkWords are quantified references that bind to the whole scope.
var bulkWords = map[string]bool{
	"all": true, "everything": true, "every task": true, "all tasks": true,
	"모든": true, "모두": true, "전부": true, "전체": true, "모든 작업": true,
}

// Resolve turns a skeleton into a fully resolved Intent.
//
// The returned error is always a *ClarificationError; structural problems
// cannot reach this stage because ParseSkeleton rejects them.
func (r *Resolver) Resolve(sk *Skeleton, snap *Snapshot) (Intent, error) {
	meta := IntentMeta{Confidence: sk.Confidence, Source: SourceHuman}

	switch sk.Kind {
	case IntentCreateTask:
		for _, draft := range sk.Tasks {
			if strings.TrimSpace(draft.Title) == "" {
				return nil, &ClarificationError{
					Type:              ClarificationMissingTitle,
					SuggestedQuestion: "What should the new task be called?",
				}
			}
		}
		return CreateTaskIntent{
			IntentMeta: meta,
			Kind:       IntentCreateTask,
			Tasks:      sk.Tasks,
		}, nil

	case IntentUpdateTask:
		if sk.Changes == nil || sk.Changes.Empty() {
			return nil, &ClarificationError{
				Type:              ClarificationAmbiguousAction,
				SuggestedQuestion: "What would you like to change about that task?",
			}
		}
		id, err := r.resolveSingle(*sk.Target, snap, snap.ActiveTasks())
		if err != nil {
			return nil, err
		}
		return UpdateTaskIntent{
			IntentMeta: meta,
			Kind:       IntentUpdateTask,
			TaskID:     id,
			Changes:    *sk.Changes,
		}, nil

	case IntentChangeStatus:
		ids, err := r.resolveMany(sk.Targets, snap, snap.ActiveTasks())
		if err != nil {
			return nil, err
		}
		return ChangeStatusIntent{
			IntentMeta: meta,
			Kind:       IntentChangeStatus,
			TaskIDs:    ids,
			Status:     sk.Status,
		}, nil

	case IntentDeleteTask:
		ids, err := r.resolveMany(sk.Targets, snap, snap.ActiveTasks())
		if err != nil {
			return nil, err
		}
		return DeleteTaskIntent{
			IntentMeta: meta,
			Kind:       IntentDeleteTask,
			TaskIDs:    ids,
		}, nil

	case IntentRestoreTask:
		// Restore resolves against the deleted set. Falling back to the
		// full set keeps "restore X" on an already-active X a no-op
		// instead of a which_task question.
		scope := snap.DeletedTasks()
		ids, err := r.resolveMany(sk.Targets, snap, scope)
		if err != nil {
			var clarif *ClarificationError
			if err.Type == ClarificationWhichTask {
				clarif = err
			}
			if clarif == nil {
				return nil, err
			}
			ids, err = r.resolveMany(sk.Targets, snap, snap.ActiveTasks())
			if err != nil {
				return nil, clarif
			}
		}
		return RestoreTaskIntent{
			IntentMeta: meta,
			Kind:       IntentRestoreTask,
			TaskIDs:    ids,
		}, nil

	case IntentSelectTask:
		id, err := r.resolveSingle(*sk.Target, snap, snap.ActiveTasks())
		if err != nil {
			return nil, err
		}
		return SelectTaskIntent{
			IntentMeta: meta,
			Kind:       IntentSelectTask,
			TaskID:     id,
		}, nil

	case IntentQueryTasks:
		filter := QueryFilter{}
		if sk.Filter != nil {
			filter = *sk.Filter
		}
		return QueryTasksIntent{
			IntentMeta: meta,
			Kind:       IntentQueryTasks,
			Filter:     filter,
		}, nil

	case IntentChangeView:
		return ChangeViewIntent{
			IntentMeta: meta,
			Kind:       IntentChangeView,
			View:       sk.View,
		}, nil

	case IntentSetDateFilter:
		return SetDateFilterIntent{
			IntentMeta: meta,
			Kind:       IntentSetDateFilter,
			Filter:     sk.DateFilter,
		}, nil

	case IntentUndo:
		return UndoIntent{IntentMeta: meta, Kind: IntentUndo}, nil

	case IntentToggleAssistant:
		return ToggleAssistantIntent{
			IntentMeta: meta,
			Kind:       IntentToggleAssistant,
			Enabled:    sk.Enabled,
		}, nil

	case IntentRequestClarification:
		return RequestClarificationIntent{
			IntentMeta: meta,
			Kind:       IntentRequestClarification,
			Question:   sk.Question,
		}, nil

	default:
		// ParseSkeleton rejects unknown kinds; keep the failure closed
		// anyway.
		return nil, &ClarificationError{
			Type:              ClarificationAmbiguousAction,
			SuggestedQuestion: fmt.Sprintf("I could not understand the request (%s). Could you rephrase it?", sk.Kind),
		}
	}
}

// resolveSingle binds a reference that must name exactly one task.
func (r *Resolver) resolveSingle(ref TaskRef, snap *Snapshot, scope []Task) (string, *ClarificationError) {
	matches, err := r.resolveRef(ref, snap, scope)
	if err != nil {
		return "", err
	}
	if len(matches) > 1 {
		return "", &ClarificationError{
			Type:              ClarificationMultipleMatches,
			SuggestedQuestion: multipleMatchesQuestion(matches),
			Candidates:        matches,
		}
	}
	return matches[0].ID, nil
}

// resolveMany binds a list of references, deduplicating while keeping
// snapshot order. Bulk references expand; descriptive references must
// each bind uniquely.
func (r *Resolver) resolveMany(refs []TaskRef, snap *Snapshot, scope []Task) ([]string, *ClarificationError) {
	selected := make(map[string]bool)
	for _, ref := range refs {
		matches, err := r.resolveRef(ref, snap, scope)
		if err != nil {
			return nil, err
		}
		if len(matches) > 1 && !isBulkRef(ref) {
			return nil, &ClarificationError{
				Type:              ClarificationMultipleMatches,
				SuggestedQuestion: multipleMatchesQuestion(matches),
				Candidates:        matches,
			}
		}
		for _, m := range matches {
			selected[m.ID] = true
		}
	}

	// Snapshot order, not ref order, for reproducibility.
	var ids []string
	for _, t := range scope {
		if selected[t.ID] {
			ids = append(ids, t.ID)
		}
	}
	if len(ids) == 0 {
		return nil, &ClarificationError{
			Type:              ClarificationWhichTask,
			SuggestedQuestion: "Which task do you mean?",
		}
	}
	return ids, nil
}

// resolveRef binds one reference to its matching tasks within scope.
//
// The resolution order is: concrete ID, deictic selection, bulk
// expansion, then title matching with the exact-title tie-break.
func (r *Resolver) resolveRef(ref TaskRef, snap *Snapshot, scope []Task) ([]Task, *ClarificationError) {
	text := strings.TrimSpace(ref.Text)

	// A reference that is already a concrete known ID in scope is
	// accepted directly. IDs outside the scope fall through to title
	// matching - the model may not invent identity.
	if text != "" {
		for _, t := range scope {
			if t.ID == text {
				return []Task{t}, nil
			}
		}
	}

	if ref.Selected || deicticWords[strings.ToLower(text)] {
		sel := snap.SelectedTask()
		if sel == nil {
			return nil, &ClarificationError{
				Type:              ClarificationWhichTask,
				SuggestedQuestion: "No task is selected. Which task do you mean?",
			}
		}
		// The selection must still be inside the scope (a selected
		// active task is not restorable, for instance).
		for _, t := range scope {
			if t.ID == sel.ID {
				return []Task{t}, nil
			}
		}
		return nil, &ClarificationError{
			Type:              ClarificationWhichTask,
			SuggestedQuestion: "The selected task does not apply here. Which task do you mean?",
		}
	}

	if isBulkRef(ref) {
		var matches []Task
		for _, t := range scope {
			if ref.Status != "" && t.Status != ref.Status {
				continue
			}
			matches = append(matches, t)
		}
		if len(matches) == 0 {
			return nil, &ClarificationError{
				Type:              ClarificationWhichTask,
				SuggestedQuestion: "There are no tasks matching that.",
			}
		}
		return matches, nil
	}

	if text == "" {
		return nil, &ClarificationError{
			Type:              ClarificationWhichTask,
			SuggestedQuestion: "Which task do you mean?",
		}
	}

	return r.matchTitle(text, scope)
}

// matchTitle implements the title-matching ladder: exact full title, then
// case-insensitive substring, then token overlap. Exact always wins, even
// when partial matches would also apply to other tasks.
func (r *Resolver) matchTitle(text string, scope []Task) ([]Task, *ClarificationError) {
	lowered := strings.ToLower(text)

	var exact []Task
	for _, t := range scope {
		if strings.ToLower(t.Title) == lowered {
			exact = append(exact, t)
		}
	}
	if len(exact) == 1 {
		return exact, nil
	}
	if len(exact) > 1 {
		return nil, &ClarificationError{
			Type:              ClarificationMultipleMatches,
			SuggestedQuestion: multipleMatchesQuestion(exact),
			Candidates:        exact,
		}
	}

	var substr []Task
	for _, t := range scope {
		if strings.Contains(strings.ToLower(t.Title), lowered) {
			substr = append(substr, t)
		}
	}
	if len(substr) == 1 {
		return substr, nil
	}
	if len(substr) > 1 {
		return nil, &ClarificationError{
			Type:              ClarificationMultipleMatches,
			SuggestedQuestion: multipleMatchesQuestion(substr),
			Candidates:        substr,
		}
	}

	// Token fallback: whitespace tokens of length >= 3, any token as a
	// substring of the title.
	var tokens []string
	for _, tok := range strings.Fields(lowered) {
		if len(tok) >= 3 {
			tokens = append(tokens, tok)
		}
	}
	var tokenMatches []Task
	for _, t := range scope {
		title := strings.ToLower(t.Title)
		for _, tok := range tokens {
			if strings.Contains(title, tok) {
				tokenMatches = append(tokenMatches, t)
				break
			}
		}
	}
	if len(tokenMatches) == 1 {
		return tokenMatches, nil
	}
	if len(tokenMatches) > 1 {
		return nil, &ClarificationError{
			Type:              ClarificationMultipleMatches,
			SuggestedQuestion: multipleMatchesQuestion(tokenMatches),
			Candidates:        tokenMatches,
		}
	}

	return nil, &ClarificationError{
		Type:              ClarificationWhichTask,
		SuggestedQuestion: fmt.Sprintf("I could not find a task matching %q. Which task do you mean?", text),
	}
}

func isBulkRef(ref TaskRef) bool {
	return ref.All || bulkWords[strings.ToLower(strings.TrimSpace(ref.Text))]
}

func multipleMatchesQuestion(candidates []Task) string {
	titles := make([]string, len(candidates))
	for i, c := range candidates {
		titles[i] = fmt.Sprintf("%q", c.Title)
	}
	return fmt.Sprintf("Multiple tasks match: %s. Which one do you mean?",
		strings.Join(titles, ", "))
}
