package boardflow

import (
	"fmt"
	"strings"
)

// ModelError indicates that the external chat-completion capability failed:
// a timeout, a transport error, or output that was not usable at all.
type ModelError struct {
	Stage string // which pipeline stage made the call
	Cause error
}

// Error implements the error interface.
func (e *ModelError) Error() string {
	return fmt.Sprintf("model call failed during %s: %v", e.Stage, e.Cause)
}

// Unwrap implements the unwrap interface for error chains.
func (e *ModelError) Unwrap() error {
	return e.Cause
}

// CompilerError indicates that the skeleton compiler produced unusable
// output: malformed JSON, an unknown intent kind, or a missing required
// field for the declared kind. Fatal for the turn - the caller may
// re-prompt the user, but this stage never retries.
type CompilerError struct {
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CompilerError) Error() string {
	return "compiler: " + e.Message
}

// Unwrap implements the unwrap interface for error chains.
func (e *CompilerError) Unwrap() error {
	return e.Cause
}

// ClarificationType categorizes why the resolver could not bind a
// reference to a concrete task.
type ClarificationType string

const (
	// ClarificationWhichTask means no task matched the reference.
	ClarificationWhichTask ClarificationType = "which_task"

	// ClarificationMissingTitle means a task was to be created without
	// a usable title.
	ClarificationMissingTitle ClarificationType = "missing_title"

	// ClarificationAmbiguousAction means the instruction named a target
	// but not what to do with it.
	ClarificationAmbiguousAction ClarificationType = "ambiguous_action"

	// ClarificationMultipleMatches means two or more tasks matched the
	// reference equally well.
	ClarificationMultipleMatches ClarificationType = "multiple_matches"
)

// ClarificationError is the resolver declaring ambiguity.
//
// It is terminal for the current turn but is not a failure: the transport
// reports it as a successful response carrying a question for the user.
// Candidates, when present, are in snapshot order.
type ClarificationError struct {
	Type              ClarificationType `json:"type"`
	SuggestedQuestion string            `json:"suggestedQuestion"`
	Candidates        []Task            `json:"candidates,omitempty"`
}

// Error implements the error interface.
func (e *ClarificationError) Error() string {
	if len(e.Candidates) == 0 {
		return fmt.Sprintf("clarification needed (%s): %s", e.Type, e.SuggestedQuestion)
	}
	titles := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		titles[i] = c.Title
	}
	return fmt.Sprintf("clarification needed (%s): %s [candidates: %s]",
		e.Type, e.SuggestedQuestion, strings.Join(titles, ", "))
}

// Runtime error codes. These are machine-checkable: ExecResult.Error is
// always "<code>: <detail>".
const (
	// RuntimeCodeTaskNotFound means an intent targeted a task ID absent
	// from the snapshot.
	RuntimeCodeTaskNotFound = "task_not_found"

	// RuntimeCodeInvalidStatus means a status change named a value
	// outside the known set.
	RuntimeCodeInvalidStatus = "invalid_status"

	// RuntimeCodeInvalidView means a view change named an unknown view.
	RuntimeCodeInvalidView = "invalid_view"

	// RuntimeCodeEmptyTargets means a mutation resolved to zero tasks.
	RuntimeCodeEmptyTargets = "empty_targets"

	// RuntimeCodeEmptyTitle means a task was to be created with an
	// empty title.
	RuntimeCodeEmptyTitle = "empty_title"

	// RuntimeCodeNothingToUndo means no undoable mutation is recorded
	// in the snapshot state.
	RuntimeCodeNothingToUndo = "nothing_to_undo"
)

// RuntimeError is a domain-level execution failure. It is reported to the
// user and leaves state unchanged; the runtime never panics or throws.
type RuntimeError struct {
	Code   string
	Detail string
}

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return e.Code + ": " + e.Detail
}

// AgentError indicates that one orchestrated agent call failed. It is
// isolated to that step - sibling agent calls still run.
type AgentError struct {
	Agent AgentKind
	Cause error
}

// Error implements the error interface.
func (e *AgentError) Error() string {
	return fmt.Sprintf("agent %s failed: %v", e.Agent, e.Cause)
}

// Unwrap implements the unwrap interface for error chains.
func (e *AgentError) Unwrap() error {
	return e.Cause
}
