package boardflow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deterministicOrchestrator(model ModelClient) *Orchestrator {
	return NewOrchestrator(model, WithOrchestratorRuntime(NewRuntime(
		WithIDGenerator(sequentialIDs()),
		WithClock(fixedClock()),
	)))
}

// TestOrchestratorRunSequentialAgents runs a compound instruction: one
// creation followed by a mutation that targets the created task, proving
// later agents see earlier effects.
func TestOrchestratorRunSequentialAgents(t *testing.T) {
	model := NewScriptedModel(`{
		"reasoning": "create then start",
		"agents": [
			{"agent": "task-creator", "params": {"titles": ["Write changelog"]}},
			{"agent": "task-mutator", "params": {"target": "changelog", "status": "in-progress"}}
		]
	}`)
	o := deterministicOrchestrator(model)
	snap := testBoard()

	result := o.Run(context.Background(), "add a changelog task and start it", snap)
	require.True(t, result.Success)
	require.Len(t, result.Effects, 2)
	require.Len(t, model.Calls(), 1, "classification is the only model call")

	after, err := ApplyEffects(snap, result.Effects)
	require.NoError(t, err)
	created := after.FindTask("task-1")
	require.NotNil(t, created)
	assert.Equal(t, "Write changelog", created.Title)
	assert.Equal(t, TaskStatusInProgress, created.Status)

	// Trace: classification step plus one step per agent call.
	require.Len(t, result.Trace, 3)
	assert.Equal(t, StepCompleted, result.Trace[1].Status)
	assert.Equal(t, StepCompleted, result.Trace[2].Status)
}

// TestOrchestratorAgentFailureIsIsolated verifies one failing agent call
// does not abort its siblings: their effects are still collected.
func TestOrchestratorAgentFailureIsIsolated(t *testing.T) {
	model := NewScriptedModel(`{
		"agents": [
			{"agent": "task-mutator", "params": {"target": "no such task anywhere", "status": "done"}},
			{"agent": "task-creator", "params": {"titles": ["Survivor"]}}
		]
	}`)
	o := deterministicOrchestrator(model)

	result := o.Run(context.Background(), "finish the ghost task and add survivor", testBoard())
	require.True(t, result.Success, "a single agent failure is never fatal")
	require.Len(t, result.Effects, 1)
	assert.Equal(t, "Added the task.", result.Message)

	require.Len(t, result.Trace, 3)
	assert.Equal(t, StepFailed, result.Trace[1].Status)
	assert.Equal(t, StepCompleted, result.Trace[2].Status)
}

// TestOrchestratorUnknownAgentFails treats an unknown agent name as a
// failed call, not a panic.
func TestOrchestratorUnknownAgentFails(t *testing.T) {
	model := NewScriptedModel(`{
		"agents": [
			{"agent": "coffee-maker", "params": {}},
			{"agent": "view-control", "params": {"view": "table"}}
		]
	}`)
	o := deterministicOrchestrator(model)

	result := o.Run(context.Background(), "make coffee and show the table", testBoard())
	require.True(t, result.Success)
	require.Len(t, result.Effects, 1)
	assert.Equal(t, StepFailed, result.Trace[1].Status)
	assert.Contains(t, result.Trace[1].Error, "coffee-maker")
}

// TestOrchestratorClassificationFailure is fatal: nothing to dispatch.
func TestOrchestratorClassificationFailure(t *testing.T) {
	model := NewScriptedModel()
	model.FailWith(errors.New("boom"))
	o := deterministicOrchestrator(model)

	result := o.Run(context.Background(), "do things", testBoard())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "boom")
	assert.Empty(t, result.Effects)
}

// TestOrchestratorQueryAgent answers without mutating.
func TestOrchestratorQueryAgent(t *testing.T) {
	model := NewScriptedModel(`{
		"agents": [
			{"agent": "query", "params": {"filter": {"status": "todo"}}}
		]
	}`)
	o := deterministicOrchestrator(model)

	result := o.Run(context.Background(), "what's left to do?", testBoard())
	require.True(t, result.Success)
	assert.Empty(t, result.Effects)
	require.Len(t, result.Tasks, 2)
	assert.Equal(t, "Found 2 matching tasks.", result.Message)
}

// TestOrchestratorKoreanMessages localizes agent confirmations from the
// instruction language.
func TestOrchestratorKoreanMessages(t *testing.T) {
	model := NewScriptedModel(`{
		"agents": [
			{"agent": "task-creator", "params": {"titles": ["보고서 작성"]}}
		]
	}`)
	o := deterministicOrchestrator(model)

	result := o.Run(context.Background(), "보고서 작성 태스크 만들어줘", testBoard())
	require.True(t, result.Success)
	assert.Equal(t, "작업을 추가했습니다.", result.Message)
}

// TestOrchestratorMutatorAmbiguity verifies agent target matching shares
// the resolver's fail-closed policy.
func TestOrchestratorMutatorAmbiguity(t *testing.T) {
	model := NewScriptedModel(`{
		"agents": [
			{"agent": "task-mutator", "params": {"target": "API", "status": "done"}}
		]
	}`)
	o := deterministicOrchestrator(model)

	result := o.Run(context.Background(), "finish the API task", testBoard())
	require.True(t, result.Success)
	assert.Empty(t, result.Effects, "ambiguity never guesses")
	assert.Equal(t, StepFailed, result.Trace[1].Status)
	assert.Contains(t, result.Trace[1].Error, "Which one do you mean?")
}

// TestOrchestratorStreamEmitsAgentEvents verifies agent lifecycle events
// and the single terminal event.
func TestOrchestratorStreamEmitsAgentEvents(t *testing.T) {
	model := NewScriptedModel(`{
		"agents": [
			{"agent": "view-control", "params": {"view": "todo"}}
		]
	}`)
	o := deterministicOrchestrator(model)

	var types []EventType
	var terminal *Result
	for ev := range o.Stream(context.Background(), "switch to todo view", testBoard()) {
		types = append(types, ev.Type)
		if ev.Type == EventDone || ev.Type == EventError {
			terminal = ev.Data.(*Result)
		}
	}

	require.NotNil(t, terminal)
	assert.True(t, terminal.Success)
	assert.Contains(t, types, EventAgentStart)
	assert.Contains(t, types, EventAgentComplete)
	assert.Equal(t, EventDone, types[len(types)-1])
}
