package boardflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func deterministicPipeline(model ModelClient) *Pipeline {
	return NewPipeline(model, WithRuntime(NewRuntime(
		WithIDGenerator(sequentialIDs()),
		WithClock(fixedClock()),
	)))
}

// TestPipelineRunHappyPath drives a full turn: compile, resolve,
// execute, diff, interpret - exactly two model calls.
func TestPipelineRunHappyPath(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "change_status", "confidence": 0.95, "targets": [{"text": "login bug"}], "status": "done"}`,
		"Moved the login bug to done.",
	)
	p := deterministicPipeline(model)
	snap := testBoard()

	result := p.Run(context.Background(), "mark the login bug as done", snap)
	require.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, "Moved the login bug to done.", result.Message)
	assert.Nil(t, result.Clarification)

	cs, ok := result.Intent.(ChangeStatusIntent)
	require.True(t, ok)
	assert.Equal(t, []string{"t-1"}, cs.TaskIDs)

	require.Len(t, result.Effects, 1)
	require.Len(t, model.Calls(), 2)

	// The request snapshot was never touched; applying the effects
	// produces the new state.
	assert.Equal(t, TaskStatusInProgress, snap.FindTask("t-1").Status)
	after, err := ApplyEffects(snap, result.Effects)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusDone, after.FindTask("t-1").Status)
}

// TestPipelineClarificationIsSuccess verifies an ambiguous reference
// ends the turn successfully with a question and no effects.
func TestPipelineClarificationIsSuccess(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "delete_task", "confidence": 0.9, "targets": [{"text": "API"}]}`,
	)
	p := deterministicPipeline(model)

	result := p.Run(context.Background(), "delete the API task", testBoard())
	require.True(t, result.Success)
	assert.Empty(t, result.Effects)
	require.NotNil(t, result.Clarification)
	assert.Equal(t, ClarificationMultipleMatches, result.Clarification.Type)
	assert.Len(t, result.Clarification.Candidates, 2)
	assert.Equal(t, result.Clarification.SuggestedQuestion, result.Message)

	// The interpreter call never happens on a clarification turn.
	assert.Len(t, model.Calls(), 1)
}

// TestPipelineModelClarification handles the model asking its own
// question via request_clarification.
func TestPipelineModelClarification(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "request_clarification", "confidence": 0.4, "question": "Which task should I delete?"}`,
	)
	p := deterministicPipeline(model)

	result := p.Run(context.Background(), "delete it maybe?", testBoard())
	require.True(t, result.Success)
	assert.Equal(t, "Which task should I delete?", result.Message)
	assert.Empty(t, result.Effects)
}

// TestPipelineCompilerFailure surfaces a model transport failure as a
// failed turn.
func TestPipelineCompilerFailure(t *testing.T) {
	model := NewScriptedModel()
	model.FailWith(errors.New("boom"))
	p := deterministicPipeline(model)

	result := p.Run(context.Background(), "do something", testBoard())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "boom")
	assert.Empty(t, result.Effects)
}

// TestPipelineRuntimeFailure surfaces domain failures with their code.
func TestPipelineRuntimeFailure(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "undo", "confidence": 1}`,
	)
	p := deterministicPipeline(model)

	result := p.Run(context.Background(), "undo", testBoard())
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, RuntimeCodeNothingToUndo)
}

// TestPipelineInterpreterFailureDegrades keeps effects authoritative
// when only the cosmetic stage fails.
func TestPipelineInterpreterFailureDegrades(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "delete_task", "confidence": 0.9, "targets": [{"text": "signup"}]}`,
	)
	p := deterministicPipeline(model)

	result := p.Run(context.Background(), "delete the signup task", testBoard())
	require.True(t, result.Success)
	require.Len(t, result.Effects, 1)
	assert.Equal(t, "Deleted the task.", result.Message)
}

// TestPipelineStreamEventOrder verifies the streamed event sequence and
// its single terminal event.
func TestPipelineStreamEventOrder(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "change_status", "confidence": 0.95, "targets": [{"text": "login bug"}], "status": "done"}`,
		"Done!",
	)
	p := deterministicPipeline(model)

	var types []EventType
	var terminal *Result
	for ev := range p.Stream(context.Background(), "finish the login bug", testBoard()) {
		types = append(types, ev.Type)
		if ev.Type == EventDone || ev.Type == EventError {
			terminal = ev.Data.(*Result)
		}
	}

	require.NotNil(t, terminal)
	assert.True(t, terminal.Success)
	assert.Equal(t, EventDone, types[len(types)-1])

	terminals := 0
	for _, typ := range types {
		if typ == EventDone || typ == EventError {
			terminals++
		}
	}
	assert.Equal(t, 1, terminals, "exactly one terminal event")
	assert.Contains(t, types, EventIntent)
	assert.Contains(t, types, EventStepStart)
	assert.Contains(t, types, EventStepComplete)
}

// TestPipelineStreamEarlyStop verifies stopping consumption early does
// not panic and the pipeline still completes its work.
func TestPipelineStreamEarlyStop(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "change_view", "confidence": 1, "view": "table"}`,
		"Switched to table view.",
	)
	p := deterministicPipeline(model)

	count := 0
	for range p.Stream(context.Background(), "switch to table", testBoard()) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
	// Both model calls still happened: the run is not aborted by a
	// departing consumer.
	assert.Len(t, model.Calls(), 2)
}

// TestPipelineTraceRecordsStages verifies the trace covers every stage
// of a successful turn.
func TestPipelineTraceRecordsStages(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "query_tasks", "confidence": 0.8, "filter": {"status": "todo"}}`,
		"Two tasks are todo.",
	)
	p := deterministicPipeline(model)

	result := p.Run(context.Background(), "what's still todo?", testBoard())
	require.True(t, result.Success)
	require.Len(t, result.Tasks, 2)

	names := make([]string, len(result.Trace))
	for i, step := range result.Trace {
		names[i] = step.Name
		assert.Equal(t, StepCompleted, step.Status)
	}
	assert.Equal(t, []string{
		"Fast-path matcher",
		"Skeleton compiler",
		"Symbol resolver",
		"Runtime",
		"Snapshot differ",
		"Result interpreter",
	}, names)
}

// TestResultJSONRoundTrip decodes a marshaled result back into the
// concrete intent variant.
func TestResultJSONRoundTrip(t *testing.T) {
	model := NewScriptedModel(
		`{"kind": "change_status", "confidence": 0.9, "targets": [{"text": "login bug"}], "status": "done"}`,
		"Done.",
	)
	p := deterministicPipeline(model)
	result := p.Run(context.Background(), "finish the login bug", testBoard())
	require.True(t, result.Success)

	payload, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded Result
	require.NoError(t, json.Unmarshal(payload, &decoded))
	intent, ok := decoded.Intent.(ChangeStatusIntent)
	require.True(t, ok, "got %T", decoded.Intent)
	assert.Equal(t, []string{"t-1"}, intent.TaskIDs)
	wantEffects, err := json.Marshal(result.Effects)
	require.NoError(t, err)
	gotEffects, err := json.Marshal(decoded.Effects)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantEffects), string(gotEffects))
	assert.Equal(t, result.Message, decoded.Message)
}
