package boardflow

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// StepStatus is the lifecycle state of one trace step.
type StepStatus string

const (
	// StepRunning means the stage or agent is still executing.
	StepRunning StepStatus = "running"

	// StepCompleted means the stage or agent finished successfully.
	StepCompleted StepStatus = "completed"

	// StepFailed means the stage or agent returned an error.
	StepFailed StepStatus = "failed"
)

// AgentStep is the observability record of one pipeline stage or agent
// invocation. Steps are append-only within a request and discarded when
// the request completes; nothing here is persisted.
type AgentStep struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Icon        string     `json:"icon,omitempty"`
	Status      StepStatus `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt time.Time  `json:"completedAt,omitzero"`
	DurationMs  int64      `json:"durationMs,omitempty"`
	Input       any        `json:"input,omitempty"`
	Output      any        `json:"output,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// EventType identifies a progress event on the stream.
type EventType string

const (
	// EventStepStart announces a pipeline stage starting.
	EventStepStart EventType = "step:start"

	// EventStepComplete announces a pipeline stage finishing.
	EventStepComplete EventType = "step:complete"

	// EventAgentStart announces an orchestrated agent call starting.
	EventAgentStart EventType = "agent:start"

	// EventAgentComplete announces an agent call finishing.
	EventAgentComplete EventType = "agent:complete"

	// EventAgentError announces an agent call failing. The turn
	// continues with the remaining agents.
	EventAgentError EventType = "agent:error"

	// EventIntent carries the resolved intent as soon as it exists.
	EventIntent EventType = "intent"

	// EventDone terminates the stream with the full result payload.
	EventDone EventType = "done"

	// EventError terminates the stream with a fatal error.
	EventError EventType = "error"
)

// Event is one entry in the ordered progress stream. Every stream ends
// with exactly one done or error event.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data,omitempty"`
}

// EmitFunc receives progress events in order. Returning false stops
// further emission; the pipeline keeps executing either way, because an
// in-flight execution stays authoritative even after the consumer is
// gone.
type EmitFunc func(Event) bool

// Trace accumulates AgentSteps for one request and forwards step
// transitions to an optional emitter.
type Trace struct {
	mu    sync.Mutex
	steps []*AgentStep
	emit  EmitFunc
	live  bool
	now   func() time.Time
}

// NewTrace creates a trace. emit may be nil for non-streaming use.
func NewTrace(emit EmitFunc) *Trace {
	return &Trace{emit: emit, live: emit != nil, now: time.Now}
}

// Emit forwards a non-step event (intent, agent transitions, done/error)
// to the consumer, respecting an earlier stop.
func (tr *Trace) Emit(ev Event) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.emitLocked(ev)
}

func (tr *Trace) emitLocked(ev Event) {
	if !tr.live {
		return
	}
	if !tr.emit(ev) {
		tr.live = false
	}
}

// Begin records a new running step and emits step:start.
func (tr *Trace) Begin(name, icon string, input any) *AgentStep {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	step := &AgentStep{
		ID:        uuid.NewString(),
		Name:      name,
		Icon:      icon,
		Status:    StepRunning,
		StartedAt: tr.now(),
		Input:     input,
	}
	tr.steps = append(tr.steps, step)
	tr.emitLocked(Event{Type: EventStepStart, Data: *step})
	return step
}

// Complete marks a step finished and emits step:complete.
func (tr *Trace) Complete(step *AgentStep, output any) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	step.Status = StepCompleted
	step.CompletedAt = tr.now()
	step.DurationMs = step.CompletedAt.Sub(step.StartedAt).Milliseconds()
	step.Output = output
	tr.emitLocked(Event{Type: EventStepComplete, Data: *step})
}

// Fail marks a step failed and emits step:complete with the error
// attached; fatal pipeline errors are reported separately via the
// terminal error event.
func (tr *Trace) Fail(step *AgentStep, err error) {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	step.Status = StepFailed
	step.CompletedAt = tr.now()
	step.DurationMs = step.CompletedAt.Sub(step.StartedAt).Milliseconds()
	if err != nil {
		step.Error = err.Error()
	}
	tr.emitLocked(Event{Type: EventStepComplete, Data: *step})
}

// Steps returns a copy of the recorded steps in order.
func (tr *Trace) Steps() []AgentStep {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	out := make([]AgentStep, len(tr.steps))
	for i, s := range tr.steps {
		out[i] = *s
	}
	return out
}
