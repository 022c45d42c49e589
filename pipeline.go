package boardflow

import (
	"context"
	"encoding/json"
	"errors"
	"iter"

	"go.uber.org/zap"
)

// Pipeline is the single-intent compilation path: fast-path hint,
// skeleton compilation, symbol resolution, execution, diff, and result
// interpretation, in that order, with at most two model calls.
//
// A pipeline is safe for concurrent use: every Run gets its own trace and
// the snapshot is request-scoped. There is no shared mutable state.
type Pipeline struct {
	compiler    *Compiler
	resolver    *Resolver
	runtime     *Runtime
	interpreter *Interpreter
	logger      *zap.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithLogger sets the structured logger used by all stages.
func WithLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithRuntime overrides the runtime, letting callers inject deterministic
// ID generation and clocks.
func WithRuntime(rt *Runtime) PipelineOption {
	return func(p *Pipeline) {
		p.runtime = rt
	}
}

// NewPipeline wires the standard pipeline around one model client.
func NewPipeline(model ModelClient, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		resolver: NewResolver(),
		runtime:  NewRuntime(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.compiler = NewCompiler(model, p.logger)
	p.interpreter = NewInterpreter(model, p.logger)
	return p
}

// Result is the full outcome of one pipeline turn.
//
// Clarification is a success at this level: the turn ended with a
// question, not a failure. Error is set only for compiler and runtime
// failures.
type Result struct {
	Success       bool                `json:"success"`
	Skeleton      *Skeleton           `json:"skeleton,omitempty"`
	Intent        Intent              `json:"intent,omitempty"`
	Effects       []Effect            `json:"effects"`
	Message       string              `json:"message,omitempty"`
	Tasks         []Task              `json:"tasks,omitempty"`
	Trace         []AgentStep         `json:"trace"`
	Error         string              `json:"error,omitempty"`
	Clarification *ClarificationError `json:"clarification,omitempty"`
}

// UnmarshalJSON decodes a wire-form result, routing the intent field
// through ParseIntent so callers get the concrete variant back.
func (r *Result) UnmarshalJSON(data []byte) error {
	type wire Result
	aux := struct {
		*wire
		Intent json.RawMessage `json:"intent,omitempty"`
	}{wire: (*wire)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Intent) == 0 || string(aux.Intent) == "null" {
		return nil
	}
	intent, err := ParseIntent(aux.Intent)
	if err != nil {
		return err
	}
	r.Intent = intent
	return nil
}

// Run executes the pipeline without streaming.
func (p *Pipeline) Run(ctx context.Context, instruction string, snap *Snapshot) *Result {
	return p.run(ctx, instruction, snap, nil)
}

// Stream executes the pipeline, yielding progress events in order. The
// sequence always terminates with exactly one done or error event, whose
// data is the *Result. If the consumer stops early the pipeline still
// runs to completion - computed effects stay authoritative.
func (p *Pipeline) Stream(ctx context.Context, instruction string, snap *Snapshot) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		p.run(ctx, instruction, snap, func(ev Event) bool {
			return yield(ev)
		})
	}
}

func (p *Pipeline) run(ctx context.Context, instruction string, snap *Snapshot, emit EmitFunc) *Result {
	trace := NewTrace(emit)
	result := &Result{Effects: []Effect{}}

	fail := func(step *AgentStep, err error) *Result {
		trace.Fail(step, err)
		result.Error = err.Error()
		result.Trace = trace.Steps()
		trace.Emit(Event{Type: EventError, Data: result})
		return result
	}

	// Fast path: cheap heuristics, language detection. Advisory only.
	step := trace.Begin("Fast-path matcher", "zap", instruction)
	match := MatchFastPath(instruction)
	lang := match.Hint.Language
	trace.Complete(step, match.Hint)

	// Skeleton compilation: the one identity-free model call.
	step = trace.Begin("Skeleton compiler", "sparkles", instruction)
	var hint *Hint
	if match.Hit {
		hint = &match.Hint
	}
	skeleton, err := p.compiler.Compile(ctx, instruction, snap, hint)
	if err != nil {
		return fail(step, err)
	}
	result.Skeleton = skeleton
	trace.Complete(step, skeleton)

	// Symbol resolution: deterministic identity binding.
	step = trace.Begin("Symbol resolver", "link", skeleton.Kind)
	intent, err := p.resolver.Resolve(skeleton, snap)
	if err != nil {
		clarif, ok := err.(*ClarificationError)
		if !ok {
			return fail(step, err)
		}
		// A clarification is a valid terminal outcome, not a failure.
		trace.Complete(step, clarif)
		result.Success = true
		result.Clarification = clarif
		result.Message = clarif.SuggestedQuestion
		result.Trace = trace.Steps()
		trace.Emit(Event{Type: EventDone, Data: result})
		return result
	}
	result.Intent = intent
	trace.Complete(step, intent)
	trace.Emit(Event{Type: EventIntent, Data: intent})

	// The model asked for clarification on its own.
	if rc, ok := intent.(RequestClarificationIntent); ok {
		result.Success = true
		result.Clarification = &ClarificationError{
			Type:              ClarificationAmbiguousAction,
			SuggestedQuestion: rc.Question,
		}
		result.Message = rc.Question
		result.Trace = trace.Steps()
		trace.Emit(Event{Type: EventDone, Data: result})
		return result
	}

	// Execution: pure, deterministic, no I/O.
	step = trace.Begin("Runtime", "gear", intent.IntentKind())
	exec := p.runtime.Execute(intent, snap)
	if !exec.Success {
		trace.Fail(step, errors.New(exec.Error))
		result.Error = exec.Error
		result.Trace = trace.Steps()
		trace.Emit(Event{Type: EventError, Data: result})
		return result
	}
	result.Effects = exec.Effects
	result.Tasks = exec.Tasks
	trace.Complete(step, exec)

	// Diff for audit and interpreter context. The request snapshot is
	// cloned by ApplyEffects, never touched.
	step = trace.Begin("Snapshot differ", "scale", nil)
	diff := &SnapshotDiff{}
	after, applyErr := ApplyEffects(snap, exec.Effects)
	if applyErr != nil {
		// The effects are still authoritative; only the audit diff is
		// degraded.
		p.logger.Warn("diff apply failed", zap.Error(applyErr))
		trace.Fail(step, applyErr)
	} else {
		diff = DiffSnapshots(snap, after)
		trace.Complete(step, diff)
	}

	// Interpretation: cosmetic, falls back on model failure.
	step = trace.Begin("Result interpreter", "speech", nil)
	result.Message = p.interpreter.Interpret(ctx, intent, exec, diff, lang)
	trace.Complete(step, result.Message)

	result.Success = true
	result.Trace = trace.Steps()
	trace.Emit(Event{Type: EventDone, Data: result})
	return result
}
