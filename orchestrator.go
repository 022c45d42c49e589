package boardflow

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"

	"go.uber.org/zap"
)

// AgentKind names a specialized agent the orchestrator can dispatch to.
type AgentKind string

const (
	// AgentTaskCreator creates new tasks.
	AgentTaskCreator AgentKind = "task-creator"

	// AgentTaskMutator updates, moves, or deletes existing tasks.
	AgentTaskMutator AgentKind = "task-mutator"

	// AgentViewControl switches views and filters.
	AgentViewControl AgentKind = "view-control"

	// AgentQuery answers questions about the board without mutating it.
	AgentQuery AgentKind = "query"
)

// AgentParams is the parameter bag of one agent call. Which fields are
// meaningful depends on the agent.
type AgentParams struct {
	// Tasks are the drafts for task-creator.
	Tasks []NewTask `json:"tasks,omitempty"`

	// Titles is the shorthand creator form: bare titles with defaults.
	Titles []string `json:"titles,omitempty"`

	// Target is a descriptive reference for task-mutator. Resolver
	// heuristics apply: title substring, token match, never an ID.
	Target string `json:"target,omitempty"`

	// All marks a bulk mutation, optionally scoped by ScopeStatus.
	All bool `json:"all,omitempty"`

	// ScopeStatus narrows a bulk mutation to one status column.
	ScopeStatus TaskStatus `json:"scopeStatus,omitempty"`

	// Status is the destination status for a status change.
	Status TaskStatus `json:"status,omitempty"`

	// Delete marks the mutation as a soft delete.
	Delete bool `json:"delete,omitempty"`

	// Changes is a sparse field update for task-mutator.
	Changes *TaskChanges `json:"changes,omitempty"`

	// View is the destination view for view-control.
	View ViewMode `json:"view,omitempty"`

	// DateFilter is the filter value for view-control.
	DateFilter string `json:"dateFilter,omitempty"`

	// Filter is the query for the query agent.
	Filter *QueryFilter `json:"filter,omitempty"`

	// Language is stamped by the orchestrator from language detection.
	Language Language `json:"-"`
}

// AgentCall is one dispatch decision made by the orchestrator.
type AgentCall struct {
	Agent  AgentKind   `json:"agent"`
	Params AgentParams `json:"params"`
	Reason string      `json:"reason,omitempty"`
}

// Decision is the orchestrator's classification of an instruction.
type Decision struct {
	Agents    []AgentCall `json:"agents"`
	Reasoning string      `json:"reasoning,omitempty"`
}

// AgentResult is the outcome of one successful agent call.
type AgentResult struct {
	Intent  Intent   `json:"intent,omitempty"`
	Effects []Effect `json:"effects,omitempty"`
	Tasks   []Task   `json:"tasks,omitempty"`
	Message string   `json:"message,omitempty"`
}

// Agent is one specialized executor. Implementations reuse the resolver's
// matching heuristics for target selection and the runtime for execution,
// so agent behavior stays deterministic given (call, snapshot).
type Agent interface {
	Kind() AgentKind
	Run(ctx context.Context, call AgentCall, snap *Snapshot) (*AgentResult, error)
}

// Orchestrator decomposes a compound instruction into ordered agent
// calls: one classification model call, then strictly sequential
// dispatch. Agents are never run concurrently - later agents may depend
// on effects of earlier ones, and the trace must have a deterministic
// step order. One agent failing is recorded and skipped, never fatal.
type Orchestrator struct {
	model    ModelClient
	resolver *Resolver
	runtime  *Runtime
	agents   map[AgentKind]Agent
	logger   *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithOrchestratorRuntime overrides the runtime shared by all agents.
func WithOrchestratorRuntime(rt *Runtime) OrchestratorOption {
	return func(o *Orchestrator) {
		o.runtime = rt
	}
}

// WithOrchestratorLogger sets the structured logger.
func WithOrchestratorLogger(logger *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// NewOrchestrator wires the orchestrator and its four standard agents.
func NewOrchestrator(model ModelClient, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		model:    model,
		resolver: NewResolver(),
		runtime:  NewRuntime(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.agents = make(map[AgentKind]Agent)
	for _, agent := range []Agent{
		&taskCreatorAgent{runtime: o.runtime},
		&taskMutatorAgent{resolver: o.resolver, runtime: o.runtime},
		&viewControlAgent{runtime: o.runtime},
		&queryAgent{runtime: o.runtime},
	} {
		o.agents[agent.Kind()] = agent
	}
	return o
}

const classifierSystemPrompt = `You decompose a task board instruction into ordered agent calls.
Reply with one JSON object and nothing else:
{"reasoning": "<why>", "agents": [{"agent": "<name>", "params": {...}, "reason": "<what this call does>"}]}

Agents:
- task-creator: params {"tasks": [{"title", ...}]} or {"titles": ["..."]}
- task-mutator: params {"target": "<descriptive words>"} or {"all": true, "scopeStatus"?: "<status>"},
  plus exactly one of {"status": "<destination>"}, {"delete": true}, {"changes": {...}}
- view-control: params {"view": "kanban"|"table"|"todo"} or {"dateFilter": "<value>"}
- query: params {"filter": {"status"?, "priority"?, "tag"?, "text"?}}

Order matters: calls run sequentially and later calls see earlier results.
Describe mutation targets with words from the instruction; never invent IDs.`

// Classify makes the single classification model call.
func (o *Orchestrator) Classify(ctx context.Context, instruction string, snap *Snapshot) (*Decision, error) {
	user := buildCompilerUserPrompt(instruction, snap, nil)
	output, err := o.model.Complete(ctx, classifierSystemPrompt, user)
	if err != nil {
		return nil, &ModelError{Stage: "orchestrator classification", Cause: err}
	}
	raw, ok := extractJSON(output)
	if !ok {
		return nil, &CompilerError{Message: "classification output contained no JSON object"}
	}
	var decision Decision
	if err := json.Unmarshal([]byte(raw), &decision); err != nil {
		return nil, &CompilerError{
			Message: fmt.Sprintf("malformed classification JSON: %v", err),
			Cause:   err,
		}
	}
	return &decision, nil
}

// Run classifies the instruction and executes the resulting agent calls
// in order, collecting effects as it goes. The working snapshot advances
// after every successful agent so later agents observe earlier effects;
// the caller's snapshot is never touched.
func (o *Orchestrator) Run(ctx context.Context, instruction string, snap *Snapshot) *Result {
	return o.run(ctx, instruction, snap, nil)
}

// Stream is Run with ordered progress events; the sequence terminates
// with exactly one done or error event carrying the *Result.
func (o *Orchestrator) Stream(ctx context.Context, instruction string, snap *Snapshot) iter.Seq[Event] {
	return func(yield func(Event) bool) {
		o.run(ctx, instruction, snap, func(ev Event) bool {
			return yield(ev)
		})
	}
}

func (o *Orchestrator) run(ctx context.Context, instruction string, snap *Snapshot, emit EmitFunc) *Result {
	trace := NewTrace(emit)
	result := &Result{Effects: []Effect{}}
	lang := DetectLanguage(instruction)

	step := trace.Begin("Orchestrator", "brain", instruction)
	decision, err := o.Classify(ctx, instruction, snap)
	if err != nil {
		trace.Fail(step, err)
		result.Error = err.Error()
		result.Trace = trace.Steps()
		trace.Emit(Event{Type: EventError, Data: result})
		return result
	}
	trace.Complete(step, decision)

	working := snap
	for i, call := range decision.Agents {
		call.Params.Language = lang
		name := fmt.Sprintf("%s (%d/%d)", call.Agent, i+1, len(decision.Agents))
		step := trace.Begin(name, agentIcon(call.Agent), call)
		trace.Emit(Event{Type: EventAgentStart, Data: call})

		agentResult, err := o.dispatch(ctx, call, working)
		if err != nil {
			// One agent failing never aborts its siblings.
			agentErr := &AgentError{Agent: call.Agent, Cause: err}
			o.logger.Warn("agent call failed",
				zap.String("agent", string(call.Agent)),
				zap.Error(agentErr))
			trace.Fail(step, agentErr)
			trace.Emit(Event{Type: EventAgentError, Data: agentErr.Error()})
			continue
		}

		result.Effects = append(result.Effects, agentResult.Effects...)
		if len(agentResult.Tasks) > 0 {
			result.Tasks = agentResult.Tasks
		}
		if agentResult.Message != "" {
			result.Message = agentResult.Message
		}
		if agentResult.Intent != nil {
			result.Intent = agentResult.Intent
			trace.Emit(Event{Type: EventIntent, Data: agentResult.Intent})
		}
		trace.Complete(step, agentResult)
		trace.Emit(Event{Type: EventAgentComplete, Data: agentResult})

		// Advance the working snapshot so the next agent sees this
		// agent's effects.
		if len(agentResult.Effects) > 0 {
			next, applyErr := ApplyEffects(working, agentResult.Effects)
			if applyErr == nil {
				working = next
			} else {
				o.logger.Warn("could not advance working snapshot",
					zap.Error(applyErr))
			}
		}
	}

	if result.Message == "" {
		result.Message = FallbackMessage(IntentQueryTasks, lang)
	}
	result.Success = true
	result.Trace = trace.Steps()
	trace.Emit(Event{Type: EventDone, Data: result})
	return result
}

// dispatch routes one call to its agent, converting panics into errors so
// a misbehaving agent stays isolated to its own step.
func (o *Orchestrator) dispatch(ctx context.Context, call AgentCall, snap *Snapshot) (result *AgentResult, err error) {
	agent, ok := o.agents[call.Agent]
	if !ok {
		return nil, fmt.Errorf("unknown agent %q", call.Agent)
	}
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return agent.Run(ctx, call, snap)
}

func agentIcon(kind AgentKind) string {
	switch kind {
	case AgentTaskCreator:
		return "plus"
	case AgentTaskMutator:
		return "pencil"
	case AgentViewControl:
		return "layout"
	case AgentQuery:
		return "magnifier"
	default:
		return "robot"
	}
}

// agentMeta is the shared metadata for intents synthesized by agents.
func agentMeta() IntentMeta {
	return IntentMeta{Confidence: 1, Source: SourceAgent}
}

// taskCreatorAgent creates new tasks.
type taskCreatorAgent struct {
	runtime *Runtime
}

func (a *taskCreatorAgent) Kind() AgentKind { return AgentTaskCreator }

func (a *taskCreatorAgent) Run(_ context.Context, call AgentCall, snap *Snapshot) (*AgentResult, error) {
	drafts := call.Params.Tasks
	for _, title := range call.Params.Titles {
		drafts = append(drafts, NewTask{Title: title})
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("no tasks to create")
	}

	intent := CreateTaskIntent{
		IntentMeta: agentMeta(),
		Kind:       IntentCreateTask,
		Tasks:      drafts,
	}
	exec := a.runtime.Execute(intent, snap)
	if !exec.Success {
		return nil, &RuntimeError{Code: "create_failed", Detail: exec.Error}
	}
	return &AgentResult{
		Intent:  intent,
		Effects: exec.Effects,
		Message: FallbackMessage(IntentCreateTask, call.Params.Language),
	}, nil
}

// taskMutatorAgent updates, moves, or soft-deletes existing tasks. Target
// selection goes through the resolver so agent matching behaves exactly
// like instruction matching.
type taskMutatorAgent struct {
	resolver *Resolver
	runtime  *Runtime
}

func (a *taskMutatorAgent) Kind() AgentKind { return AgentTaskMutator }

func (a *taskMutatorAgent) Run(_ context.Context, call AgentCall, snap *Snapshot) (*AgentResult, error) {
	ref := TaskRef{
		Text:   call.Params.Target,
		All:    call.Params.All,
		Status: call.Params.ScopeStatus,
	}

	var (
		sk   *Skeleton
		kind IntentKind
	)
	switch {
	case call.Params.Delete:
		kind = IntentDeleteTask
		sk = &Skeleton{Kind: kind, Confidence: 1, Targets: []TaskRef{ref}}
	case call.Params.Changes != nil && !call.Params.Changes.Empty():
		kind = IntentUpdateTask
		sk = &Skeleton{Kind: kind, Confidence: 1, Target: &ref, Changes: call.Params.Changes}
	case call.Params.Status != "":
		kind = IntentChangeStatus
		sk = &Skeleton{
			Kind:       kind,
			Confidence: 1,
			Targets:    []TaskRef{ref},
			Status:     call.Params.Status,
		}
	default:
		return nil, fmt.Errorf("mutator call specifies no mutation")
	}

	intent, err := a.resolver.Resolve(sk, snap)
	if err != nil {
		return nil, err
	}
	intent = withAgentSource(intent)

	exec := a.runtime.Execute(intent, snap)
	if !exec.Success {
		return nil, &RuntimeError{Code: "mutation_failed", Detail: exec.Error}
	}
	return &AgentResult{
		Intent:  intent,
		Effects: exec.Effects,
		Message: FallbackMessage(kind, call.Params.Language),
	}, nil
}

// viewControlAgent switches views and the date filter.
type viewControlAgent struct {
	runtime *Runtime
}

func (a *viewControlAgent) Kind() AgentKind { return AgentViewControl }

func (a *viewControlAgent) Run(_ context.Context, call AgentCall, snap *Snapshot) (*AgentResult, error) {
	var intent Intent
	var kind IntentKind
	switch {
	case call.Params.View != "":
		kind = IntentChangeView
		intent = ChangeViewIntent{
			IntentMeta: agentMeta(),
			Kind:       kind,
			View:       call.Params.View,
		}
	case call.Params.DateFilter != "":
		kind = IntentSetDateFilter
		intent = SetDateFilterIntent{
			IntentMeta: agentMeta(),
			Kind:       kind,
			Filter:     call.Params.DateFilter,
		}
	default:
		return nil, fmt.Errorf("view-control call names no view or filter")
	}

	exec := a.runtime.Execute(intent, snap)
	if !exec.Success {
		return nil, &RuntimeError{Code: "view_failed", Detail: exec.Error}
	}
	return &AgentResult{
		Intent:  intent,
		Effects: exec.Effects,
		Message: FallbackMessage(kind, call.Params.Language),
	}, nil
}

// queryAgent answers questions about the board.
type queryAgent struct {
	runtime *Runtime
}

func (a *queryAgent) Kind() AgentKind { return AgentQuery }

func (a *queryAgent) Run(_ context.Context, call AgentCall, snap *Snapshot) (*AgentResult, error) {
	filter := QueryFilter{}
	if call.Params.Filter != nil {
		filter = *call.Params.Filter
	}
	intent := QueryTasksIntent{
		IntentMeta: agentMeta(),
		Kind:       IntentQueryTasks,
		Filter:     filter,
	}
	exec := a.runtime.Execute(intent, snap)
	if !exec.Success {
		return nil, &RuntimeError{Code: "query_failed", Detail: exec.Error}
	}
	message := fmt.Sprintf("Found %d matching tasks.", len(exec.Tasks))
	if call.Params.Language == LanguageKorean {
		message = fmt.Sprintf("%d개의 작업을 찾았습니다.", len(exec.Tasks))
	}
	return &AgentResult{
		Intent:  intent,
		Tasks:   exec.Tasks,
		Message: message,
	}, nil
}

// withAgentSource restamps a resolver-produced intent as agent-sourced.
func withAgentSource(intent Intent) Intent {
	switch in := intent.(type) {
	case UpdateTaskIntent:
		in.Source = SourceAgent
		return in
	case ChangeStatusIntent:
		in.Source = SourceAgent
		return in
	case DeleteTaskIntent:
		in.Source = SourceAgent
		return in
	case RestoreTaskIntent:
		in.Source = SourceAgent
		return in
	default:
		return intent
	}
}
