//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	oteltrace "go.opentelemetry.io/otel/trace"

	itelemetry "github.com/phuocNg964/ProMeet-AI/internal/telemetry"
	"github.com/phuocNg964/ProMeet-AI/log"
	"github.com/phuocNg964/ProMeet-AI/telemetry/metric"
	"github.com/phuocNg964/ProMeet-AI/telemetry/trace"
)

// RunStatus is the observable outcome of Run or Resume.
type RunStatus string

// Run statuses.
const (
	StatusHalted     RunStatus = "halted"
	StatusTerminated RunStatus = "terminated"
	StatusFaulted    RunStatus = "faulted"
)

// Display maps a status to the text shown to users.
func (s RunStatus) Display() string {
	switch s {
	case StatusHalted:
		return "awaiting_review"
	case StatusTerminated:
		return "completed"
	case StatusFaulted:
		return "failed"
	default:
		return string(s)
	}
}

// Result describes where a thread stands after Run or Resume returns.
type Result struct {
	ThreadID string
	Status   RunStatus
	// Cursor is the cursor of the latest persisted checkpoint.
	Cursor Cursor
	// State is the state of the latest persisted checkpoint.
	State State
	// Sequence is the sequence of the latest persisted checkpoint, 0 when
	// nothing was persisted.
	Sequence int64
}

// Executor drives threads through a compiled graph. One Executor may serve
// many threads concurrently; callers must not run two operations on the same
// thread at once.
type Executor struct {
	graph       *Graph
	saver       CheckpointSaver
	nodeTimeout time.Duration
	hooks       *NodeHooks
	instruments *metric.GraphInstruments
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// ExecutorOptions contains configuration options for creating an Executor.
type ExecutorOptions struct {
	// NodeTimeout bounds each node invocation. Zero disables the limit.
	NodeTimeout time.Duration
	// Hooks run around every node, ahead of the node's own hooks.
	Hooks *NodeHooks
	// Meter records the graph instruments. Nil uses the global meter.
	Meter otelmetric.Meter
}

// WithNodeTimeout sets the per-node invocation timeout.
func WithNodeTimeout(timeout time.Duration) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.NodeTimeout = timeout
	}
}

// WithExecutorHooks sets hooks that run around every node.
func WithExecutorHooks(hooks *NodeHooks) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Hooks = hooks
	}
}

// WithMeter sets the meter used for graph instruments.
func WithMeter(m otelmetric.Meter) ExecutorOption {
	return func(opts *ExecutorOptions) {
		opts.Meter = m
	}
}

// NewExecutor creates a new graph executor.
func NewExecutor(graph *Graph, saver CheckpointSaver, opts ...ExecutorOption) (*Executor, error) {
	if graph == nil {
		return nil, errors.New("graph is nil")
	}
	if saver == nil {
		return nil, errors.New("checkpoint saver is nil")
	}
	var options ExecutorOptions
	for _, opt := range opts {
		opt(&options)
	}
	instruments, err := metric.NewGraphInstruments(options.Meter)
	if err != nil {
		return nil, fmt.Errorf("graph instruments: %w", err)
	}
	return &Executor{
		graph:       graph,
		saver:       saver,
		nodeTimeout: options.NodeTimeout,
		hooks:       options.Hooks,
		instruments: instruments,
	}, nil
}

// Graph returns the graph the executor runs.
func (e *Executor) Graph() *Graph {
	return e.graph
}

// Saver returns the executor's checkpoint saver.
func (e *Executor) Saver() CheckpointSaver {
	return e.saver
}

// Run executes the thread. A brand-new thread starts at the entry node with
// initial merged into an empty state. An existing thread ignores initial and
// continues from its latest checkpoint: a halted or terminated thread is
// reported as is, without invoking any node.
//
// A node failure returns a *Fault together with a Result describing the last
// persisted checkpoint. Calling Run again retries from that checkpoint.
func (e *Executor) Run(ctx context.Context, threadID string, initial State) (*Result, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameExecuteGraph)
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyThreadID, threadID))

	cp, err := e.saver.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if cp == nil {
		state, err := e.graph.schema.Coerce(initial)
		if err != nil {
			return nil, fmt.Errorf("initial state: %w", err)
		}
		state = e.graph.schema.ApplyUpdate(State{}, state)
		log.Debugf("graph: thread %s starts at %s", threadID, e.graph.entryPoint)
		r := &run{
			threadID: threadID,
			current:  e.graph.entryPoint,
			state:    state,
			entered:  make(map[string]bool),
		}
		if f := e.save(ctx, r, At(e.graph.entryPoint), SourceInput, ""); f != nil {
			return e.fault(ctx, r, f)
		}
		return e.execute(ctx, r)
	}

	state, err := e.graph.schema.Coerce(cp.State)
	if err != nil {
		return nil, fmt.Errorf("thread %s state: %w", threadID, err)
	}
	switch cp.Cursor.Kind {
	case CursorHalted, CursorTerminated:
		cp.State = state
		status := StatusHalted
		if cp.Cursor.IsTerminated() {
			status = StatusTerminated
		}
		return e.finish(ctx, resultFrom(cp, status)), nil
	}
	cp.State = state
	log.Debugf("graph: thread %s restarts at %s (seq %d)", threadID, cp.Cursor.Node, cp.Sequence)
	return e.execute(ctx, &run{
		threadID:  threadID,
		current:   cp.Cursor.Node,
		state:     state,
		seq:       cp.Sequence,
		persisted: cp,
		entered:   make(map[string]bool),
	})
}

// Resume continues a halted thread. A non-empty patch is merged into the
// halted checkpoint first; then the halted node is executed. Resuming a
// thread that is unknown or not halted fails with *InvalidThreadStateError
// and leaves the store unchanged.
func (e *Executor) Resume(ctx context.Context, threadID string, patch State) (*Result, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	ctx, span := trace.Tracer.Start(ctx, itelemetry.SpanNameExecuteGraph)
	defer span.End()
	span.SetAttributes(attribute.String(itelemetry.KeyThreadID, threadID))

	cp, err := e.saver.Load(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if cp == nil {
		return nil, &InvalidThreadStateError{ThreadID: threadID, Op: "resume"}
	}
	if !cp.Cursor.IsHalted() {
		return nil, &InvalidThreadStateError{ThreadID: threadID, Op: "resume", Cursor: cp.Cursor}
	}
	if len(patch) > 0 {
		cp, err = e.saver.Patch(ctx, threadID, patch, e.mergeCoerced)
		if err != nil {
			return nil, fmt.Errorf("patch thread %s: %w", threadID, err)
		}
		e.countWrite(ctx, SourceUpdate)
	}
	state, err := e.graph.schema.Coerce(cp.State)
	if err != nil {
		return nil, fmt.Errorf("thread %s state: %w", threadID, err)
	}
	cp.State = state
	log.Debugf("graph: thread %s resumes at %s (seq %d)", threadID, cp.Cursor.Node, cp.Sequence)
	return e.execute(ctx, &run{
		threadID:  threadID,
		current:   cp.Cursor.Node,
		state:     state,
		seq:       cp.Sequence,
		persisted: cp,
		entered:   map[string]bool{cp.Cursor.Node: true},
	})
}

// GetState returns the latest checkpoint of the thread, or nil if the thread
// does not exist. Typed fields are restored to their declared Go types.
func (e *Executor) GetState(ctx context.Context, threadID string) (*Checkpoint, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	cp, err := e.saver.Load(ctx, threadID)
	if err != nil || cp == nil {
		return cp, err
	}
	state, err := e.graph.schema.Coerce(cp.State)
	if err != nil {
		return nil, fmt.Errorf("thread %s state: %w", threadID, err)
	}
	cp.State = state
	return cp, nil
}

// History returns up to limit checkpoints of the thread, newest first.
func (e *Executor) History(ctx context.Context, threadID string, limit int) ([]*Checkpoint, error) {
	if threadID == "" {
		return nil, ErrThreadIDRequired
	}
	return e.saver.List(ctx, threadID, limit)
}

// mergeCoerced merges a patch decoded from an external source, restoring
// typed fields on both sides so append fields keep their element type.
func (e *Executor) mergeCoerced(current, update State) State {
	schema := e.graph.schema
	cur, err := schema.Coerce(current)
	if err != nil {
		log.Warnf("graph: coerce checkpoint state: %v", err)
	}
	upd, err := schema.Coerce(update)
	if err != nil {
		log.Warnf("graph: coerce patch: %v", err)
	}
	return schema.ApplyUpdate(cur, upd)
}

// run is the per-invocation bookkeeping of the execution loop.
type run struct {
	threadID string
	current  string
	state    State
	seq      int64
	steps    int
	// persisted is the latest checkpoint written or loaded, nil when the
	// thread has none yet.
	persisted *Checkpoint
	// entered holds nodes executed, or resumed into, during this invocation.
	entered map[string]bool
}

func (e *Executor) execute(ctx context.Context, r *run) (*Result, error) {
	for {
		if err := ctx.Err(); err != nil {
			return e.fault(ctx, r, &Fault{Node: r.current, Kind: FaultCanceled, Cause: err})
		}
		if e.graph.IsInterruptBefore(r.current) && !r.entered[r.current] {
			if fault := e.save(ctx, r, Halted(r.current), SourceInterrupt, ""); fault != nil {
				return e.fault(ctx, r, fault)
			}
			log.Infof("graph: thread %s halted before %s", r.threadID, r.current)
			return e.finish(ctx, resultFrom(r.persisted, StatusHalted)), nil
		}

		node, ok := e.graph.nodes[r.current]
		if !ok {
			return e.fault(ctx, r, &Fault{
				Node:  r.current,
				Kind:  FaultDefinition,
				Cause: &UnknownNodeError{Node: r.current, Ref: "checkpoint cursor"},
			})
		}
		update, goTo, fault := e.runNode(ctx, r, node)
		if fault != nil {
			return e.fault(ctx, r, fault)
		}
		next := e.graph.schema.ApplyUpdate(r.state, update)
		if err := e.graph.schema.Validate(next); err != nil {
			return e.fault(ctx, r, &Fault{Node: node.ID, Kind: FaultInvalidResult, Cause: err})
		}
		target, err := e.resolveNext(ctx, node.ID, goTo, next)
		if err != nil {
			kind := FaultDefinition
			if !IsDefinitionError(err) {
				kind = FaultNodeExecution
			}
			return e.fault(ctx, r, &Fault{Node: node.ID, Kind: kind, Cause: err})
		}

		cursor := At(target)
		if target == End {
			cursor = Terminated()
		}
		r.state = next
		if fault := e.save(ctx, r, cursor, SourceLoop, node.ID); fault != nil {
			return e.fault(ctx, r, fault)
		}
		r.entered[node.ID] = true
		r.steps++
		if target == End {
			log.Infof("graph: thread %s terminated after %d steps", r.threadID, r.steps)
			return e.finish(ctx, resultFrom(r.persisted, StatusTerminated)), nil
		}
		r.current = target
	}
}

// runNode invokes a node with hooks, timeout and panic protection and
// returns the state update and optional routing override it produced.
func (e *Executor) runNode(ctx context.Context, r *run, node *Node) (State, string, *Fault) {
	ctx, span := trace.Tracer.Start(ctx, itelemetry.NodeSpanName(node.ID))
	defer span.End()
	itelemetry.TraceNode(span, r.threadID, node.ID, string(node.Type), r.seq)

	hooks := chainHooks(e.hooks, node.hooks)
	info := NodeInfo{
		ThreadID: r.threadID,
		Node:     node.ID,
		Type:     node.Type,
		Sequence: r.seq,
		Step:     r.steps,
		Started:  time.Now(),
	}
	input := r.state.Clone()

	result, err := hooks.runBefore(ctx, info, input)
	if err != nil {
		return e.nodeFault(ctx, span, hooks, info, &Fault{
			Node: node.ID, Kind: FaultNodeExecution, Cause: fmt.Errorf("before node hook: %w", err),
		})
	}
	if result == nil {
		var fault *Fault
		result, fault = e.invoke(ctx, node, input)
		e.instruments.NodeDuration.Record(ctx,
			float64(time.Since(info.Started).Microseconds())/1000,
			otelmetric.WithAttributes(attribute.String(itelemetry.KeyNodeID, node.ID)))
		if fault != nil {
			return e.nodeFault(ctx, span, hooks, info, fault)
		}
	}
	result, err = hooks.runAfter(ctx, info, input, result)
	if err != nil {
		return e.nodeFault(ctx, span, hooks, info, &Fault{
			Node: node.ID, Kind: FaultNodeExecution, Cause: fmt.Errorf("after node hook: %w", err),
		})
	}

	update, goTo, err := interpretResult(result)
	if err != nil {
		return e.nodeFault(ctx, span, hooks, info, &Fault{
			Node: node.ID, Kind: FaultInvalidResult, Cause: err,
		})
	}
	if goTo != "" {
		span.SetAttributes(attribute.String(itelemetry.KeyCursor, goTo))
	}
	return update, goTo, nil
}

func (e *Executor) nodeFault(
	ctx context.Context,
	span oteltrace.Span,
	hooks *NodeHooks,
	info NodeInfo,
	fault *Fault,
) (State, string, *Fault) {
	span.RecordError(fault)
	span.SetStatus(codes.Error, fault.Error())
	hooks.runFault(ctx, info, fault)
	return nil, "", fault
}

// invoke calls the node function, converting panics and timeouts to faults.
func (e *Executor) invoke(ctx context.Context, node *Node, state State) (any, *Fault) {
	if e.nodeTimeout <= 0 {
		return callNode(ctx, node, state)
	}
	ctx, cancel := context.WithTimeout(ctx, e.nodeTimeout)
	defer cancel()

	type outcome struct {
		result any
		fault  *Fault
	}
	done := make(chan outcome, 1)
	go func() {
		result, fault := callNode(ctx, node, state)
		done <- outcome{result: result, fault: fault}
	}()
	select {
	case out := <-done:
		return out.result, out.fault
	case <-ctx.Done():
		kind := FaultNodeTimeout
		if !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = FaultCanceled
		}
		return nil, &Fault{Node: node.ID, Kind: kind, Cause: ctx.Err()}
	}
}

func callNode(ctx context.Context, node *Node, state State) (result any, fault *Fault) {
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("graph: node %s panicked: %v\n%s", node.ID, p, debug.Stack())
			result = nil
			fault = &Fault{Node: node.ID, Kind: FaultNodePanic, Cause: fmt.Errorf("panic: %v", p)}
		}
	}()
	result, err := node.Function(ctx, state)
	if err != nil {
		kind := FaultNodeExecution
		if errors.Is(err, context.DeadlineExceeded) {
			kind = FaultNodeTimeout
		}
		return nil, &Fault{Node: node.ID, Kind: kind, Cause: err}
	}
	return result, nil
}

// interpretResult splits a node result into a state update and a GoTo target.
func interpretResult(result any) (State, string, error) {
	switch v := result.(type) {
	case nil:
		return nil, "", nil
	case State:
		return v, "", nil
	case map[string]any:
		return State(v), "", nil
	case *Command:
		if v == nil {
			return nil, "", nil
		}
		return v.Update, v.GoTo, nil
	case Command:
		return v.Update, v.GoTo, nil
	default:
		return nil, "", fmt.Errorf("unsupported node result type %T", result)
	}
}

// resolveNext picks the node after from. A Command target wins over
// conditional edges, which win over the static edge. A node with no outgoing
// route ends the run.
func (e *Executor) resolveNext(ctx context.Context, from, goTo string, state State) (string, error) {
	if goTo != "" {
		if goTo != End {
			if _, ok := e.graph.nodes[goTo]; !ok {
				return "", &UnknownNodeError{Node: goTo, Ref: fmt.Sprintf("command from %q", from)}
			}
		}
		return goTo, nil
	}
	if ce, ok := e.graph.conditionalEdges[from]; ok {
		outcome, err := ce.Condition(ctx, state)
		if err != nil {
			return "", fmt.Errorf("conditional edge from %q: %w", from, err)
		}
		target, ok := ce.PathMap[outcome]
		if !ok {
			return "", &UndeclaredOutcomeError{Node: from, Outcome: outcome}
		}
		return target, nil
	}
	if edge, ok := e.graph.edges[from]; ok {
		return edge.To, nil
	}
	return End, nil
}

func (e *Executor) save(ctx context.Context, r *run, cursor Cursor, source CheckpointSource, node string) *Fault {
	cp, err := e.saver.Save(ctx, SaveRequest{
		ThreadID:       r.threadID,
		ParentSequence: r.seq,
		Cursor:         cursor,
		State:          r.state,
		Source:         source,
		Node:           node,
	})
	if err != nil {
		faultNode := node
		if faultNode == "" {
			faultNode = cursor.Node
		}
		return &Fault{Node: faultNode, Kind: FaultCheckpoint, Cause: err}
	}
	e.countWrite(ctx, source)
	r.seq = cp.Sequence
	r.persisted = cp
	log.Debugf("graph: thread %s checkpoint %d cursor %s", r.threadID, cp.Sequence, cursor)
	return nil
}

func (e *Executor) countWrite(ctx context.Context, source CheckpointSource) {
	e.instruments.CheckpointWrite.Add(ctx, 1,
		otelmetric.WithAttributes(attribute.String(itelemetry.KeyStatus, string(source))))
}

func (e *Executor) fault(ctx context.Context, r *run, fault *Fault) (*Result, error) {
	log.Errorf("graph: thread %s: %v", r.threadID, fault)
	res := &Result{ThreadID: r.threadID, Status: StatusFaulted, Cursor: At(r.current)}
	if r.persisted != nil {
		res = resultFrom(r.persisted, StatusFaulted)
	}
	e.finish(ctx, res)
	return res, fault
}

func (e *Executor) finish(ctx context.Context, res *Result) *Result {
	e.instruments.RunOutcomes.Add(ctx, 1,
		otelmetric.WithAttributes(attribute.String(itelemetry.KeyStatus, string(res.Status))))
	return res
}

func resultFrom(cp *Checkpoint, status RunStatus) *Result {
	return &Result{
		ThreadID: cp.ThreadID,
		Status:   status,
		Cursor:   cp.Cursor,
		State:    cp.State,
		Sequence: cp.Sequence,
	}
}
