//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package meetingtask turns a meeting recording into reviewed tasks.
//
// The workflow transcribes the recording, drafts minutes and action items,
// critiques and refines them in a bounded loop, then halts before
// create_tasks so a person can review. ContinueAfterReview applies the
// reviewer's edits and creates the tasks, optionally emailing assignees.
package meetingtask

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/model"
	"github.com/phuocNg964/ProMeet-AI/notify"
	"github.com/phuocNg964/ProMeet-AI/speech"
)

// ErrNoInput is returned when neither an audio path nor a transcript is given.
var ErrNoInput = errors.New("meetingtask: audio_file_path or transcript is required")

// ThreadPrefix namespaces meeting threads so the saver can be shared with
// other workflows.
const ThreadPrefix = "meeting/"

// ThreadKey returns the checkpoint thread id of a meeting.
func ThreadKey(threadID string) string { return ThreadPrefix + threadID }

// Agent runs the meeting-to-task workflow.
type Agent struct {
	model       model.Model
	transcriber speech.Transcriber
	sink        backend.RecordSink
	notifier    notify.Notifier
	genConfig   model.GenerationConfig
	loop        graph.RevisionLoop

	graph    *graph.Graph
	executor *graph.Executor
}

// Option configures an Agent.
type Option func(*options)

type options struct {
	transcriber  speech.Transcriber
	notifier     notify.Notifier
	maxRevisions int
	genConfig    model.GenerationConfig
	execOpts     []graph.ExecutorOption
}

// WithTranscriber sets the speech-to-text capability.
func WithTranscriber(t speech.Transcriber) Option {
	return func(o *options) { o.transcriber = t }
}

// WithNotifier enables the notification step.
func WithNotifier(n notify.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithMaxRevisions sets the default refinement limit.
func WithMaxRevisions(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxRevisions = n
		}
	}
}

// WithGenerationConfig sets sampling parameters for every model call.
func WithGenerationConfig(cfg model.GenerationConfig) Option {
	return func(o *options) { o.genConfig = cfg }
}

// WithExecutorOptions passes options to the underlying executor.
func WithExecutorOptions(opts ...graph.ExecutorOption) Option {
	return func(o *options) { o.execOpts = append(o.execOpts, opts...) }
}

// New builds the workflow graph and its executor.
func New(m model.Model, sink backend.RecordSink, saver graph.CheckpointSaver, opts ...Option) (*Agent, error) {
	if m == nil {
		return nil, errors.New("meetingtask: model is required")
	}
	if sink == nil {
		return nil, errors.New("meetingtask: record sink is required")
	}
	o := &options{maxRevisions: DefaultMaxRevisions}
	for _, opt := range opts {
		opt(o)
	}
	a := &Agent{
		model:       m,
		transcriber: o.transcriber,
		sink:        sink,
		notifier:    o.notifier,
		genConfig:   o.genConfig,
		loop:        revisionLoop(o.maxRevisions),
	}
	g, err := a.build()
	if err != nil {
		return nil, err
	}
	exec, err := graph.NewExecutor(g, saver, o.execOpts...)
	if err != nil {
		return nil, err
	}
	a.graph, a.executor = g, exec
	return a, nil
}

func (a *Agent) build() (*graph.Graph, error) {
	sg := graph.NewStateGraph(Schema()).
		AddNode(NodeSTT, a.stt, graph.WithDescription("Transcribe the recording")).
		AddNode(NodeAnalysis, a.analysis, graph.WithNodeType(graph.NodeTypeLLM),
			graph.WithDescription("Draft minutes and action items")).
		AddNode(NodeReflection, a.reflection, graph.WithNodeType(graph.NodeTypeLLM),
			graph.WithDescription("Critique the draft")).
		AddNode(NodeRefinement, a.refinement, graph.WithNodeType(graph.NodeTypeLLM),
			graph.WithDescription("Revise the draft using the critique")).
		AddNode(NodeCreateTasks, a.createTasks, graph.WithNodeType(graph.NodeTypeTool),
			graph.WithDescription("Create tasks in the backend")).
		AddEdge(graph.Start, NodeSTT).
		AddEdge(NodeSTT, NodeAnalysis).
		AddEdge(NodeAnalysis, NodeReflection).
		AddRevisionLoop(NodeReflection, NodeRefinement, NodeCreateTasks, a.loop)
	if a.notifier != nil {
		sg.AddNode(NodeNotification, a.notification, graph.WithNodeType(graph.NodeTypeTool),
			graph.WithDescription("Email each assignee")).
			AddEdge(NodeCreateTasks, NodeNotification).
			SetFinishPoint(NodeNotification)
	} else {
		sg.SetFinishPoint(NodeCreateTasks)
	}
	return sg.Compile(graph.WithInterruptBefore(NodeCreateTasks))
}

// Graph returns the compiled workflow.
func (a *Agent) Graph() *graph.Graph { return a.graph }

// Executor returns the workflow executor.
func (a *Agent) Executor() *graph.Executor { return a.executor }

// Input starts a meeting thread.
type Input struct {
	AudioFilePath string
	Metadata      Metadata
	// Transcript skips transcription when set.
	Transcript string
	// MaxRevisions overrides the agent default when positive.
	MaxRevisions int
}

// Analyze runs the workflow until it halts for review. Calling it again on
// the same thread resumes from the last checkpoint instead of starting over.
func (a *Agent) Analyze(ctx context.Context, threadID string, in Input) (*graph.Result, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	if in.AudioFilePath == "" && strings.TrimSpace(in.Transcript) == "" {
		return nil, ErrNoInput
	}
	initial := graph.State{
		KeyAudioFilePath: in.AudioFilePath,
		KeyMetadata:      in.Metadata,
		KeyTranscript:    in.Transcript,
		KeyRevisionCount: 0,
	}
	if in.MaxRevisions > 0 {
		initial[KeyMaxRevisions] = in.MaxRevisions
	}
	res, err := a.executor.Run(ctx, ThreadKey(threadID), initial)
	return reportAs(threadID, res, err)
}

// reportAs shows results under the caller's thread id.
func reportAs(threadID string, res *graph.Result, err error) (*graph.Result, error) {
	if res != nil {
		res.ThreadID = threadID
	}
	return res, err
}

// Review carries the reviewer's edits. Empty fields leave the draft as is.
type Review struct {
	MoM         string
	ActionItems []backend.ActionItem
}

func (r Review) patch() graph.State {
	p := graph.State{}
	if strings.TrimSpace(r.MoM) != "" {
		p[KeyMoM] = r.MoM
	}
	if r.ActionItems != nil {
		p[KeyActionItems] = r.ActionItems
	}
	return p
}

// ContinueAfterReview applies the review and resumes a halted thread.
func (a *Agent) ContinueAfterReview(ctx context.Context, threadID string, review Review) (*graph.Result, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	res, err := a.executor.Resume(ctx, ThreadKey(threadID), review.patch())
	return reportAs(threadID, res, err)
}

// History returns a meeting's checkpoints, newest first.
func (a *Agent) History(ctx context.Context, threadID string, limit int) ([]*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	return a.executor.History(ctx, ThreadKey(threadID), limit)
}

// Snapshot is a typed view of a meeting thread.
type Snapshot struct {
	ThreadID      string
	Cursor        graph.Cursor
	Sequence      int64
	Transcript    string
	MoM           string
	ActionItems   []backend.ActionItem
	Critique      string
	Decision      string
	RevisionCount int
	TasksCreated  []backend.Record
	Notifications []NotificationResult
}

// Status maps the cursor to the status shown to users. A thread whose cursor
// still names a node has not finished a run.
func (s *Snapshot) Status() string {
	switch {
	case s.Cursor.IsHalted():
		return graph.StatusHalted.Display()
	case s.Cursor.IsTerminated():
		return graph.StatusTerminated.Display()
	default:
		return "processing"
	}
}

// State returns the latest snapshot of a thread, or nil when it is unknown.
func (a *Agent) State(ctx context.Context, threadID string) (*Snapshot, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	cp, err := a.executor.GetState(ctx, ThreadKey(threadID))
	if err != nil {
		return nil, fmt.Errorf("load meeting %s: %w", threadID, err)
	}
	if cp == nil {
		return nil, nil
	}
	s := cp.State
	snap := &Snapshot{
		ThreadID:      threadID,
		Cursor:        cp.Cursor,
		Sequence:      cp.Sequence,
		Transcript:    stringField(s, KeyTranscript),
		MoM:           stringField(s, KeyMoM),
		ActionItems:   actionItemsOf(s),
		Critique:      stringField(s, KeyCritique),
		Decision:      stringField(s, KeyDecision),
		RevisionCount: intField(s, KeyRevisionCount),
	}
	snap.TasksCreated, _ = s[KeyTasksCreated].([]backend.Record)
	snap.Notifications, _ = s[KeyNotificationSent].([]NotificationResult)
	return snap, nil
}
