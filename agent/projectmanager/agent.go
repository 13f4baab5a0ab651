//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package projectmanager is a project-management chat assistant.
//
// Each message is routed to one of three paths: retrieval over internal
// documents, a tool loop over the project backend, or a direct answer.
// Every turn runs as its own graph thread, "chat/<thread>/<turn>", and the
// conversation transcript is kept as a separate checkpoint under
// "chat/<thread>".
package projectmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/knowledge"
	ktool "github.com/phuocNg964/ProMeet-AI/knowledge/tool"
	"github.com/phuocNg964/ProMeet-AI/log"
	"github.com/phuocNg964/ProMeet-AI/model"
	"github.com/phuocNg964/ProMeet-AI/tool"
)

// ErrEmptyQuery is returned for a blank chat message.
var ErrEmptyQuery = errors.New("projectmanager: query is empty")

// Defaults.
const (
	DefaultMaxDocuments  = 3
	DefaultHistoryLimit  = 20
	DefaultRouterContext = 4
)

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }

// Agent runs the chat workflow.
type Agent struct {
	model         model.Model
	kb            knowledge.Knowledge
	registry      *tool.Registry
	saver         graph.CheckpointSaver
	maxDocuments  int
	historyLimit  int
	routerContext int
	genConfig     model.GenerationConfig
	routerConfig  model.GenerationConfig
	directConfig  model.GenerationConfig

	graph    *graph.Graph
	executor *graph.Executor
}

// Option configures an Agent.
type Option func(*options)

type options struct {
	backend       Backend
	kb            knowledge.Knowledge
	tools         []tool.CallableTool
	maxDocuments  int
	historyLimit  int
	routerContext int
	genConfig     model.GenerationConfig
	routerConfig  model.GenerationConfig
	directConfig  model.GenerationConfig
	execOpts      []graph.ExecutorOption
	toolsOpts     []graph.ToolsOption
}

// WithBackend registers the project tools backed by b.
func WithBackend(b Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithKnowledge enables the document route and the search_documents tool.
func WithKnowledge(kb knowledge.Knowledge) Option {
	return func(o *options) { o.kb = kb }
}

// WithTools registers extra tools.
func WithTools(tools ...tool.CallableTool) Option {
	return func(o *options) { o.tools = append(o.tools, tools...) }
}

// WithMaxDocuments sets how many documents the retriever passes on.
func WithMaxDocuments(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxDocuments = n
		}
	}
}

// WithHistoryLimit bounds the messages a turn sees. Zero keeps everything.
func WithHistoryLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.historyLimit = n
		}
	}
}

// WithRouterContext sets how many earlier messages the router sees.
func WithRouterContext(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.routerContext = n
		}
	}
}

// WithGenerationConfig sets sampling for the document and tool routes.
func WithGenerationConfig(cfg model.GenerationConfig) Option {
	return func(o *options) { o.genConfig = cfg }
}

// WithRouterConfig sets sampling for the router.
func WithRouterConfig(cfg model.GenerationConfig) Option {
	return func(o *options) { o.routerConfig = cfg }
}

// WithDirectConfig sets sampling for direct answers.
func WithDirectConfig(cfg model.GenerationConfig) Option {
	return func(o *options) { o.directConfig = cfg }
}

// WithExecutorOptions passes options to the underlying executor.
func WithExecutorOptions(opts ...graph.ExecutorOption) Option {
	return func(o *options) { o.execOpts = append(o.execOpts, opts...) }
}

// WithToolsOptions passes options to the tool dispatch node.
func WithToolsOptions(opts ...graph.ToolsOption) Option {
	return func(o *options) { o.toolsOpts = append(o.toolsOpts, opts...) }
}

// New builds the chat graph and its executor.
func New(m model.Model, saver graph.CheckpointSaver, opts ...Option) (*Agent, error) {
	if m == nil {
		return nil, errors.New("projectmanager: model is required")
	}
	if saver == nil {
		return nil, errors.New("projectmanager: checkpoint saver is required")
	}
	o := &options{
		maxDocuments:  DefaultMaxDocuments,
		historyLimit:  DefaultHistoryLimit,
		routerContext: DefaultRouterContext,
		routerConfig:  model.GenerationConfig{Temperature: floatPtr(0)},
		directConfig:  model.GenerationConfig{Temperature: floatPtr(0.5), MaxTokens: intPtr(512)},
	}
	for _, opt := range opts {
		opt(o)
	}
	var tools []tool.CallableTool
	if o.backend != nil {
		tools = append(tools, NewTools(o.backend)...)
	}
	if o.kb != nil {
		tools = append(tools, ktool.NewSearchTool(o.kb, o.maxDocuments))
	}
	registry, err := tool.NewRegistry(append(tools, o.tools...)...)
	if err != nil {
		return nil, fmt.Errorf("projectmanager: %w", err)
	}
	a := &Agent{
		model:         m,
		kb:            o.kb,
		registry:      registry,
		saver:         saver,
		maxDocuments:  o.maxDocuments,
		historyLimit:  o.historyLimit,
		routerContext: o.routerContext,
		genConfig:     o.genConfig,
		routerConfig:  o.routerConfig,
		directConfig:  o.directConfig,
	}
	g, err := a.build(o.toolsOpts)
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

func (a *Agent) build(toolsOpts []graph.ToolsOption) (*graph.Graph, error) {
	routes := map[string]string{
		string(RouteRAG):      NodeDirectGenerator,
		string(RouteToolCall): NodeDirectGenerator,
		string(RouteDirect):   NodeDirectGenerator,
	}
	sg := graph.NewStateGraph(Schema()).
		AddNode(NodeRouter, a.router, graph.WithNodeType(graph.NodeTypeRouter),
			graph.WithDescription("Classify the message")).
		AddNode(NodeDirectGenerator, a.directGenerator, graph.WithNodeType(graph.NodeTypeLLM),
			graph.WithDescription("Answer without data")).
		AddEdge(graph.Start, NodeRouter).
		SetFinishPoint(NodeDirectGenerator)
	if a.kb != nil {
		sg.AddNode(NodeRetriever, a.retriever, graph.WithDescription("Search internal documents")).
			AddNode(NodeRAGGenerator, a.ragGenerator, graph.WithNodeType(graph.NodeTypeLLM),
				graph.WithDescription("Answer from documents")).
			AddEdge(NodeRetriever, NodeRAGGenerator).
			SetFinishPoint(NodeRAGGenerator)
		routes[string(RouteRAG)] = NodeRetriever
	}
	if len(a.registry.Names()) > 0 {
		toolsNode, err := graph.NewToolsNodeFunc(a.registry, toolsOpts...)
		if err != nil {
			return nil, err
		}
		sg.AddNode(NodeToolGenerator, graph.NewProposeNodeFunc(a.model, toolPrompt, a.registry,
			graph.WithQueryKey(KeyQuery),
			graph.WithGenerationConfig(a.genConfig),
		), graph.WithNodeType(graph.NodeTypeLLM), graph.WithDescription("Answer with tools")).
			AddNode(NodeToolCall, toolsNode, graph.WithNodeType(graph.NodeTypeTool),
				graph.WithDescription("Run requested tools")).
			AddToolsConditionalEdges(NodeToolGenerator, NodeToolCall, graph.End)
		routes[string(RouteToolCall)] = NodeToolGenerator
	}
	sg.AddConditionalEdges(NodeRouter, routeOf, routes)
	return sg.Compile()
}

// Graph returns the compiled workflow.
func (a *Agent) Graph() *graph.Graph { return a.graph }

// Executor returns the workflow executor.
func (a *Agent) Executor() *graph.Executor { return a.executor }

// Tools returns the registered tool names.
func (a *Agent) Tools() []string { return a.registry.Names() }

// Reply is the outcome of one chat turn.
type Reply struct {
	ThreadID string
	Turn     int64
	Route    Route
	Response string
}

// ThreadPrefix namespaces chat threads so the saver can be shared with
// other workflows.
const ThreadPrefix = "chat/"

// ThreadKey returns the checkpoint thread id of a conversation transcript.
func ThreadKey(threadID string) string { return ThreadPrefix + threadID }

// TurnID returns the graph thread id of a turn.
func TurnID(threadID string, turn int64) string {
	return fmt.Sprintf("%s/%d", ThreadKey(threadID), turn)
}

// Chat answers query within the conversation threadID. A turn that failed
// is retried from its last checkpoint when the same query is sent again; a
// different query discards it.
func (a *Agent) Chat(ctx context.Context, threadID, query string) (*Reply, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	history, seq, err := a.transcript(ctx, threadID)
	if err != nil {
		return nil, err
	}
	turn := seq + 1
	turnID := TurnID(threadID, turn)
	if err := a.discardStaleTurn(ctx, turnID, query); err != nil {
		return nil, err
	}

	window := trimHistory(history, a.historyLimit)
	res, err := a.executor.Run(ctx, turnID, graph.State{
		graph.StateKeyMessages: window,
		KeyQuery:               query,
	})
	if err != nil {
		return nil, err
	}
	if res.Status != graph.StatusTerminated {
		return nil, fmt.Errorf("projectmanager: turn %s ended %s", turnID, res.Status)
	}

	msgs := graph.Messages(res.State)
	added := msgs[min(len(window), len(msgs)):]
	all := make([]model.Message, 0, len(history)+len(added))
	all = append(append(all, history...), added...)
	if _, err := a.saver.Save(ctx, graph.SaveRequest{
		ThreadID:       ThreadKey(threadID),
		ParentSequence: seq,
		Cursor:         graph.Terminated(),
		State:          graph.State{graph.StateKeyMessages: all},
		Source:         graph.SourceUpdate,
		Node:           turnID,
	}); err != nil {
		return nil, fmt.Errorf("save transcript %s: %w", threadID, err)
	}
	return &Reply{
		ThreadID: threadID,
		Turn:     turn,
		Route:    Route(stringField(res.State, KeyRouterDecision)),
		Response: stringField(res.State, graph.StateKeyLastResponse),
	}, nil
}

// discardStaleTurn drops a leftover turn thread that answered another query.
func (a *Agent) discardStaleTurn(ctx context.Context, turnID, query string) error {
	cp, err := a.saver.Load(ctx, turnID)
	if err != nil {
		return fmt.Errorf("load turn %s: %w", turnID, err)
	}
	if cp == nil || stringField(cp.State, KeyQuery) == query {
		return nil
	}
	log.Infof("discarding turn %s left by an earlier query", turnID)
	return a.saver.DeleteThread(ctx, turnID)
}

func (a *Agent) transcript(ctx context.Context, threadID string) ([]model.Message, int64, error) {
	cp, err := a.saver.Load(ctx, ThreadKey(threadID))
	if err != nil {
		return nil, 0, fmt.Errorf("load transcript %s: %w", threadID, err)
	}
	if cp == nil {
		return nil, 0, nil
	}
	state, err := a.graph.Schema().Coerce(cp.State)
	if err != nil {
		return nil, 0, fmt.Errorf("transcript %s: %w", threadID, err)
	}
	return graph.Messages(state), cp.Sequence, nil
}

// History returns the conversation so far, oldest first.
func (a *Agent) History(ctx context.Context, threadID string) ([]model.Message, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	msgs, _, err := a.transcript(ctx, threadID)
	return msgs, err
}

// LastTurn returns the checkpoint of the newest turn, including one still
// running or left by a failed run. It is nil for an empty conversation.
func (a *Agent) LastTurn(ctx context.Context, threadID string) (*graph.Checkpoint, error) {
	if threadID == "" {
		return nil, graph.ErrThreadIDRequired
	}
	_, seq, err := a.transcript(ctx, threadID)
	if err != nil {
		return nil, err
	}
	for turn := seq + 1; turn > 0 && turn >= seq; turn-- {
		cp, err := a.saver.Load(ctx, TurnID(threadID, turn))
		if err != nil {
			return nil, fmt.Errorf("load turn %s: %w", TurnID(threadID, turn), err)
		}
		if cp != nil {
			return cp, nil
		}
	}
	return nil, nil
}

// Reset forgets the conversation and its turn threads.
func (a *Agent) Reset(ctx context.Context, threadID string) error {
	if threadID == "" {
		return graph.ErrThreadIDRequired
	}
	_, seq, err := a.transcript(ctx, threadID)
	if err != nil {
		return err
	}
	for turn := int64(1); turn <= seq+1; turn++ {
		if err := a.saver.DeleteThread(ctx, TurnID(threadID, turn)); err != nil {
			return err
		}
	}
	return a.saver.DeleteThread(ctx, ThreadKey(threadID))
}
