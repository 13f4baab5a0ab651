//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package projectmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/knowledge"
	"github.com/phuocNg964/ProMeet-AI/log"
	"github.com/phuocNg964/ProMeet-AI/model"
)

// router records the question in the history and classifies it.
func (a *Agent) router(ctx context.Context, state graph.State) (any, error) {
	query := strings.TrimSpace(stringField(state, KeyQuery))
	if query == "" {
		return nil, ErrEmptyQuery
	}
	msgs := []model.Message{model.NewSystemMessage(routerPrompt)}
	msgs = append(msgs, lastTurns(graph.Messages(state), a.routerContext)...)
	msgs = append(msgs, model.NewUserMessage(query))
	out, err := model.GenerateStructured[RouterOutput](ctx, a.model, msgs,
		model.WithStructuredGenerationConfig(a.routerConfig),
	)
	if err != nil {
		return nil, err
	}
	route, ok := parseRoute(strings.ToUpper(strings.TrimSpace(out.Decision)))
	if !ok {
		log.Warnf("router returned %q, answering directly", out.Decision)
	}
	log.Infof("router: %s", route)
	return graph.State{
		graph.StateKeyMessages: []model.Message{model.NewUserMessage(query)},
		KeyRouterDecision:      string(route),
	}, nil
}

func routeOf(_ context.Context, state graph.State) (string, error) {
	return stringField(state, KeyRouterDecision), nil
}

func (a *Agent) retriever(ctx context.Context, state graph.State) (any, error) {
	results, err := a.kb.Search(ctx, &knowledge.SearchRequest{
		Query:      stringField(state, KeyQuery),
		MaxResults: a.maxDocuments,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve: %w", err)
	}
	log.Infof("retriever: %d documents", len(results))
	return graph.State{KeyRetrievedDocuments: knowledge.Format(results)}, nil
}

func (a *Agent) ragGenerator(ctx context.Context, state graph.State) (any, error) {
	history := graph.Messages(state)
	if len(history) == 0 {
		return nil, errors.New("rag_generator: no conversation to answer")
	}
	msgs := []model.Message{model.NewSystemMessage(ragPrompt)}
	msgs = append(msgs, history[:len(history)-1]...)
	msgs = append(msgs, model.NewUserMessage(fmt.Sprintf(ragQuestion,
		stringField(state, KeyRetrievedDocuments), stringField(state, KeyQuery))))
	return a.answer(ctx, msgs, a.genConfig)
}

func (a *Agent) directGenerator(ctx context.Context, state graph.State) (any, error) {
	msgs := []model.Message{model.NewSystemMessage(directPrompt)}
	msgs = append(msgs, graph.Messages(state)...)
	return a.answer(ctx, msgs, a.directConfig)
}

// answer asks for a plain reply and appends it to the history.
func (a *Agent) answer(ctx context.Context, msgs []model.Message, cfg model.GenerationConfig) (any, error) {
	rsp, err := a.model.GenerateContent(ctx, &model.Request{Messages: msgs, GenerationConfig: cfg})
	if err != nil {
		return nil, err
	}
	if err := rsp.Err(); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(rsp.Message().Content)
	if content == "" {
		content = graph.DefaultFallbackMessage
	}
	return graph.State{
		graph.StateKeyMessages:     []model.Message{model.NewAssistantMessage(content)},
		graph.StateKeyLastResponse: content,
	}, nil
}

// lastTurns returns at most n trailing user and assistant text messages.
func lastTurns(history []model.Message, n int) []model.Message {
	var out []model.Message
	for i := len(history) - 1; i >= 0 && len(out) < n; i-- {
		m := history[i]
		if m.Content == "" || (m.Role != model.RoleUser && m.Role != model.RoleAssistant) {
			continue
		}
		out = append(out, model.Message{Role: m.Role, Content: m.Content})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// trimHistory keeps the last limit messages, starting at a user message so
// no tool result is separated from its call.
func trimHistory(history []model.Message, limit int) []model.Message {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	tail := history[len(history)-limit:]
	for i, m := range tail {
		if m.Role == model.RoleUser {
			return tail[i:]
		}
	}
	return nil
}
