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
	"reflect"

	"github.com/phuocNg964/ProMeet-AI/graph"
)

// State keys beyond the messages schema.
const (
	KeyQuery              = "query"
	KeyRouterDecision     = "router_decision"
	KeyRetrievedDocuments = "retrieved_documents"
)

// Node IDs.
const (
	NodeRouter          = "router"
	NodeRetriever       = "retriever"
	NodeRAGGenerator    = "rag_generator"
	NodeToolGenerator   = "tool_generator"
	NodeToolCall        = "tool_call"
	NodeDirectGenerator = "direct_generator"
)

// Route is a router decision.
type Route string

// Routes.
const (
	RouteRAG      Route = "RAG"
	RouteToolCall Route = "TOOL_CALL"
	RouteDirect   Route = "DIRECT"
)

func parseRoute(s string) (Route, bool) {
	switch r := Route(s); r {
	case RouteRAG, RouteToolCall, RouteDirect:
		return r, true
	}
	return RouteDirect, false
}

// RouterOutput is the structured router answer.
type RouterOutput struct {
	Decision string `json:"decision" jsonschema:"description=Route for the message,enum=RAG,enum=TOOL_CALL,enum=DIRECT"`
}

// Schema returns the chat state schema.
func Schema() *graph.StateSchema {
	s := graph.MessagesStateSchema()
	s.AddField(KeyQuery, graph.StateField{Type: reflect.TypeOf("")})
	s.AddField(KeyRouterDecision, graph.StateField{Type: reflect.TypeOf("")})
	s.AddField(KeyRetrievedDocuments, graph.StateField{Type: reflect.TypeOf("")})
	return s
}

func stringField(state graph.State, key string) string {
	v, _ := state[key].(string)
	return v
}
