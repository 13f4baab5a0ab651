//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool exposes a knowledge base as a callable tool.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/phuocNg964/ProMeet-AI/knowledge"
	"github.com/phuocNg964/ProMeet-AI/tool"
	"github.com/phuocNg964/ProMeet-AI/tool/function"
)

// Name is the registered tool name.
const Name = "search_documents"

// SearchRequest is the tool input.
type SearchRequest struct {
	Query string `json:"query" jsonschema:"description=What to look up in the internal project documents"`
}

// SearchResponse is the tool output.
type SearchResponse struct {
	Count     int    `json:"count"`
	Documents string `json:"documents"`
}

// NewSearchTool creates a tool that searches kb.
func NewSearchTool(kb knowledge.Knowledge, maxResults int) tool.CallableTool {
	search := func(ctx context.Context, req SearchRequest) (SearchResponse, error) {
		if req.Query == "" {
			return SearchResponse{}, errors.New("query cannot be empty")
		}
		results, err := kb.Search(ctx, &knowledge.SearchRequest{Query: req.Query, MaxResults: maxResults})
		if err != nil {
			return SearchResponse{}, fmt.Errorf("search failed: %w", err)
		}
		return SearchResponse{Count: len(results), Documents: knowledge.Format(results)}, nil
	}
	return function.New(Name, "Search internal project documents: processes, policies, roles and fees.", search)
}
