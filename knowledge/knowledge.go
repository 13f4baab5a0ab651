//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package knowledge provides the document retriever behind the project
// chat's RAG route. Markdown and text files are chunked at their headings and
// scored against a query by term overlap.
package knowledge

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/phuocNg964/ProMeet-AI/knowledge/chunking"
	"github.com/phuocNg964/ProMeet-AI/knowledge/document"
	"github.com/phuocNg964/ProMeet-AI/log"
)

// DefaultMaxResults is used when a request sets no limit.
const DefaultMaxResults = 10

// NoResults is the formatted text for an empty result set.
const NoResults = "No relevant documents found."

// Knowledge searches a document collection.
type Knowledge interface {
	Search(ctx context.Context, req *SearchRequest) ([]*SearchResult, error)
}

// SearchRequest is a retrieval query.
type SearchRequest struct {
	Query string
	// MaxResults limits the number of results returned.
	MaxResults int
	// MinScore drops results scoring below it.
	MinScore float64
}

// SearchResult is one matching chunk.
type SearchResult struct {
	Document *document.Document
	Score    float64
}

// Index is an in-memory Knowledge over chunked documents.
type Index struct {
	chunker chunking.Strategy

	mu     sync.RWMutex
	chunks []*indexed
	df     map[string]int
}

type indexed struct {
	doc   *document.Document
	terms map[string]int
	size  int
}

// Option configures an Index.
type Option func(*Index)

// WithChunker replaces the markdown chunker.
func WithChunker(s chunking.Strategy) Option {
	return func(ix *Index) { ix.chunker = s }
}

// NewIndex creates an empty index.
func NewIndex(opts ...Option) *Index {
	ix := &Index{chunker: chunking.NewMarkdown(), df: make(map[string]int)}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Add chunks and indexes a document.
func (ix *Index) Add(doc *document.Document) error {
	chunks, err := ix.chunker.Chunk(doc)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", doc.Name, err)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, c := range chunks {
		terms := termCounts(c.Content)
		size := 0
		for t, n := range terms {
			ix.df[t]++
			size += n
		}
		ix.chunks = append(ix.chunks, &indexed{doc: c, terms: terms, size: size})
	}
	return nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.chunks)
}

// LoadDir indexes every .md, .markdown and .txt file under dir.
func (ix *Index) LoadDir(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".txt":
		default:
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		doc := &document.Document{
			ID:       filepath.ToSlash(rel),
			Name:     filepath.Base(path),
			Content:  string(data),
			Metadata: map[string]any{"source": filepath.ToSlash(rel)},
		}
		if err := ix.Add(doc); err != nil {
			log.Warnf("skip %s: %v", path, err)
		}
		return nil
	})
}

// Search implements Knowledge with tf-idf scoring normalised to (0, 1].
func (ix *Index) Search(ctx context.Context, req *SearchRequest) ([]*SearchResult, error) {
	if req == nil || strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	query := termCounts(req.Query)

	ix.mu.RLock()
	n := float64(len(ix.chunks))
	var results []*SearchResult
	best := 0.0
	for _, c := range ix.chunks {
		score := 0.0
		for t := range query {
			tf := c.terms[t]
			if tf == 0 {
				continue
			}
			idf := math.Log(1 + n/float64(ix.df[t]))
			score += float64(tf) / float64(c.size) * idf
		}
		if score == 0 {
			continue
		}
		best = math.Max(best, score)
		results = append(results, &SearchResult{Document: c.doc, Score: score})
	}
	ix.mu.RUnlock()

	out := results[:0]
	for _, r := range results {
		r.Score /= best
		if r.Score >= req.MinScore {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Format renders results as numbered documents for a model prompt.
func Format(results []*SearchResult) string {
	if len(results) == 0 {
		return NoResults
	}
	docs := make([]string, 0, len(results))
	for i, r := range results {
		var b strings.Builder
		fmt.Fprintf(&b, "[Document %d]\n", i+1)
		fmt.Fprintf(&b, "source: %s\n", r.Document.Name)
		if title, _ := r.Document.Metadata[chunking.MetaTitle].(string); title != "" {
			fmt.Fprintf(&b, "section: %s\n", title)
		}
		fmt.Fprintf(&b, "content: %s", r.Document.Content)
		docs = append(docs, b.String())
	}
	return strings.Join(docs, "\n\n")
}

func termCounts(s string) map[string]int {
	out := make(map[string]int)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len([]rune(f)) < 2 {
			continue
		}
		out[f]++
	}
	return out
}
