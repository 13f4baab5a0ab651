//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package chunking splits documents into retrievable chunks.
package chunking

import (
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/phuocNg964/ProMeet-AI/knowledge/document"
)

// Metadata keys set on every chunk.
const (
	MetaChunkIndex = "chunk_index"
	MetaChunkSize  = "chunk_size"
	MetaTitle      = "markdown_title"
	MetaLevel      = "markdown_level"
)

var (
	// ErrEmptyDocument indicates that the document has no content to chunk.
	ErrEmptyDocument = errors.New("document content is empty")
	// ErrNilDocument indicates that a nil document was provided.
	ErrNilDocument = errors.New("document cannot be nil")
)

// Strategy splits a document into chunks.
type Strategy interface {
	Chunk(doc *document.Document) ([]*document.Document, error)
}

const (
	defaultChunkSize = 1024
	defaultOverlap   = 0
)

func cleanText(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	lines := strings.Split(strings.TrimSpace(content), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func createChunk(doc *document.Document, content string, n int) *document.Document {
	metadata := make(map[string]any, len(doc.Metadata)+2)
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	metadata[MetaChunkIndex] = n
	metadata[MetaChunkSize] = utf8.RuneCountInString(content)

	prefix := doc.ID
	if prefix == "" {
		prefix = doc.Name
	}
	if prefix == "" {
		prefix = "chunk"
	}
	return &document.Document{
		ID:       prefix + "_" + strconv.Itoa(n),
		Name:     doc.Name,
		Content:  content,
		Metadata: metadata,
	}
}
