//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package document defines the unit of text indexed by the knowledge base.
package document

// Document is a piece of text with its origin.
type Document struct {
	// ID uniquely identifies the document or chunk.
	ID string
	// Name is the source name, usually the file name.
	Name string
	// Content is the text body.
	Content string
	// Metadata carries source and chunk attributes.
	Metadata map[string]any
}

// IsEmpty reports whether the document has no content.
func (d *Document) IsEmpty() bool {
	return d == nil || len(d.Content) == 0
}
