//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package chunking

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/phuocNg964/ProMeet-AI/knowledge/document"
)

// Markdown splits a markdown document at its headings. Sections larger than
// the chunk size are split further at paragraph boundaries, and every piece
// repeats its heading.
type Markdown struct {
	chunkSize int
	md        goldmark.Markdown
}

// MarkdownOption configures Markdown.
type MarkdownOption func(*Markdown)

// WithChunkSize sets the maximum size of a chunk in bytes.
func WithChunkSize(size int) MarkdownOption {
	return func(m *Markdown) {
		if size > 0 {
			m.chunkSize = size
		}
	}
}

// NewMarkdown creates a markdown chunker.
func NewMarkdown(opts ...MarkdownOption) *Markdown {
	m := &Markdown{chunkSize: defaultChunkSize, md: goldmark.New()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type section struct {
	level   int
	title   string
	content string
}

// Chunk implements Strategy.
func (m *Markdown) Chunk(doc *document.Document) ([]*document.Document, error) {
	if doc == nil {
		return nil, ErrNilDocument
	}
	if doc.IsEmpty() {
		return nil, ErrEmptyDocument
	}
	var chunks []*document.Document
	for _, s := range m.sections(cleanText(doc.Content)) {
		for _, body := range m.split(s.content) {
			chunk := createChunk(doc, s.format(body), len(chunks)+1)
			chunk.Metadata[MetaTitle] = s.title
			chunk.Metadata[MetaLevel] = s.level
			chunks = append(chunks, chunk)
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	return chunks, nil
}

func (m *Markdown) sections(content string) []section {
	src := []byte(content)
	root := m.md.Parser().Parse(text.NewReader(src))

	var (
		out  []section
		cur  section
		body []string
	)
	flush := func() {
		if len(body) > 0 {
			cur.content = strings.Join(body, "\n\n")
			out = append(out, cur)
		}
		body = nil
	}
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			flush()
			cur = section{level: h.Level, title: blockText(h, src)}
			continue
		}
		if t := blockText(n, src); t != "" {
			body = append(body, t)
		}
	}
	flush()
	return out
}

// blockText returns the raw source of leaf blocks and joins the text of
// container blocks line by line.
func blockText(n ast.Node, src []byte) string {
	if lines := n.Lines(); lines.Len() > 0 {
		var b strings.Builder
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(src))
		}
		return strings.TrimSpace(b.String())
	}
	_, isList := n.(*ast.List)
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t := blockText(c, src)
		if t == "" {
			continue
		}
		if isList {
			t = "- " + t
		}
		parts = append(parts, t)
	}
	return strings.Join(parts, "\n")
}

func (m *Markdown) split(content string) []string {
	if len(content) <= m.chunkSize {
		return []string{content}
	}
	var (
		out []string
		cur strings.Builder
	)
	for _, p := range strings.Split(content, "\n\n") {
		if cur.Len() > 0 && cur.Len()+len(p) > m.chunkSize {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString("\n\n")
		}
		cur.WriteString(p)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func (s section) format(body string) string {
	if s.level == 0 {
		return body
	}
	return strings.Repeat("#", s.level) + " " + s.title + "\n\n" + body
}
