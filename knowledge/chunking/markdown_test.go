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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/knowledge/document"
)

const handbook = `Preamble before any heading.

# Delivery handbook

Projects follow two-week sprints.

## Change requests

A change request after sign-off is billed as extra work.

- Log the request
- Estimate the cost

` + "```" + `
cr-template v2
` + "```" + `

## Escalation

Escalate blockers to the PM within one day.
`

func TestMarkdown_SplitsAtHeadings(t *testing.T) {
	chunks, err := NewMarkdown().Chunk(&document.Document{ID: "handbook", Name: "handbook.md", Content: handbook})
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	assert.Equal(t, "Preamble before any heading.", chunks[0].Content)
	assert.Equal(t, "", chunks[0].Metadata[MetaTitle])

	cr := chunks[2]
	assert.Equal(t, "handbook_3", cr.ID)
	assert.Equal(t, "Change requests", cr.Metadata[MetaTitle])
	assert.Equal(t, 2, cr.Metadata[MetaLevel])
	assert.True(t, strings.HasPrefix(cr.Content, "## Change requests\n\n"))
	assert.Contains(t, cr.Content, "billed as extra work")
	assert.Contains(t, cr.Content, "- Log the request\n- Estimate the cost")
	assert.Contains(t, cr.Content, "cr-template v2")

	assert.Equal(t, 4, chunks[3].Metadata[MetaChunkIndex])
	assert.Equal(t, "handbook.md", chunks[3].Name)
}

func TestMarkdown_SplitsLargeSections(t *testing.T) {
	para := strings.Repeat("word ", 30)
	content := "# Big\n\n" + para + "\n\n" + para + "\n\n" + para
	chunks, err := NewMarkdown(WithChunkSize(200)).Chunk(&document.Document{Name: "big.md", Content: content})
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for _, c := range chunks {
		assert.True(t, strings.HasPrefix(c.Content, "# Big\n\n"))
		assert.Equal(t, "Big", c.Metadata[MetaTitle])
	}
	assert.Equal(t, "big.md_1", chunks[0].ID)
}

func TestMarkdown_Errors(t *testing.T) {
	_, err := NewMarkdown().Chunk(nil)
	assert.ErrorIs(t, err, ErrNilDocument)
	_, err = NewMarkdown().Chunk(&document.Document{})
	assert.ErrorIs(t, err, ErrEmptyDocument)
	_, err = NewMarkdown().Chunk(&document.Document{Content: "# Only a heading"})
	assert.ErrorIs(t, err, ErrEmptyDocument)
}
