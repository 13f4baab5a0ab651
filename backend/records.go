//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/phuocNg964/ProMeet-AI/log"
)

// ActionItem is a task extracted from a meeting.
type ActionItem struct {
	Title       string `json:"title" jsonschema:"description=Short task title"`
	Description string `json:"description,omitempty" jsonschema:"description=Details, context and concrete requirements"`
	Assignee    string `json:"assignee,omitempty" jsonschema:"description=Name of the assignee, must be a meeting participant"`
	Priority    string `json:"priority,omitempty" jsonschema:"description=Low, Medium, High or Urgent"`
	DueDate     string `json:"dueDate,omitempty" jsonschema:"description=Deadline in ISO format YYYY-MM-DD"`
	Status      string `json:"status,omitempty" jsonschema:"description=To Do, In Progress or Done"`
	Tags        string `json:"tags,omitempty" jsonschema:"description=Comma separated tags"`
	Points      *int   `json:"points,omitempty" jsonschema:"description=Story points"`
}

// Routing tells a sink where created records belong.
type Routing struct {
	ProjectID string
	AuthorID  string
	// UserIDs maps lower-cased participant names to user IDs.
	UserIDs map[string]string
}

// UserID resolves an assignee name to a user ID.
func (r Routing) UserID(name string) (string, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "", false
	}
	id, ok := r.UserIDs[name]
	return id, ok
}

// RecordSink persists action items as tasks.
type RecordSink interface {
	// CreateRecords creates one record per item. It keeps going after a
	// failed item and returns the records created along with the joined
	// per-item errors.
	CreateRecords(ctx context.Context, items []ActionItem, routing Routing) ([]Record, error)
}

var _ RecordSink = (*Client)(nil)

// CreateRecords implements RecordSink on POST /v1/tasks.
func (c *Client) CreateRecords(ctx context.Context, items []ActionItem, routing Routing) ([]Record, error) {
	created := make([]Record, 0, len(items))
	var errs []error
	for _, item := range items {
		if strings.TrimSpace(item.Title) == "" {
			continue
		}
		in := TaskInput{
			Title:       item.Title,
			Description: item.Description,
			Status:      item.Status,
			Priority:    item.Priority,
			Tags:        SplitTags(item.Tags),
			ProjectID:   routing.ProjectID,
			AuthorID:    routing.AuthorID,
		}
		if item.DueDate != "" {
			due := item.DueDate
			in.DueDate = &due
		}
		if id, ok := routing.UserID(item.Assignee); ok {
			in.AssigneeID = &id
		}
		task, err := c.CreateTask(ctx, in)
		if err != nil {
			log.Errorf("create task %q: %v", item.Title, err)
			errs = append(errs, fmt.Errorf("create task %q: %w", item.Title, err))
			continue
		}
		log.Infof("task created: id=%v %s", task["id"], item.Title)
		created = append(created, task)
	}
	return created, errors.Join(errs...)
}
