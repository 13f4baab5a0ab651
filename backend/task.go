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
	"strings"
)

// Task statuses accepted by the API.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

// Statuses lists the valid task statuses.
var Statuses = []string{StatusToDo, StatusInProgress, StatusDone}

// Task priorities accepted by the API.
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// ValidStatus reports whether s is an accepted task status.
func ValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// NormalizePriority maps free-form priorities onto Low, Medium or High.
// Urgent and Critical become High; anything unrecognised becomes Medium.
func NormalizePriority(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return PriorityMedium
	}
	p = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return p
	case "Urgent", "Critical":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// SplitTags splits a comma separated tag list, dropping blanks.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// TaskInput is the body of POST /v1/tasks.
type TaskInput struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Tags        []string `json:"tags"`
	DueDate     *string  `json:"due_date"`
	ProjectID   string   `json:"project_id"`
	AssigneeID  *string  `json:"assignee_id"`
	AuthorID    string   `json:"author_id,omitempty"`
}

func (in TaskInput) normalized() TaskInput {
	if in.Status == "" {
		in.Status = StatusToDo
	}
	in.Priority = NormalizePriority(in.Priority)
	if in.Tags == nil {
		in.Tags = []string{}
	}
	if in.DueDate != nil && *in.DueDate == "" {
		in.DueDate = nil
	}
	if in.AssigneeID != nil && *in.AssigneeID == "" {
		in.AssigneeID = nil
	}
	return in
}

// TaskSummary counts tasks by status and priority.
type TaskSummary struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status,omitempty"`
	ByPriority map[string]int `json:"by_priority,omitempty"`
	Message    string         `json:"message,omitempty"`
}

// Summarize counts tasks by status and priority.
func Summarize(tasks []Record) TaskSummary {
	if len(tasks) == 0 {
		return TaskSummary{Message: "No tasks found"}
	}
	s := TaskSummary{
		Total:      len(tasks),
		ByStatus:   make(map[string]int),
		ByPriority: make(map[string]int),
	}
	for _, t := range tasks {
		s.ByStatus[field(t, "status")]++
		s.ByPriority[field(t, "priority")]++
	}
	return s
}

func field(r Record, key string) string {
	if v, ok := r[key].(string); ok && v != "" {
		return v
	}
	return "Unknown"
}
