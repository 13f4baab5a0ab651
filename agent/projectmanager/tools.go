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
	"fmt"

	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/tool"
	"github.com/phuocNg964/ProMeet-AI/tool/function"
)

// Backend is the project data the chat tools read and change.
// *backend.Client implements it.
type Backend interface {
	Projects(ctx context.Context) ([]backend.Record, error)
	Project(ctx context.Context, projectID string) (backend.Record, error)
	Tasks(ctx context.Context, projectID string) ([]backend.Record, error)
	Meetings(ctx context.Context, projectID string) ([]backend.Record, error)
	CurrentUser(ctx context.Context) (backend.Record, error)
	CreateTask(ctx context.Context, in backend.TaskInput) (backend.Record, error)
	UpdateTaskStatus(ctx context.Context, taskID, status string) (backend.Record, error)
}

var _ Backend = (*backend.Client)(nil)

// Tool names.
const (
	ToolGetUserProjects    = "get_user_projects"
	ToolGetProjectDetails  = "get_project_details"
	ToolGetProjectTasks    = "get_project_tasks"
	ToolGetProjectMeetings = "get_project_meetings"
	ToolCreateTask         = "create_task"
	ToolUpdateTaskStatus   = "update_task_status"
	ToolGetCurrentUserInfo = "get_current_user_info"
)

type noArgs struct{}

type projectArgs struct {
	ProjectID string `json:"project_id" jsonschema:"description=ID of the project"`
}

type createTaskArgs struct {
	Title          string `json:"title" jsonschema:"description=Short, clear task title"`
	ProjectID      string `json:"project_id" jsonschema:"description=ID of the project that owns the task"`
	AuthorUserID   string `json:"author_user_id,omitempty" jsonschema:"description=ID of the creating user, the backend defaults to the caller"`
	Description    string `json:"description,omitempty" jsonschema:"description=Task details"`
	Priority       string `json:"priority,omitempty" jsonschema:"description=Low, Medium or High"`
	Status         string `json:"status,omitempty" jsonschema:"description=To Do, In Progress or Done"`
	DueDate        string `json:"due_date,omitempty" jsonschema:"description=Deadline as YYYY-MM-DD"`
	AssignedUserID string `json:"assigned_user_id,omitempty" jsonschema:"description=ID of the assignee"`
}

type updateStatusArgs struct {
	TaskID string `json:"task_id" jsonschema:"description=ID of the task"`
	Status string `json:"status" jsonschema:"description=New status,enum=To Do,enum=In Progress,enum=Done"`
}

// NewTools returns the project tools backed by b.
func NewTools(b Backend) []tool.CallableTool {
	return []tool.CallableTool{
		function.New(ToolGetCurrentUserInfo,
			"Get the signed-in user's id, username, email and name. Use for \"who am I?\".",
			func(ctx context.Context, _ noArgs) (map[string]any, error) {
				user, err := b.CurrentUser(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "user": user}, nil
			}),
		function.New(ToolGetUserProjects,
			"List the projects the current user is a member of.",
			func(ctx context.Context, _ noArgs) (map[string]any, error) {
				projects, err := b.Projects(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "total": len(projects), "projects": projects}, nil
			}),
		function.New(ToolGetProjectDetails,
			"Get details of one project: description, deadline and members.",
			func(ctx context.Context, in projectArgs) (map[string]any, error) {
				p, err := b.Project(ctx, in.ProjectID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "project": p}, nil
			}),
		function.New(ToolGetProjectTasks,
			"List the tasks of one project with counts by status and priority.",
			func(ctx context.Context, in projectArgs) (map[string]any, error) {
				tasks, err := b.Tasks(ctx, in.ProjectID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "tasks": tasks, "summary": backend.Summarize(tasks)}, nil
			}),
		function.New(ToolGetProjectMeetings,
			"List the meetings of one project.",
			func(ctx context.Context, in projectArgs) (map[string]any, error) {
				meetings, err := b.Meetings(ctx, in.ProjectID)
				if err != nil {
					return nil, err
				}
				return map[string]any{"success": true, "count": len(meetings), "meetings": meetings}, nil
			}),
		function.New(ToolCreateTask,
			"Create a new task in a project.",
			func(ctx context.Context, in createTaskArgs) (map[string]any, error) {
				task, err := b.CreateTask(ctx, in.taskInput())
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"success": true,
					"message": fmt.Sprintf("Task '%s' was created", in.Title),
					"task":    task,
				}, nil
			}),
		function.New(ToolUpdateTaskStatus,
			"Change the status of a task.",
			func(ctx context.Context, in updateStatusArgs) (map[string]any, error) {
				task, err := b.UpdateTaskStatus(ctx, in.TaskID, in.Status)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"success": true,
					"message": fmt.Sprintf("Task moved to '%s'", in.Status),
					"task":    task,
				}, nil
			}),
	}
}

func (in createTaskArgs) taskInput() backend.TaskInput {
	out := backend.TaskInput{
		Title:       in.Title,
		ProjectID:   in.ProjectID,
		AuthorID:    in.AuthorUserID,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
	}
	if in.DueDate != "" {
		due := in.DueDate
		out.DueDate = &due
	}
	if in.AssignedUserID != "" {
		id := in.AssignedUserID
		out.AssigneeID = &id
	}
	return out
}
