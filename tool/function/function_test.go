//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package function_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phuocNg964/ProMeet-AI/tool"
	"github.com/phuocNg964/ProMeet-AI/tool/function"
)

type assignArgs struct {
	TaskID   string `json:"task_id" jsonschema:"description=Task to assign,required"`
	Assignee string `json:"assignee" jsonschema:"description=Username of the assignee,required"`
}

type assignResult struct {
	Message string `json:"message" jsonschema:"description=Confirmation text"`
}

func assign(_ context.Context, in assignArgs) (assignResult, error) {
	return assignResult{Message: in.TaskID + " -> " + in.Assignee}, nil
}

func TestTool_Call(t *testing.T) {
	ft := function.New("assign_task", "Assign a task.", assign)
	out, err := ft.Call(context.Background(), []byte(`{"task_id":"t-1","assignee":"lan"}`))
	require.NoError(t, err)
	assert.Equal(t, assignResult{Message: "t-1 -> lan"}, out)
}

func TestTool_CallEmptyArguments(t *testing.T) {
	var got assignArgs
	ft := function.New("probe", "", func(_ context.Context, in assignArgs) (bool, error) {
		got = in
		return true, nil
	})
	for _, args := range []string{"", "  ", "null"} {
		out, err := ft.Call(context.Background(), []byte(args))
		require.NoError(t, err, args)
		assert.Equal(t, true, out)
		assert.Equal(t, assignArgs{}, got)
	}
}

func TestTool_CallErrors(t *testing.T) {
	ft := function.New("assign_task", "", assign)
	_, err := ft.Call(context.Background(), []byte("{not json"))
	require.ErrorContains(t, err, "assign_task: decode arguments")

	boom := errors.New("backend down")
	failing := function.New("fails", "", func(context.Context, assignArgs) (assignResult, error) {
		return assignResult{}, boom
	})
	_, err = failing.Call(context.Background(), []byte(`{}`))
	require.ErrorIs(t, err, boom)
}

func TestTool_Declaration(t *testing.T) {
	decl := function.New("assign_task", "Assign a task.", assign).Declaration()
	assert.Equal(t, "assign_task", decl.Name)
	assert.Equal(t, "Assign a task.", decl.Description)
	require.NotNil(t, decl.InputSchema)
	assert.Equal(t, "object", decl.InputSchema.Type)
	assert.ElementsMatch(t, []string{"task_id", "assignee"}, decl.InputSchema.Required)
	assert.Equal(t, "Username of the assignee", decl.InputSchema.Properties["assignee"].Description)
	assert.Equal(t, "string", decl.OutputSchema.Properties["message"].Type)
}

func TestTool_RegistryRejectsBadArguments(t *testing.T) {
	reg, err := tool.NewRegistry(function.New("assign_task", "", assign))
	require.NoError(t, err)

	res := reg.Dispatch(context.Background(), "assign_task", []byte(`{"task_id":1,"assignee":"lan"}`))
	assert.Equal(t, tool.OutcomeInvalid, res.Outcome)

	res = reg.Dispatch(context.Background(), "assign_task", []byte(`{"task_id":"t-2","assignee":"minh"}`))
	require.True(t, res.OK())
	assert.JSONEq(t, `{"message":"t-2 -> minh"}`, res.Content())
}
