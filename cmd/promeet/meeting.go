//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/phuocNg964/ProMeet-AI/agent/meetingtask"
	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/graph"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a meeting until it is ready for review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		in := meetingtask.Input{}
		in.AudioFilePath, _ = cmd.Flags().GetString("audio")
		in.MaxRevisions, _ = cmd.Flags().GetInt("max-revisions")
		if path, _ := cmd.Flags().GetString("transcript"); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			in.Transcript = string(b)
		}
		if path, _ := cmd.Flags().GetString("metadata"); path != "" {
			if err := readJSON(path, &in.Metadata); err != nil {
				return fmt.Errorf("metadata: %w", err)
			}
		}
		threadID, _ := cmd.Flags().GetString("thread")
		if threadID == "" {
			threadID = uuid.NewString()
		}

		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if _, err := a.meetings.Analyze(cmd.Context(), threadID, in); err != nil {
			return err
		}
		return printMeeting(cmd, a, threadID)
	},
}

var reviewCmd = &cobra.Command{
	Use:   "review <thread>",
	Short: "Apply review edits and create the tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		var review meetingtask.Review
		review.MoM, _ = cmd.Flags().GetString("mom")
		if path, _ := cmd.Flags().GetString("action-items"); path != "" {
			var items []backend.ActionItem
			if err := readJSON(path, &items); err != nil {
				return fmt.Errorf("action items: %w", err)
			}
			review.ActionItems = items
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		if _, err := a.meetings.ContinueAfterReview(cmd.Context(), args[0], review); err != nil {
			return err
		}
		return printMeeting(cmd, a, args[0])
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <thread>",
	Short: "Show a meeting thread and its checkpoint history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()
		history, err := a.meetings.History(cmd.Context(), args[0], 0)
		if err != nil {
			return err
		}
		for _, cp := range history {
			fmt.Fprintf(cmd.OutOrStdout(), "#%d %-9s %-26s %s\n", cp.Sequence, cp.Source, cp.Cursor, cp.Node)
		}
		return printMeeting(cmd, a, args[0])
	},
}

func printMeeting(cmd *cobra.Command, a *app, threadID string) error {
	snap, err := a.meetings.State(cmd.Context(), threadID)
	if err != nil {
		return err
	}
	if snap == nil {
		return &graph.InvalidThreadStateError{ThreadID: threadID, Op: "status"}
	}
	return writeJSON(cmd.OutOrStdout(), map[string]any{
		"thread_id":      threadID,
		"status":         snap.Status(),
		"cursor":         snap.Cursor.String(),
		"mom":            snap.MoM,
		"action_items":   snap.ActionItems,
		"critique":       snap.Critique,
		"revision_count": snap.RevisionCount,
		"tasks_created":  snap.TasksCreated,
		"notifications":  snap.Notifications,
	})
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(analyzeCmd, reviewCmd, statusCmd)
	analyzeCmd.Flags().String("audio", "", "Path to the meeting recording")
	analyzeCmd.Flags().String("transcript", "", "Path to a transcript file, skips transcription")
	analyzeCmd.Flags().String("metadata", "", "Path to a JSON file with meeting metadata")
	analyzeCmd.Flags().String("thread", "", "Thread id, generated when empty")
	analyzeCmd.Flags().Int("max-revisions", 0, "Refinement limit, overrides meeting.max_revisions")
	reviewCmd.Flags().String("mom", "", "Edited minutes of meeting")
	reviewCmd.Flags().String("action-items", "", "Path to a JSON file with edited action items")
}
