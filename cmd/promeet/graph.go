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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phuocNg964/ProMeet-AI/graph"
)

var graphCmd = &cobra.Command{
	Use:       "graph <meeting|chat>",
	Short:     "Print a workflow graph as Mermaid or DOT",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"meeting", "chat"},
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

		var (
			g    *graph.Graph
			load func(thread string) (*graph.Checkpoint, error)
		)
		ctx := cmd.Context()
		switch args[0] {
		case "meeting":
			g = a.meetings.Graph()
			load = func(thread string) (*graph.Checkpoint, error) {
				history, err := a.meetings.History(ctx, thread, 1)
				if err != nil || len(history) == 0 {
					return nil, err
				}
				return history[0], nil
			}
		case "chat":
			g = a.chat.Graph()
			load = func(thread string) (*graph.Checkpoint, error) { return a.chat.LastTurn(ctx, thread) }
		default:
			return fmt.Errorf("unknown workflow %q", args[0])
		}
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("output")
		opts := []graph.VizOption{graph.WithGraphLabel(args[0])}
		if thread, _ := cmd.Flags().GetString("thread"); thread != "" {
			cp, err := load(thread)
			if err != nil {
				return err
			}
			if cp == nil {
				return fmt.Errorf("thread %s not found", thread)
			}
			opts = append(opts, graph.WithCursor(cp.Cursor))
		}
		switch format {
		case "mermaid":
			fmt.Fprint(cmd.OutOrStdout(), g.Mermaid(opts...))
		case "dot":
			return g.WriteDOT(cmd.OutOrStdout(), opts...)
		default:
			if out == "" {
				return fmt.Errorf("--output is required for format %s", format)
			}
			return g.RenderImage(cmd.Context(), format, out, opts...)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "mermaid, dot, or an image format rendered by Graphviz (png, svg)")
	graphCmd.Flags().StringP("output", "o", "", "Output file for image formats")
	graphCmd.Flags().String("thread", "", "Highlight where this thread's cursor is")
}
