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
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat with the project assistant",
	Long:  `Sends one message when given, otherwise reads messages from stdin until "exit".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
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

		out := cmd.OutOrStdout()
		send := func(msg string) error {
			rep, err := a.chat.Chat(cmd.Context(), threadID, msg)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "[%s] %s\n", rep.Route, rep.Response)
			return nil
		}
		if len(args) > 0 {
			return send(strings.Join(args, " "))
		}

		fmt.Fprintf(out, "thread %s, type exit to quit\n", threadID)
		sc := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !sc.Scan() {
				return sc.Err()
			}
			msg := strings.TrimSpace(sc.Text())
			switch msg {
			case "":
				continue
			case "exit", "quit":
				return nil
			}
			if err := send(msg); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("thread", "", "Conversation thread id, generated when empty")
}
