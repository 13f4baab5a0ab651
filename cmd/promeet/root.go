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
	"github.com/spf13/cobra"

	"github.com/phuocNg964/ProMeet-AI/config"
	"github.com/phuocNg964/ProMeet-AI/log"
)

var rootCmd = &cobra.Command{
	Use:           "promeet",
	Short:         "ProMeet AI meeting and project assistant",
	Long:          `Turns meeting recordings into reviewed tasks and answers project questions.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
}

// loadConfig reads the config named by the persistent flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		if _, err := log.ParseLevel(lvl); err != nil {
			return nil, err
		}
		cfg.LogLevel = lvl
	}
	log.SetFormat(cfg.LogFormat)
	log.SetLevel(cfg.LogLevel)
	return cfg, nil
}
