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
	"context"
	"errors"
	"fmt"

	"github.com/phuocNg964/ProMeet-AI/agent/meetingtask"
	"github.com/phuocNg964/ProMeet-AI/agent/projectmanager"
	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/config"
	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/graph/checkpoint/inmemory"
	"github.com/phuocNg964/ProMeet-AI/graph/checkpoint/redis"
	"github.com/phuocNg964/ProMeet-AI/graph/checkpoint/sqlite"
	"github.com/phuocNg964/ProMeet-AI/knowledge"
	"github.com/phuocNg964/ProMeet-AI/log"
	"github.com/phuocNg964/ProMeet-AI/model"
	"github.com/phuocNg964/ProMeet-AI/model/openai"
	"github.com/phuocNg964/ProMeet-AI/notify"
	"github.com/phuocNg964/ProMeet-AI/server"
	"github.com/phuocNg964/ProMeet-AI/speech"
	"github.com/phuocNg964/ProMeet-AI/speech/gemini"
	"github.com/phuocNg964/ProMeet-AI/telemetry/metric"
	"github.com/phuocNg964/ProMeet-AI/telemetry/trace"
)

// app holds the components built from a Config.
type app struct {
	cfg      *config.Config
	saver    graph.CheckpointSaver
	backend  *backend.Client
	meetings *meetingtask.Agent
	chat     *projectmanager.Agent
	progress *server.Progress
	closers  []func() error
}

// Close releases everything the app opened, last opened first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, progress: server.NewProgress()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if cfg.Telemetry.Enabled {
		if err := a.startTelemetry(ctx); err != nil {
			return nil, err
		}
	}
	if a.saver, err = newSaver(cfg.Checkpoint); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.saver.Close)

	a.backend = backend.New(cfg.Backend.BaseURL,
		backend.WithToken(cfg.Backend.Token),
		backend.WithTimeout(cfg.Backend.Timeout),
	)
	llmOpts := []openai.Option{
		openai.WithAPIKey(cfg.Model.APIKey),
		openai.WithBaseURL(cfg.Model.BaseURL),
		openai.WithTimeout(cfg.Model.Timeout),
	}
	if cfg.Model.MaxRetries != nil {
		llmOpts = append(llmOpts, openai.WithMaxRetries(*cfg.Model.MaxRetries))
	}
	llm := openai.New(cfg.Model.Name, llmOpts...)
	gen := model.GenerationConfig{Temperature: cfg.Model.Temperature, TopP: cfg.Model.TopP}
	execOpts := []graph.ExecutorOption{
		graph.WithNodeTimeout(cfg.Server.NodeTimeout),
		graph.WithExecutorHooks(a.progress.Hooks()),
	}

	meetingOpts := []meetingtask.Option{
		meetingtask.WithMaxRevisions(cfg.Meeting.MaxRevisions),
		meetingtask.WithGenerationConfig(gen),
		meetingtask.WithExecutorOptions(execOpts...),
	}
	if t, err := newTranscriber(ctx, cfg.Speech); err != nil {
		log.Warnf("transcription disabled: %v", err)
	} else {
		meetingOpts = append(meetingOpts, meetingtask.WithTranscriber(t))
	}
	if cfg.Meeting.Notifications {
		meetingOpts = append(meetingOpts, meetingtask.WithNotifier(notify.NewSMTP(
			notify.WithServer(cfg.Email.SMTPHost, cfg.Email.SMTPPort),
			notify.WithCredentials(cfg.Email.Sender, cfg.Email.Password),
		)))
	}
	if a.meetings, err = meetingtask.New(llm, a.backend, a.saver, meetingOpts...); err != nil {
		return nil, err
	}

	chatOpts := []projectmanager.Option{
		projectmanager.WithBackend(a.backend),
		projectmanager.WithGenerationConfig(gen),
		projectmanager.WithMaxDocuments(cfg.Knowledge.MaxResults),
		projectmanager.WithExecutorOptions(execOpts...),
	}
	if cfg.Knowledge.DocsDir != "" {
		kb := knowledge.NewIndex()
		if err := kb.LoadDir(cfg.Knowledge.DocsDir); err != nil {
			return nil, fmt.Errorf("load knowledge: %w", err)
		}
		log.Infof("knowledge: %d chunks from %s", kb.Len(), cfg.Knowledge.DocsDir)
		chatOpts = append(chatOpts, projectmanager.WithKnowledge(kb))
	}
	if a.chat, err = projectmanager.New(llm, a.saver, chatOpts...); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) startTelemetry(ctx context.Context) error {
	t := a.cfg.Telemetry
	cleanTrace, err := trace.Start(ctx,
		trace.WithEndpoint(t.Endpoint),
		trace.WithProtocol(t.Protocol),
		trace.WithSampleRatio(t.SampleRatio),
	)
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	a.closers = append(a.closers, cleanTrace)
	cleanMetric, err := metric.Start(ctx, metric.WithEndpoint(t.Endpoint), metric.WithProtocol(t.Protocol))
	if err != nil {
		return fmt.Errorf("start metrics: %w", err)
	}
	a.closers = append(a.closers, cleanMetric)
	return nil
}

func newSaver(cfg config.CheckpointConfig) (graph.CheckpointSaver, error) {
	switch cfg.Backend {
	case config.CheckpointSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		var opts []sqlite.Option
		if cfg.MaxHistory > 0 {
			opts = append(opts, sqlite.WithMaxHistory(cfg.MaxHistory))
		}
		saver, err := sqlite.NewSaver(db, opts...)
		if err != nil {
			db.Close()
			return nil, err
		}
		return saver, nil
	case config.CheckpointRedis:
		opts := []redis.Option{redis.WithPrefix(cfg.KeyPrefix)}
		if cfg.MaxHistory > 0 {
			opts = append(opts, redis.WithMaxHistory(cfg.MaxHistory))
		}
		return redis.New(cfg.RedisURL, opts...)
	default:
		var opts []inmemory.Option
		if cfg.MaxHistory > 0 {
			opts = append(opts, inmemory.WithMaxHistory(cfg.MaxHistory))
		}
		return inmemory.NewSaver(opts...), nil
	}
}

func newTranscriber(ctx context.Context, cfg config.SpeechConfig) (speech.Transcriber, error) {
	if cfg.Provider != "gemini" {
		return nil, fmt.Errorf("unknown speech provider %q", cfg.Provider)
	}
	opts := []gemini.Option{gemini.WithModel(cfg.Model)}
	if cfg.APIKey != "" {
		opts = append(opts, gemini.WithAPIKey(cfg.APIKey))
	}
	t, err := gemini.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.CacheDir == "" {
		return t, nil
	}
	return speech.NewFileCache(cfg.CacheDir, t), nil
}
