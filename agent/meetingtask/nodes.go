//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package meetingtask

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/log"
	"github.com/phuocNg964/ProMeet-AI/model"
	"github.com/phuocNg964/ProMeet-AI/notify"
)

// ErrNoTranscriber is returned when audio must be transcribed but no
// transcriber is configured.
var ErrNoTranscriber = errors.New("meetingtask: no transcriber configured")

const unassigned = "unassigned"

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

func (a *Agent) stt(ctx context.Context, state graph.State) (any, error) {
	if t := stringField(state, KeyTranscript); strings.TrimSpace(t) != "" {
		log.Infof("using provided transcript (%d chars)", len(t))
		return nil, nil
	}
	path := stringField(state, KeyAudioFilePath)
	if path == "" {
		return nil, ErrNoInput
	}
	if a.transcriber == nil {
		return nil, ErrNoTranscriber
	}
	text, err := a.transcriber.Transcribe(ctx, path)
	if err != nil {
		return nil, err
	}
	log.Infof("transcript ready (%d chars)", len(text))
	return graph.State{KeyTranscript: text}, nil
}

func (a *Agent) analysis(ctx context.Context, state graph.State) (any, error) {
	prompt := fmt.Sprintf(analysisPrompt, toJSON(metadataOf(state)), stringField(state, KeyTranscript))
	out, err := model.GenerateStructured[MeetingOutput](ctx, a.model,
		[]model.Message{model.NewUserMessage(prompt)},
		model.WithStructuredGenerationConfig(a.genConfig),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Summary) == "" || out.ActionItems == nil {
		return nil, errors.New("analysis output is missing summary or action_items")
	}
	log.Infof("analysis: summary %d chars, %d action items", len(out.Summary), len(out.ActionItems))
	return graph.State{KeyMoM: out.Summary, KeyActionItems: out.ActionItems}, nil
}

func (a *Agent) reflection(ctx context.Context, state graph.State) (any, error) {
	prompt := fmt.Sprintf(reflectionPrompt,
		toJSON(metadataOf(state)),
		stringField(state, KeyMoM),
		toJSON(actionItemsOf(state)),
	)
	out, err := model.GenerateStructured[ReflectionOutput](ctx, a.model,
		[]model.Message{model.NewUserMessage(prompt)},
		model.WithStructuredGenerationConfig(a.genConfig),
	)
	if err != nil {
		return nil, err
	}
	decision := lower(out.Decision)
	if decision != graph.OutcomeAccept && decision != graph.OutcomeRevise {
		log.Warnf("reflection returned decision %q, treating as revise", out.Decision)
		decision = graph.OutcomeRevise
	}
	log.Infof("reflection decision: %s", decision)
	return graph.State{KeyCritique: out.Critique, KeyDecision: decision}, nil
}

func (a *Agent) refinement(ctx context.Context, state graph.State) (any, error) {
	prompt := fmt.Sprintf(refinementPrompt,
		toJSON(metadataOf(state)),
		stringField(state, KeyMoM),
		toJSON(actionItemsOf(state)),
		stringField(state, KeyCritique),
		stringField(state, KeyTranscript),
	)
	out, err := model.GenerateStructured[MeetingOutput](ctx, a.model,
		[]model.Message{model.NewUserMessage(prompt)},
		model.WithStructuredGenerationConfig(a.genConfig),
	)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.Summary) == "" || out.ActionItems == nil {
		return nil, errors.New("refinement output is missing summary or action_items")
	}
	update := a.loop.Next(state)
	log.Infof("revision #%v", update[KeyRevisionCount])
	update[KeyMoM] = out.Summary
	update[KeyActionItems] = out.ActionItems
	return update, nil
}

// createTasks faults only when nothing could be created, so a retry cannot
// duplicate tasks. Partial failures are logged and the run moves on.
func (a *Agent) createTasks(ctx context.Context, state graph.State) (any, error) {
	items := actionItemsOf(state)
	created, err := a.sink.CreateRecords(ctx, items, metadataOf(state).Routing())
	if err != nil {
		if len(created) == 0 && len(items) > 0 {
			return nil, err
		}
		log.Warnf("some tasks were not created: %v", err)
	}
	if created == nil {
		created = []backend.Record{}
	}
	log.Infof("created %d of %d tasks", len(created), len(items))
	return graph.State{KeyTasksCreated: created}, nil
}

func (a *Agent) notification(ctx context.Context, state graph.State) (any, error) {
	meta := metadataOf(state)
	emails := meta.Emails()
	mom := stringField(state, KeyMoM)
	results := []NotificationResult{}
	for _, item := range actionItemsOf(state) {
		assignee := lower(item.Assignee)
		if assignee == "" || assignee == unassigned {
			continue
		}
		res := NotificationResult{Assignee: assignee, Title: item.Title}
		email, ok := emails[assignee]
		if !ok {
			res.Status = NotificationSkipped
			res.Reason = "email not found in participants"
			results = append(results, res)
			continue
		}
		res.Email = email
		n := notify.Notification{
			To:      email,
			Subject: fmt.Sprintf("[Action Required] %s - task for %s", titleOr(meta.Title, "Meeting"), displayName(item.Assignee)),
			Body:    emailBody(displayName(item.Assignee), item, mom, meta),
		}
		if err := a.notifier.Notify(ctx, n); err != nil {
			log.Warnf("notify %s: %v", email, err)
			res.Status = NotificationFailed
			res.Reason = err.Error()
		} else {
			res.Status = NotificationSent
		}
		results = append(results, res)
	}
	sent := 0
	for _, r := range results {
		if r.Status == NotificationSent {
			sent++
		}
	}
	log.Infof("sent %d/%d notifications", sent, len(results))
	return graph.State{KeyNotificationSent: results}, nil
}

func titleOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func displayName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

func emailBody(name string, item backend.ActionItem, mom string, meta Metadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, emailTemplate, name, titleOr(meta.Title, "Meeting"), titleOr(meta.StartTime, "N/A"), mom, item.Title)
	if item.DueDate != "" {
		fmt.Fprintf(&b, "\n  Due: %s", item.DueDate)
	}
	if item.Priority != "" {
		fmt.Fprintf(&b, "\n  Priority: %s", item.Priority)
	}
	b.WriteString("\n\n---\nPlease complete it on time.\n\nSent automatically by the meeting-to-task agent.")
	return b.String()
}
