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
	"encoding/json"
	"reflect"
	"strconv"

	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/graph"
)

// State keys of the meeting workflow.
const (
	KeyAudioFilePath    = "audio_file_path"
	KeyMetadata         = "meeting_metadata"
	KeyTranscript       = "transcript"
	KeyMoM              = "mom"
	KeyActionItems      = "action_items"
	KeyCritique         = "critique"
	KeyDecision         = "reflect_decision"
	KeyRevisionCount    = "revision_count"
	KeyMaxRevisions     = "max_revisions"
	KeyTasksCreated     = "tasks_created"
	KeyNotificationSent = "notification_sent"
)

// Node IDs.
const (
	NodeSTT          = "stt"
	NodeAnalysis     = "analysis"
	NodeReflection   = "reflection"
	NodeRefinement   = "refinement"
	NodeCreateTasks  = "create_tasks"
	NodeNotification = "notification"
)

// DefaultMaxRevisions bounds the reflection loop.
const DefaultMaxRevisions = 2

// ID is a backend identifier that may arrive as a JSON string or number.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID(n.String())
		return nil
	}
	var s *string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s != nil {
		*id = ID(*s)
	}
	return nil
}

// Participant is a meeting attendee.
type Participant struct {
	ID       ID     `json:"id,omitempty"`
	UserID   ID     `json:"userId,omitempty"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (p Participant) userID() string {
	if p.UserID != "" {
		return string(p.UserID)
	}
	return string(p.ID)
}

// Metadata describes the meeting being processed.
type Metadata struct {
	Title        string        `json:"title,omitempty"`
	Description  string        `json:"description,omitempty"`
	ProjectID    ID            `json:"project_id,omitempty"`
	AuthorID     ID            `json:"author_id,omitempty"`
	StartTime    string        `json:"start_time,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
}

// Routing maps participants to backend user IDs by username, falling back to
// display name.
func (m Metadata) Routing() backend.Routing {
	r := backend.Routing{
		ProjectID: string(m.ProjectID),
		AuthorID:  string(m.AuthorID),
		UserIDs:   make(map[string]string),
	}
	for _, p := range m.Participants {
		id := p.userID()
		if id == "" {
			continue
		}
		for _, name := range []string{p.Username, p.Name} {
			if key := lower(name); key != "" {
				if _, taken := r.UserIDs[key]; !taken {
					r.UserIDs[key] = id
				}
			}
		}
	}
	return r
}

// Emails maps lower-cased usernames and names to email addresses.
func (m Metadata) Emails() map[string]string {
	out := make(map[string]string)
	for _, p := range m.Participants {
		if p.Email == "" {
			continue
		}
		for _, name := range []string{p.Username, p.Name} {
			if key := lower(name); key != "" {
				if _, taken := out[key]; !taken {
					out[key] = p.Email
				}
			}
		}
	}
	return out
}

// MeetingOutput is the structured result of analysis and refinement.
type MeetingOutput struct {
	Summary     string               `json:"summary" jsonschema:"description=Meeting summary: purpose, main discussion points and decisions"`
	ActionItems []backend.ActionItem `json:"action_items" jsonschema:"description=Tasks to carry out after the meeting"`
}

// ReflectionOutput is the structured result of the quality check.
type ReflectionOutput struct {
	Critique string `json:"critique" jsonschema:"description=Detailed review listing problems and suggested fixes"`
	Decision string `json:"decision" jsonschema:"description=accept when the minutes are good enough, revise otherwise,enum=accept,enum=revise"`
}

// Notification delivery statuses.
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationSkipped = "skipped"
)

// NotificationResult records one notification attempt.
type NotificationResult struct {
	Assignee string `json:"assignee"`
	Email    string `json:"email,omitempty"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
}

// Schema returns the state schema of the workflow.
func Schema() *graph.StateSchema {
	s := graph.NewStateSchema()
	str := reflect.TypeOf("")
	for _, k := range []string{KeyAudioFilePath, KeyTranscript, KeyMoM, KeyCritique, KeyDecision} {
		s.AddField(k, graph.StateField{Type: str})
	}
	s.AddField(KeyMetadata, graph.StateField{Type: reflect.TypeOf(Metadata{})})
	s.AddField(KeyActionItems, graph.StateField{Type: reflect.TypeOf([]backend.ActionItem{})})
	s.AddField(KeyRevisionCount, graph.StateField{
		Type:    reflect.TypeOf(0),
		Default: func() any { return 0 },
	})
	s.AddField(KeyMaxRevisions, graph.StateField{Type: reflect.TypeOf(0)})
	s.AddField(KeyTasksCreated, graph.StateField{Type: reflect.TypeOf([]backend.Record{})})
	s.AddField(KeyNotificationSent, graph.StateField{Type: reflect.TypeOf([]NotificationResult{})})
	return s
}

// revisionLoop bounds reflection and refinement.
func revisionLoop(defaultMax int) graph.RevisionLoop {
	return graph.RevisionLoop{
		DecisionKey: KeyDecision,
		CounterKey:  KeyRevisionCount,
		MaxKey:      KeyMaxRevisions,
		DefaultMax:  defaultMax,
	}
}

func stringField(state graph.State, key string) string {
	s, _ := state[key].(string)
	return s
}

func metadataOf(state graph.State) Metadata {
	m, _ := state[KeyMetadata].(Metadata)
	return m
}

func actionItemsOf(state graph.State) []backend.ActionItem {
	items, _ := state[KeyActionItems].([]backend.ActionItem)
	return items
}

func intField(state graph.State, key string) int {
	switch n := state[key].(type) {
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
