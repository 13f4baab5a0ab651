//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/phuocNg964/ProMeet-AI/agent/meetingtask"
	"github.com/phuocNg964/ProMeet-AI/backend"
	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/log"
)

// Meeting statuses beyond the run statuses.
const (
	StatusProcessing = "processing"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

type analyzeRequest struct {
	MeetingID     meetingtask.ID       `json:"meeting_id"`
	AudioFilePath string               `json:"audio_file_path"`
	Transcript    string               `json:"transcript"`
	Summary       string               `json:"summary"`
	Metadata      meetingtask.Metadata `json:"meeting_metadata"`
	MaxRevisions  int                  `json:"max_revisions"`
}

type analyzeResponse struct {
	ThreadID string `json:"thread_id"`
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	threadID := string(req.MeetingID)
	if threadID == "" {
		threadID = uuid.NewString()
	}
	if strings.TrimSpace(req.Transcript) != "" && strings.TrimSpace(req.Summary) != "" {
		writeJSON(w, http.StatusOK, analyzeResponse{
			ThreadID: threadID,
			Status:   StatusSkipped,
			Message:  "meeting already has a transcript and summary",
		})
		return
	}
	if req.AudioFilePath == "" && strings.TrimSpace(req.Transcript) == "" {
		writeError(w, http.StatusBadRequest, meetingtask.ErrNoInput)
		return
	}
	key := meetingtask.ThreadKey(threadID)
	if !s.claim(key) {
		writeError(w, http.StatusConflict, errThreadBusy)
		return
	}
	in := meetingtask.Input{
		AudioFilePath: req.AudioFilePath,
		Metadata:      req.Metadata,
		Transcript:    req.Transcript,
		MaxRevisions:  req.MaxRevisions,
	}
	err := s.background(r, func(ctx context.Context) {
		logger := log.With("thread_id", threadID)
		res, err := s.meetings.Analyze(ctx, threadID, in)
		if err == nil {
			logger.Infof("meeting analysis %s", res.Status.Display())
		} else {
			logger.Errorf("meeting analysis failed: %v", err)
		}
		s.release(key, err)
		if err == nil && res.Status == graph.StatusTerminated {
			s.forget(key)
		}
	})
	if err != nil {
		s.release(key, err)
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("schedule analysis: %w", err))
		return
	}
	writeJSON(w, http.StatusAccepted, analyzeResponse{ThreadID: threadID, Status: StatusProcessing})
}

type meetingResponse struct {
	ThreadID      string                           `json:"thread_id"`
	Status        string                           `json:"status"`
	Cursor        string                           `json:"cursor,omitempty"`
	Node          string                           `json:"node,omitempty"`
	MoM           string                           `json:"mom,omitempty"`
	ActionItems   []backend.ActionItem             `json:"action_items,omitempty"`
	Critique      string                           `json:"critique,omitempty"`
	RevisionCount int                              `json:"revision_count"`
	TasksCreated  []backend.Record                 `json:"tasks_created,omitempty"`
	Notifications []meetingtask.NotificationResult `json:"notifications,omitempty"`
	Error         string                           `json:"error,omitempty"`
}

func (s *Server) meetingView(r *http.Request, threadID string) (*meetingResponse, error) {
	key := meetingtask.ThreadKey(threadID)
	running, failure := s.runState(key)
	snap, err := s.meetings.State(r.Context(), threadID)
	if err != nil {
		return nil, err
	}
	out := &meetingResponse{ThreadID: threadID, Error: failure, Node: s.progress.Node(key)}
	switch {
	case running:
		out.Status = StatusProcessing
	case snap == nil && failure != "":
		out.Status = StatusFailed
	case snap == nil:
		return nil, nil
	default:
		out.Status = snap.Status()
		// A node cursor with no run in flight is a run that stopped early.
		if out.Status == StatusProcessing {
			out.Status = StatusFailed
		}
	}
	if snap != nil {
		out.Cursor = snap.Cursor.String()
		out.MoM = snap.MoM
		out.ActionItems = snap.ActionItems
		out.Critique = snap.Critique
		out.RevisionCount = snap.RevisionCount
		out.TasksCreated = snap.TasksCreated
		out.Notifications = snap.Notifications
	}
	return out, nil
}

func (s *Server) handleMeetingStatus(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	view, err := s.meetingView(r, threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if view == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("meeting %s not found", threadID))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type reviewRequest struct {
	MoM         string               `json:"mom"`
	ActionItems []backend.ActionItem `json:"action_items"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	var req reviewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	key := meetingtask.ThreadKey(threadID)
	if !s.claim(key) {
		writeError(w, http.StatusConflict, errThreadBusy)
		return
	}
	res, err := s.meetings.ContinueAfterReview(r.Context(), threadID, meetingtask.Review{
		MoM:         req.MoM,
		ActionItems: req.ActionItems,
	})
	var invalid *graph.InvalidThreadStateError
	if errors.As(err, &invalid) {
		s.release(key, nil)
		writeError(w, http.StatusConflict, err)
		return
	}
	s.release(key, err)
	if err != nil {
		log.Errorf("meeting %s review failed: %v", threadID, err)
	}
	view, verr := s.meetingView(r, threadID)
	if verr != nil {
		writeError(w, http.StatusInternalServerError, verr)
		return
	}
	if err == nil && res.Status == graph.StatusTerminated {
		s.forget(key)
	}
	if err != nil {
		writeJSON(w, http.StatusBadGateway, view)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
