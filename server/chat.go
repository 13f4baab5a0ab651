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
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/phuocNg964/ProMeet-AI/agent/projectmanager"
	"github.com/phuocNg964/ProMeet-AI/graph"
	"github.com/phuocNg964/ProMeet-AI/log"
	"github.com/phuocNg964/ProMeet-AI/model"
)

type chatRequest struct {
	Query    string `json:"query"`
	ThreadID string `json:"thread_id"`
}

type chatResponse struct {
	Response string `json:"response"`
	ThreadID string `json:"thread_id"`
	Turn     int64  `json:"turn"`
	Route    string `json:"route"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.ThreadID == "" {
		req.ThreadID = uuid.NewString()
	}
	key := projectmanager.ThreadKey(req.ThreadID)
	if !s.claim(key) {
		writeError(w, http.StatusConflict, errThreadBusy)
		return
	}
	rep, err := s.chat.Chat(r.Context(), req.ThreadID, req.Query)
	s.release(key, nil)
	s.forget(key)
	switch {
	case errors.Is(err, projectmanager.ErrEmptyQuery):
		writeError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, graph.ErrConcurrentWrite):
		writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		log.Errorf("chat %s failed: %v", req.ThreadID, err)
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{
		Response: rep.Response,
		ThreadID: rep.ThreadID,
		Turn:     rep.Turn,
		Route:    string(rep.Route),
	})
}

type historyResponse struct {
	ThreadID string          `json:"thread_id"`
	Messages []model.Message `json:"messages"`
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	msgs, err := s.chat.History(r.Context(), threadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, historyResponse{ThreadID: threadID, Messages: msgs})
}

func (s *Server) handleChatReset(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["id"]
	key := projectmanager.ThreadKey(threadID)
	if !s.claim(key) {
		writeError(w, http.StatusConflict, errThreadBusy)
		return
	}
	err := s.chat.Reset(r.Context(), threadID)
	s.release(key, nil)
	s.forget(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
