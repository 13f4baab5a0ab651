//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package backend is an HTTP client for the ProMeet CRUD API. It serves the
// meeting workflow as a record sink and the project chat as a data source.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phuocNg964/ProMeet-AI/log"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:8000/api"

// DefaultTimeout bounds each API request.
const DefaultTimeout = 30 * time.Second

// Record is a JSON object returned by the API.
type Record = map[string]any

// APIError is a non-success HTTP status returned by the API.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d) %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
}

type tokenKey struct{}

// WithBearerToken returns a context whose API calls authenticate with token.
// It takes precedence over the client's configured token.
func WithBearerToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// BearerToken returns the token stored by WithBearerToken.
func BearerToken(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client calls the CRUD API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the fallback bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string { return c.baseURL }

// Projects lists the projects the caller belongs to.
func (c *Client) Projects(ctx context.Context) ([]Record, error) {
	var out []Record
	err := c.do(ctx, http.MethodGet, "/v1/projects", nil, http.StatusOK, &out)
	return out, err
}

// Project returns one project.
func (c *Client) Project(ctx context.Context, projectID string) (Record, error) {
	var out Record
	err := c.do(ctx, http.MethodGet, "/v1/projects/"+url.PathEscape(projectID), nil, http.StatusOK, &out)
	return out, err
}

// Tasks lists the tasks of a project.
func (c *Client) Tasks(ctx context.Context, projectID string) ([]Record, error) {
	var out []Record
	err := c.do(ctx, http.MethodGet, "/v1/tasks/"+url.PathEscape(projectID), nil, http.StatusOK, &out)
	return out, err
}

// Meetings lists the meetings of a project.
func (c *Client) Meetings(ctx context.Context, projectID string) ([]Record, error) {
	var out []Record
	err := c.do(ctx, http.MethodGet, "/v1/meetings/"+url.PathEscape(projectID), nil, http.StatusOK, &out)
	return out, err
}

// CurrentUser returns the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (Record, error) {
	var out Record
	err := c.do(ctx, http.MethodGet, "/v1/users/me", nil, http.StatusOK, &out)
	return out, err
}

// CreateTask creates a task. The API answers 201 on success.
func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Record, error) {
	in = in.normalized()
	var out Record
	err := c.do(ctx, http.MethodPost, "/v1/tasks", in, http.StatusCreated, &out)
	return out, err
}

// UpdateTaskStatus moves a task to status.
func (c *Client) UpdateTaskStatus(ctx context.Context, taskID, status string) (Record, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("invalid status %q, valid statuses: %s", status, strings.Join(Statuses, ", "))
	}
	var out Record
	path := "/v1/tasks/" + url.PathEscape(taskID) + "/status"
	err := c.do(ctx, http.MethodPatch, path, map[string]string{"status": status}, http.StatusOK, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.tokenFor(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rsp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer rsp.Body.Close()
	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if rsp.StatusCode != want {
		log.Warnf("%s %s returned %d", method, path, rsp.StatusCode)
		return &APIError{Method: method, Path: path, StatusCode: rsp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) tokenFor(ctx context.Context) string {
	if token := BearerToken(ctx); token != "" {
		return token
	}
	return c.token
}

// errorMessage prefers the "message" or "detail" field of a JSON error body.
func errorMessage(data []byte) string {
	var body map[string]any
	if err := json.Unmarshal(data, &body); err == nil {
		for _, k := range []string{"message", "detail"} {
			if v, ok := body[k]; ok {
				return fmt.Sprint(v)
			}
		}
	}
	return strings.TrimSpace(string(data))
}
