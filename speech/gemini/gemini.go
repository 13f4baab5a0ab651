//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package gemini provides a speech.Transcriber backed by the Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"github.com/phuocNg964/ProMeet-AI/speech"
)

var _ speech.Transcriber = (*Transcriber)(nil)

const (
	// DefaultModel is the default Gemini model used for transcription.
	DefaultModel = "gemini-2.5-flash"
	// GoogleAPIKeyEnv is the environment variable holding the API key.
	GoogleAPIKeyEnv = "GOOGLE_API_KEY"
	// GeminiAPIKeyEnv is checked when GoogleAPIKeyEnv is unset.
	GeminiAPIKeyEnv = "GEMINI_API_KEY"
)

// DefaultPrompt asks for a speaker-labelled, timestamped transcript.
const DefaultPrompt = `Produce a verbatim transcript of this technical meeting recording.
Strict format:
1. Every turn starts with an exact timestamp [HH:MM:SS].
2. Then the speaker name, a colon, and what they said.
3. Keep the original spoken language.

Example:
[00:04:15] Long: So, let's move on to the Q3 roadmap.
[00:04:22] Van: That's mostly due to the vendor API changes.

Transcribe the whole recording in this format.`

// ErrEmptyTranscript is returned when the model produced no text.
var ErrEmptyTranscript = errors.New("gemini: empty transcript")

// Transcriber sends audio inline to Gemini and returns the generated text.
type Transcriber struct {
	client        *genai.Client
	model         string
	prompt        string
	apiKey        string
	clientOptions *genai.ClientConfig
	config        *genai.GenerateContentConfig
}

// Option configures a Transcriber.
type Option func(*Transcriber)

// WithModel sets the Gemini model.
func WithModel(model string) Option {
	return func(t *Transcriber) { t.model = model }
}

// WithPrompt replaces the transcription instruction.
func WithPrompt(prompt string) Option {
	return func(t *Transcriber) { t.prompt = prompt }
}

// WithAPIKey sets the API key.
// APIKey priority: WithClientOptions > WithAPIKey > environment.
func WithAPIKey(apiKey string) Option {
	return func(t *Transcriber) { t.apiKey = apiKey }
}

// WithClientOptions sets the Gemini client config.
func WithClientOptions(clientOptions *genai.ClientConfig) Option {
	return func(t *Transcriber) {
		c := *clientOptions
		t.clientOptions = &c
	}
}

// WithGenerateConfig sets request options such as temperature.
func WithGenerateConfig(cfg *genai.GenerateContentConfig) Option {
	return func(t *Transcriber) {
		c := *cfg
		t.config = &c
	}
}

// New creates a Gemini transcriber.
func New(ctx context.Context, opts ...Option) (*Transcriber, error) {
	t := &Transcriber{
		model:         DefaultModel,
		prompt:        DefaultPrompt,
		apiKey:        envAPIKey(),
		clientOptions: &genai.ClientConfig{},
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.clientOptions.APIKey == "" {
		t.clientOptions.APIKey = t.apiKey
	}
	if t.clientOptions.APIKey == "" {
		return nil, fmt.Errorf("%s is not provided", GoogleAPIKeyEnv)
	}
	if t.clientOptions.Backend == genai.BackendUnspecified {
		t.clientOptions.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, t.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	t.client = client
	return t, nil
}

func envAPIKey() string {
	if k := os.Getenv(GoogleAPIKeyEnv); k != "" {
		return k
	}
	return os.Getenv(GeminiAPIKeyEnv)
}

// Transcribe implements speech.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := speech.CheckAudio(audioPath); err != nil {
		return "", err
	}
	data, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(t.prompt),
			genai.NewPartFromBytes(data, MIMEType(audioPath)),
		}, genai.RoleUser),
	}
	rsp, err := t.client.Models.GenerateContent(ctx, t.model, contents, t.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(rsp.Text())
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".mp4":  "video/mp4",
	".webm": "audio/webm",
}

// MIMEType guesses the media type of an audio file from its extension.
func MIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
