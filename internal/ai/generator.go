// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.

// Package ai holds the prompt flows that call the hosted Gemini model: bill
// extraction, category suggestion, the spending assistant and work-schedule
// parsing. Every flow degrades to a local fallback when the model is
// unavailable or answers with something unusable.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

var ErrEmptyResponse = errors.New("model returned an empty response")

type Image struct {
	Data []byte
	MIME string
}

type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is one model call. When JSON is set the model is asked for an
// application/json response.
type Request struct {
	System  string
	Prompt  string
	Images  []Image
	History []Turn
	JSON    bool
}

type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model, temperature: 0.2}, nil
}

func (g *GeminiClient) Model() string {
	return g.model
}

func (g *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.RoleUser
		if turn.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}

	parts := make([]*genai.Part, 0, len(req.Images)+1)
	for _, img := range req.Images {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIME))
	}
	parts = append(parts, genai.NewPartFromText(req.Prompt))
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
