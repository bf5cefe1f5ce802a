// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// systemPrompt instructs the model to answer with one post as JSON.
const systemPrompt = `You write blog posts for a fitness gym's website.

Respond with a single valid JSON object (no markdown code fences, no extra text) with exactly these fields:

{
  "title": "A short, engaging title",
  "excerpt": "One or two sentences summarising the post, under 300 characters",
  "content": "The full post in Markdown, 400 to 800 words, with a few ## section headings",
  "category": "One or two words, e.g. Training, Nutrition, Recovery, Community"
}

Rules:
- Practical, encouraging and accurate; no medical claims
- Do not repeat the title inside content
- Respond ONLY with the JSON object`

// generatedPost is the JSON shape the model is asked for.
type generatedPost struct {
	Title    string `json:"title"`
	Excerpt  string `json:"excerpt"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// OpenAIGenerator generates drafts with the OpenAI chat completions API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

// NewOpenAIGenerator creates a generator. Extra client options (base URL,
// retries) are passed through to the SDK.
func NewOpenAIGenerator(apiKey, model string, opts ...option.RequestOption) *OpenAIGenerator {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// Generate asks the model for one post about req.Prompt.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request) (Draft, error) {
	resp, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(buildUserPrompt(req)),
		},
		Temperature: openai.Float(0.7),
	})
	if err != nil {
		return Draft{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Draft{}, errors.New("openai: no choices returned")
	}
	return parseDraft(resp.Choices[0].Message.Content)
}

func buildUserPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("Write a post about: ")
	sb.WriteString(req.Prompt)
	sb.WriteString("\n")
	if req.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", req.Category)
	}
	return sb.String()
}

// parseDraft extracts the post JSON from a model answer, tolerating code
// fences and surrounding prose.
func parseDraft(answer string) (Draft, error) {
	cleaned := strings.TrimSpace(answer)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
		cleaned = strings.TrimSpace(cleaned)
	}

	var post generatedPost
	if err := json.Unmarshal([]byte(cleaned), &post); err != nil {
		start := strings.Index(answer, "{")
		end := strings.LastIndex(answer, "}")
		if start < 0 || end <= start {
			return Draft{}, fmt.Errorf("no JSON found in answer: %w", err)
		}
		if err2 := json.Unmarshal([]byte(answer[start:end+1]), &post); err2 != nil {
			return Draft{}, fmt.Errorf("could not parse JSON from answer: %w", err2)
		}
	}

	if strings.TrimSpace(post.Title) == "" || strings.TrimSpace(post.Content) == "" {
		return Draft{}, errors.New("incomplete answer: title and content are required")
	}

	return Draft{
		Title:    strings.TrimSpace(post.Title),
		Excerpt:  strings.TrimSpace(post.Excerpt),
		Content:  strings.TrimSpace(post.Content),
		Category: strings.TrimSpace(post.Category),
	}, nil
}
