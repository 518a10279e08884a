// Package openai implements llm.Client over the official OpenAI Go SDK's
// Responses API, grounded on the pack's openaiofficial adapter: the same
// openai.Client embedding and responses.ResponseNewParams request shape, with
// OutputText() as the text-extraction fallback.
package openai

import (
	"errors"
	"fmt"

	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"

	"github.com/researchlab/orchestrator/internal/agents/llm"
)

// Options configures Client.
type Options struct {
	DefaultModel string
	MaxTokens    int
	Temperature  float64
}

// Client implements llm.Client on top of the OpenAI Responses API.
type Client struct {
	client openai.Client
	model  string
	maxTok int
	temp   float64
}

// New builds a Client from an API key.
func New(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  opts.DefaultModel,
		maxTok: opts.MaxTokens,
		temp:   opts.Temperature,
	}, nil
}

// Complete issues a Responses.New request and returns its text output.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}

	input := req.Prompt
	if req.System != "" {
		input = "System: " + req.System + "\n\n" + req.Prompt
	}

	params := responses.ResponseNewParams{
		Model: c.model,
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(input)},
	}
	if maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(maxTokens))
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("openai responses.new: %w", err)
	}
	if resp == nil {
		return llm.Response{}, errors.New("empty response from openai responses api")
	}
	return llm.Response{
		Text:         resp.OutputText(),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}
