// Package anthropic implements llm.Client over the Anthropic Claude Messages
// API. Exposes the same MessagesClient seam (satisfied by *sdk.MessageService
// or a test double), the same Options shape
// (DefaultModel/HighModel/SmallModel/MaxTokens/Temperature), and the same
// New/NewFromAPIKey constructor split used by every provider in this tree.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/researchlab/orchestrator/internal/agents/llm"
)

// MessagesClient captures the subset of the Anthropic SDK used by Client. It
// is satisfied by *sdk.MessageService so callers can pass either a real
// client or a test double.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Options configures Client.
type Options struct {
	// DefaultModel is used whenever Tier is empty or TierDefault.
	DefaultModel string
	// HighModel is used for capabilities that request the high-reasoning tier
	// (Hypothesis, Reflection).
	HighModel string
	// SmallModel is used for cheap, high-volume capabilities (Continue-decision).
	SmallModel string
	MaxTokens  int
	Temperature float64
}

// Tier selects which of the three configured models answers a request.
type Tier int

const (
	TierDefault Tier = iota
	TierHigh
	TierSmall
)

// Client implements llm.Client on top of Anthropic Claude Messages.
type Client struct {
	msg          MessagesClient
	defaultModel string
	highModel    string
	smallModel   string
	maxTok       int
	temp         float64
	tier         Tier
}

// New builds a Client from a connected Anthropic Messages client.
func New(msg MessagesClient, opts Options) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{
		msg:          msg,
		defaultModel: opts.DefaultModel,
		highModel:    opts.HighModel,
		smallModel:   opts.SmallModel,
		maxTok:       opts.MaxTokens,
		temp:         opts.Temperature,
	}, nil
}

// NewFromAPIKey constructs a Client using the default Anthropic HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, opts)
}

// WithTier returns a shallow copy of c that resolves requests against tier
// instead of the default model. Used to back the High/Small capability
// wrappers from a single configured client.
func (c *Client) WithTier(tier Tier) *Client {
	cp := *c
	cp.tier = tier
	return &cp
}

func (c *Client) resolveModel() string {
	switch c.tier {
	case TierHigh:
		if c.highModel != "" {
			return c.highModel
		}
	case TierSmall:
		if c.smallModel != "" {
			return c.smallModel
		}
	}
	return c.defaultModel
}

// Complete issues a non-streaming Messages.New request and returns the
// concatenated text of the response.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.temp
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.resolveModel()),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}
	if temp > 0 {
		params.Temperature = sdk.Float(temp)
	}

	msg, err := c.msg.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("anthropic messages.new: %w", err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return llm.Response{
		Text:         text,
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
