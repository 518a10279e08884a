// Package bedrock implements llm.Client over the AWS Bedrock Converse API,
// using the same RuntimeClient seam (satisfied by *bedrockruntime.Client), the
// same ConverseInput construction (ModelId/Messages/System/InferenceConfig),
// and the same response translation (text content blocks + usage).
package bedrock

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/researchlab/orchestrator/internal/agents/llm"
)

// RuntimeClient mirrors the subset of the AWS Bedrock runtime client Client
// depends on. It matches *bedrockruntime.Client so callers can pass either
// the real client or a test double.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Options configures Client.
type Options struct {
	Runtime      RuntimeClient
	DefaultModel string
	MaxTokens    int
	Temperature  float32
}

// Client implements llm.Client on top of AWS Bedrock Converse.
type Client struct {
	runtime RuntimeClient
	model   string
	maxTok  int
	temp    float32
}

// New builds a Client from a connected Bedrock runtime client.
func New(opts Options) (*Client, error) {
	if opts.Runtime == nil {
		return nil, errors.New("bedrock runtime client is required")
	}
	if opts.DefaultModel == "" {
		return nil, errors.New("default model identifier is required")
	}
	return &Client{
		runtime: opts.Runtime,
		model:   opts.DefaultModel,
		maxTok:  opts.MaxTokens,
		temp:    opts.Temperature,
	}, nil
}

// Complete issues a Converse request and returns the concatenated text of
// the response message.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	messages := []brtypes.Message{
		{
			Role:    brtypes.ConversationRoleUser,
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: req.Prompt}},
		},
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.model),
		Messages: messages,
	}
	if req.System != "" {
		input.System = []brtypes.SystemContentBlock{&brtypes.SystemContentBlockMemberText{Value: req.System}}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTok
	}
	temp := float32(req.Temperature)
	if temp == 0 {
		temp = c.temp
	}
	if maxTokens > 0 || temp > 0 {
		cfg := &brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			cfg.MaxTokens = aws.Int32(int32(maxTokens))
		}
		if temp > 0 {
			cfg.Temperature = aws.Float32(temp)
		}
		input.InferenceConfig = cfg
	}

	out, err := c.runtime.Converse(ctx, input)
	if err != nil {
		return llm.Response{}, fmt.Errorf("bedrock converse: %w", err)
	}
	if out == nil {
		return llm.Response{}, errors.New("bedrock: response is nil")
	}

	var text string
	if msg, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		for _, block := range msg.Value.Content {
			if t, ok := block.(*brtypes.ContentBlockMemberText); ok {
				text += t.Value
			}
		}
	}
	resp := llm.Response{Text: text}
	if out.Usage != nil {
		if out.Usage.InputTokens != nil {
			resp.InputTokens = int(*out.Usage.InputTokens)
		}
		if out.Usage.OutputTokens != nil {
			resp.OutputTokens = int(*out.Usage.OutputTokens)
		}
	}
	return resp, nil
}
