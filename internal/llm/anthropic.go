package llm

import (
	"context"
	"fmt"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const anthropicDefaultMaxTokens = 4096

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	client      *anthropic.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewAnthropicClient(apiKey, model string, temperature float32, maxTokens int) *AnthropicClient {
	return &AnthropicClient{
		client:      anthropic.NewClient(apiKey),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	resp, err := c.client.CreateMessages(ctx, c.buildRequest(messages, opts))
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return Completion{}, WrapError(err, httpStatus, retryAfter)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			content += *block.Text
		}
	}

	finishReason := "stop"
	if resp.StopReason == "max_tokens" {
		finishReason = "length"
	}

	return Completion{
		Content:      content,
		FinishReason: finishReason,
		Usage: Usage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
			Total:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
		},
	}, nil
}

func (c *AnthropicClient) Stream(ctx context.Context, messages []Message, opts Options) <-chan Fragment {
	ch := make(chan Fragment, 16)

	go func() {
		defer close(ch)

		var streamErr error
		req := anthropic.MessagesStreamRequest{
			MessagesRequest: c.buildRequest(messages, opts),
			OnError: func(errResp anthropic.ErrorResponse) {
				streamErr = fmt.Errorf("anthropic stream: %s", errResp.Error.Message)
			},
			OnContentBlockDelta: func(delta anthropic.MessagesEventContentBlockDeltaData) {
				if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
					select {
					case ch <- Fragment{Content: *delta.Delta.Text}:
					case <-ctx.Done():
					}
				}
			},
		}

		if _, err := c.client.CreateMessagesStream(ctx, req); err != nil {
			httpStatus, retryAfter := extractErrorMetadata(err)
			ch <- Fragment{Err: WrapError(err, httpStatus, retryAfter), Final: true}
			return
		}
		if streamErr != nil {
			ch <- Fragment{Err: WrapError(streamErr, 0, ""), Final: true}
			return
		}
		ch <- Fragment{Final: true}
	}()

	return ch
}

func (c *AnthropicClient) buildRequest(messages []Message, opts Options) anthropic.MessagesRequest {
	var systemParts []anthropic.MessageSystemPart
	var msgs []anthropic.Message

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			systemParts = append(systemParts, anthropic.MessageSystemPart{
				Type: "text",
				Text: m.Content,
			})
		case RoleAssistant:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		default:
			msgs = append(msgs, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
			})
		}
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	if temperature > 0 {
		req.Temperature = &temperature
	}

	if len(systemParts) > 0 {
		req.MultiSystem = systemParts
	}
	return req
}
