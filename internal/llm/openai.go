package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIClient talks to OpenAI or any OpenAI-compatible endpoint such as
// OpenRouter via a custom base URL.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

func NewOpenAIClient(apiKey, model, baseURL string, temperature float32, maxTokens int) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(messages, opts, false))
	if err != nil {
		httpStatus, retryAfter := extractErrorMetadata(err)
		return Completion{}, WrapError(err, httpStatus, retryAfter)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("empty completion response")
	}
	choice := resp.Choices[0]

	finishReason := "stop"
	switch choice.FinishReason {
	case openai.FinishReasonLength:
		finishReason = "length"
	case openai.FinishReasonContentFilter:
		finishReason = "content_filter"
	}

	return Completion{
		Content:      choice.Message.Content,
		FinishReason: finishReason,
		Usage: Usage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
			Total:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, messages []Message, opts Options) <-chan Fragment {
	ch := make(chan Fragment, 16)

	go func() {
		defer close(ch)

		stream, err := c.client.CreateChatCompletionStream(ctx, c.buildRequest(messages, opts, true))
		if err != nil {
			httpStatus, retryAfter := extractErrorMetadata(err)
			ch <- Fragment{Err: WrapError(err, httpStatus, retryAfter), Final: true}
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") {
					ch <- Fragment{Final: true}
					return
				}
				httpStatus, retryAfter := extractErrorMetadata(err)
				ch <- Fragment{Err: WrapError(err, httpStatus, retryAfter), Final: true}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				select {
				case ch <- Fragment{Content: delta}:
				case <-ctx.Done():
					ch <- Fragment{Err: ctx.Err(), Final: true}
					return
				}
			}
		}
	}()

	return ch
}

func (c *OpenAIClient) buildRequest(messages []Message, opts Options, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	model := opts.Model
	if model == "" {
		model = c.model
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
	}

	temperature := opts.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	if temperature > 0 {
		req.Temperature = &temperature
	}

	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}

	if stream {
		req.Stream = true
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}
	return req
}
