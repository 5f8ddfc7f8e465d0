// Package openaicompat talks to any OpenAI-compatible chat completion
// endpoint (OpenAI, vLLM, llama.cpp server, Ollama's /v1).
package openaicompat

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"voicevision-tutor/internal/apperr"
	"voicevision-tutor/internal/llm"
)

type Client struct {
	cli   *openai.Client
	model string
}

func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	return &Client{cli: openai.NewClientWithConfig(cfg), model: model}
}

func (c *Client) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: make([]openai.ChatCompletionMessage, 0, len(messages)),
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := c.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apperr.ExternalTool("LLM service request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.InvalidUpstreamResponse("Invalid response from LLM service")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	list, err := c.cli.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
