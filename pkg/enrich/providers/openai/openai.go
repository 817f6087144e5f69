// Package openai implements enrich.Provider against the OpenAI Chat
// Completions vision API.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/enrich"
)

// Client wraps an openai.Client for vision description requests. It
// applies no request timeout of its own — the caller's context carries
// the enricher's sole timeout.
type Client struct {
	client openai.Client
	model  string
}

// New builds a Client. baseURL may be empty to use the default
// endpoint (used for OpenAI-compatible gateways).
func New(apiKey, baseURL, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: openai.NewClient(opts...), model: model}
}

var _ enrich.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, imageBytes []byte, mediaType, prompt string) (enrich.GenerateResult, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mediaType, base64.StdEncoding.EncodeToString(imageBytes))

	parts := []openai.ChatCompletionContentPartUnionParam{
		openai.TextContentPart(prompt),
		openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return enrich.GenerateResult{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return enrich.GenerateResult{}, &perr.LLMError{Message: "openai response contained no choices"}
	}

	return enrich.GenerateResult{
		Text:   resp.Choices[0].Message.Content,
		Model:  resp.Model,
		Tokens: int(resp.Usage.CompletionTokens),
	}, nil
}

// classify maps the SDK's public error type to perr.LLMError so the
// enricher's retry classification can see the HTTP status.
func classify(err error) *perr.LLMError {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &perr.LLMError{StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Cause: err}
	}
	return &perr.LLMError{Message: err.Error(), Cause: err}
}
