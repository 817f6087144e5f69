// Package anthropic implements enrich.Provider against the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/enrich"
)

// Client wraps an anthropic.Client configured for vision description
// requests. It applies no request timeout of its own — the caller's
// context carries the enricher's sole timeout.
type Client struct {
	client anthropic.Client
	model  string
}

// New builds a Client. apiKey and baseURL follow ${ENV_VAR}-expanded
// config values; baseURL may be empty to use the default endpoint.
func New(apiKey, baseURL, model string) *Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: anthropic.NewClient(opts...), model: model}
}

var _ enrich.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, imageBytes []byte, mediaType, prompt string) (enrich.GenerateResult, error) {
	imageBlock := anthropic.NewImageBlock(anthropic.Base64ImageSourceParam{
		Data:      base64.StdEncoding.EncodeToString(imageBytes),
		MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
	})
	textBlock := anthropic.NewTextBlock(prompt)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: 1024,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(imageBlock, textBlock),
		},
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return enrich.GenerateResult{}, classify(err)
	}

	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return enrich.GenerateResult{
		Text:   text,
		Model:  string(msg.Model),
		Tokens: int(msg.Usage.OutputTokens),
	}, nil
}

// classify maps the SDK's public error type to perr.LLMError so the
// enricher's retry classification can see the HTTP status.
func classify(err error) *perr.LLMError {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &perr.LLMError{StatusCode: apiErr.StatusCode, Message: apiErr.Error(), Cause: err}
	}
	return &perr.LLMError{Message: err.Error(), Cause: err}
}
