// Package bedrock implements enrich.Provider against the AWS Bedrock
// Converse API.
package bedrock

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/photon-img/photon/internal/perr"
	"github.com/photon-img/photon/pkg/enrich"
)

// Client wraps a bedrockruntime.Client for vision description
// requests via Converse. It applies no request timeout of its own —
// the caller's context carries the enricher's sole timeout.
type Client struct {
	client  *bedrockruntime.Client
	modelID string
}

// New builds a Client from the default AWS credential chain (region
// must be set via AWS_REGION/config, same as the rest of the SDK).
func New(ctx context.Context, modelID string) (*Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}
	return &Client{client: bedrockruntime.NewFromConfig(awsCfg), modelID: modelID}, nil
}

var _ enrich.Provider = (*Client)(nil)

func (c *Client) Generate(ctx context.Context, imageBytes []byte, mediaType, prompt string) (enrich.GenerateResult, error) {
	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(c.modelID),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberImage{
						Value: types.ImageBlock{
							Format: imageFormat(mediaType),
							Source: &types.ImageSourceMemberBytes{Value: imageBytes},
						},
					},
					&types.ContentBlockMemberText{Value: prompt},
				},
			},
		},
	}

	output, err := c.client.Converse(ctx, input)
	if err != nil {
		return enrich.GenerateResult{}, classify(err)
	}

	msgOutput, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok {
		return enrich.GenerateResult{}, &perr.LLMError{Message: "bedrock converse returned no message output"}
	}

	var text string
	for _, block := range msgOutput.Value.Content {
		if tb, ok := block.(*types.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}

	var tokens int
	if output.Usage != nil && output.Usage.OutputTokens != nil {
		tokens = int(*output.Usage.OutputTokens)
	}

	return enrich.GenerateResult{Text: text, Model: c.modelID, Tokens: tokens}, nil
}

func imageFormat(mediaType string) types.ImageFormat {
	switch strings.TrimPrefix(strings.ToLower(mediaType), "image/") {
	case "png":
		return types.ImageFormatPng
	case "gif":
		return types.ImageFormatGif
	case "webp":
		return types.ImageFormatWebp
	default:
		return types.ImageFormatJpeg
	}
}

// classify maps the SDK's smithy API error to perr.LLMError so the
// enricher's retry classification can see the HTTP status.
func classify(err error) *perr.LLMError {
	var statusCode int
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) {
		statusCode = respErr.HTTPStatusCode()
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return &perr.LLMError{StatusCode: statusCode, Message: apiErr.ErrorMessage(), Cause: err}
	}
	return &perr.LLMError{StatusCode: statusCode, Message: err.Error(), Cause: err}
}
