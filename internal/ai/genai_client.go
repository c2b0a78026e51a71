package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"google.golang.org/genai"
)

// SDKClient generates through the official genai SDK. The SDK decodes the
// response envelope itself, so decode failures surface as transport errors.
type SDKClient struct {
	client *genai.Client
	model  string
}

var _ Generator = (*SDKClient)(nil)

func NewSDKClient(ctx context.Context, apiKey, model, endpoint string) (*SDKClient, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if endpoint != "" && endpoint != defaultGeminiEndpoint {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &SDKClient{client: client, model: model}, nil
}

func (c *SDKClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](temperature),
		MaxOutputTokens:  maxOutputTokens,
		ResponseMIMEType: jsonMimeType,
	})
	if err != nil {
		return "", classifySDKError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", &Error{Kind: ErrNoCandidate, Message: "No response generated by AI"}
	}
	if resp.UsageMetadata != nil {
		slog.InfoContext(ctx, "API usage", "prompt_tokens", resp.UsageMetadata.PromptTokenCount, "candidate_tokens", resp.UsageMetadata.CandidatesTokenCount)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 || candidate.Content.Parts[0].Text == "" {
		return "", &Error{Kind: ErrEmptyContent, Message: "Empty content in AI response"}
	}
	return candidate.Content.Parts[0].Text, nil
}

func classifySDKError(err error) error {
	code, msg, ok := apiErrorDetails(err)
	if !ok {
		return &Error{Kind: ErrTransport, Message: "Could not reach Gemini: " + err.Error(), Err: err}
	}
	if code == http.StatusServiceUnavailable {
		return &Error{Kind: ErrUnavailable, Message: unavailableMessage, Err: err}
	}
	if msg == "" {
		msg = fmt.Sprintf("API Error (%d)", code)
	}
	return &Error{Kind: ErrUpstream, Message: msg, Err: err}
}

func apiErrorDetails(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}
