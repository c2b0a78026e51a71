package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
)

const (
	defaultGeminiEndpoint = "https://generativelanguage.googleapis.com"
	maxOutputTokens       = 3000
	temperature           = 0.2
	jsonMimeType          = "application/json"
)

// RESTClient calls the generateContent endpoint directly.
type RESTClient struct {
	apiKey   string
	model    string
	endpoint string
	schema   map[string]any

	httpClient *http.Client
}

var _ Generator = (*RESTClient)(nil)

// NewRESTClient builds a client for model. An empty endpoint uses the public
// Gemini API. With strictSchema the recipe JSON schema is sent as well.
func NewRESTClient(apiKey, model, endpoint string, strictSchema bool) *RESTClient {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = defaultGeminiEndpoint
	}
	c := &RESTClient{
		apiKey:     apiKey,
		model:      model,
		endpoint:   strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	if strictSchema {
		c.schema = recipeSchema()
	}
	return c
}

func recipeSchema() map[string]any {
	r := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := r.Reflect(&Recipe{})
	schemaJSON, _ := json.Marshal(schema)

	var m map[string]any
	_ = json.Unmarshal(schemaJSON, &m)
	// the API rejects the meta keywords
	delete(m, "$schema")
	delete(m, "$id")
	return m
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens    int            `json:"maxOutputTokens"`
	Temperature        float64        `json:"temperature"`
	ResponseMimeType   string         `json:"responseMimeType"`
	ResponseJSONSchema map[string]any `json:"responseJsonSchema,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata json.RawMessage `json:"usageMetadata"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *RESTClient) url() string {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.endpoint, url.PathEscape(c.model), url.QueryEscape(c.apiKey))
}

// Generate returns the text of the first candidate. Failures are *Error values.
func (c *RESTClient) Generate(ctx context.Context, prompt string) (string, error) {
	requestBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens:    maxOutputTokens,
			Temperature:        temperature,
			ResponseMimeType:   jsonMimeType,
			ResponseJSONSchema: c.schema,
		},
	}
	body, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: ErrTransport, Message: "Could not reach Gemini: " + redactKey(err.Error(), c.apiKey), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: ErrTransport, Message: "Failed reading Gemini response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusServiceUnavailable {
			return "", &Error{Kind: ErrUnavailable, Message: unavailableMessage}
		}
		msg := fmt.Sprintf("API Error (%d)", resp.StatusCode)
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			msg = apiErr.Error.Message
		}
		return "", &Error{Kind: ErrUpstream, Message: msg}
	}

	if strings.TrimSpace(string(respBody)) == "" {
		return "", &Error{Kind: ErrEmptyResponse, Message: "Empty response from AI"}
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &Error{Kind: ErrInvalidEnvelope, Message: "Invalid response format from AI", Err: err}
	}
	if len(parsed.Candidates) == 0 {
		return "", &Error{Kind: ErrNoCandidate, Message: "No response generated by AI"}
	}
	if len(parsed.UsageMetadata) > 0 {
		slog.InfoContext(ctx, "API usage", slog.Any("usage", parsed.UsageMetadata))
	}

	candidate := parsed.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 || candidate.Content.Parts[0].Text == "" {
		return "", &Error{Kind: ErrEmptyContent, Message: "Empty content in AI response"}
	}
	return candidate.Content.Parts[0].Text, nil
}

// redactKey keeps the api key out of error messages, url.Error includes the full URL.
func redactKey(msg, key string) string {
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED"), key, "REDACTED")
}
