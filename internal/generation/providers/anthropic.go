package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIURL = "https://api.anthropic.com/v1/messages"

	// DefaultAnthropicModel is the Claude model used when none is configured.
	DefaultAnthropicModel = "claude-3-haiku-20240307"
)

// AnthropicProvider implements the LLMProvider interface for Anthropic's
// Claude messages API.
type AnthropicProvider struct {
	Config
	httpClient *http.Client
	apiURL     string
	version    string
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewAnthropicProvider creates a new instance of the Anthropic provider.
func NewAnthropicProvider(config Config) *AnthropicProvider {
	return &AnthropicProvider{
		Config: config,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		apiURL:  anthropicAPIURL,
		version: "2023-06-01",
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// Complete implements the LLMProvider interface for Anthropic.
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("Anthropic API key not provided")
	}

	model := p.ModelID
	if model == "" {
		model = DefaultAnthropicModel
	}

	reqBody := anthropicRequest{
		Model: model,
		Messages: []anthropicMessage{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		MaxTokens:   DefaultMaxOutputTokens,
		Temperature: 0,
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %v", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.apiURL,
		strings.NewReader(string(reqJSON)),
	)
	if err != nil {
		return "", fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", p.APIKey)
	req.Header.Set("Anthropic-Version", p.version)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request to Anthropic API: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %v", err)
	}

	var anthResp anthropicResponse
	if err := json.Unmarshal(respBody, &anthResp); err != nil {
		return "", fmt.Errorf("error unmarshaling response (status %d): %v", resp.StatusCode, err)
	}

	if anthResp.Error != nil {
		return "", fmt.Errorf("Anthropic API error: %s: %s",
			anthResp.Error.Type, anthResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Anthropic API returned status %d", resp.StatusCode)
	}

	if len(anthResp.Content) == 0 || anthResp.Content[0].Text == "" {
		return "", fmt.Errorf("empty response from Anthropic API")
	}

	return anthResp.Content[0].Text, nil
}
