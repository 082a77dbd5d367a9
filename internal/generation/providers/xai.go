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
	xaiAPIURL = "https://api.x.ai/v1/chat/completions"

	// DefaultXAIModel is the Grok model used when none is configured.
	DefaultXAIModel = "grok-2"
)

// XAIProvider implements the LLMProvider interface for X.AI's Grok models.
// The API speaks the OpenAI chat completions format.
type XAIProvider struct {
	Config
	httpClient *http.Client
	apiURL     string
}

type xaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type xaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewXAIProvider creates a new instance of the X.AI provider.
func NewXAIProvider(config Config) *XAIProvider {
	return &XAIProvider{
		Config: config,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		apiURL: xaiAPIURL,
	}
}

// Name returns the provider name.
func (p *XAIProvider) Name() string {
	return ProviderXAI
}

// Complete implements the LLMProvider interface for X.AI.
func (p *XAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("X.AI API key not provided")
	}

	model := p.ModelID
	if model == "" {
		model = DefaultXAIModel
	}

	reqBody := xaiRequest{
		Model: model,
		Messages: []openaiMessage{
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
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.APIKey))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request to X.AI API: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %v", err)
	}

	var xaiResp xaiResponse
	if err := json.Unmarshal(respBody, &xaiResp); err != nil {
		return "", fmt.Errorf("error unmarshaling response (status %d): %v", resp.StatusCode, err)
	}

	if xaiResp.Error != nil {
		return "", fmt.Errorf("X.AI API error: %s: %s",
			xaiResp.Error.Type, xaiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("X.AI API returned status %d", resp.StatusCode)
	}

	if len(xaiResp.Choices) == 0 || xaiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from X.AI API")
	}

	return xaiResp.Choices[0].Message.Content, nil
}
