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
	openaiAPIURL = "https://api.openai.com/v1/chat/completions"

	// DefaultOpenAIModel is the chat model used when none is configured.
	DefaultOpenAIModel = "gpt-4o-mini"
)

// OpenAIProvider implements the LLMProvider interface for OpenAI's chat
// completions API.
type OpenAIProvider struct {
	Config
	httpClient *http.Client
	apiURL     string
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

type openaiResponse struct {
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

// NewOpenAIProvider creates a new instance of the OpenAI provider.
func NewOpenAIProvider(config Config) *OpenAIProvider {
	return &OpenAIProvider{
		Config: config,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		apiURL: openaiAPIURL,
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Complete implements the LLMProvider interface for OpenAI.
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("OpenAI API key not provided")
	}

	model := p.ModelID
	if model == "" {
		model = DefaultOpenAIModel
	}

	reqBody := openaiRequest{
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
		return "", fmt.Errorf("error sending request to OpenAI API: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %v", err)
	}

	var openaiResp openaiResponse
	if err := json.Unmarshal(respBody, &openaiResp); err != nil {
		return "", fmt.Errorf("error unmarshaling response (status %d): %v", resp.StatusCode, err)
	}

	if openaiResp.Error != nil {
		return "", fmt.Errorf("OpenAI API error: %s: %s",
			openaiResp.Error.Type, openaiResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("OpenAI API returned status %d", resp.StatusCode)
	}

	if len(openaiResp.Choices) == 0 || openaiResp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response from OpenAI API")
	}

	return openaiResp.Choices[0].Message.Content, nil
}
