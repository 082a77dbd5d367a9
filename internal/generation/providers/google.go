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
	googleAPIURL = "https://generativelanguage.googleapis.com/v1beta/models"

	// DefaultGoogleModel is the Gemini model used when none is configured.
	DefaultGoogleModel = "gemini-2.0-flash-exp"
)

// GoogleProvider implements the LLMProvider interface for Google's Gemini
// generateContent API.
type GoogleProvider struct {
	Config
	httpClient *http.Client
	apiURL     string
}

type googlePart struct {
	Text string `json:"text"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

// googleGenerationConfig deliberately serializes Temperature even when zero;
// an omitted field would let the service pick its own default.
type googleGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type googleRequest struct {
	Contents         []googleContent        `json:"contents"`
	GenerationConfig googleGenerationConfig `json:"generationConfig"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

// NewGoogleProvider creates a new instance of the Google provider.
func NewGoogleProvider(config Config) *GoogleProvider {
	return &GoogleProvider{
		Config: config,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		apiURL: googleAPIURL,
	}
}

// Name returns the provider name.
func (p *GoogleProvider) Name() string {
	return ProviderGoogle
}

// Complete implements the LLMProvider interface for Google.
func (p *GoogleProvider) Complete(ctx context.Context, prompt string) (string, error) {
	if p.APIKey == "" {
		return "", fmt.Errorf("Google API key not provided")
	}

	model := p.ModelID
	if model == "" {
		model = DefaultGoogleModel
	}

	reqBody := googleRequest{
		Contents: []googleContent{
			{
				Parts: []googlePart{{Text: prompt}},
				Role:  "user",
			},
		},
		GenerationConfig: googleGenerationConfig{
			Temperature:     0,
			MaxOutputTokens: DefaultMaxOutputTokens,
		},
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %v", err)
	}

	// The API key travels in the URL for this service.
	apiURL := fmt.Sprintf("%s/%s:generateContent?key=%s", p.apiURL, model, p.APIKey)
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		apiURL,
		strings.NewReader(string(reqJSON)),
	)
	if err != nil {
		return "", fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request to Google API: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response body: %v", err)
	}

	var googleResp googleResponse
	if err := json.Unmarshal(respBody, &googleResp); err != nil {
		return "", fmt.Errorf("error unmarshaling response (status %d): %v", resp.StatusCode, err)
	}

	if googleResp.Error != nil {
		return "", fmt.Errorf("Google API error: %s: %s",
			googleResp.Error.Status, googleResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Google API returned status %d", resp.StatusCode)
	}

	if len(googleResp.Candidates) == 0 ||
		len(googleResp.Candidates[0].Content.Parts) == 0 ||
		googleResp.Candidates[0].Content.Parts[0].Text == "" {
		return "", fmt.Errorf("empty response from Google API")
	}

	return googleResp.Candidates[0].Content.Parts[0].Text, nil
}
