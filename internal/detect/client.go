package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const completionTimeout = 15 * time.Second

// CompletionClient talks to an OpenAI-compatible chat completions API
// (mistral in production) and returns the raw assistant message.
type CompletionClient struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
}

func NewCompletionClient(apiURL, apiKey, model string) (*CompletionClient, error) {
	if apiKey == "" {
		return nil, errors.New("completion api key not set")
	}
	if apiURL == "" {
		return nil, errors.New("completion api url not set")
	}
	return &CompletionClient{
		apiURL: apiURL,
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   completionTimeout,
		},
	}, nil
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model          string              `json:"model"`
	Messages       []completionMessage `json:"messages"`
	Temperature    float64             `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
}

// Complete sends one system + user prompt pair and returns the model
// answer. The response format is pinned to a json object, so the
// returned string is expected to be valid JSON.
func (c *CompletionClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := completionRequest{
		Model: c.model,
		Messages: []completionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.3,
	}
	reqBody.ResponseFormat.Type = "json_object"

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBytes))
	if err != nil {
		return "", fmt.Errorf("create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("completion api status %d: %s", resp.StatusCode, respBytes)
	}

	var completion completionResponse
	if err := json.Unmarshal(respBytes, &completion); err != nil {
		return "", fmt.Errorf("unmarshal completion response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", errors.New("completion response has no choices")
	}

	return completion.Choices[0].Message.Content, nil
}
