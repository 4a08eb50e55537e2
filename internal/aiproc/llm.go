package aiproc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
)

// DefaultBaseURL is the OpenAI chat-completions endpoint.
const DefaultBaseURL = "https://api.openai.com/v1/chat/completions"

// Message is one chat turn in the provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// llmClient speaks the chat-completions wire contract.
type llmClient struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

func newLLMClient(apiKey string, url string) *llmClient {
	if url == "" {
		url = DefaultBaseURL
	}
	return &llmClient{
		apiKey:     apiKey,
		url:        url,
		httpClient: http.DefaultClient,
	}
}

// Complete posts one chat request and returns the first choice's content.
func (c *llmClient) Complete(ctx context.Context, model string, messages []Message, temperature float64) (string, error) {
	payload := map[string]any{
		"model":       model,
		"messages":    messages,
		"temperature": temperature,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", ErrCancelled
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &ProviderError{Kind: KindTimeout}
		}
		return "", &ProviderError{Kind: KindOther, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ProviderError{Kind: KindOther, Body: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", &ProviderError{Kind: KindInvalidKey, Status: resp.StatusCode, Body: string(raw)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &ProviderError{Kind: KindRateLimited, Status: resp.StatusCode, Body: string(raw)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &ProviderError{Kind: KindOther, Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &ProviderError{Kind: KindOther, Status: resp.StatusCode, Body: "malformed provider payload"}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Kind: KindOther, Status: resp.StatusCode, Body: "no choices returned"}
	}

	return parsed.Choices[0].Message.Content, nil
}
