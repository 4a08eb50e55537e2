package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// DefaultBaseURL is the OpenAI transcription endpoint.
const DefaultBaseURL = "https://api.openai.com/v1/audio/transcriptions"

// whisperClient speaks the multipart transcription wire contract.
type whisperClient struct {
	apiKey     string
	url        string
	httpClient *http.Client
}

func newWhisperClient(apiKey string, url string) *whisperClient {
	if url == "" {
		url = DefaultBaseURL
	}
	return &whisperClient{
		apiKey:     apiKey,
		url:        url,
		httpClient: http.DefaultClient,
	}
}

// Transcribe posts one WAV file and returns the provider's text plus raw payload.
func (c *whisperClient) Transcribe(ctx context.Context, wavPath string, opts Options) (string, []byte, error) {
	file, err := os.Open(wavPath)
	if err != nil {
		return "", nil, fmt.Errorf("open audio file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", opts.Model); err != nil {
		return "", nil, err
	}
	if opts.Language != "" {
		if err := writer.WriteField("language", opts.Language); err != nil {
			return "", nil, err
		}
	}
	if err := writer.WriteField("response_format", "json"); err != nil {
		return "", nil, err
	}
	if err := writer.WriteField("temperature", strconv.FormatFloat(opts.Temperature, 'g', -1, 64)); err != nil {
		return "", nil, err
	}
	if opts.Prompt != "" {
		if err := writer.WriteField("prompt", opts.Prompt); err != nil {
			return "", nil, err
		}
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", nil, fmt.Errorf("buffer audio file: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", nil, ErrCancelled
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return "", nil, &ProviderError{Kind: KindTimeout}
		}
		return "", nil, &ProviderError{Kind: KindOther, Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, &ProviderError{Kind: KindOther, Body: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", nil, &ProviderError{Kind: KindInvalidKey, Status: resp.StatusCode, Body: string(raw)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", nil, &ProviderError{Kind: KindRateLimited, Status: resp.StatusCode, Body: string(raw)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", nil, &ProviderError{Kind: KindOther, Status: resp.StatusCode, Body: string(raw)}
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", nil, &ProviderError{Kind: KindOther, Status: resp.StatusCode, Body: "malformed provider payload"}
	}

	return strings.TrimSpace(parsed.Text), raw, nil
}
