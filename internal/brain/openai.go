package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/atlasbrief/atlasbrief/internal/config"
)

// OpenAIBrain talks to any OpenAI-compatible chat-completions endpoint.
type OpenAIBrain struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewOpenAIBrain(cfg *config.Config) *OpenAIBrain {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Provider.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIBrain{
		apiKey:     cfg.Provider.APIKey,
		baseURL:    baseURL,
		model:      cfg.Model(),
		maxTokens:  cfg.MaxTokens(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

var _ Brain = (*OpenAIBrain)(nil)

func (b *OpenAIBrain) Classify(ctx context.Context, sub Submission) (*Classification, error) {
	raw, err := b.complete(ctx, fmt.Sprintf(classifyPrompt, submissionText(sub)), true)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	var out Classification
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &out); err != nil {
		return nil, fmt.Errorf("parse classification: %w", err)
	}
	if !out.Verified {
		reason := out.Reason
		if reason == "" {
			reason = "not verifiable"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, reason)
	}
	return &out, nil
}

func (b *OpenAIBrain) Script(ctx context.Context, reportText string) (string, error) {
	out, err := b.complete(ctx, fmt.Sprintf(scriptPrompt, reportText), false)
	if err != nil {
		return "", fmt.Errorf("script: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (b *OpenAIBrain) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	if strings.TrimSpace(b.apiKey) == "" {
		return "", fmt.Errorf("missing api key")
	}

	body := map[string]any{
		"model": b.model,
		"messages": []map[string]string{{
			"role":    "user",
			"content": prompt,
		}},
		"max_tokens":  b.maxTokens,
		"temperature": 0.3,
	}
	if jsonMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("model http %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("empty choices in response")
	}
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty content in response")
	}
	return content, nil
}
