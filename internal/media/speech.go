package media

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

// SpeechClient synthesizes narration audio through an OpenAI-compatible
// /audio/speech endpoint.
type SpeechClient struct {
	baseURL    string
	apiKey     string
	model      string
	voice      string
	httpClient *http.Client
}

func NewSpeechClient(cfg config.MediaConfig) *SpeechClient {
	model := cfg.TTSModel
	if model == "" {
		model = "tts-1"
	}
	return &SpeechClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.TTSBaseURL), "/"),
		apiKey:     cfg.TTSAPIKey,
		model:      model,
		voice:      cfg.Voice,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Speech returns synthesized audio bytes for text.
func (c *SpeechClient) Speech(ctx context.Context, text string) ([]byte, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("tts base url not configured")
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty narration text")
	}

	payload, err := json.Marshal(map[string]any{
		"model": c.model,
		"voice": c.voice,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/speech", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create tts request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("tts returned no audio")
	}
	return audio, nil
}
