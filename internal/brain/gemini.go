package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/atlasbrief/atlasbrief/internal/config"
)

type geminiModel struct {
	Name string
	RPM  int
	RPD  int
}

// GeminiBrain talks to the Gemini API, walking a fallback model list when
// the primary is rate-limited or missing.
type GeminiBrain struct {
	client *genai.Client
	models []geminiModel

	mu           sync.Mutex
	dailyCount   map[string]int
	minuteCount  map[string]int
	lastResetDay time.Time
	lastResetMin time.Time
}

func NewGeminiBrain(ctx context.Context, cfg *config.Config) (*GeminiBrain, error) {
	if cfg.Provider.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.Provider.APIKey})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	models := []geminiModel{{Name: cfg.Model(), RPM: 10, RPD: 250}}
	for _, name := range cfg.Provider.FallbackModels {
		models = append(models, geminiModel{Name: name, RPM: 15, RPD: 1000})
	}

	return &GeminiBrain{
		client:       client,
		models:       models,
		dailyCount:   make(map[string]int),
		minuteCount:  make(map[string]int),
		lastResetDay: time.Now(),
		lastResetMin: time.Now(),
	}, nil
}

var _ Brain = (*GeminiBrain)(nil)

func (b *GeminiBrain) Classify(ctx context.Context, sub Submission) (*Classification, error) {
	raw, err := b.generate(ctx, fmt.Sprintf(classifyPrompt, submissionText(sub)))
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

func (b *GeminiBrain) Script(ctx context.Context, reportText string) (string, error) {
	out, err := b.generate(ctx, fmt.Sprintf(scriptPrompt, reportText))
	if err != nil {
		return "", fmt.Errorf("script: %w", err)
	}
	return strings.TrimSpace(out), nil
}

func (b *GeminiBrain) generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, m := range b.models {
		if !b.canUseModel(m) {
			continue
		}

		result, err := b.client.Models.GenerateContent(ctx, m.Name, genai.Text(prompt), nil)
		if err != nil {
			errStr := strings.ToLower(err.Error())
			if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") ||
				strings.Contains(errStr, "exhausted") || strings.Contains(errStr, "not found") {
				lastErr = err
				continue
			}
			return "", err
		}

		if text, ok := candidateText(result); ok {
			b.recordUsage(m)
			return text, nil
		}
		lastErr = fmt.Errorf("model %s returned no candidates", m.Name)
	}
	return "", fmt.Errorf("all models failed: %w", lastErr)
}

// candidateText pulls the first text part out of a response. Safety-blocked
// responses carry a candidate with nil Content.
func candidateText(result *genai.GenerateContentResponse) (string, bool) {
	if result == nil || len(result.Candidates) == 0 {
		return "", false
	}
	content := result.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return "", false
	}
	return content.Parts[0].Text, true
}

func (b *GeminiBrain) canUseModel(m geminiModel) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := time.Now()
	if now.YearDay() != b.lastResetDay.YearDay() {
		b.dailyCount = make(map[string]int)
		b.lastResetDay = now
	}
	if now.Sub(b.lastResetMin) >= time.Minute {
		b.minuteCount = make(map[string]int)
		b.lastResetMin = now
	}
	if m.RPD > 0 && b.dailyCount[m.Name] >= m.RPD {
		return false
	}
	if m.RPM > 0 && b.minuteCount[m.Name] >= m.RPM {
		return false
	}
	return true
}

func (b *GeminiBrain) recordUsage(m geminiModel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dailyCount[m.Name]++
	b.minuteCount[m.Name]++
}
