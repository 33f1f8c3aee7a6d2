package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atlasbrief/atlasbrief/internal/config"
)

// ErrRejected reports a submission the classifier refused to verify. Only
// verified information is stored, so a rejection drops the submission.
var ErrRejected = errors.New("submission rejected")

// Submission is the raw content handed to the classifier.
type Submission struct {
	Text        string
	Attachments []string // file names of archived media, for context
}

// Classification is the classifier's verdict for one submission.
type Classification struct {
	Summary      string   `json:"summary"`
	Continent    string   `json:"continent"`
	EventType    string   `json:"event_type"`
	Importance   int      `json:"importance"`
	Deaths       *int     `json:"deaths,omitempty"`
	Declarations string   `json:"declarations,omitempty"`
	Links        []string `json:"links,omitempty"`
	Analysis     string   `json:"analysis,omitempty"`
	// Verified=false rejects the submission; Reason explains why.
	Verified bool   `json:"verified"`
	Reason   string `json:"reason,omitempty"`
}

// Brain classifies submissions and writes narration scripts. Both calls are
// fallible and possibly slow; callers wrap them in the task retry policy.
type Brain interface {
	Classify(ctx context.Context, sub Submission) (*Classification, error)
	Script(ctx context.Context, reportText string) (string, error)
}

const classifyPrompt = `You are the verification desk of a world-events tracking assistant.
Classify the submitted information. Accept only concrete, checkable claims about real events;
reject vague opinions, spam, and content with no factual core.

Return strict JSON only:
{"verified":true,"summary":"one sentence","continent":"Asia|Africa|Europe|North America|South America|Oceania|Antarctica|Global","event_type":"short label","importance":1-5,"deaths":null,"declarations":"official statements or empty","links":["urls found in the text"],"analysis":"2-4 sentence assessment"}
or {"verified":false,"reason":"why"}

Submission:
%s`

const scriptPrompt = `You are a news narrator. Turn the following daily report into a spoken
narration script: plain prose, no markdown, no stage directions, 60-120 seconds when read aloud.

Report:
%s`

// New selects the provider implementation by config type, mirroring the
// provider switch used across the rest of the system.
func New(cfg *config.Config) (Brain, error) {
	switch cfg.Provider.Type {
	case "openai":
		return NewOpenAIBrain(cfg), nil
	case "gemini", "":
		return NewGeminiBrain(context.Background(), cfg)
	default:
		return nil, fmt.Errorf("unsupported provider type %q", cfg.Provider.Type)
	}
}

// cleanJSON strips markdown fences models like to wrap JSON in.
func cleanJSON(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}

func submissionText(sub Submission) string {
	if len(sub.Attachments) == 0 {
		return sub.Text
	}
	return sub.Text + "\n\n[Attached media: " + strings.Join(sub.Attachments, ", ") + "]"
}
