package coach

import (
	"context"
	"strings"

	"github.com/dealcraft/replycache/cache"
)

// Model is the language model behind the coach.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations must honor cancellation and deadlines.
// - Errors: errors are returned to the caller and are never cached.
type Model interface {
	// Reply returns the opponent's answer to one trainee message.
	Reply(ctx context.Context, req ChatRequest) (string, error)

	// Analyze grades a finished negotiation transcript.
	Analyze(ctx context.Context, req AnalysisRequest) (Analysis, error)
}

// ChatRequest is one trainee message.
type ChatRequest struct {
	// Mode is the practice mode, e.g. "training" or "roleplay".
	Mode string
	// Message is the trainee's message as typed.
	Message string
	// Difficulty is the opponent difficulty level.
	Difficulty int
	// Scenario identifies the negotiation scenario (optional).
	Scenario string
}

// Validate reports whether the request can be answered.
func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Mode) == "" {
		return ErrMissingMode
	}
	if strings.TrimSpace(r.Message) == "" {
		return ErrEmptyMessage
	}
	return nil
}

func (r ChatRequest) keyInput() cache.ChatKeyInput {
	return cache.ChatKeyInput{
		Mode:       r.Mode,
		Message:    r.Message,
		Difficulty: r.Difficulty,
		Scenario:   r.Scenario,
	}
}

// AnalysisRequest is a full transcript to grade.
type AnalysisRequest struct {
	Messages   []cache.Message
	Difficulty int
	Scenario   string
}

// Validate reports whether the request can be analyzed.
func (r AnalysisRequest) Validate() error {
	if len(r.Messages) == 0 {
		return ErrEmptyConversation
	}
	return nil
}

func (r AnalysisRequest) keyInput() cache.AnalysisKeyInput {
	return cache.AnalysisKeyInput{
		Messages:   r.Messages,
		Difficulty: r.Difficulty,
		Scenario:   r.Scenario,
	}
}

// Analysis is the model's verdict on a transcript. Cached analyses are
// shared between callers and must not be modified.
type Analysis struct {
	Score        int      `json:"score"`
	Summary      string   `json:"summary"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}
