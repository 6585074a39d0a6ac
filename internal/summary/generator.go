package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"

	"github.com/rahul-singh01/warm-transfer/internal/transcript"
)

// CallSummary is immutable once created. Regeneration produces a new value
// with a new id; the old one is never mutated.
type CallSummary struct {
	ID               string        `json:"summary_id"`
	TransferID       string        `json:"transfer_id,omitempty"`
	CallID           string        `json:"room_id"`
	Content          string        `json:"content"`
	KeyPoints        []string      `json:"key_points"`
	Duration         time.Duration `json:"-"`
	DurationSeconds  int           `json:"duration_seconds"`
	ParticipantCount int           `json:"participant_count"`
	GeneratedAt      time.Time     `json:"generated_at"`
}

// ErrSummaryUnavailable means the adapter exhausted its budget. Transfers
// degrade to consultation without a summary instead of failing.
var ErrSummaryUnavailable = errors.New("summary: unavailable")

// ChatClient is the slice of the OpenAI-compatible client the generator
// needs, kept narrow so tests can stub the LLM.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

type Config struct {
	Model string

	// Timeout bounds each attempt against the summarization service.
	Timeout time.Duration

	// RetryBackoff is the pause before the single retry on transient failure.
	RetryBackoff time.Duration
}

func (c Config) withDefaults() Config {
	out := c
	if out.Model == "" {
		out.Model = "llama-3.1-8b-instant"
	}
	if out.Timeout <= 0 {
		out.Timeout = 10 * time.Second
	}
	if out.RetryBackoff <= 0 {
		out.RetryBackoff = 500 * time.Millisecond
	}
	return out
}

// Generator wraps the external summarization service. Budget: one attempt
// plus one retry with backoff for transient failures; non-transient failures
// (malformed input, auth) fail immediately.
type Generator struct {
	client ChatClient
	cfg    Config
	log    *slog.Logger
	clock  func() time.Time
}

func NewGenerator(client ChatClient, cfg Config, log *slog.Logger) *Generator {
	if log == nil {
		log = slog.Default()
	}
	return &Generator{client: client, cfg: cfg.withDefaults(), log: log, clock: time.Now}
}

// NewClient builds an OpenAI-compatible client for the configured endpoint
// (Groq and friends expose the same chat-completions surface).
func NewClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

type modelOutput struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// Generate produces a normalized CallSummary from the ordered transcript.
// On budget exhaustion it returns ErrSummaryUnavailable.
func (g *Generator) Generate(ctx context.Context, callID, transferID string, entries []transcript.Entry) (CallSummary, error) {
	if len(entries) == 0 {
		return CallSummary{}, fmt.Errorf("%w: empty transcript", ErrSummaryUnavailable)
	}

	text := FormatTranscript(entries)

	var out modelOutput
	attempt := func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()

		resp, err := g.client.CreateChatCompletion(attemptCtx, openai.ChatCompletionRequest{
			Model: g.cfg.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are an assistant that analyzes call transcripts for customer service transfers. Respond with valid JSON containing 'summary' (2-3 sentences) and 'key_points' (3-5 strings).",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: "Summarize this call for the agent taking over:\n\n" + text,
				},
			},
			Temperature: 0.3,
			MaxTokens:   500,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return errors.New("summary: empty completion")
		}
		out = parseModelOutput(resp.Choices[0].Message.Content)
		return nil
	}

	err := attempt(ctx)
	if err != nil && isTransient(err) {
		g.log.Warn("summary attempt failed, retrying", "call_id", callID, "err", err)
		select {
		case <-ctx.Done():
			return CallSummary{}, fmt.Errorf("%w: %v", ErrSummaryUnavailable, ctx.Err())
		case <-time.After(g.cfg.RetryBackoff):
		}
		err = attempt(ctx)
	}
	if err != nil {
		return CallSummary{}, fmt.Errorf("%w: %v", ErrSummaryUnavailable, err)
	}

	dur := transcript.Duration(entries)
	return CallSummary{
		ID:               "summary_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
		TransferID:       transferID,
		CallID:           callID,
		Content:          out.Summary,
		KeyPoints:        out.KeyPoints,
		Duration:         dur,
		DurationSeconds:  int(dur.Seconds()),
		ParticipantCount: transcript.SpeakerCount(entries),
		GeneratedAt:      g.clock().UTC(),
	}, nil
}

// Briefing turns a summary into the short spoken handoff for the receiving
// agent. Best-effort: callers treat failure as degraded, not fatal.
func (g *Generator) Briefing(ctx context.Context, s CallSummary, agentName string) (string, error) {
	briefCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(briefCtx, openai.ChatCompletionRequest{
		Model: g.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You brief agents taking over live calls. Reply with 2-3 conversational sentences, no preamble.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Brief %s on this call before they take over:\n\n%s\n\nKey points: %s",
					agentName, s.Content, strings.Join(s.KeyPoints, "; ")),
			},
		},
		Temperature: 0.3,
		MaxTokens:   200,
	})
	if err != nil {
		return "", fmt.Errorf("summary: briefing: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summary: briefing: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// FormatTranscript renders entries as "[HH:MM:SS] Name: text" lines.
func FormatTranscript(entries []transcript.Entry) string {
	var b strings.Builder
	for _, e := range entries {
		name := e.SpeakerName
		if name == "" {
			name = e.Speaker
		}
		fmt.Fprintf(&b, "[%s] %s: %s\n", e.Timestamp.UTC().Format("15:04:05"), name, e.Text)
	}
	return b.String()
}

func parseModelOutput(content string) modelOutput {
	content = strings.TrimSpace(content)

	// Models occasionally wrap JSON in markdown fences.
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(content), &out); err == nil && out.Summary != "" {
		return out
	}
	// Fallback: treat the raw completion as the summary.
	return modelOutput{Summary: content}
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}
