package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rahul-singh01/warm-transfer/internal/transcript"
)

type stubChat struct {
	responses []openai.ChatCompletionResponse
	errs      []error
	calls     int
}

func (s *stubChat) CreateChatCompletion(_ context.Context, _ openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	i := s.calls
	s.calls++
	var resp openai.ChatCompletionResponse
	var err error
	if i < len(s.responses) {
		resp = s.responses[i]
	}
	if i < len(s.errs) {
		err = s.errs[i]
	}
	return resp, err
}

func completion(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func testEntries() []transcript.Entry {
	base := time.Unix(1700000000, 0).UTC()
	return []transcript.Entry{
		{Speaker: "caller-1", SpeakerName: "Customer", Text: "My order never arrived.", Timestamp: base},
		{Speaker: "agent-a", SpeakerName: "Agent Sarah", Text: "Let me look into that for you.", Timestamp: base.Add(30 * time.Second)},
	}
}

func TestGenerate_ParsesJSONOutput(t *testing.T) {
	stub := &stubChat{responses: []openai.ChatCompletionResponse{
		completion(`{"summary":"Customer reports a missing order.","key_points":["order missing","refund discussed"]}`),
	}}
	g := NewGenerator(stub, Config{}, nil)

	s, err := g.Generate(context.Background(), "call_1", "transfer_1", testEntries())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if s.Content != "Customer reports a missing order." {
		t.Fatalf("unexpected content: %q", s.Content)
	}
	if len(s.KeyPoints) != 2 {
		t.Fatalf("expected 2 key points, got %v", s.KeyPoints)
	}
	if s.DurationSeconds != 30 {
		t.Fatalf("expected 30s covered, got %d", s.DurationSeconds)
	}
	if s.ParticipantCount != 2 {
		t.Fatalf("expected 2 participants, got %d", s.ParticipantCount)
	}
	if s.TransferID != "transfer_1" || s.CallID != "call_1" {
		t.Fatalf("ids not carried: %+v", s)
	}
}

func TestGenerate_RawContentFallback(t *testing.T) {
	stub := &stubChat{responses: []openai.ChatCompletionResponse{
		completion("The customer is chasing a late order."),
	}}
	g := NewGenerator(stub, Config{}, nil)

	s, err := g.Generate(context.Background(), "call_1", "", testEntries())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if s.Content != "The customer is chasing a late order." {
		t.Fatalf("expected raw fallback, got %q", s.Content)
	}
}

func TestGenerate_RetriesTransientOnce(t *testing.T) {
	stub := &stubChat{
		errs: []error{&openai.APIError{HTTPStatusCode: 429, Message: "rate limited"}, nil},
		responses: []openai.ChatCompletionResponse{
			{},
			completion(`{"summary":"ok","key_points":[]}`),
		},
	}
	g := NewGenerator(stub, Config{RetryBackoff: time.Millisecond}, nil)

	if _, err := g.Generate(context.Background(), "call_1", "", testEntries()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", stub.calls)
	}
}

func TestGenerate_DoubleTimeoutIsUnavailable(t *testing.T) {
	stub := &stubChat{errs: []error{context.DeadlineExceeded, context.DeadlineExceeded}}
	g := NewGenerator(stub, Config{RetryBackoff: time.Millisecond}, nil)

	_, err := g.Generate(context.Background(), "call_1", "", testEntries())
	if !errors.Is(err, ErrSummaryUnavailable) {
		t.Fatalf("expected ErrSummaryUnavailable, got %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", stub.calls)
	}
}

func TestGenerate_NonTransientFailsImmediately(t *testing.T) {
	stub := &stubChat{errs: []error{&openai.APIError{HTTPStatusCode: 400, Message: "bad input"}}}
	g := NewGenerator(stub, Config{RetryBackoff: time.Millisecond}, nil)

	_, err := g.Generate(context.Background(), "call_1", "", testEntries())
	if !errors.Is(err, ErrSummaryUnavailable) {
		t.Fatalf("expected ErrSummaryUnavailable, got %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("non-transient error should not retry, got %d attempts", stub.calls)
	}
}

func TestGenerate_EmptyTranscript(t *testing.T) {
	g := NewGenerator(&stubChat{}, Config{}, nil)
	if _, err := g.Generate(context.Background(), "call_1", "", nil); !errors.Is(err, ErrSummaryUnavailable) {
		t.Fatalf("expected ErrSummaryUnavailable for empty transcript, got %v", err)
	}
}

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript(testEntries())
	want := "[22:13:20] Customer: My order never arrived.\n[22:13:50] Agent Sarah: Let me look into that for you.\n"
	if got != want {
		t.Fatalf("format mismatch:\n got %q\nwant %q", got, want)
	}
}

func TestBriefing(t *testing.T) {
	stub := &stubChat{responses: []openai.ChatCompletionResponse{
		completion("Heads up: the customer is waiting on a missing order."),
	}}
	g := NewGenerator(stub, Config{}, nil)

	b, err := g.Briefing(context.Background(), CallSummary{Content: "missing order", KeyPoints: []string{"order"}}, "Agent B")
	if err != nil {
		t.Fatalf("briefing: %v", err)
	}
	if b == "" {
		t.Fatalf("expected briefing text")
	}
}
