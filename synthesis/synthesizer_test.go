package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/chatdocs/ragengine/ai"
	"github.com/chatdocs/ragengine/ai/mock"
)

func TestSynthesizeGrounded(t *testing.T) {
	completer := mock.NewMockCompleter()
	completer.CompleteFunc = func(ctx context.Context, prompt string, params ai.CompletionParams) (string, error) {
		return "The warranty lasts two years.", nil
	}

	s, err := NewSynthesizer(completer)
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}

	answer, err := s.Synthesize(context.Background(), "How long is the warranty?", "The warranty covers two years.")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if answer != "The warranty lasts two years." {
		t.Fatalf("Unexpected answer: %q", answer)
	}

	prompt := completer.LastPrompt()
	ctxPos := strings.Index(prompt, "The warranty covers two years.")
	queryPos := strings.Index(prompt, "How long is the warranty?")
	if ctxPos < 0 || queryPos < 0 {
		t.Fatalf("Prompt missing context or question: %q", prompt)
	}
	// Context is always placed before the question
	if ctxPos > queryPos {
		t.Fatal("Expected context before question in prompt")
	}
	if !strings.Contains(prompt, "ONLY the information provided in the Context") {
		t.Fatalf("Prompt missing grounding instruction: %q", prompt)
	}
}

func TestSynthesizeEmptyContextFallback(t *testing.T) {
	completer := mock.NewMockCompleter()
	s, err := NewSynthesizer(completer, WithEmptyContextPolicy(EmptyContextFallback))
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}

	answer, err := s.Synthesize(context.Background(), "Anything?", "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if answer != NoDocumentsAnswer {
		t.Fatalf("Expected no-documents answer, got %q", answer)
	}
	if completer.CallCount() != 0 {
		t.Fatal("Fallback policy must not call the model")
	}
}

func TestSynthesizeEmptyContextModelOnly(t *testing.T) {
	completer := mock.NewMockCompleter()
	s, err := NewSynthesizer(completer, WithEmptyContextPolicy(EmptyContextModelOnly))
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}

	answer, err := s.Synthesize(context.Background(), "What is the capital of France?", "")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if answer != "mock answer" {
		t.Fatalf("Expected model answer, got %q", answer)
	}
	if completer.CallCount() != 1 {
		t.Fatalf("Expected 1 model call, got %d", completer.CallCount())
	}
	if strings.Contains(completer.LastPrompt(), "Context:") {
		t.Fatalf("Model-only prompt must not carry a context section: %q", completer.LastPrompt())
	}
}

func TestSynthesizeRetriesSamePrompt(t *testing.T) {
	var prompts []string
	completer := mock.NewMockCompleter()
	completer.CompleteFunc = func(ctx context.Context, prompt string, params ai.CompletionParams) (string, error) {
		prompts = append(prompts, prompt)
		if len(prompts) < 3 {
			return "", fmt.Errorf("connection reset")
		}
		return "recovered", nil
	}

	s, err := NewSynthesizer(completer, WithBaseDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}

	answer, err := s.Synthesize(context.Background(), "question?", "some context")
	if err != nil {
		t.Fatalf("Synthesize failed: %v", err)
	}
	if answer != "recovered" {
		t.Fatalf("Expected recovered answer, got %q", answer)
	}
	if len(prompts) != 3 {
		t.Fatalf("Expected 3 attempts, got %d", len(prompts))
	}
	// Retries resend the identical prompt, no content mutation
	for i := 1; i < len(prompts); i++ {
		if prompts[i] != prompts[0] {
			t.Fatalf("Prompt mutated between attempts %d and 0", i)
		}
	}
}

func TestSynthesizeDegradedAnswerAfterRetries(t *testing.T) {
	completer := mock.NewMockCompleter()
	completer.CompleteFunc = func(ctx context.Context, prompt string, params ai.CompletionParams) (string, error) {
		return "", fmt.Errorf("service down")
	}

	s, err := NewSynthesizer(completer, WithBaseDelay(time.Millisecond))
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}

	answer, err := s.Synthesize(context.Background(), "question?", "some context")
	if err != nil {
		t.Fatalf("Exhausted retries must not surface an error, got %v", err)
	}
	if answer != FallbackAnswer {
		t.Fatalf("Expected degraded fallback answer, got %q", answer)
	}
	if completer.CallCount() != DefaultMaxAttempts {
		t.Fatalf("Expected %d attempts, got %d", DefaultMaxAttempts, completer.CallCount())
	}
}

func TestSynthesizeCallerCancellation(t *testing.T) {
	completer := mock.NewMockCompleter()
	completer.CompleteFunc = func(ctx context.Context, prompt string, params ai.CompletionParams) (string, error) {
		return "", fmt.Errorf("slow backend")
	}

	s, err := NewSynthesizer(completer, WithBaseDelay(time.Minute))
	if err != nil {
		t.Fatalf("Failed to create synthesizer: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = s.Synthesize(ctx, "question?", "some context")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	if err := RetryWithBackoff(context.Background(), func() error { return nil }, 0, time.Millisecond); !errors.Is(err, ErrInvalidMaxAttempts) {
		t.Fatalf("Expected ErrInvalidMaxAttempts, got %v", err)
	}

	attempts := 0
	err := RetryWithBackoff(context.Background(), func() error {
		attempts++
		return fmt.Errorf("attempt %d", attempts)
	}, 3, time.Millisecond)
	if err == nil || err.Error() != "attempt 3" {
		t.Fatalf("Expected last attempt's error, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("Expected 3 attempts, got %d", attempts)
	}
}
