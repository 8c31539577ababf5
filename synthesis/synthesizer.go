// Copyright 2025 ChatDocs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package synthesis turns retrieved context and a user question into a
// final answer via the external completion service, with bounded timeouts,
// idempotent retries, and a degraded fallback answer when the service stays
// unavailable.
package synthesis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatdocs/ragengine/ai"
)

const (
	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxAttempts is the total number of completion attempts
	// (one initial call plus retries).
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the backoff base between completion retries.
	DefaultBaseDelay = 500 * time.Millisecond
	// DefaultMaxTokens bounds the completion budget.
	DefaultMaxTokens = 512
)

// EmptyContextPolicy decides how a query against an empty corpus is answered.
type EmptyContextPolicy int

const (
	// EmptyContextFallback returns an explicit "nothing uploaded" answer
	// without calling the model.
	EmptyContextFallback EmptyContextPolicy = iota + 1
	// EmptyContextModelOnly asks the model without any grounding context.
	EmptyContextModelOnly
)

// Synthesizer calls the completion service to produce the final answer.
type Synthesizer struct {
	completer   ai.Completer
	logger      *slog.Logger
	timeout     time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxTokens   int
	temperature float64
	emptyPolicy EmptyContextPolicy
}

// Option configures a Synthesizer.
type Option func(*Synthesizer) error

// WithTimeout bounds a single completion call.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Synthesizer) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		s.timeout = timeout
		return nil
	}
}

// WithMaxAttempts sets the total number of completion attempts.
func WithMaxAttempts(attempts int) Option {
	return func(s *Synthesizer) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		s.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the backoff base between retries.
func WithBaseDelay(delay time.Duration) Option {
	return func(s *Synthesizer) error {
		s.baseDelay = delay
		return nil
	}
}

// WithMaxTokens bounds the completion token budget.
func WithMaxTokens(maxTokens int) Option {
	return func(s *Synthesizer) error {
		s.maxTokens = maxTokens
		return nil
	}
}

// WithTemperature sets the completion sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(s *Synthesizer) error {
		s.temperature = temperature
		return nil
	}
}

// WithEmptyContextPolicy decides how empty-corpus queries are answered.
func WithEmptyContextPolicy(policy EmptyContextPolicy) Option {
	return func(s *Synthesizer) error {
		if policy != EmptyContextFallback && policy != EmptyContextModelOnly {
			return fmt.Errorf("invalid empty-context policy %d", policy)
		}
		s.emptyPolicy = policy
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSynthesizer creates an answer synthesizer.
func NewSynthesizer(completer ai.Completer, opts ...Option) (*Synthesizer, error) {
	if completer == nil {
		return nil, ErrCompleterRequired
	}

	s := &Synthesizer{
		completer:   completer,
		logger:      slog.Default().With("component", "synthesis"),
		timeout:     DefaultTimeout,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		maxTokens:   DefaultMaxTokens,
		temperature: 0,
		emptyPolicy: EmptyContextFallback,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Synthesize produces the final answer for a query given retrieved context.
// Transport failures are retried with the same prompt; after exhausting
// retries a degraded fallback answer is returned rather than an error, so
// end users never see a stack trace. Caller cancellation still propagates.
func (s *Synthesizer) Synthesize(ctx context.Context, query, contextText string) (string, error) {
	var prompt string
	if contextText == "" {
		if s.emptyPolicy == EmptyContextFallback {
			return NoDocumentsAnswer, nil
		}
		prompt = BuildModelOnlyPrompt(query)
	} else {
		prompt = BuildPrompt(contextText, query)
	}

	params := ai.CompletionParams{
		MaxTokens:   s.maxTokens,
		Temperature: s.temperature,
	}

	var answer string
	err := RetryWithBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var completeErr error
		answer, completeErr = s.completer.Complete(callCtx, prompt, params)
		return completeErr
	}, s.maxAttempts, s.baseDelay)

	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		s.logger.Error("completion unavailable, returning degraded answer", "err", err)
		return FallbackAnswer, nil
	}
	return answer, nil
}
