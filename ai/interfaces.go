package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use and deterministic:
// the same model instance produces identical vectors for identical input.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Completer generates text from a prompt using a large language model.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends a prompt to the completion service and returns the
	// generated text. The call must honor ctx cancellation and deadline;
	// callers bound it with a timeout.
	Complete(ctx context.Context, prompt string, params CompletionParams) (string, error)
}

// CompletionParams bounds a single completion call.
type CompletionParams struct {
	// MaxTokens caps the generated output length. Zero means the backend default.
	MaxTokens int

	// Temperature controls sampling randomness. Answer synthesis uses a low
	// value so retries stay close to deterministic.
	Temperature float64
}

// Provider aggregates AI services for convenient initialization and lifecycle
// management. A provider creates and manages Embedder and Completer instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Completer returns the text completion service.
	// The returned Completer is safe for concurrent use.
	Completer() Completer

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
