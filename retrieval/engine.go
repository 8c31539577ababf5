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


// Package retrieval turns documents into searchable chunk vectors and
// assembles bounded context windows for answer synthesis.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/panjf2000/ants/v2"

	"github.com/chatdocs/ragengine/ai"
	"github.com/chatdocs/ragengine/chunker"
	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/storage"
)

const (
	// DefaultTopK bounds how many chunks a query pulls from the store.
	DefaultTopK = 4
	// DefaultMaxContextChars bounds the assembled context handed to the
	// completion model, counted in runes like the chunker's chunk size.
	DefaultMaxContextChars = 4000
	// DefaultMinScore filters out chunks with no meaningful similarity.
	DefaultMinScore float32 = 0.0
	// DefaultEmbedBatchSize is how many chunk texts go to the embedding
	// service per call.
	DefaultEmbedBatchSize = 16
)

// Context is the retrieval result for one query: the ranked chunks and the
// assembled context text, bounded by the engine's max context size.
type Context struct {
	Chunks []core.RetrievedChunk
	Text   string
}

// Empty reports whether retrieval produced no usable context.
func (c *Context) Empty() bool {
	return len(c.Chunks) == 0
}

// Engine orchestrates chunking, embedding, and vector search per tenant.
type Engine struct {
	documents storage.DocumentRepository
	embedder  ai.Embedder
	pool      *ants.Pool
	logger    *slog.Logger

	chunkSize       int
	overlap         int
	topK            int
	minScore        float32
	maxContextChars int
	embedBatchSize  int
}

// Option configures an Engine.
type Option func(*Engine) error

// WithChunking overrides the chunk size and overlap.
func WithChunking(chunkSize, overlap int) Option {
	return func(e *Engine) error {
		if chunkSize <= 0 || overlap >= chunkSize {
			return fmt.Errorf("%w: chunk_size=%d overlap=%d", core.ErrInvalidInput, chunkSize, overlap)
		}
		e.chunkSize = chunkSize
		e.overlap = overlap
		return nil
	}
}

// WithTopK overrides how many chunks a query retrieves.
func WithTopK(topK int) Option {
	return func(e *Engine) error {
		if topK < 1 {
			return fmt.Errorf("%w: top_k must be at least 1", core.ErrInvalidInput)
		}
		e.topK = topK
		return nil
	}
}

// WithMinScore overrides the similarity threshold.
func WithMinScore(minScore float32) Option {
	return func(e *Engine) error {
		e.minScore = minScore
		return nil
	}
}

// WithMaxContextChars overrides the context assembly budget.
func WithMaxContextChars(maxChars int) Option {
	return func(e *Engine) error {
		if maxChars < 1 {
			return fmt.Errorf("%w: max context chars must be at least 1", core.ErrInvalidInput)
		}
		e.maxContextChars = maxChars
		return nil
	}
}

// WithPoolSize sets the worker pool size for concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(e *Engine) error {
		if size < 1 {
			size = 1
		}
		if e.pool != nil {
			e.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		e.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewEngine creates a retrieval engine.
func NewEngine(documents storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Engine, error) {
	if documents == nil {
		return nil, ErrDocumentsRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		documents:       documents,
		embedder:        embedder,
		pool:            pool,
		logger:          slog.Default().With("component", "retrieval"),
		chunkSize:       chunker.DefaultChunkSize,
		overlap:         chunker.DefaultOverlap,
		topK:            DefaultTopK,
		minScore:        DefaultMinScore,
		maxContextChars: DefaultMaxContextChars,
		embedBatchSize:  DefaultEmbedBatchSize,
	}
	for _, opt := range opts {
		if optErr := opt(e); optErr != nil {
			e.Release()
			return nil, optErr
		}
	}
	return e, nil
}

// Release releases the embedding worker pool.
// The engine should not be used after calling Release.
func (e *Engine) Release() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// IngestDocument chunks and embeds text and atomically replaces the stored
// document. Embeddings of chunks whose text is unchanged since the previous
// version are reused instead of recomputed.
// Returns the number of stored chunks and whether an earlier version existed.
func (e *Engine) IngestDocument(ctx context.Context, clientID, docID, text string) (int, bool, error) {
	if err := core.ValidateDocumentText(text); err != nil {
		return 0, false, err
	}

	texts, err := chunker.Chunk(text, e.chunkSize, e.overlap)
	if err != nil {
		return 0, false, err
	}

	chunks := make([]core.Chunk, len(texts))
	for i, t := range texts {
		chunks[i] = core.Chunk{
			DocID:   docID,
			Ordinal: i,
			Text:    t,
			Hash:    core.HashContent(t),
		}
	}

	reused := e.reuseUnchangedVectors(ctx, clientID, docID, chunks)
	if err := e.embedMissing(ctx, chunks); err != nil {
		return 0, false, err
	}

	replaced, err := e.documents.UpsertDocument(ctx, clientID, docID, chunks)
	if err != nil {
		return 0, false, err
	}

	e.logger.Info("document ingested",
		"client_id", clientID, "doc_id", docID,
		"chunks", len(chunks), "reused_vectors", reused, "replaced", replaced)
	return len(chunks), replaced, nil
}

// DeleteDocument removes a document and its chunks. Idempotent.
func (e *Engine) DeleteDocument(ctx context.Context, clientID, docID string) (bool, error) {
	return e.documents.DeleteDocument(ctx, clientID, docID)
}

// Retrieve embeds the query and returns the tenant's best-matching chunks
// with an assembled context bounded by the engine's max context size.
// An empty corpus yields an empty context, not an error.
func (e *Engine) Retrieve(ctx context.Context, clientID, queryText string) (*Context, error) {
	if err := core.ValidateQueryText(queryText); err != nil {
		return nil, err
	}

	vector, err := e.embedder.EmbedText(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, err)
	}
	vector = NormalizeVector(vector)

	chunks, err := e.documents.Query(ctx, clientID, vector, e.minScore, e.topK)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrTenantNotFound, clientID)
		}
		return nil, err
	}

	return &Context{
		Chunks: chunks,
		Text:   assembleContext(chunks, e.maxContextChars),
	}, nil
}

// reuseUnchangedVectors copies vectors from the stored version of the
// document onto new chunks with identical content hashes. Returns how many
// vectors were reused. A read failure only disables reuse; ingestion
// proceeds and embeds everything.
func (e *Engine) reuseUnchangedVectors(ctx context.Context, clientID, docID string, chunks []core.Chunk) int {
	stored, err := e.documents.GetChunks(ctx, clientID, docID)
	if err != nil || len(stored) == 0 {
		return 0
	}

	byHash := make(map[core.ContentHash][]float32, len(stored))
	for _, c := range stored {
		if len(c.Vector) > 0 {
			byHash[c.Hash] = c.Vector
		}
	}

	reused := 0
	for i := range chunks {
		if vec, ok := byHash[chunks[i].Hash]; ok {
			chunks[i].Vector = vec
			reused++
		}
	}
	return reused
}

// embedMissing embeds all chunks that don't yet carry a vector, batching
// calls across the worker pool while preserving chunk order.
func (e *Engine) embedMissing(ctx context.Context, chunks []core.Chunk) error {
	var missing []int
	for i := range chunks {
		if len(chunks[i].Vector) == 0 {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for start := 0; start < len(missing); start += e.embedBatchSize {
		end := start + e.embedBatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := missing[start:end]

		texts := make([]string, len(batch))
		for i, idx := range batch {
			texts[i] = chunks[idx].Text
		}

		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()

			vectors, err := e.embedder.EmbedTexts(ctx, texts)
			if err == nil && len(vectors) != len(texts) {
				err = fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(vectors))
			}
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			for i, idx := range batch {
				chunks[idx].Vector = NormalizeVector(vectors[i])
			}
		})
		if submitErr != nil {
			wg.Done()
			// Drain batches already in flight; they still hold chunks and
			// the embedder.
			wg.Wait()
			return submitErr
		}
	}
	wg.Wait()

	if firstErr != nil {
		return fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, firstErr)
	}
	return nil
}

// assembleContext concatenates chunk texts in descending score order until
// the budget would be exceeded. A chunk that would overflow is dropped whole
// rather than truncated mid-text. The budget counts runes, the same unit the
// chunker packs by.
func assembleContext(chunks []core.RetrievedChunk, maxChars int) string {
	var sb strings.Builder
	total := 0
	for _, c := range chunks {
		need := utf8.RuneCountInString(c.Text)
		if total > 0 {
			need += 2 // separator
		}
		if total+need > maxChars {
			continue
		}
		if total > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(c.Text)
		total += need
	}
	return sb.String()
}
