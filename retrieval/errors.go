package retrieval

import "errors"

var (
	// ErrDocumentsRequired indicates a nil document repository.
	ErrDocumentsRequired = errors.New("document repository required")
	// ErrEmbedderRequired indicates a nil embedder.
	ErrEmbedderRequired = errors.New("embedder required")
)
