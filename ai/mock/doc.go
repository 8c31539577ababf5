// Package mock provides test doubles for the ai interfaces.
// The embedder produces deterministic unit vectors from a text hash so
// similarity behavior is reproducible without an embedding backend.
package mock
