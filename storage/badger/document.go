package badger

import (
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
//
// Document mutations run under the tenant's write lock and adjust the
// tenant's usage counter inside the same transaction as the chunk writes.
// The live-document count therefore always equals the number of stored
// manifests, regardless of where a crash lands.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// Close releases repository resources.
func (r *DocumentRepository) Close() error {
	return nil
}

// UpsertDocument atomically replaces all chunks stored under docID.
func (r *DocumentRepository) UpsertDocument(ctx context.Context, clientID, docID string, chunks []core.Chunk) (bool, error) {
	if err := core.ValidateClientID(clientID); err != nil {
		return false, err
	}
	if err := core.ValidateDocumentID(docID); err != nil {
		return false, err
	}

	unlock := r.backend.LockTenant(clientID)
	defer unlock()

	var replaced bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if exists, err := tenantExists(tx, clientID); err != nil {
			return err
		} else if !exists {
			return storage.ErrNotFound
		}

		old, err := readDocumentInfo(tx, clientID, docID)
		if err != nil {
			return err
		}
		replaced = old != nil

		// Drop the old version's chunks first. Ordinals beyond the new
		// chunk count would otherwise survive as orphans.
		if replaced {
			for i := 0; i < old.ChunkCount; i++ {
				if err := tx.Delete(makeChunkKey(clientID, docID, i)); err != nil {
					return err
				}
			}
		}

		now := time.Now().UTC()
		for i := range chunks {
			chunks[i].DocID = docID
			chunks[i].Ordinal = i
			if err := tx.Set(makeChunkKey(clientID, docID, i), storage.MarshalChunk(&chunks[i])); err != nil {
				return err
			}
		}

		info := &core.DocumentInfo{
			DocID:      docID,
			ChunkCount: len(chunks),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if replaced {
			info.CreatedAt = old.CreatedAt
		}
		if err := tx.Set(makeDocKey(clientID, docID), storage.MarshalDocumentInfo(info)); err != nil {
			return err
		}

		usage, err := readUsage(tx, clientID)
		if err != nil {
			return err
		}
		if !replaced {
			usage.DocumentCount++
			usage.TotalDocuments++
			usage.MonthDocuments++
		}
		usage.LastDocumentAt = now
		if err := tx.Set(makeUsageKey(clientID), storage.MarshalUsageCounter(usage)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return replaced, err
}

// DeleteDocument removes the document, its chunks, and decrements the
// live-document counter. Deleting a nonexistent docID is a no-op.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, clientID, docID string) (bool, error) {
	unlock := r.backend.LockTenant(clientID)
	defer unlock()

	var existed bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		info, err := readDocumentInfo(tx, clientID, docID)
		if err != nil {
			return err
		}
		if info == nil {
			return nil
		}
		existed = true

		for i := 0; i < info.ChunkCount; i++ {
			if err := tx.Delete(makeChunkKey(clientID, docID, i)); err != nil {
				return err
			}
		}
		if err := tx.Delete(makeDocKey(clientID, docID)); err != nil {
			return err
		}

		usage, err := readUsage(tx, clientID)
		if err != nil {
			return err
		}
		if usage.DocumentCount > 0 {
			usage.DocumentCount--
		}
		if err := tx.Set(makeUsageKey(clientID), storage.MarshalUsageCounter(usage)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return existed, err
}

// GetDocumentInfo retrieves the manifest of a single document.
func (r *DocumentRepository) GetDocumentInfo(ctx context.Context, clientID, docID string) (*core.DocumentInfo, error) {
	var result *core.DocumentInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readDocumentInfo(tx, clientID, docID)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunks retrieves all chunks of a document in ordinal order.
func (r *DocumentRepository) GetChunks(ctx context.Context, clientID, docID string) ([]core.Chunk, error) {
	var results []core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkDocPrefix(clientID, docID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// BigEndian ordinals in the key make this iteration ordinal-ordered.
		for iter.Rewind(); iter.Valid(); iter.Next() {
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, *chunk)
		}
		return nil
	}, false)
	return results, err
}

// ListDocuments returns the manifests of all live documents of a tenant.
func (r *DocumentRepository) ListDocuments(ctx context.Context, clientID string) ([]*core.DocumentInfo, error) {
	var results []*core.DocumentInfo
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocScanPrefix(clientID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var info *core.DocumentInfo
			err := iter.Item().Value(func(val []byte) error {
				var err error
				info, err = storage.UnmarshalDocumentInfo(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, info)
		}
		return nil
	}, false)
	return results, err
}

// CountDocuments returns the number of live documents of a tenant.
func (r *DocumentRepository) CountDocuments(ctx context.Context, clientID string) (int64, error) {
	var count int64
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeDocScanPrefix(clientID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Query finds the tenant's chunks most similar to the given unit vector.
func (r *DocumentRepository) Query(ctx context.Context, clientID string, vector []float32, minScore float32, limit int) ([]core.RetrievedChunk, error) {
	var results []core.RetrievedChunk

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		if exists, err := tenantExists(tx, clientID); err != nil {
			return err
		} else if !exists {
			return storage.ErrNotFound
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeChunkScanPrefix(clientID)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(chunk.Vector) == 0 {
				continue
			}

			// Cosine similarity reduces to a dot product over unit vectors.
			score := dotProduct(vector, chunk.Vector)
			if score >= minScore {
				results = append(results, core.RetrievedChunk{
					DocID: chunk.DocID,
					Text:  chunk.Text,
					Score: score,
				})
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b core.RetrievedChunk) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// tenantExists reports whether a tenant record is present.
func tenantExists(tx *badger.Txn, clientID string) (bool, error) {
	_, err := tx.Get(makeTenantKey(clientID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// readDocumentInfo reads a document manifest from the transaction.
// Returns nil without error when the manifest doesn't exist.
func readDocumentInfo(tx *badger.Txn, clientID, docID string) (*core.DocumentInfo, error) {
	item, err := tx.Get(makeDocKey(clientID, docID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var info *core.DocumentInfo
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		info, unmarshalErr = storage.UnmarshalDocumentInfo(val)
		return unmarshalErr
	})
	return info, err
}

// readUsage reads a tenant's usage counter from the transaction.
// A missing counter yields a zero counter rather than an error, so
// document writes survive partitions created before usage tracking.
func readUsage(tx *badger.Txn, clientID string) (*core.UsageCounter, error) {
	item, err := tx.Get(makeUsageKey(clientID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return &core.UsageCounter{}, nil
		}
		return nil, err
	}

	var usage *core.UsageCounter
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		usage, unmarshalErr = storage.UnmarshalUsageCounter(val)
		return unmarshalErr
	})
	return usage, err
}
