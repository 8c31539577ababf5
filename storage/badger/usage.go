package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/storage"
)

// UsageRepository implements storage.UsageRepository for BadgerDB.
type UsageRepository struct {
	backend *Backend
}

var _ storage.UsageRepository = (*UsageRepository)(nil)

// NewUsageRepository creates a new UsageRepository.
func NewUsageRepository(backend *Backend) *UsageRepository {
	return &UsageRepository{backend: backend}
}

// Close releases repository resources.
func (r *UsageRepository) Close() error {
	return nil
}

// GetUsage retrieves the usage counter of a tenant.
func (r *UsageRepository) GetUsage(ctx context.Context, clientID string) (*core.UsageCounter, error) {
	var result *core.UsageCounter
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeUsageKey(clientID))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			result, unmarshalErr = storage.UnmarshalUsageCounter(val)
			return unmarshalErr
		})
	}, false)
	return result, err
}

// PutUsage replaces the stored usage counter of a tenant.
func (r *UsageRepository) PutUsage(ctx context.Context, clientID string, usage *core.UsageCounter) error {
	unlock := r.backend.LockTenant(clientID)
	defer unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeUsageKey(clientID), storage.MarshalUsageCounter(usage)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ApplyMonthlyReset rolls the monthly counters over when now has crossed the
// stored boundary and returns the counter in effect. Read, reset, and write
// share one transaction under the tenant write lock, so the rollover can
// never clobber document counters committed by a concurrent upsert.
func (r *UsageRepository) ApplyMonthlyReset(ctx context.Context, clientID string, now time.Time) (*core.UsageCounter, bool, error) {
	unlock := r.backend.LockTenant(clientID)
	defer unlock()

	var (
		result *core.UsageCounter
		reset  bool
	)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		usage, err := readUsage(tx, clientID)
		if err != nil {
			return err
		}
		result = usage
		reset = usage.ApplyMonthlyReset(now)
		if !reset {
			return tx.Commit()
		}
		if err := tx.Set(makeUsageKey(clientID), storage.MarshalUsageCounter(usage)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, false, err
	}
	return result, reset, nil
}

// IncrementRequests adds one served request to the lifetime and monthly
// counters and stamps the last-request time.
func (r *UsageRepository) IncrementRequests(ctx context.Context, clientID string, at time.Time) error {
	unlock := r.backend.LockTenant(clientID)
	defer unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		usage, err := readUsage(tx, clientID)
		if err != nil {
			return err
		}
		usage.TotalRequests++
		usage.MonthRequests++
		usage.LastRequestAt = at.UTC()
		if err := tx.Set(makeUsageKey(clientID), storage.MarshalUsageCounter(usage)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}
