package badger

import (
	"context"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/storage"
)

// TenantRepository implements storage.TenantRepository for BadgerDB.
type TenantRepository struct {
	backend *Backend
}

var _ storage.TenantRepository = (*TenantRepository)(nil)

// NewTenantRepository creates a new TenantRepository.
func NewTenantRepository(backend *Backend) *TenantRepository {
	return &TenantRepository{backend: backend}
}

// Close releases repository resources.
func (r *TenantRepository) Close() error {
	return nil
}

// CreateTenant stores a new tenant and initializes its usage counter with a
// monthly reset at the next calendar-month boundary.
func (r *TenantRepository) CreateTenant(ctx context.Context, tenant *core.Tenant) error {
	if err := core.ValidateTenant(tenant); err != nil {
		return err
	}

	unlock := r.backend.LockTenant(tenant.ClientID)
	defer unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeTenantKey(tenant.ClientID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		now := time.Now().UTC()
		if tenant.CreatedAt.IsZero() {
			tenant.CreatedAt = now
		}
		if err := tx.Set(key, storage.MarshalTenant(tenant)); err != nil {
			return err
		}

		usage := &core.UsageCounter{MonthlyReset: core.NextMonthlyReset(now)}
		if err := tx.Set(makeUsageKey(tenant.ClientID), storage.MarshalUsageCounter(usage)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetTenant retrieves a tenant by client ID.
func (r *TenantRepository) GetTenant(ctx context.Context, clientID string) (*core.Tenant, error) {
	var result *core.Tenant
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readTenant(tx, clientID)
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

// UpdateTenant replaces an existing tenant record.
func (r *TenantRepository) UpdateTenant(ctx context.Context, tenant *core.Tenant) error {
	if err := core.ValidateTenant(tenant); err != nil {
		return err
	}

	unlock := r.backend.LockTenant(tenant.ClientID)
	defer unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		old, err := readTenant(tx, tenant.ClientID)
		if err != nil {
			return err
		}
		if old == nil {
			return storage.ErrNotFound
		}
		if err := tx.Set(makeTenantKey(tenant.ClientID), storage.MarshalTenant(tenant)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListTenants returns all tenants, ordered by client ID.
func (r *TenantRepository) ListTenants(ctx context.Context) ([]*core.Tenant, error) {
	var results []*core.Tenant
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTenantScanPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var tenant *core.Tenant
			err := iter.Item().Value(func(val []byte) error {
				var err error
				tenant, err = storage.UnmarshalTenant(val)
				return err
			})
			if err != nil {
				return err
			}
			results = append(results, tenant)
		}
		return nil
	}, false)
	return results, err
}

// TouchTenant updates the tenant's last-active timestamp.
func (r *TenantRepository) TouchTenant(ctx context.Context, clientID string, at time.Time) error {
	unlock := r.backend.LockTenant(clientID)
	defer unlock()

	return r.backend.WithTx(func(tx *badger.Txn) error {
		tenant, err := readTenant(tx, clientID)
		if err != nil {
			return err
		}
		if tenant == nil {
			return storage.ErrNotFound
		}
		tenant.LastActiveAt = at.UTC()
		if err := tx.Set(makeTenantKey(clientID), storage.MarshalTenant(tenant)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// readTenant reads a tenant record from the transaction.
// Returns nil without error when the record doesn't exist.
func readTenant(tx *badger.Txn, clientID string) (*core.Tenant, error) {
	item, err := tx.Get(makeTenantKey(clientID))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var tenant *core.Tenant
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		tenant, unmarshalErr = storage.UnmarshalTenant(val)
		return unmarshalErr
	})
	return tenant, err
}
