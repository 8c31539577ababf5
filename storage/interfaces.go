package storage

import (
	"context"
	"time"

	"github.com/chatdocs/ragengine/core"
)

// TenantRepository manages tenant records.
// Implementations must be thread-safe and support concurrent access.
type TenantRepository interface {
	// CreateTenant stores a new tenant and initializes its usage counter.
	// Returns ErrDuplicateKey if the client ID is already taken.
	CreateTenant(ctx context.Context, tenant *core.Tenant) error

	// GetTenant retrieves a tenant by client ID.
	// Returns ErrNotFound if no such tenant exists.
	GetTenant(ctx context.Context, clientID string) (*core.Tenant, error)

	// UpdateTenant replaces an existing tenant record.
	// Returns ErrNotFound if the tenant doesn't exist.
	UpdateTenant(ctx context.Context, tenant *core.Tenant) error

	// ListTenants returns all tenants, ordered by client ID.
	ListTenants(ctx context.Context) ([]*core.Tenant, error)

	// TouchTenant updates the tenant's last-active timestamp.
	TouchTenant(ctx context.Context, clientID string, at time.Time) error

	// Close releases repository resources.
	Close() error
}

// DocumentRepository manages per-tenant documents and their chunk vectors.
// Every call is scoped by clientID; no call can observe another tenant's data.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// UpsertDocument atomically replaces all chunks previously stored under
	// docID for the tenant. A concurrent Query never observes a mix of old
	// and new chunks: the whole replacement happens in one transaction. The
	// tenant's usage document counters are adjusted in that same transaction,
	// so the live-document count can never drift from the stored documents.
	// Returns replaced=true when an earlier version of the document existed.
	// Returns ErrNotFound if the tenant has no storage partition.
	UpsertDocument(ctx context.Context, clientID, docID string, chunks []core.Chunk) (replaced bool, err error)

	// DeleteDocument removes the document and all its chunks, decrementing
	// the live-document counter in the same transaction. Idempotent: deleting
	// a nonexistent docID returns existed=false and no error.
	DeleteDocument(ctx context.Context, clientID, docID string) (existed bool, err error)

	// GetDocumentInfo retrieves the manifest of a single document.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocumentInfo(ctx context.Context, clientID, docID string) (*core.DocumentInfo, error)

	// GetChunks retrieves the stored chunks of a document in ordinal order.
	// Returns an empty slice if the document doesn't exist.
	GetChunks(ctx context.Context, clientID, docID string) ([]core.Chunk, error)

	// ListDocuments returns the manifests of all live documents of a tenant.
	ListDocuments(ctx context.Context, clientID string) ([]*core.DocumentInfo, error)

	// CountDocuments returns the number of live documents of a tenant.
	CountDocuments(ctx context.Context, clientID string) (int64, error)

	// Query returns up to limit chunks of the tenant with the highest cosine
	// similarity to the given unit vector, ordered by score descending.
	// Chunks scoring below minScore are filtered out. Returns fewer than
	// limit results when the tenant holds fewer matching chunks; never pads.
	// Returns ErrNotFound if the tenant has no storage partition (distinct
	// from a valid empty result on an empty corpus).
	Query(ctx context.Context, clientID string, vector []float32, minScore float32, limit int) ([]core.RetrievedChunk, error)

	// Close releases repository resources.
	Close() error
}

// UsageRepository manages per-tenant usage counters.
// Document counters are owned by DocumentRepository transactions; this
// repository reads snapshots, mutates the request-side counters, and rolls
// the monthly counters over.
// Implementations must be thread-safe and support concurrent access.
type UsageRepository interface {
	// GetUsage retrieves the usage counter of a tenant.
	// Returns ErrNotFound if the tenant was never initialized.
	GetUsage(ctx context.Context, clientID string) (*core.UsageCounter, error)

	// PutUsage replaces the stored usage counter of a tenant.
	// Callers serialize writes per tenant; see quota.Ledger.
	PutUsage(ctx context.Context, clientID string, usage *core.UsageCounter) error

	// IncrementRequests adds one served request to the lifetime and monthly
	// counters and stamps the last-request time.
	IncrementRequests(ctx context.Context, clientID string, at time.Time) error

	// ApplyMonthlyReset rolls the monthly counters over when now has crossed
	// the stored boundary and returns the counter in effect afterwards. The
	// re-read, reset, and write happen atomically with respect to concurrent
	// document transactions, so a rollover never overwrites counters a
	// document upsert committed in the meantime. A tenant without a stored
	// counter gets a fresh, unpersisted one with the boundary seeded.
	ApplyMonthlyReset(ctx context.Context, clientID string, now time.Time) (usage *core.UsageCounter, reset bool, err error)

	// Close releases repository resources.
	Close() error
}
