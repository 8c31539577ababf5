// Package quota enforces per-tenant plan limits with reserve/commit/rollback
// semantics. A reservation is an admission ticket: it holds capacity against
// the tenant's quota while the work (embedding, storage writes, completion
// calls) is in flight, so two concurrent operations can never both squeeze
// past a limit that only has room for one.
//
// The counters of record live in storage. Document counters are committed by
// the storage layer inside the document transaction; request counters are
// committed here. The ledger only tracks the in-flight holds in memory, which
// makes an uncommitted reservation naturally disappear on restart.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/storage"
)

// DefaultReservationTTL bounds how long an uncommitted reservation holds
// quota capacity before the ledger treats it as abandoned.
const DefaultReservationTTL = 2 * time.Minute

// Kind identifies which quota a reservation holds capacity against.
type Kind int

const (
	// KindDocument reserves one slot against the tenant's document limit.
	KindDocument Kind = iota + 1
	// KindRequest reserves one slot against the tenant's monthly request limit.
	KindRequest
)

// String returns the quota name used in error messages.
func (k Kind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindRequest:
		return "request"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Reservation is a pending, not-yet-committed claim against a tenant's quota.
type Reservation struct {
	ID       uuid.UUID
	ClientID string
	Kind     Kind

	createdAt time.Time
}

// tenantState holds the in-flight reservations of one tenant.
// All fields are guarded by mu.
type tenantState struct {
	mu          sync.Mutex
	pending     map[uuid.UUID]*Reservation
	pendingDocs int64
	pendingReqs int64
}

// Ledger gates ingestion and query admission against plan limits.
type Ledger struct {
	tenants storage.TenantRepository
	usage   storage.UsageRepository
	logger  *slog.Logger
	ttl     time.Duration
	now     func() time.Time

	states sync.Map // clientID -> *tenantState
}

// Option configures a Ledger.
type Option func(*Ledger) error

// WithReservationTTL overrides the abandoned-reservation timeout.
func WithReservationTTL(ttl time.Duration) Option {
	return func(l *Ledger) error {
		if ttl <= 0 {
			return fmt.Errorf("reservation TTL must be positive, got %v", ttl)
		}
		l.ttl = ttl
		return nil
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) error {
		l.now = now
		return nil
	}
}

// NewLedger creates a quota ledger over the given repositories.
func NewLedger(tenants storage.TenantRepository, usage storage.UsageRepository, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		tenants: tenants,
		usage:   usage,
		logger:  slog.Default().With("component", "quota"),
		ttl:     DefaultReservationTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// ReserveDocument claims one slot against the tenant's document limit.
// Fails with core.ErrQuotaExceeded when live documents plus in-flight
// reservations already fill the plan, and with core.ErrTenantSuspended for
// suspended tenants.
func (l *Ledger) ReserveDocument(ctx context.Context, clientID string) (*Reservation, error) {
	return l.reserve(ctx, clientID, KindDocument)
}

// ReserveRequest claims one slot against the tenant's monthly request limit.
func (l *Ledger) ReserveRequest(ctx context.Context, clientID string) (*Reservation, error) {
	return l.reserve(ctx, clientID, KindRequest)
}

func (l *Ledger) reserve(ctx context.Context, clientID string, kind Kind) (*Reservation, error) {
	state := l.stateFor(clientID)
	state.mu.Lock()
	defer state.mu.Unlock()

	now := l.now().UTC()
	l.expireStaleLocked(state, now)

	tenant, err := l.tenants.GetTenant(ctx, clientID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrTenantNotFound, clientID)
		}
		return nil, err
	}
	if tenant.Status == core.StatusSuspended {
		return nil, fmt.Errorf("%w: %s", core.ErrTenantSuspended, clientID)
	}

	// Lazy monthly reset piggybacks on reservations; no background timer.
	// The rollover runs atomically inside the storage layer, so it cannot
	// overwrite document counters committed by a concurrent upsert.
	usage, reset, err := l.usage.ApplyMonthlyReset(ctx, clientID, now)
	if err != nil {
		return nil, err
	}
	if reset {
		l.logger.Info("monthly counters reset", "client_id", clientID, "next_reset", usage.MonthlyReset)
	}

	switch kind {
	case KindDocument:
		limit := tenant.MaxDocuments
		if limit >= 0 && usage.DocumentCount+state.pendingDocs >= limit {
			return nil, fmt.Errorf("%w: document limit %d reached for %s", core.ErrQuotaExceeded, limit, clientID)
		}
	case KindRequest:
		limit := tenant.MaxMonthlyRequests
		if limit >= 0 && usage.MonthRequests+state.pendingReqs >= limit {
			return nil, fmt.Errorf("%w: monthly request limit %d reached for %s", core.ErrQuotaExceeded, limit, clientID)
		}
	default:
		return nil, fmt.Errorf("invalid reservation kind %v", kind)
	}

	res := &Reservation{
		ID:        uuid.New(),
		ClientID:  clientID,
		Kind:      kind,
		createdAt: now,
	}
	state.pending[res.ID] = res
	switch kind {
	case KindDocument:
		state.pendingDocs++
	case KindRequest:
		state.pendingReqs++
	}
	return res, nil
}

// Commit finalizes a reservation. Request reservations increment the stored
// request counters; document reservations only release their hold, because
// the document counters were already committed inside the storage
// transaction that wrote the document.
func (l *Ledger) Commit(ctx context.Context, res *Reservation) error {
	if res == nil {
		return ErrUnknownReservation
	}
	state := l.stateFor(res.ClientID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, ok := state.pending[res.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownReservation, res.ID)
	}
	l.releaseLocked(state, res)

	if res.Kind == KindRequest {
		if err := l.usage.IncrementRequests(ctx, res.ClientID, l.now()); err != nil {
			return err
		}
	}
	return nil
}

// Rollback releases a reservation without consuming quota.
// Rolling back an unknown or already-released reservation is a no-op.
func (l *Ledger) Rollback(ctx context.Context, res *Reservation) {
	if res == nil {
		return
	}
	state := l.stateFor(res.ClientID)
	state.mu.Lock()
	defer state.mu.Unlock()

	if _, ok := state.pending[res.ID]; ok {
		l.releaseLocked(state, res)
	}
}

// PendingCount reports the tenant's in-flight reservations of one kind.
func (l *Ledger) PendingCount(clientID string, kind Kind) int64 {
	state := l.stateFor(clientID)
	state.mu.Lock()
	defer state.mu.Unlock()
	if kind == KindDocument {
		return state.pendingDocs
	}
	return state.pendingReqs
}

func (l *Ledger) stateFor(clientID string) *tenantState {
	v, ok := l.states.Load(clientID)
	if !ok {
		v, _ = l.states.LoadOrStore(clientID, &tenantState{pending: make(map[uuid.UUID]*Reservation)})
	}
	return v.(*tenantState)
}

// expireStaleLocked reclaims reservations older than the TTL.
// Caller holds state.mu.
func (l *Ledger) expireStaleLocked(state *tenantState, now time.Time) {
	for id, res := range state.pending {
		if now.Sub(res.createdAt) >= l.ttl {
			l.logger.Warn("reclaiming abandoned reservation",
				"client_id", res.ClientID, "kind", res.Kind.String(), "age", now.Sub(res.createdAt))
			delete(state.pending, id)
			switch res.Kind {
			case KindDocument:
				state.pendingDocs--
			case KindRequest:
				state.pendingReqs--
			}
		}
	}
}

// releaseLocked removes a reservation and its hold. Caller holds state.mu.
func (l *Ledger) releaseLocked(state *tenantState, res *Reservation) {
	delete(state.pending, res.ID)
	switch res.Kind {
	case KindDocument:
		state.pendingDocs--
	case KindRequest:
		state.pendingReqs--
	}
}
