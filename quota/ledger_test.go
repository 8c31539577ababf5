package quota

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/storage"
	badgerstore "github.com/chatdocs/ragengine/storage/badger"
)

func newTestLedger(t *testing.T, opts ...Option) (*Ledger, *badgerstore.Repositories) {
	t.Helper()
	repos, err := badgerstore.NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })

	ledger, err := NewLedger(repos.Tenants, repos.Usage, opts...)
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}
	return ledger, repos
}

func createTenant(t *testing.T, repos *badgerstore.Repositories, clientID string, maxDocs, maxReqs int64) {
	t.Helper()
	err := repos.Tenants.CreateTenant(context.Background(), &core.Tenant{
		ClientID:           clientID,
		CompanyName:        "Test Co",
		ContactEmail:       "test@test.test",
		Plan:               core.PlanFree,
		Status:             core.StatusActive,
		MaxDocuments:       maxDocs,
		MaxMonthlyRequests: maxReqs,
	})
	if err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}
}

func TestReserveCommitRequest(t *testing.T) {
	ledger, repos := newTestLedger(t)
	ctx := context.Background()
	createTenant(t, repos, "client_req", 10, 2)

	for i := 0; i < 2; i++ {
		res, err := ledger.ReserveRequest(ctx, "client_req")
		if err != nil {
			t.Fatalf("Reserve %d failed: %v", i, err)
		}
		if err := ledger.Commit(ctx, res); err != nil {
			t.Fatalf("Commit %d failed: %v", i, err)
		}
	}

	// Committed requests fill the monthly quota
	if _, err := ledger.ReserveRequest(ctx, "client_req"); !errors.Is(err, core.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}

	usage, err := repos.Usage.GetUsage(ctx, "client_req")
	if err != nil {
		t.Fatalf("Failed to get usage: %v", err)
	}
	if usage.TotalRequests != 2 || usage.MonthRequests != 2 {
		t.Fatalf("Expected 2/2 requests committed, got %d/%d", usage.TotalRequests, usage.MonthRequests)
	}
}

func TestRollbackFreesCapacity(t *testing.T) {
	ledger, repos := newTestLedger(t)
	ctx := context.Background()
	createTenant(t, repos, "client_rb", 10, 1)

	res, err := ledger.ReserveRequest(ctx, "client_rb")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// The pending hold blocks a second reservation
	if _, err := ledger.ReserveRequest(ctx, "client_rb"); !errors.Is(err, core.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded while hold pending, got %v", err)
	}

	ledger.Rollback(ctx, res)

	// Nothing was consumed
	if _, err := ledger.ReserveRequest(ctx, "client_rb"); err != nil {
		t.Fatalf("Reserve after rollback failed: %v", err)
	}
	usage, _ := repos.Usage.GetUsage(ctx, "client_rb")
	if usage.MonthRequests != 0 {
		t.Fatalf("Rollback must not consume quota, got %d", usage.MonthRequests)
	}

	// Rolling back twice is harmless
	ledger.Rollback(ctx, res)
}

func TestConcurrentReservationsSingleSlot(t *testing.T) {
	ledger, repos := newTestLedger(t)
	ctx := context.Background()
	createTenant(t, repos, "client_race", 1, 100)

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledger.ReserveDocument(ctx, "client_race")
		}(i)
	}
	wg.Wait()

	var granted, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			granted++
		case errors.Is(err, core.ErrQuotaExceeded):
			rejected++
		default:
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if granted != 1 || rejected != workers-1 {
		t.Fatalf("Expected exactly 1 grant for 1 slot, got %d grants / %d rejections", granted, rejected)
	}
}

func TestDocumentReserveCountsLiveDocuments(t *testing.T) {
	ledger, repos := newTestLedger(t)
	ctx := context.Background()
	createTenant(t, repos, "client_full", 2, 100)

	for _, docID := range []string{"a", "b"} {
		chunks := []core.Chunk{{Text: docID, Vector: []float32{1}}}
		if _, err := repos.Documents.UpsertDocument(ctx, "client_full", docID, chunks); err != nil {
			t.Fatalf("Failed to upsert %s: %v", docID, err)
		}
	}

	if _, err := ledger.ReserveDocument(ctx, "client_full"); !errors.Is(err, core.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded at document cap, got %v", err)
	}

	// Deleting frees a slot
	if _, err := repos.Documents.DeleteDocument(ctx, "client_full", "a"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := ledger.ReserveDocument(ctx, "client_full"); err != nil {
		t.Fatalf("Reserve after delete failed: %v", err)
	}
}

func TestSuspendedAndUnknownTenants(t *testing.T) {
	ledger, repos := newTestLedger(t)
	ctx := context.Background()
	createTenant(t, repos, "client_susp", 10, 10)

	tenant, _ := repos.Tenants.GetTenant(ctx, "client_susp")
	tenant.Status = core.StatusSuspended
	if err := repos.Tenants.UpdateTenant(ctx, tenant); err != nil {
		t.Fatalf("Failed to suspend tenant: %v", err)
	}

	// Suspension blocks regardless of remaining quota
	if _, err := ledger.ReserveRequest(ctx, "client_susp"); !errors.Is(err, core.ErrTenantSuspended) {
		t.Fatalf("Expected ErrTenantSuspended, got %v", err)
	}
	if _, err := ledger.ReserveDocument(ctx, "client_susp"); !errors.Is(err, core.ErrTenantSuspended) {
		t.Fatalf("Expected ErrTenantSuspended, got %v", err)
	}

	if _, err := ledger.ReserveRequest(ctx, "client_nobody"); !errors.Is(err, core.ErrTenantNotFound) {
		t.Fatalf("Expected ErrTenantNotFound, got %v", err)
	}
}

func TestUnlimitedPlanNeverExceeds(t *testing.T) {
	ledger, repos := newTestLedger(t)
	ctx := context.Background()
	createTenant(t, repos, "client_ent", core.Unlimited, core.Unlimited)

	for i := 0; i < 50; i++ {
		res, err := ledger.ReserveRequest(ctx, "client_ent")
		if err != nil {
			t.Fatalf("Reserve %d failed: %v", i, err)
		}
		if err := ledger.Commit(ctx, res); err != nil {
			t.Fatalf("Commit %d failed: %v", i, err)
		}
	}
	if _, err := ledger.ReserveDocument(ctx, "client_ent"); err != nil {
		t.Fatalf("Unlimited document reserve failed: %v", err)
	}
}

func TestAbandonedReservationExpires(t *testing.T) {
	clock := time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	now := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return clock
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		clock = clock.Add(d)
	}

	ledger, repos := newTestLedger(t, WithReservationTTL(time.Minute), WithClock(now))
	ctx := context.Background()
	createTenant(t, repos, "client_ttl", 1, 10)

	res, err := ledger.ReserveDocument(ctx, "client_ttl")
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if _, err := ledger.ReserveDocument(ctx, "client_ttl"); !errors.Is(err, core.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded while hold pending, got %v", err)
	}

	// Past the TTL the abandoned hold is reclaimed lazily
	advance(2 * time.Minute)
	if _, err := ledger.ReserveDocument(ctx, "client_ttl"); err != nil {
		t.Fatalf("Reserve after expiry failed: %v", err)
	}

	// Committing the expired reservation is refused
	if err := ledger.Commit(ctx, res); !errors.Is(err, ErrUnknownReservation) {
		t.Fatalf("Expected ErrUnknownReservation, got %v", err)
	}
}

func TestMonthlyResetOnReserve(t *testing.T) {
	clock := time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)
	ledger, repos := newTestLedger(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()
	createTenant(t, repos, "client_month", 10, 5)

	// Simulate a tenant that exhausted last month's quota
	usage := &core.UsageCounter{
		TotalRequests: 5,
		MonthRequests: 5,
		MonthlyReset:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repos.Usage.PutUsage(ctx, "client_month", usage); err != nil {
		t.Fatalf("Failed to seed usage: %v", err)
	}

	// Crossing the boundary resets the monthly counter, so the reserve passes
	res, err := ledger.ReserveRequest(ctx, "client_month")
	if err != nil {
		t.Fatalf("Reserve after boundary failed: %v", err)
	}
	if err := ledger.Commit(ctx, res); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	got, err := repos.Usage.GetUsage(ctx, "client_month")
	if err != nil {
		t.Fatalf("Failed to get usage: %v", err)
	}
	if got.MonthRequests != 1 {
		t.Fatalf("Expected month counter reset then incremented to 1, got %d", got.MonthRequests)
	}
	if got.TotalRequests != 6 {
		t.Fatalf("Expected lifetime counter to survive reset, got %d", got.TotalRequests)
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !got.MonthlyReset.Equal(want) {
		t.Fatalf("Expected next boundary %v, got %v", want, got.MonthlyReset)
	}
}

// usageRepoWithHook runs a hook right before each monthly rollover, to
// interleave other storage writes with the reservation path.
type usageRepoWithHook struct {
	storage.UsageRepository
	beforeRollover func()
}

func (r *usageRepoWithHook) ApplyMonthlyReset(ctx context.Context, clientID string, now time.Time) (*core.UsageCounter, bool, error) {
	if r.beforeRollover != nil {
		hook := r.beforeRollover
		r.beforeRollover = nil
		hook()
	}
	return r.UsageRepository.ApplyMonthlyReset(ctx, clientID, now)
}

func TestMonthlyResetSurvivesInterleavedUpsert(t *testing.T) {
	clock := time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)
	repos, err := badgerstore.NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	t.Cleanup(func() { repos.Close() })
	ctx := context.Background()
	createTenant(t, repos, "client_roll", 10, 5)

	// A document lands while the reservation is applying the rollover
	usage := &usageRepoWithHook{UsageRepository: repos.Usage}
	usage.beforeRollover = func() {
		chunks := []core.Chunk{{Text: "landed mid-rollover", Vector: []float32{1}}}
		if _, err := repos.Documents.UpsertDocument(ctx, "client_roll", "doc", chunks); err != nil {
			t.Errorf("Upsert during rollover failed: %v", err)
		}
	}
	ledger, err := NewLedger(repos.Tenants, usage, WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("Failed to create ledger: %v", err)
	}

	seed := &core.UsageCounter{
		TotalRequests: 5,
		MonthRequests: 5,
		MonthlyReset:  time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := repos.Usage.PutUsage(ctx, "client_roll", seed); err != nil {
		t.Fatalf("Failed to seed usage: %v", err)
	}

	res, err := ledger.ReserveRequest(ctx, "client_roll")
	if err != nil {
		t.Fatalf("Reserve after boundary failed: %v", err)
	}
	if err := ledger.Commit(ctx, res); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// The interleaved document's counters must survive the rollover
	got, err := repos.Usage.GetUsage(ctx, "client_roll")
	if err != nil {
		t.Fatalf("Failed to get usage: %v", err)
	}
	live, err := repos.Documents.CountDocuments(ctx, "client_roll")
	if err != nil {
		t.Fatalf("Failed to count documents: %v", err)
	}
	if got.DocumentCount != live || got.DocumentCount != 1 {
		t.Fatalf("Expected DocumentCount 1 == live %d, got %d", live, got.DocumentCount)
	}
	if got.MonthRequests != 1 || got.TotalRequests != 6 {
		t.Fatalf("Expected requests 1/6 after reset and commit, got %d/%d", got.MonthRequests, got.TotalRequests)
	}
}
