package badger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/storage"
)

func newTestTenant(clientID string) *core.Tenant {
	limits := core.LimitsFor(core.PlanFree)
	return &core.Tenant{
		ClientID:           clientID,
		CompanyName:        "Acme Corp",
		ContactEmail:       "ops@acme.test",
		Plan:               core.PlanFree,
		Status:             core.StatusActive,
		MaxDocuments:       limits.MaxDocuments,
		MaxMonthlyRequests: limits.MaxMonthlyRequests,
	}
}

func TestTenantLifecycle(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	tenant := newTestTenant("client_a1b2c3")
	if err := repos.Tenants.CreateTenant(ctx, tenant); err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}

	// Duplicate client IDs are rejected
	if err := repos.Tenants.CreateTenant(ctx, newTestTenant("client_a1b2c3")); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	got, err := repos.Tenants.GetTenant(ctx, "client_a1b2c3")
	if err != nil {
		t.Fatalf("Failed to get tenant: %v", err)
	}
	if got.CompanyName != "Acme Corp" {
		t.Fatalf("Expected 'Acme Corp', got '%s'", got.CompanyName)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("Expected CreatedAt to be stamped")
	}

	// Creating a tenant initializes its usage counter with a future reset
	usage, err := repos.Usage.GetUsage(ctx, "client_a1b2c3")
	if err != nil {
		t.Fatalf("Failed to get usage: %v", err)
	}
	if !usage.MonthlyReset.After(time.Now().UTC()) {
		t.Fatalf("Expected future monthly reset, got %v", usage.MonthlyReset)
	}

	// Plan upgrades persist
	got.Plan = core.PlanPro
	limits := core.LimitsFor(core.PlanPro)
	got.MaxDocuments = limits.MaxDocuments
	got.MaxMonthlyRequests = limits.MaxMonthlyRequests
	if err := repos.Tenants.UpdateTenant(ctx, got); err != nil {
		t.Fatalf("Failed to update tenant: %v", err)
	}
	updated, err := repos.Tenants.GetTenant(ctx, "client_a1b2c3")
	if err != nil {
		t.Fatalf("Failed to get updated tenant: %v", err)
	}
	if updated.Plan != core.PlanPro || updated.MaxDocuments != 1000 {
		t.Fatalf("Expected pro plan with 1000 documents, got %v/%d", updated.Plan, updated.MaxDocuments)
	}

	// Unknown tenants surface ErrNotFound
	if _, err := repos.Tenants.GetTenant(ctx, "client_missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if err := repos.Tenants.UpdateTenant(ctx, newTestTenant("client_missing")); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestTenantList(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	for _, id := range []string{"client_bbb", "client_aaa", "client_ccc"} {
		if err := repos.Tenants.CreateTenant(ctx, newTestTenant(id)); err != nil {
			t.Fatalf("Failed to create tenant %s: %v", id, err)
		}
	}

	tenants, err := repos.Tenants.ListTenants(ctx)
	if err != nil {
		t.Fatalf("Failed to list tenants: %v", err)
	}
	if len(tenants) != 3 {
		t.Fatalf("Expected 3 tenants, got %d", len(tenants))
	}
	// Key iteration order is lexicographic on client ID
	if tenants[0].ClientID != "client_aaa" || tenants[2].ClientID != "client_ccc" {
		t.Fatalf("Expected client-ID order, got %s..%s", tenants[0].ClientID, tenants[2].ClientID)
	}
}

func TestTouchTenant(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	if err := repos.Tenants.CreateTenant(ctx, newTestTenant("client_touch")); err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if err := repos.Tenants.TouchTenant(ctx, "client_touch", at); err != nil {
		t.Fatalf("Failed to touch tenant: %v", err)
	}

	got, err := repos.Tenants.GetTenant(ctx, "client_touch")
	if err != nil {
		t.Fatalf("Failed to get tenant: %v", err)
	}
	if !got.LastActiveAt.Equal(at) {
		t.Fatalf("Expected last active %v, got %v", at, got.LastActiveAt)
	}
}

func TestCreateTenantRejectsKeySeparator(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer repos.Close()

	ctx := context.Background()

	if err := repos.Tenants.CreateTenant(ctx, newTestTenant("client_a")); err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}

	// "client_a:x" would share the chunk scan prefix of "client_a"
	if err := repos.Tenants.CreateTenant(ctx, newTestTenant("client_a:x")); !errors.Is(err, core.ErrInvalidInput) {
		t.Fatalf("Expected ErrInvalidInput, got %v", err)
	}
	if _, err := repos.Tenants.GetTenant(ctx, "client_a:x"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected rejected tenant to stay absent, got %v", err)
	}
}

func TestClosedBackend(t *testing.T) {
	repos, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}

	if err := repos.Tenants.CreateTenant(context.Background(), newTestTenant("client_gone")); err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}
	if err := repos.Close(); err != nil {
		t.Fatalf("Failed to close repositories: %v", err)
	}

	if _, err := repos.Tenants.GetTenant(context.Background(), "client_gone"); !errors.Is(err, storage.ErrStorageClosed) {
		t.Fatalf("Expected ErrStorageClosed on read, got %v", err)
	}
	if err := repos.Tenants.CreateTenant(context.Background(), newTestTenant("client_late")); !errors.Is(err, storage.ErrStorageClosed) {
		t.Fatalf("Expected ErrStorageClosed on write, got %v", err)
	}
}
