package ragengine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chatdocs/ragengine/ai/mock"
	"github.com/chatdocs/ragengine/config"
	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/synthesis"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.Storage.InMemory = true

	svc, err := NewService(cfg, WithProvider(mock.NewMockProvider()))
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestServiceEndToEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "Acme Corp", "ops@acme.test", core.PlanFree)
	if err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}
	if !strings.HasPrefix(tenant.ClientID, "client_") {
		t.Fatalf("Expected recognizable client ID prefix, got %q", tenant.ClientID)
	}
	if tenant.MaxDocuments != 10 || tenant.MaxMonthlyRequests != 1000 {
		t.Fatalf("Expected free plan limits 10/1000, got %d/%d", tenant.MaxDocuments, tenant.MaxMonthlyRequests)
	}

	result, err := svc.Ingest(ctx, tenant.ClientID, "handbook",
		"The office opens at nine. Lunch is at noon. The office closes at six.")
	if err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}
	if result.ChunkCount == 0 || result.Replaced {
		t.Fatalf("Unexpected ingest result: %+v", result)
	}

	answer, err := svc.Query(ctx, tenant.ClientID, "When does the office open?")
	if err != nil {
		t.Fatalf("Failed to query: %v", err)
	}
	if answer.Answer != "mock answer" {
		t.Fatalf("Expected synthesized answer, got %q", answer.Answer)
	}
	if len(answer.Chunks) == 0 {
		t.Fatal("Expected grounding chunks in query result")
	}

	stats, err := svc.Stats(ctx, tenant.ClientID)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Usage.DocumentCount != 1 {
		t.Fatalf("Expected 1 live document, got %d", stats.Usage.DocumentCount)
	}
	if stats.Usage.MonthRequests != 1 || stats.Usage.TotalRequests != 1 {
		t.Fatalf("Expected 1 served request, got %d/%d", stats.Usage.MonthRequests, stats.Usage.TotalRequests)
	}
	if len(stats.Documents) != 1 || stats.Documents[0].DocID != "handbook" {
		t.Fatalf("Expected handbook in document list, got %+v", stats.Documents)
	}
	if stats.Tenant.LastActiveAt.IsZero() {
		t.Fatal("Expected last-active timestamp after activity")
	}

	existed, err := svc.Delete(ctx, tenant.ClientID, "handbook")
	if err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if !existed {
		t.Fatal("Expected existed=true")
	}
	existed, err = svc.Delete(ctx, tenant.ClientID, "handbook")
	if err != nil || existed {
		t.Fatalf("Expected idempotent delete, got existed=%v err=%v", existed, err)
	}

	stats, _ = svc.Stats(ctx, tenant.ClientID)
	if stats.Usage.DocumentCount != 0 {
		t.Fatalf("Expected 0 live documents after delete, got %d", stats.Usage.DocumentCount)
	}
}

func TestServiceDocumentQuota(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "Quota Co", "q@q.test", core.PlanFree)
	if err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}

	for i := 0; i < 10; i++ {
		docID := fmt.Sprintf("doc-%d", i)
		if _, err := svc.Ingest(ctx, tenant.ClientID, docID, "Some document body."); err != nil {
			t.Fatalf("Ingest %d failed: %v", i, err)
		}
	}

	// The plan is full
	if _, err := svc.Ingest(ctx, tenant.ClientID, "doc-10", "One too many."); !errors.Is(err, core.ErrQuotaExceeded) {
		t.Fatalf("Expected ErrQuotaExceeded, got %v", err)
	}

	// Overwriting an existing document doesn't need a free slot
	result, err := svc.Ingest(ctx, tenant.ClientID, "doc-0", "Rewritten body.")
	if err != nil {
		t.Fatalf("Overwrite at full quota failed: %v", err)
	}
	if !result.Replaced {
		t.Fatal("Expected replaced=true")
	}

	// Deleting frees a slot for a new document
	if _, err := svc.Delete(ctx, tenant.ClientID, "doc-1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := svc.Ingest(ctx, tenant.ClientID, "doc-10", "Fits now."); err != nil {
		t.Fatalf("Ingest after delete failed: %v", err)
	}

	stats, err := svc.Stats(ctx, tenant.ClientID)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if stats.Usage.DocumentCount != 10 {
		t.Fatalf("Expected 10 live documents, got %d", stats.Usage.DocumentCount)
	}
}

func TestServiceSuspendedTenant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "Suspended Co", "s@s.test", core.PlanPro)
	if err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}
	if _, err := svc.Ingest(ctx, tenant.ClientID, "doc", "Body before suspension."); err != nil {
		t.Fatalf("Failed to ingest: %v", err)
	}

	if err := svc.SetTenantStatus(ctx, tenant.ClientID, core.StatusSuspended); err != nil {
		t.Fatalf("Failed to suspend: %v", err)
	}

	if _, err := svc.Ingest(ctx, tenant.ClientID, "doc2", "Blocked."); !errors.Is(err, core.ErrTenantSuspended) {
		t.Fatalf("Expected ErrTenantSuspended on ingest, got %v", err)
	}
	if _, err := svc.Query(ctx, tenant.ClientID, "Anything?"); !errors.Is(err, core.ErrTenantSuspended) {
		t.Fatalf("Expected ErrTenantSuspended on query, got %v", err)
	}

	// Stats stay readable while suspended
	if _, err := svc.Stats(ctx, tenant.ClientID); err != nil {
		t.Fatalf("Stats failed for suspended tenant: %v", err)
	}

	if err := svc.SetTenantStatus(ctx, tenant.ClientID, core.StatusActive); err != nil {
		t.Fatalf("Failed to reactivate: %v", err)
	}
	if _, err := svc.Query(ctx, tenant.ClientID, "Anything now?"); err != nil {
		t.Fatalf("Query after reactivation failed: %v", err)
	}
}

func TestServiceEmptyCorpusFallback(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "Empty Co", "e@e.test", core.PlanBasic)
	if err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}

	result, err := svc.Query(ctx, tenant.ClientID, "Is anybody home?")
	if err != nil {
		t.Fatalf("Query on empty corpus failed: %v", err)
	}
	if result.Answer != synthesis.NoDocumentsAnswer {
		t.Fatalf("Expected no-documents fallback, got %q", result.Answer)
	}

	// The fallback still counts as a served request
	stats, _ := svc.Stats(ctx, tenant.ClientID)
	if stats.Usage.MonthRequests != 1 {
		t.Fatalf("Expected 1 served request, got %d", stats.Usage.MonthRequests)
	}
}

func TestServiceUnknownTenant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Ingest(ctx, "client_ghost", "doc", "text"); !errors.Is(err, core.ErrTenantNotFound) {
		t.Fatalf("Expected ErrTenantNotFound on ingest, got %v", err)
	}
	if _, err := svc.Query(ctx, "client_ghost", "hello?"); !errors.Is(err, core.ErrTenantNotFound) {
		t.Fatalf("Expected ErrTenantNotFound on query, got %v", err)
	}
	if _, err := svc.Stats(ctx, "client_ghost"); !errors.Is(err, core.ErrTenantNotFound) {
		t.Fatalf("Expected ErrTenantNotFound on stats, got %v", err)
	}
	if _, err := svc.Delete(ctx, "client_ghost", "doc"); !errors.Is(err, core.ErrTenantNotFound) {
		t.Fatalf("Expected ErrTenantNotFound on delete, got %v", err)
	}

	if _, err := svc.UpdateTenantPlan(ctx, "client_ghost", core.PlanPro); !errors.Is(err, core.ErrTenantNotFound) {
		t.Fatalf("Expected ErrTenantNotFound on plan update, got %v", err)
	}
}

func TestServiceInvalidInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tenant, err := svc.CreateTenant(ctx, "Valid Co", "v@v.test", core.PlanFree)
	if err != nil {
		t.Fatalf("Failed to create tenant: %v", err)
	}

	cases := []struct {
		name string
		call func() error
	}{
		{"empty client id", func() error { _, err := svc.Ingest(ctx, "", "doc", "text"); return err }},
		{"empty doc id", func() error { _, err := svc.Ingest(ctx, tenant.ClientID, "", "text"); return err }},
		{"empty text", func() error { _, err := svc.Ingest(ctx, tenant.ClientID, "doc", "   "); return err }},
		{"empty query", func() error { _, err := svc.Query(ctx, tenant.ClientID, ""); return err }},
		{"doc id with colon", func() error { _, err := svc.Ingest(ctx, tenant.ClientID, "a:b", "text"); return err }},
	}
	for _, tc := range cases {
		if err := tc.call(); !errors.Is(err, core.ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput, got %v", tc.name, err)
		}
	}
}
