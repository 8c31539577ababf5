// Copyright 2025 ChatDocs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package ragengine is a multi-tenant document indexing and retrieval
// engine: tenants upload documents, the engine chunks and embeds them into
// per-tenant vector partitions, and questions are answered from the
// tenant's own corpus through an external completion model.
package ragengine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chatdocs/ragengine/ai"
	"github.com/chatdocs/ragengine/ai/openai"
	"github.com/chatdocs/ragengine/config"
	"github.com/chatdocs/ragengine/core"
	"github.com/chatdocs/ragengine/quota"
	"github.com/chatdocs/ragengine/retrieval"
	"github.com/chatdocs/ragengine/storage"
	badgerstore "github.com/chatdocs/ragengine/storage/badger"
	"github.com/chatdocs/ragengine/synthesis"
)

// Service wires storage, quota enforcement, retrieval, and synthesis into
// the four tenant-facing verbs (ingest, delete, query, stats) plus the
// admin operations.
type Service struct {
	backend  *badgerstore.Backend
	repos    *badgerstore.Repositories
	provider ai.Provider
	engine   *retrieval.Engine
	ledger   *quota.Ledger
	synth    *synthesis.Synthesizer
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	provider ai.Provider
}

// WithProvider overrides the AI provider, mainly for tests.
func WithProvider(provider ai.Provider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = provider
	}
}

// NewService creates the engine from configuration.
func NewService(cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	options := &serviceOptions{}
	for _, opt := range opts {
		opt(options)
	}

	provider := options.provider
	if provider == nil {
		aiCfg := ai.NewConfig(
			ai.WithEmbeddingHost(cfg.AI.EmbeddingHost),
			ai.WithCompletionHost(cfg.AI.CompletionHost),
			ai.WithEmbeddingModel(cfg.AI.EmbeddingModel),
			ai.WithCompletionModel(cfg.AI.CompletionModel),
		)
		var err error
		provider, err = openai.NewProvider(aiCfg)
		if err != nil {
			return nil, err
		}
	}

	backend, err := badgerstore.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		provider.Close()
		return nil, err
	}
	repos := badgerstore.NewRepositories(backend)

	engineOpts := []retrieval.Option{
		retrieval.WithChunking(cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap),
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithMinScore(cfg.Retrieval.MinScore),
		retrieval.WithMaxContextChars(cfg.Retrieval.MaxContextChars),
	}
	if cfg.Retrieval.PoolSize > 0 {
		engineOpts = append(engineOpts, retrieval.WithPoolSize(cfg.Retrieval.PoolSize))
	}
	engine, err := retrieval.NewEngine(repos.Documents, provider.Embedder(), engineOpts...)
	if err != nil {
		backend.Close()
		provider.Close()
		return nil, err
	}

	ledger, err := quota.NewLedger(repos.Tenants, repos.Usage)
	if err != nil {
		engine.Release()
		backend.Close()
		provider.Close()
		return nil, err
	}

	emptyPolicy := synthesis.EmptyContextModelOnly
	if cfg.Synthesis.EmptyFallback {
		emptyPolicy = synthesis.EmptyContextFallback
	}
	synth, err := synthesis.NewSynthesizer(provider.Completer(),
		synthesis.WithTimeout(cfg.SynthesisTimeout()),
		synthesis.WithMaxAttempts(cfg.Synthesis.MaxAttempts),
		synthesis.WithMaxTokens(cfg.Synthesis.MaxTokens),
		synthesis.WithTemperature(cfg.Synthesis.Temperature),
		synthesis.WithEmptyContextPolicy(emptyPolicy),
	)
	if err != nil {
		engine.Release()
		backend.Close()
		provider.Close()
		return nil, err
	}

	return &Service{
		backend:  backend,
		repos:    repos,
		provider: provider,
		engine:   engine,
		ledger:   ledger,
		synth:    synth,
		logger:   slog.Default(),
	}, nil
}

// Close releases the engine's resources.
func (s *Service) Close() error {
	s.engine.Release()

	if err := s.provider.Close(); err != nil {
		s.logger.Error("error closing AI provider", "err", err)
	}
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// IngestResult reports what an ingestion stored.
type IngestResult struct {
	DocID      string
	ChunkCount int
	Replaced   bool
}

// QueryResult carries the synthesized answer and the chunks it was grounded
// on.
type QueryResult struct {
	Answer string
	Chunks []core.RetrievedChunk
}

// TenantStats is the stats view of one tenant.
type TenantStats struct {
	Tenant    *core.Tenant
	Usage     *core.UsageCounter
	Documents []*core.DocumentInfo
}

// CreateTenant registers a new tenant on the given plan and returns it with
// a generated client ID.
func (s *Service) CreateTenant(ctx context.Context, companyName, contactEmail string, plan core.PlanType) (*core.Tenant, error) {
	limits := core.LimitsFor(plan)
	tenant := &core.Tenant{
		ClientID:           newClientID(),
		CompanyName:        companyName,
		ContactEmail:       contactEmail,
		Plan:               plan,
		Status:             core.StatusActive,
		MaxDocuments:       limits.MaxDocuments,
		MaxMonthlyRequests: limits.MaxMonthlyRequests,
	}
	if err := s.repos.Tenants.CreateTenant(ctx, tenant); err != nil {
		return nil, err
	}
	s.logger.Info("tenant created", "client_id", tenant.ClientID, "plan", plan.String())
	return tenant, nil
}

// UpdateTenantPlan moves a tenant to a new plan and applies its limits.
// Counters are not reset; a downgrade below current usage simply blocks new
// work until usage drops or the month rolls over.
func (s *Service) UpdateTenantPlan(ctx context.Context, clientID string, plan core.PlanType) (*core.Tenant, error) {
	tenant, err := s.repos.Tenants.GetTenant(ctx, clientID)
	if err != nil {
		return nil, mapTenantErr(err, clientID)
	}
	limits := core.LimitsFor(plan)
	tenant.Plan = plan
	tenant.MaxDocuments = limits.MaxDocuments
	tenant.MaxMonthlyRequests = limits.MaxMonthlyRequests
	if err := s.repos.Tenants.UpdateTenant(ctx, tenant); err != nil {
		return nil, mapTenantErr(err, clientID)
	}
	s.logger.Info("tenant plan updated", "client_id", clientID, "plan", plan.String())
	return tenant, nil
}

// SetTenantStatus suspends or reactivates a tenant.
func (s *Service) SetTenantStatus(ctx context.Context, clientID string, status core.TenantStatus) error {
	tenant, err := s.repos.Tenants.GetTenant(ctx, clientID)
	if err != nil {
		return mapTenantErr(err, clientID)
	}
	tenant.Status = status
	if err := s.repos.Tenants.UpdateTenant(ctx, tenant); err != nil {
		return mapTenantErr(err, clientID)
	}
	s.logger.Info("tenant status updated", "client_id", clientID, "status", status.String())
	return nil
}

// ListTenants returns all registered tenants.
func (s *Service) ListTenants(ctx context.Context) ([]*core.Tenant, error) {
	return s.repos.Tenants.ListTenants(ctx)
}

// Ingest chunks, embeds, and stores a document for a tenant. Overwriting an
// existing doc_id replaces its chunks atomically and does not consume a
// document quota slot; a new doc_id reserves one first.
func (s *Service) Ingest(ctx context.Context, clientID, docID, text string) (*IngestResult, error) {
	if err := core.ValidateClientID(clientID); err != nil {
		return nil, err
	}
	if err := core.ValidateDocumentID(docID); err != nil {
		return nil, err
	}
	if err := core.ValidateDocumentText(text); err != nil {
		return nil, err
	}

	tenant, err := s.repos.Tenants.GetTenant(ctx, clientID)
	if err != nil {
		return nil, mapTenantErr(err, clientID)
	}
	if tenant.Status == core.StatusSuspended {
		return nil, fmt.Errorf("%w: %s", core.ErrTenantSuspended, clientID)
	}

	// Replacements keep their slot; only a new doc_id needs a reservation.
	var reservation *quota.Reservation
	_, infoErr := s.repos.Documents.GetDocumentInfo(ctx, clientID, docID)
	if infoErr != nil {
		if !errors.Is(infoErr, storage.ErrNotFound) {
			return nil, infoErr
		}
		reservation, err = s.ledger.ReserveDocument(ctx, clientID)
		if err != nil {
			return nil, err
		}
	}

	committed := false
	defer func() {
		if reservation != nil && !committed {
			s.ledger.Rollback(ctx, reservation)
		}
	}()

	chunkCount, replaced, err := s.engine.IngestDocument(ctx, clientID, docID, text)
	if err != nil {
		return nil, err
	}

	if reservation != nil {
		if err := s.ledger.Commit(ctx, reservation); err != nil {
			// The document is stored and its counters committed with it;
			// only the in-memory hold went stale.
			s.logger.Warn("reservation commit failed after ingest", "client_id", clientID, "err", err)
		}
		committed = true
	}

	if err := s.repos.Tenants.TouchTenant(ctx, clientID, time.Now()); err != nil {
		s.logger.Warn("error touching tenant", "client_id", clientID, "err", err)
	}

	return &IngestResult{DocID: docID, ChunkCount: chunkCount, Replaced: replaced}, nil
}

// Delete removes a document and all its chunks. Idempotent: deleting an
// unknown doc_id reports existed=false without error.
func (s *Service) Delete(ctx context.Context, clientID, docID string) (bool, error) {
	if err := core.ValidateClientID(clientID); err != nil {
		return false, err
	}
	if err := core.ValidateDocumentID(docID); err != nil {
		return false, err
	}
	if _, err := s.repos.Tenants.GetTenant(ctx, clientID); err != nil {
		return false, mapTenantErr(err, clientID)
	}

	existed, err := s.engine.DeleteDocument(ctx, clientID, docID)
	if err != nil {
		return false, err
	}
	if existed {
		s.logger.Info("document deleted", "client_id", clientID, "doc_id", docID)
	}
	return existed, nil
}

// Query answers a question from the tenant's corpus. The request consumes
// one slot of the monthly request quota once it is served; failed requests
// roll their reservation back.
func (s *Service) Query(ctx context.Context, clientID, question string) (*QueryResult, error) {
	if err := core.ValidateClientID(clientID); err != nil {
		return nil, err
	}
	if err := core.ValidateQueryText(question); err != nil {
		return nil, err
	}

	reservation, err := s.ledger.ReserveRequest(ctx, clientID)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			s.ledger.Rollback(ctx, reservation)
		}
	}()

	retrieved, err := s.engine.Retrieve(ctx, clientID, question)
	if err != nil {
		return nil, err
	}

	answer, err := s.synth.Synthesize(ctx, question, retrieved.Text)
	if err != nil {
		return nil, err
	}

	if err := s.ledger.Commit(ctx, reservation); err != nil {
		s.logger.Warn("reservation commit failed after query", "client_id", clientID, "err", err)
	}
	committed = true

	if err := s.repos.Tenants.TouchTenant(ctx, clientID, time.Now()); err != nil {
		s.logger.Warn("error touching tenant", "client_id", clientID, "err", err)
	}

	return &QueryResult{Answer: answer, Chunks: retrieved.Chunks}, nil
}

// Stats returns the tenant's plan, usage counters, and live documents.
func (s *Service) Stats(ctx context.Context, clientID string) (*TenantStats, error) {
	if err := core.ValidateClientID(clientID); err != nil {
		return nil, err
	}

	tenant, err := s.repos.Tenants.GetTenant(ctx, clientID)
	if err != nil {
		return nil, mapTenantErr(err, clientID)
	}
	usage, err := s.repos.Usage.GetUsage(ctx, clientID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, err
		}
		usage = &core.UsageCounter{}
	}
	docs, err := s.repos.Documents.ListDocuments(ctx, clientID)
	if err != nil {
		return nil, err
	}

	return &TenantStats{Tenant: tenant, Usage: usage, Documents: docs}, nil
}

// newClientID generates a recognizable, opaque client identifier.
func newClientID() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return "client_" + hex.EncodeToString(buf)
}

func mapTenantErr(err error, clientID string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", core.ErrTenantNotFound, clientID)
	}
	return err
}
