package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash is a 64-bit digest of chunk text.
// It is used to detect unchanged chunks when a document is overwritten,
// so their embeddings can be reused instead of recomputed.
type ContentHash uint64

// HashContent computes a deterministic ContentHash from text using BLAKE2b.
// Identical text always produces an identical hash.
func HashContent(text string) ContentHash {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ContentHash(binary.LittleEndian.Uint64(sum))
}

// PlanType identifies a tenant's subscription tier.
type PlanType int

const (
	// PlanFree is the entry tier.
	PlanFree PlanType = iota + 1
	// PlanBasic is the first paid tier.
	PlanBasic
	// PlanPro is the high-volume tier.
	PlanPro
	// PlanEnterprise has no quota limits.
	PlanEnterprise
)

// String returns the lowercase plan name.
func (p PlanType) String() string {
	switch p {
	case PlanFree:
		return "free"
	case PlanBasic:
		return "basic"
	case PlanPro:
		return "pro"
	case PlanEnterprise:
		return "enterprise"
	}
	return fmt.Sprintf("plan(%d)", int(p))
}

// ParsePlanType parses a plan name as produced by String.
func ParsePlanType(s string) (PlanType, error) {
	switch s {
	case "free":
		return PlanFree, nil
	case "basic":
		return PlanBasic, nil
	case "pro":
		return PlanPro, nil
	case "enterprise":
		return PlanEnterprise, nil
	}
	return 0, fmt.Errorf("%w: unknown plan %q", ErrInvalidInput, s)
}

// TenantStatus is the lifecycle state of a tenant.
// Tenants are never physically deleted while retained data exists; suspension
// is the soft-delete mechanism.
type TenantStatus int

const (
	// StatusActive tenants accept ingestions and queries.
	StatusActive TenantStatus = iota + 1
	// StatusSuspended tenants reject all ingestions and queries regardless of
	// remaining quota.
	StatusSuspended
)

// String returns the lowercase status name.
func (s TenantStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSuspended:
		return "suspended"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Tenant is an isolated customer. All storage and quota operations are scoped
// by ClientID; no tenant can observe another tenant's documents or counters.
type Tenant struct {
	ClientID           string
	CompanyName        string
	ContactEmail       string
	Plan               PlanType
	Status             TenantStatus
	MaxDocuments       int64 // Unlimited when negative
	MaxMonthlyRequests int64 // Unlimited when negative
	CreatedAt          time.Time
	LastActiveAt       time.Time
}

// Chunk is an embeddable span of a document's text.
// Chunks exist only as derived artifacts of a document and are replaced as a
// unit whenever the document is overwritten.
type Chunk struct {
	DocID   string
	Ordinal int
	Text    string
	Vector  []float32 // Unit-normalized embedding
	Hash    ContentHash
}

// ChunkID returns the stable identifier of a chunk within its tenant.
func ChunkID(docID string, ordinal int) string {
	return fmt.Sprintf("%s_%d", docID, ordinal)
}

// DocumentInfo is the per-document manifest kept alongside its chunks.
type DocumentInfo struct {
	DocID      string
	ChunkCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// UsageCounter tracks a tenant's consumption against its plan.
// DocumentCount always equals the number of live documents for the tenant; it
// is updated in the same storage transaction as the document write.
type UsageCounter struct {
	TotalRequests  int64
	MonthRequests  int64
	TotalDocuments int64 // Lifetime uploads, including overwritten and deleted
	DocumentCount  int64 // Live documents
	MonthDocuments int64
	LastRequestAt  time.Time
	LastDocumentAt time.Time
	MonthlyReset   time.Time
}

// RetrievedChunk is a chunk returned from a similarity query, with its source
// document and cosine similarity score.
type RetrievedChunk struct {
	DocID string
	Text  string
	Score float32
}
