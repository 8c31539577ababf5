package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatdocs/ragengine/core"
)

func TestTenantRoundTrip(t *testing.T) {
	tenant := &core.Tenant{
		ClientID:           "client_f00d",
		CompanyName:        "Widgets LLC",
		ContactEmail:       "it@widgets.test",
		Plan:               core.PlanBasic,
		Status:             core.StatusSuspended,
		MaxDocuments:       100,
		MaxMonthlyRequests: 10000,
		CreatedAt:          time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		LastActiveAt:       time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC),
	}

	got, err := UnmarshalTenant(MarshalTenant(tenant))
	require.NoError(t, err)
	assert.Equal(t, tenant, got)
}

func TestChunkRoundTrip(t *testing.T) {
	chunk := &core.Chunk{
		DocID:   "handbook",
		Ordinal: 7,
		Text:    "The warranty covers parts and labor for two years.",
		Vector:  []float32{0.25, -0.5, 0.75},
	}
	chunk.Hash = core.HashContent(chunk.Text)

	got, err := UnmarshalChunk(MarshalChunk(chunk))
	require.NoError(t, err)
	assert.Equal(t, chunk, got)
}

func TestUsageCounterRoundTrip(t *testing.T) {
	usage := &core.UsageCounter{
		TotalRequests:  42,
		MonthRequests:  7,
		TotalDocuments: 12,
		DocumentCount:  9,
		MonthDocuments: 3,
		LastRequestAt:  time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
		MonthlyReset:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}

	got, err := UnmarshalUsageCounter(MarshalUsageCounter(usage))
	require.NoError(t, err)
	assert.Equal(t, usage, got)
	// Zero times survive the round trip as zero
	assert.True(t, got.LastDocumentAt.IsZero())
}

func TestUnmarshalGarbage(t *testing.T) {
	_, err := UnmarshalTenant([]byte{0xff})
	assert.ErrorIs(t, err, ErrSerializationFailed)

	_, err = UnmarshalDocumentInfo(nil)
	assert.ErrorIs(t, err, ErrSerializationFailed)
}
