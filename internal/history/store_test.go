package history

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/stockinsight/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "insights.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sample(id int64, code string) *models.Insight {
	return &models.Insight{
		ID:              id,
		StockCode:       code,
		StockName:       code + " Corp",
		Market:          "US",
		Timeframe:       models.TimeframeMid,
		CreatedAt:       "2025-11-02T10:00:00Z",
		Recommendation:  models.Buy,
		ConfidenceLevel: models.ConfidenceHigh,
		RiskScore:       5,
		KeySummary:      []string{"solid quarter"},
	}
}

func TestRecordAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	in := sample(1, "AAPL")
	require.NoError(t, s.Record(in))

	out, err := s.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRecordSameIDRefreshes(t *testing.T) {
	s := newTestStore(t)

	first := sample(1, "AAPL")
	require.NoError(t, s.Record(first))

	updated := sample(1, "AAPL")
	updated.Recommendation = models.Hold
	require.NoError(t, s.Record(updated))

	out, err := s.GetByID(1)
	require.NoError(t, err)
	assert.Equal(t, models.Hold, out.Recommendation)

	items, err := s.ListRecent(10)
	require.NoError(t, err)
	assert.Len(t, items, 1, "re-recording must not duplicate")
}

func TestListRecentOrderAndLimit(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Record(sample(1, "AAPL")))
	require.NoError(t, s.Record(sample(2, "NVDA")))
	require.NoError(t, s.Record(sample(3, "MSFT")))

	items, err := s.ListRecent(2)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.NotEqual(t, "AAPL", item.StockCode, "oldest entry should fall outside the limit")
	}
}

func TestGetMissingReturnsNoRows(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetByID(404)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
