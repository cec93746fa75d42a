package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightlab/stockinsight/internal/models"
)

func TestSettersAndSnapshot(t *testing.T) {
	s := New()

	s.SetStockQuery("AAPL")
	s.SetTimeframe(models.TimeframeLong)
	s.SetAnalyzing(true)
	s.SetCheckingOut(true)
	s.SetError("boom")
	s.SetCheckoutID("chk_1")
	s.SetCurrentInsight(&models.Insight{ID: 7, StockCode: "AAPL"})
	s.SetHistory([]models.InsightSummary{{ID: 7}}, 12)

	st := s.Snapshot()
	assert.Equal(t, "AAPL", st.StockQuery)
	assert.Equal(t, models.TimeframeLong, st.Timeframe)
	assert.True(t, st.Analyzing)
	assert.True(t, st.CheckingOut)
	assert.Equal(t, "boom", st.Err)
	assert.Equal(t, "chk_1", st.CheckoutID)
	require.NotNil(t, st.CurrentInsight)
	assert.EqualValues(t, 7, st.CurrentInsight.ID)
	assert.Equal(t, 12, st.HistoryTotal)

	s.ClearError()
	assert.Empty(t, s.Snapshot().Err)
}

func TestResetRestoresInitialState(t *testing.T) {
	s := New()
	s.SetStockQuery("NVDA")
	s.SetTimeframe(models.TimeframeShort)
	s.SetCheckoutID("chk_2")
	s.SetError("oops")

	s.Reset()

	st := s.Snapshot()
	assert.Empty(t, st.StockQuery)
	assert.Equal(t, models.TimeframeMid, st.Timeframe)
	assert.Empty(t, st.CheckoutID)
	assert.Empty(t, st.Err)
	assert.Nil(t, st.CurrentInsight)
}

func TestRunTokensAreMonotonic(t *testing.T) {
	s := New()
	first := s.BeginRun()
	second := s.BeginRun()
	assert.Greater(t, second, first)
}

func TestApplyIfDropsStaleRun(t *testing.T) {
	s := New()

	stale := s.BeginRun()
	current := s.BeginRun()

	// The superseded run must not touch state.
	applied := s.ApplyIf(stale, func(st *SessionState) {
		st.CurrentInsight = &models.Insight{ID: 1, StockCode: "OLD"}
	})
	assert.False(t, applied)
	assert.Nil(t, s.Snapshot().CurrentInsight)

	applied = s.ApplyIf(current, func(st *SessionState) {
		st.CurrentInsight = &models.Insight{ID: 2, StockCode: "NEW"}
	})
	assert.True(t, applied)
	require.NotNil(t, s.Snapshot().CurrentInsight)
	assert.Equal(t, "NEW", s.Snapshot().CurrentInsight.StockCode)
}

func TestResetDoesNotReviveStaleRuns(t *testing.T) {
	s := New()
	stale := s.BeginRun()
	s.BeginRun()
	s.Reset()

	assert.False(t, s.ApplyIf(stale, func(st *SessionState) { st.Err = "late" }))
	assert.Empty(t, s.Snapshot().Err)
}
