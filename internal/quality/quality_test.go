package quality

import (
	"testing"
	"time"

	"github.com/aristath/quoteflow/internal/provider"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestScoreHappyPathMatchesWorkedExample(t *testing.T) {
	bars := []provider.RawBar{
		{Time: day("2024-01-02"), Open: 10.0, High: 11.0, Low: 9.5, Close: 10.8, Volume: 1_000_000, Amount: 10_800_000, TradeStatus: 1, Factor: 1.0},
		{Time: day("2024-01-03"), Open: 10.0, High: 11.0, Low: 9.5, Close: 10.8, Volume: 1_000_000, Amount: 10_800_000, TradeStatus: 1, Factor: 1.0},
		{Time: day("2024-01-04"), Open: 10.0, High: 11.0, Low: 9.5, Close: 10.8, Volume: 1_000_000, Amount: 10_800_000, TradeStatus: 1, Factor: 1.0},
		{Time: day("2024-01-05"), Open: 10.0, High: 11.0, Low: 9.5, Close: 10.8, Volume: 1_000_000, Amount: 10_800_000, TradeStatus: 1, Factor: 1.0},
	}
	days := map[string]bool{"2024-01-02": true, "2024-01-03": true, "2024-01-04": true, "2024-01-05": true}

	s := New(zerolog.Nop())
	result := s.Score(bars, "600000.SSE", "batch-1", "akshare", days)

	require.Len(t, result.Rows, 4)
	assert.Equal(t, 0, result.QualityIssues)
	for _, row := range result.Rows {
		assert.Equal(t, 10.8, row.PreClose)
		assert.Equal(t, 0.0, row.Change)
		assert.Equal(t, 0.0, row.PctChange)
		assert.Equal(t, 1.0, row.QualityScore)
		assert.True(t, row.IsComplete)
		assert.Equal(t, "none", row.AdjustmentType)
		assert.Equal(t, "600000.SSE", row.InstrumentID)
		assert.Equal(t, "batch-1", row.BatchID)
		assert.Equal(t, "akshare", row.Source)
	}
}

func TestScoreRejectsBasicValidationFailures(t *testing.T) {
	bars := []provider.RawBar{
		{Time: day("2024-01-02"), Open: -1, High: 11, Low: 9, Close: 10, Volume: 100, TradeStatus: 1},
		{Time: day("2024-01-03"), Open: 10, High: 9, Low: 11, Close: 10, Volume: 100, TradeStatus: 1},
		{Time: day("2024-01-04"), Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 100, TradeStatus: 1},
	}
	s := New(zerolog.Nop())
	result := s.Score(bars, "x.SSE", "b1", "akshare", nil)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, 2, result.QualityIssues)
}

func TestScoreDerivesPreCloseFromPreviousAcceptedClose(t *testing.T) {
	bars := []provider.RawBar{
		{Time: day("2024-01-02"), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100, TradeStatus: 1},
		{Time: day("2024-01-03"), Open: 10, High: 11, Low: 9, Close: 11, Volume: 100, TradeStatus: 1},
	}
	s := New(zerolog.Nop())
	result := s.Score(bars, "x.SSE", "b1", "akshare", nil)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, 10.0, result.Rows[0].PreClose)
	assert.Equal(t, 10.0, result.Rows[1].PreClose)
	assert.Equal(t, 1.0, result.Rows[1].Change)
	assert.Equal(t, 10.0, result.Rows[1].PctChange)
}

func TestScorePenalizesSuspendedAndLowVolume(t *testing.T) {
	bars := []provider.RawBar{
		{Time: day("2024-01-02"), Open: 10, High: 11, Low: 9, Close: 10, Volume: 0, TradeStatus: 0},
	}
	s := New(zerolog.Nop())
	result := s.Score(bars, "x.SSE", "b1", "akshare", nil)
	require.Len(t, result.Rows, 1)
	// -0.2 (volume<=0) -0.3 (tradestatus!=1) = 0.5
	assert.InDelta(t, 0.5, result.Rows[0].QualityScore, 0.0001)
}

func TestScorePenalizesOutOfCalendarTradingDay(t *testing.T) {
	bars := []provider.RawBar{
		{Time: day("2024-01-06"), Open: 10, High: 11, Low: 9, Close: 10, Volume: 100, TradeStatus: 1},
	}
	days := map[string]bool{"2024-01-02": true}
	s := New(zerolog.Nop())
	result := s.Score(bars, "x.SSE", "b1", "akshare", days)
	require.Len(t, result.Rows, 1)
	assert.InDelta(t, 0.7, result.Rows[0].QualityScore, 0.0001)
}

func TestAdjustmentType(t *testing.T) {
	assert.Equal(t, "none", adjustmentType(1.0))
	assert.Equal(t, "forward", adjustmentType(1.5))
	assert.Equal(t, "backward", adjustmentType(0.5))
}

func TestBelowThresholdUsesDefault(t *testing.T) {
	assert.True(t, BelowThreshold(0.5, 0))
	assert.False(t, BelowThreshold(0.9, 0))
	assert.True(t, BelowThreshold(0.9, 0.95))
}

func TestMeanScore(t *testing.T) {
	assert.Equal(t, 0.0, MeanScore(nil))
}
