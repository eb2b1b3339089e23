package calendar

import (
	"testing"
	"time"

	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	rows map[string]Entry
}

func (m *memSource) CalendarWindow(ex instrument.Exchange, from, to time.Time) (map[string]Entry, error) {
	out := make(map[string]Entry)
	for d := civil(from); !d.After(civil(to)); d = d.AddDate(0, 0, 1) {
		if e, ok := m.rows[dateKey(d)]; ok {
			out[dateKey(d)] = e
		}
	}
	return out, nil
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func newFixture() *memSource {
	rows := map[string]Entry{}
	for _, d := range []string{"2024-01-02", "2024-01-03", "2024-01-04", "2024-01-05"} {
		rows[d] = Entry{Exchange: instrument.SSE, Date: day(d), IsTradingDay: true}
	}
	rows["2024-01-01"] = Entry{Exchange: instrument.SSE, Date: day("2024-01-01"), IsTradingDay: false}
	return &memSource{rows: rows}
}

func TestTradingDaysIn(t *testing.T) {
	src := newFixture()
	days, err := TradingDaysIn(src, instrument.SSE, day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	assert.Len(t, days, 4)
	assert.True(t, days[0].Equal(day("2024-01-02")))
}

func TestTradingDaysInUnknownWindowErrors(t *testing.T) {
	src := newFixture()
	_, err := TradingDaysIn(src, instrument.SSE, day("2024-01-01"), day("2024-01-10"))
	assert.Error(t, err)
}

func TestNextPreviousTradingDay(t *testing.T) {
	src := newFixture()
	next, err := NextTradingDay(src, instrument.SSE, day("2024-01-02"), 10)
	require.NoError(t, err)
	assert.True(t, next.Equal(day("2024-01-03")))

	prev, err := PreviousTradingDay(src, instrument.SSE, day("2024-01-05"), 10)
	require.NoError(t, err)
	assert.True(t, prev.Equal(day("2024-01-04")))
}
