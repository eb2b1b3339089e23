package planner

import (
	"testing"
	"time"

	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	entries map[string]calendar.Entry
}

func (m *memSource) CalendarWindow(ex instrument.Exchange, from, to time.Time) (map[string]calendar.Entry, error) {
	out := make(map[string]calendar.Entry)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		if e, ok := m.entries[key]; ok {
			out[key] = e
		}
	}
	return out, nil
}

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func weekdayCalendar(from, to time.Time) *memSource {
	entries := make(map[string]calendar.Entry)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		entries[d.Format("2006-01-02")] = calendar.Entry{
			Exchange: instrument.SSE, Date: d,
			IsTradingDay: wd != time.Saturday && wd != time.Sunday,
		}
	}
	return &memSource{entries: entries}
}

func TestPlanOneChunkWhenChunkDaysZero(t *testing.T) {
	src := weekdayCalendar(day("2024-01-01"), day("2024-01-10"))
	p := New(src, 0)
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	wi, err := p.Plan(id, day("2024-01-02"), day("2024-01-05"), nil, nil)
	require.NoError(t, err)
	require.Len(t, wi.Chunks, 1)
	assert.Equal(t, day("2024-01-02"), wi.Chunks[0].First)
	assert.Equal(t, day("2024-01-05"), wi.Chunks[0].Last)
}

func TestPlanChunksByConfiguredSize(t *testing.T) {
	src := weekdayCalendar(day("2024-01-01"), day("2024-02-01"))
	p := New(src, 5)
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	wi, err := p.Plan(id, day("2024-01-01"), day("2024-01-31"), nil, nil)
	require.NoError(t, err)
	assert.Greater(t, len(wi.Chunks), 1)
	for _, c := range wi.Chunks {
		assert.LessOrEqual(t, int(c.Last.Sub(c.First).Hours()/24), 5)
	}
}

func TestPlanRespectsListedAndDelistedDates(t *testing.T) {
	src := weekdayCalendar(day("2024-01-01"), day("2024-01-31"))
	p := New(src, 0)
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	listed := day("2024-01-10")
	delisted := day("2024-01-15")
	wi, err := p.Plan(id, day("2024-01-01"), day("2024-01-31"), &listed, &delisted)
	require.NoError(t, err)
	require.Len(t, wi.Chunks, 1)
	assert.False(t, wi.Chunks[0].First.Before(listed))
	assert.False(t, wi.Chunks[0].Last.After(delisted))
}

func TestPlanProducesNoWorkWhenWindowInvertedByDelisting(t *testing.T) {
	src := weekdayCalendar(day("2024-01-01"), day("2024-01-31"))
	p := New(src, 0)
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	delisted := day("2023-12-01")
	wi, err := p.Plan(id, day("2024-01-01"), day("2024-01-31"), nil, &delisted)
	require.NoError(t, err)
	assert.Empty(t, wi.Chunks)
}

func TestPlanProducesNoWorkWhenCalendarHasNoTradingDays(t *testing.T) {
	src := &memSource{entries: map[string]calendar.Entry{
		"2024-01-06": {Exchange: instrument.SSE, Date: day("2024-01-06"), IsTradingDay: false},
		"2024-01-07": {Exchange: instrument.SSE, Date: day("2024-01-07"), IsTradingDay: false},
	}}
	p := New(src, 0)
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	wi, err := p.Plan(id, day("2024-01-06"), day("2024-01-07"), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, wi.Chunks)
}
