package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/gaps"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/aristath/quoteflow/internal/journal"
	"github.com/aristath/quoteflow/internal/provider"
	"github.com/aristath/quoteflow/internal/store"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

type fakeInstruments struct {
	rows []store.Instrument
}

func (f *fakeInstruments) GetInstrumentsByExchange(exchange string, filter store.InstrumentFilter, page store.Page) ([]store.Instrument, error) {
	return f.rows, nil
}

type fakeSink struct {
	upserted [][]store.DailyQuote
	existing map[string]map[string]bool // instrumentID -> dates already stored; nil entry/map means "fetch everything"
}

func (f *fakeSink) UpsertQuotes(batch []store.DailyQuote) (int, error) {
	f.upserted = append(f.upserted, batch)
	return len(batch), nil
}

func (f *fakeSink) GetExistingQuoteDates(instrumentID string, from, to time.Time) (map[string]bool, error) {
	return f.existing[instrumentID], nil
}

type fakeRouter struct {
	bars          []provider.RawBar
	calendarCalls int
	fetchCalls    int
}

func (f *fakeRouter) FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]provider.RawBar, error) {
	f.fetchCalls++
	return f.bars, nil
}

func (f *fakeRouter) UpdateTradingCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) error {
	f.calendarCalls++
	return nil
}

type weekdayCalendar struct{}

func (weekdayCalendar) CalendarWindow(ex instrument.Exchange, from, to time.Time) (map[string]calendar.Entry, error) {
	out := make(map[string]calendar.Entry)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		wd := d.Weekday()
		out[d.Format("2006-01-02")] = calendar.Entry{Exchange: ex, Date: d, IsTradingDay: wd != time.Saturday && wd != time.Sunday}
	}
	return out, nil
}

func TestRunProcessesSingleInstrumentBatch(t *testing.T) {
	instruments := &fakeInstruments{rows: []store.Instrument{
		{InstrumentID: "600000.SSE", Symbol: "600000", Exchange: "SSE", IsActive: true},
	}}
	sink := &fakeSink{}
	router := &fakeRouter{bars: []provider.RawBar{
		{InstrumentID: "600000.SSE", Time: day("2024-01-02"), Open: 10, High: 11, Low: 9.5, Close: 10.8, Volume: 1000, TradeStatus: 1, Factor: 1},
	}}

	j := journal.New(t.TempDir() + "/progress.msgpack")
	orch := New(instruments, router, sink, weekdayCalendar{}, nil, j, nil, zerolog.Nop())

	res, err := orch.Run(context.Background(), Spec{
		Exchanges:        []instrument.Exchange{instrument.SSE},
		WindowFrom:       day("2024-01-02"),
		WindowTo:         day("2024-01-02"),
		QualityThreshold: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Successful)
	assert.Equal(t, 1, res.TotalQuotes)
	require.Len(t, sink.upserted, 1)
	assert.Equal(t, "600000.SSE", sink.upserted[0][0].InstrumentID)
}

func TestRunRefreshesCalendarWhenForced(t *testing.T) {
	instruments := &fakeInstruments{}
	sink := &fakeSink{}
	router := &fakeRouter{}
	j := journal.New(t.TempDir() + "/progress.msgpack")
	orch := New(instruments, router, sink, weekdayCalendar{}, nil, j, nil, zerolog.Nop())

	_, err := orch.Run(context.Background(), Spec{
		Exchanges:           []instrument.Exchange{instrument.SSE, instrument.SZSE},
		WindowFrom:          day("2024-01-01"),
		WindowTo:            day("2024-01-05"),
		ForceUpdateCalendar: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, router.calendarCalls)
}

func TestRunResumesFromExistingSnapshot(t *testing.T) {
	path := t.TempDir() + "/progress.msgpack"
	j := journal.New(path)
	require.NoError(t, j.Save(journal.ProgressSnapshot{BatchID: "existing-batch", Total: 10, Processed: 5}))

	instruments := &fakeInstruments{rows: []store.Instrument{
		{InstrumentID: "600000.SSE", Symbol: "600000", Exchange: "SSE", IsActive: true},
	}}
	sink := &fakeSink{}
	router := &fakeRouter{bars: []provider.RawBar{
		{InstrumentID: "600000.SSE", Time: day("2024-01-02"), Open: 10, High: 11, Low: 9.5, Close: 10.8, Volume: 1000, TradeStatus: 1, Factor: 1},
	}}
	orch := New(instruments, router, sink, weekdayCalendar{}, nil, j, nil, zerolog.Nop())

	res, err := orch.Run(context.Background(), Spec{
		Exchanges:  []instrument.Exchange{instrument.SSE},
		WindowFrom: day("2024-01-01"),
		WindowTo:   day("2024-01-05"),
		Resume:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, "existing-batch", res.BatchID)
	// Counters are re-derived for this call, not compounded onto the
	// carried-over snapshot's stale Total: 10/Processed: 5.
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Successful)
}

func TestRunSkipsChunksAlreadyStored(t *testing.T) {
	instruments := &fakeInstruments{rows: []store.Instrument{
		{InstrumentID: "600000.SSE", Symbol: "600000", Exchange: "SSE", IsActive: true},
	}}
	sink := &fakeSink{existing: map[string]map[string]bool{
		"600000.SSE": {"2024-01-02": true},
	}}
	router := &fakeRouter{bars: []provider.RawBar{}}
	j := journal.New(t.TempDir() + "/progress.msgpack")
	orch := New(instruments, router, sink, weekdayCalendar{}, nil, j, nil, zerolog.Nop())

	res, err := orch.Run(context.Background(), Spec{
		Exchanges:  []instrument.Exchange{instrument.SSE},
		WindowFrom: day("2024-01-02"),
		WindowTo:   day("2024-01-02"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, router.fetchCalls, "chunk fully covered by existing quote dates must not be refetched")
	assert.Equal(t, 1, res.Successful)
}

func TestRunSkipsInstrumentsFullyOutsideListingWindow(t *testing.T) {
	listed := day("2025-01-01")
	instruments := &fakeInstruments{rows: []store.Instrument{
		{InstrumentID: "600000.SSE", Symbol: "600000", Exchange: "SSE", IsActive: true, ListedDate: &listed},
	}}
	sink := &fakeSink{}
	router := &fakeRouter{bars: []provider.RawBar{}}
	j := journal.New(t.TempDir() + "/progress.msgpack")
	orch := New(instruments, router, sink, weekdayCalendar{}, nil, j, nil, zerolog.Nop())

	res, err := orch.Run(context.Background(), Spec{
		Exchanges:  []instrument.Exchange{instrument.SSE},
		WindowFrom: day("2024-01-01"),
		WindowTo:   day("2024-01-05"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalQuotes)
	require.Len(t, sink.upserted, 1)
	assert.Empty(t, sink.upserted[0])
}

func TestRunRunsGapDetectionAfterCompletion(t *testing.T) {
	instruments := &fakeInstruments{rows: []store.Instrument{
		{InstrumentID: "600000.SSE", Symbol: "600000", Exchange: "SSE", IsActive: true},
	}}
	sink := &fakeSink{}
	router := &fakeRouter{bars: []provider.RawBar{}}
	j := journal.New(t.TempDir() + "/progress.msgpack")

	gapStore := &fakeGapStore{
		instruments: []gaps.InstrumentInfo{{ID: instrument.ID{Symbol: "600000", Exchange: instrument.SSE}, Symbol: "600000", Exchange: instrument.SSE}},
		stored:      map[string]map[string]bool{"600000.SSE": {}},
	}
	engine := gaps.New(weekdayCalendar{}, gapStore)

	orch := New(instruments, router, sink, weekdayCalendar{}, engine, j, nil, zerolog.Nop())
	res, err := orch.Run(context.Background(), Spec{
		Exchanges:  []instrument.Exchange{instrument.SSE},
		WindowFrom: day("2024-01-02"),
		WindowTo:   day("2024-01-02"),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Gaps)
}

type fakeGapStore struct {
	instruments []gaps.InstrumentInfo
	stored      map[string]map[string]bool
}

func (f *fakeGapStore) ActiveInstruments(ex instrument.Exchange) ([]gaps.InstrumentInfo, error) {
	return f.instruments, nil
}

func (f *fakeGapStore) ExistingQuoteDates(instrumentID string, from, to time.Time) (map[string]bool, error) {
	return f.stored[instrumentID], nil
}
