package query

import (
	"strings"
	"testing"
	"time"

	"github.com/aristath/quoteflow/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

type fakeStore struct {
	instruments []store.Instrument
	quotes      []store.DailyQuote
	latest      map[string]*time.Time
}

func (f *fakeStore) GetInstruments(filter store.InstrumentFilter, page store.Page) ([]store.Instrument, error) {
	return f.instruments, nil
}

func (f *fakeStore) GetInstrumentsByExchange(exchange string, filter store.InstrumentFilter, page store.Page) ([]store.Instrument, error) {
	var out []store.Instrument
	for _, i := range f.instruments {
		if i.Exchange == exchange {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeStore) GetQuotes(filter store.QuoteFilter, page store.Page) ([]store.DailyQuote, error) {
	var out []store.DailyQuote
	for _, q := range f.quotes {
		if q.InstrumentID != filter.InstrumentID {
			continue
		}
		if !filter.From.IsZero() && q.Time.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && q.Time.After(filter.To) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (f *fakeStore) GetLatestQuoteTime(instrumentID string) (*time.Time, error) {
	return f.latest[instrumentID], nil
}

type fakeRates struct {
	rate float64
	err  error
}

func (f *fakeRates) GetRate(from, to string) (float64, error) {
	return f.rate, f.err
}

func TestGetInstrumentsFiltersByExchange(t *testing.T) {
	s := &fakeStore{instruments: []store.Instrument{
		{InstrumentID: "600000.SSE", Symbol: "600000", Exchange: "SSE"},
		{InstrumentID: "AAPL.NASDAQ", Symbol: "AAPL", Exchange: "NASDAQ"},
	}}
	f := New(s, nil)

	rows, err := f.GetInstruments(InstrumentsRequest{Filter: store.InstrumentFilter{Exchange: "SSE"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "600000.SSE", rows[0].InstrumentID)
}

func TestGetInstrumentsSortsBySymbolDescending(t *testing.T) {
	s := &fakeStore{instruments: []store.Instrument{
		{InstrumentID: "A", Symbol: "AAA"},
		{InstrumentID: "B", Symbol: "ZZZ"},
		{InstrumentID: "C", Symbol: "MMM"},
	}}
	f := New(s, nil)

	rows, err := f.GetInstruments(InstrumentsRequest{Sort: SortBySymbol, Desc: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ZZZ", "MMM", "AAA"}, []string{rows[0].Symbol, rows[1].Symbol, rows[2].Symbol})
}

func TestGetQuotesComputesStatsAndQuality(t *testing.T) {
	s := &fakeStore{quotes: []store.DailyQuote{
		{InstrumentID: "600000.SSE", Time: day("2024-01-02"), Close: 10, Volume: 100, TradeStatus: 1, QualityScore: 0.9},
		{InstrumentID: "600000.SSE", Time: day("2024-01-03"), Close: 12, Volume: 300, TradeStatus: 1, QualityScore: 0.5},
	}}
	f := New(s, nil)

	resp, err := f.GetQuotes(QuotesRequest{
		Filter:      store.QuoteFilter{InstrumentID: "600000.SSE"},
		WithStats:   true,
		WithQuality: true,
	})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 2)
	require.NotNil(t, resp.Stats)
	assert.Equal(t, 2, resp.Stats.Count)
	assert.Equal(t, 10.0, resp.Stats.MinClose)
	assert.Equal(t, 12.0, resp.Stats.MaxClose)
	assert.Equal(t, 200.0, resp.Stats.MeanVolume)
	require.NotNil(t, resp.Quality)
	assert.Equal(t, 1, resp.Quality.BelowThreshold)
	assert.InDelta(t, 0.7, resp.Quality.AvgScore, 0.0001)
}

func TestGetQuotesCSVFormatOmitsRows(t *testing.T) {
	s := &fakeStore{quotes: []store.DailyQuote{
		{InstrumentID: "600000.SSE", Time: day("2024-01-02"), Open: 10, High: 11, Low: 9.5, Close: 10.8, Volume: 1000, Source: "akshare"},
	}}
	f := New(s, nil)

	resp, err := f.GetQuotes(QuotesRequest{Filter: store.QuoteFilter{InstrumentID: "600000.SSE"}, Format: FormatCSV})
	require.NoError(t, err)
	assert.Nil(t, resp.Rows)
	assert.True(t, strings.HasPrefix(resp.CSV, "instrument_id,time,open"))
	assert.Contains(t, resp.CSV, "600000.SSE,2024-01-02")
}

func TestGetQuotesConvertsCurrencyWhenRequested(t *testing.T) {
	s := &fakeStore{quotes: []store.DailyQuote{
		{InstrumentID: "AAPL.NASDAQ", Time: day("2024-01-02"), Open: 100, High: 110, Low: 90, Close: 105},
	}}
	f := New(s, &fakeRates{rate: 7.1})

	resp, err := f.GetQuotes(QuotesRequest{
		Filter:         store.QuoteFilter{InstrumentID: "AAPL.NASDAQ"},
		SourceCurrency: "USD",
		TargetCurrency: "CNY",
	})
	require.NoError(t, err)
	require.Len(t, resp.Rows, 1)
	assert.InDelta(t, 745.5, resp.Rows[0].Close, 0.0001)
}

func TestGetQuotesErrorsWhenConversionRequestedWithoutConverter(t *testing.T) {
	s := &fakeStore{}
	f := New(s, nil)

	_, err := f.GetQuotes(QuotesRequest{
		Filter:         store.QuoteFilter{InstrumentID: "AAPL.NASDAQ"},
		SourceCurrency: "USD",
		TargetCurrency: "CNY",
	})
	assert.Error(t, err)
}

func TestGetLatestQuotesOutsideLookbackWindow(t *testing.T) {
	recent := day("2024-01-04")
	s := &fakeStore{
		latest: map[string]*time.Time{"600000.SSE": &recent},
		quotes: []store.DailyQuote{
			{InstrumentID: "600000.SSE", Time: recent, Close: 11},
		},
	}
	f := New(s, nil)

	// lookbackDays is measured against time.Now, so this exercises the
	// "stale" branch: a fixed historical date always falls outside any
	// reasonable lookback window from the real clock.
	out, err := f.GetLatestQuotes([]string{"600000.SSE", "NOPE.SSE"}, 5)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "600000.SSE", out[0].InstrumentID)
	assert.False(t, out[0].Found)
	assert.False(t, out[1].Found)
}
