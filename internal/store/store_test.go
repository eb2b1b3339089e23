package store

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := fmt.Sprintf("%s/quoteflow_test_%d.db", t.TempDir(), time.Now().UnixNano())
	s, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.Remove(path)
	})
	return s
}

func day(s string) time.Time {
	t, _ := time.Parse(dateLayout, s)
	return t
}

func TestUpsertInstrumentsIsIdempotentAndBumpsVersion(t *testing.T) {
	s := newTestStore(t)
	in := Instrument{InstrumentID: "600000.SSE", Symbol: "600000", Exchange: "SSE", Status: "active", IsActive: true}

	n, err := s.UpsertInstruments([]Instrument{in})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	in.Name = "Pudong Bank"
	_, err = s.UpsertInstruments([]Instrument{in})
	require.NoError(t, err)

	got, err := s.GetInstrumentByIDorSymbol("600000.SSE")
	require.NoError(t, err)
	require.Equal(t, "Pudong Bank", got.Name)
	require.Equal(t, 2, got.DataVersion)
}

func TestUpsertQuotesIsRowWiseIdempotent(t *testing.T) {
	s := newTestStore(t)
	q := DailyQuote{InstrumentID: "600000.SSE", Time: day("2024-01-02"), Open: 10, High: 11, Low: 9.5, Close: 10.8,
		Volume: 1_000_000, Amount: 10_800_000, Factor: 1, QualityScore: 1, IsComplete: true}

	_, err := s.UpsertQuotes([]DailyQuote{q})
	require.NoError(t, err)

	q.Close = 11.0
	_, err = s.UpsertQuotes([]DailyQuote{q})
	require.NoError(t, err)

	rows, err := s.GetQuotes(QuoteFilter{InstrumentID: "600000.SSE", From: day("2024-01-01"), To: day("2024-01-05"), IncludeSuspended: true}, Page{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 11.0, rows[0].Close)
}

func TestGetExistingQuoteDates(t *testing.T) {
	s := newTestStore(t)
	batch := []DailyQuote{
		{InstrumentID: "600000.SSE", Time: day("2024-01-02"), Open: 1, High: 1, Low: 1, Close: 1, Factor: 1, QualityScore: 1},
		{InstrumentID: "600000.SSE", Time: day("2024-01-05"), Open: 1, High: 1, Low: 1, Close: 1, Factor: 1, QualityScore: 1},
	}
	_, err := s.UpsertQuotes(batch)
	require.NoError(t, err)

	dates, err := s.GetExistingQuoteDates("600000.SSE", day("2024-01-01"), day("2024-01-05"))
	require.NoError(t, err)
	require.Len(t, dates, 2)
	require.True(t, dates["2024-01-02"])
	require.False(t, dates["2024-01-03"])
}

func TestCalendarUpsertUniquePerExchangeDate(t *testing.T) {
	s := newTestStore(t)
	rows := []CalendarRow{
		{Exchange: "SSE", Date: day("2024-01-02"), IsTradingDay: true},
		{Exchange: "SSE", Date: day("2024-01-02"), IsTradingDay: false}, // overwrite
	}
	require.NoError(t, s.UpsertCalendar(rows))

	win, err := s.CalendarWindow("SSE", day("2024-01-02"), day("2024-01-02"))
	require.NoError(t, err)
	require.Len(t, win, 1)
	require.False(t, win["2024-01-02"].IsTradingDay)
}
