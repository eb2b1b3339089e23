package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	name   string
	caps   Capability
	bars   []RawBar
	fails  bool
	instrs []RawInstrument
	cal    []RawCalendarDay
}

func (f *fakeAdapter) Name() string             { return f.name }
func (f *fakeAdapter) Capabilities() Capability  { return f.caps }
func (f *fakeAdapter) HealthCheck(context.Context) error { return nil }

func (f *fakeAdapter) ListInstruments(ctx context.Context, ex instrument.Exchange) ([]RawInstrument, error) {
	if f.fails {
		return nil, errors.New("list failed")
	}
	return f.instrs, nil
}

func (f *fakeAdapter) FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]RawBar, error) {
	if f.fails {
		return nil, errors.New("fetch failed")
	}
	return f.bars, nil
}

func (f *fakeAdapter) FetchCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) ([]RawCalendarDay, error) {
	if f.fails {
		return nil, errors.New("calendar failed")
	}
	return f.cal, nil
}

func validBar(id instrument.ID, day string) RawBar {
	d, _ := time.Parse("2006-01-02", day)
	return RawBar{InstrumentID: id.String(), Time: d, Open: 10, High: 11, Low: 9, Close: 10.5, Volume: 1000}
}

func TestRouterFetchDailyFallsBackToBackup(t *testing.T) {
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	primary := &fakeAdapter{name: "primary", caps: CapFetchDaily, fails: true}
	backup := &fakeAdapter{name: "backup", caps: CapFetchDaily, bars: []RawBar{validBar(id, "2024-01-02")}}

	r := NewRouter(nil, nil, zerolog.Nop())
	r.RegisterPrimary(instrument.SSE, primary)
	r.RegisterBackup(instrument.SSE, backup)

	bars, err := r.FetchDaily(context.Background(), id, time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, bars, 1)
}

func TestRouterFetchDailyFailsWhenAllSourcesFail(t *testing.T) {
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	primary := &fakeAdapter{name: "primary", caps: CapFetchDaily, fails: true}
	r := NewRouter(nil, nil, zerolog.Nop())
	r.RegisterPrimary(instrument.SSE, primary)

	_, err := r.FetchDaily(context.Background(), id, time.Now(), time.Now())
	assert.Error(t, err)
}

func TestRouterFetchDailyRejectsInvalidPayload(t *testing.T) {
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	bad := RawBar{InstrumentID: id.String(), Time: time.Now(), Open: -1, High: 11, Low: 9, Close: 10}
	primary := &fakeAdapter{name: "primary", caps: CapFetchDaily, bars: []RawBar{bad}}
	backup := &fakeAdapter{name: "backup", caps: CapFetchDaily, bars: []RawBar{validBar(id, "2024-01-02")}}

	r := NewRouter(nil, nil, zerolog.Nop())
	r.RegisterPrimary(instrument.SSE, primary)
	r.RegisterBackup(instrument.SSE, backup)

	bars, err := r.FetchDaily(context.Background(), id, time.Now(), time.Now())
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 10.5, bars[0].Close)
}

func TestValidatePayloadRejectsMismatchedInstrument(t *testing.T) {
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	other := instrument.ID{Symbol: "000001", Exchange: instrument.SZSE}
	bars := []RawBar{validBar(other, "2024-01-02")}
	err := ValidatePayload(id, bars)
	assert.Error(t, err)
}

func TestValidatePayloadRejectsHighBelowLow(t *testing.T) {
	id := instrument.ID{Symbol: "600000", Exchange: instrument.SSE}
	b := validBar(id, "2024-01-02")
	b.High = 1
	b.Low = 100
	err := ValidatePayload(id, []RawBar{b})
	assert.Error(t, err)
}

type fakeCache struct {
	count  int
	newest time.Time
}

func (c *fakeCache) CountAndFreshness(ex instrument.Exchange) (int, time.Time, error) {
	return c.count, c.newest, nil
}

func TestRouterListInstrumentsUsesCacheWhenFresh(t *testing.T) {
	cache := &fakeCache{count: 500, newest: time.Now()}
	r := NewRouter(cache, nil, zerolog.Nop())
	r.RegisterPrimary(instrument.SSE, &fakeAdapter{name: "primary", caps: CapListInstruments})

	_, cached, err := r.ListInstruments(context.Background(), instrument.SSE, false)
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestRouterListInstrumentsForcesRefresh(t *testing.T) {
	cache := &fakeCache{count: 500, newest: time.Now()}
	instrs := []RawInstrument{{Symbol: "600000", Exchange: instrument.SSE}}
	r := NewRouter(cache, nil, zerolog.Nop())
	r.RegisterPrimary(instrument.SSE, &fakeAdapter{name: "primary", caps: CapListInstruments, instrs: instrs})

	rows, cached, err := r.ListInstruments(context.Background(), instrument.SSE, true)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Len(t, rows, 1)
}
