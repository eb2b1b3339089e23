package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/quoteflow/internal/errkind"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/rs/zerolog"
)

// InstrumentCache is the subset of Store the router consults for the
// instrument-list cache-staleness rule (§4.3 rule 3).
type InstrumentCache interface {
	CountAndFreshness(ex instrument.Exchange) (count int, newestUpdate time.Time, err error)
}

// CalendarStore is the subset of Store the router writes refreshed
// calendar days back to after a primary fetch (§4.3.2).
type CalendarStore interface {
	UpsertCalendarDays(ex instrument.Exchange, days []RawCalendarDay) error
}

// Router holds, per exchange, an ordered [primary, ...backups] adapter
// list and implements the routing rules of §4.3.
type Router struct {
	primary map[instrument.Exchange]Adapter
	backups map[instrument.Exchange][]Adapter
	cache   InstrumentCache
	store   CalendarStore
	log     zerolog.Logger
}

// NewRouter builds an empty router; use RegisterPrimary/RegisterBackup to
// populate the per-exchange routing tables.
func NewRouter(cache InstrumentCache, calStore CalendarStore, log zerolog.Logger) *Router {
	return &Router{
		primary: make(map[instrument.Exchange]Adapter),
		backups: make(map[instrument.Exchange][]Adapter),
		cache:   cache,
		store:   calStore,
		log:     log.With().Str("component", "provider_router").Logger(),
	}
}

// RegisterPrimary sets ex's primary adapter.
func (r *Router) RegisterPrimary(ex instrument.Exchange, a Adapter) {
	r.primary[ex] = a
}

// RegisterBackup appends a to ex's backup list, in priority order.
func (r *Router) RegisterBackup(ex instrument.Exchange, a Adapter) {
	r.backups[ex] = append(r.backups[ex], a)
}

// ListInstruments implements rule 1 (primary only) and rule 3 (instrument
// list cache). forceRefresh bypasses the cache unconditionally.
func (r *Router) ListInstruments(ctx context.Context, ex instrument.Exchange, forceRefresh bool) ([]RawInstrument, bool, error) {
	if !forceRefresh && r.cache != nil {
		count, newest, err := r.cache.CountAndFreshness(ex)
		if err == nil && count >= 100 && time.Since(newest) < 24*time.Hour {
			return nil, true, nil // cached: caller should read from Store directly
		}
	}

	a, ok := r.primary[ex]
	if !ok || !a.Capabilities().Has(CapListInstruments) {
		return nil, false, errkind.New(errkind.ProviderUnavailable, "router.ListInstruments",
			fmt.Errorf("no primary instrument-list source for %s", ex))
	}
	rows, err := a.ListInstruments(ctx, ex)
	if err != nil {
		r.log.Warn().Err(err).Str("exchange", string(ex)).Msg("primary list failed")
		return nil, false, nil // per rule 1: return empty and let caller decide
	}
	return rows, false, nil
}

// FetchDaily implements rule 2: try primary, then each backup in order;
// first validated non-empty result wins.
func (r *Router) FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]RawBar, error) {
	candidates := r.fetchOrder(id.Exchange)
	if len(candidates) == 0 {
		return nil, errkind.New(errkind.ProviderUnavailable, "router.FetchDaily",
			fmt.Errorf("no adapters configured for %s", id.Exchange))
	}

	var lastErr error
	for _, a := range candidates {
		if !a.Capabilities().Has(CapFetchDaily) {
			continue
		}
		bars, err := a.FetchDaily(ctx, id, from, to)
		if err != nil {
			r.log.Warn().Err(err).Str("adapter", a.Name()).Str("instrument", id.String()).Msg("fetch failed, trying next")
			lastErr = err
			continue
		}
		if err := ValidatePayload(id, bars); err != nil {
			r.log.Warn().Err(err).Str("adapter", a.Name()).Str("instrument", id.String()).Msg("payload invalid, trying next")
			lastErr = err
			continue
		}
		if len(bars) == 0 {
			continue
		}
		return bars, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no adapter returned data")
	}
	return nil, errkind.New(errkind.ProviderUnavailable, "router.FetchDaily", lastErr)
}

func (r *Router) fetchOrder(ex instrument.Exchange) []Adapter {
	var out []Adapter
	if a, ok := r.primary[ex]; ok {
		out = append(out, a)
	}
	out = append(out, r.backups[ex]...)
	return out
}

// UpdateTradingCalendar fetches the calendar from ex's primary and upserts
// it into Store (§4.3.2). Trading-day reads go through calendar.Source
// directly (backed by Store, not by Router), so there is nothing else to
// invalidate here.
func (r *Router) UpdateTradingCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) error {
	a, ok := r.primary[ex]
	if !ok || !a.Capabilities().Has(CapFetchCalendar) {
		return errkind.New(errkind.ProviderUnavailable, "router.UpdateTradingCalendar",
			fmt.Errorf("no calendar source for %s", ex))
	}
	days, err := a.FetchCalendar(ctx, ex, from, to)
	if err != nil {
		return errkind.New(errkind.ProviderTransient, "router.UpdateTradingCalendar", err)
	}
	if r.store != nil {
		if err := r.store.UpsertCalendarDays(ex, days); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePayload applies §4.3.1's gate to the first ≤5 rows of bars.
func ValidatePayload(id instrument.ID, bars []RawBar) error {
	n := len(bars)
	if n > 5 {
		n = 5
	}
	for i := 0; i < n; i++ {
		b := bars[i]
		if b.Time.IsZero() || b.InstrumentID == "" {
			return errkind.New(errkind.PayloadInvalid, "ValidatePayload", fmt.Errorf("row %d missing required fields", i))
		}
		if b.InstrumentID != id.String() && b.InstrumentID != id.Native() {
			return errkind.New(errkind.PayloadInvalid, "ValidatePayload",
				fmt.Errorf("row %d instrument_id %q does not match requested %q", i, b.InstrumentID, id))
		}
		if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
			return errkind.New(errkind.PayloadInvalid, "ValidatePayload", fmt.Errorf("row %d has non-positive price", i))
		}
		if b.High < b.Low {
			return errkind.New(errkind.PayloadInvalid, "ValidatePayload", fmt.Errorf("row %d high < low", i))
		}
	}
	return nil
}
