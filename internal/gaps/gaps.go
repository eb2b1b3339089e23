// Package gaps implements GapEngine (§4.7): detects missing trading days
// per instrument against the calendar, and repairs them by re-fetching
// from ProviderRouter.
package gaps

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/instrument"
)

// Severity classifies a gap run by its length in days.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// classify implements §4.7's monotone severity function.
func classify(days int) Severity {
	switch {
	case days <= 1:
		return SeverityLow
	case days <= 5:
		return SeverityMedium
	case days <= 20:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

// Gap is one maximal consecutive run of missing trading days for an
// instrument.
type Gap struct {
	InstrumentID  string
	Symbol        string
	Exchange      instrument.Exchange
	First         time.Time
	Last          time.Time
	Days          int
	Type          string
	Severity      Severity
	Recommendation string
	MissingDates  []time.Time
}

// InstrumentInfo is the subset of a Store instrument row the engine needs.
type InstrumentInfo struct {
	ID           instrument.ID
	Symbol       string
	Exchange     instrument.Exchange
	ListedDate   *time.Time
	DelistedDate *time.Time
}

// Store is the subset of the persistence layer GapEngine depends on for
// detection. Repair (Fill) goes through a caller-supplied callback instead,
// since it needs both ProviderRouter.fetchDaily and QualityStage.Score
// wired together before Store.upsertQuotes — composing that belongs to
// PipelineOrchestrator, not to GapEngine.
type Store interface {
	ActiveInstruments(ex instrument.Exchange) ([]InstrumentInfo, error)
	ExistingQuoteDates(instrumentID string, from, to time.Time) (map[string]bool, error)
}

// Engine detects and repairs gaps.
type Engine struct {
	cal   calendar.Source
	store Store
}

func New(cal calendar.Source, store Store) *Engine {
	return &Engine{cal: cal, store: store}
}

// Detect implements §4.7's detect(exchanges, [d1,d2]).
func (e *Engine) Detect(exchanges []instrument.Exchange, from, to time.Time) ([]Gap, error) {
	var gaps []Gap
	for _, ex := range exchanges {
		instruments, err := e.store.ActiveInstruments(ex)
		if err != nil {
			return nil, err
		}
		for _, inst := range instruments {
			instGaps, err := e.detectOne(inst, from, to)
			if err != nil {
				return nil, err
			}
			gaps = append(gaps, instGaps...)
		}
	}
	return gaps, nil
}

func (e *Engine) detectOne(inst InstrumentInfo, from, to time.Time) ([]Gap, error) {
	s, d := from, to
	if inst.ListedDate != nil && inst.ListedDate.After(s) {
		s = *inst.ListedDate
	}
	if inst.DelistedDate != nil && inst.DelistedDate.Before(d) {
		d = *inst.DelistedDate
	}
	if s.After(d) {
		return nil, nil
	}

	expected, err := calendar.TradingDaysIn(e.cal, inst.Exchange, s, d)
	if err != nil {
		return nil, err
	}
	if len(expected) == 0 {
		return nil, nil
	}

	stored, err := e.store.ExistingQuoteDates(inst.ID.String(), s, d)
	if err != nil {
		return nil, err
	}

	var missing []time.Time
	for _, day := range expected {
		if !stored[day.Format("2006-01-02")] {
			missing = append(missing, day)
		}
	}
	if len(missing) == 0 {
		return nil, nil
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i].Before(missing[j]) })

	return mergeRuns(inst, missing), nil
}

func mergeRuns(inst InstrumentInfo, missing []time.Time) []Gap {
	var gaps []Gap
	runStart := 0
	for i := 1; i <= len(missing); i++ {
		if i == len(missing) || int(missing[i].Sub(missing[i-1]).Hours()/24) != 1 {
			run := missing[runStart:i]
			days := int(run[len(run)-1].Sub(run[0]).Hours()/24) + 1
			sev := classify(days)
			gaps = append(gaps, Gap{
				InstrumentID:   inst.ID.String(),
				Symbol:         inst.Symbol,
				Exchange:       inst.Exchange,
				First:          run[0],
				Last:           run[len(run)-1],
				Days:           days,
				Type:           "missing_data",
				Severity:       sev,
				Recommendation: recommendationFor(sev),
				MissingDates:   run,
			})
			runStart = i
		}
	}
	return gaps
}

func recommendationFor(sev Severity) string {
	switch sev {
	case SeverityLow:
		return "monitor"
	case SeverityMedium:
		return "backfill_on_next_scheduled_run"
	case SeverityHigh:
		return "backfill_now"
	default:
		return "investigate_provider_outage_and_backfill_now"
	}
}

// Filter narrows which gaps Fill acts on.
type Filter struct {
	Exchange      instrument.Exchange
	InstrumentIDs map[string]bool
	Severities    map[Severity]bool
	GapTypes      map[string]bool
	MaxDays       int
	DryRun        bool
}

func (f Filter) accepts(g Gap) bool {
	if f.Exchange != "" && g.Exchange != f.Exchange {
		return false
	}
	if len(f.InstrumentIDs) > 0 && !f.InstrumentIDs[g.InstrumentID] {
		return false
	}
	if len(f.Severities) > 0 && !f.Severities[g.Severity] {
		return false
	}
	if len(f.GapTypes) > 0 && !f.GapTypes[g.Type] {
		return false
	}
	if f.MaxDays > 0 && g.Days > f.MaxDays {
		return false
	}
	return true
}

// interGapDelay throttles repeated repair fetches against the same
// providers the historical/daily download passes hit (§4.7).
const interGapDelay = time.Second

// FillResult is the outcome of a Fill call.
type FillResult struct {
	Found  int
	Filled int
	Failed int
	Errors []string
}

// Fill implements §4.7's fill(filter): for each gap accepted by filter,
// re-fetch and upsert the missing range. It never deletes existing rows.
func (e *Engine) Fill(ctx context.Context, gaps []Gap, filter Filter, fetchAndUpsert func(ctx context.Context, g Gap) error) FillResult {
	var res FillResult
	repaired := 0
	for _, g := range gaps {
		if !filter.accepts(g) {
			continue
		}
		res.Found++
		if filter.DryRun {
			continue
		}

		if repaired > 0 {
			select {
			case <-ctx.Done():
				res.Errors = append(res.Errors, ctx.Err().Error())
				return res
			case <-time.After(interGapDelay):
			}
		}
		repaired++

		if err := fetchAndUpsert(ctx, g); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("%s [%s..%s]: %v", g.InstrumentID, g.First.Format("2006-01-02"), g.Last.Format("2006-01-02"), err))
			continue
		}
		res.Filled++
	}
	return res
}
