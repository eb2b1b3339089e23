// Package planner implements DownloadPlanner (§4.5): turns an instrument
// and a requested window into chunked work items over the trading-day set.
package planner

import (
	"time"

	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/instrument"
)

// Chunk is a contiguous sub-window of a work item, carrying the exact
// trading days expected within it.
type Chunk struct {
	First          time.Time
	Last           time.Time
	TradingDays    []time.Time
}

// WorkItem is one instrument's plan for a requested window.
type WorkItem struct {
	InstrumentID instrument.ID
	Chunks       []Chunk
}

// Planner computes WorkItems against a calendar.Source.
type Planner struct {
	cal       calendar.Source
	chunkDays int
}

// New builds a Planner. chunkDays == 0 means "one chunk spanning the
// whole effective window".
func New(cal calendar.Source, chunkDays int) *Planner {
	return &Planner{cal: cal, chunkDays: chunkDays}
}

// Plan computes the effective window (intersected with listed/delisted),
// the trading-day set in it, and chunks that set per chunkDays. Returns a
// WorkItem with no chunks if the effective window is empty, the calendar
// has no trading days in it, or the whole window is outside listing.
func (p *Planner) Plan(id instrument.ID, w1, w2 time.Time, listedDate, delistedDate *time.Time) (WorkItem, error) {
	s, e := w1, w2
	if listedDate != nil && listedDate.After(s) {
		s = *listedDate
	}
	if delistedDate != nil && delistedDate.Before(e) {
		e = *delistedDate
	}
	if s.After(e) {
		return WorkItem{InstrumentID: id}, nil
	}

	days, err := calendar.TradingDaysIn(p.cal, id.Exchange, s, e)
	if err != nil {
		return WorkItem{}, err
	}
	if len(days) == 0 {
		return WorkItem{InstrumentID: id}, nil
	}

	return WorkItem{InstrumentID: id, Chunks: p.chunk(days)}, nil
}

func (p *Planner) chunk(days []time.Time) []Chunk {
	if p.chunkDays <= 0 {
		return []Chunk{{First: days[0], Last: days[len(days)-1], TradingDays: days}}
	}

	var chunks []Chunk
	start := 0
	for i := 1; i <= len(days); i++ {
		if i == len(days) || int(days[i].Sub(days[start]).Hours()/24) >= p.chunkDays {
			chunks = append(chunks, Chunk{
				First:       days[start],
				Last:        days[i-1],
				TradingDays: days[start:i],
			})
			start = i
		}
	}
	return chunks
}
