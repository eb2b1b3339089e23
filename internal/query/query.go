// Package query implements the Query façade (§4.9): read-only operations
// over Store, with optional computed statistics, quality summaries, and
// currency normalization on top of the raw rows.
package query

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"time"

	"github.com/aristath/quoteflow/internal/store"
)

// Format selects the wire shape of GetQuotes's result.
type Format string

const (
	FormatRows Format = "rows"
	FormatCSV  Format = "csv"
)

const defaultLookbackDays = 5

// Store is the subset of the persistence layer the façade reads from.
type Store interface {
	GetInstruments(f store.InstrumentFilter, page store.Page) ([]store.Instrument, error)
	GetInstrumentsByExchange(exchange string, f store.InstrumentFilter, page store.Page) ([]store.Instrument, error)
	GetQuotes(f store.QuoteFilter, page store.Page) ([]store.DailyQuote, error)
	GetLatestQuoteTime(instrumentID string) (*time.Time, error)
}

// RateConverter resolves a spot conversion rate between two currency codes.
// Satisfied by *exchangerate.Client; nil disables currency normalization.
type RateConverter interface {
	GetRate(from, to string) (float64, error)
}

// Facade answers read-only questions against Store.
type Facade struct {
	store Store
	rates RateConverter
}

func New(s Store, rates RateConverter) *Facade {
	return &Facade{store: s, rates: rates}
}

// SortField names a column InstrumentsRequest.Sort may order by.
type SortField string

const (
	SortBySymbol     SortField = "symbol"
	SortByListedDate SortField = "listed_date"
	SortByName       SortField = "name"
)

// InstrumentsRequest is getInstruments(filters, sort, page) (§4.9).
type InstrumentsRequest struct {
	Filter store.InstrumentFilter
	Sort   SortField
	Desc   bool
	Page   store.Page
}

// GetInstruments implements getInstruments (§4.9).
func (f *Facade) GetInstruments(req InstrumentsRequest) ([]store.Instrument, error) {
	var rows []store.Instrument
	var err error
	if req.Filter.Exchange != "" {
		rows, err = f.store.GetInstrumentsByExchange(req.Filter.Exchange, req.Filter, req.Page)
	} else {
		rows, err = f.store.GetInstruments(req.Filter, req.Page)
	}
	if err != nil {
		return nil, err
	}
	sortInstruments(rows, req.Sort, req.Desc)
	return rows, nil
}

func sortInstruments(rows []store.Instrument, field SortField, desc bool) {
	if field == "" {
		return
	}
	less := func(i, j int) bool {
		switch field {
		case SortByListedDate:
			a, b := rows[i].ListedDate, rows[j].ListedDate
			if a == nil {
				return false
			}
			if b == nil {
				return true
			}
			return a.Before(*b)
		case SortByName:
			return rows[i].Name < rows[j].Name
		default:
			return rows[i].Symbol < rows[j].Symbol
		}
	}
	if desc {
		sort.SliceStable(rows, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(rows, less)
	}
}

// QuotesRequest is getQuotes(instrument_id, window, ..., format) (§4.9).
type QuotesRequest struct {
	Filter          store.QuoteFilter
	Page            store.Page
	Format          Format
	TargetCurrency  string
	SourceCurrency  string
	WithStats       bool
	WithQuality     bool
}

// QuotesResponse is the envelope assembled around a getQuotes result
// (§4.9: "Response assembly adds (where asked): computed statistics ...
// quality summary ...").
type QuotesResponse struct {
	InstrumentID string
	Rows         []store.DailyQuote
	CSV          string
	Stats        *QuoteStats
	Quality      *store.QualitySummary
}

// QuoteStats is the computed-statistics block of a quotes response.
type QuoteStats struct {
	Count           int
	MinClose        float64
	MaxClose        float64
	MeanVolume      float64
	TradingDayCount int
}

// GetQuotes implements getQuotes (§4.9). When req.TargetCurrency is set
// and differs from req.SourceCurrency, every price field is converted
// through f.rates (a supplemented feature, not part of spec.md's core
// contract — see SPEC_FULL.md §C).
func (f *Facade) GetQuotes(req QuotesRequest) (QuotesResponse, error) {
	rows, err := f.store.GetQuotes(req.Filter, req.Page)
	if err != nil {
		return QuotesResponse{}, err
	}

	if req.TargetCurrency != "" && req.SourceCurrency != "" && req.TargetCurrency != req.SourceCurrency {
		if f.rates == nil {
			return QuotesResponse{}, fmt.Errorf("query: currency conversion requested but no rate converter configured")
		}
		rate, err := f.rates.GetRate(req.SourceCurrency, req.TargetCurrency)
		if err != nil {
			return QuotesResponse{}, fmt.Errorf("query: resolve rate %s->%s: %w", req.SourceCurrency, req.TargetCurrency, err)
		}
		rows = convertCurrency(rows, rate)
	}

	resp := QuotesResponse{InstrumentID: req.Filter.InstrumentID, Rows: rows}
	if req.WithStats {
		stats := computeStats(rows)
		resp.Stats = &stats
	}
	if req.WithQuality {
		q := computeQuality(rows)
		resp.Quality = &q
	}
	if req.Format == FormatCSV {
		csv, err := toCSV(rows)
		if err != nil {
			return QuotesResponse{}, err
		}
		resp.CSV = csv
		resp.Rows = nil
	}
	return resp, nil
}

func convertCurrency(rows []store.DailyQuote, rate float64) []store.DailyQuote {
	out := make([]store.DailyQuote, len(rows))
	for i, r := range rows {
		r.Open *= rate
		r.High *= rate
		r.Low *= rate
		r.Close *= rate
		r.PreClose *= rate
		r.Change *= rate
		r.Amount *= rate
		out[i] = r
	}
	return out
}

func computeStats(rows []store.DailyQuote) QuoteStats {
	if len(rows) == 0 {
		return QuoteStats{}
	}
	stats := QuoteStats{Count: len(rows), MinClose: rows[0].Close, MaxClose: rows[0].Close}
	var volumeSum int64
	tradingDays := make(map[string]bool, len(rows))
	for _, r := range rows {
		if r.Close < stats.MinClose {
			stats.MinClose = r.Close
		}
		if r.Close > stats.MaxClose {
			stats.MaxClose = r.Close
		}
		volumeSum += r.Volume
		if r.TradeStatus == 1 {
			tradingDays[r.Time.Format("2006-01-02")] = true
		}
	}
	stats.MeanVolume = float64(volumeSum) / float64(len(rows))
	stats.TradingDayCount = len(tradingDays)
	return stats
}

func computeQuality(rows []store.DailyQuote) store.QualitySummary {
	if len(rows) == 0 {
		return store.QualitySummary{}
	}
	const threshold = 0.7
	q := store.QualitySummary{MinScore: rows[0].QualityScore, MaxScore: rows[0].QualityScore}
	var sum float64
	for _, r := range rows {
		sum += r.QualityScore
		if r.QualityScore < q.MinScore {
			q.MinScore = r.QualityScore
		}
		if r.QualityScore > q.MaxScore {
			q.MaxScore = r.QualityScore
		}
		if r.QualityScore < threshold {
			q.BelowThreshold++
		}
	}
	q.AvgScore = sum / float64(len(rows))
	return q
}

var csvHeader = []string{
	"instrument_id", "time", "open", "high", "low", "close", "pre_close",
	"change", "pct_change", "volume", "amount", "turnover", "tradestatus",
	"factor", "adjustment_type", "is_complete", "quality_score", "source",
}

func toCSV(rows []store.DailyQuote) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return "", err
	}
	for _, r := range rows {
		record := []string{
			r.InstrumentID,
			r.Time.Format("2006-01-02"),
			fmt.Sprintf("%.4f", r.Open),
			fmt.Sprintf("%.4f", r.High),
			fmt.Sprintf("%.4f", r.Low),
			fmt.Sprintf("%.4f", r.Close),
			fmt.Sprintf("%.4f", r.PreClose),
			fmt.Sprintf("%.4f", r.Change),
			fmt.Sprintf("%.2f", r.PctChange),
			fmt.Sprintf("%d", r.Volume),
			fmt.Sprintf("%.2f", r.Amount),
			fmt.Sprintf("%.4f", r.Turnover),
			fmt.Sprintf("%d", r.TradeStatus),
			fmt.Sprintf("%.4f", r.Factor),
			r.AdjustmentType,
			fmt.Sprintf("%t", r.IsComplete),
			fmt.Sprintf("%.4f", r.QualityScore),
			r.Source,
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// LatestQuote is one instrument's newest row within the lookback window.
type LatestQuote struct {
	InstrumentID string
	Quote        *store.DailyQuote
	Found        bool
}

// GetLatestQuotes implements getLatestQuotes(instrument_ids, lookbackDays)
// (§4.9): for each id, the newest row within the last N days.
func (f *Facade) GetLatestQuotes(instrumentIDs []string, lookbackDays int) ([]LatestQuote, error) {
	if lookbackDays <= 0 {
		lookbackDays = defaultLookbackDays
	}
	now := time.Now().UTC()
	from := now.AddDate(0, 0, -lookbackDays)

	out := make([]LatestQuote, 0, len(instrumentIDs))
	for _, id := range instrumentIDs {
		latestTime, err := f.store.GetLatestQuoteTime(id)
		if err != nil {
			return nil, err
		}
		if latestTime == nil || latestTime.Before(from) {
			out = append(out, LatestQuote{InstrumentID: id})
			continue
		}
		rows, err := f.store.GetQuotes(store.QuoteFilter{
			InstrumentID:     id,
			From:             *latestTime,
			To:               *latestTime,
			IncludeSuspended: true,
		}, store.Page{})
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			out = append(out, LatestQuote{InstrumentID: id})
			continue
		}
		row := rows[len(rows)-1]
		out = append(out, LatestQuote{InstrumentID: id, Quote: &row, Found: true})
	}
	return out, nil
}
