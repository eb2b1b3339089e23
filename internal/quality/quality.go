// Package quality implements the per-row normalization and scoring stage
// (QualityStage): basic validation, derived fields, adjustment tagging,
// completeness, and a quality score, in that order.
package quality

import (
	"math"
	"sort"

	"github.com/aristath/quoteflow/internal/provider"
	"github.com/aristath/quoteflow/internal/store"
	"github.com/rs/zerolog"
)

const belowThresholdDefault = 0.7

// Result is the output of Score: the accepted, normalized rows plus the
// count of rows dropped by basic validation.
type Result struct {
	Rows          []store.DailyQuote
	QualityIssues int
}

// Stage applies the per-row algorithm to a chronologically-ordered batch
// of raw bars for one instrument.
type Stage struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Stage {
	return &Stage{log: log.With().Str("component", "quality_stage").Logger()}
}

// Score runs the seven-step algorithm over bars (already sorted or not —
// Score sorts them chronologically itself, since pre_close derivation
// depends on order) and stamps instrumentID/batchID/source on every
// accepted row. tradingDays is the planned trading-day set for the
// instrument's exchange in the window of interest, keyed "YYYY-MM-DD";
// a row with tradestatus 1 dated outside it takes the extra
// out-of-calendar penalty and is not rejected. A nil tradingDays skips
// that penalty.
func (s *Stage) Score(bars []provider.RawBar, instrumentID, batchID, source string, tradingDays map[string]bool) Result {
	sorted := make([]provider.RawBar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	var rows []store.DailyQuote
	issues := 0
	prevClose := 0.0
	haveAccepted := false

	for _, b := range sorted {
		if !s.passesBasicValidation(b) {
			issues++
			continue
		}

		preClose := b.PreClose
		if preClose <= 0 {
			if haveAccepted {
				preClose = prevClose
			} else {
				preClose = b.Close
			}
		}

		change, pctChange := 0.0, 0.0
		if preClose > 0 {
			change = round(b.Close-preClose, 4)
			pctChange = round(100*change/preClose, 2)
		}

		adjType := adjustmentType(b.Factor)
		complete := isComplete(b)
		scoreVal := s.rowScore(b, complete, tradingDays)

		rows = append(rows, store.DailyQuote{
			InstrumentID:   instrumentID,
			Time:           b.Time,
			Open:           b.Open,
			High:           b.High,
			Low:            b.Low,
			Close:          b.Close,
			PreClose:       preClose,
			Change:         change,
			PctChange:      pctChange,
			Volume:         b.Volume,
			Amount:         b.Amount,
			Turnover:       b.Turnover,
			TradeStatus:    b.TradeStatus,
			Factor:         b.Factor,
			AdjustmentType: adjType,
			IsComplete:     complete,
			QualityScore:   scoreVal,
			Source:         source,
			BatchID:        batchID,
		})

		prevClose = b.Close
		haveAccepted = true
	}

	return Result{Rows: rows, QualityIssues: issues}
}

func (s *Stage) passesBasicValidation(b provider.RawBar) bool {
	if b.Time.IsZero() {
		return false
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return false
	}
	if b.High < b.Low {
		return false
	}
	return true
}

func adjustmentType(factor float64) string {
	switch {
	case factor > 1:
		return "forward"
	case factor > 0 && factor < 1:
		return "backward"
	default:
		return "none"
	}
}

func isComplete(b provider.RawBar) bool {
	hi, lo := math.Max(b.Open, b.Close), math.Min(b.Open, b.Close)
	if b.High < hi || b.Low > lo {
		return false
	}
	if b.Volume < 0 || b.Amount < 0 {
		return false
	}
	return true
}

func (s *Stage) rowScore(b provider.RawBar, complete bool, tradingDays map[string]bool) float64 {
	score := 1.0
	hi, lo := math.Max(b.Open, b.Close), math.Min(b.Open, b.Close)
	if b.High < hi {
		score -= 0.1
	}
	if b.Low > lo {
		score -= 0.1
	}
	if b.Volume <= 0 {
		score -= 0.2
	}
	if b.TradeStatus != 1 {
		score -= 0.3
	}
	if !complete {
		score -= 0.1
	}
	if tradingDays != nil && b.TradeStatus == 1 {
		key := b.Time.Format("2006-01-02")
		if !tradingDays[key] {
			score -= 0.3
		}
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func round(v float64, places int) float64 {
	mult := math.Pow(10, float64(places))
	return math.Round(v*mult) / mult
}

// BelowThreshold reports whether score is under the operator-configurable
// quality threshold (default 0.7, per §9 Q2 — the threshold itself is not
// part of the scoring formula).
func BelowThreshold(score, threshold float64) bool {
	if threshold <= 0 {
		threshold = belowThresholdDefault
	}
	return score < threshold
}

// MeanScore returns the arithmetic mean of rows' QualityScore, or 0 for an
// empty batch.
func MeanScore(rows []store.DailyQuote) float64 {
	if len(rows) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rows {
		sum += r.QualityScore
	}
	return sum / float64(len(rows))
}
