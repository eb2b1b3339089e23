// Package pipeline implements PipelineOrchestrator (§4.6): runs a batch
// from specification to durable completion, with resume, bounded
// per-exchange concurrency, and a post-download gap analysis pass.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/gaps"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/aristath/quoteflow/internal/journal"
	"github.com/aristath/quoteflow/internal/planner"
	"github.com/aristath/quoteflow/internal/provider"
	"github.com/aristath/quoteflow/internal/quality"
	"github.com/aristath/quoteflow/internal/store"
	"github.com/aristath/quoteflow/internal/work"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultBatchSize          = 50
	defaultWorkersPerExchange = 3
	interChunkDelay           = 500 * time.Millisecond
	interBatchDelay           = 2 * time.Second
)

// Spec is the run specification (§4.6).
type Spec struct {
	Exchanges           []instrument.Exchange
	WindowFrom          time.Time
	WindowTo            time.Time
	QualityThreshold    float64
	Resume              bool
	ForceUpdateCalendar bool
	BatchSize           int
	ChunkDays           int
	Workers             int
}

// InstrumentSource lists active instruments for one exchange.
type InstrumentSource interface {
	GetInstrumentsByExchange(exchange string, f store.InstrumentFilter, page store.Page) ([]store.Instrument, error)
}

// QuoteSink persists a scored batch atomically and reports which dates
// already have a stored quote for an instrument, so a resumed run can
// skip chunks a prior, interrupted run already fetched and wrote.
type QuoteSink interface {
	UpsertQuotes(batch []store.DailyQuote) (int, error)
	GetExistingQuoteDates(instrumentID string, from, to time.Time) (map[string]bool, error)
}

// Router is the subset of ProviderRouter the orchestrator drives.
type Router interface {
	FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]provider.RawBar, error)
	UpdateTradingCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) error
}

// Result is the terminal outcome of a Run call.
type Result struct {
	BatchID       string
	Total         int
	Processed     int
	Successful    int
	Failed        int
	TotalQuotes   int
	QualityIssues int
	Gaps          []gaps.Gap
}

// Orchestrator wires DownloadPlanner, ProviderRouter, QualityStage, Store,
// ProgressJournal, and GapEngine into one run.
type Orchestrator struct {
	instruments InstrumentSource
	router      Router
	sink        QuoteSink
	cal         calendar.Source
	quality     *quality.Stage
	gapEngine   *gaps.Engine
	journal     *journal.Journal
	log         zerolog.Logger
	emitter     work.EventEmitter
}

// New builds an Orchestrator. emitter may be nil (no progress events).
func New(instruments InstrumentSource, router Router, sink QuoteSink, cal calendar.Source, gapEngine *gaps.Engine, j *journal.Journal, emitter work.EventEmitter, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		instruments: instruments,
		router:      router,
		sink:        sink,
		cal:         cal,
		quality:     quality.New(log),
		gapEngine:   gapEngine,
		journal:     j,
		log:         log.With().Str("component", "pipeline_orchestrator").Logger(),
		emitter:     emitter,
	}
}

// instrumentWork is one instrument's fetch-score accumulation within a
// batch, produced concurrently by processBatch's workers.
type instrumentWork struct {
	rows   []store.DailyQuote
	issues int
	failed bool
}

// Run executes spec to completion or cancellation (§4.6).
func (o *Orchestrator) Run(ctx context.Context, spec Spec) (Result, error) {
	batchSize := spec.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	workers := spec.Workers
	if workers <= 0 {
		workers = defaultWorkersPerExchange
	}

	snap, existed, err := o.journal.Load()
	if err != nil {
		return Result{}, err
	}

	var batchID string
	if spec.Resume && journal.Resumable(snap, existed) {
		batchID = snap.BatchID
		o.log.Info().Str("batch_id", batchID).Msg("resuming existing batch")
	} else {
		batchID = uuid.NewString()
		snap = journal.ProgressSnapshot{BatchID: batchID, StartedAt: time.Now().UTC()}
	}

	if spec.ForceUpdateCalendar {
		for _, ex := range spec.Exchanges {
			if err := o.router.UpdateTradingCalendar(ctx, ex, spec.WindowFrom, spec.WindowTo); err != nil {
				o.log.Warn().Err(err).Str("exchange", string(ex)).Msg("calendar refresh failed, continuing")
			}
		}
	}

	// Counters are re-derived from scratch on every call, resumed or not:
	// the rows a prior interrupted run already wrote are already durable
	// in Store, and processInstrument skips re-fetching any chunk whose
	// trading days are already present there, so a fresh tally here never
	// double-counts work the earlier call already finished.
	snap.Total, snap.Processed, snap.Successful, snap.Failed = 0, 0, 0, 0
	snap.TotalQuotes, snap.QualityIssues = 0, 0

	reporter := work.NewProgressReporter(o.emitter, batchID, "historical_download", "")
	p := planner.New(o.cal, spec.ChunkDays)

	for _, ex := range spec.Exchanges {
		instruments, err := o.instruments.GetInstrumentsByExchange(string(ex), store.InstrumentFilter{ActiveOnly: true}, store.Page{})
		if err != nil {
			return Result{}, fmt.Errorf("pipeline: load instruments for %s: %w", ex, err)
		}
		snap.Total += len(instruments)

		for start := 0; start < len(instruments); start += batchSize {
			end := start + batchSize
			if end > len(instruments) {
				end = len(instruments)
			}
			batch := instruments[start:end]

			rows, successful, issues := o.processBatch(ctx, ex, batch, p, batchID, workers, spec.WindowFrom, spec.WindowTo)

			n, err := o.sink.UpsertQuotes(rows)
			if err != nil {
				snap.Failed += len(batch) - successful
				snap.AddError(fmt.Sprintf("exchange %s batch upsert: %v", ex, err))
			} else {
				snap.Successful += successful
				snap.Failed += len(batch) - successful
				snap.TotalQuotes += n
				if quality.BelowThreshold(quality.MeanScore(rows), spec.QualityThreshold) {
					snap.QualityIssues += issues
				}
			}
			snap.Processed += len(batch)
			snap.CurrentExchange = string(ex)
			snap.UpdatedAt = time.Now().UTC()

			if err := o.journal.Save(snap); err != nil {
				o.log.Error().Err(err).Msg("failed to persist progress snapshot")
			}
			reporter.Report(snap.Processed, snap.Total, fmt.Sprintf("processed batch in %s", ex))

			select {
			case <-ctx.Done():
				return resultFromSnapshot(snap), ctx.Err()
			case <-time.After(interBatchDelay):
			}
		}
	}

	snap.Done = true
	if err := o.journal.Save(snap); err != nil {
		o.log.Error().Err(err).Msg("failed to persist final progress snapshot")
	}

	var gapList []gaps.Gap
	if o.gapEngine != nil {
		gapList, err = o.gapEngine.Detect(spec.Exchanges, spec.WindowFrom, spec.WindowTo)
		if err != nil {
			o.log.Warn().Err(err).Msg("post-download gap detection failed")
		}
	}

	res := resultFromSnapshot(snap)
	res.Gaps = gapList
	return res, nil
}

// processBatch plans, fetches, and scores every instrument in batch with
// bounded concurrency, returning the accumulated rows for one atomic
// Store.upsertQuotes call (§4.6 step 5).
func (o *Orchestrator) processBatch(ctx context.Context, ex instrument.Exchange, batch []store.Instrument, p *planner.Planner, batchID string, workers int, from, to time.Time) ([]store.DailyQuote, int, int) {
	results := make([]instrumentWork, len(batch))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, inst := range batch {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, inst store.Instrument) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = o.processInstrument(ctx, ex, inst, p, batchID, from, to)
		}(i, inst)
	}
	wg.Wait()

	var rows []store.DailyQuote
	successful := 0
	issues := 0
	for _, r := range results {
		if r.failed {
			continue
		}
		successful++
		rows = append(rows, r.rows...)
		issues += r.issues
	}
	return rows, successful, issues
}

func (o *Orchestrator) processInstrument(ctx context.Context, ex instrument.Exchange, inst store.Instrument, p *planner.Planner, batchID string, from, to time.Time) instrumentWork {
	id := instrument.ID{Symbol: inst.Symbol, Exchange: ex}

	wi, err := p.Plan(id, from, to, inst.ListedDate, inst.DelistedDate)
	if err != nil {
		o.log.Warn().Err(err).Str("instrument", id.String()).Msg("planning failed")
		return instrumentWork{failed: true}
	}
	if len(wi.Chunks) == 0 {
		return instrumentWork{}
	}

	existing, err := o.sink.GetExistingQuoteDates(id.String(), from, to)
	if err != nil {
		o.log.Warn().Err(err).Str("instrument", id.String()).Msg("loading existing quote dates failed, fetching full window")
		existing = nil
	}

	var rows []store.DailyQuote
	issues := 0
	for i, chunk := range wi.Chunks {
		if chunkAlreadyStored(chunk, existing) {
			continue
		}

		bars, err := o.router.FetchDaily(ctx, id, chunk.First, chunk.Last)
		if err != nil {
			o.log.Warn().Err(err).Str("instrument", id.String()).Msg("fetch failed for chunk")
			return instrumentWork{rows: rows, issues: issues, failed: true}
		}

		tradingDays := make(map[string]bool, len(chunk.TradingDays))
		for _, d := range chunk.TradingDays {
			tradingDays[d.Format("2006-01-02")] = true
		}

		result := o.quality.Score(bars, id.String(), batchID, "provider_router", tradingDays)
		rows = append(rows, result.Rows...)
		issues += result.QualityIssues

		if i < len(wi.Chunks)-1 {
			select {
			case <-ctx.Done():
				return instrumentWork{rows: rows, issues: issues, failed: true}
			case <-time.After(interChunkDelay):
			}
		}
	}
	return instrumentWork{rows: rows, issues: issues}
}

// chunkAlreadyStored reports whether every trading day in chunk already
// has a stored quote, per existing (nil means "unknown, don't skip").
func chunkAlreadyStored(chunk planner.Chunk, existing map[string]bool) bool {
	if existing == nil {
		return false
	}
	for _, d := range chunk.TradingDays {
		if !existing[d.Format("2006-01-02")] {
			return false
		}
	}
	return true
}

func resultFromSnapshot(snap journal.ProgressSnapshot) Result {
	return Result{
		BatchID:       snap.BatchID,
		Total:         snap.Total,
		Processed:     snap.Processed,
		Successful:    snap.Successful,
		Failed:        snap.Failed,
		TotalQuotes:   snap.TotalQuotes,
		QualityIssues: snap.QualityIssues,
	}
}
