package scheduler

import (
	"context"
	"time"

	"github.com/aristath/quoteflow/internal/gaps"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/aristath/quoteflow/internal/pipeline"
	"github.com/rs/zerolog"
)

// HistoricalDownloadJob runs a full-history PipelineOrchestrator pass over
// a fixed set of exchanges, calendar-forced, never resuming (§6 `data_config`
// job `historical_download`).
type HistoricalDownloadJob struct {
	orch       *pipeline.Orchestrator
	exchanges  []instrument.Exchange
	yearsBack  int
	quality    float64
	log        zerolog.Logger
}

func NewHistoricalDownloadJob(orch *pipeline.Orchestrator, exchanges []instrument.Exchange, yearsBack int, qualityThreshold float64, log zerolog.Logger) *HistoricalDownloadJob {
	return &HistoricalDownloadJob{orch: orch, exchanges: exchanges, yearsBack: yearsBack, quality: qualityThreshold, log: log.With().Str("job", "historical_download").Logger()}
}

func (j *HistoricalDownloadJob) Name() string { return "historical_download" }

func (j *HistoricalDownloadJob) Run(ctx context.Context) error {
	to := time.Now().UTC()
	from := to.AddDate(-j.yearsBack, 0, 0)
	res, err := j.orch.Run(ctx, pipeline.Spec{
		Exchanges:           j.exchanges,
		WindowFrom:          from,
		WindowTo:            to,
		QualityThreshold:    j.quality,
		ForceUpdateCalendar: true,
	})
	if err != nil {
		return err
	}
	j.log.Info().Int("processed", res.Processed).Int("successful", res.Successful).Int("failed", res.Failed).Msg("historical download complete")
	return nil
}

// DailyUpdateJob runs an incremental PipelineOrchestrator pass over a
// short trailing window, resuming if a prior run was interrupted (§6
// job `daily_update`).
type DailyUpdateJob struct {
	orch            *pipeline.Orchestrator
	exchanges       []instrument.Exchange
	lookbackDays    int
	quality         float64
	log             zerolog.Logger
}

func NewDailyUpdateJob(orch *pipeline.Orchestrator, exchanges []instrument.Exchange, lookbackDays int, qualityThreshold float64, log zerolog.Logger) *DailyUpdateJob {
	return &DailyUpdateJob{orch: orch, exchanges: exchanges, lookbackDays: lookbackDays, quality: qualityThreshold, log: log.With().Str("job", "daily_update").Logger()}
}

func (j *DailyUpdateJob) Name() string { return "daily_update" }

func (j *DailyUpdateJob) Run(ctx context.Context) error {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -j.lookbackDays)
	res, err := j.orch.Run(ctx, pipeline.Spec{
		Exchanges:        j.exchanges,
		WindowFrom:       from,
		WindowTo:         to,
		QualityThreshold: j.quality,
		Resume:           true,
	})
	if err != nil {
		return err
	}
	j.log.Info().Int("processed", res.Processed).Int("gaps_found", len(res.Gaps)).Msg("daily update complete")
	return nil
}

// GapFillJob detects and repairs gaps across a fixed lookback window
// (§4.7, §6 job `gap_fill`).
type GapFillJob struct {
	engine         *gaps.Engine
	exchanges      []instrument.Exchange
	lookbackDays   int
	filter         gaps.Filter
	fetchAndUpsert func(ctx context.Context, g gaps.Gap) error
	log            zerolog.Logger
}

func NewGapFillJob(engine *gaps.Engine, exchanges []instrument.Exchange, lookbackDays int, filter gaps.Filter, fetchAndUpsert func(ctx context.Context, g gaps.Gap) error, log zerolog.Logger) *GapFillJob {
	return &GapFillJob{engine: engine, exchanges: exchanges, lookbackDays: lookbackDays, filter: filter, fetchAndUpsert: fetchAndUpsert, log: log.With().Str("job", "gap_fill").Logger()}
}

func (j *GapFillJob) Name() string { return "gap_fill" }

func (j *GapFillJob) Run(ctx context.Context) error {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -j.lookbackDays)
	found, err := j.engine.Detect(j.exchanges, from, to)
	if err != nil {
		return err
	}
	res := j.engine.Fill(ctx, found, j.filter, j.fetchAndUpsert)
	j.log.Info().Int("found", res.Found).Int("filled", res.Filled).Int("failed", res.Failed).Msg("gap fill complete")
	return nil
}
