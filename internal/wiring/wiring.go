// Package wiring constructs the full component graph — Store, calendar,
// provider router, quality-scored pipeline, gap engine, query façade,
// backup service, and scheduler — from a loaded Config, standing in for
// the deleted reflection/container-based internal/di package with a
// plain constructor function and a handful of narrow adapter types.
package wiring

import (
	"context"
	"time"

	"github.com/aristath/quoteflow/internal/backup"
	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/config"
	"github.com/aristath/quoteflow/internal/events"
	"github.com/aristath/quoteflow/internal/gaps"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/aristath/quoteflow/internal/journal"
	"github.com/aristath/quoteflow/internal/pipeline"
	"github.com/aristath/quoteflow/internal/provider"
	"github.com/aristath/quoteflow/internal/query"
	"github.com/aristath/quoteflow/internal/scheduler"
	"github.com/aristath/quoteflow/internal/store"
	"github.com/rs/zerolog"
)

// storeCalendarAdapter narrows *store.Store to calendar.Source.
type storeCalendarAdapter struct{ s *store.Store }

func (a storeCalendarAdapter) CalendarWindow(ex instrument.Exchange, from, to time.Time) (map[string]calendar.Entry, error) {
	rows, err := a.s.CalendarWindow(string(ex), from, to)
	if err != nil {
		return nil, err
	}
	out := make(map[string]calendar.Entry, len(rows))
	for date, row := range rows {
		out[date] = calendar.Entry{
			Exchange:     instrument.Exchange(row.Exchange),
			Date:         row.Date,
			IsTradingDay: row.IsTradingDay,
			Reason:       row.Reason,
			SessionType:  row.SessionType,
			Source:       row.Source,
		}
	}
	return out, nil
}

// storeGapAdapter narrows *store.Store to gaps.Store.
type storeGapAdapter struct{ s *store.Store }

func (a storeGapAdapter) ActiveInstruments(ex instrument.Exchange) ([]gaps.InstrumentInfo, error) {
	rows, err := a.s.GetInstrumentsByExchange(string(ex), store.InstrumentFilter{ActiveOnly: true}, store.Page{})
	if err != nil {
		return nil, err
	}
	out := make([]gaps.InstrumentInfo, 0, len(rows))
	for _, r := range rows {
		out = append(out, gaps.InstrumentInfo{
			ID:           instrument.ID{Symbol: r.Symbol, Exchange: instrument.Exchange(r.Exchange)},
			Symbol:       r.Symbol,
			Exchange:     instrument.Exchange(r.Exchange),
			ListedDate:   r.ListedDate,
			DelistedDate: r.DelistedDate,
		})
	}
	return out, nil
}

func (a storeGapAdapter) ExistingQuoteDates(instrumentID string, from, to time.Time) (map[string]bool, error) {
	return a.s.GetExistingQuoteDates(instrumentID, from, to)
}

// storeInstrumentCacheAdapter narrows *store.Store to provider.InstrumentCache.
type storeInstrumentCacheAdapter struct{ s *store.Store }

func (a storeInstrumentCacheAdapter) CountAndFreshness(ex instrument.Exchange) (int, time.Time, error) {
	return a.s.CountAndFreshness(string(ex))
}

// storeCalendarStoreAdapter narrows *store.Store to provider.CalendarStore.
type storeCalendarStoreAdapter struct{ s *store.Store }

func (a storeCalendarStoreAdapter) UpsertCalendarDays(ex instrument.Exchange, days []provider.RawCalendarDay) error {
	batch := make([]store.CalendarRow, 0, len(days))
	for _, d := range days {
		batch = append(batch, store.CalendarRow{
			Exchange:     string(ex),
			Date:         d.Date,
			IsTradingDay: d.IsTradingDay,
			Source:       "provider",
		})
	}
	return a.s.UpsertCalendar(batch)
}

// Container holds every long-lived component wired together, ready for
// cmd/server/main.go to start the HTTP server and scheduler against.
type Container struct {
	Config    *config.Config
	Store     *store.Store
	Router    *provider.Router
	Calendar  calendar.Source
	GapEngine *gaps.Engine
	Journal   *journal.Journal
	Pipeline  *pipeline.Orchestrator
	Query     *query.Facade
	Backup    *backup.Service
	Scheduler *scheduler.Scheduler
	Events    *events.Bus
}

// Build constructs every component named in SPEC_FULL.md from cfg, in
// dependency order, and registers the scheduled jobs listed in
// cfg.Scheduler.Jobs.
func Build(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	st, err := store.New(cfg.Database.DBPath, log)
	if err != nil {
		return nil, err
	}

	cal := storeCalendarAdapter{s: st}
	cache := storeInstrumentCacheAdapter{s: st}
	calStore := storeCalendarStoreAdapter{s: st}

	router := provider.NewRouter(cache, calStore, log)
	registerAdapters(router, cfg, log)

	gapStore := storeGapAdapter{s: st}
	gapEngine := gaps.New(cal, gapStore)

	journalPath := cfg.Database.DBPath + ".journal"
	j := journal.New(journalPath)

	bus := events.NewBus()

	orchestrator := pipeline.New(st, router, st, cal, gapEngine, j, bus, log)

	var rateConverter query.RateConverter // wired by main.go when exchangerate.Client is constructed
	facade := query.New(st, rateConverter)

	backupCfg := backup.Config{
		SourceDBPath:    cfg.Backup.SourceDBPath,
		BackupDirectory: cfg.Backup.BackupDirectory,
		RetentionDays:   cfg.Backup.RetentionDays,
		FilenamePattern: cfg.Backup.FilenamePattern,
		MaxBackupFiles:  cfg.Backup.MaxBackupFiles,
	}
	var uploader backup.Uploader
	if cfg.Backup.RemoteBucket != "" {
		s3, err := backup.NewS3Uploader(context.Background(), cfg.Backup.RemoteEndpoint, cfg.Backup.RemoteRegion, cfg.Backup.RemoteAccessKey, cfg.Backup.RemoteSecretKey, cfg.Backup.RemoteBucket)
		if err != nil {
			return nil, err
		}
		uploader = s3
	}
	backupSvc := backup.New(st, uploader, backupCfg, log)

	sched := scheduler.New(cfg.Data.DataDir, log)
	if err := registerJobs(sched, cfg, st, orchestrator, gapEngine, router, backupSvc, log); err != nil {
		return nil, err
	}

	return &Container{
		Config:    cfg,
		Store:     st,
		Router:    router,
		Calendar:  cal,
		GapEngine: gapEngine,
		Journal:   j,
		Pipeline:  orchestrator,
		Query:     facade,
		Backup:    backupSvc,
		Scheduler: sched,
		Events:    bus,
	}, nil
}

// registerAdapters wires one ProviderAdapter per configured data source,
// per SPEC_FULL.md's DOMAIN STACK provider roster (akshare/baostock/
// tushare/yfinance), registering each as primary or backup for every
// exchange it names in PrimarySourceOf/ExchangesSupported.
func registerAdapters(router *provider.Router, cfg *config.Config, log zerolog.Logger) {
	for name, pc := range cfg.DataSources {
		if !pc.Enabled {
			continue
		}
		rlCfg := provider.RateLimitConfig{
			PerMinute: pc.MaxRequestsPerMinute,
			PerHour:   pc.MaxRequestsPerHour,
			PerDay:    pc.MaxRequestsPerDay,
		}

		var adapter provider.Adapter
		switch name {
		case "akshare":
			adapter = provider.NewAkShareAdapter("", rlCfg, log)
		case "baostock":
			adapter = provider.NewBaostockAdapter("", rlCfg, log)
		case "tushare":
			adapter = provider.NewTushareAdapter("", rlCfg, log)
		case "yfinance":
			adapter = provider.NewYFinanceAdapter(rlCfg, log)
		default:
			continue
		}

		primarySet := make(map[string]bool, len(pc.PrimarySourceOf))
		for _, ex := range pc.PrimarySourceOf {
			primarySet[ex] = true
		}
		for _, ex := range pc.ExchangesSupported {
			exchange := instrument.Exchange(ex)
			if primarySet[ex] {
				router.RegisterPrimary(exchange, adapter)
			} else {
				router.RegisterBackup(exchange, adapter)
			}
		}
	}
}

// registerJobs registers the scheduled jobs named in cfg.Scheduler.Jobs
// against sched, skipping any id the config doesn't mention.
func registerJobs(sched *scheduler.Scheduler, cfg *config.Config, st *store.Store, orch *pipeline.Orchestrator, gapEngine *gaps.Engine, router *provider.Router, backupSvc *backup.Service, log zerolog.Logger) error {
	exchanges := allConfiguredExchanges(cfg)

	const (
		historicalYearsBack = 5
		dailyLookbackDays   = 7
		gapLookbackDays     = 90
		qualityThreshold    = 0.7 // Q2 decision: fixed here; config has no threshold setting
	)

	jobs := map[string]scheduler.Job{
		"integrity_check":     scheduler.NewIntegrityCheckJob(st, log),
		"wal_checkpoint":      scheduler.NewWALCheckpointJob(st, log),
		"historical_download": scheduler.NewHistoricalDownloadJob(orch, exchanges, historicalYearsBack, qualityThreshold, log),
		"daily_update":        scheduler.NewDailyUpdateJob(orch, exchanges, dailyLookbackDays, qualityThreshold, log),
		"gap_fill":            scheduler.NewGapFillJob(gapEngine, exchanges, gapLookbackDays, gaps.Filter{}, fetchAndUpsert(st, router), log),
	}
	if cfg.Database.BackupEnabled {
		jobs["backup"] = backup.NewJob(backupSvc)
	}

	for id, spec := range cfg.Scheduler.Jobs {
		job, ok := jobs[id]
		if !ok {
			continue
		}
		jobSpec := scheduler.JobSpec{
			Enabled:          spec.Enabled,
			Trigger:          spec.Trigger,
			MaxInstances:     spec.MaxInstances,
			MisfireGraceTime: spec.MisfireGraceTime,
			Coalesce:         spec.Coalesce,
			Report:           spec.Report,
		}
		if err := sched.Register(job, jobSpec); err != nil {
			return err
		}
	}
	return nil
}

func allConfiguredExchanges(cfg *config.Config) []instrument.Exchange {
	seen := make(map[instrument.Exchange]bool)
	var out []instrument.Exchange
	for _, pc := range cfg.DataSources {
		for _, ex := range pc.ExchangesSupported {
			e := instrument.Exchange(ex)
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// fetchAndUpsert adapts a raw provider fetch into the callback GapFillJob
// needs to repair one gap: fetch the missing window from the router and
// upsert it into Store, unscored. The pipeline rescores those rows only
// when it refetches a chunk that contains them; it skips chunks whose
// trading days are all stored.
func fetchAndUpsert(st *store.Store, router *provider.Router) func(ctx context.Context, g gaps.Gap) error {
	return func(ctx context.Context, g gaps.Gap) error {
		id := instrument.ID{Symbol: g.Symbol, Exchange: g.Exchange}
		bars, err := router.FetchDaily(ctx, id, g.First, g.Last)
		if err != nil {
			return err
		}
		if len(bars) == 0 {
			return nil
		}
		quotes := make([]store.DailyQuote, 0, len(bars))
		for _, b := range bars {
			quotes = append(quotes, store.DailyQuote{
				InstrumentID: g.InstrumentID,
				Time:         b.Time,
				Open:         b.Open,
				High:         b.High,
				Low:          b.Low,
				Close:        b.Close,
				Volume:       b.Volume,
				Amount:       b.Amount,
				Source:       "gap_fill",
				IsComplete:   true,
			})
		}
		_, err = st.UpsertQuotes(quotes)
		return err
	}
}
