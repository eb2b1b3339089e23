package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/quoteflow/internal/calendar"
	"github.com/aristath/quoteflow/internal/gaps"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/aristath/quoteflow/internal/pipeline"
	"github.com/aristath/quoteflow/internal/query"
	"github.com/aristath/quoteflow/internal/store"
)

// fetchAndUpsertGap repairs one detected gap by refetching its window from
// the provider router and upserting the bars unscored. The pipeline
// rescores those rows only when it refetches a chunk that contains them;
// it skips chunks whose trading days are all stored.
func (s *Server) fetchAndUpsertGap(ctx context.Context, g gaps.Gap) error {
	id := instrument.ID{Symbol: g.Symbol, Exchange: g.Exchange}
	bars, err := s.router.FetchDaily(ctx, id, g.First, g.Last)
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
	_, err = s.store.UpsertQuotes(quotes)
	return err
}

func parsePage(r *http.Request) store.Page {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 {
		limit = 100
	}
	return store.Page{Limit: limit, Offset: offset}
}

func parseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// GET /api/v1/instruments
func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.InstrumentFilter{
		Exchange:   q.Get("exchange"),
		Type:       q.Get("type"),
		Industry:   q.Get("industry"),
		Sector:     q.Get("sector"),
		Market:     q.Get("market"),
		Status:     q.Get("status"),
		ActiveOnly: q.Get("active_only") == "true",
	}
	req := query.InstrumentsRequest{
		Filter: filter,
		Sort:   query.SortField(q.Get("sort")),
		Desc:   q.Get("desc") == "true",
		Page:   parsePage(r),
	}
	rows, err := s.query.GetInstruments(req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"instruments": rows, "count": len(rows)})
}

// GET /api/v1/instruments/{id}
func (s *Server) handleGetInstrumentByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	inst, err := s.store.GetInstrumentByIDorSymbol(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if inst == nil {
		s.writeError(w, http.StatusNotFound, errNotFound("instrument"))
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// GET /api/v1/instruments/symbol/{symbol}
func (s *Server) handleGetInstrumentBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	inst, err := s.store.GetInstrumentByIDorSymbol(symbol)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if inst == nil {
		s.writeError(w, http.StatusNotFound, errNotFound("instrument"))
		return
	}
	s.writeJSON(w, http.StatusOK, inst)
}

// GET /api/v1/quotes/daily
func (s *Server) handleGetDailyQuotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	instrumentID := q.Get("instrument_id")
	if instrumentID == "" {
		s.writeError(w, http.StatusBadRequest, errBadRequest("instrument_id is required"))
		return
	}
	from, _ := parseDate(q.Get("from"))
	to, _ := parseDate(q.Get("to"))
	if to.IsZero() {
		to = time.Now().UTC()
	}

	req := query.QuotesRequest{
		Filter: store.QuoteFilter{
			InstrumentID:     instrumentID,
			From:             from,
			To:               to,
			IncludeSuspended: q.Get("include_suspended") == "true",
		},
		Page:           parsePage(r),
		Format:         query.Format(q.Get("format")),
		TargetCurrency: q.Get("currency"),
		SourceCurrency: q.Get("source_currency"),
		WithStats:      q.Get("with_stats") == "true",
		WithQuality:    q.Get("with_quality") == "true",
	}
	if req.Format == "" {
		req.Format = query.FormatRows
	}

	resp, err := s.query.GetQuotes(req)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	if req.Format == query.FormatCSV {
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(resp.CSV))
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/quotes/latest
func (s *Server) handleGetLatestQuotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ids := strings.Split(q.Get("instrument_ids"), ",")
	lookback, _ := strconv.Atoi(q.Get("lookback_days"))

	rows, err := s.query.GetLatestQuotes(ids, lookback)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"quotes": rows})
}

// POST /api/v1/data/download/historical
func (s *Server) handleTriggerHistoricalDownload(w http.ResponseWriter, r *http.Request) {
	s.runPipelineAsync(r, pipeline.Spec{
		Exchanges:           exchangesFromQuery(r),
		WindowFrom:          time.Now().AddDate(-5, 0, 0),
		WindowTo:            time.Now(),
		ForceUpdateCalendar: true,
	})
	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "started"})
}

// POST /api/v1/data/update
func (s *Server) handleTriggerDailyUpdate(w http.ResponseWriter, r *http.Request) {
	s.runPipelineAsync(r, pipeline.Spec{
		Exchanges:  exchangesFromQuery(r),
		WindowFrom: time.Now().AddDate(0, 0, -7),
		WindowTo:   time.Now(),
		Resume:     true,
	})
	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "started"})
}

func exchangesFromQuery(r *http.Request) []instrument.Exchange {
	raw := r.URL.Query().Get("exchanges")
	if raw == "" {
		return []instrument.Exchange{instrument.SSE, instrument.SZSE, instrument.BSE, instrument.HKEX, instrument.NASDAQ, instrument.NYSE}
	}
	var out []instrument.Exchange
	for _, ex := range strings.Split(raw, ",") {
		out = append(out, instrument.Exchange(strings.TrimSpace(ex)))
	}
	return out
}

// runPipelineAsync starts spec in a goroutine, refusing to start a
// second run while one is already in flight (mirrors the scheduler's
// MaxInstances=1 rule for the manually-triggered path).
func (s *Server) runPipelineAsync(r *http.Request, spec pipeline.Spec) {
	select {
	case s.jobsMu <- struct{}{}:
	default:
		return // already running; progress endpoint reports the in-flight run
	}
	s.lastProgress = downloadProgress{Running: true, StartedAt: time.Now()}

	go func() {
		defer func() { <-s.jobsMu }()
		ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
		defer cancel()
		_, err := s.pipeline.Run(ctx, spec)
		if err != nil {
			s.lastProgress = downloadProgress{Running: false, StartedAt: s.lastProgress.StartedAt, Error: err.Error()}
			return
		}
		s.lastProgress = downloadProgress{Running: false, StartedAt: s.lastProgress.StartedAt}
	}()
}

// GET /api/v1/data/download/progress
func (s *Server) handleDownloadProgress(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.lastProgress)
}

// POST /api/v1/data/validate
func (s *Server) handleValidateData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.SnapshotStats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// GET /api/v1/gaps
func (s *Server) handleListGaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, _ := parseDate(q.Get("from"))
	to, _ := parseDate(q.Get("to"))
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -90)
	}
	found, err := s.gapEngine.Detect(exchangesFromQuery(r), from, to)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"gaps": found, "count": len(found)})
}

// POST /api/v1/gaps/fill
func (s *Server) handleFillGaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, _ := parseDate(q.Get("from"))
	to, _ := parseDate(q.Get("to"))
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -90)
	}
	found, err := s.gapEngine.Detect(exchangesFromQuery(r), from, to)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	res := s.gapEngine.Fill(r.Context(), found, gaps.Filter{DryRun: q.Get("dry_run") == "true"}, s.fetchAndUpsertGap)
	s.writeJSON(w, http.StatusOK, res)
}

// GET /api/v1/gaps/report
func (s *Server) handleGapsReport(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -90)
	found, err := s.gapEngine.Detect(exchangesFromQuery(r), from, to)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	bySeverity := map[gaps.Severity]int{}
	for _, g := range found {
		bySeverity[g.Severity]++
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_gaps":  len(found),
		"by_severity": bySeverity,
		"gaps":        found,
	})
}

// GET /api/v1/calendar/trading
func (s *Server) handleTradingDays(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ex := instrument.Exchange(q.Get("exchange"))
	from, ok1 := parseDate(q.Get("from"))
	to, ok2 := parseDate(q.Get("to"))
	if !ok1 || !ok2 {
		s.writeError(w, http.StatusBadRequest, errBadRequest("from and to are required (YYYY-MM-DD)"))
		return
	}
	days, err := calendar.TradingDaysIn(s.cal, ex, from, to)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"trading_days": days})
}

// GET /api/v1/calendar/trading/next
func (s *Server) handleNextTradingDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ex := instrument.Exchange(q.Get("exchange"))
	d, ok := parseDate(q.Get("date"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, errBadRequest("date is required (YYYY-MM-DD)"))
		return
	}
	next, err := calendar.NextTradingDay(s.cal, ex, d, 30)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"next_trading_day": next.Format("2006-01-02")})
}

// GET /api/v1/calendar/trading/previous
func (s *Server) handlePreviousTradingDay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ex := instrument.Exchange(q.Get("exchange"))
	d, ok := parseDate(q.Get("date"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, errBadRequest("date is required (YYYY-MM-DD)"))
		return
	}
	prev, err := calendar.PreviousTradingDay(s.cal, ex, d, 30)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"previous_trading_day": prev.Format("2006-01-02")})
}

// GET /api/v1/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.SnapshotStats()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// GET /api/v1/system/status
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"dev_mode": s.cfg.DevMode,
		"log_level": s.cfg.LogLevel,
	}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		status["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		status["memory_used_percent"] = vm.UsedPercent
	}
	snap, err := s.store.SnapshotStats()
	if err == nil {
		status["instrument_counts"] = snap.CountsByExchange
		status["quality"] = snap.QualitySummary
	}
	s.writeJSON(w, http.StatusOK, status)
}
