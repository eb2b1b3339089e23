package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/quoteflow/internal/database"
	"github.com/aristath/quoteflow/internal/errkind"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// Store is a transactional row store over instruments, daily quotes, the
// trading calendar, and batch audit records, grounded on
// internal/database's connection/migration scaffolding and on the
// upsert/aggregate SQL shape of the teacher's history_db.go.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// New opens (and migrates) the quote store at path.
func New(path string, log zerolog.Logger) (*Store, error) {
	db, err := database.New(database.Config{Path: path, Profile: database.ProfileStandard, Name: "quotes"})
	if err != nil {
		return nil, errkind.New(errkind.StoreFatal, "store.New", err)
	}
	if err := db.Migrate(); err != nil {
		return nil, errkind.New(errkind.StoreFatal, "store.New", err)
	}
	return &Store{db: db, log: log.With().Str("component", "store").Logger()}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw connection for components (e.g. backup) that need
// file-level access rather than row-level access.
func (s *Store) DB() *database.DB { return s.db }

// UpsertInstruments inserts or updates a batch of instruments, returning
// the count written. data_version increments on every upsert that hits an
// existing row, whether or not any column changed (§3 Ownership and
// lifecycle).
func (s *Store) UpsertInstruments(batch []Instrument) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO instruments
				(instrument_id, symbol, exchange, name, type, currency,
				 listed_date, delisted_date, issue_date, industry, sector, market,
				 status, is_active, is_st, trading_status, source, source_symbol,
				 data_version, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1,?,?)
			ON CONFLICT(instrument_id) DO UPDATE SET
				symbol=excluded.symbol, exchange=excluded.exchange, name=excluded.name,
				type=excluded.type, currency=excluded.currency,
				listed_date=excluded.listed_date, delisted_date=excluded.delisted_date,
				issue_date=excluded.issue_date, industry=excluded.industry,
				sector=excluded.sector, market=excluded.market, status=excluded.status,
				is_active=excluded.is_active, is_st=excluded.is_st,
				trading_status=excluded.trading_status, source=excluded.source,
				source_symbol=excluded.source_symbol,
				data_version=instruments.data_version + 1,
				updated_at=excluded.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, in := range batch {
			_, err := stmt.Exec(
				in.InstrumentID, in.Symbol, in.Exchange, in.Name, in.Type, in.Currency,
				dateOrNil(in.ListedDate), dateOrNil(in.DelistedDate), dateOrNil(in.IssueDate),
				in.Industry, in.Sector, in.Market, in.Status, boolToInt(in.IsActive),
				boolToInt(in.IsST), in.TradingStatus, in.Source, in.SourceSymbol, now, now,
			)
			if err != nil {
				return fmt.Errorf("upsert instrument %s: %w", in.InstrumentID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, errkind.New(errkind.StoreTransient, "store.UpsertInstruments", err)
	}
	return len(batch), nil
}

// UpsertQuotes idempotently upserts a batch of daily quotes keyed by
// (time, instrument_id). All rows become visible atomically (§5 Ordering
// guarantees).
func (s *Store) UpsertQuotes(batch []DailyQuote) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	now := time.Now().Unix()
	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO daily_quotes
				(instrument_id, time, open, high, low, close, pre_close, change,
				 pct_change, volume, amount, turnover, tradestatus, factor,
				 adjustment_type, is_complete, quality_score, source, batch_id,
				 created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(instrument_id, time) DO UPDATE SET
				open=excluded.open, high=excluded.high, low=excluded.low,
				close=excluded.close, pre_close=excluded.pre_close,
				change=excluded.change, pct_change=excluded.pct_change,
				volume=excluded.volume, amount=excluded.amount,
				turnover=excluded.turnover, tradestatus=excluded.tradestatus,
				factor=excluded.factor, adjustment_type=excluded.adjustment_type,
				is_complete=excluded.is_complete, quality_score=excluded.quality_score,
				source=excluded.source, batch_id=excluded.batch_id,
				updated_at=excluded.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, q := range batch {
			_, err := stmt.Exec(
				q.InstrumentID, q.Time.Format(dateLayout), q.Open, q.High, q.Low, q.Close,
				q.PreClose, q.Change, q.PctChange, q.Volume, q.Amount, q.Turnover,
				q.TradeStatus, q.Factor, q.AdjustmentType, boolToInt(q.IsComplete),
				q.QualityScore, q.Source, q.BatchID, now, now,
			)
			if err != nil {
				return fmt.Errorf("upsert quote %s/%s: %w", q.InstrumentID, q.Time.Format(dateLayout), err)
			}
		}
		return s.refreshMonthly(tx, batch)
	})
	if err != nil {
		return 0, errkind.New(errkind.StoreTransient, "store.UpsertQuotes", err)
	}
	return len(batch), nil
}

// refreshMonthly recomputes the monthly rollup (supplemented feature, §C)
// for every instrument touched by batch, inside the same transaction as
// the quote upsert.
func (s *Store) refreshMonthly(tx *sql.Tx, batch []DailyQuote) error {
	seen := map[string]bool{}
	for _, q := range batch {
		if seen[q.InstrumentID] {
			continue
		}
		seen[q.InstrumentID] = true
		_, err := tx.Exec(`
			INSERT INTO monthly_prices (instrument_id, year_month, avg_close, avg_adj_close, source, created_at)
			SELECT ?, substr(time, 1, 7), AVG(close), AVG(close), 'calculated', ?
			FROM daily_quotes WHERE instrument_id = ?
			GROUP BY substr(time, 1, 7)
			ON CONFLICT(instrument_id, year_month) DO UPDATE SET
				avg_close=excluded.avg_close, avg_adj_close=excluded.avg_adj_close
		`, q.InstrumentID, time.Now().Unix(), q.InstrumentID)
		if err != nil {
			return fmt.Errorf("refresh monthly rollup for %s: %w", q.InstrumentID, err)
		}
	}
	return nil
}

// UpsertCalendar inserts or updates a batch of trading-calendar rows,
// unique per (exchange, date) (§3, P4).
func (s *Store) UpsertCalendar(batch []CalendarRow) error {
	if len(batch) == 0 {
		return nil
	}
	now := time.Now().Unix()
	err := database.WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO trading_calendar
				(exchange, date, is_trading_day, reason, session_type, source, created_at, updated_at)
			VALUES (?,?,?,?,?,?,?,?)
			ON CONFLICT(exchange, date) DO UPDATE SET
				is_trading_day=excluded.is_trading_day, reason=excluded.reason,
				session_type=excluded.session_type, source=excluded.source,
				updated_at=excluded.updated_at
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, c := range batch {
			_, err := stmt.Exec(c.Exchange, c.Date.Format(dateLayout), boolToInt(c.IsTradingDay),
				c.Reason, c.SessionType, c.Source, now, now)
			if err != nil {
				return fmt.Errorf("upsert calendar %s/%s: %w", c.Exchange, c.Date.Format(dateLayout), err)
			}
		}
		return nil
	})
	if err != nil {
		return errkind.New(errkind.StoreTransient, "store.UpsertCalendar", err)
	}
	return nil
}

// CalendarWindow returns the stored calendar rows for exchange in
// [from, to], keyed "YYYY-MM-DD". Store does not satisfy calendar.Source
// itself; CalendarSource adapts it.
func (s *Store) CalendarWindow(exchange string, from, to time.Time) (map[string]CalendarRow, error) {
	rows, err := s.db.Query(`
		SELECT exchange, date, is_trading_day, reason, session_type, source
		FROM trading_calendar WHERE exchange = ? AND date BETWEEN ? AND ?
	`, exchange, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.CalendarWindow", err)
	}
	defer rows.Close()

	out := make(map[string]CalendarRow)
	for rows.Next() {
		var c CalendarRow
		var dateStr string
		var isTrading int
		if err := rows.Scan(&c.Exchange, &dateStr, &isTrading, &c.Reason, &c.SessionType, &c.Source); err != nil {
			return nil, errkind.New(errkind.StoreTransient, "store.CalendarWindow", err)
		}
		c.Date, _ = time.Parse(dateLayout, dateStr)
		c.IsTradingDay = isTrading != 0
		out[dateStr] = c
	}
	return out, rows.Err()
}

// GetInstrumentsByExchange returns instruments for an exchange matching
// filters, sorted by symbol, paginated.
func (s *Store) GetInstrumentsByExchange(exchange string, f InstrumentFilter, page Page) ([]Instrument, error) {
	f.Exchange = exchange
	return s.queryInstruments(f, page)
}

// GetInstruments returns instruments across exchanges matching filters
// (§4.9 getInstruments).
func (s *Store) GetInstruments(f InstrumentFilter, page Page) ([]Instrument, error) {
	return s.queryInstruments(f, page)
}

func (s *Store) queryInstruments(f InstrumentFilter, page Page) ([]Instrument, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if f.Exchange != "" {
		where = append(where, "exchange = ?")
		args = append(args, f.Exchange)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Industry != "" {
		where = append(where, "industry = ?")
		args = append(args, f.Industry)
	}
	if f.Sector != "" {
		where = append(where, "sector = ?")
		args = append(args, f.Sector)
	}
	if f.Market != "" {
		where = append(where, "market = ?")
		args = append(args, f.Market)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.ActiveOnly {
		where = append(where, "is_active = 1")
	}
	if f.ListedFrom != nil {
		where = append(where, "listed_date >= ?")
		args = append(args, f.ListedFrom.Format(dateLayout))
	}
	if f.ListedTo != nil {
		where = append(where, "listed_date <= ?")
		args = append(args, f.ListedTo.Format(dateLayout))
	}

	query := fmt.Sprintf(`
		SELECT instrument_id, symbol, exchange, name, type, currency,
			listed_date, delisted_date, issue_date, industry, sector, market,
			status, is_active, is_st, trading_status, source, source_symbol,
			data_version, created_at, updated_at
		FROM instruments WHERE %s ORDER BY symbol`, strings.Join(where, " AND "))

	limit := page.Limit
	if limit <= 0 {
		limit = 500
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, page.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.queryInstruments", err)
	}
	defer rows.Close()

	var out []Instrument
	for rows.Next() {
		in, err := scanInstrument(rows)
		if err != nil {
			return nil, errkind.New(errkind.StoreTransient, "store.queryInstruments", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// GetInstrumentByIDorSymbol resolves an identifier that may be a canonical
// instrument_id or a bare symbol, following the ISIN-or-symbol heuristic
// idiom of security_repository.go: try instrument_id first, then symbol.
func (s *Store) GetInstrumentByIDorSymbol(identifier string) (*Instrument, error) {
	row := s.db.QueryRow(`
		SELECT instrument_id, symbol, exchange, name, type, currency,
			listed_date, delisted_date, issue_date, industry, sector, market,
			status, is_active, is_st, trading_status, source, source_symbol,
			data_version, created_at, updated_at
		FROM instruments WHERE instrument_id = ?`, identifier)
	in, err := scanInstrument(row)
	if err == nil {
		return &in, nil
	}
	if err != sql.ErrNoRows {
		return nil, errkind.New(errkind.StoreTransient, "store.GetInstrumentByIDorSymbol", err)
	}

	row = s.db.QueryRow(`
		SELECT instrument_id, symbol, exchange, name, type, currency,
			listed_date, delisted_date, issue_date, industry, sector, market,
			status, is_active, is_st, trading_status, source, source_symbol,
			data_version, created_at, updated_at
		FROM instruments WHERE symbol = ? LIMIT 1`, identifier)
	in, err = scanInstrument(row)
	if err == sql.ErrNoRows {
		return nil, errkind.New(errkind.NotFound, "store.GetInstrumentByIDorSymbol",
			fmt.Errorf("no instrument matches %q", identifier))
	}
	if err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.GetInstrumentByIDorSymbol", err)
	}
	return &in, nil
}

// scanner abstracts *sql.Row/*sql.Rows so scanInstrument serves both.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInstrument(row scanner) (Instrument, error) {
	var in Instrument
	var listed, delisted, issue sql.NullString
	var isActive, isST, createdAt, updatedAt int64
	err := row.Scan(
		&in.InstrumentID, &in.Symbol, &in.Exchange, &in.Name, &in.Type, &in.Currency,
		&listed, &delisted, &issue, &in.Industry, &in.Sector, &in.Market,
		&in.Status, &isActive, &isST, &in.TradingStatus, &in.Source, &in.SourceSymbol,
		&in.DataVersion, &createdAt, &updatedAt,
	)
	if err != nil {
		return Instrument{}, err
	}
	in.IsActive = isActive != 0
	in.IsST = isST != 0
	in.ListedDate = parseNullDate(listed)
	in.DelistedDate = parseNullDate(delisted)
	in.IssueDate = parseNullDate(issue)
	in.CreatedAt = time.Unix(createdAt, 0).UTC()
	in.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return in, nil
}

// GetExistingQuoteDates returns the set of dates for which instrumentID
// already has a stored quote in [from, to] (§4.2, feeds GapEngine and the
// Orchestrator's resume planning).
func (s *Store) GetExistingQuoteDates(instrumentID string, from, to time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(`
		SELECT time FROM daily_quotes WHERE instrument_id = ? AND time BETWEEN ? AND ?
	`, instrumentID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.GetExistingQuoteDates", err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errkind.New(errkind.StoreTransient, "store.GetExistingQuoteDates", err)
		}
		out[d] = true
	}
	return out, rows.Err()
}

// GetQuotes returns daily quotes matching f, ordered by time ascending,
// bounded by page (§4.2, §4.9).
func (s *Store) GetQuotes(f QuoteFilter, page Page) ([]DailyQuote, error) {
	where := []string{"instrument_id = ?"}
	args := []interface{}{f.InstrumentID}
	if !f.From.IsZero() {
		where = append(where, "time >= ?")
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		where = append(where, "time <= ?")
		args = append(args, f.To.Format(dateLayout))
	}
	if f.TradeStatus != nil {
		where = append(where, "tradestatus = ?")
		args = append(args, *f.TradeStatus)
	}
	if !f.IncludeSuspended {
		where = append(where, "tradestatus = 1")
	}
	if f.MinVolume != nil {
		where = append(where, "volume >= ?")
		args = append(args, *f.MinVolume)
	}
	if f.MinQualityScore != nil {
		where = append(where, "quality_score >= ?")
		args = append(args, *f.MinQualityScore)
	}

	query := fmt.Sprintf(`
		SELECT instrument_id, time, open, high, low, close, pre_close, change,
			pct_change, volume, amount, turnover, tradestatus, factor,
			adjustment_type, is_complete, quality_score, source, batch_id,
			created_at, updated_at
		FROM daily_quotes WHERE %s ORDER BY time ASC`, strings.Join(where, " AND "))

	limit := page.Limit
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, page.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.GetQuotes", err)
	}
	defer rows.Close()

	var out []DailyQuote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, errkind.New(errkind.StoreTransient, "store.GetQuotes", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// GetLatestQuoteTime returns the most recent quote time for instrumentID,
// or nil if none exists.
func (s *Store) GetLatestQuoteTime(instrumentID string) (*time.Time, error) {
	var d sql.NullString
	err := s.db.QueryRow(`SELECT MAX(time) FROM daily_quotes WHERE instrument_id = ?`, instrumentID).Scan(&d)
	if err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.GetLatestQuoteTime", err)
	}
	if !d.Valid {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, d.String)
	if err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.GetLatestQuoteTime", err)
	}
	return &t, nil
}

// CountAndFreshness returns the number of instrument rows for exchange
// and the most recent updated_at among them, for the provider router's
// instrument-list cache-staleness rule (§4.3 rule 3).
func (s *Store) CountAndFreshness(exchange string) (int, time.Time, error) {
	var count int
	var newest sql.NullInt64
	err := s.db.QueryRow(`
		SELECT COUNT(*), MAX(updated_at) FROM instruments WHERE exchange = ?
	`, exchange).Scan(&count, &newest)
	if err != nil {
		return 0, time.Time{}, errkind.New(errkind.StoreTransient, "store.CountAndFreshness", err)
	}
	if !newest.Valid {
		return count, time.Time{}, nil
	}
	return count, time.Unix(newest.Int64, 0), nil
}

// GetTradingDays returns calendar dates for exchange in [from, to],
// optionally restricted to trading days only.
func (s *Store) GetTradingDays(exchange string, from, to time.Time, onlyTrading bool) ([]time.Time, error) {
	query := `SELECT date FROM trading_calendar WHERE exchange = ? AND date BETWEEN ? AND ?`
	if onlyTrading {
		query += " AND is_trading_day = 1"
	}
	query += " ORDER BY date ASC"
	rows, err := s.db.Query(query, exchange, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.GetTradingDays", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, errkind.New(errkind.StoreTransient, "store.GetTradingDays", err)
		}
		t, _ := time.Parse(dateLayout, d)
		out = append(out, t)
	}
	return out, rows.Err()
}

// SnapshotStats implements snapshotStats() (§4.2).
func (s *Store) SnapshotStats() (*StatsSnapshot, error) {
	snap := &StatsSnapshot{
		CountsByExchange: map[string]int{},
		CountsByType:     map[string]int{},
		CountsByStatus:   map[string]int{},
	}

	if err := s.countInto(`SELECT exchange, COUNT(*) FROM instruments GROUP BY exchange`, snap.CountsByExchange); err != nil {
		return nil, err
	}
	if err := s.countInto(`SELECT type, COUNT(*) FROM instruments GROUP BY type`, snap.CountsByType); err != nil {
		return nil, err
	}
	if err := s.countInto(`SELECT status, COUNT(*) FROM instruments GROUP BY status`, snap.CountsByStatus); err != nil {
		return nil, err
	}

	var minD, maxD sql.NullString
	if err := s.db.QueryRow(`SELECT MIN(time), MAX(time) FROM daily_quotes`).Scan(&minD, &maxD); err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.SnapshotStats", err)
	}
	if minD.Valid {
		t, _ := time.Parse(dateLayout, minD.String)
		snap.EarliestQuote = &t
	}
	if maxD.Valid {
		t, _ := time.Parse(dateLayout, maxD.String)
		snap.LatestQuote = &t
	}

	const threshold = 0.7
	row := s.db.QueryRow(`
		SELECT COALESCE(AVG(quality_score), 0), COALESCE(MIN(quality_score), 0),
		       COALESCE(MAX(quality_score), 0),
		       SUM(CASE WHEN quality_score < ? THEN 1 ELSE 0 END)
		FROM daily_quotes`, threshold)
	if err := row.Scan(&snap.QualitySummary.AvgScore, &snap.QualitySummary.MinScore,
		&snap.QualitySummary.MaxScore, &snap.QualitySummary.BelowThreshold); err != nil {
		return nil, errkind.New(errkind.StoreTransient, "store.SnapshotStats", err)
	}
	return snap, nil
}

func (s *Store) countInto(query string, into map[string]int) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return errkind.New(errkind.StoreTransient, "store.countInto", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return errkind.New(errkind.StoreTransient, "store.countInto", err)
		}
		into[key] = n
	}
	return rows.Err()
}

// Vacuum, Analyze, Backup are the "safe maintenance" operations of §4.2.
func (s *Store) Vacuum() error { return s.db.Vacuum() }

func (s *Store) Analyze() error {
	if _, err := s.db.Exec("ANALYZE"); err != nil {
		return errkind.New(errkind.StoreTransient, "store.Analyze", err)
	}
	return nil
}

// Backup copies the store file to dest using SQLite's online backup via
// VACUUM INTO, which is consistent even against a live writer.
func (s *Store) Backup(dest string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", dest); err != nil {
		return errkind.New(errkind.StoreFatal, "store.Backup", err)
	}
	return nil
}

func scanQuote(rows *sql.Rows) (DailyQuote, error) {
	var q DailyQuote
	var timeStr string
	var isComplete int
	var createdAt, updatedAt int64
	err := rows.Scan(
		&q.InstrumentID, &timeStr, &q.Open, &q.High, &q.Low, &q.Close, &q.PreClose,
		&q.Change, &q.PctChange, &q.Volume, &q.Amount, &q.Turnover, &q.TradeStatus,
		&q.Factor, &q.AdjustmentType, &isComplete, &q.QualityScore, &q.Source, &q.BatchID,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return DailyQuote{}, err
	}
	q.Time, _ = time.Parse(dateLayout, timeStr)
	q.IsComplete = isComplete != 0
	q.CreatedAt = time.Unix(createdAt, 0).UTC()
	q.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return q, nil
}

func dateOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseNullDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
