// Package store implements the Store contract (§4.2): the sole owner of
// persisted instruments, quotes, calendar rows, and batch audit records.
package store

import "time"

// Instrument mirrors the persisted row (§3).
type Instrument struct {
	InstrumentID  string
	Symbol        string
	Exchange      string
	Name          string
	Type          string
	Currency      string
	ListedDate    *time.Time
	DelistedDate  *time.Time
	IssueDate     *time.Time
	Industry      string
	Sector        string
	Market        string
	Status        string
	IsActive      bool
	IsST          bool
	TradingStatus int
	Source        string
	SourceSymbol  string
	DataVersion   int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DailyQuote mirrors the persisted row (§3).
type DailyQuote struct {
	InstrumentID   string
	Time           time.Time
	Open           float64
	High           float64
	Low            float64
	Close          float64
	PreClose       float64
	Change         float64
	PctChange      float64
	Volume         int64
	Amount         float64
	Turnover       float64
	TradeStatus    int
	Factor         float64
	AdjustmentType string
	IsComplete     bool
	QualityScore   float64
	Source         string
	BatchID        string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CalendarRow mirrors a persisted TradingCalendarEntry row (§3).
type CalendarRow struct {
	Exchange     string
	Date         time.Time
	IsTradingDay bool
	Reason       string
	SessionType  string
	Source       string
}

// InstrumentFilter narrows getInstrumentsByExchange/getInstruments (§4.2, §4.9).
type InstrumentFilter struct {
	Exchange   string
	Type       string
	Industry   string
	Sector     string
	Market     string
	Status     string
	ActiveOnly bool
	ListedFrom *time.Time
	ListedTo   *time.Time
}

// Page bounds a result set.
type Page struct {
	Limit  int
	Offset int
}

// QuoteFilter narrows getQuotes (§4.2, §4.9).
type QuoteFilter struct {
	InstrumentID    string
	From            time.Time
	To              time.Time
	TradeStatus     *int
	MinVolume       *int64
	MinQualityScore *float64
	IncludeSuspended bool
}

// StatsSnapshot is the response shape of snapshotStats() (§4.2).
type StatsSnapshot struct {
	CountsByExchange map[string]int
	CountsByType     map[string]int
	CountsByStatus   map[string]int
	EarliestQuote    *time.Time
	LatestQuote      *time.Time
	QualitySummary   QualitySummary
}

// QualitySummary is the quality portion of StatsSnapshot and of a Query
// façade response (§4.9).
type QualitySummary struct {
	AvgScore     float64
	MinScore     float64
	MaxScore     float64
	BelowThreshold int
}
