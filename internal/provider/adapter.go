// Package provider implements the ProviderAdapter capability interface
// (§4.3), a per-adapter RateLimiter, concrete adapters for the upstream
// quote sources named in the original A-share/US-share provider roster
// (akshare, baostock, tushare, yfinance) plus the router that selects and
// fails over between them.
package provider

import (
	"context"
	"time"

	"github.com/aristath/quoteflow/internal/instrument"
)

// RawBar is a single OHLCV row as returned by an upstream provider, before
// QualityStage normalization.
type RawBar struct {
	InstrumentID string
	Time         time.Time
	Open         float64
	High         float64
	Low          float64
	Close        float64
	PreClose     float64
	Volume       int64
	Amount       float64
	Turnover     float64
	TradeStatus  int
	Factor       float64
}

// RawInstrument is a listed instrument as returned by listInstruments.
type RawInstrument struct {
	InstrumentID string
	Symbol       string
	Exchange     instrument.Exchange
	Name         string
	Type         string
	Currency     string
	ListedDate   *time.Time
	DelistedDate *time.Time
	Industry     string
	Sector       string
	Market       string
	IsActive     bool
}

// RawCalendarDay is a single trading-calendar row as returned by
// fetchCalendar.
type RawCalendarDay struct {
	Date         time.Time
	IsTradingDay bool
}

// Capability is one of the four operations a ProviderAdapter may support.
// A "backup-only" source supplies only CapFetchDaily (§4.3).
type Capability int

const (
	CapListInstruments Capability = 1 << iota
	CapFetchDaily
	CapFetchCalendar
	CapHealthCheck
)

// Has reports whether cs includes c.
func (cs Capability) Has(c Capability) bool { return cs&c != 0 }

// Adapter is the capability-set contract a single upstream data source
// implements (§4.3). Implementations own their own RateLimiter and retry
// policy; the Router never calls an operation a Capabilities() bitset
// doesn't advertise.
type Adapter interface {
	Name() string
	Capabilities() Capability
	ListInstruments(ctx context.Context, ex instrument.Exchange) ([]RawInstrument, error)
	FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]RawBar, error)
	FetchCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) ([]RawCalendarDay, error)
	HealthCheck(ctx context.Context) error
}
