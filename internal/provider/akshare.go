package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/quoteflow/internal/errkind"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/rs/zerolog"
)

// AkShareAdapter talks to a self-hosted HTTP gateway fronting the akshare
// Python library, the primary source for the A-share exchanges (SSE, SZSE,
// BSE) in the original provider roster.
type AkShareAdapter struct {
	baseURL string
	client  *http.Client
	limiter *RateLimiter
	cfg     RateLimitConfig
	log     zerolog.Logger
}

// NewAkShareAdapter builds an AkShareAdapter pointed at baseURL (the
// gateway's address).
func NewAkShareAdapter(baseURL string, cfg RateLimitConfig, log zerolog.Logger) *AkShareAdapter {
	return &AkShareAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: NewRateLimiter(cfg),
		cfg:     cfg,
		log:     log.With().Str("adapter", "akshare").Logger(),
	}
}

func (a *AkShareAdapter) Name() string { return "akshare" }

func (a *AkShareAdapter) Capabilities() Capability {
	return CapListInstruments | CapFetchDaily | CapFetchCalendar | CapHealthCheck
}

type akshareBarRow struct {
	Date        string  `json:"date"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	Volume      int64   `json:"volume"`
	Amount      float64 `json:"amount"`
	Turnover    float64 `json:"turnover"`
	TradeStatus int     `json:"trade_status"`
}

func (a *AkShareAdapter) FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]RawBar, error) {
	var bars []RawBar
	err := withRetry(ctx, a.cfg, func() error {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
		url := fmt.Sprintf("%s/daily?symbol=%s&start=%s&end=%s",
			a.baseURL, id.Native(), from.Format("2006-01-02"), to.Format("2006-01-02"))
		var rows []akshareBarRow
		if err := a.getJSON(ctx, url, &rows); err != nil {
			return err
		}
		out := make([]RawBar, 0, len(rows))
		for _, r := range rows {
			t, perr := time.Parse("2006-01-02", r.Date)
			if perr != nil {
				continue
			}
			out = append(out, RawBar{
				InstrumentID: id.String(),
				Time:         t,
				Open:         r.Open,
				High:         r.High,
				Low:          r.Low,
				Close:        r.Close,
				Volume:       r.Volume,
				Amount:       r.Amount,
				Turnover:     r.Turnover,
				TradeStatus:  r.TradeStatus,
				Factor:       1.0,
			})
		}
		bars = out
		return nil
	})
	return bars, err
}

type akshareInstrumentRow struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Industry string `json:"industry"`
	Market   string `json:"market"`
	IsActive bool   `json:"is_active"`
}

func (a *AkShareAdapter) ListInstruments(ctx context.Context, ex instrument.Exchange) ([]RawInstrument, error) {
	var out []RawInstrument
	err := withRetry(ctx, a.cfg, func() error {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
		url := fmt.Sprintf("%s/instruments?exchange=%s", a.baseURL, ex)
		var rows []akshareInstrumentRow
		if err := a.getJSON(ctx, url, &rows); err != nil {
			return err
		}
		res := make([]RawInstrument, 0, len(rows))
		for _, r := range rows {
			res = append(res, RawInstrument{
				InstrumentID: fmt.Sprintf("%s.%s", r.Symbol, ex),
				Symbol:       r.Symbol,
				Exchange:     ex,
				Name:         r.Name,
				Currency:     "CNY",
				Industry:     r.Industry,
				Market:       r.Market,
				IsActive:     r.IsActive,
			})
		}
		out = res
		return nil
	})
	return out, err
}

type akshareCalendarRow struct {
	Date         string `json:"date"`
	IsTradingDay bool   `json:"is_trading_day"`
}

func (a *AkShareAdapter) FetchCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) ([]RawCalendarDay, error) {
	var out []RawCalendarDay
	err := withRetry(ctx, a.cfg, func() error {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
		url := fmt.Sprintf("%s/calendar?exchange=%s&start=%s&end=%s",
			a.baseURL, ex, from.Format("2006-01-02"), to.Format("2006-01-02"))
		var rows []akshareCalendarRow
		if err := a.getJSON(ctx, url, &rows); err != nil {
			return err
		}
		res := make([]RawCalendarDay, 0, len(rows))
		for _, r := range rows {
			t, perr := time.Parse("2006-01-02", r.Date)
			if perr != nil {
				continue
			}
			res = append(res, RawCalendarDay{Date: t, IsTradingDay: r.IsTradingDay})
		}
		out = res
		return nil
	})
	return out, err
}

func (a *AkShareAdapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return errkind.New(errkind.ProviderTransient, "akshare.HealthCheck", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errkind.New(errkind.ProviderUnavailable, "akshare.HealthCheck", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (a *AkShareAdapter) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errkind.New(errkind.InvalidInput, "akshare.getJSON", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return errkind.New(errkind.ProviderTransient, "akshare.getJSON", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return errkind.New(errkind.ProviderTransient, "akshare.getJSON", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return errkind.New(errkind.ProviderUnavailable, "akshare.getJSON", fmt.Errorf("status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errkind.New(errkind.PayloadInvalid, "akshare.getJSON", err)
	}
	return nil
}
