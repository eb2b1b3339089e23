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

// BaostockAdapter talks to a self-hosted HTTP gateway fronting the
// baostock Python library. In the original roster it only ever serves as
// a backup source for the A-share exchanges, never primary.
type BaostockAdapter struct {
	baseURL string
	client  *http.Client
	limiter *RateLimiter
	cfg     RateLimitConfig
	log     zerolog.Logger
}

func NewBaostockAdapter(baseURL string, cfg RateLimitConfig, log zerolog.Logger) *BaostockAdapter {
	return &BaostockAdapter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: NewRateLimiter(cfg),
		cfg:     cfg,
		log:     log.With().Str("adapter", "baostock").Logger(),
	}
}

func (a *BaostockAdapter) Name() string { return "baostock" }

func (a *BaostockAdapter) Capabilities() Capability {
	return CapFetchDaily | CapFetchCalendar | CapHealthCheck
}

type baostockBarRow struct {
	Date        string  `json:"date"`
	Open        float64 `json:"open"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Close       float64 `json:"close"`
	PreClose    float64 `json:"preclose"`
	Volume      int64   `json:"volume"`
	Amount      float64 `json:"amount"`
	TradeStatus int     `json:"tradestatus"`
	AdjustFlag  int     `json:"adjustflag"`
}

func (a *BaostockAdapter) FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]RawBar, error) {
	var bars []RawBar
	err := withRetry(ctx, a.cfg, func() error {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
		url := fmt.Sprintf("%s/k_data?code=%s&start_date=%s&end_date=%s",
			a.baseURL, id.Native(), from.Format("2006-01-02"), to.Format("2006-01-02"))
		var rows []baostockBarRow
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
				PreClose:     r.PreClose,
				Volume:       r.Volume,
				Amount:       r.Amount,
				TradeStatus:  r.TradeStatus,
				Factor:       1.0,
			})
		}
		bars = out
		return nil
	})
	return bars, err
}

func (a *BaostockAdapter) ListInstruments(ctx context.Context, ex instrument.Exchange) ([]RawInstrument, error) {
	return nil, errkind.New(errkind.ProviderUnavailable, "baostock.ListInstruments",
		fmt.Errorf("baostock is backup-only and does not list instruments"))
}

type baostockCalendarRow struct {
	CalendarDate string `json:"calendar_date"`
	IsTradingDay string `json:"is_trading_day"`
}

func (a *BaostockAdapter) FetchCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) ([]RawCalendarDay, error) {
	var out []RawCalendarDay
	err := withRetry(ctx, a.cfg, func() error {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
		url := fmt.Sprintf("%s/trade_dates?start_date=%s&end_date=%s",
			a.baseURL, from.Format("2006-01-02"), to.Format("2006-01-02"))
		var rows []baostockCalendarRow
		if err := a.getJSON(ctx, url, &rows); err != nil {
			return err
		}
		res := make([]RawCalendarDay, 0, len(rows))
		for _, r := range rows {
			t, perr := time.Parse("2006-01-02", r.CalendarDate)
			if perr != nil {
				continue
			}
			res = append(res, RawCalendarDay{Date: t, IsTradingDay: r.IsTradingDay == "1"})
		}
		out = res
		return nil
	})
	return out, err
}

func (a *BaostockAdapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return errkind.New(errkind.ProviderTransient, "baostock.HealthCheck", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errkind.New(errkind.ProviderUnavailable, "baostock.HealthCheck", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

func (a *BaostockAdapter) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errkind.New(errkind.InvalidInput, "baostock.getJSON", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return errkind.New(errkind.ProviderTransient, "baostock.getJSON", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return errkind.New(errkind.ProviderTransient, "baostock.getJSON", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return errkind.New(errkind.ProviderUnavailable, "baostock.getJSON", fmt.Errorf("status %d", resp.StatusCode))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errkind.New(errkind.PayloadInvalid, "baostock.getJSON", err)
	}
	return nil
}
