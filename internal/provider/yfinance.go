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

// YFinanceAdapter wraps the Yahoo Finance chart API, used as primary
// source for NASDAQ, NYSE and HKEX in the default data_sources_config.
type YFinanceAdapter struct {
	baseURL string
	client  *http.Client
	limiter *RateLimiter
	cfg     RateLimitConfig
	log     zerolog.Logger
}

// NewYFinanceAdapter builds a YFinanceAdapter. cfg may be
// DefaultRateLimitConfig() or a value loaded from data_sources_config.
func NewYFinanceAdapter(cfg RateLimitConfig, log zerolog.Logger) *YFinanceAdapter {
	return &YFinanceAdapter{
		baseURL: "https://query1.finance.yahoo.com/v8/finance/chart",
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: NewRateLimiter(cfg),
		cfg:     cfg,
		log:     log.With().Str("adapter", "yfinance").Logger(),
	}
}

func (a *YFinanceAdapter) Name() string { return "yfinance" }

func (a *YFinanceAdapter) Capabilities() Capability {
	return CapFetchDaily | CapHealthCheck
}

type yfChartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error json.RawMessage `json:"error"`
	} `json:"chart"`
}

func (a *YFinanceAdapter) FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]RawBar, error) {
	var bars []RawBar
	err := withRetry(ctx, a.cfg, func() error {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
		url := fmt.Sprintf("%s/%s?period1=%d&period2=%d&interval=1d",
			a.baseURL, id.Native(), from.Unix(), to.Unix())
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return errkind.New(errkind.InvalidInput, "yfinance.FetchDaily", err)
		}
		resp, err := a.client.Do(req)
		if err != nil {
			return errkind.New(errkind.ProviderTransient, "yfinance.FetchDaily", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return errkind.New(errkind.ProviderTransient, "yfinance.FetchDaily", fmt.Errorf("status %d", resp.StatusCode))
		}
		if resp.StatusCode != http.StatusOK {
			return errkind.New(errkind.ProviderUnavailable, "yfinance.FetchDaily", fmt.Errorf("status %d", resp.StatusCode))
		}
		var parsed yfChartResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return errkind.New(errkind.PayloadInvalid, "yfinance.FetchDaily", err)
		}
		if len(parsed.Chart.Result) == 0 {
			bars = nil
			return nil
		}
		result := parsed.Chart.Result[0]
		if len(result.Indicators.Quote) == 0 {
			bars = nil
			return nil
		}
		q := result.Indicators.Quote[0]
		out := make([]RawBar, 0, len(result.Timestamp))
		for i, ts := range result.Timestamp {
			if i >= len(q.Close) {
				break
			}
			out = append(out, RawBar{
				InstrumentID: id.String(),
				Time:         time.Unix(ts, 0).UTC(),
				Open:         at(q.Open, i),
				High:         at(q.High, i),
				Low:          at(q.Low, i),
				Close:        at(q.Close, i),
				Volume:       atInt(q.Volume, i),
				TradeStatus:  1,
				Factor:       1.0,
			})
		}
		bars = out
		return nil
	})
	return bars, err
}

func at(xs []float64, i int) float64 {
	if i < 0 || i >= len(xs) {
		return 0
	}
	return xs[i]
}

func atInt(xs []int64, i int) int64 {
	if i < 0 || i >= len(xs) {
		return 0
	}
	return xs[i]
}

func (a *YFinanceAdapter) ListInstruments(ctx context.Context, ex instrument.Exchange) ([]RawInstrument, error) {
	return nil, errkind.New(errkind.ProviderUnavailable, "yfinance.ListInstruments",
		fmt.Errorf("instrument listing not supported by chart API"))
}

func (a *YFinanceAdapter) FetchCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) ([]RawCalendarDay, error) {
	return nil, errkind.New(errkind.ProviderUnavailable, "yfinance.FetchCalendar",
		fmt.Errorf("calendar not supported"))
}

func (a *YFinanceAdapter) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://query1.finance.yahoo.com/v8/finance/chart/AAPL?range=1d&interval=1d", nil)
	if err != nil {
		return err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return errkind.New(errkind.ProviderTransient, "yfinance.HealthCheck", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errkind.New(errkind.ProviderUnavailable, "yfinance.HealthCheck", fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}
