package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/quoteflow/internal/errkind"
	"github.com/aristath/quoteflow/internal/instrument"
	"github.com/rs/zerolog"
)

// TushareAdapter calls the Tushare Pro HTTP API directly (unlike akshare
// and baostock, Tushare Pro exposes a real JSON-RPC endpoint, so no
// gateway process is required). Token-authenticated.
type TushareAdapter struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *RateLimiter
	cfg     RateLimitConfig
	log     zerolog.Logger
}

func NewTushareAdapter(token string, cfg RateLimitConfig, log zerolog.Logger) *TushareAdapter {
	return &TushareAdapter{
		baseURL: "https://api.tushare.pro",
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: NewRateLimiter(cfg),
		cfg:     cfg,
		log:     log.With().Str("adapter", "tushare").Logger(),
	}
}

func (a *TushareAdapter) Name() string { return "tushare" }

func (a *TushareAdapter) Capabilities() Capability {
	return CapListInstruments | CapFetchDaily | CapFetchCalendar | CapHealthCheck
}

type tushareRequest struct {
	APIName string                 `json:"api_name"`
	Token   string                 `json:"token"`
	Params  map[string]interface{} `json:"params"`
	Fields  string                 `json:"fields"`
}

type tushareResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Fields []string        `json:"fields"`
		Items  [][]interface{} `json:"items"`
	} `json:"data"`
}

func (a *TushareAdapter) call(ctx context.Context, apiName string, params map[string]interface{}, fields string) (*tushareResponse, error) {
	var out *tushareResponse
	err := withRetry(ctx, a.cfg, func() error {
		if err := a.limiter.Acquire(ctx); err != nil {
			return err
		}
		body, err := json.Marshal(tushareRequest{APIName: apiName, Token: a.token, Params: params, Fields: fields})
		if err != nil {
			return errkind.New(errkind.InvalidInput, "tushare.call", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewReader(body))
		if err != nil {
			return errkind.New(errkind.InvalidInput, "tushare.call", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := a.client.Do(req)
		if err != nil {
			return errkind.New(errkind.ProviderTransient, "tushare.call", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return errkind.New(errkind.ProviderTransient, "tushare.call", fmt.Errorf("status %d", resp.StatusCode))
		}
		var parsed tushareResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return errkind.New(errkind.PayloadInvalid, "tushare.call", err)
		}
		if parsed.Code != 0 {
			return errkind.New(errkind.ProviderUnavailable, "tushare.call", fmt.Errorf("api error %d: %s", parsed.Code, parsed.Msg))
		}
		out = &parsed
		return nil
	})
	return out, err
}

func (a *TushareAdapter) fieldIndex(fields []string, name string) int {
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}

func (a *TushareAdapter) FetchDaily(ctx context.Context, id instrument.ID, from, to time.Time) ([]RawBar, error) {
	resp, err := a.call(ctx, "daily", map[string]interface{}{
		"ts_code":    id.Native(),
		"start_date": from.Format("20060102"),
		"end_date":   to.Format("20060102"),
	}, "ts_code,trade_date,open,high,low,close,pre_close,vol,amount")
	if err != nil {
		return nil, err
	}
	f := resp.Data.Fields
	dateIdx, openIdx, highIdx, lowIdx, closeIdx := a.fieldIndex(f, "trade_date"), a.fieldIndex(f, "open"), a.fieldIndex(f, "high"), a.fieldIndex(f, "low"), a.fieldIndex(f, "close")
	preIdx, volIdx, amtIdx := a.fieldIndex(f, "pre_close"), a.fieldIndex(f, "vol"), a.fieldIndex(f, "amount")
	out := make([]RawBar, 0, len(resp.Data.Items))
	for _, row := range resp.Data.Items {
		dateStr, ok := row[dateIdx].(string)
		if !ok {
			continue
		}
		t, perr := time.Parse("20060102", dateStr)
		if perr != nil {
			continue
		}
		out = append(out, RawBar{
			InstrumentID: id.String(),
			Time:         t,
			Open:         toFloat(row, openIdx),
			High:         toFloat(row, highIdx),
			Low:          toFloat(row, lowIdx),
			Close:        toFloat(row, closeIdx),
			PreClose:     toFloat(row, preIdx),
			Volume:       int64(toFloat(row, volIdx)),
			Amount:       toFloat(row, amtIdx),
			TradeStatus:  1,
			Factor:       1.0,
		})
	}
	return out, nil
}

func toFloat(row []interface{}, idx int) float64 {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return 0
	}
	f, _ := row[idx].(float64)
	return f
}

func (a *TushareAdapter) ListInstruments(ctx context.Context, ex instrument.Exchange) ([]RawInstrument, error) {
	resp, err := a.call(ctx, "stock_basic", map[string]interface{}{
		"exchange": string(ex),
		"list_status": "L",
	}, "ts_code,symbol,name,industry,market,list_date")
	if err != nil {
		return nil, err
	}
	f := resp.Data.Fields
	codeIdx, symIdx, nameIdx, indIdx, mktIdx := a.fieldIndex(f, "ts_code"), a.fieldIndex(f, "symbol"), a.fieldIndex(f, "name"), a.fieldIndex(f, "industry"), a.fieldIndex(f, "market")
	out := make([]RawInstrument, 0, len(resp.Data.Items))
	for _, row := range resp.Data.Items {
		sym, _ := row[symIdx].(string)
		name, _ := row[nameIdx].(string)
		industry, _ := row[indIdx].(string)
		market, _ := row[mktIdx].(string)
		code, _ := row[codeIdx].(string)
		out = append(out, RawInstrument{
			InstrumentID: code,
			Symbol:       sym,
			Exchange:     ex,
			Name:         name,
			Currency:     "CNY",
			Industry:     industry,
			Market:       market,
			IsActive:     true,
		})
	}
	return out, nil
}

func (a *TushareAdapter) FetchCalendar(ctx context.Context, ex instrument.Exchange, from, to time.Time) ([]RawCalendarDay, error) {
	resp, err := a.call(ctx, "trade_cal", map[string]interface{}{
		"exchange":   exchangeMarketCode(ex),
		"start_date": from.Format("20060102"),
		"end_date":   to.Format("20060102"),
	}, "cal_date,is_open")
	if err != nil {
		return nil, err
	}
	f := resp.Data.Fields
	dateIdx, openIdx := a.fieldIndex(f, "cal_date"), a.fieldIndex(f, "is_open")
	out := make([]RawCalendarDay, 0, len(resp.Data.Items))
	for _, row := range resp.Data.Items {
		dateStr, ok := row[dateIdx].(string)
		if !ok {
			continue
		}
		t, perr := time.Parse("20060102", dateStr)
		if perr != nil {
			continue
		}
		out = append(out, RawCalendarDay{Date: t, IsTradingDay: toFloat(row, openIdx) == 1})
	}
	return out, nil
}

func exchangeMarketCode(ex instrument.Exchange) string {
	switch ex {
	case instrument.SSE:
		return "SSE"
	case instrument.SZSE:
		return "SZSE"
	default:
		return string(ex)
	}
}

func (a *TushareAdapter) HealthCheck(ctx context.Context) error {
	_, err := a.call(ctx, "trade_cal", map[string]interface{}{"exchange": "SSE"}, "cal_date")
	return err
}
