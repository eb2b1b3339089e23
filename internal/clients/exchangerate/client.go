// Package exchangerate provides currency exchange rate fetching for the
// query façade's optional currency normalization (SPEC_FULL.md §C).
package exchangerate

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Client fetches spot rates from exchangerate-api.com and satisfies
// query.RateConverter.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger

	mu        sync.Mutex
	cache     map[string]cachedRate
	cacheTTL  time.Duration
}

type cachedRate struct {
	rate      float64
	expiresAt time.Time
}

// NewClient builds a Client with an in-memory rate cache (ttl applies to
// every pair; exchangerate-api.com's free tier updates daily, so a hold of
// an hour or more avoids hammering it on repeated query requests).
func NewClient(ttl time.Duration, log zerolog.Logger) *Client {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Client{
		baseURL:  "https://api.exchangerate-api.com/v4/latest",
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.With().Str("client", "exchangerate-api").Logger(),
		cache:    make(map[string]cachedRate),
		cacheTTL: ttl,
	}
}

// GetRate returns the spot rate to multiply an amount in fromCurrency by
// to get toCurrency, serving a cached value when still fresh.
func (c *Client) GetRate(fromCurrency, toCurrency string) (float64, error) {
	if fromCurrency == toCurrency {
		return 1.0, nil
	}
	cacheKey := fromCurrency + ":" + toCurrency

	c.mu.Lock()
	if cached, ok := c.cache[cacheKey]; ok && time.Now().Before(cached.expiresAt) {
		c.mu.Unlock()
		return cached.rate, nil
	}
	c.mu.Unlock()

	url := fmt.Sprintf("%s/%s", c.baseURL, fromCurrency)
	resp, err := c.client.Get(url)
	if err != nil {
		if stale, ok := c.staleRate(cacheKey); ok {
			c.log.Warn().Err(err).Str("pair", cacheKey).Msg("rate fetch failed, using stale cached rate")
			return stale, nil
		}
		return 0, fmt.Errorf("exchangerate: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if stale, ok := c.staleRate(cacheKey); ok {
			return stale, nil
		}
		return 0, fmt.Errorf("exchangerate: status %d", resp.StatusCode)
	}

	var result struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if stale, ok := c.staleRate(cacheKey); ok {
			return stale, nil
		}
		return 0, fmt.Errorf("exchangerate: decode failed: %w", err)
	}

	rate, ok := result.Rates[toCurrency]
	if !ok {
		if stale, ok := c.staleRate(cacheKey); ok {
			return stale, nil
		}
		return 0, fmt.Errorf("exchangerate: no rate for %s->%s", fromCurrency, toCurrency)
	}

	c.mu.Lock()
	c.cache[cacheKey] = cachedRate{rate: rate, expiresAt: time.Now().Add(c.cacheTTL)}
	c.mu.Unlock()

	return rate, nil
}

// staleRate returns a cached rate even if expired, for use as a fallback
// when a live fetch fails.
func (c *Client) staleRate(cacheKey string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.cache[cacheKey]
	return cached.rate, ok
}
