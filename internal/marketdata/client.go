package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"cryptotracker/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var (
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketdata_upstream_requests_total",
			Help: "Total number of requests sent to the price provider",
		},
		[]string{"status"},
	)
	upstreamRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketdata_upstream_retries_total",
			Help: "Total number of retried provider requests",
		},
	)
	upstreamFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketdata_upstream_failures_total",
			Help: "Total number of provider fetches that gave up",
		},
	)
)

func init() {
	prometheus.MustRegister(upstreamRequestsTotal)
	prometheus.MustRegister(upstreamRetriesTotal)
	prometheus.MustRegister(upstreamFailuresTotal)
}

// Cache is the slice of the shared Redis cache the client needs.
// Expiry is the cache's concern; a stale entry reads as a miss.
type Cache interface {
	Get(ctx context.Context, key, endpoint string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Client fetches spot prices from the CoinGecko simple/price endpoint,
// transparently cached and retried on rate limiting.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	cacheTTL   time.Duration

	// Backoff governs retries on 429 and transient network errors.
	Backoff Backoff
}

// NewClient builds a market-data client. requestTimeout bounds each
// upstream request independently of the retry schedule.
func NewClient(baseURL string, cache Cache, cacheTTL, requestTimeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: requestTimeout},
		cache:      cache,
		cacheTTL:   cacheTTL,
		Backoff:    DefaultBackoff(),
	}
}

// FetchPrices returns the current price of each coin in ids, denominated
// in currency. One call covers the whole set; the response is cached so
// repeated calls within the TTL cost no network round trip.
func (c *Client) FetchPrices(ctx context.Context, ids []string, currency string) (map[string]float64, error) {
	tracer := otel.Tracer("crypto-tracker")
	ctx, span := tracer.Start(ctx, "FetchPrices")
	defer span.End()

	if len(ids) == 0 {
		return nil, fmt.Errorf("no coin ids requested")
	}

	// Sort so the same logical set always builds the same cache key,
	// whatever order the caller assembled it in.
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	joined := strings.Join(sorted, ",")
	cacheKey := "simple_price_" + joined + "_" + currency

	if cached, err := c.cache.Get(ctx, cacheKey, "/simple/price"); err == nil && cached != "" {
		prices, err := decodePrices([]byte(cached), currency)
		if err == nil {
			return prices, nil
		}
		logger.Log.Warn("Discarding undecodable cached price response",
			zap.String("cache_key", cacheKey),
			zap.Error(err),
		)
	}

	reqURL := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s",
		c.baseURL, url.QueryEscape(joined), url.QueryEscape(currency))

	var body []byte
	err := c.Backoff.Retry(ctx, func() error {
		var fetchErr error
		body, fetchErr = c.fetchOnce(ctx, reqURL)
		if fetchErr != nil && IsRetryable(fetchErr) {
			upstreamRetriesTotal.Inc()
			logger.Log.Warn("Provider request failed, will retry",
				zap.String("url", reqURL),
				zap.Error(fetchErr),
			)
		}
		return fetchErr
	})
	if err != nil {
		upstreamFailuresTotal.Inc()
		return nil, err
	}

	prices, err := decodePrices(body, currency)
	if err != nil {
		upstreamFailuresTotal.Inc()
		return nil, err
	}

	if cacheErr := c.cache.Set(ctx, cacheKey, string(body), c.cacheTTL); cacheErr != nil {
		logger.Log.Warn("Failed to cache price response",
			zap.String("cache_key", cacheKey),
			zap.Error(cacheErr),
		)
	}

	return prices, nil
}

// fetchOnce performs a single provider request. Rate limiting and
// request-level network errors come back marked retryable.
func (c *Client) fetchOnce(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, connection resets and the like.
		upstreamRequestsTotal.WithLabelValues("error").Inc()
		return nil, Retryable(err)
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, Retryable(fmt.Errorf("provider rate limited (429)"))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, Retryable(err)
	}

	return body, nil
}

// decodePrices flattens CoinGecko's {"bitcoin":{"usd":50000.5}} shape
// into a coin -> price map. Coins missing from the response are simply
// absent from the result.
func decodePrices(body []byte, currency string) (map[string]float64, error) {
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("malformed provider response: %w", err)
	}

	prices := make(map[string]float64, len(raw))
	for coin, quote := range raw {
		if price, ok := quote[currency]; ok {
			prices[coin] = price
		}
	}
	return prices, nil
}
