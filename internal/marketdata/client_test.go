package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cryptotracker/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

// memCache is an in-process stand-in for the Redis cache.
type memCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (m *memCache) Get(ctx context.Context, key, endpoint string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[key], nil
}

func (m *memCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = value
	return nil
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *memCache, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := newMemCache()
	client := NewClient(srv.URL, c, 60*time.Second, 8*time.Second)
	client.Backoff.Sleep = func(time.Duration) {}
	return client, c, srv
}

func TestFetchPrices_DecodesResponse(t *testing.T) {
	var gotQuery string
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"bitcoin":{"usd":50000.5},"ethereum":{"usd":2000}}`))
	})

	prices, err := client.FetchPrices(context.Background(), []string{"ethereum", "bitcoin"}, "usd")
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"bitcoin": 50000.5, "ethereum": 2000}, prices)
	assert.Equal(t, "ids=bitcoin%2Cethereum&vs_currencies=usd", gotQuery, "ids are sorted before the request")
}

func TestFetchPrices_CacheHitSkipsNetwork(t *testing.T) {
	var requests int
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"bitcoin":{"usd":50000}}`))
	})

	_, err := client.FetchPrices(context.Background(), []string{"bitcoin"}, "usd")
	require.NoError(t, err)

	prices, err := client.FetchPrices(context.Background(), []string{"bitcoin"}, "usd")
	require.NoError(t, err)

	assert.Equal(t, 1, requests, "a fetch within the TTL must be served from cache")
	assert.Equal(t, 50000.0, prices["bitcoin"])
}

func TestFetchPrices_CacheKeyIsOrderInsensitive(t *testing.T) {
	var requests int
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`{"bitcoin":{"usd":50000},"ethereum":{"usd":2000}}`))
	})

	_, err := client.FetchPrices(context.Background(), []string{"ethereum", "bitcoin"}, "usd")
	require.NoError(t, err)
	_, err = client.FetchPrices(context.Background(), []string{"bitcoin", "ethereum"}, "usd")
	require.NoError(t, err)

	assert.Equal(t, 1, requests, "the same logical set in a different order must hit the cache")
}

func TestFetchPrices_RetriesOnRateLimit(t *testing.T) {
	var requests int
	var sleeps []time.Duration
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"bitcoin":{"usd":42000}}`))
	})
	client.Backoff.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	prices, err := client.FetchPrices(context.Background(), []string{"bitcoin"}, "usd")
	require.NoError(t, err)

	assert.Equal(t, 3, requests)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeps)
	assert.Equal(t, 42000.0, prices["bitcoin"], "the data must come from the eventual 200")
}

func TestFetchPrices_RetryExhaustion(t *testing.T) {
	var requests int
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.FetchPrices(context.Background(), []string{"bitcoin"}, "usd")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, requests, "no further attempts after the budget")
}

func TestFetchPrices_NonRetryableStatusFailsFast(t *testing.T) {
	var requests int
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.FetchPrices(context.Background(), []string{"bitcoin"}, "usd")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, requests)
}

func TestFetchPrices_MalformedResponse(t *testing.T) {
	var requests int
	client, c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(`not json`))
	})

	_, err := client.FetchPrices(context.Background(), []string{"bitcoin"}, "usd")
	require.Error(t, err)
	assert.Equal(t, 1, requests, "a malformed body is not retried")
	assert.Empty(t, c.entries, "a malformed body is not cached")
}

func TestFetchPrices_CoinMissingFromResponse(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"usd":50000}}`))
	})

	prices, err := client.FetchPrices(context.Background(), []string{"bitcoin", "doesnotexist"}, "usd")
	require.NoError(t, err)

	_, ok := prices["doesnotexist"]
	assert.False(t, ok, "unknown coins are simply absent, not an error")
	assert.Equal(t, 50000.0, prices["bitcoin"])
}

func TestFetchPrices_EmptyIDs(t *testing.T) {
	client, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := client.FetchPrices(context.Background(), nil, "usd")
	assert.Error(t, err)
}
