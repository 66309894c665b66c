package balance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

const stacksTestAddress = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

func testToken() config.TokenConfig {
	return config.TokenConfig{
		Symbol:   "NOCC",
		Contract: "SP32AEEF6WW5Y0NMJ1S8SBSZDAY8R5J32NBV7F78.nocc-token",
		Name:     "nocc-token",
		Decimals: 3,
	}
}

func newStacksServer(t *testing.T, stxBody, balancesBody string, stxStatus, balancesStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/extended/v1/address/%s/stx", stacksTestAddress),
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(stxStatus)
			_, _ = w.Write([]byte(stxBody))
		})
	mux.HandleFunc(fmt.Sprintf("/extended/v1/address/%s/balances", stacksTestAddress),
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(balancesStatus)
			_, _ = w.Write([]byte(balancesBody))
		})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testLimiter() *chain.RateLimiter {
	return chain.NewRateLimiter(1000, 1000)
}

// newTestStacksFetcher builds a fetcher with near-zero retry delays so
// failure paths stay fast.
func newTestStacksFetcher(apiURL string) *StacksFetcher {
	fetcher := NewStacksFetcher(apiURL, testToken(), testLimiter(), nil)
	fetcher.SetRetryConfig(chain.RetryConfig{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
	})
	return fetcher
}

// TestStacksFetchFormatsBalances verifies native and token balances come
// back formatted for display.
func TestStacksFetchFormatsBalances(t *testing.T) {
	t.Parallel()

	balances := `{"fungible_tokens":{"SP32AEEF6WW5Y0NMJ1S8SBSZDAY8R5J32NBV7F78.nocc-token::nocc-token":{"balance":"3750000000"}}}`
	server := newStacksServer(t, `{"balance":"12500000"}`, balances, http.StatusOK, http.StatusOK)

	fetcher := newTestStacksFetcher(server.URL)
	got, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.NoError(t, err)

	assert.Equal(t, "12.5", got["STX"])
	assert.Equal(t, "3.7M", got["NOCC"])
}

// TestStacksFetchTokenMissingIsZero verifies an account with no token
// holding reports a zero token balance.
func TestStacksFetchTokenMissingIsZero(t *testing.T) {
	t.Parallel()

	server := newStacksServer(t, `{"balance":"1000000"}`, `{"fungible_tokens":{}}`, http.StatusOK, http.StatusOK)

	fetcher := newTestStacksFetcher(server.URL)
	got, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.NoError(t, err)

	assert.Equal(t, "1", got["STX"])
	assert.Equal(t, "0", got["NOCC"])
}

// TestStacksFetchTokenFailureIsZero verifies a failed token read does
// not fail the fetch.
func TestStacksFetchTokenFailureIsZero(t *testing.T) {
	t.Parallel()

	server := newStacksServer(t, `{"balance":"1000000"}`, `oops`, http.StatusOK, http.StatusInternalServerError)

	fetcher := newTestStacksFetcher(server.URL)
	got, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.NoError(t, err)

	assert.Equal(t, "1", got["STX"])
	assert.Equal(t, "0", got["NOCC"])
}

// TestStacksFetchNativeFailure verifies a failed native read fails the
// fetch.
func TestStacksFetchNativeFailure(t *testing.T) {
	t.Parallel()

	server := newStacksServer(t, `oops`, `{}`, http.StatusInternalServerError, http.StatusOK)

	fetcher := newTestStacksFetcher(server.URL)
	_, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrNetwork))
}

// TestStacksFetchRateLimitedUpstream verifies a 429 maps onto the rate
// limit sentinel.
func TestStacksFetchRateLimitedUpstream(t *testing.T) {
	t.Parallel()

	server := newStacksServer(t, `slow down`, `{}`, http.StatusTooManyRequests, http.StatusOK)

	fetcher := newTestStacksFetcher(server.URL)
	_, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrRateLimited))
}

// TestStacksFetchMalformedBody verifies undecodable JSON fails the
// fetch.
func TestStacksFetchMalformedBody(t *testing.T) {
	t.Parallel()

	server := newStacksServer(t, `not json`, `{}`, http.StatusOK, http.StatusOK)

	fetcher := newTestStacksFetcher(server.URL)
	_, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.Error(t, err)
}

// TestStacksFetchUnreachable verifies a connection failure maps onto the
// network sentinel.
func TestStacksFetchUnreachable(t *testing.T) {
	t.Parallel()

	fetcher := newTestStacksFetcher("http://127.0.0.1:1")
	_, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrNetwork))
}

// TestStacksFetchHitsBothEndpoints verifies one fetch performs exactly
// one native and one token request.
func TestStacksFetchHitsBothEndpoints(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Path {
		case fmt.Sprintf("/extended/v1/address/%s/stx", stacksTestAddress):
			_, _ = w.Write([]byte(`{"balance":"0"}`))
		default:
			_, _ = w.Write([]byte(`{"fungible_tokens":{}}`))
		}
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	fetcher := newTestStacksFetcher(server.URL)
	_, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.NoError(t, err)
	assert.Equal(t, int64(2), requests.Load())
}

// TestStacksFetchRetriesServerError verifies a transient upstream outage
// is retried and recovers.
func TestStacksFetchRetriesServerError(t *testing.T) {
	t.Parallel()

	var stxRequests atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc(fmt.Sprintf("/extended/v1/address/%s/stx", stacksTestAddress),
		func(w http.ResponseWriter, _ *http.Request) {
			if stxRequests.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(`{"balance":"12500000"}`))
		})
	mux.HandleFunc(fmt.Sprintf("/extended/v1/address/%s/balances", stacksTestAddress),
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"fungible_tokens":{}}`))
		})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	fetcher := newTestStacksFetcher(server.URL)
	got, err := fetcher.Fetch(context.Background(), stacksTestAddress)
	require.NoError(t, err)
	assert.Equal(t, "12.5", got["STX"])
	assert.Equal(t, int64(2), stxRequests.Load())
}
