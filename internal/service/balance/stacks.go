package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// StacksFetcher reads STX and NOCC balances from a Hiro-style API.
type StacksFetcher struct {
	apiURL     string
	token      config.TokenConfig
	httpClient *http.Client
	limiter    *chain.RateLimiter
	retry      chain.RetryConfig
	logger     *config.Logger
}

// Compile-time interface check
var _ Fetcher = (*StacksFetcher)(nil)

// NewStacksFetcher creates a Stacks balance fetcher.
func NewStacksFetcher(apiURL string, token config.TokenConfig, limiter *chain.RateLimiter, logger *config.Logger) *StacksFetcher {
	if limiter == nil {
		limiter = chain.DefaultRateLimiter()
	}
	if logger == nil {
		logger = config.NullLogger()
	}
	return &StacksFetcher{
		apiURL:     strings.TrimRight(apiURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    limiter,
		retry:      chain.DefaultRetryConfig(),
		logger:     logger,
	}
}

// SetHTTPClient overrides the HTTP client. Used by tests.
func (f *StacksFetcher) SetHTTPClient(client *http.Client) {
	f.httpClient = client
}

// SetRetryConfig overrides the backoff applied to retryable API errors.
func (f *StacksFetcher) SetRetryConfig(cfg chain.RetryConfig) {
	f.retry = cfg
}

// Family reports the chain family this fetcher serves.
func (f *StacksFetcher) Family() chain.Family {
	return chain.Stacks
}

// stxBalanceResponse is the native balance payload.
type stxBalanceResponse struct {
	Balance string `json:"balance"`
}

// tokenBalancesResponse is the account balances payload carrying
// fungible token holdings.
type tokenBalancesResponse struct {
	FungibleTokens map[string]struct {
		Balance string `json:"balance"`
	} `json:"fungible_tokens"`
}

// Fetch returns formatted STX and NOCC balances. A failed token read
// yields "0" for the token with no error; a failed native read fails the
// fetch.
func (f *StacksFetcher) Fetch(ctx context.Context, address string) (map[string]string, error) {
	native, err := f.fetchNative(ctx, address)
	if err != nil {
		return nil, err
	}

	tokenBalance, err := f.fetchToken(ctx, address)
	if err != nil {
		f.logger.Error("token balance read for %s: %v", chain.ShortAddress(address), err)
		tokenBalance = "0"
	}

	return map[string]string{
		chain.AssetSTX.Symbol: native,
		f.token.Symbol:        tokenBalance,
	}, nil
}

// fetchNative reads the STX balance.
func (f *StacksFetcher) fetchNative(ctx context.Context, address string) (string, error) {
	endpoint := fmt.Sprintf("%s/extended/v1/address/%s/stx", f.apiURL, address)
	if err := f.limiter.Wait(ctx, "stx"); err != nil {
		return "", linkerr.WithCause(linkerr.ErrNetwork, err)
	}

	resp, err := getWithRetry[stxBalanceResponse](ctx, f, endpoint)
	if err != nil {
		return "", err
	}

	raw, ok := chain.ParseUnits(resp.Balance)
	if !ok {
		return "", linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "malformed stx balance")
	}
	return chain.FormatAmount(raw, chain.AssetSTX.Decimals, chain.AssetSTX.DisplayPlaces), nil
}

// fetchToken reads the NOCC token balance from the account's fungible
// token holdings.
func (f *StacksFetcher) fetchToken(ctx context.Context, address string) (string, error) {
	endpoint := fmt.Sprintf("%s/extended/v1/address/%s/balances", f.apiURL, address)
	if err := f.limiter.Wait(ctx, "balances"); err != nil {
		return "", linkerr.WithCause(linkerr.ErrNetwork, err)
	}

	resp, err := getWithRetry[tokenBalancesResponse](ctx, f, endpoint)
	if err != nil {
		return "", err
	}

	assetKey := f.token.Contract + "::" + f.token.Name
	holding, ok := resp.FungibleTokens[assetKey]
	if !ok {
		// No holding yet is an ordinary zero balance.
		return "0", nil
	}

	raw, ok := chain.ParseUnits(holding.Balance)
	if !ok {
		return "", linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "malformed token balance")
	}

	places := chain.AssetNOCC.DisplayPlaces
	return chain.FormatAmount(raw, f.token.Decimals, places), nil
}

// getWithRetry performs a GET with backoff on rate limits and upstream
// outages, decoding the body into T.
func getWithRetry[T any](ctx context.Context, f *StacksFetcher, endpoint string) (T, error) {
	return chain.RetryWithConfig(ctx, f.retry, func() (T, error) {
		var out T
		err := f.getJSON(ctx, endpoint, &out)
		return out, err
	})
}

// getJSON performs one GET and decodes the body.
func (f *StacksFetcher) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return linkerr.WithCause(linkerr.ErrNetwork, err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return linkerr.WithCause(linkerr.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := chain.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return linkerr.WithCause(linkerr.ErrRateLimited,
			fmt.Errorf("retry after %s", wait))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return chain.WrapRetryable(linkerr.WithDetails(linkerr.ErrNetwork, map[string]string{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		}))
	}
	if resp.StatusCode != http.StatusOK {
		return linkerr.WithDetails(linkerr.ErrNetwork, map[string]string{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return linkerr.WithCause(linkerr.ErrNetwork, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "malformed balance response")
	}
	return nil
}
