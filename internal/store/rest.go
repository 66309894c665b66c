package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

const (
	connectionsTable = "wallet_connections"
	connectorsTable  = "app_connectors"

	defaultHTTPTimeout = 15 * time.Second
)

// Client talks to the profile store over its REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *config.Logger
}

// Compile-time interface check
var _ Gateway = (*Client)(nil)

// NewClient creates a store client for the given base URL and API key.
func NewClient(baseURL, apiKey string, logger *config.Logger) *Client {
	if logger == nil {
		logger = config.NullLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     logger,
	}
}

// SetHTTPClient overrides the HTTP client. Used by tests.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// ReadConnection loads the stored connection for a user and family.
func (c *Client) ReadConnection(ctx context.Context, userID string, family chain.Family) (*ConnectionRecord, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("wallet_type", "eq."+family.String())
	query.Set("limit", "1")

	body, err := c.do(ctx, http.MethodGet, connectionsTable, query, nil, "")
	if err != nil {
		return nil, err
	}

	var records []ConnectionRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, linkerr.WithCause(linkerr.ErrPersistence, err)
	}
	if len(records) == 0 {
		return nil, linkerr.WithDetails(linkerr.ErrNotFound, map[string]string{
			"family": family.String(),
		})
	}

	return &records[0], nil
}

// UpsertConnection writes the connection record, replacing any previous
// record for the same user and family.
func (c *Client) UpsertConnection(ctx context.Context, rec ConnectionRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	query := url.Values{}
	query.Set("on_conflict", "user_id,wallet_type")

	payload, err := json.Marshal([]ConnectionRecord{rec})
	if err != nil {
		return linkerr.WithCause(linkerr.ErrPersistence, err)
	}

	_, err = c.do(ctx, http.MethodPost, connectionsTable, query, payload, "resolution=merge-duplicates")
	return err
}

// ReadConnector loads the stored grant for an app connector.
func (c *Client) ReadConnector(ctx context.Context, userID, provider string) (*ConnectorRecord, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("provider", "eq."+provider)
	query.Set("limit", "1")

	body, err := c.do(ctx, http.MethodGet, connectorsTable, query, nil, "")
	if err != nil {
		return nil, err
	}

	var records []ConnectorRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, linkerr.WithCause(linkerr.ErrPersistence, err)
	}
	if len(records) == 0 {
		return nil, linkerr.WithDetails(linkerr.ErrNotFound, map[string]string{
			"provider": provider,
		})
	}

	return &records[0], nil
}

// UpsertConnector writes an app connector grant.
func (c *Client) UpsertConnector(ctx context.Context, rec ConnectorRecord) error {
	rec.UpdatedAt = time.Now().UTC()

	query := url.Values{}
	query.Set("on_conflict", "user_id,provider")

	payload, err := json.Marshal([]ConnectorRecord{rec})
	if err != nil {
		return linkerr.WithCause(linkerr.ErrPersistence, err)
	}

	_, err = c.do(ctx, http.MethodPost, connectorsTable, query, payload, "resolution=merge-duplicates")
	return err
}

// do performs one REST request and returns the response body. Transport
// and server failures come back as persistence errors.
func (c *Client) do(ctx context.Context, method, table string, query url.Values, payload []byte, prefer string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrPersistence, err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrPersistence, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrPersistence, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("store %s %s returned %d", method, table, resp.StatusCode)
		return nil, linkerr.WithDetails(linkerr.ErrPersistence, map[string]string{
			"status": fmt.Sprintf("%d", resp.StatusCode),
			"table":  table,
		})
	}

	return data, nil
}
