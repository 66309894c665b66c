package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// HTTPTransport speaks JSON-RPC 2.0 over HTTP POST. It serves two
// surfaces: a local wallet bridge exposing the injected provider's
// methods, and plain node RPC endpoints for read-only calls. HTTP
// cannot push, so Subscribe delivers nothing.
type HTTPTransport struct {
	url        string
	httpClient *http.Client
	nextID     atomic.Int64
}

// NewHTTPTransport creates a transport for the given endpoint.
func NewHTTPTransport(url string) *HTTPTransport {
	return &HTTPTransport{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SetHTTPClient overrides the HTTP client. Used by tests.
func (t *HTTPTransport) SetHTTPClient(client *http.Client) {
	t.httpClient = client
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Request performs a single JSON-RPC call.
func (t *HTTPTransport) Request(ctx context.Context, method string, params any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      t.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrNetwork, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(payload))
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, linkerr.WithDetails(linkerr.ErrNetwork, map[string]string{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrNetwork, err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, linkerr.New(linkerr.KindNetwork, "MALFORMED_RESPONSE", "malformed rpc response")
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	return decoded.Result, nil
}

// Subscribe is a no-op over HTTP; events never arrive.
func (t *HTTPTransport) Subscribe(string, func(json.RawMessage)) func() {
	return func() {}
}
