package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/events"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

const watchedAddress = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

// hintRecorder collects balance refresh hints from the bus.
type hintRecorder struct {
	mu    sync.Mutex
	hints []events.Event
}

func (r *hintRecorder) record(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hints = append(r.hints, e)
}

func (r *hintRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hints)
}

func (r *hintRecorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hints[len(r.hints)-1]
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

// TestWatchPublishesOnConfirmedTx tests the feed end to end against a
// local websocket server: confirmed transactions for the watched
// address publish refresh hints; pending transactions and other
// addresses do not.
func TestWatchPublishesOnConfirmedTx(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		// Expect the subscribe frame first.
		var sub rpcFrame
		require.NoError(t, conn.ReadJSON(&sub))
		assert.Equal(t, "subscribe", sub.Method)
		assert.Contains(t, string(sub.Params), watchedAddress)

		push := func(address, status string) {
			_ = conn.WriteJSON(map[string]any{
				"jsonrpc": "2.0",
				"method":  "address_tx_update",
				"params": map[string]any{
					"address":   address,
					"tx_id":     "0xabc",
					"tx_status": status,
				},
			})
		}

		push(watchedAddress, "pending")
		push("SP3FBR2AGK5H9QBDH3EEN6DF8EK8JY7RX8QJ5SVTE", "success")
		push(watchedAddress, "abort_by_response")
		push(watchedAddress, "success")

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	bus := events.NewBus()
	rec := &hintRecorder{}
	bus.Subscribe(events.TypeBalanceNeedsUpdate, rec.record)

	feed := NewStacks(wsURL(srv.URL), bus, nil)
	stop, err := feed.Watch(context.Background(), watchedAddress)
	require.NoError(t, err)
	defer stop()

	require.Eventually(t, func() bool { return rec.count() == 1 },
		5*time.Second, 10*time.Millisecond)

	hint := rec.last()
	assert.Equal(t, chain.Stacks, hint.Family)
	assert.Equal(t, watchedAddress, hint.Address)

	// Only the confirmed transaction for the watched address counted.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

// TestWatchStopIdempotent tests that stop tears the feed down exactly
// once and repeat calls are safe.
func TestWatchStopIdempotent(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	closed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		var sub rpcFrame
		require.NoError(t, conn.ReadJSON(&sub))

		_, _, _ = conn.ReadMessage()
		close(closed)
	}))
	defer srv.Close()

	feed := NewStacks(wsURL(srv.URL), events.NewBus(), nil)
	stop, err := feed.Watch(context.Background(), watchedAddress)
	require.NoError(t, err)

	stop()
	stop()

	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for socket teardown")
	}
}

// TestWatchDialFailure tests that an unreachable feed surfaces as a
// network error.
func TestWatchDialFailure(t *testing.T) {
	t.Parallel()

	feed := NewStacks("ws://127.0.0.1:1", events.NewBus(), nil)
	_, err := feed.Watch(context.Background(), watchedAddress)
	require.Error(t, err)
	assert.True(t, linkerr.Is(err, linkerr.ErrNetwork))
}

// TestConfirmed tests the terminal-status predicate.
func TestConfirmed(t *testing.T) {
	t.Parallel()

	assert.True(t, confirmed("success"))
	assert.False(t, confirmed("pending"))
	assert.False(t, confirmed("abort_by_response"))
	assert.False(t, confirmed(""))
}
