package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noccbuild/walletlink/internal/chain"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// TestRealtimeURL tests REST to websocket URL conversion.
func TestRealtimeURL(t *testing.T) {
	t.Parallel()

	assert.Equal(t,
		"wss://store.example.com/realtime/v1/websocket?apikey=k",
		realtimeURL("https://store.example.com", "k"))
	assert.Equal(t,
		"ws://127.0.0.1:8080/realtime/v1/websocket?apikey=k",
		realtimeURL("http://127.0.0.1:8080", "k"))
}

// TestSubscribeChanges tests the change feed end to end against a local
// websocket server.
func TestSubscribeChanges(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/realtime/v1/websocket", r.URL.Path)
		require.Equal(t, "anon-key", r.URL.Query().Get("apikey"))

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		// Expect the join frame first.
		var join realtimeMessage
		require.NoError(t, conn.ReadJSON(&join))
		assert.Equal(t, "phx_join", join.Event)
		assert.Contains(t, join.Topic, "user_id=eq.user-1")

		// Ack, then push one matching change, one for another user and
		// one for another family.
		_ = conn.WriteJSON(realtimeMessage{Topic: join.Topic, Event: "phx_reply", Ref: join.Ref})
		_ = conn.WriteJSON(map[string]any{
			"topic": join.Topic,
			"event": "UPDATE",
			"payload": map[string]any{
				"type": "UPDATE",
				"record": map[string]any{
					"user_id":     "user-1",
					"wallet_type": "stacks",
					"address":     "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
					"connected":   true,
				},
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"topic": join.Topic,
			"event": "UPDATE",
			"payload": map[string]any{
				"type":   "UPDATE",
				"record": map[string]any{"user_id": "somebody-else", "wallet_type": "stacks"},
			},
		})
		_ = conn.WriteJSON(map[string]any{
			"topic": join.Topic,
			"event": "UPDATE",
			"payload": map[string]any{
				"type":   "UPDATE",
				"record": map[string]any{"user_id": "user-1", "wallet_type": "rootstock"},
			},
		})

		// Hold the socket open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	received := make(chan ConnectionRecord, 4)
	client := NewClient(srv.URL, "anon-key", nil)

	cancel, err := client.SubscribeChanges(context.Background(), "user-1", chain.Stacks, func(rec ConnectionRecord) {
		received <- rec
	})
	require.NoError(t, err)
	defer cancel()

	select {
	case rec := <-received:
		assert.Equal(t, chain.Stacks, rec.Family)
		assert.Equal(t, "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7", rec.Address)
		assert.True(t, rec.Connected)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change event")
	}

	// Changes for other users and other families were filtered out.
	select {
	case rec := <-received:
		t.Fatalf("unexpected record for %s/%s", rec.UserID, rec.Family)
	case <-time.After(100 * time.Millisecond):
	}

	// Cancel is safe to call more than once.
	cancel()
	cancel()
}

// TestSubscribeChanges_DialFailure tests that an unreachable feed surfaces
// as a persistence error, leaving the caller free to degrade.
func TestSubscribeChanges_DialFailure(t *testing.T) {
	t.Parallel()

	client := NewClient("http://127.0.0.1:1", "anon-key", nil)
	_, err := client.SubscribeChanges(context.Background(), "user-1", chain.Stacks, func(ConnectionRecord) {})
	require.Error(t, err)
	assert.ErrorIs(t, err, linkerr.ErrPersistence)
}
