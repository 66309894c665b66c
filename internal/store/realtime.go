package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/noccbuild/walletlink/internal/chain"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

const heartbeatInterval = 30 * time.Second

// realtimeMessage is the framing used on the change feed socket.
type realtimeMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Ref     int             `json:"ref"`
}

// changePayload carries the row for an insert or update event.
type changePayload struct {
	Type   string           `json:"type"`
	Record ConnectionRecord `json:"record"`
}

// SubscribeChanges streams connection changes for a user and family until
// the returned cancel function runs or the context ends. Feed errors
// after establishment are logged and end the stream; they never reach the
// caller. The caller's function runs on the reader goroutine and must not
// block.
func (c *Client) SubscribeChanges(ctx context.Context, userID string, family chain.Family, fn func(ConnectionRecord)) (func(), error) {
	wsURL := realtimeURL(c.baseURL, c.apiKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, linkerr.WithCause(linkerr.ErrPersistence, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	topic := fmt.Sprintf("realtime:%s:user_id=eq.%s", connectionsTable, userID)
	join := realtimeMessage{Topic: topic, Event: "phx_join", Ref: 1}
	if err := conn.WriteJSON(join); err != nil {
		_ = conn.Close()
		return nil, linkerr.WithCause(linkerr.ErrPersistence, err)
	}

	subCtx, cancelCtx := context.WithCancel(ctx)

	// Closing the socket unblocks the read loop.
	go func() {
		<-subCtx.Done()
		_ = conn.Close()
	}()

	go c.heartbeat(subCtx, conn)
	go c.readChanges(subCtx, conn, userID, family, fn)

	var once sync.Once
	return func() {
		once.Do(cancelCtx)
	}, nil
}

// readChanges consumes the feed until the socket closes.
func (c *Client) readChanges(ctx context.Context, conn *websocket.Conn, userID string, family chain.Family, fn func(ConnectionRecord)) {
	for {
		var msg realtimeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				c.logger.Error("change feed closed: %v", err)
			}
			return
		}

		switch msg.Event {
		case "INSERT", "UPDATE", "postgres_changes":
			var change changePayload
			if err := json.Unmarshal(msg.Payload, &change); err != nil {
				c.logger.Error("dropping malformed change payload: %v", err)
				continue
			}
			if change.Record.UserID != "" && change.Record.UserID != userID {
				continue
			}
			if change.Record.Family != "" && change.Record.Family != family {
				continue
			}
			fn(change.Record)
		default:
			// joins, heartbeat replies and presence frames
		}
	}
}

// heartbeat keeps the socket alive while the subscription runs.
func (c *Client) heartbeat(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	ref := 2
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ref++
			msg := realtimeMessage{Topic: "phoenix", Event: "heartbeat", Ref: ref}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}

// realtimeURL converts the REST base URL into its websocket endpoint.
func realtimeURL(baseURL, apiKey string) string {
	ws := baseURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return fmt.Sprintf("%s/realtime/v1/websocket?apikey=%s", ws, apiKey)
}
