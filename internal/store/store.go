// Package store is the persistence gateway for wallet connections and
// app connector grants. The backing service speaks a PostgREST-style
// HTTP API with a websocket change feed.
package store

import (
	"context"
	"time"

	"github.com/noccbuild/walletlink/internal/chain"
)

// ConnectionRecord mirrors one persisted wallet connection. A user holds
// at most one record per chain family; disconnects flip Connected to
// false, rows are never deleted.
type ConnectionRecord struct {
	UserID    string       `json:"user_id"`
	Family    chain.Family `json:"wallet_type"`
	Address   string       `json:"address"`
	PublicKey string       `json:"public_key,omitempty"`
	ChainID   string       `json:"chain_id,omitempty"`
	Connected bool         `json:"connected"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ConnectorRecord mirrors one persisted app connector grant.
type ConnectorRecord struct {
	UserID      string    `json:"user_id"`
	Provider    string    `json:"provider"`
	Connected   bool      `json:"connected"`
	AccountName string    `json:"account_name,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Gateway defines the persistence operations the services depend on.
// Every failure is returned as a persistence error so callers can decide
// to log and move on.
type Gateway interface {
	// ReadConnection loads the stored connection for a user and family.
	// Returns ErrNotFound when no record exists.
	ReadConnection(ctx context.Context, userID string, family chain.Family) (*ConnectionRecord, error)

	// UpsertConnection writes the connection record, replacing any
	// previous record for the same user and family.
	UpsertConnection(ctx context.Context, rec ConnectionRecord) error

	// ReadConnector loads the stored grant for an app connector.
	// Returns ErrNotFound when no record exists.
	ReadConnector(ctx context.Context, userID, provider string) (*ConnectorRecord, error)

	// UpsertConnector writes an app connector grant.
	UpsertConnector(ctx context.Context, rec ConnectorRecord) error

	// SubscribeChanges streams connection changes for a user and family
	// until the returned cancel function runs or the context ends.
	// Returns an error only when the feed cannot be established.
	SubscribeChanges(ctx context.Context, userID string, family chain.Family, fn func(ConnectionRecord)) (cancel func(), err error)
}
