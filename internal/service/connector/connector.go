// Package connector links third-party app accounts (GitHub, Vercel,
// Supabase) to the signed-in user through a popup OAuth flow. The
// completion handshake arrives as a typed message from the OAuth
// callback service; connection status is cached briefly and persisted
// through the profile store.
package connector

import (
	"strings"
	"time"

	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// Provider identifies one third-party app connector.
type Provider string

const (
	GitHub   Provider = "github"
	Vercel   Provider = "vercel"
	Supabase Provider = "supabase"
)

// Providers returns all known connectors in display order.
func Providers() []Provider {
	return []Provider{GitHub, Vercel, Supabase}
}

// String returns the canonical lowercase name.
func (p Provider) String() string {
	return string(p)
}

// IsValid reports whether p names a known connector.
func (p Provider) IsValid() bool {
	switch p {
	case GitHub, Vercel, Supabase:
		return true
	}
	return false
}

// DisplayName returns the human-facing name.
func (p Provider) DisplayName() string {
	switch p {
	case GitHub:
		return "GitHub"
	case Vercel:
		return "Vercel"
	case Supabase:
		return "Supabase"
	default:
		return string(p)
	}
}

// MessageType returns the completion message tag the OAuth callback
// service posts for this connector.
func (p Provider) MessageType() string {
	return string(p) + "_auth_complete"
}

// ParseProvider resolves a user-supplied connector name.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", linkerr.WithDetails(linkerr.ErrUnknownConnector, map[string]string{
			"connector": s,
		})
	}
	return p, nil
}

// Grant is the account data delivered by a completed auth handshake.
type Grant struct {
	Username    string `json:"username"`
	ID          string `json:"id"`
	AccessToken string `json:"access_token"`
}

// Status is the connection state of one connector for the current user.
type Status struct {
	Provider    Provider
	Connected   bool
	AccountName string
	CheckedAt   time.Time
}
