package connector

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noccbuild/walletlink/internal/config"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// Outcome classifies how an auth flow ended.
type Outcome int

const (
	// OutcomeCompleted means the handshake delivered a grant.
	OutcomeCompleted Outcome = iota

	// OutcomeCancelled means the user closed the popup or the caller
	// cancelled the context.
	OutcomeCancelled

	// OutcomeTimedOut means no completion arrived before the deadline.
	OutcomeTimedOut

	// OutcomeFailed means the flow could not run at all.
	OutcomeFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the terminal state of one auth flow.
type Result struct {
	Outcome Outcome
	Grant   Grant
	Err     error
}

// DefaultPopupTimeout bounds how long a flow waits for completion.
const DefaultPopupTimeout = 5 * time.Minute

// closedPollInterval is how often the flow checks whether the user
// dismissed the popup.
const closedPollInterval = time.Second

// Flow runs one popup auth handshake for a single connector. A Flow is
// single-use.
type Flow struct {
	provider Provider
	cfg      config.ConnectorConfig
	origin   string
	timeout  time.Duration
	poll     time.Duration
	opener   Opener
	messages MessageSource
	logger   *config.Logger
	newNonce func() string
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithTimeout overrides the completion deadline.
func WithTimeout(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithPollInterval overrides the popup-closed poll cadence. Used by
// tests.
func WithPollInterval(d time.Duration) FlowOption {
	return func(f *Flow) {
		if d > 0 {
			f.poll = d
		}
	}
}

// WithNonce overrides the state nonce source. Used by tests.
func WithNonce(fn func() string) FlowOption {
	return func(f *Flow) {
		f.newNonce = fn
	}
}

// NewFlow creates an auth flow for one connector.
func NewFlow(provider Provider, cfg config.ConnectorConfig, origin string, opener Opener, messages MessageSource, logger *config.Logger, opts ...FlowOption) *Flow {
	if logger == nil {
		logger = config.NullLogger()
	}

	f := &Flow{
		provider: provider,
		cfg:      cfg,
		origin:   origin,
		timeout:  DefaultPopupTimeout,
		poll:     closedPollInterval,
		opener:   opener,
		messages: messages,
		logger:   logger,
		newNonce: uuid.NewString,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes the flow to a terminal outcome. The message listener is
// removed exactly once on every path, and the popup is closed on
// timeout and cancellation.
func (f *Flow) Run(ctx context.Context) Result {
	authURL, err := f.authURL()
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: err}
	}

	popup, err := f.opener.Open(authURL)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Err: linkerr.WithCause(linkerr.ErrPopupBlocked, err)}
	}

	grants := make(chan Grant, 1)
	unsub := f.messages.Listen(func(msg Message) {
		if msg.Origin != f.origin || msg.Type != f.provider.MessageType() {
			return
		}
		var grant Grant
		if err := json.Unmarshal(msg.Data, &grant); err != nil {
			f.logger.Error("%s auth completion undecodable: %v", f.provider, err)
			return
		}
		select {
		case grants <- grant:
		default:
		}
	})

	var once sync.Once
	teardown := func() {
		once.Do(unsub)
	}
	defer teardown()

	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()
	deadline := time.NewTimer(f.timeout)
	defer deadline.Stop()

	for {
		select {
		case grant := <-grants:
			popup.Close()
			return Result{Outcome: OutcomeCompleted, Grant: grant}

		case <-ticker.C:
			if popup.Closed() {
				return Result{Outcome: OutcomeCancelled, Err: linkerr.ErrUserRejected}
			}

		case <-deadline.C:
			popup.Close()
			return Result{Outcome: OutcomeTimedOut, Err: linkerr.ErrTimedOut}

		case <-ctx.Done():
			popup.Close()
			return Result{Outcome: OutcomeCancelled, Err: linkerr.WithCause(linkerr.ErrUserRejected, ctx.Err())}
		}
	}
}

// authURL builds the provider auth URL with client id and a fresh state
// nonce.
func (f *Flow) authURL() (string, error) {
	parsed, err := url.Parse(f.cfg.AuthURL)
	if err != nil {
		return "", linkerr.WithCause(linkerr.ErrConfigInvalid, err)
	}

	query := parsed.Query()
	query.Set("client_id", f.cfg.ClientID)
	query.Set("state", f.newNonce())
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}
