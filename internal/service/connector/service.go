package connector

import (
	"context"
	"sync"
	"time"

	"github.com/noccbuild/walletlink/internal/config"
	"github.com/noccbuild/walletlink/internal/events"
	"github.com/noccbuild/walletlink/internal/service/connection"
	"github.com/noccbuild/walletlink/internal/store"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// DefaultStatusTTL is how long a checked connector status stays
// authoritative.
const DefaultStatusTTL = 5 * time.Minute

// Service owns app connector state for the signed-in user: it runs auth
// flows, keeps a short-lived status cache, persists grants through the
// profile store and broadcasts status changes.
type Service struct {
	cfg      config.ConnectorsConfig
	gateway  store.Gateway
	bus      events.Bus
	auth     connection.AuthProvider
	opener   Opener
	messages MessageSource
	logger   *config.Logger
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	statuses map[Provider]Status

	flowOpts []FlowOption
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithStatusTTL overrides the status cache TTL.
func WithStatusTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithServiceClock sets the time source. Used by tests.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithFlowOptions forwards options to every flow the service runs.
func WithFlowOptions(opts ...FlowOption) ServiceOption {
	return func(s *Service) {
		s.flowOpts = opts
	}
}

// NewService creates a connector service. The gateway must be non-nil:
// connector grants live in the profile store, so there is no degraded
// storeless mode. Callers without a configured store must not construct
// a Service.
func NewService(cfg config.ConnectorsConfig, gateway store.Gateway, bus events.Bus, auth connection.AuthProvider, opener Opener, messages MessageSource, logger *config.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = config.NullLogger()
	}

	s := &Service{
		cfg:      cfg,
		gateway:  gateway,
		bus:      bus,
		auth:     auth,
		opener:   opener,
		messages: messages,
		logger:   logger,
		ttl:      DefaultStatusTTL,
		now:      time.Now,
		statuses: make(map[Provider]Status),
	}
	if s.cfg.PopupTimeoutMinutes > 0 {
		s.flowOpts = append(s.flowOpts,
			WithTimeout(time.Duration(s.cfg.PopupTimeoutMinutes)*time.Minute))
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// providerConfig returns the config block for a connector.
func (s *Service) providerConfig(p Provider) (config.ConnectorConfig, error) {
	var cfg config.ConnectorConfig
	switch p {
	case GitHub:
		cfg = s.cfg.GitHub
	case Vercel:
		cfg = s.cfg.Vercel
	case Supabase:
		cfg = s.cfg.Supabase
	default:
		return config.ConnectorConfig{}, linkerr.WithDetails(linkerr.ErrUnknownConnector,
			map[string]string{"connector": p.String()})
	}
	if !cfg.Enabled {
		return config.ConnectorConfig{}, linkerr.New(linkerr.KindInput, "CONNECTOR_DISABLED",
			p.DisplayName()+" connector is disabled")
	}
	return cfg, nil
}

// Status returns the connection state for one connector. A status
// checked inside the TTL is served from cache; otherwise the persisted
// grant is read. A missing record reads as disconnected.
func (s *Service) Status(ctx context.Context, p Provider) (Status, error) {
	if _, err := s.providerConfig(p); err != nil {
		return Status{}, err
	}

	userID, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return Status{}, err
	}

	s.mu.Lock()
	cached, ok := s.statuses[p]
	now := s.now()
	s.mu.Unlock()
	if ok && now.Sub(cached.CheckedAt) < s.ttl {
		return cached, nil
	}

	status := Status{Provider: p, CheckedAt: now}
	rec, err := s.gateway.ReadConnector(ctx, userID, p.String())
	switch {
	case linkerr.Is(err, linkerr.ErrNotFound):
		// Never linked; disconnected.
	case err != nil:
		return Status{}, err
	default:
		status.Connected = rec.Connected
		status.AccountName = rec.AccountName
	}

	s.mu.Lock()
	s.statuses[p] = status
	s.mu.Unlock()
	return status, nil
}

// Statuses returns the state of every known connector, skipping
// disabled ones.
func (s *Service) Statuses(ctx context.Context) ([]Status, error) {
	out := make([]Status, 0, len(Providers()))
	for _, p := range Providers() {
		status, err := s.Status(ctx, p)
		if err != nil {
			if linkerr.KindOf(err) == linkerr.KindInput {
				continue
			}
			return nil, err
		}
		out = append(out, status)
	}
	return out, nil
}

// Connect runs the auth flow for a connector and persists the grant on
// completion. Cancellation and timeout come back as errors carrying
// their own kinds; the persisted state is untouched on every
// non-completed outcome.
func (s *Service) Connect(ctx context.Context, p Provider) (Status, error) {
	cfg, err := s.providerConfig(p)
	if err != nil {
		return Status{}, err
	}

	userID, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return Status{}, err
	}

	flow := NewFlow(p, cfg, s.cfg.Origin, s.opener, s.messages, s.logger, s.flowOpts...)
	result := flow.Run(ctx)
	if result.Outcome != OutcomeCompleted {
		return Status{}, result.Err
	}

	status := Status{
		Provider:    p,
		Connected:   true,
		AccountName: result.Grant.Username,
		CheckedAt:   s.now(),
	}
	s.commit(ctx, userID, status)
	return status, nil
}

// Disconnect clears a connector grant. Disconnecting an already
// disconnected connector is a no-op.
func (s *Service) Disconnect(ctx context.Context, p Provider) error {
	if _, err := s.providerConfig(p); err != nil {
		return err
	}

	userID, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	current, err := s.Status(ctx, p)
	if err != nil {
		return err
	}
	if !current.Connected {
		return nil
	}

	status := Status{Provider: p, CheckedAt: s.now()}
	s.commit(ctx, userID, status)
	return nil
}

// commit caches the status, persists it best-effort and broadcasts the
// change.
func (s *Service) commit(ctx context.Context, userID string, status Status) {
	s.mu.Lock()
	s.statuses[status.Provider] = status
	s.mu.Unlock()

	rec := store.ConnectorRecord{
		UserID:      userID,
		Provider:    status.Provider.String(),
		Connected:   status.Connected,
		AccountName: status.AccountName,
		UpdatedAt:   status.CheckedAt,
	}
	if err := s.gateway.UpsertConnector(ctx, rec); err != nil {
		s.logger.Error("persist %s connector state: %v", status.Provider, err)
	}

	s.bus.Publish(events.Event{
		Type:    events.TypeConnectorStatusChanged,
		Payload: status,
	})
}

// Invalidate drops the cached status for a connector so the next read
// hits the store.
func (s *Service) Invalidate(p Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.statuses, p)
}
