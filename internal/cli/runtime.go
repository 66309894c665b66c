package cli

import (
	"context"
	"path/filepath"

	"github.com/noccbuild/walletlink/internal/cache"
	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/config"
	"github.com/noccbuild/walletlink/internal/events"
	"github.com/noccbuild/walletlink/internal/provider"
	"github.com/noccbuild/walletlink/internal/service/balance"
	"github.com/noccbuild/walletlink/internal/service/connection"
	"github.com/noccbuild/walletlink/internal/store"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// cacheFileName is the connection cache file under the data directory.
const cacheFileName = "connections.json"

// configAuth resolves the signed-in user from configuration.
type configAuth struct {
	userID string
}

// CurrentUser returns the configured user id.
func (a *configAuth) CurrentUser(context.Context) (string, error) {
	if a.userID == "" {
		return "", linkerr.WithSuggestion(linkerr.ErrAuthenticationRequired,
			"set store.user_id in config or "+config.EnvUserID)
	}
	return a.userID, nil
}

// runtime wires the services the commands run against.
type runtime struct {
	cfg     *config.Config
	logger  *config.Logger
	bus     events.Bus
	cache   *cache.ConnectionCache
	storage *cache.FileStorage
	gateway store.Gateway
	auth    connection.AuthProvider
	manager *connection.Manager
	syncer  *balance.Synchronizer
}

// newRuntime builds the service graph from the loaded configuration.
// The connection cache is primed from disk and flushed back on close.
func newRuntime(cfg *config.Config, logger *config.Logger) (*runtime, error) {
	rt := &runtime{
		cfg:    cfg,
		logger: logger,
		bus:    events.NewBus(),
		auth:   &configAuth{userID: cfg.Store.UserID},
	}

	rt.storage = cache.NewFileStorage(filepath.Join(cfg.GetHome(), cacheFileName))
	loaded, err := rt.storage.Load(cache.WithTTL(cfg.CacheTTL()))
	if err != nil {
		// A corrupt file was quarantined; run on the fresh cache.
		logger.Error("connection cache load: %v", err)
	}
	rt.cache = loaded

	if cfg.Store.URL != "" {
		rt.gateway = store.NewClient(cfg.Store.URL, cfg.Store.APIKey, logger)
	}

	providers := make(map[chain.Family]provider.Provider)
	if cfg.Networks.Stacks.Enabled {
		var transport provider.Transport
		if cfg.Networks.Stacks.Bridge != "" {
			transport = provider.NewHTTPTransport(cfg.Networks.Stacks.Bridge)
		}
		providers[chain.Stacks] = provider.NewStacks(transport, cfg.Networks.Stacks.Network, logger)
	}

	var rootstockTransport provider.Transport
	if cfg.Networks.Rootstock.Enabled {
		var transport provider.Transport
		if cfg.Networks.Rootstock.Bridge != "" {
			transport = provider.NewHTTPTransport(cfg.Networks.Rootstock.Bridge)
		}
		providers[chain.Rootstock] = provider.NewRootstock(transport, logger)

		rootstockTransport = transport
		if rootstockTransport == nil && cfg.Networks.Rootstock.RPC != "" {
			// Read-only balance calls work against a plain node.
			rootstockTransport = provider.NewHTTPTransport(cfg.Networks.Rootstock.RPC)
		}
	}

	rt.manager = connection.NewManager(providers, connection.Deps{
		Cache:   rt.cache,
		Gateway: rt.gateway,
		Bus:     rt.bus,
		Auth:    rt.auth,
		Logger:  logger,
	})

	var fetchers []balance.Fetcher
	if cfg.Networks.Stacks.Enabled {
		limiter := chain.NewRateLimiterPerMinute(
			cfg.Balance.RequestsPerMinute, cfg.Balance.Burst)
		fetchers = append(fetchers, balance.NewStacksFetcher(
			cfg.Networks.Stacks.API, cfg.Networks.Stacks.Token, limiter, logger))
	}
	if rootstockTransport != nil {
		fetchers = append(fetchers, balance.NewRootstockFetcher(rootstockTransport))
	}
	rt.syncer = balance.NewSynchronizer(fetchers, rt.bus, logger,
		balance.WithDebounce(cfg.BalanceDebounce()))

	return rt, nil
}

// close flushes the connection cache back to disk.
func (rt *runtime) close() {
	if err := rt.storage.Save(rt.cache); err != nil {
		rt.logger.Error("connection cache save: %v", err)
	}
	rt.manager.Close()
}
