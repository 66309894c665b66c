package config

// DefaultStacksAPIURL is the default Hiro Stacks API endpoint.
const DefaultStacksAPIURL = "https://api.mainnet.hiro.so"

// DefaultStacksFeedURL is the default Stacks websocket feed endpoint.
const DefaultStacksFeedURL = "wss://api.mainnet.hiro.so/extended/v1/ws"

// DefaultRootstockRPCURL is the default Rootstock RPC endpoint.
// The RSK public node requires no API key.
const DefaultRootstockRPCURL = "https://public-node.rsk.co"

// DefaultRootstockFallbackRPCs are backup Rootstock RPC endpoints tried
// when the primary fails.
//
//nolint:gochecknoglobals // Configuration default constant, same pattern as DefaultRootstockRPCURL
var DefaultRootstockFallbackRPCs = []string{
	"https://rpc.mainnet.rootstock.io",
}

// DefaultNOCCContract is the fully qualified NOCC token contract.
const DefaultNOCCContract = "SP32AEEF6WW5Y0NMJ1S8SBSZDAY8R5J32NBV7F78.nocc-token"

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.walletlink",
		Networks: NetworksConfig{
			Stacks: StacksNetworkConfig{
				Enabled: true,
				API:     DefaultStacksAPIURL,
				FeedURL: DefaultStacksFeedURL,
				Network: "mainnet",
				Token: TokenConfig{
					Symbol:   "NOCC",
					Contract: DefaultNOCCContract,
					Name:     "nocc",
					Decimals: 3,
				},
			},
			Rootstock: RootstockNetworkConfig{
				Enabled:      true,
				RPC:          DefaultRootstockRPCURL,
				FallbackRPCs: DefaultRootstockFallbackRPCs,
				ChainID:      "30",
			},
		},
		Cache: CacheConfig{
			TTLMinutes: 5,
		},
		Balance: BalanceConfig{
			DebounceMs:        1000,
			RequestsPerMinute: 30,
			Burst:             5,
		},
		Connectors: ConnectorsConfig{
			Origin:              "https://app.noccbuild.com",
			PopupTimeoutMinutes: 5,
			GitHub: ConnectorConfig{
				Enabled: true,
				AuthURL: "https://github.com/login/oauth/authorize",
			},
			Vercel: ConnectorConfig{
				Enabled: true,
				AuthURL: "https://vercel.com/integrations/nocc/new",
			},
			Supabase: ConnectorConfig{
				Enabled: true,
				AuthURL: "https://api.supabase.com/v1/oauth/authorize",
			},
		},
		Store: StoreConfig{
			URL:    "",
			APIKey: "",
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
			File:  "~/.walletlink/walletlink.log",
		},
	}
}
