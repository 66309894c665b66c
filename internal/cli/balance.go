package cli

import (
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/output"
	"github.com/noccbuild/walletlink/internal/service/balance"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// balanceRefresh drops the cached set and fetches fresh values.
	balanceRefresh bool
	// balanceCachedOnly shows cached data only, skipping network calls.
	balanceCachedOnly bool
)

// balanceView is the balance snapshot rendered by the balance command.
type balanceView struct {
	Family    string            `json:"family"`
	Address   string            `json:"address"`
	Balances  map[string]string `json:"balances"`
	FetchedAt string            `json:"fetched_at"`
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var balanceCmd = &cobra.Command{
	Use:   "balance <family> [address]",
	Short: "Show token balances",
	Long: `Show token balances for the connected wallet of a chain family, or
for an explicit address.

Balances are cached for five minutes and repeat requests inside the
debounce window reuse the previous result. When a refresh fails, the
last fetched values stay visible.`,
	Example: `  walletlink balance stacks
  walletlink balance stacks SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7
  walletlink balance rootstock --refresh`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		family, err := parseFamily(args[0])
		if err != nil {
			return err
		}
		if balanceRefresh && balanceCachedOnly {
			return linkerr.New(linkerr.KindInput, "INVALID_INPUT",
				"cannot use --refresh and --cached together")
		}

		rt, err := newRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		address := ""
		if len(args) == 2 {
			address = args[1]
		} else {
			machine, err := rt.manager.Machine(family)
			if err != nil {
				return err
			}
			state, err := machine.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			if !state.Connected {
				return linkerr.WithSuggestion(linkerr.ErrNotFound,
					"connect a "+family.DisplayName()+" wallet first, or pass an address")
			}
			address = state.Address
		}

		var set balance.Set
		switch {
		case balanceCachedOnly:
			cached, ok := rt.syncer.Cached(family, address)
			if !ok {
				return linkerr.WithSuggestion(linkerr.ErrCacheNotFound,
					"run without --cached to fetch balances")
			}
			set = cached
		case balanceRefresh:
			set, err = rt.syncer.Refresh(cmd.Context(), family, address)
		default:
			set, err = rt.syncer.Fetch(cmd.Context(), family, address, false)
		}
		if err != nil {
			return err
		}

		view := balanceView{
			Family:    set.Family.String(),
			Address:   set.Address,
			Balances:  set.Balances,
			FetchedAt: set.FetchedAt.UTC().Format(time.RFC3339),
		}
		if formatter.IsJSON() {
			return formatter.Print(view)
		}

		symbols := make([]string, 0, len(set.Balances))
		for symbol := range set.Balances {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)

		table := output.NewTable("ASSET", "BALANCE")
		for _, symbol := range symbols {
			table.AddRow(symbol, set.Balances[symbol])
		}
		if err := formatter.Printf("%s (%s)\n", chain.ShortAddress(address), family.DisplayName()); err != nil {
			return err
		}
		return table.Render(formatter.Writer())
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	balanceCmd.Flags().BoolVar(&balanceRefresh, "refresh", false, "force a fresh fetch, ignoring the cache")
	balanceCmd.Flags().BoolVar(&balanceCachedOnly, "cached", false, "show cached balances only, no network calls")
	rootCmd.AddCommand(balanceCmd)
}
