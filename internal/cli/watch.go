package cli

import (
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/events"
	"github.com/noccbuild/walletlink/internal/feed"
	"github.com/noccbuild/walletlink/internal/output"
	"github.com/noccbuild/walletlink/internal/service/balance"
	"github.com/noccbuild/walletlink/internal/store"
	linkerr "github.com/noccbuild/walletlink/pkg/errors"
)

// watchCmd follows a connected wallet's balances live: the transaction
// feed and the profile store change stream both turn into refresh hints,
// and every new balance set is printed as it lands.
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var watchCmd = &cobra.Command{
	Use:   "watch <family>",
	Short: "Follow balance updates for a connected wallet",
	Long: `Watches a connected wallet and prints balances as they change.
Confirmed transactions seen on the chain feed and connection changes in
the profile store both trigger a refresh. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		family, err := parseFamily(args[0])
		if err != nil {
			return err
		}

		rt, err := newRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		machine, err := rt.manager.Machine(family)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		state, err := machine.Reconcile(ctx)
		if err != nil {
			return err
		}
		if !state.Connected {
			return linkerr.WithSuggestion(linkerr.ErrNotFound,
				"connect a "+family.DisplayName()+" wallet first")
		}

		stopHints := rt.syncer.Start()
		defer stopHints()

		unsubUpdated := rt.bus.Subscribe(events.TypeBalanceUpdated, func(e events.Event) {
			set, ok := e.Payload.(balance.Set)
			if !ok {
				return
			}
			printBalanceLine(set)
		})
		defer unsubUpdated()

		// A hint alone only flags the address; fetch so the update
		// actually lands while we watch.
		unsubHints := rt.bus.Subscribe(events.TypeBalanceNeedsUpdate, func(e events.Event) {
			if e.Address == "" {
				return
			}
			go func() {
				if _, err := rt.syncer.Fetch(ctx, e.Family, e.Address, false); err != nil && ctx.Err() == nil {
					rt.logger.Error("refresh after update hint: %v", err)
				}
			}()
		})
		defer unsubHints()

		if family == chain.Stacks && rt.cfg.Networks.Stacks.FeedURL != "" {
			stopFeed, err := feed.NewStacks(rt.cfg.Networks.Stacks.FeedURL, rt.bus, rt.logger).
				Watch(ctx, state.Address)
			if err != nil {
				output.Warnf("transaction feed unavailable, updates may lag: %v", err)
			} else {
				defer stopFeed()
			}
		}

		if rt.gateway != nil {
			if userID, err := rt.auth.CurrentUser(ctx); err == nil {
				cancelChanges, err := rt.gateway.SubscribeChanges(ctx, userID, family,
					func(_ store.ConnectionRecord) {
						rt.syncer.MarkNeedsUpdate(family, state.Address)
					})
				if err != nil {
					rt.logger.Debug("store change stream unavailable: %v", err)
				} else {
					defer cancelChanges()
				}
			}
		}

		if _, err := rt.syncer.Fetch(ctx, family, state.Address, false); err != nil {
			return err
		}

		output.Infof("Watching %s wallet %s, Ctrl-C to stop",
			family.DisplayName(), chain.ShortAddress(state.Address))
		<-ctx.Done()
		return nil
	},
}

// printBalanceLine renders one balance set as a single line.
func printBalanceLine(set balance.Set) {
	symbols := make([]string, 0, len(set.Balances))
	for symbol := range set.Balances {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	parts := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		parts = append(parts, symbol+" "+set.Balances[symbol])
	}
	_ = formatter.Printf("%s  %s  %s\n",
		set.FetchedAt.Format("15:04:05"), chain.ShortAddress(set.Address), strings.Join(parts, "  "))
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(watchCmd)
}
