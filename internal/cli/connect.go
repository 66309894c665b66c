package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/service/connection"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level flag variables
var (
	// connectForce forces a fresh account-selection prompt even when a
	// wallet session already exists.
	connectForce bool
)

// connectionView is the state snapshot rendered by connect, disconnect
// and status.
type connectionView struct {
	Family    string `json:"family"`
	Address   string `json:"address,omitempty"`
	ChainID   string `json:"chain_id,omitempty"`
	Connected bool   `json:"connected"`
	Verified  string `json:"verified_at,omitempty"`
}

func viewOf(state connection.State) connectionView {
	view := connectionView{
		Family:    state.Family.String(),
		Address:   state.Address,
		ChainID:   state.ChainID,
		Connected: state.Connected,
	}
	if !state.VerifiedAt.IsZero() {
		view.Verified = state.VerifiedAt.UTC().Format(time.RFC3339)
	}
	return view
}

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var connectCmd = &cobra.Command{
	Use:   "connect <family>",
	Short: "Connect a wallet for a chain family",
	Long: `Connect a wallet for a chain family through the configured wallet
bridge. Reconnecting an already-connected family forces a fresh account
picker so a different account can be chosen.

Requires a signed-in user (store.user_id) and a bridge endpoint for the
family (networks.<family>.bridge).`,
	Example: `  walletlink connect stacks
  walletlink connect rootstock --force`,
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

		state, err := machine.Connect(cmd.Context(), connectForce)
		if err != nil {
			return err
		}

		if formatter.IsJSON() {
			return formatter.Print(viewOf(state))
		}
		return formatter.Printf("Connected %s wallet %s\n",
			family.DisplayName(), chain.ShortAddress(state.Address))
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	connectCmd.Flags().BoolVar(&connectForce, "force", false, "force a fresh account-selection prompt")
	rootCmd.AddCommand(connectCmd)
}
