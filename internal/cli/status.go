package cli

import (
	"github.com/spf13/cobra"

	"github.com/noccbuild/walletlink/internal/chain"
	"github.com/noccbuild/walletlink/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var statusCmd = &cobra.Command{
	Use:   "status [family]",
	Short: "Show wallet connection state",
	Long: `Show the connection state for one or all chain families.

Cached state is shown immediately; entries past half their lifetime are
re-verified against the profile store in the background, and expired
entries are re-read before display.`,
	Example: `  walletlink status
  walletlink status rootstock`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cfg, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		families := chain.Families()
		if len(args) == 1 {
			family, err := parseFamily(args[0])
			if err != nil {
				return err
			}
			families = []chain.Family{family}
		}

		views := make([]connectionView, 0, len(families))
		for _, family := range families {
			machine, err := rt.manager.Machine(family)
			if err != nil {
				// Families without a provider still show as disconnected.
				views = append(views, connectionView{Family: family.String()})
				continue
			}
			state, err := machine.Reconcile(cmd.Context())
			if err != nil {
				return err
			}
			views = append(views, viewOf(state))
		}

		if formatter.IsJSON() {
			return formatter.Print(views)
		}

		table := output.NewTable("FAMILY", "STATUS", "ADDRESS", "CHAIN")
		for _, view := range views {
			status := "disconnected"
			address := "-"
			chainID := "-"
			if view.Connected {
				status = "connected"
				address = chain.ShortAddress(view.Address)
				chainID = view.ChainID
			}
			table.AddRow(view.Family, status, address, chainID)
		}
		return table.Render(formatter.Writer())
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(statusCmd)
}
