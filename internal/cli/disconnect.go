package cli

import (
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level command variables
var disconnectCmd = &cobra.Command{
	Use:   "disconnect <family>",
	Short: "Disconnect a wallet",
	Long: `Disconnect the wallet for a chain family. The local cache entry is
cleared and the profile store records the disconnect; the wallet itself
is asked to end the session best-effort. Disconnecting an already
disconnected family is a no-op.`,
	Example: `  walletlink disconnect stacks`,
	Args:    cobra.ExactArgs(1),
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

		state, err := machine.Disconnect(cmd.Context())
		if err != nil {
			return err
		}

		if formatter.IsJSON() {
			return formatter.Print(viewOf(state))
		}
		return formatter.Printf("Disconnected %s wallet\n", family.DisplayName())
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(disconnectCmd)
}
