// Command walletlink manages wallet connections and balance
// synchronization for Stacks and Rootstock accounts from the terminal.
package main

import (
	"os"

	"github.com/noccbuild/walletlink/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
