// Package main provides the walletctl CLI for driving wallet connections
// from the command line.
package main

import (
	"os"

	"github.com/hashpoint/go-wallet-gateway/cmd/walletctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
