package main

import (
	"os"

	"github.com/spf13/cobra"

	"payguard/internal/interfaces/cli/migrate"
	"payguard/internal/interfaces/cli/server"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "payguard",
		Short: "Payguard - payment verification and auto-approval engine",
		Long:  `Payguard verifies manually reported USDT payments against on-chain evidence and auto-approves the ones with sufficient confidence.`,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
