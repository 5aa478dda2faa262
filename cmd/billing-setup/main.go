package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "billing-setup",
	Short: "Billing catalog maintenance",
	Long: `billing-setup prepares the billing provider for plan-gate-server.

It creates the PRO and LEGENDARY products and their monthly and yearly
prices when they are missing, and records the price ids locally.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(ensurePricesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
