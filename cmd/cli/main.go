package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL string
		timeout time.Duration
		asJSON  bool
	)

	rootCmd := &cobra.Command{
		Use:           "ledgerbook-cli",
		Short:         "Ledgerbook CLI tool",
		Long:          `A command line interface for interacting with the Ledgerbook API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://localhost:8080", "Base URL of the Ledgerbook API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "Request timeout")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print raw JSON responses")

	clientFn := func() *client { return newClient(baseURL, timeout) }
	outputFn := func() bool { return asJSON }

	rootCmd.AddCommand(
		postCmd("credit", clientFn, outputFn),
		postCmd("debit", clientFn, outputFn),
		historyCmd(clientFn, outputFn),
		entriesCmd(clientFn, outputFn),
		balanceCmd(clientFn, outputFn),
		reconcileCmd(clientFn, outputFn),
	)

	return rootCmd
}
