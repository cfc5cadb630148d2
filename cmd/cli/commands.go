package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/ledgerbook/internal/adapter/http/dto"
)

func postCmd(kind string, clientFn func() *client, asJSON func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " ACCOUNT AMOUNT",
		Short: fmt.Sprintf("Post a %s entry to an account", kind),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := decimal.NewFromString(args[1]); err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			var entry dto.EntryResponse
			raw, err := clientFn().postEntry(kind, args[0], args[1], &entry)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON() {
				return printJSON(out, raw)
			}
			fmt.Fprintf(out, "Posted %s of %s to %s\n", entry.AccountingType, entry.Amount, entry.AccountNumber)
			fmt.Fprintf(out, "Transaction: %s\n", entry.TransactionID)
			fmt.Fprintf(out, "Balance: %s\n", entry.Balance)
			return nil
		},
	}
}

func historyCmd(clientFn func() *client, asJSON func() bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history ACCOUNT",
		Short: "List an account's entries, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []dto.EntryResponse
			raw, err := clientFn().history(args[0], limit, &entries)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON() {
				return printJSON(out, raw)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entries")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tTYPE\tAMOUNT\tBALANCE\tTRANSACTION")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt, e.AccountingTypeCode, e.Amount, e.Balance, truncate(e.TransactionID, 16))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", -1, "Maximum number of entries (default: no limit)")

	return cmd
}

func entriesCmd(clientFn func() *client, asJSON func() bool) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List entries of every account, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []dto.EntrySummaryResponse
			raw, err := clientFn().entries(limit, &entries)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON() {
				return printJSON(out, raw)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "No entries")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tACCOUNT\tTYPE\tAMOUNT\tTRANSACTION")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.CreatedAt, e.AccountNumber, e.AccountingTypeCode, e.Amount, truncate(e.TransactionID, 16))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", -1, "Maximum number of entries (default: no limit)")

	return cmd
}

func balanceCmd(clientFn func() *client, asJSON func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "balance ACCOUNT",
		Short: "Show an account's current balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var balance dto.BalanceResponse
			raw, err := clientFn().balance(args[0], &balance)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON() {
				return printJSON(out, raw)
			}
			fmt.Fprintf(out, "%s: %s\n", balance.AccountNumber, balance.Balance)
			return nil
		},
	}
}

func reconcileCmd(clientFn func() *client, asJSON func() bool) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile ACCOUNT",
		Short: "Compare an account's balance with the sum of its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result dto.ReconciliationResponse
			raw, err := clientFn().reconcile(args[0], &result)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON() {
				if err := printJSON(out, raw); err != nil {
					return err
				}
			} else if result.IsReconciled {
				fmt.Fprintf(out, "Reconciliation PASSED for %s\n", result.AccountNumber)
				fmt.Fprintf(out, "Balance: %s\n", result.RecordedBalance)
			} else {
				fmt.Fprintf(out, "Reconciliation FAILED for %s\n", result.AccountNumber)
				fmt.Fprintf(out, "Recorded: %s\nCalculated: %s\nDifference: %s\n",
					result.RecordedBalance, result.CalculatedBalance, result.Difference)
			}

			if !result.IsReconciled {
				return fmt.Errorf("account %s is not reconciled", result.AccountNumber)
			}
			return nil
		},
	}
}

// printJSON re-indents a raw JSON response.
func printJSON(out io.Writer, raw []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(raw), "", "  "); err != nil {
		return err
	}
	buf.WriteByte('\n')
	_, err := out.Write(buf.Bytes())
	return err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
