package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/credit-relay/internal/application/credit"
	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/infrastructure/ledger"
	"github.com/credit-relay/internal/infrastructure/smtp"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	for _, f := range []string{".env.server", "server/.env.server", ".env"} {
		if godotenv.Load(f) == nil {
			break
		}
	}
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "creditctl",
		Short:         "Operate the credit relay's ledger and mail settings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newBalanceCommand())
	cmd.AddCommand(newHistoryCommand())
	cmd.AddCommand(newSpendCommand())
	cmd.AddCommand(newSMTPCheckCommand())
	return cmd
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func creditService() credit.Service {
	cfg := config.Load()
	return credit.NewService(ledger.NewClient(cfg.Ledger), credit.AccountFromConfig(cfg.Ledger), nil, time.Now)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Fetch the configured member's credit balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := creditService().Balance(commandContext(cmd), true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}
}

func newHistoryCommand() *cobra.Command {
	var (
		all   bool
		page  int
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List credit history, one page or every page",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := creditService()
			ctx := commandContext(cmd)
			if all {
				items, err := svc.HistoryAll(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), items)
			}
			v, err := svc.History(ctx, page, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "follow pages until the ledger reports no more")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (defaults to HISTORY_PAGE_LIMIT)")
	return cmd
}

func newSpendCommand() *cobra.Command {
	var (
		product string
		amount  float64
	)

	cmd := &cobra.Command{
		Use:   "spend",
		Short: "Spend credit for the configured member",
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount < 0 {
				return fmt.Errorf("--amount must be positive")
			}
			payload, err := creditService().Spend(commandContext(cmd), product, amount)
			if err != nil {
				return err
			}
			if len(payload) == 0 {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return err
			}
			return printJSON(cmd.OutOrStdout(), payload)
		},
	}

	cmd.Flags().StringVar(&product, "product", "", "product id (defaults to PRODUCT_ID_BALANCE)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "credit amount (defaults to CREDIT_SPEND_AMOUNT)")
	return cmd
}

func newSMTPCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "smtp-check",
		Short: "Connect and authenticate to the configured SMTP relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			relay, err := smtp.NewRelay(config.Load().SMTP)
			if err != nil {
				return err
			}
			if err := relay.Verify(commandContext(cmd)); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "smtp ok")
			return err
		},
	}
}
