package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/budget-engine/budget"
	"github.com/warp/budget-engine/factory"
	"github.com/warp/budget-engine/generic"
)

var (
	paycheckNextPay string
	paycheckDebt    string
	historyLimit    int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show balances, debt and today's snack allowance",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openService()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := svc.Snapshot(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), st, generic.DateOf(svc.Now()))
		return nil
	},
}

var paycheckCmd = &cobra.Command{
	Use:   "paycheck <amount>",
	Short: "Allocate a paycheck across the buckets",
	Example: `  budgetd paycheck 1000 --next-pay 2025-03-10
  budgetd paycheck 1250.50 --next-pay 2025-03-14 --debt 300`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deposit, err := generic.ParseMoney(args[0])
		if err != nil {
			return err
		}
		nextPay, err := generic.ParseDate(paycheckNextPay)
		if err != nil {
			return err
		}
		debt := generic.Zero
		if paycheckDebt != "" {
			if debt, err = generic.ParseMoney(paycheckDebt); err != nil {
				return err
			}
		}

		svc, store, err := openService()
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := svc.ReceivePaycheck(cmd.Context(), budget.Paycheck{Deposit: deposit, NextPayDate: nextPay, Debt: debt})
		if err != nil {
			return err
		}
		printAllocation(cmd.OutOrStdout(), res)
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:   "check <amount> <bucket>",
	Short: "Preview a purchase without spending",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := parsePurchase(args)
		if err != nil {
			return err
		}
		svc, store, err := openService()
		if err != nil {
			return err
		}
		defer store.Close()

		d, err := svc.CheckPurchase(cmd.Context(), req)
		if err != nil {
			return err
		}
		printDecision(cmd.OutOrStdout(), d)
		return nil
	},
}

var buyCmd = &cobra.Command{
	Use:   "buy <amount> <bucket>",
	Short: "Authorize and spend in one step",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := parsePurchase(args)
		if err != nil {
			return err
		}
		svc, store, err := openService()
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := svc.Purchase(cmd.Context(), req)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printDecision(out, res.Decision)
		if res.Applied {
			fmt.Fprintf(out, "%s balance now %s\n", res.Decision.Bucket, res.State.Balances.Get(res.Decision.Bucket))
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent history entries, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openService()
		if err != nil {
			return err
		}
		defer store.Close()

		entries, err := svc.History(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tKIND\tBUCKET\tAMOUNT\tDETAILS")
		for _, h := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				h.Timestamp.Local().Format("2006-01-02 15:04"), h.Kind, h.Bucket, h.Amount, h.Details)
		}
		return w.Flush()
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the state document (stdout if no file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, store, err := openService()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := svc.Export(cmd.Context())
		if err != nil {
			return err
		}
		doc, err := factory.NewStateFactory().Encode(st)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			_, err = cmd.OutOrStdout().Write(append(doc, '\n'))
			return err
		}
		return os.WriteFile(args[0], doc, 0o600)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stored state with a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		imported, err := factory.NewStateFactory().ParseState(data)
		if err != nil {
			return err
		}

		svc, store, err := openService()
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := svc.Import(cmd.Context(), imported)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d bills, %d history entries\n", len(st.Bills), len(st.History))
		printStatus(cmd.OutOrStdout(), st, generic.DateOf(svc.Now()))
		return nil
	},
}

func init() {
	paycheckCmd.Flags().StringVar(&paycheckNextPay, "next-pay", "", "Next pay date (YYYY-MM-DD)")
	paycheckCmd.Flags().StringVar(&paycheckDebt, "debt", "", "Outstanding debt before this paycheck")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries (0 for all)")
}

// =============================================================================
// HELPERS
// =============================================================================

func parsePurchase(args []string) (budget.PurchaseRequest, error) {
	amount, err := generic.ParseMoney(args[0])
	if err != nil {
		return budget.PurchaseRequest{}, err
	}
	bucket, ok := budget.ParseBucket(args[1])
	if !ok {
		return budget.PurchaseRequest{}, fmt.Errorf("%q: %w", args[1], generic.ErrUnknownBucket)
	}
	return budget.PurchaseRequest{Amount: amount, Bucket: bucket}, nil
}

func printStatus(out io.Writer, st *budget.State, today generic.Date) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	for _, b := range budget.Buckets {
		fmt.Fprintf(w, "%s\t%s\t\n", b, st.Balances.Get(b))
	}
	fmt.Fprintf(w, "debt\t%s\t\n", st.Debt)
	w.Flush()

	if st.NextPayDate.IsZero() {
		fmt.Fprintln(out, "next pay date: not set")
	} else {
		fmt.Fprintf(out, "next pay date: %s (%d days)\n", st.NextPayDate, generic.DaysBetween(today, st.NextPayDate))
	}
	lock := st.SnackLock
	fmt.Fprintf(out, "snacks today:  %s of %s left\n",
		lock.AllowanceToday.Sub(lock.SpentToday).NonNegative(), lock.AllowanceToday)
	if !st.LastSaved.IsZero() {
		fmt.Fprintf(out, "last saved:    %s\n", st.LastSaved.Local().Format(time.RFC1123))
	}
}

func printAllocation(out io.Writer, res budget.AllocationResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, m := range res.PreCapMoves {
		fmt.Fprintf(w, "%s over debt cap\t%s\tmoved to savings\n", m.From, m.Amount)
	}
	fmt.Fprintf(w, "bills -> holding\t%s\t", res.HoldingAdded)
	if res.BillShortfall.IsPositive() {
		fmt.Fprintf(w, "short %s", res.BillShortfall)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "savings\t%s\t\n", res.SavingsAdded)
	for _, f := range res.Fills {
		fmt.Fprintf(w, "%s\t%s\t", f.Bucket, f.Applied)
		if f.Overflow.IsPositive() {
			fmt.Fprintf(w, "over cap %s -> savings", f.Overflow)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "debt paid\t%s\t%s left\n", res.DebtPaid, res.DebtRemaining)
	fmt.Fprintf(w, "leftover -> savings\t%s\t\n", res.LeftoverToSavings)
	w.Flush()
	fmt.Fprintf(out, "snack allowance today: %s\n", res.SnackLock.AllowanceToday)
}

func printDecision(out io.Writer, d budget.Decision) {
	if d.OK {
		fmt.Fprintf(out, "OK: %s from %s leaves %s", d.Amount, d.Bucket, d.RemainingIfApplied)
	} else {
		fmt.Fprintf(out, "NO: %s", d.Detail)
	}
	if d.PayDateKnown {
		fmt.Fprintf(out, " (%d days to payday)", d.DaysLeftToNextPay)
	}
	fmt.Fprintln(out)
}
