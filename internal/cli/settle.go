package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/money"
)

func init() {
	rootCmd.AddCommand(settleCmd)

	settleCmd.Flags().StringP("file", "f", "", "Path to a ledger JSON file")
	_ = settleCmd.MarkFlagRequired("file")
}

var settleCmd = &cobra.Command{
	Use:   "settle",
	Short: "Compute balances and suggested transfers for a ledger file",
	Long: `Read expenses, shares and recorded settlements from a JSON file, print each
member's balance and the transfers that settle everyone up.

File format (amounts are decimal strings):

  {
    "expenses":    [{"id": "e1", "payer_id": "alice", "amount": "60.00", "currency": "USD"}],
    "shares":      [{"expense_id": "e1", "user_id": "alice", "amount": "20.00"}, ...],
    "settlements": [{"from_user_id": "bob", "to_user_id": "alice", "amount": "5.00"}]
  }`,
	Args: cobra.NoArgs,
	RunE: runSettle,
}

// ledgerFile is the on-disk input of the settle command.
type ledgerFile struct {
	Expenses []struct {
		ID       string `json:"id"`
		PayerID  string `json:"payer_id"`
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"expenses"`
	Shares []struct {
		ExpenseID string `json:"expense_id"`
		UserID    string `json:"user_id"`
		Amount    string `json:"amount"`
	} `json:"shares"`
	Settlements []struct {
		FromUserID string `json:"from_user_id"`
		ToUserID   string `json:"to_user_id"`
		Amount     string `json:"amount"`
	} `json:"settlements"`
}

func runSettle(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	expenses, shares, settlements, currency, err := readLedger(f)
	if err != nil {
		return err
	}

	balances, edges, err := calculator.CalculateGroupBalances(expenses, shares, settlements)
	if err != nil {
		return err
	}
	return printSettlement(cmd.OutOrStdout(), currency, balances, edges)
}

// readLedger decodes a ledger file into calculator inputs. The currency of
// the first expense is returned for display.
func readLedger(r io.Reader) ([]calculator.ExpenseForBalance, []calculator.ShareForBalance, []calculator.SettlementForBalance, string, error) {
	var file ledgerFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&file); err != nil {
		return nil, nil, nil, "", fmt.Errorf("failed to decode ledger: %w", err)
	}

	parse := func(what, s string) (money.Cents, error) {
		c, err := money.Parse(s)
		if err != nil {
			return 0, fmt.Errorf("%s: invalid amount %q: %w", what, s, err)
		}
		return c, nil
	}

	var (
		expenses    []calculator.ExpenseForBalance
		shares      []calculator.ShareForBalance
		settlements []calculator.SettlementForBalance
		currency    string
	)
	for _, e := range file.Expenses {
		amount, err := parse("expense "+e.ID, e.Amount)
		if err != nil {
			return nil, nil, nil, "", err
		}
		expenses = append(expenses, calculator.ExpenseForBalance{
			ID:       e.ID,
			PayerID:  e.PayerID,
			Amount:   amount,
			Currency: e.Currency,
		})
	}
	for _, s := range file.Shares {
		amount, err := parse("share of "+s.UserID, s.Amount)
		if err != nil {
			return nil, nil, nil, "", err
		}
		shares = append(shares, calculator.ShareForBalance{ExpenseID: s.ExpenseID, UserID: s.UserID, Amount: amount})
	}
	for _, s := range file.Settlements {
		amount, err := parse("settlement from "+s.FromUserID, s.Amount)
		if err != nil {
			return nil, nil, nil, "", err
		}
		settlements = append(settlements, calculator.SettlementForBalance{FromUserID: s.FromUserID, ToUserID: s.ToUserID, Amount: amount})
	}
	if len(expenses) > 0 {
		currency = expenses[0].Currency
	}
	return expenses, shares, settlements, currency, nil
}

func printSettlement(w io.Writer, currency string, balances []calculator.MemberBalance, edges []calculator.DebtEdge) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MEMBER\tPAID\tOWED\tNET\t")
	for _, b := range balances {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", b.UserID,
			display(b.TotalPaid, currency), display(b.TotalOwed, currency), display(b.NetBalance, currency))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	if len(edges) == 0 {
		fmt.Fprintln(w, "Everyone is settled up.")
		return nil
	}
	fmt.Fprintln(w, "Suggested transfers:")
	for _, e := range edges {
		fmt.Fprintf(w, "  %s pays %s %s\n", e.From, e.To, display(e.Amount, currency))
	}
	return nil
}
