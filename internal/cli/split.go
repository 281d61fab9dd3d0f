package cli

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/money"
)

func init() {
	rootCmd.AddCommand(splitCmd)

	splitCmd.Flags().StringP("amount", "a", "", "Total to split, e.g. 12.34")
	splitCmd.Flags().StringP("policy", "p", "equal", "Split policy: equal, percentage, shares or exact")
	splitCmd.Flags().StringArrayP("participant", "u", nil, "Participant as id or id=weight (repeatable)")
	splitCmd.Flags().Bool("auto-fix", false, "Correct small inconsistencies instead of failing")
	splitCmd.Flags().String("currency", "USD", "Currency used to display amounts")
	_ = splitCmd.MarkFlagRequired("amount")
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split an amount among participants",
	Long: `Split an amount and print each participant's share.

The weight after "=" depends on the policy:
  equal       none
  percentage  percent, e.g. alice=50
  shares      share count, optional (defaults to 1)
  exact       amount, e.g. alice=12.50`,
	Example: `  splitledger split -a 100 -u alice -u bob -u carol
  splitledger split -a 100 -p percentage -u alice=50 -u bob=30 -u carol=20
  splitledger split -a 90 -p exact -u alice=40 -u bob=40 --auto-fix`,
	Args: cobra.NoArgs,
	RunE: runSplit,
}

func runSplit(cmd *cobra.Command, args []string) error {
	amount, _ := cmd.Flags().GetString("amount")
	policyName, _ := cmd.Flags().GetString("policy")
	participants, _ := cmd.Flags().GetStringArray("participant")
	autoFix, _ := cmd.Flags().GetBool("auto-fix")
	currency, _ := cmd.Flags().GetString("currency")

	total, err := money.Parse(amount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	policy, err := parsePolicy(policyName, participants)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	v := calculator.ValidateSplit(total, policy, autoFix)
	for _, w := range v.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if !v.Valid {
		for _, e := range v.Errors {
			fmt.Fprintf(out, "error: %s\n", e.Error())
		}
		return errors.New("split is invalid")
	}
	if v.Adjusted != nil {
		policy = v.Adjusted
	}

	splits, err := calculator.CalculateSplit(total, policy)
	if err != nil {
		return err
	}
	return printSplits(out, total, currency, splits)
}

// parsePolicy builds a policy from "id" or "id=weight" arguments.
func parsePolicy(name string, participants []string) (calculator.Policy, error) {
	kind, err := calculator.ParseKind(name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case calculator.KindEqual:
		p := calculator.Equal{}
		for _, arg := range participants {
			id, weight, found := strings.Cut(arg, "=")
			if found {
				return nil, fmt.Errorf("participant %q: equal splits take no weight, got %q", id, weight)
			}
			p.Participants = append(p.Participants, id)
		}
		return p, nil

	case calculator.KindPercentage:
		p := calculator.Percentage{}
		for _, arg := range participants {
			id, weight, found := strings.Cut(arg, "=")
			if !found {
				return nil, fmt.Errorf("participant %q: percentage required, e.g. %s=50", id, id)
			}
			percent, err := strconv.ParseFloat(weight, 64)
			if err != nil {
				return nil, fmt.Errorf("participant %q: invalid percentage %q", id, weight)
			}
			p.Participants = append(p.Participants, calculator.PercentageShare{UserID: id, Percent: percent})
		}
		return p, nil

	case calculator.KindShares:
		p := calculator.Shares{}
		for _, arg := range participants {
			id, weight, found := strings.Cut(arg, "=")
			count := 1
			if found {
				if count, err = strconv.Atoi(weight); err != nil {
					return nil, fmt.Errorf("participant %q: invalid share count %q", id, weight)
				}
			}
			p.Participants = append(p.Participants, calculator.WeightedShare{UserID: id, Count: count})
		}
		return p, nil

	default: // exact
		p := calculator.Exact{}
		for _, arg := range participants {
			id, weight, found := strings.Cut(arg, "=")
			if !found {
				return nil, fmt.Errorf("participant %q: amount required, e.g. %s=12.50", id, id)
			}
			amount, err := money.Parse(weight)
			if err != nil {
				return nil, fmt.Errorf("participant %q: invalid amount %q", id, weight)
			}
			p.Participants = append(p.Participants, calculator.ExactShare{UserID: id, Amount: amount})
		}
		return p, nil
	}
}

func printSplits(w io.Writer, total money.Cents, currency string, splits []calculator.PersonSplit) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PARTICIPANT\tSHARE\t")
	for _, s := range splits {
		fmt.Fprintf(tw, "%s\t%s\t\n", s.UserID, display(s.Amount, currency))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t\n", display(total, currency))
	return tw.Flush()
}

// display formats c for the terminal, falling back to the plain amount.
func display(c money.Cents, currency string) string {
	s, err := money.Format(c, strings.ToUpper(currency), language.AmericanEnglish)
	if err != nil {
		return c.String()
	}
	return s
}
