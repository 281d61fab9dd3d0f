package calculator

import (
	"slices"
	"strings"
	"time"

	"github.com/mmynk/splitledger/internal/money"
)

// ExpenseForBalance is an expense with the information needed for balance
// calculations.
type ExpenseForBalance struct {
	ID       string
	GroupID  string
	PayerID  string
	Amount   money.Cents
	Currency string
	Category string
	Notes    string
	Date     time.Time
}

// ShareForBalance is one participant's resolved share of one expense.
type ShareForBalance struct {
	ExpenseID string
	UserID    string
	Amount    money.Cents
}

// SettlementForBalance is a recorded payment between two members.
type SettlementForBalance struct {
	FromUserID string // Who paid (debtor settling up)
	ToUserID   string // Who received (creditor being paid)
	Amount     money.Cents
}

// MemberBalance is one member's position across a set of expenses.
type MemberBalance struct {
	UserID     string
	TotalPaid  money.Cents
	TotalOwed  money.Cents
	NetBalance money.Cents // Positive = owed money, Negative = owes money
}

// MemberStats summarizes one member for single-user views.
type MemberStats struct {
	UserID       string
	TotalPaid    money.Cents
	TotalOwed    money.Cents
	NetBalance   money.Cents
	ExpenseCount int // Expenses this member paid for
	// AvgExpenseAmount is TotalPaid / ExpenseCount in cents, for display only.
	AvgExpenseAmount float64
}

// AggregateBalances computes every member's position from expenses, their
// shares, and recorded settlements.
//
// Algorithm:
//   - Every payer, participant, and settlement party starts at zero
//   - For each expense: payer's TotalPaid += amount
//   - For each share: participant's TotalOwed += share
//   - For each settlement: payer's TotalPaid += amount, receiver's TotalOwed += amount
//   - NetBalance = TotalPaid - TotalOwed
//
// The records are checked first (one currency, positive amounts, shares of
// each expense adding up to its amount), so the net balances always sum to
// zero. The result is sorted by user id.
func AggregateBalances(expenses []ExpenseForBalance, shares []ShareForBalance, settlements []SettlementForBalance) ([]MemberBalance, error) {
	if err := checkLedger(expenses, shares, settlements); err != nil {
		return nil, err
	}

	balances := make(map[string]*MemberBalance)
	member := func(id string) *MemberBalance {
		b, ok := balances[id]
		if !ok {
			b = &MemberBalance{UserID: id}
			balances[id] = b
		}
		return b
	}

	for _, e := range expenses {
		if err := accumulate(&member(e.PayerID).TotalPaid, e.Amount, e.PayerID); err != nil {
			return nil, err
		}
	}
	for _, s := range shares {
		if err := accumulate(&member(s.UserID).TotalOwed, s.Amount, s.UserID); err != nil {
			return nil, err
		}
	}
	for _, s := range settlements {
		if err := accumulate(&member(s.FromUserID).TotalPaid, s.Amount, s.FromUserID); err != nil {
			return nil, err
		}
		if err := accumulate(&member(s.ToUserID).TotalOwed, s.Amount, s.ToUserID); err != nil {
			return nil, err
		}
	}

	result := make([]MemberBalance, 0, len(balances))
	for _, b := range balances {
		b.NetBalance = b.TotalPaid - b.TotalOwed
		result = append(result, *b)
	}
	slices.SortFunc(result, func(a, b MemberBalance) int {
		return strings.Compare(a.UserID, b.UserID)
	})
	return result, nil
}

// CalculateGroupBalances aggregates balances and simplifies them into
// suggested transfers.
func CalculateGroupBalances(expenses []ExpenseForBalance, shares []ShareForBalance, settlements []SettlementForBalance) ([]MemberBalance, []DebtEdge, error) {
	balances, err := AggregateBalances(expenses, shares, settlements)
	if err != nil {
		return nil, nil, err
	}
	edges, err := SimplifyDebts(balances)
	if err != nil {
		return nil, nil, err
	}
	return balances, edges, nil
}

// accumulate adds amount to *dst, failing instead of wrapping past int64.
func accumulate(dst *money.Cents, amount money.Cents, userID string) error {
	sum, err := money.Add(*dst, amount)
	if err != nil {
		return newError(KindInvalidAmount, "balances", "totals for %q exceed the representable amount", userID)
	}
	*dst = sum
	return nil
}

// GroupTotal is the sum of all expense amounts.
func GroupTotal(expenses []ExpenseForBalance) (money.Cents, error) {
	amounts := make([]money.Cents, len(expenses))
	for i, e := range expenses {
		amounts[i] = e.Amount
	}
	total, err := money.Sum(amounts...)
	if err != nil {
		return 0, newError(KindInvalidAmount, "expenses", "group total exceeds the representable amount")
	}
	return total, nil
}

// MemberStatsFor summarizes userID's activity. Records are not checked
// beyond overflow of the totals.
func MemberStatsFor(userID string, expenses []ExpenseForBalance, shares []ShareForBalance) (MemberStats, error) {
	stats := MemberStats{UserID: userID}
	for _, e := range expenses {
		if e.PayerID != userID {
			continue
		}
		if err := accumulate(&stats.TotalPaid, e.Amount, userID); err != nil {
			return MemberStats{}, err
		}
		stats.ExpenseCount++
	}
	for _, s := range shares {
		if s.UserID != userID {
			continue
		}
		if err := accumulate(&stats.TotalOwed, s.Amount, userID); err != nil {
			return MemberStats{}, err
		}
	}
	stats.NetBalance = stats.TotalPaid - stats.TotalOwed
	if stats.ExpenseCount > 0 {
		stats.AvgExpenseAmount = float64(stats.TotalPaid) / float64(stats.ExpenseCount)
	}
	return stats, nil
}

func checkLedger(expenses []ExpenseForBalance, shares []ShareForBalance, settlements []SettlementForBalance) error {
	amounts := make(map[string]money.Cents, len(expenses))
	for i, e := range expenses {
		if e.ID == "" {
			return newError(KindUnbalancedLedger, "expenses", "expense %d has no id", i+1)
		}
		if _, dup := amounts[e.ID]; dup {
			return newError(KindUnbalancedLedger, "expenses", "expense %q appears more than once", e.ID)
		}
		if e.Amount < 1 {
			return newError(KindInvalidAmount, "expenses", "expense %q must have a positive amount, got %s", e.ID, e.Amount)
		}
		if e.PayerID == "" {
			return newError(KindInvalidParticipant, "expenses", "expense %q has no payer", e.ID)
		}
		if e.Currency != expenses[0].Currency {
			return newError(KindCurrencyMismatch, "expenses",
				"expense %q is in %q, expected %q", e.ID, e.Currency, expenses[0].Currency)
		}
		amounts[e.ID] = e.Amount
	}

	owed := make(map[string]money.Cents, len(expenses))
	for _, s := range shares {
		if _, ok := amounts[s.ExpenseID]; !ok {
			return newError(KindUnbalancedLedger, "shares", "share for %q references unknown expense %q", s.UserID, s.ExpenseID)
		}
		if s.UserID == "" {
			return newError(KindInvalidParticipant, "shares", "share of expense %q has no user id", s.ExpenseID)
		}
		if s.Amount < 0 {
			return newError(KindInvalidAmount, "shares", "share of %q in expense %q is negative", s.UserID, s.ExpenseID)
		}
		sum, err := money.Add(owed[s.ExpenseID], s.Amount)
		if err != nil {
			return newError(KindUnbalancedLedger, "shares",
				"shares of expense %q add up to more than its amount %s", s.ExpenseID, amounts[s.ExpenseID])
		}
		owed[s.ExpenseID] = sum
	}
	for _, e := range expenses {
		if owed[e.ID] != e.Amount {
			return newError(KindUnbalancedLedger, "shares",
				"shares of expense %q add up to %s, amount is %s", e.ID, owed[e.ID], e.Amount)
		}
	}

	for _, s := range settlements {
		if s.FromUserID == "" || s.ToUserID == "" {
			return newError(KindInvalidParticipant, "settlements", "settlement is missing a user id")
		}
		if s.FromUserID == s.ToUserID {
			return newError(KindSelfSettlement, "settlements", "%q cannot settle with themselves", s.FromUserID)
		}
		if s.Amount < 1 {
			return newError(KindInvalidAmount, "settlements", "settlement amount must be positive, got %s", s.Amount)
		}
	}
	return nil
}
