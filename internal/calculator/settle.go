package calculator

import (
	"cmp"
	"slices"
	"strings"

	"github.com/mmynk/splitledger/internal/money"
)

// DebtEdge is a suggested transfer from one member to another.
type DebtEdge struct {
	From   string // Person who owes
	To     string // Person who is owed
	Amount money.Cents
}

type position struct {
	userID string
	amount money.Cents
}

// byAmountDesc orders positions largest first, then by user id so the
// result does not depend on input order.
func byAmountDesc(a, b position) int {
	if c := cmp.Compare(b.amount, a.amount); c != 0 {
		return c
	}
	return strings.Compare(a.userID, b.userID)
}

// SimplifyDebts turns net balances into transfers that bring every balance
// to zero, matching the largest debtor with the largest creditor until one
// side runs out.
//
// The result never contains zero-amount or self transfers and has at most
// creditors+debtors-1 edges. Balances that do not sum to zero are rejected.
func SimplifyDebts(balances []MemberBalance) ([]DebtEdge, error) {
	var creditors, debtors []position
	var net money.Cents
	seen := make(map[string]struct{}, len(balances))
	for _, b := range balances {
		if b.UserID == "" {
			return nil, newError(KindInvalidParticipant, "balances", "balance has no user id")
		}
		if _, dup := seen[b.UserID]; dup {
			return nil, newError(KindInvalidParticipant, "balances", "user %q appears more than once", b.UserID)
		}
		seen[b.UserID] = struct{}{}
		var err error
		if net, err = money.Add(net, b.NetBalance); err != nil || b.NetBalance.Abs() < 0 {
			return nil, newError(KindInvalidAmount, "balances", "balance of %q is out of range", b.UserID)
		}

		switch {
		case b.NetBalance > 0:
			creditors = append(creditors, position{userID: b.UserID, amount: b.NetBalance})
		case b.NetBalance < 0:
			debtors = append(debtors, position{userID: b.UserID, amount: b.NetBalance.Abs()})
		}
	}
	if net != 0 {
		return nil, newError(KindUnbalancedLedger, "balances", "balances must sum to zero, got %s", net)
	}

	slices.SortFunc(creditors, byAmountDesc)
	slices.SortFunc(debtors, byAmountDesc)

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		debtor, creditor := &debtors[i], &creditors[j]

		amount := min(debtor.amount, creditor.amount)
		if amount > 0 {
			if debtor.userID == creditor.userID {
				return nil, newError(KindSelfSettlement, "balances", "%q would pay themselves", debtor.userID)
			}
			edges = append(edges, DebtEdge{From: debtor.userID, To: creditor.userID, Amount: amount})
		}

		debtor.amount -= amount
		creditor.amount -= amount
		if debtor.amount == 0 {
			i++
		}
		if creditor.amount == 0 {
			j++
		}
	}
	return edges, nil
}
