package models

import (
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/money"
)

// Expense is one payment made by a group member on behalf of some members.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// Description is what the money was spent on (e.g., "Dinner").
	Description string

	// Amount is the total paid, in cents. Always positive.
	Amount money.Cents

	// Currency is the ISO 4217 code; equal to the group's currency.
	Currency string

	// PaidBy is the user ID of the member who paid.
	PaidBy string

	// Policy is the split policy the shares were computed with.
	Policy calculator.Kind

	// Category is an optional free-form label (e.g., "food", "travel").
	Category string

	// Notes is an optional longer description.
	Notes string

	// Date is the Unix timestamp of when the expense happened.
	// Defaults to CreatedAt.
	Date int64

	// Shares are the resolved participant shares in input order.
	// They always add up to Amount.
	Shares []ExpenseShare

	// CreatedBy is the user ID who recorded this expense.
	CreatedBy string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last edit.
	UpdatedAt int64
}

// ExpenseShare is one participant's share of an expense.
type ExpenseShare struct {
	// UserID is the participant.
	UserID string

	// Amount is what the participant owes for this expense, in cents.
	Amount money.Cents

	// Weight is the input the share was computed from: a percentage for
	// percentage splits, a share count for shares splits, zero otherwise.
	Weight float64
}

// ShareTotal returns the sum of all share amounts.
func (e *Expense) ShareTotal() money.Cents {
	var total money.Cents
	for _, s := range e.Shares {
		total += s.Amount
	}
	return total
}
