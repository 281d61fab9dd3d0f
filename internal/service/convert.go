package service

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mmynk/splitledger/internal/api"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func toAPIGroup(group *models.Group, users map[string]*models.User) api.Group {
	members := make([]api.User, len(group.MemberIDs))
	for i, id := range group.MemberIDs {
		if user, ok := users[id]; ok {
			members[i] = toAPIUser(user)
		} else {
			members[i] = api.User{ID: id}
		}
	}
	return api.Group{
		ID:        group.ID,
		Name:      group.Name,
		Currency:  group.Currency,
		CreatedBy: group.CreatedBy,
		Members:   members,
		CreatedAt: group.CreatedAt,
	}
}

func (o options) toAPISettlement(s *models.Settlement, currency string) api.Settlement {
	return api.Settlement{
		ID:            s.ID,
		GroupID:       s.GroupID,
		FromUserID:    s.FromUserID,
		ToUserID:      s.ToUserID,
		AmountCents:   int64(s.Amount),
		AmountDisplay: o.display(s.Amount, currency),
		Note:          s.Note,
		CreatedBy:     s.CreatedBy,
		CreatedAt:     s.CreatedAt,
	}
}

func (o options) toAPIShares(shares []models.ExpenseShare, currency string) []api.Share {
	out := make([]api.Share, len(shares))
	for i, s := range shares {
		out[i] = api.Share{
			UserID:        s.UserID,
			AmountCents:   int64(s.Amount),
			AmountDisplay: o.display(s.Amount, currency),
			Weight:        s.Weight,
		}
	}
	return out
}

func (o options) toAPIExpense(e *models.Expense) api.Expense {
	return api.Expense{
		ID:            e.ID,
		GroupID:       e.GroupID,
		Description:   e.Description,
		AmountCents:   int64(e.Amount),
		AmountDisplay: o.display(e.Amount, e.Currency),
		Currency:      e.Currency,
		PaidBy:        e.PaidBy,
		Policy:        string(e.Policy),
		Category:      e.Category,
		Notes:         e.Notes,
		Date:          e.Date,
		Shares:        o.toAPIShares(e.Shares, e.Currency),
		CreatedBy:     e.CreatedBy,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func toAPIValidation(v calculator.Validation) api.Validation {
	out := api.Validation{Valid: v.Valid, Warnings: v.Warnings}
	for _, e := range v.Errors {
		out.Errors = append(out.Errors, api.ValidationError{
			Kind:    string(e.Kind),
			Field:   e.Field,
			Message: e.Message,
		})
	}
	return out
}

// participantError reports a participant whose fields do not fit the policy.
func participantError(kind calculator.ErrorKind, i int, format string, args ...any) calculator.SplitError {
	return calculator.SplitError{
		Kind:    kind,
		Field:   fmt.Sprintf("participants[%d]", i),
		Message: fmt.Sprintf(format, args...),
	}
}

// toPolicy converts a wire split into a calculator policy. Each participant
// may only carry the weight field its policy uses.
func toPolicy(split api.Split) (calculator.Policy, error) {
	kind, err := calculator.ParseKind(split.Policy)
	if err != nil {
		return nil, err
	}

	for i, p := range split.Participants {
		var extra string
		switch {
		case p.Percent != nil && kind != calculator.KindPercentage:
			extra = "percent"
		case p.Shares != nil && kind != calculator.KindShares:
			extra = "shares"
		case p.Amount != "" && kind != calculator.KindExact:
			extra = "amount"
		}
		if extra != "" {
			return nil, participantError(calculator.KindInvalidParticipant, i,
				"%s is not allowed in a %s split", extra, kind)
		}
	}

	switch kind {
	case calculator.KindEqual:
		ids := make([]string, len(split.Participants))
		for i, p := range split.Participants {
			ids[i] = p.UserID
		}
		return calculator.Equal{Participants: ids}, nil

	case calculator.KindPercentage:
		shares := make([]calculator.PercentageShare, len(split.Participants))
		for i, p := range split.Participants {
			if p.Percent == nil {
				return nil, participantError(calculator.KindInvalidPercentage, i, "percent is required for %q", p.UserID)
			}
			shares[i] = calculator.PercentageShare{UserID: p.UserID, Percent: *p.Percent}
		}
		return calculator.Percentage{Participants: shares}, nil

	case calculator.KindShares:
		shares := make([]calculator.WeightedShare, len(split.Participants))
		for i, p := range split.Participants {
			count := 1
			if p.Shares != nil {
				count = *p.Shares
			}
			shares[i] = calculator.WeightedShare{UserID: p.UserID, Count: count}
		}
		return calculator.Shares{Participants: shares}, nil

	default: // exact
		shares := make([]calculator.ExactShare, len(split.Participants))
		for i, p := range split.Participants {
			if p.Amount == "" {
				return nil, participantError(calculator.KindInvalidAmount, i, "amount is required for %q", p.UserID)
			}
			amount, err := money.Parse(p.Amount)
			if err != nil {
				return nil, participantError(calculator.KindInvalidAmount, i, "%v", err)
			}
			shares[i] = calculator.ExactShare{UserID: p.UserID, Amount: amount}
		}
		return calculator.Exact{Participants: shares}, nil
	}
}

// expenseShares pairs calculated splits with the weights they came from.
func expenseShares(policy calculator.Policy, splits []calculator.PersonSplit) []models.ExpenseShare {
	weights := make(map[string]float64)
	switch p := policy.(type) {
	case calculator.Percentage:
		for _, s := range p.Participants {
			weights[s.UserID] = s.Percent
		}
	case calculator.Shares:
		for _, s := range p.Participants {
			weights[s.UserID] = float64(max(s.Count, 1))
		}
	}

	shares := make([]models.ExpenseShare, len(splits))
	for i, s := range splits {
		shares[i] = models.ExpenseShare{UserID: s.UserID, Amount: s.Amount, Weight: weights[s.UserID]}
	}
	return shares
}

// ledger converts stored records to calculator inputs.
func ledger(expenses []*models.Expense, settlements []*models.Settlement) ([]calculator.ExpenseForBalance, []calculator.ShareForBalance, []calculator.SettlementForBalance) {
	var (
		exps   = make([]calculator.ExpenseForBalance, 0, len(expenses))
		shares []calculator.ShareForBalance
		sets   = make([]calculator.SettlementForBalance, 0, len(settlements))
	)
	for _, e := range expenses {
		exps = append(exps, calculator.ExpenseForBalance{
			ID:       e.ID,
			GroupID:  e.GroupID,
			PayerID:  e.PaidBy,
			Amount:   e.Amount,
			Currency: e.Currency,
			Category: e.Category,
			Notes:    e.Notes,
			Date:     time.Unix(e.Date, 0),
		})
		for _, s := range e.Shares {
			shares = append(shares, calculator.ShareForBalance{ExpenseID: e.ID, UserID: s.UserID, Amount: s.Amount})
		}
	}
	for _, s := range settlements {
		sets = append(sets, calculator.SettlementForBalance{FromUserID: s.FromUserID, ToUserID: s.ToUserID, Amount: s.Amount})
	}
	return exps, shares, sets
}

// parseAmount parses a positive decimal amount from a request field.
func parseAmount(field, s string) (money.Cents, error) {
	c, err := money.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	if c < 1 {
		return 0, fmt.Errorf("%s must be at least 0.01: %w", field, money.ErrInvalidAmount)
	}
	return c, nil
}

// validationError folds the errors of a failed validation into one error
// that still matches calculator.SplitError.
func validationError(v calculator.Validation) error {
	errs := make([]error, len(v.Errors))
	for i, e := range v.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// roundCents rounds a fractional cent amount half away from zero.
func roundCents(f float64) money.Cents {
	return money.Cents(math.Round(f))
}
