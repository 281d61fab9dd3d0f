package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/internal/api"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
)

var _ api.ExpenseServiceHandler = (*ExpenseService)(nil)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store storage.Store
	opts  options
}

// NewExpenseService creates a new ExpenseService with the given storage backend.
func NewExpenseService(store storage.Store, opts ...Option) *ExpenseService {
	return &ExpenseService{store: store, opts: newOptions(opts)}
}

// splitResult is a validated and calculated split.
type splitResult struct {
	policy     calculator.Policy
	shares     []models.ExpenseShare
	validation calculator.Validation
}

// split validates the requested split against total, applies any auto-fix
// and calculates the shares. A failed validation is returned as an error.
func (s *ExpenseService) split(total money.Cents, req api.Split) (*splitResult, error) {
	policy, err := toPolicy(req)
	if err != nil {
		s.opts.metrics.ObserveFailure(err)
		return nil, err
	}

	v := calculator.ValidateSplit(total, policy, req.AutoFix)
	if !v.Valid {
		err := validationError(v)
		s.opts.metrics.ObserveFailure(err)
		return &splitResult{policy: policy, validation: v}, err
	}
	if v.Adjusted != nil {
		policy = v.Adjusted
	}

	splits, err := calculator.CalculateSplit(total, policy)
	s.opts.metrics.ObserveSplit(policy.Kind(), err)
	if err != nil {
		return nil, err
	}
	return &splitResult{policy: policy, shares: expenseShares(policy, splits), validation: v}, nil
}

// checkInvolved ensures the payer and every participant belong to group.
func checkInvolved(group *models.Group, paidBy string, shares []models.ExpenseShare) error {
	if !group.HasMember(paidBy) {
		return fmt.Errorf("payer %q: %w", paidBy, errNotGroupMember)
	}
	for _, sh := range shares {
		if !group.HasMember(sh.UserID) {
			return fmt.Errorf("participant %q: %w", sh.UserID, errNotGroupMember)
		}
	}
	return nil
}

// PreviewSplit validates a split and returns the shares it would produce
// without storing anything.
func (s *ExpenseService) PreviewSplit(ctx context.Context, req *connect.Request[api.PreviewSplitRequest]) (*connect.Response[api.PreviewSplitResponse], error) {
	slog.Info("PreviewSplit request received",
		"amount", req.Msg.Amount,
		"policy", req.Msg.Split.Policy,
		"participants_count", len(req.Msg.Split.Participants),
	)

	total, err := money.Parse(req.Msg.Amount)
	if err != nil {
		return nil, fail("PreviewSplit failed", fmt.Errorf("amount: %w", err))
	}
	currency, err := s.opts.currencyOrDefault(req.Msg.Currency)
	if err != nil {
		return nil, err
	}

	resp := &api.PreviewSplitResponse{}
	result, err := s.split(total, req.Msg.Split)
	var splitErr calculator.SplitError
	switch {
	case result != nil:
		resp.Validation = toAPIValidation(result.validation)
		if err == nil {
			resp.Shares = s.opts.toAPIShares(result.shares, currency)
		}
	case errors.As(err, &splitErr):
		// The split could not be read, e.g. an unknown policy.
		resp.Validation = toAPIValidation(calculator.Validation{Errors: []calculator.SplitError{splitErr}})
	default:
		return nil, fail("PreviewSplit failed", err)
	}

	slog.Info("PreviewSplit completed", "valid", resp.Validation.Valid, "warnings", len(resp.Validation.Warnings))
	return connect.NewResponse(resp), nil
}

// CreateExpense records an expense paid by one member and split among others.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateExpense request received",
		"group_id", req.Msg.GroupID,
		"description", req.Msg.Description,
		"amount", req.Msg.Amount,
		"policy", req.Msg.Split.Policy,
	)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("CreateExpense failed", err, "group_id", req.Msg.GroupID)
	}
	if req.Msg.Currency != "" && !strings.EqualFold(req.Msg.Currency, group.Currency) {
		return nil, fail("CreateExpense failed", calculator.SplitError{
			Kind:    calculator.KindCurrencyMismatch,
			Field:   "currency",
			Message: fmt.Sprintf("expense is in %q, group uses %q", strings.ToUpper(req.Msg.Currency), group.Currency),
		}, "group_id", group.ID)
	}

	expense := &models.Expense{
		GroupID:   group.ID,
		Currency:  group.Currency,
		PaidBy:    req.Msg.PaidBy,
		Category:  strings.TrimSpace(req.Msg.Category),
		Notes:     strings.TrimSpace(req.Msg.Notes),
		Date:      req.Msg.Date,
		CreatedBy: userID,
	}
	if expense.PaidBy == "" {
		expense.PaidBy = userID
	}
	warnings, err := s.fill(group, expense, req.Msg.Description, req.Msg.Amount, req.Msg.Split)
	if err != nil {
		return nil, fail("CreateExpense failed", err, "group_id", group.ID)
	}

	if err := s.checkGroupTotal(ctx, expense); err != nil {
		return nil, fail("CreateExpense failed", err, "group_id", group.ID)
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, fail("CreateExpense failed", err, "group_id", group.ID)
	}

	slog.Info("Expense created", "expense_id", expense.ID, "group_id", group.ID, "amount", expense.Amount)
	return connect.NewResponse(&api.CreateExpenseResponse{
		Expense:  s.opts.toAPIExpense(expense),
		Warnings: warnings,
	}), nil
}

// fill sets the description, amount, policy and shares of expense from a
// request and checks that everyone involved belongs to group.
func (s *ExpenseService) fill(group *models.Group, expense *models.Expense, description, amount string, split api.Split) ([]string, error) {
	expense.Description = strings.TrimSpace(description)
	if expense.Description == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("description is required"))
	}
	total, err := parseAmount("amount", amount)
	if err != nil {
		return nil, err
	}
	result, err := s.split(total, split)
	if err != nil {
		return nil, err
	}
	if err := checkInvolved(group, expense.PaidBy, result.shares); err != nil {
		return nil, err
	}

	expense.Amount = total
	expense.Policy = result.policy.Kind()
	expense.Shares = result.shares
	return result.validation.Warnings, nil
}

// checkGroupTotal rejects expense if the group's expenses, with expense in
// place of any stored version, would add up past the representable amount.
func (s *ExpenseService) checkGroupTotal(ctx context.Context, expense *models.Expense) error {
	stored, err := s.store.ListExpensesByGroup(ctx, expense.GroupID)
	if err != nil {
		return err
	}
	amounts := []money.Cents{expense.Amount}
	for _, e := range stored {
		if e.ID != expense.ID {
			amounts = append(amounts, e.Amount)
		}
	}
	if _, err := money.Sum(amounts...); err != nil {
		return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("group expenses would exceed the largest amount: %w", err))
	}
	return nil
}

// expenseInGroup loads an expense from a group the caller belongs to.
func (s *ExpenseService) expenseInGroup(ctx context.Context, expenseID, userID string) (*models.Expense, *models.Group, error) {
	if expenseID == "" {
		return nil, nil, connect.NewError(connect.CodeInvalidArgument, errors.New("expense_id is required"))
	}
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, nil, err
	}
	group, err := memberGroup(ctx, s.store, expense.GroupID, userID)
	if err != nil {
		return nil, nil, err
	}
	return expense, group, nil
}

// GetExpense retrieves an expense with its shares.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetExpense request received", "expense_id", req.Msg.ExpenseID)

	expense, _, err := s.expenseInGroup(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, fail("GetExpense failed", err, "expense_id", req.Msg.ExpenseID)
	}
	return connect.NewResponse(&api.GetExpenseResponse{Expense: s.opts.toAPIExpense(expense)}), nil
}

// UpdateExpense replaces an expense and recomputes its shares.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("UpdateExpense request received",
		"expense_id", req.Msg.ExpenseID,
		"amount", req.Msg.Amount,
		"policy", req.Msg.Split.Policy,
	)

	expense, group, err := s.expenseInGroup(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, fail("UpdateExpense failed", err, "expense_id", req.Msg.ExpenseID)
	}

	if req.Msg.PaidBy != "" {
		expense.PaidBy = req.Msg.PaidBy
	}
	expense.Category = strings.TrimSpace(req.Msg.Category)
	expense.Notes = strings.TrimSpace(req.Msg.Notes)
	if req.Msg.Date != 0 {
		expense.Date = req.Msg.Date
	}
	warnings, err := s.fill(group, expense, req.Msg.Description, req.Msg.Amount, req.Msg.Split)
	if err != nil {
		return nil, fail("UpdateExpense failed", err, "expense_id", expense.ID)
	}

	if err := s.checkGroupTotal(ctx, expense); err != nil {
		return nil, fail("UpdateExpense failed", err, "expense_id", expense.ID)
	}

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return nil, fail("UpdateExpense failed", err, "expense_id", expense.ID)
	}

	slog.Info("Expense updated", "expense_id", expense.ID, "amount", expense.Amount)
	return connect.NewResponse(&api.UpdateExpenseResponse{
		Expense:  s.opts.toAPIExpense(expense),
		Warnings: warnings,
	}), nil
}

// DeleteExpense removes an expense and its shares.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[emptypb.Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	expense, _, err := s.expenseInGroup(ctx, req.Msg.ExpenseID, userID)
	if err != nil {
		return nil, fail("DeleteExpense failed", err, "expense_id", req.Msg.ExpenseID)
	}
	if err := s.store.DeleteExpense(ctx, expense.ID); err != nil {
		return nil, fail("DeleteExpense failed", err, "expense_id", expense.ID)
	}

	slog.Info("Expense deleted", "expense_id", expense.ID)
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// ListExpenses lists a group's expenses, newest first, with their total.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListExpenses request received", "group_id", req.Msg.GroupID)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("ListExpenses failed", err, "group_id", req.Msg.GroupID)
	}
	expenses, err := s.store.ListExpensesByGroup(ctx, group.ID)
	if err != nil {
		return nil, fail("ListExpenses failed", err, "group_id", group.ID)
	}

	resp := &api.ListExpensesResponse{Expenses: make([]api.Expense, len(expenses))}
	amounts := make([]money.Cents, len(expenses))
	for i, e := range expenses {
		resp.Expenses[i] = s.opts.toAPIExpense(e)
		amounts[i] = e.Amount
	}
	total, err := money.Sum(amounts...)
	if err != nil {
		return nil, fail("ListExpenses failed", err, "group_id", group.ID)
	}
	resp.TotalCents = int64(total)
	resp.TotalDisplay = s.opts.display(total, group.Currency)

	slog.Info("ListExpenses successful", "group_id", group.ID, "count", len(expenses))
	return connect.NewResponse(resp), nil
}
