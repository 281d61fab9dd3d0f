package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const expenseColumns = `id, group_id, description, amount, currency, paid_by, split_policy,
	category, notes, date, created_by, created_at, updated_at`

func scanExpense(row scanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var policy string
	var category, notes sql.NullString
	err := row.Scan(
		&expense.ID, &expense.GroupID, &expense.Description, &expense.Amount, &expense.Currency,
		&expense.PaidBy, &policy, &category, &notes, &expense.Date,
		&expense.CreatedBy, &expense.CreatedAt, &expense.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	expense.Policy = calculator.Kind(policy)
	expense.Category = category.String
	expense.Notes = notes.String
	return expense, nil
}

// CreateExpense persists a new expense with its shares.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	if expense.CreatedAt == 0 {
		expense.CreatedAt = now
	}
	if expense.UpdatedAt == 0 {
		expense.UpdatedAt = expense.CreatedAt
	}
	if expense.Date == 0 {
		expense.Date = expense.CreatedAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Description, expense.Amount, expense.Currency,
		expense.PaidBy, string(expense.Policy), nullString(expense.Category), nullString(expense.Notes),
		expense.Date, expense.CreatedBy, expense.CreatedAt, expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	if err := insertShares(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertShares(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	for i, share := range expense.Shares {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO expense_shares (expense_id, position, user_id, amount, weight) VALUES (?, ?, ?, ?, ?)",
			expense.ID, i, share.UserID, share.Amount, share.Weight,
		)
		if err != nil {
			return fmt.Errorf("failed to insert share for %s: %w", share.UserID, err)
		}
	}
	return nil
}

// GetExpense retrieves an expense by ID, including its shares in input order.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, expenseID)
	expense, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", expenseID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	shares, err := s.expenseShares(ctx, "expense_id = ?", expenseID)
	if err != nil {
		return nil, err
	}
	expense.Shares = shares[expense.ID]
	return expense, nil
}

// expenseShares loads shares matching where, grouped by expense ID.
func (s *SQLiteStore) expenseShares(ctx context.Context, where string, arg string) (map[string][]models.ExpenseShare, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT expense_id, user_id, amount, weight FROM expense_shares
		 WHERE `+where+` ORDER BY expense_id, position`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expense shares: %w", err)
	}
	defer rows.Close()

	shares := make(map[string][]models.ExpenseShare)
	for rows.Next() {
		var expenseID string
		var share models.ExpenseShare
		if err := rows.Scan(&expenseID, &share.UserID, &share.Amount, &share.Weight); err != nil {
			return nil, fmt.Errorf("failed to scan share: %w", err)
		}
		shares[expenseID] = append(shares[expenseID], share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shares: %w", err)
	}
	return shares, nil
}

// UpdateExpense overwrites an expense and replaces all of its shares.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	expense.UpdatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount = ?, currency = ?, paid_by = ?, split_policy = ?,
		 category = ?, notes = ?, date = ?, updated_at = ?
		 WHERE id = ?`,
		expense.Description, expense.Amount, expense.Currency, expense.PaidBy, string(expense.Policy),
		nullString(expense.Category), nullString(expense.Notes), expense.Date, expense.UpdatedAt,
		expense.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	if err := checkAffected(res, "expense", expense.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM expense_shares WHERE expense_id = ?", expense.ID); err != nil {
		return fmt.Errorf("failed to delete old shares: %w", err)
	}
	if err := insertShares(ctx, tx, expense); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteExpense removes an expense and its shares.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return checkAffected(res, "expense", expenseID)
}

// ListExpensesByGroup retrieves all expenses for a group with their shares.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE group_id = ? ORDER BY date DESC, created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses by group: %w", err)
	}

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, expense)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	shares, err := s.expenseShares(ctx,
		"expense_id IN (SELECT id FROM expenses WHERE group_id = ?)", groupID)
	if err != nil {
		return nil, err
	}
	for _, expense := range expenses {
		expense.Shares = shares[expense.ID]
	}
	return expenses, nil
}
