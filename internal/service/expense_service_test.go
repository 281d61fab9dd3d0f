package service

import (
	"context"
	"math"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/api"
)

func sumShares(shares []api.Share) int64 {
	var total int64
	for _, s := range shares {
		total += s.AmountCents
	}
	return total
}

func TestPreviewSplit(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	alice := clients.register(t, "alice@example.com")

	percent := func(values ...float64) api.Split {
		split := api.Split{Policy: "percentage"}
		for i, v := range values {
			split.Participants = append(split.Participants, api.Participant{
				UserID:  string(rune('a' + i)),
				Percent: ptr(v),
			})
		}
		return split
	}

	tests := []struct {
		name      string
		amount    string
		split     api.Split
		wantValid bool
		wantKind  string
		want      []int64
	}{
		{
			name:      "equal remainder goes first",
			amount:    "10.00",
			split:     api.Split{Policy: "equal", Participants: []api.Participant{{UserID: "a"}, {UserID: "b"}, {UserID: "c"}}},
			wantValid: true,
			want:      []int64{334, 333, 333},
		},
		{
			name:      "percentage",
			amount:    "100",
			split:     percent(50, 30, 20),
			wantValid: true,
			want:      []int64{5000, 3000, 2000},
		},
		{
			name:     "percentage off by one",
			amount:   "100",
			split:    percent(50, 30, 19),
			wantKind: "percentage_sum_mismatch",
		},
		{
			name:   "shares default to one",
			amount: "40",
			split: api.Split{Policy: "shares", Participants: []api.Participant{
				{UserID: "a", Shares: ptr(2)},
				{UserID: "b"},
				{UserID: "c", Shares: ptr(1)},
			}},
			wantValid: true,
			want:      []int64{2000, 1000, 1000},
		},
		{
			name:   "zero shares",
			amount: "40",
			split: api.Split{Policy: "shares", Participants: []api.Participant{
				{UserID: "a", Shares: ptr(0)},
				{UserID: "b", Shares: ptr(1)},
			}},
			wantKind: "invalid_share_count",
		},
		{
			name:   "exact",
			amount: "30",
			split: api.Split{Policy: "exact", Participants: []api.Participant{
				{UserID: "a", Amount: "10"},
				{UserID: "b", Amount: "20.00"},
			}},
			wantValid: true,
			want:      []int64{1000, 2000},
		},
		{
			name:   "exact mismatch",
			amount: "30",
			split: api.Split{Policy: "exact", Participants: []api.Participant{
				{UserID: "a", Amount: "10"},
				{UserID: "b", Amount: "10"},
			}},
			wantKind: "exact_sum_mismatch",
		},
		{
			name:     "unknown policy",
			amount:   "30",
			split:    api.Split{Policy: "lottery", Participants: []api.Participant{{UserID: "a"}}},
			wantKind: "unknown_split_policy",
		},
		{
			name:     "weight on equal split",
			amount:   "30",
			split:    api.Split{Policy: "equal", Participants: []api.Participant{{UserID: "a", Percent: ptr(100.0)}}},
			wantKind: "invalid_participant",
		},
		{
			name:     "no participants",
			amount:   "30",
			split:    api.Split{Policy: "equal"},
			wantKind: "empty_participant_set",
		},
		{
			name:     "zero total",
			amount:   "0",
			split:    api.Split{Policy: "equal", Participants: []api.Participant{{UserID: "a"}}},
			wantKind: "invalid_amount",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := clients.expense.PreviewSplit(ctx, as(alice, &api.PreviewSplitRequest{
				Amount: tt.amount,
				Split:  tt.split,
			}))
			if err != nil {
				t.Fatalf("PreviewSplit failed: %v", err)
			}
			v := resp.Msg.Validation
			if v.Valid != tt.wantValid {
				t.Fatalf("expected valid=%v, got %+v", tt.wantValid, v)
			}
			if !tt.wantValid {
				if len(v.Errors) == 0 || v.Errors[0].Kind != tt.wantKind {
					t.Errorf("expected error kind %s, got %+v", tt.wantKind, v.Errors)
				}
				if len(resp.Msg.Shares) != 0 {
					t.Errorf("expected no shares for an invalid split, got %+v", resp.Msg.Shares)
				}
				return
			}
			if len(resp.Msg.Shares) != len(tt.want) {
				t.Fatalf("expected %d shares, got %d", len(tt.want), len(resp.Msg.Shares))
			}
			for i, want := range tt.want {
				if resp.Msg.Shares[i].AmountCents != want {
					t.Errorf("share %d: expected %d, got %d", i, want, resp.Msg.Shares[i].AmountCents)
				}
			}
		})
	}
}

func TestPreviewSplit_AutoFix(t *testing.T) {
	clients := setupTestServer(t)
	alice := clients.register(t, "alice@example.com")

	resp, err := clients.expense.PreviewSplit(context.Background(), as(alice, &api.PreviewSplitRequest{
		Amount: "100",
		Split: api.Split{
			Policy: "percentage",
			Participants: []api.Participant{
				{UserID: "a", Percent: ptr(50.0)},
				{UserID: "b", Percent: ptr(30.0)},
				{UserID: "c", Percent: ptr(19.0)},
			},
			AutoFix: true,
		},
	}))
	if err != nil {
		t.Fatalf("PreviewSplit failed: %v", err)
	}
	if !resp.Msg.Validation.Valid {
		t.Fatalf("expected auto-fixed split to be valid, got %+v", resp.Msg.Validation)
	}
	if len(resp.Msg.Validation.Warnings) == 0 {
		t.Error("expected a warning describing the fix")
	}
	if got := sumShares(resp.Msg.Shares); got != 10000 {
		t.Errorf("expected shares to add up to 10000, got %d", got)
	}
}

func TestPreviewSplit_BadAmount(t *testing.T) {
	clients := setupTestServer(t)
	alice := clients.register(t, "alice@example.com")

	_, err := clients.expense.PreviewSplit(context.Background(), as(alice, &api.PreviewSplitRequest{
		Amount: "lots",
		Split:  api.Split{Policy: "equal", Participants: []api.Participant{{UserID: "a"}}},
	}))
	wantCode(t, err, connect.CodeInvalidArgument)
}

func TestCreateExpense(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	alice := clients.register(t, "alice@example.com")
	bob := clients.register(t, "bob@example.com")
	carol := clients.register(t, "carol@example.com")
	group := clients.createGroup(t, alice, bob, carol)

	resp, err := clients.expense.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		GroupID:     group.ID,
		Description: "  Groceries ",
		Amount:      "40.00",
		PaidBy:      bob.ID,
		Category:    "food",
		Date:        1700000000,
		Split: api.Split{Policy: "shares", Participants: []api.Participant{
			{UserID: alice.ID, Shares: ptr(2)},
			{UserID: bob.ID},
			{UserID: carol.ID, Shares: ptr(1)},
		}},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	expense := resp.Msg.Expense
	if expense.ID == "" {
		t.Error("expected expense ID to be set")
	}
	if expense.Description != "Groceries" {
		t.Errorf("expected trimmed description, got %q", expense.Description)
	}
	if expense.PaidBy != bob.ID || expense.CreatedBy != alice.ID {
		t.Errorf("expected paid by bob and created by alice, got %s / %s", expense.PaidBy, expense.CreatedBy)
	}
	if expense.Currency != "USD" || expense.Policy != "shares" || expense.Date != 1700000000 {
		t.Errorf("unexpected expense fields %+v", expense)
	}
	wantShares := []api.Share{
		{UserID: alice.ID, AmountCents: 2000, Weight: 2},
		{UserID: bob.ID, AmountCents: 1000, Weight: 1},
		{UserID: carol.ID, AmountCents: 1000, Weight: 1},
	}
	if len(expense.Shares) != len(wantShares) {
		t.Fatalf("expected %d shares, got %d", len(wantShares), len(expense.Shares))
	}
	for i, want := range wantShares {
		got := expense.Shares[i]
		if got.UserID != want.UserID || got.AmountCents != want.AmountCents || got.Weight != want.Weight {
			t.Errorf("share %d: expected %+v, got %+v", i, want, got)
		}
	}

	got, err := clients.expense.GetExpense(ctx, as(carol, &api.GetExpenseRequest{ExpenseID: expense.ID}))
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if got.Msg.Expense.AmountCents != 4000 || got.Msg.Expense.Category != "food" {
		t.Errorf("unexpected stored expense %+v", got.Msg.Expense)
	}
	if sumShares(got.Msg.Expense.Shares) != 4000 {
		t.Errorf("stored shares do not add up to the amount")
	}
}

func TestCreateExpense_Errors(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	alice := clients.register(t, "alice@example.com")
	bob := clients.register(t, "bob@example.com")
	eve := clients.register(t, "eve@example.com")
	group := clients.createGroup(t, alice, bob)

	valid := func() *api.CreateExpenseRequest {
		return &api.CreateExpenseRequest{
			GroupID:     group.ID,
			Description: "Taxi",
			Amount:      "12.00",
			Split:       equalSplit(alice, bob),
		}
	}

	tests := []struct {
		name   string
		user   testUser
		modify func(*api.CreateExpenseRequest)
		want   connect.Code
	}{
		{"non-member caller", eve, func(r *api.CreateExpenseRequest) {}, connect.CodePermissionDenied},
		{"missing description", alice, func(r *api.CreateExpenseRequest) { r.Description = "" }, connect.CodeInvalidArgument},
		{"zero amount", alice, func(r *api.CreateExpenseRequest) { r.Amount = "0" }, connect.CodeInvalidArgument},
		{"currency mismatch", alice, func(r *api.CreateExpenseRequest) { r.Currency = "EUR" }, connect.CodeInvalidArgument},
		{"non-member payer", alice, func(r *api.CreateExpenseRequest) { r.PaidBy = eve.ID }, connect.CodeInvalidArgument},
		{"non-member participant", alice, func(r *api.CreateExpenseRequest) { r.Split = equalSplit(alice, eve) }, connect.CodeInvalidArgument},
		{"duplicate participant", alice, func(r *api.CreateExpenseRequest) { r.Split = equalSplit(alice, alice) }, connect.CodeInvalidArgument},
		{"unknown policy", alice, func(r *api.CreateExpenseRequest) { r.Split.Policy = "" }, connect.CodeInvalidArgument},
		{"unknown group", alice, func(r *api.CreateExpenseRequest) { r.GroupID = "missing" }, connect.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.modify(req)
			_, err := clients.expense.CreateExpense(ctx, as(tt.user, req))
			wantCode(t, err, tt.want)
		})
	}

	// Matching currency in any case is accepted
	req := valid()
	req.Currency = "usd"
	if _, err := clients.expense.CreateExpense(ctx, as(alice, req)); err != nil {
		t.Errorf("expected matching currency to be accepted, got %v", err)
	}
}

func TestCreateExpense_AutoFixWarnings(t *testing.T) {
	clients := setupTestServer(t)
	alice := clients.register(t, "alice@example.com")
	bob := clients.register(t, "bob@example.com")
	group := clients.createGroup(t, alice, bob)

	resp, err := clients.expense.CreateExpense(context.Background(), as(alice, &api.CreateExpenseRequest{
		GroupID:     group.ID,
		Description: "Hotel",
		Amount:      "100",
		Split: api.Split{
			Policy: "exact",
			Participants: []api.Participant{
				{UserID: alice.ID, Amount: "40"},
				{UserID: bob.ID, Amount: "50"},
			},
			AutoFix: true,
		},
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	if len(resp.Msg.Warnings) == 0 {
		t.Error("expected a warning for the adjusted split")
	}
	shares := resp.Msg.Expense.Shares
	if shares[0].AmountCents != 5000 || shares[1].AmountCents != 5000 {
		t.Errorf("expected difference added to the first participant, got %+v", shares)
	}
}

func TestUpdateExpense(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	alice := clients.register(t, "alice@example.com")
	bob := clients.register(t, "bob@example.com")
	group := clients.createGroup(t, alice, bob)

	created, err := clients.expense.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		GroupID:     group.ID,
		Description: "Lunch",
		Amount:      "20",
		Split:       equalSplit(alice, bob),
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	id := created.Msg.Expense.ID

	updated, err := clients.expense.UpdateExpense(ctx, as(bob, &api.UpdateExpenseRequest{
		ExpenseID:   id,
		Description: "Lunch and coffee",
		Amount:      "25",
		PaidBy:      bob.ID,
		Split: api.Split{Policy: "percentage", Participants: []api.Participant{
			{UserID: alice.ID, Percent: ptr(60.0)},
			{UserID: bob.ID, Percent: ptr(40.0)},
		}},
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}
	expense := updated.Msg.Expense
	if expense.AmountCents != 2500 || expense.PaidBy != bob.ID || expense.Policy != "percentage" {
		t.Errorf("unexpected updated expense %+v", expense)
	}
	if expense.CreatedAt != created.Msg.Expense.CreatedAt || expense.Date != created.Msg.Expense.Date {
		t.Errorf("expected creation time and date to be kept")
	}

	got, err := clients.expense.GetExpense(ctx, as(alice, &api.GetExpenseRequest{ExpenseID: id}))
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	shares := got.Msg.Expense.Shares
	if len(shares) != 2 || shares[0].AmountCents != 1500 || shares[1].AmountCents != 1000 {
		t.Errorf("expected shares replaced with [1500 1000], got %+v", shares)
	}
	if shares[0].Weight != 60 {
		t.Errorf("expected percentage weight 60, got %v", shares[0].Weight)
	}

	// An invalid update leaves the expense untouched
	_, err = clients.expense.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{
		ExpenseID:   id,
		Description: "Lunch",
		Amount:      "25",
		Split: api.Split{Policy: "exact", Participants: []api.Participant{
			{UserID: alice.ID, Amount: "1"},
		}},
	}))
	wantCode(t, err, connect.CodeInvalidArgument)

	_, err = clients.expense.UpdateExpense(ctx, as(alice, &api.UpdateExpenseRequest{ExpenseID: "missing"}))
	wantCode(t, err, connect.CodeNotFound)
}

func TestDeleteAndListExpenses(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	alice := clients.register(t, "alice@example.com")
	bob := clients.register(t, "bob@example.com")
	eve := clients.register(t, "eve@example.com")
	group := clients.createGroup(t, alice, bob)

	var ids []string
	for i, amount := range []string{"10", "20.50", "5"} {
		resp, err := clients.expense.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
			GroupID:     group.ID,
			Description: "Item",
			Amount:      amount,
			Date:        int64(1700000000 + i),
			Split:       equalSplit(alice, bob),
		}))
		if err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
		ids = append(ids, resp.Msg.Expense.ID)
	}

	list, err := clients.expense.ListExpenses(ctx, as(bob, &api.ListExpensesRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(list.Msg.Expenses) != 3 || list.Msg.TotalCents != 3550 {
		t.Fatalf("expected 3 expenses totalling 3550, got %d / %d", len(list.Msg.Expenses), list.Msg.TotalCents)
	}
	if list.Msg.Expenses[0].ID != ids[2] {
		t.Errorf("expected newest expense first")
	}

	_, err = clients.expense.DeleteExpense(ctx, as(eve, &api.DeleteExpenseRequest{ExpenseID: ids[0]}))
	wantCode(t, err, connect.CodePermissionDenied)

	if _, err := clients.expense.DeleteExpense(ctx, as(bob, &api.DeleteExpenseRequest{ExpenseID: ids[0]})); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}
	_, err = clients.expense.GetExpense(ctx, as(alice, &api.GetExpenseRequest{ExpenseID: ids[0]}))
	wantCode(t, err, connect.CodeNotFound)

	list, err = clients.expense.ListExpenses(ctx, as(alice, &api.ListExpensesRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if list.Msg.TotalCents != 2550 {
		t.Errorf("expected total 2550 after delete, got %d", list.Msg.TotalCents)
	}
}

func TestCreateExpense_WrappingExactAmounts(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	alice := clients.register(t, "alice@example.com")
	bob := clients.register(t, "bob@example.com")
	carol := clients.register(t, "carol@example.com")
	group := clients.createGroup(t, alice, bob, carol)

	split := api.Split{Policy: "exact", Participants: []api.Participant{
		{UserID: alice.ID, Amount: "92233720368547758.07"},
		{UserID: bob.ID, Amount: "92233720368547758.07"},
		{UserID: carol.ID, Amount: "0.03"},
	}}

	_, err := clients.expense.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		GroupID:     group.ID,
		Description: "Overflow",
		Amount:      "0.01",
		Split:       split,
	}))
	wantCode(t, err, connect.CodeInvalidArgument)

	list, err := clients.expense.ListExpenses(ctx, as(alice, &api.ListExpensesRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(list.Msg.Expenses) != 0 {
		t.Errorf("expected no stored expenses, got %d", len(list.Msg.Expenses))
	}
}

func TestCreateExpense_GroupTotalOverflow(t *testing.T) {
	clients := setupTestServer(t)
	ctx := context.Background()
	alice := clients.register(t, "alice@example.com")
	bob := clients.register(t, "bob@example.com")
	group := clients.createGroup(t, alice, bob)

	_, err := clients.expense.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		GroupID:     group.ID,
		Description: "Everything",
		Amount:      "92233720368547758.07",
		Split:       equalSplit(alice, bob),
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	_, err = clients.expense.CreateExpense(ctx, as(alice, &api.CreateExpenseRequest{
		GroupID:     group.ID,
		Description: "One more cent",
		Amount:      "0.01",
		Split:       equalSplit(alice, bob),
	}))
	wantCode(t, err, connect.CodeInvalidArgument)

	balances, err := clients.group.GetGroupBalances(ctx, as(alice, &api.GetGroupBalancesRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("GetGroupBalances failed: %v", err)
	}
	if balances.Msg.TotalCents != math.MaxInt64 {
		t.Errorf("expected total %d, got %d", int64(math.MaxInt64), balances.Msg.TotalCents)
	}
}
