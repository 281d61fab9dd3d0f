// Package api defines the wire messages of the splitledger.v1 services and
// the connect handlers and clients that carry them.
//
// Amounts are sent as decimal strings ("12.34") and returned both as integer
// cents and as a display string formatted for the group's currency.
package api

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

type MeResponse struct {
	User User `json:"user"`
}

// Group is a group with its members in join order.
type Group struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Currency  string `json:"currency"`
	CreatedBy string `json:"created_by"`
	Members   []User `json:"members"`
	CreatedAt int64  `json:"created_at"`
}

type CreateGroupRequest struct {
	Name string `json:"name"`
	// Currency defaults to the server's default currency.
	Currency string `json:"currency,omitempty"`
	// MemberIDs are added besides the caller, who is always a member.
	MemberIDs []string `json:"member_ids,omitempty"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupResponse struct {
	Group Group `json:"group"`
}

type ListGroupsResponse struct {
	Groups []Group `json:"groups"`
}

type AddMembersRequest struct {
	GroupID string   `json:"group_id"`
	UserIDs []string `json:"user_ids"`
}

type AddMembersResponse struct {
	Group Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"group_id"`
}

// MemberBalance is one member's position in a group.
type MemberBalance struct {
	UserID            string `json:"user_id"`
	DisplayName       string `json:"display_name"`
	TotalPaidCents    int64  `json:"total_paid_cents"`
	TotalOwedCents    int64  `json:"total_owed_cents"`
	NetBalanceCents   int64  `json:"net_balance_cents"`
	NetBalanceDisplay string `json:"net_balance_display"`
}

// SuggestedSettlement is a transfer that helps bring the group to zero.
type SuggestedSettlement struct {
	FromUserID    string `json:"from_user_id"`
	ToUserID      string `json:"to_user_id"`
	AmountCents   int64  `json:"amount_cents"`
	AmountDisplay string `json:"amount_display"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupBalancesResponse struct {
	Currency     string                `json:"currency"`
	TotalCents   int64                 `json:"total_cents"`
	TotalDisplay string                `json:"total_display"`
	Balances     []MemberBalance       `json:"balances"`
	Settlements  []SuggestedSettlement `json:"settlements"`
}

type GetMemberStatsRequest struct {
	GroupID string `json:"group_id"`
	// UserID defaults to the caller.
	UserID string `json:"user_id,omitempty"`
}

type GetMemberStatsResponse struct {
	UserID            string  `json:"user_id"`
	TotalPaidCents    int64   `json:"total_paid_cents"`
	TotalOwedCents    int64   `json:"total_owed_cents"`
	NetBalanceCents   int64   `json:"net_balance_cents"`
	NetBalanceDisplay string  `json:"net_balance_display"`
	ExpenseCount      int     `json:"expense_count"`
	AvgExpenseCents   float64 `json:"avg_expense_cents"`
	AvgExpenseDisplay string  `json:"avg_expense_display"`
}

// Settlement is a recorded payment.
type Settlement struct {
	ID            string `json:"id"`
	GroupID       string `json:"group_id"`
	FromUserID    string `json:"from_user_id"`
	ToUserID      string `json:"to_user_id"`
	AmountCents   int64  `json:"amount_cents"`
	AmountDisplay string `json:"amount_display"`
	Note          string `json:"note,omitempty"`
	CreatedBy     string `json:"created_by"`
	CreatedAt     int64  `json:"created_at"`
}

// RecordSettlementRequest records that the caller paid ToUserID.
type RecordSettlementRequest struct {
	GroupID  string `json:"group_id"`
	ToUserID string `json:"to_user_id"`
	Amount   string `json:"amount"`
	Note     string `json:"note,omitempty"`
}

type RecordSettlementResponse struct {
	Settlement Settlement `json:"settlement"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"group_id"`
}

type ListSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

type DeleteSettlementRequest struct {
	SettlementID string `json:"settlement_id"`
}

// Participant is one entry of a split. Which weight field must be set
// depends on the policy:
//   - equal: none
//   - percentage: Percent
//   - shares: Shares (optional, defaults to 1)
//   - exact: Amount
type Participant struct {
	UserID  string   `json:"user_id"`
	Percent *float64 `json:"percent,omitempty"`
	Shares  *int     `json:"shares,omitempty"`
	Amount  string   `json:"amount,omitempty"`
}

// Split says how an amount is divided.
type Split struct {
	Policy       string        `json:"policy"`
	Participants []Participant `json:"participants"`
	// AutoFix corrects small inconsistencies instead of rejecting them.
	AutoFix bool `json:"auto_fix,omitempty"`
}

// Share is one participant's resolved share.
type Share struct {
	UserID        string  `json:"user_id"`
	AmountCents   int64   `json:"amount_cents"`
	AmountDisplay string  `json:"amount_display"`
	Weight        float64 `json:"weight,omitempty"`
}

type ValidationError struct {
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type Validation struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

type PreviewSplitRequest struct {
	Amount string `json:"amount"`
	// Currency is used for display only.
	Currency string `json:"currency,omitempty"`
	Split    Split  `json:"split"`
}

// PreviewSplitResponse carries the validation outcome and, when valid, the
// shares the split would produce. Nothing is stored.
type PreviewSplitResponse struct {
	Validation Validation `json:"validation"`
	Shares     []Share    `json:"shares,omitempty"`
}

type Expense struct {
	ID            string  `json:"id"`
	GroupID       string  `json:"group_id"`
	Description   string  `json:"description"`
	AmountCents   int64   `json:"amount_cents"`
	AmountDisplay string  `json:"amount_display"`
	Currency      string  `json:"currency"`
	PaidBy        string  `json:"paid_by"`
	Policy        string  `json:"policy"`
	Category      string  `json:"category,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	Date          int64   `json:"date"`
	Shares        []Share `json:"shares"`
	CreatedBy     string  `json:"created_by"`
	CreatedAt     int64   `json:"created_at"`
	UpdatedAt     int64   `json:"updated_at"`
}

type CreateExpenseRequest struct {
	GroupID     string `json:"group_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	// Currency defaults to the group's currency and must match it.
	Currency string `json:"currency,omitempty"`
	// PaidBy defaults to the caller.
	PaidBy   string `json:"paid_by,omitempty"`
	Split    Split  `json:"split"`
	Category string `json:"category,omitempty"`
	Notes    string `json:"notes,omitempty"`
	Date     int64  `json:"date,omitempty"`
}

type CreateExpenseResponse struct {
	Expense  Expense  `json:"expense"`
	Warnings []string `json:"warnings,omitempty"`
}

type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type GetExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// UpdateExpenseRequest replaces an expense. Shares are recomputed from Split.
type UpdateExpenseRequest struct {
	ExpenseID   string `json:"expense_id"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	PaidBy      string `json:"paid_by,omitempty"`
	Split       Split  `json:"split"`
	Category    string `json:"category,omitempty"`
	Notes       string `json:"notes,omitempty"`
	Date        int64  `json:"date,omitempty"`
}

type UpdateExpenseResponse struct {
	Expense  Expense  `json:"expense"`
	Warnings []string `json:"warnings,omitempty"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type ListExpensesRequest struct {
	GroupID string `json:"group_id"`
}

type ListExpensesResponse struct {
	Expenses     []Expense `json:"expenses"`
	TotalCents   int64     `json:"total_cents"`
	TotalDisplay string    `json:"total_display"`
}
