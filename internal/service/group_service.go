package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"

	"github.com/mmynk/splitledger/internal/api"
	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

var _ api.GroupServiceHandler = (*GroupService)(nil)

// GroupService implements the Connect GroupService: groups, balances and
// recorded settlements.
type GroupService struct {
	store storage.Store
	opts  options
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, opts ...Option) *GroupService {
	return &GroupService{store: store, opts: newOptions(opts)}
}

// groupResponse loads the members of group and converts it.
func (s *GroupService) groupResponse(ctx context.Context, group *models.Group) (api.Group, error) {
	users, err := s.store.GetUsersByIDs(ctx, group.MemberIDs)
	if err != nil {
		return api.Group{}, err
	}
	return toAPIGroup(group, users), nil
}

// checkUsersExist fails with NotFound naming the first unknown user.
func (s *GroupService) checkUsersExist(ctx context.Context, ids []string) error {
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return fmt.Errorf("user %s: %w", id, storage.ErrNotFound)
		}
	}
	return nil
}

// CreateGroup creates a new group with the caller as its first member.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.MemberIDs),
	)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("group name is required"))
	}
	currency, err := s.opts.currencyOrDefault(req.Msg.Currency)
	if err != nil {
		return nil, err
	}

	members := []string{userID}
	for _, id := range req.Msg.MemberIDs {
		if id != "" && !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	if err := s.checkUsersExist(ctx, members[1:]); err != nil {
		return nil, fail("CreateGroup failed", err)
	}

	group := &models.Group{
		Name:      name,
		Currency:  currency,
		CreatedBy: userID,
		MemberIDs: members,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fail("CreateGroup failed", err)
	}

	out, err := s.groupResponse(ctx, group)
	if err != nil {
		return nil, fail("CreateGroup failed", err, "group_id", group.ID)
	}

	slog.Info("Group created", "group_id", group.ID, "currency", group.Currency)
	return connect.NewResponse(&api.CreateGroupResponse{Group: out}), nil
}

// GetGroup retrieves a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("GetGroup failed", err, "group_id", req.Msg.GroupID)
	}
	out, err := s.groupResponse(ctx, group)
	if err != nil {
		return nil, fail("GetGroup failed", err, "group_id", group.ID)
	}

	return connect.NewResponse(&api.GetGroupResponse{Group: out}), nil
}

// ListGroups retrieves every group the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[api.ListGroupsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListGroups request received", "user_id", userID)

	groups, err := s.store.ListGroupsByMember(ctx, userID)
	if err != nil {
		return nil, fail("ListGroups failed", err)
	}

	var ids []string
	for _, g := range groups {
		for _, id := range g.MemberIDs {
			if !slices.Contains(ids, id) {
				ids = append(ids, id)
			}
		}
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fail("ListGroups failed", err)
	}

	out := make([]api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g, users)
	}

	slog.Info("ListGroups successful", "count", len(groups))
	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// AddMembers adds existing users to a group. Any member may add members.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("AddMembers request received", "group_id", req.Msg.GroupID, "users_count", len(req.Msg.UserIDs))

	if len(req.Msg.UserIDs) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("user_ids is required"))
	}
	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("AddMembers failed", err, "group_id", req.Msg.GroupID)
	}
	if err := s.checkUsersExist(ctx, req.Msg.UserIDs); err != nil {
		return nil, fail("AddMembers failed", err, "group_id", group.ID)
	}
	if err := s.store.AddGroupMembers(ctx, group.ID, req.Msg.UserIDs); err != nil {
		return nil, fail("AddMembers failed", err, "group_id", group.ID)
	}

	// Reload to pick up join order
	group, err = s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, fail("AddMembers failed", err, "group_id", req.Msg.GroupID)
	}
	out, err := s.groupResponse(ctx, group)
	if err != nil {
		return nil, fail("AddMembers failed", err, "group_id", group.ID)
	}

	slog.Info("Members added", "group_id", group.ID, "members_count", len(group.MemberIDs))
	return connect.NewResponse(&api.AddMembersResponse{Group: out}), nil
}

// DeleteGroup deletes a group with its expenses and settlements. Only the
// creator may delete a group.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[emptypb.Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("DeleteGroup failed", err, "group_id", req.Msg.GroupID)
	}
	if group.CreatedBy != userID {
		return nil, fail("DeleteGroup failed", fmt.Errorf("only the creator can delete a group: %w", errForbidden), "group_id", group.ID)
	}
	if err := s.store.DeleteGroup(ctx, group.ID); err != nil {
		return nil, fail("DeleteGroup failed", err, "group_id", group.ID)
	}

	slog.Info("Group deleted", "group_id", group.ID)
	return connect.NewResponse(&emptypb.Empty{}), nil
}

// loadLedger reads a group's expenses and settlements as calculator inputs.
func (s *GroupService) loadLedger(ctx context.Context, groupID string) ([]calculator.ExpenseForBalance, []calculator.ShareForBalance, []calculator.SettlementForBalance, error) {
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, nil, nil, err
	}
	settlements, err := s.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, nil, nil, err
	}
	exps, shares, sets := ledger(expenses, settlements)
	return exps, shares, sets, nil
}

// GetGroupBalances computes every member's balance and the transfers that
// would settle the group. Members without activity are listed at zero.
func (s *GroupService) GetGroupBalances(ctx context.Context, req *connect.Request[api.GetGroupBalancesRequest]) (*connect.Response[api.GetGroupBalancesResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("GetGroupBalances request received", "group_id", req.Msg.GroupID)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("GetGroupBalances failed", err, "group_id", req.Msg.GroupID)
	}
	expenses, shares, settlements, err := s.loadLedger(ctx, group.ID)
	if err != nil {
		return nil, fail("GetGroupBalances failed", err, "group_id", group.ID)
	}

	balances, edges, err := calculator.CalculateGroupBalances(expenses, shares, settlements)
	if err != nil {
		// Stored records should always be consistent.
		s.opts.metrics.ObserveFailure(err)
		slog.Error("GetGroupBalances failed", "group_id", group.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("group %s has an inconsistent ledger: %w", group.ID, err))
	}
	s.opts.metrics.ObserveSettlement(len(edges))

	for _, id := range group.MemberIDs {
		if !slices.ContainsFunc(balances, func(b calculator.MemberBalance) bool { return b.UserID == id }) {
			balances = append(balances, calculator.MemberBalance{UserID: id})
		}
	}
	slices.SortFunc(balances, func(a, b calculator.MemberBalance) int {
		return strings.Compare(a.UserID, b.UserID)
	})

	ids := make([]string, len(balances))
	for i, b := range balances {
		ids[i] = b.UserID
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, fail("GetGroupBalances failed", err, "group_id", group.ID)
	}

	resp := &api.GetGroupBalancesResponse{
		Currency: group.Currency,
		Balances: make([]api.MemberBalance, len(balances)),
	}
	total, err := calculator.GroupTotal(expenses)
	if err != nil {
		slog.Error("GetGroupBalances failed", "group_id", group.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("group %s: %w", group.ID, err))
	}
	resp.TotalCents = int64(total)
	resp.TotalDisplay = s.opts.display(total, group.Currency)
	for i, b := range balances {
		var name string
		if u, ok := users[b.UserID]; ok {
			name = u.DisplayName
		}
		resp.Balances[i] = api.MemberBalance{
			UserID:            b.UserID,
			DisplayName:       name,
			TotalPaidCents:    int64(b.TotalPaid),
			TotalOwedCents:    int64(b.TotalOwed),
			NetBalanceCents:   int64(b.NetBalance),
			NetBalanceDisplay: s.opts.display(b.NetBalance, group.Currency),
		}
	}
	for _, e := range edges {
		resp.Settlements = append(resp.Settlements, api.SuggestedSettlement{
			FromUserID:    e.From,
			ToUserID:      e.To,
			AmountCents:   int64(e.Amount),
			AmountDisplay: s.opts.display(e.Amount, group.Currency),
		})
	}

	slog.Info("GetGroupBalances successful",
		"group_id", group.ID,
		"members", len(resp.Balances),
		"settlements", len(resp.Settlements),
	)
	return connect.NewResponse(resp), nil
}

// GetMemberStats summarizes one member's expense activity in a group.
func (s *GroupService) GetMemberStats(ctx context.Context, req *connect.Request[api.GetMemberStatsRequest]) (*connect.Response[api.GetMemberStatsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	target := req.Msg.UserID
	if target == "" {
		target = userID
	}
	slog.Info("GetMemberStats request received", "group_id", req.Msg.GroupID, "user_id", target)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("GetMemberStats failed", err, "group_id", req.Msg.GroupID)
	}
	if !group.HasMember(target) {
		return nil, fail("GetMemberStats failed", fmt.Errorf("user %s: %w", target, errNotGroupMember), "group_id", group.ID)
	}
	expenses, shares, _, err := s.loadLedger(ctx, group.ID)
	if err != nil {
		return nil, fail("GetMemberStats failed", err, "group_id", group.ID)
	}

	stats, err := calculator.MemberStatsFor(target, expenses, shares)
	if err != nil {
		slog.Error("GetMemberStats failed", "group_id", group.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("group %s: %w", group.ID, err))
	}
	return connect.NewResponse(&api.GetMemberStatsResponse{
		UserID:            stats.UserID,
		TotalPaidCents:    int64(stats.TotalPaid),
		TotalOwedCents:    int64(stats.TotalOwed),
		NetBalanceCents:   int64(stats.NetBalance),
		NetBalanceDisplay: s.opts.display(stats.NetBalance, group.Currency),
		ExpenseCount:      stats.ExpenseCount,
		AvgExpenseCents:   stats.AvgExpenseAmount,
		AvgExpenseDisplay: s.opts.display(roundCents(stats.AvgExpenseAmount), group.Currency),
	}), nil
}

// RecordSettlement records that the caller paid another member.
func (s *GroupService) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("RecordSettlement request received",
		"group_id", req.Msg.GroupID,
		"to_user_id", req.Msg.ToUserID,
		"amount", req.Msg.Amount,
	)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("RecordSettlement failed", err, "group_id", req.Msg.GroupID)
	}
	if req.Msg.ToUserID == userID {
		return nil, fail("RecordSettlement failed", calculator.SplitError{
			Kind:    calculator.KindSelfSettlement,
			Field:   "to_user_id",
			Message: "you cannot settle with yourself",
		})
	}
	if !group.HasMember(req.Msg.ToUserID) {
		return nil, fail("RecordSettlement failed", fmt.Errorf("user %q: %w", req.Msg.ToUserID, errNotGroupMember), "group_id", group.ID)
	}
	amount, err := parseAmount("amount", req.Msg.Amount)
	if err != nil {
		return nil, fail("RecordSettlement failed", err, "group_id", group.ID)
	}

	settlement := &models.Settlement{
		GroupID:    group.ID,
		FromUserID: userID,
		ToUserID:   req.Msg.ToUserID,
		Amount:     amount,
		CreatedBy:  userID,
		Note:       strings.TrimSpace(req.Msg.Note),
	}
	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		return nil, fail("RecordSettlement failed", err, "group_id", group.ID)
	}

	slog.Info("Settlement recorded", "settlement_id", settlement.ID, "group_id", group.ID, "amount", amount)
	return connect.NewResponse(&api.RecordSettlementResponse{
		Settlement: s.opts.toAPISettlement(settlement, group.Currency),
	}), nil
}

// ListSettlements lists a group's recorded settlements, newest first.
func (s *GroupService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("ListSettlements request received", "group_id", req.Msg.GroupID)

	group, err := memberGroup(ctx, s.store, req.Msg.GroupID, userID)
	if err != nil {
		return nil, fail("ListSettlements failed", err, "group_id", req.Msg.GroupID)
	}
	settlements, err := s.store.ListSettlementsByGroup(ctx, group.ID)
	if err != nil {
		return nil, fail("ListSettlements failed", err, "group_id", group.ID)
	}

	out := make([]api.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = s.opts.toAPISettlement(st, group.Currency)
	}
	return connect.NewResponse(&api.ListSettlementsResponse{Settlements: out}), nil
}

// DeleteSettlement removes a settlement. Only its parties or whoever
// recorded it may delete it.
func (s *GroupService) DeleteSettlement(ctx context.Context, req *connect.Request[api.DeleteSettlementRequest]) (*connect.Response[emptypb.Empty], error) {
	userID, err := callerID(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("DeleteSettlement request received", "settlement_id", req.Msg.SettlementID)

	settlement, err := s.store.GetSettlement(ctx, req.Msg.SettlementID)
	if err != nil {
		return nil, fail("DeleteSettlement failed", err, "settlement_id", req.Msg.SettlementID)
	}
	if _, err := memberGroup(ctx, s.store, settlement.GroupID, userID); err != nil {
		return nil, fail("DeleteSettlement failed", err, "settlement_id", settlement.ID)
	}
	if userID != settlement.FromUserID && userID != settlement.ToUserID && userID != settlement.CreatedBy {
		return nil, fail("DeleteSettlement failed",
			fmt.Errorf("only the settlement's parties can delete it: %w", errForbidden), "settlement_id", settlement.ID)
	}
	if err := s.store.DeleteSettlement(ctx, settlement.ID); err != nil {
		return nil, fail("DeleteSettlement failed", err, "settlement_id", settlement.ID)
	}

	slog.Info("Settlement deleted", "settlement_id", settlement.ID)
	return connect.NewResponse(&emptypb.Empty{}), nil
}
