package calculator

import (
	"strings"

	"github.com/mmynk/splitledger/internal/money"
)

// Kind names a split policy.
type Kind string

const (
	KindEqual      Kind = "equal"
	KindPercentage Kind = "percentage"
	KindShares     Kind = "shares"
	KindExact      Kind = "exact"
)

// PercentageTolerance is how far a percentage sum may drift from 100 and
// still be accepted.
const PercentageTolerance = 0.01

// ParseKind maps a policy name to its Kind. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindEqual, KindPercentage, KindShares, KindExact:
		return k, nil
	}
	return "", newError(KindUnknownSplitPolicy, "policy", "unknown split policy %q", s)
}

// Policy is a split policy together with its participants. The concrete
// types are Equal, Percentage, Shares and Exact; each carries only the
// weight data that applies to it.
type Policy interface {
	Kind() Kind
	// UserIDs returns participant ids in input order.
	UserIDs() []string

	isPolicy()
}

// Equal divides the total evenly. Order matters: leftover cents go to the
// first participants.
type Equal struct {
	Participants []string
}

// PercentageShare is one participant's percentage (0-100).
type PercentageShare struct {
	UserID  string
	Percent float64
}

// Percentage divides the total by percentage. The last participant absorbs
// rounding.
type Percentage struct {
	Participants []PercentageShare
}

// WeightedShare is one participant's share count. A zero Count means the
// count was not supplied; the calculator treats it as 1.
type WeightedShare struct {
	UserID string
	Count  int
}

// Shares divides the total proportionally to share counts. The last
// participant absorbs rounding.
type Shares struct {
	Participants []WeightedShare
}

// ExactShare is one participant's amount.
type ExactShare struct {
	UserID string
	Amount money.Cents
}

// Exact uses caller-supplied amounts, which must add up to the total.
type Exact struct {
	Participants []ExactShare
}

func (Equal) Kind() Kind      { return KindEqual }
func (Percentage) Kind() Kind { return KindPercentage }
func (Shares) Kind() Kind     { return KindShares }
func (Exact) Kind() Kind      { return KindExact }

func (Equal) isPolicy()      {}
func (Percentage) isPolicy() {}
func (Shares) isPolicy()     {}
func (Exact) isPolicy()      {}

func (p Equal) UserIDs() []string {
	return append([]string(nil), p.Participants...)
}

func (p Percentage) UserIDs() []string {
	ids := make([]string, len(p.Participants))
	for i, s := range p.Participants {
		ids[i] = s.UserID
	}
	return ids
}

func (p Shares) UserIDs() []string {
	ids := make([]string, len(p.Participants))
	for i, s := range p.Participants {
		ids[i] = s.UserID
	}
	return ids
}

func (p Exact) UserIDs() []string {
	ids := make([]string, len(p.Participants))
	for i, s := range p.Participants {
		ids[i] = s.UserID
	}
	return ids
}

// checkParticipants rejects empty lists, blank ids and repeated ids.
func checkParticipants(ids []string) error {
	if len(ids) == 0 {
		return newError(KindEmptyParticipantSet, "participants", "at least one participant required")
	}
	seen := make(map[string]struct{}, len(ids))
	for i, id := range ids {
		if strings.TrimSpace(id) == "" {
			return newError(KindInvalidParticipant, "participants", "participant %d has no user id", i+1)
		}
		if _, dup := seen[id]; dup {
			return newError(KindInvalidParticipant, "participants", "user %q appears more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
