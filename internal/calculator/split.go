package calculator

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/money"
)

// PersonSplit is one participant's share of a total.
type PersonSplit struct {
	UserID string
	Amount money.Cents
}

var percentTolerance = decimal.NewFromFloat(PercentageTolerance)

// CalculateSplit divides total among the participants of policy.
// The returned splits are in participant order and always add up to total
// exactly; otherwise an error is returned and no splits.
//
// Rounding placement differs per policy:
//   - Equal: leftover cents go one each to the first participants.
//   - Percentage, Shares: every participant but the last gets its rounded
//     amount, the last gets whatever remains.
//   - Exact: no rounding; amounts must add up to total.
func CalculateSplit(total money.Cents, policy Policy) ([]PersonSplit, error) {
	if total < 1 {
		return nil, newError(KindInvalidAmount, "total", "total must be at least 0.01, got %s", total)
	}
	policy, err := resolve(policy)
	if err != nil {
		return nil, err
	}
	if err := checkParticipants(policy.UserIDs()); err != nil {
		return nil, err
	}

	switch p := policy.(type) {
	case Equal:
		return splitEqual(total, p), nil
	case Percentage:
		return splitPercentage(total, p)
	case Shares:
		return splitShares(total, p)
	case Exact:
		return splitExact(total, p)
	}
	return nil, newError(KindUnknownSplitPolicy, "policy", "unsupported split policy %T", policy)
}

// resolve dereferences pointer variants and rejects nil policies.
func resolve(policy Policy) (Policy, error) {
	missing := newError(KindUnknownSplitPolicy, "policy", "split policy required")
	switch p := policy.(type) {
	case nil:
		return nil, missing
	case *Equal:
		if p == nil {
			return nil, missing
		}
		return *p, nil
	case *Percentage:
		if p == nil {
			return nil, missing
		}
		return *p, nil
	case *Shares:
		if p == nil {
			return nil, missing
		}
		return *p, nil
	case *Exact:
		if p == nil {
			return nil, missing
		}
		return *p, nil
	}
	return policy, nil
}

func splitEqual(total money.Cents, p Equal) []PersonSplit {
	n := money.Cents(len(p.Participants))
	base, remainder := total/n, total%n

	splits := make([]PersonSplit, len(p.Participants))
	for i, id := range p.Participants {
		amount := base
		if money.Cents(i) < remainder {
			amount++
		}
		splits[i] = PersonSplit{UserID: id, Amount: amount}
	}
	return splits
}

// percentSum validates each percentage and returns their exact decimal sum.
func percentSum(shares []PercentageShare) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, s := range shares {
		if math.IsNaN(s.Percent) || math.IsInf(s.Percent, 0) || s.Percent < 0 || s.Percent > 100 {
			return decimal.Zero, newError(KindInvalidPercentage, "percentage",
				"percentage for %q must be between 0 and 100, got %v", s.UserID, s.Percent)
		}
		sum = sum.Add(decimal.NewFromFloat(s.Percent))
	}
	return sum, nil
}

func percentWithinTolerance(sum decimal.Decimal) bool {
	return sum.Sub(decimal.NewFromInt(100)).Abs().LessThanOrEqual(percentTolerance)
}

func splitPercentage(total money.Cents, p Percentage) ([]PersonSplit, error) {
	sum, err := percentSum(p.Participants)
	if err != nil {
		return nil, err
	}
	if !percentWithinTolerance(sum) {
		return nil, newError(KindPercentageSumMismatch, "percentage",
			"percentages must add up to 100, got %s", sum.String())
	}

	totalDec := decimal.NewFromInt(int64(total))
	last := len(p.Participants) - 1
	splits := make([]PersonSplit, len(p.Participants))
	var allocated money.Cents
	for i, s := range p.Participants[:last] {
		amount := money.Cents(totalDec.Mul(decimal.NewFromFloat(s.Percent)).Shift(-2).Round(0).IntPart())
		splits[i] = PersonSplit{UserID: s.UserID, Amount: amount}
		allocated += amount
	}
	return absorbRemainder(splits, p.Participants[last].UserID, total, allocated)
}

func splitShares(total money.Cents, p Shares) ([]PersonSplit, error) {
	counts := make([]int64, len(p.Participants))
	var totalShares int64
	for i, s := range p.Participants {
		c := int64(s.Count)
		if c == 0 {
			c = 1
		}
		if c < 0 {
			return nil, newError(KindInvalidShareCount, "shares",
				"share count for %q must be a positive integer, got %d", s.UserID, s.Count)
		}
		if c > math.MaxInt64-totalShares {
			return nil, newError(KindInvalidShareCount, "shares",
				"share counts add up to more than %d", int64(math.MaxInt64))
		}
		counts[i] = c
		totalShares += c
	}

	totalDec := decimal.NewFromInt(int64(total))
	divisor := decimal.NewFromInt(totalShares)
	last := len(p.Participants) - 1
	splits := make([]PersonSplit, len(p.Participants))
	var allocated money.Cents
	for i, s := range p.Participants[:last] {
		amount := money.Cents(totalDec.Mul(decimal.NewFromInt(counts[i])).DivRound(divisor, 0).IntPart())
		splits[i] = PersonSplit{UserID: s.UserID, Amount: amount}
		allocated += amount
	}
	return absorbRemainder(splits, p.Participants[last].UserID, total, allocated)
}

// absorbRemainder gives the last participant total minus what the others got.
func absorbRemainder(splits []PersonSplit, lastUserID string, total, allocated money.Cents) ([]PersonSplit, error) {
	remainder := total - allocated
	if remainder < 0 {
		return nil, newError(KindInvalidAmount, "total",
			"rounding leaves %q with a negative share (%s); the total is too small for this split", lastUserID, remainder)
	}
	splits[len(splits)-1] = PersonSplit{UserID: lastUserID, Amount: remainder}
	return splits, nil
}

func splitExact(total money.Cents, p Exact) ([]PersonSplit, error) {
	for _, s := range p.Participants {
		if s.Amount < 0 {
			return nil, newError(KindInvalidAmount, "amount",
				"amount for %q cannot be negative, got %s", s.UserID, s.Amount)
		}
	}

	splits := make([]PersonSplit, len(p.Participants))
	var sum money.Cents
	for i, s := range p.Participants {
		if s.Amount > total {
			return nil, newError(KindExactSumMismatch, "amount",
				"exact mismatch: amount for %q is %s, more than the total %s", s.UserID, s.Amount, total)
		}
		splits[i] = PersonSplit{UserID: s.UserID, Amount: s.Amount}
		var err error
		if sum, err = money.Add(sum, s.Amount); err != nil {
			return nil, newError(KindExactSumMismatch, "amount",
				"exact mismatch: amounts add up to more than the total %s", total)
		}
	}
	if sum != total {
		return nil, newError(KindExactSumMismatch, "amount",
			"exact mismatch: amounts add up to %s, total is %s", sum, total)
	}
	return splits, nil
}
