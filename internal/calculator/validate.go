package calculator

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/money"
)

// Validation is the outcome of ValidateSplit.
type Validation struct {
	Valid    bool
	Errors   []SplitError
	Warnings []string
	// Adjusted is the corrected policy when auto-fix changed anything, nil
	// otherwise. The caller must apply it explicitly before CalculateSplit.
	Adjusted Policy
}

func (v *Validation) fail(err error) {
	var se SplitError
	if !errors.As(err, &se) {
		se = SplitError{Kind: KindInvalidAmount, Message: err.Error()}
	}
	v.Errors = append(v.Errors, se)
}

// ValidateSplit checks caller-supplied split data against total before it
// reaches CalculateSplit. With autoFix set, correctable problems produce a
// warning and an Adjusted policy instead of an error:
//   - Percentage: the shortfall or excess is spread evenly over all participants.
//   - Shares: missing or non-positive counts become 1.
//   - Exact: the whole difference is added to the first participant.
//
// The input policy is never modified.
func ValidateSplit(total money.Cents, policy Policy, autoFix bool) Validation {
	var v Validation
	policy, err := resolve(policy)
	if err != nil {
		v.fail(err)
		return v
	}
	if len(policy.UserIDs()) == 0 {
		v.fail(newError(KindEmptyParticipantSet, "participants", "at least one participant required"))
		return v
	}
	if err := checkParticipants(policy.UserIDs()); err != nil {
		v.fail(err)
	}
	if total < 1 {
		v.fail(newError(KindInvalidAmount, "total", "total must be at least 0.01, got %s", total))
	}

	switch p := policy.(type) {
	case Equal:
	case Percentage:
		v.checkPercentage(p, autoFix)
	case Shares:
		v.checkShares(p, autoFix)
	case Exact:
		v.checkExact(total, p, autoFix)
	}

	v.Valid = len(v.Errors) == 0
	return v
}

func (v *Validation) checkPercentage(p Percentage, autoFix bool) {
	sum, err := percentSum(p.Participants)
	if err != nil {
		v.fail(err)
		return
	}
	if percentWithinTolerance(sum) {
		return
	}
	if !autoFix {
		v.fail(newError(KindPercentageSumMismatch, "percentage", "percentages must add up to 100, got %s", sum.String()))
		return
	}

	adjustment := decimal.NewFromInt(100).Sub(sum).Div(decimal.NewFromInt(int64(len(p.Participants))))
	fixed := Percentage{Participants: make([]PercentageShare, len(p.Participants))}
	for i, s := range p.Participants {
		fixed.Participants[i] = PercentageShare{
			UserID:  s.UserID,
			Percent: decimal.NewFromFloat(s.Percent).Add(adjustment).InexactFloat64(),
		}
	}
	if _, err := percentSum(fixed.Participants); err != nil {
		v.fail(err)
		return
	}
	v.Warnings = append(v.Warnings, fmt.Sprintf(
		"percentages added up to %s; adjusted each participant by %s", sum.String(), adjustment.Round(4).String()))
	v.Adjusted = fixed
}

func (v *Validation) checkShares(p Shares, autoFix bool) {
	fixed := Shares{Participants: make([]WeightedShare, len(p.Participants))}
	var replaced []string
	var totalShares int64
	for i, s := range p.Participants {
		fixed.Participants[i] = s
		if s.Count <= 0 {
			if !autoFix {
				v.fail(newError(KindInvalidShareCount, "shares",
					"share count for %q must be a positive integer, got %d", s.UserID, s.Count))
				continue
			}
			fixed.Participants[i].Count = 1
			replaced = append(replaced, s.UserID)
		}
		c := int64(fixed.Participants[i].Count)
		if c > math.MaxInt64-totalShares {
			v.fail(newError(KindInvalidShareCount, "shares",
				"share counts add up to more than %d", int64(math.MaxInt64)))
			return
		}
		totalShares += c
	}
	if len(replaced) > 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf("share count set to 1 for %v", replaced))
		v.Adjusted = fixed
	}
}

func (v *Validation) checkExact(total money.Cents, p Exact, autoFix bool) {
	var sum money.Cents
	for _, s := range p.Participants {
		if s.Amount < 0 {
			v.fail(newError(KindInvalidAmount, "amount", "amount for %q cannot be negative, got %s", s.UserID, s.Amount))
			return
		}
		var err error
		if sum, err = money.Add(sum, s.Amount); err != nil {
			v.fail(newError(KindExactSumMismatch, "amount", "exact mismatch: amounts add up to more than the total %s", total))
			return
		}
	}
	if sum == total {
		return
	}
	if !autoFix {
		v.fail(newError(KindExactSumMismatch, "amount", "exact mismatch: amounts add up to %s, total is %s", sum, total))
		return
	}

	diff := total - sum
	fixed := Exact{Participants: append([]ExactShare(nil), p.Participants...)}
	first := &fixed.Participants[0]
	if first.Amount+diff < 0 {
		v.fail(newError(KindExactSumMismatch, "amount",
			"exact mismatch: amounts add up to %s, total is %s, and %q cannot absorb %s", sum, total, first.UserID, diff))
		return
	}
	first.Amount += diff
	v.Warnings = append(v.Warnings, fmt.Sprintf(
		"amounts added up to %s instead of %s; adjusted %q by %s", sum, total, first.UserID, diff))
	v.Adjusted = fixed
}
