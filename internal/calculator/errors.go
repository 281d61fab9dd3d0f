package calculator

import "fmt"

// ErrorKind classifies a SplitError.
type ErrorKind string

const (
	// KindInvalidAmount indicates a total or share amount outside its allowed range.
	KindInvalidAmount ErrorKind = "invalid_amount"
	// KindEmptyParticipantSet indicates a split with no participants.
	KindEmptyParticipantSet ErrorKind = "empty_participant_set"
	// KindUnknownSplitPolicy indicates an unrecognized or missing split policy.
	KindUnknownSplitPolicy ErrorKind = "unknown_split_policy"
	// KindPercentageSumMismatch indicates percentages that do not add up to 100.
	KindPercentageSumMismatch ErrorKind = "percentage_sum_mismatch"
	// KindInvalidPercentage indicates a single percentage outside 0-100.
	KindInvalidPercentage ErrorKind = "invalid_percentage"
	// KindInvalidShareCount indicates a non-positive share weight.
	KindInvalidShareCount ErrorKind = "invalid_share_count"
	// KindExactSumMismatch indicates exact amounts that do not add up to the total.
	KindExactSumMismatch ErrorKind = "exact_sum_mismatch"
	// KindSelfSettlement indicates a transfer whose payer and receiver are the same user.
	KindSelfSettlement ErrorKind = "self_settlement"
	// KindInvalidParticipant indicates an empty or repeated user id.
	KindInvalidParticipant ErrorKind = "invalid_participant"
	// KindCurrencyMismatch indicates records in more than one currency.
	KindCurrencyMismatch ErrorKind = "currency_mismatch"
	// KindUnbalancedLedger indicates records whose amounts do not net to zero.
	KindUnbalancedLedger ErrorKind = "unbalanced_ledger"
)

// SplitError is the single error type returned by this package.
// Match a kind with errors.Is(err, ErrExactSumMismatch) or inspect the
// fields with errors.As.
type SplitError struct {
	Kind    ErrorKind
	Field   string
	Message string
}

// Sentinels for errors.Is matching. Only Kind is compared.
var (
	ErrInvalidAmount         = SplitError{Kind: KindInvalidAmount}
	ErrEmptyParticipantSet   = SplitError{Kind: KindEmptyParticipantSet}
	ErrUnknownSplitPolicy    = SplitError{Kind: KindUnknownSplitPolicy}
	ErrPercentageSumMismatch = SplitError{Kind: KindPercentageSumMismatch}
	ErrInvalidPercentage     = SplitError{Kind: KindInvalidPercentage}
	ErrInvalidShareCount     = SplitError{Kind: KindInvalidShareCount}
	ErrExactSumMismatch      = SplitError{Kind: KindExactSumMismatch}
	ErrSelfSettlement        = SplitError{Kind: KindSelfSettlement}
	ErrInvalidParticipant    = SplitError{Kind: KindInvalidParticipant}
	ErrCurrencyMismatch      = SplitError{Kind: KindCurrencyMismatch}
	ErrUnbalancedLedger      = SplitError{Kind: KindUnbalancedLedger}
)

// Error returns the formatted error string.
func (e SplitError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Field == "" {
		return msg
	}
	return fmt.Sprintf("%s (%s)", msg, e.Field)
}

// Is reports whether target is a SplitError of the same kind.
func (e SplitError) Is(target error) bool {
	t, ok := target.(SplitError)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, field, format string, args ...any) SplitError {
	return SplitError{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}
