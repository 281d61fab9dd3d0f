package calculator

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/money"
)

func amounts(splits []PersonSplit) []money.Cents {
	out := make([]money.Cents, len(splits))
	for i, s := range splits {
		out[i] = s.Amount
	}
	return out
}

func TestCalculateSplit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		total  money.Cents
		policy Policy
		want   []money.Cents
	}{
		{
			name:   "equal split with remainder to the first participants",
			total:  1000,
			policy: Equal{Participants: []string{"alice", "bob", "charlie"}},
			want:   []money.Cents{334, 333, 333},
		},
		{
			name:   "equal split of a single cent",
			total:  1,
			policy: Equal{Participants: []string{"alice", "bob", "charlie"}},
			want:   []money.Cents{1, 0, 0},
		},
		{
			name:   "equal split with one participant",
			total:  4599,
			policy: Equal{Participants: []string{"alice"}},
			want:   []money.Cents{4599},
		},
		{
			name:   "equal split by pointer",
			total:  100,
			policy: &Equal{Participants: []string{"alice", "bob"}},
			want:   []money.Cents{50, 50},
		},
		{
			name:  "percentage split",
			total: 10000,
			policy: Percentage{Participants: []PercentageShare{
				{UserID: "alice", Percent: 50}, {UserID: "bob", Percent: 30}, {UserID: "charlie", Percent: 20},
			}},
			want: []money.Cents{5000, 3000, 2000},
		},
		{
			name:  "percentage split last absorbs rounding",
			total: 1000,
			policy: Percentage{Participants: []PercentageShare{
				{UserID: "alice", Percent: 33.33}, {UserID: "bob", Percent: 33.33}, {UserID: "charlie", Percent: 33.34},
			}},
			want: []money.Cents{333, 333, 334},
		},
		{
			name:  "percentage sum within tolerance",
			total: 1000,
			policy: Percentage{Participants: []PercentageShare{
				{UserID: "alice", Percent: 33.33}, {UserID: "bob", Percent: 33.33}, {UserID: "charlie", Percent: 33.33},
			}},
			want: []money.Cents{333, 333, 334},
		},
		{
			name:  "percentage rounds half away from zero",
			total: 1,
			policy: Percentage{Participants: []PercentageShare{
				{UserID: "alice", Percent: 50}, {UserID: "bob", Percent: 50},
			}},
			want: []money.Cents{1, 0},
		},
		{
			name:  "shares split",
			total: 1200,
			policy: Shares{Participants: []WeightedShare{
				{UserID: "alice", Count: 2}, {UserID: "bob", Count: 1}, {UserID: "charlie", Count: 3},
			}},
			want: []money.Cents{400, 200, 600},
		},
		{
			name:  "shares split last absorbs rounding",
			total: 100,
			policy: Shares{Participants: []WeightedShare{
				{UserID: "alice", Count: 1}, {UserID: "bob", Count: 1}, {UserID: "charlie", Count: 1},
			}},
			want: []money.Cents{33, 33, 34},
		},
		{
			name:  "missing share count counts as one",
			total: 100,
			policy: Shares{Participants: []WeightedShare{
				{UserID: "alice"}, {UserID: "bob", Count: 1},
			}},
			want: []money.Cents{50, 50},
		},
		{
			name:  "exact split",
			total: 1000,
			policy: Exact{Participants: []ExactShare{
				{UserID: "alice", Amount: 600}, {UserID: "bob", Amount: 400},
			}},
			want: []money.Cents{600, 400},
		},
		{
			name:  "exact split allows zero shares",
			total: 1000,
			policy: Exact{Participants: []ExactShare{
				{UserID: "alice", Amount: 1000}, {UserID: "bob", Amount: 0},
			}},
			want: []money.Cents{1000, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			splits, err := CalculateSplit(tt.total, tt.policy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, amounts(splits))
			assert.Equal(t, tt.policy.UserIDs(), userIDs(splits), "splits must keep participant order")
		})
	}
}

func userIDs(splits []PersonSplit) []string {
	out := make([]string, len(splits))
	for i, s := range splits {
		out[i] = s.UserID
	}
	return out
}

func TestCalculateSplit_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		total   money.Cents
		policy  Policy
		wantErr error
	}{
		{
			name:    "zero total",
			total:   0,
			policy:  Equal{Participants: []string{"alice"}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative total",
			total:   -100,
			policy:  Equal{Participants: []string{"alice"}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "nil policy",
			total:   100,
			policy:  nil,
			wantErr: ErrUnknownSplitPolicy,
		},
		{
			name:    "nil pointer policy",
			total:   100,
			policy:  (*Shares)(nil),
			wantErr: ErrUnknownSplitPolicy,
		},
		{
			name:    "no participants",
			total:   100,
			policy:  Equal{},
			wantErr: ErrEmptyParticipantSet,
		},
		{
			name:    "duplicate participant",
			total:   100,
			policy:  Equal{Participants: []string{"alice", "alice"}},
			wantErr: ErrInvalidParticipant,
		},
		{
			name:    "blank participant",
			total:   100,
			policy:  Equal{Participants: []string{"alice", "  "}},
			wantErr: ErrInvalidParticipant,
		},
		{
			name:  "percentages do not add up",
			total: 100,
			policy: Percentage{Participants: []PercentageShare{
				{UserID: "alice", Percent: 50}, {UserID: "bob", Percent: 40},
			}},
			wantErr: ErrPercentageSumMismatch,
		},
		{
			name:  "percentage out of range",
			total: 100,
			policy: Percentage{Participants: []PercentageShare{
				{UserID: "alice", Percent: 120}, {UserID: "bob", Percent: -20},
			}},
			wantErr: ErrInvalidPercentage,
		},
		{
			name:  "rounding would leave the last participant negative",
			total: 3,
			policy: Percentage{Participants: []PercentageShare{
				{UserID: "alice", Percent: 50}, {UserID: "bob", Percent: 50}, {UserID: "charlie", Percent: 0},
			}},
			wantErr: ErrInvalidAmount,
		},
		{
			name:  "negative share count",
			total: 100,
			policy: Shares{Participants: []WeightedShare{
				{UserID: "alice", Count: -1}, {UserID: "bob", Count: 1},
			}},
			wantErr: ErrInvalidShareCount,
		},
		{
			name:  "exact amounts do not add up",
			total: 1000,
			policy: Exact{Participants: []ExactShare{
				{UserID: "alice", Amount: 600}, {UserID: "bob", Amount: 300},
			}},
			wantErr: ErrExactSumMismatch,
		},
		{
			name:  "exact amounts that wrap past the int64 range",
			total: 1,
			policy: Exact{Participants: []ExactShare{
				{UserID: "a", Amount: math.MaxInt64}, {UserID: "b", Amount: math.MaxInt64}, {UserID: "c", Amount: 3},
			}},
			wantErr: ErrExactSumMismatch,
		},
		{
			name:  "exact amount above the total",
			total: 1000,
			policy: Exact{Participants: []ExactShare{
				{UserID: "alice", Amount: 1001}, {UserID: "bob", Amount: 0},
			}},
			wantErr: ErrExactSumMismatch,
		},
		{
			name:  "share counts that overflow",
			total: 1000,
			policy: Shares{Participants: []WeightedShare{
				{UserID: "a", Count: math.MaxInt}, {UserID: "b", Count: math.MaxInt}, {UserID: "c", Count: 1},
			}},
			wantErr: ErrInvalidShareCount,
		},
		{
			name:  "negative exact amount",
			total: 1000,
			policy: Exact{Participants: []ExactShare{
				{UserID: "alice", Amount: 1100}, {UserID: "bob", Amount: -100},
			}},
			wantErr: ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			splits, err := CalculateSplit(tt.total, tt.policy)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, splits)

			var se SplitError
			require.ErrorAs(t, err, &se)
			assert.NotEmpty(t, se.Message)
		})
	}
}

func TestCalculateSplit_Conservation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 2))
	for range 500 {
		total := money.Cents(1000 + rng.IntN(1_000_000))
		n := 1 + rng.IntN(10)

		ids := make([]string, n)
		weighted := make([]WeightedShare, n)
		percents := make([]PercentageShare, n)
		remaining := 100
		for i := range n {
			ids[i] = string(rune('a' + i))
			weighted[i] = WeightedShare{UserID: ids[i], Count: 1 + rng.IntN(10)}
			p := remaining
			if i < n-1 {
				p = 1 + rng.IntN(10)
			}
			remaining -= p
			percents[i] = PercentageShare{UserID: ids[i], Percent: float64(p)}
		}

		for _, policy := range []Policy{
			Equal{Participants: ids},
			Shares{Participants: weighted},
			Percentage{Participants: percents},
		} {
			splits, err := CalculateSplit(total, policy)
			require.NoError(t, err, "%s split of %d among %d", policy.Kind(), total, n)
			require.Len(t, splits, n)

			var sum money.Cents
			for _, s := range splits {
				assert.GreaterOrEqual(t, s.Amount, money.Cents(0))
				sum += s.Amount
			}
			assert.Equal(t, total, sum, "%s split of %d among %d", policy.Kind(), total, n)
		}
	}
}

func TestCalculateSplit_SameResultOnRepeat(t *testing.T) {
	t.Parallel()

	policies := []Policy{
		Equal{Participants: []string{"alice", "bob", "charlie"}},
		Percentage{Participants: []PercentageShare{
			{UserID: "alice", Percent: 33.33}, {UserID: "bob", Percent: 33.33}, {UserID: "charlie", Percent: 33.34},
		}},
		Shares{Participants: []WeightedShare{{UserID: "alice", Count: 3}, {UserID: "bob", Count: 1}, {UserID: "charlie"}}},
		Exact{Participants: []ExactShare{{UserID: "alice", Amount: 601}, {UserID: "bob", Amount: 400}}},
	}
	for _, policy := range policies {
		first, err := CalculateSplit(1001, policy)
		require.NoError(t, err, policy.Kind())
		second, err := CalculateSplit(1001, policy)
		require.NoError(t, err, policy.Kind())
		assert.Equal(t, first, second, policy.Kind())
	}
}

func TestCalculateSplit_EqualFairness(t *testing.T) {
	t.Parallel()

	splits, err := CalculateSplit(1001, Equal{Participants: []string{"a", "b", "c", "d", "e", "f", "g"}})
	require.NoError(t, err)

	lo, hi := splits[0].Amount, splits[0].Amount
	for _, s := range splits {
		lo, hi = min(lo, s.Amount), max(hi, s.Amount)
	}
	assert.LessOrEqual(t, hi-lo, money.Cents(1))
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Kind{
		"equal":      KindEqual,
		"PERCENTAGE": KindPercentage,
		" shares ":   KindShares,
		"Exact":      KindExact,
	} {
		got, err := ParseKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseKind("itemized")
	assert.ErrorIs(t, err, ErrUnknownSplitPolicy)
}
