package calculator

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

// Property: for every valid allocation, regardless of method, member count,
// or amount, the shares sum to the total exactly and follow member order.
func TestAllocatePropertySumExact(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(t, "n")
		members := make([]string, n)
		for i := range members {
			members[i] = fmt.Sprintf("user-%d", i)
		}

		cents := rapid.Int64Range(1, 10_000_000).Draw(t, "cents")
		amount := decimal.New(cents, -2)

		method := rapid.SampledFrom([]SplitMethod{SplitEvenly, SplitShares, SplitPercentage}).Draw(t, "method")
		req := AllocationRequest{Amount: amount, Method: method, Members: members}

		switch method {
		case SplitShares:
			req.Weights = make(map[string]decimal.Decimal, n)
			for _, m := range members {
				w := rapid.Int64Range(1, 1000).Draw(t, "weight")
				req.Weights[m] = decimal.NewFromInt(w)
			}
		case SplitPercentage:
			// Build percentages that sum to exactly 100 by carving the
			// range [0, 10000] basis points across members.
			req.Percents = make(map[string]decimal.Decimal, n)
			remaining := int64(10000)
			for i, m := range members {
				var bp int64
				if i == n-1 {
					bp = remaining
				} else {
					bp = rapid.Int64Range(0, remaining).Draw(t, "bp")
				}
				remaining -= bp
				req.Percents[m] = decimal.New(bp, -2)
			}
		}

		shares, err := Allocate(req)
		if err != nil {
			t.Fatalf("Allocate(%s, %s, n=%d) failed: %v", method, amount, n, err)
		}

		sum := decimal.Zero
		for i, s := range shares {
			if s.UserID != members[i] {
				t.Fatalf("share %d is for %s, want %s", i, s.UserID, members[i])
			}
			if s.ShareAmount.IsNegative() {
				t.Fatalf("negative share %s for %s", s.ShareAmount, s.UserID)
			}
			if !s.ShareAmount.Shift(2).IsInteger() {
				t.Fatalf("share %s for %s is not a whole number of cents", s.ShareAmount, s.UserID)
			}
			sum = sum.Add(s.ShareAmount)
		}
		if !sum.Equal(amount) {
			t.Fatalf("shares sum to %s, want %s", sum, amount)
		}
	})
}
