package credit

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestCentsToCreditsRoundTrip(t *testing.T) {
	cases := []int64{0, 1, 99, 100, 500, CentsPerCredit, CentsPerCredit + 1, math.MaxInt64}
	for _, cents := range cases {
		credits, err := CentsToCredits(cents)
		if err != nil {
			t.Fatalf("CentsToCredits(%d): %v", cents, err)
		}
		back, err := CreditsToCents(credits)
		if err != nil {
			t.Fatalf("CreditsToCents(%s): %v", credits, err)
		}
		if back != cents {
			t.Fatalf("round trip %d -> %s -> %d", cents, credits, back)
		}
	}
}

func TestCentsToCreditsScale(t *testing.T) {
	credits, err := CentsToCredits(1_500_000)
	if err != nil {
		t.Fatal(err)
	}
	if want := decimal.RequireFromString("1.5"); !credits.Equal(want) {
		t.Fatalf("got %s, want %s", credits, want)
	}
}

func TestCreditsToCentsTruncatesDust(t *testing.T) {
	// 0.00000012 credits is below one cent and truncates to zero.
	cents, err := CreditsToCents(decimal.RequireFromString("0.00000012"))
	if err != nil {
		t.Fatal(err)
	}
	if cents != 0 {
		t.Fatalf("got %d, want 0", cents)
	}
}

func TestNegativeAmountsRejected(t *testing.T) {
	if _, err := CentsToCredits(-1); err != ErrNegativeAmount {
		t.Fatalf("CentsToCredits(-1): got %v", err)
	}
	if _, err := CreditsToCents(decimal.RequireFromString("-0.5")); err != ErrNegativeAmount {
		t.Fatalf("CreditsToCents(-0.5): got %v", err)
	}
	if _, err := FeeFromAmount(-1, 5); err != ErrNegativeAmount {
		t.Fatalf("FeeFromAmount(-1, 5): got %v", err)
	}
	if _, err := FeeFromAmount(100, -5); err != ErrNegativeAmount {
		t.Fatalf("FeeFromAmount(100, -5): got %v", err)
	}
}

func TestFeeFromAmountRoundsUp(t *testing.T) {
	cases := []struct {
		cents, pct, want int64
	}{
		{101, 5, 6},  // 5.05 -> 6
		{100, 5, 5},  // exact
		{1, 1, 1},    // 0.01 -> 1
		{0, 5, 0},    // nothing to charge
		{100, 0, 0},  // no fee configured
		{99, 100, 99},
		{33, 3, 1}, // 0.99 -> 1
	}
	for _, tc := range cases {
		got, err := FeeFromAmount(tc.cents, tc.pct)
		if err != nil {
			t.Fatalf("FeeFromAmount(%d, %d): %v", tc.cents, tc.pct, err)
		}
		if got != tc.want {
			t.Fatalf("FeeFromAmount(%d, %d) = %d, want %d", tc.cents, tc.pct, got, tc.want)
		}
	}
}

func TestFeeFromAmountArbitraryPrecisionPath(t *testing.T) {
	// cents*pct overflows int64, forcing the decimal path.
	cents := int64(math.MaxInt64/7 + 1)
	fee, err := FeeFromAmount(cents, 7)
	if err != nil {
		t.Fatalf("FeeFromAmount: %v", err)
	}

	// Same ceiling rule, checked with exact arithmetic.
	product := decimal.NewFromInt(cents).Mul(decimal.NewFromInt(7))
	if decimal.NewFromInt(fee).Mul(decimal.NewFromInt(100)).Cmp(product) < 0 {
		t.Fatalf("fee %d under-collects", fee)
	}
	if decimal.NewFromInt(fee-1).Mul(decimal.NewFromInt(100)).Cmp(product) >= 0 {
		t.Fatalf("fee %d over-rounds by more than one cent unit", fee)
	}
}

func TestBothFeePathsAgree(t *testing.T) {
	// Values small enough for the native path, re-checked against the
	// decimal path's rule.
	for _, cents := range []int64{1, 101, 12345, 999_999_999} {
		for _, pct := range []int64{1, 3, 5, 50, 100} {
			fee, err := FeeFromAmount(cents, pct)
			if err != nil {
				t.Fatal(err)
			}
			product := decimal.NewFromInt(cents).Mul(decimal.NewFromInt(pct))
			q, r := product.QuoRem(decimal.NewFromInt(100), 0)
			want := q.IntPart()
			if !r.IsZero() {
				want++
			}
			if fee != want {
				t.Fatalf("FeeFromAmount(%d, %d) = %d, want %d", cents, pct, fee, want)
			}
		}
	}
}
