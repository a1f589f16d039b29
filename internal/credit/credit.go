// Package credit implements fixed-point arithmetic between user-facing
// decimal credits and the integer minor-unit ("cents") representation every
// ledger entry is stored in.
package credit

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// CentsPerCredit is the fixed conversion scale: one credit equals 10^6 cents,
// so one cent is a millionth of a credit and fee math never loses sub-cent
// precision.
const CentsPerCredit int64 = 1_000_000

// creditScale is the decimal exponent matching CentsPerCredit.
const creditScale int32 = 6

var (
	ErrNegativeAmount = errors.New("credit: negative amount")
	ErrOutOfRange     = errors.New("credit: amount out of int64 range")
)

// CentsToCredits converts an integer cents amount into its exact decimal
// credits value. Rejects negative input; never loses precision.
func CentsToCredits(cents int64) (decimal.Decimal, error) {
	if cents < 0 {
		return decimal.Zero, ErrNegativeAmount
	}
	return decimal.New(cents, -creditScale), nil
}

// CreditsToCents converts a decimal credits value into integer cents,
// truncating any dust below one cent. Rejects negative input; errors when the
// result does not fit in an int64.
func CreditsToCents(credits decimal.Decimal) (int64, error) {
	if credits.IsNegative() {
		return 0, ErrNegativeAmount
	}
	cents := credits.Shift(creditScale).Truncate(0)
	bi := cents.BigInt()
	if !bi.IsInt64() {
		return 0, ErrOutOfRange
	}
	return bi.Int64(), nil
}

// FeeFromAmount computes a percentage fee on cents, rounding away from zero
// so a fee is never under-collected: FeeFromAmount(101, 5) == 6.
//
// Amounts whose product fits in an int64 take the native path; larger
// amounts route through arbitrary-precision decimals. Both paths apply the
// same ceiling rule, so callers cannot observe which one ran.
func FeeFromAmount(cents, percentagePoints int64) (int64, error) {
	if cents < 0 || percentagePoints < 0 {
		return 0, ErrNegativeAmount
	}
	if percentagePoints == 0 || cents == 0 {
		return 0, nil
	}

	if cents <= math.MaxInt64/percentagePoints {
		product := cents * percentagePoints
		fee := product / 100
		if product%100 != 0 {
			fee++
		}
		return fee, nil
	}

	product := decimal.NewFromInt(cents).Mul(decimal.NewFromInt(percentagePoints))
	q, r := product.QuoRem(decimal.NewFromInt(100), 0)
	if !r.IsZero() {
		q = q.Add(decimal.New(1, 0))
	}
	bi := q.BigInt()
	if !bi.IsInt64() {
		return 0, ErrOutOfRange
	}
	return bi.Int64(), nil
}
