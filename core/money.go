package core

import (
	"time"

	"github.com/shopspring/decimal"
)

var (
	Hundred = decimal.NewFromInt(100)

	NowFunc = time.Now // mockable
)

// Percent returns pct% of amount, rounded to cents.
func Percent(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Div(Hundred).Round(2)
}

// Ratio returns 100 * part / whole rounded to 2 places, 0 when whole is zero.
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.Mul(Hundred).Div(whole).Round(2)
}

// Today returns the current date at midnight UTC.
func Today() time.Time {
	return DateOf(NowFunc())
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Date is a shortcut for a UTC calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Split splits total into n parts of whole cents, the last part absorbing the rounding.
func Split(total decimal.Decimal, n int) []decimal.Decimal {
	if n < 1 {
		return nil
	}
	part := total.Div(decimal.NewFromInt(int64(n))).RoundDown(2)
	parts := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		parts[i] = part
	}
	parts[n-1] = total.Sub(part.Mul(decimal.NewFromInt(int64(n - 1))))
	return parts
}

// AddMonths moves t by n calendar months, clamping the day to the end of the target month.
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	if last := first.AddDate(0, 1, -1).Day(); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
