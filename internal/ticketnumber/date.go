package ticketnumber

import (
	"context"
	"strconv"
	"strings"
	"time"
)

const dayLayout = "060102"

// DayKey formats t as YYMMDD in t's own location.
func DayKey(t time.Time) string {
	return t.Format(dayLayout)
}

// ParseCounter extracts the sequence part of number when it starts with
// dayPrefix. It reports false for numbers from another day or prefix.
func ParseCounter(number, dayPrefix string) (int64, bool) {
	rest, ok := strings.CutPrefix(number, dayPrefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SeedFromMaxNumber builds a SeedFunc from a lookup that returns the highest
// ticket number issued under a prefix ("" when none).
func SeedFromMaxNumber(maxNumber func(ctx context.Context, prefix string) (string, error)) SeedFunc {
	return func(ctx context.Context, dayPrefix string) (int64, error) {
		number, err := maxNumber(ctx, dayPrefix)
		if err != nil {
			return 0, err
		}
		n, _ := ParseCounter(number, dayPrefix)
		return n, nil
	}
}
