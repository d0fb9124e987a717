// Package interval parses human-readable report periods of the form
// "1h30m", "45s" or "2h" into time.Duration values.
package interval

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrInvalidFormat is returned when the input does not match the
	// (<h>h)?(<m>m)?(<s>s)? grammar.
	ErrInvalidFormat = errors.New("invalid interval format")

	// ErrEmpty is returned when the input matches the grammar but
	// carries no duration (empty string or all components zero).
	ErrEmpty = errors.New("interval must include a non-zero h, m or s component")
)

var intervalRe = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// Parse converts an interval string such as "30m" or "1h15m30s" into a
// time.Duration. Components may be omitted but must appear in h, m, s
// order, and the total must be positive.
func Parse(s string) (time.Duration, error) {
	m := intervalRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("%w: %q (use forms like 30m, 1h, 45s)", ErrInvalidFormat, s)
	}

	var total time.Duration
	for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil || n > (math.MaxInt64-int64(total))/int64(unit) {
			return 0, fmt.Errorf("%w: %q (interval too large)", ErrInvalidFormat, s)
		}
		total += time.Duration(n) * unit
	}

	if total == 0 {
		return 0, fmt.Errorf("%w: %q", ErrEmpty, s)
	}
	return total, nil
}

// Format renders d back into the grammar accepted by Parse, omitting
// zero components. Format(Parse(s)) is stable for any valid s.
func Format(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dh", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	if s > 0 {
		fmt.Fprintf(&b, "%ds", s)
	}
	if b.Len() == 0 {
		return "0s"
	}
	return b.String()
}
