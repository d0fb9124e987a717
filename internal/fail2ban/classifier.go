package fail2ban

import (
	"regexp"
	"strings"
	"time"
)

// timestampLayout is the fixed fail2ban timestamp shape at the start of
// every event line. Sub-second noise after the match is ignored.
const timestampLayout = "2006-01-02 15:04:05"

var (
	timestampRe = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})`)
	banRe       = regexp.MustCompile(`Ban\s+(\S+)`)
	unbanRe     = regexp.MustCompile(`Unban\s+(\S+)`)
	foundRe     = regexp.MustCompile(`\bFound\b`)
)

// matcherRule classifies one already-timestamped line. Returns the
// event and true on a match.
type matcherRule func(ts time.Time, line string) (Event, bool)

// rules is the classification priority order. Ban wins over Unban wins
// over Found; a line containing both a ban marker and the word Found is
// a ban only. The order is a tested invariant.
var rules = []matcherRule{
	matchBan,
	matchUnban,
	matchFound,
}

func matchBan(ts time.Time, line string) (Event, bool) {
	m := banRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	return Event{Timestamp: ts, Kind: KindBan, Address: m[1]}, true
}

func matchUnban(ts time.Time, line string) (Event, bool) {
	m := unbanRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	return Event{Timestamp: ts, Kind: KindUnban, Address: m[1]}, true
}

// matchFound counts the line as a failed attempt and resolves the
// address as the whitespace token immediately after the literal word
// Found. A trailing Found with no following token still yields an
// event, with an empty address.
func matchFound(ts time.Time, line string) (Event, bool) {
	if !foundRe.MatchString(line) {
		return Event{}, false
	}
	ev := Event{Timestamp: ts, Kind: KindFound}
	parts := strings.Fields(line)
	for i, w := range parts {
		if w == "Found" && i+1 < len(parts) {
			ev.Address = parts[i+1]
			break
		}
	}
	return ev, true
}

// Classify decides whether a raw log line is a security event. Lines
// without a leading well-formed timestamp, and timestamped lines that
// match no rule, are not events; ok is false and no error is possible,
// since arbitrary log noise is expected.
func Classify(line string) (Event, bool) {
	m := timestampRe.FindStringSubmatch(line)
	if m == nil {
		return Event{}, false
	}
	ts, err := time.Parse(timestampLayout, m[1])
	if err != nil {
		return Event{}, false
	}
	for _, rule := range rules {
		if ev, ok := rule(ts, line); ok {
			return ev, true
		}
	}
	return Event{}, false
}
