// Package report turns windowed fail2ban extractions into deduplicated,
// ranked report data and renders it as text and HTML.
package report

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/telhawk-systems/banwatch/internal/fail2ban"
)

// Offender is one entry of the top-N ranking.
type Offender struct {
	Address string `json:"address"`
	Count   int    `json:"count"`
}

// Data is the derived, transient report content. Computed fresh per
// report and never persisted.
type Data struct {
	ID                  string     `json:"id"`
	WindowStart         time.Time  `json:"window_start"`
	WindowEnd           time.Time  `json:"window_end"`
	UniqueBanned        []string   `json:"unique_banned"`
	UniqueUnbanned      []string   `json:"unique_unbanned"`
	TotalFailedAttempts int        `json:"total_failed_attempts"`
	TopOffenders        []Offender `json:"top_offenders"`
}

// Aggregate computes report data from an extraction. Banned and
// unbanned lists are deduplicated and sorted lexicographically. The
// top-N ranking counts occurrences per resolvable found address,
// descending by count with ties broken by first-encountered order, and
// is truncated to topN. Deterministic for identical inputs.
func Aggregate(w fail2ban.Window, ex fail2ban.Extraction, topN int) Data {
	return Data{
		ID:                  uuid.NewString(),
		WindowStart:         w.Start,
		WindowEnd:           w.End,
		UniqueBanned:        uniqueSorted(ex.Bans),
		UniqueUnbanned:      uniqueSorted(ex.Unbans),
		TotalFailedAttempts: ex.FailedAttempts,
		TopOffenders:        rank(ex.Found, topN),
	}
}

func uniqueSorted(events []fail2ban.Event) []string {
	seen := make(map[string]struct{}, len(events))
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.Address]; ok {
			continue
		}
		seen[ev.Address] = struct{}{}
		out = append(out, ev.Address)
	}
	sort.Strings(out)
	return out
}

func rank(found []fail2ban.Event, topN int) []Offender {
	if topN <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, ev := range found {
		if ev.Address == "" {
			// Unresolved attempts count toward the total but
			// cannot be ranked.
			continue
		}
		if counts[ev.Address] == 0 {
			order = append(order, ev.Address)
		}
		counts[ev.Address]++
	}

	ranking := make([]Offender, 0, len(order))
	for _, addr := range order {
		ranking = append(ranking, Offender{Address: addr, Count: counts[addr]})
	}
	// Stable over first-encountered order, so equal counts keep it.
	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Count > ranking[j].Count
	})

	if len(ranking) > topN {
		ranking = ranking[:topN]
	}
	return ranking
}
