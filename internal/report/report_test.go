package report

import (
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/banwatch/internal/fail2ban"
)

func found(addrs ...string) []fail2ban.Event {
	out := make([]fail2ban.Event, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, fail2ban.Event{Kind: fail2ban.KindFound, Address: a})
	}
	return out
}

func bans(addrs ...string) []fail2ban.Event {
	out := make([]fail2ban.Event, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, fail2ban.Event{Kind: fail2ban.KindBan, Address: a})
	}
	return out
}

func window() fail2ban.Window {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return fail2ban.Window{Start: start, End: start.Add(time.Hour)}
}

func TestAggregate_Deduplication(t *testing.T) {
	ex := fail2ban.Extraction{
		Bans:   bans("1.1.1.1", "2.2.2.2", "1.1.1.1"),
		Unbans: []fail2ban.Event{{Kind: fail2ban.KindUnban, Address: "3.3.3.3"}},
	}

	d := Aggregate(window(), ex, 5)
	assert.Equal(t, []string{"1.1.1.1", "2.2.2.2"}, d.UniqueBanned)
	assert.Equal(t, []string{"3.3.3.3"}, d.UniqueUnbanned)
	assert.NotEmpty(t, d.ID)
}

func TestAggregate_SortsLexicographically(t *testing.T) {
	ex := fail2ban.Extraction{Bans: bans("9.9.9.9", "10.0.0.1", "2.2.2.2")}

	d := Aggregate(window(), ex, 5)
	// Opaque-token ordering: "10..." sorts before "2...".
	assert.Equal(t, []string{"10.0.0.1", "2.2.2.2", "9.9.9.9"}, d.UniqueBanned)
}

func TestAggregate_TopNStability(t *testing.T) {
	ex := fail2ban.Extraction{
		Found:          found("a", "b", "a", "c", "b", "a"),
		FailedAttempts: 6,
	}

	d := Aggregate(window(), ex, 2)
	require.Len(t, d.TopOffenders, 2)
	assert.Equal(t, Offender{Address: "a", Count: 3}, d.TopOffenders[0])
	assert.Equal(t, Offender{Address: "b", Count: 2}, d.TopOffenders[1])
	assert.Equal(t, 6, d.TotalFailedAttempts)
}

func TestAggregate_TiesBrokenByFirstOccurrence(t *testing.T) {
	ex := fail2ban.Extraction{Found: found("z", "a", "z", "a", "m")}

	d := Aggregate(window(), ex, 3)
	require.Len(t, d.TopOffenders, 3)
	assert.Equal(t, "z", d.TopOffenders[0].Address, "z was encountered before a")
	assert.Equal(t, "a", d.TopOffenders[1].Address)
	assert.Equal(t, "m", d.TopOffenders[2].Address)
}

func TestAggregate_UnresolvedAttemptsExcludedFromRanking(t *testing.T) {
	ex := fail2ban.Extraction{
		Found:          found("", "1.1.1.1", ""),
		FailedAttempts: 3,
	}

	d := Aggregate(window(), ex, 5)
	require.Len(t, d.TopOffenders, 1)
	assert.Equal(t, "1.1.1.1", d.TopOffenders[0].Address)
	assert.Equal(t, 3, d.TotalFailedAttempts, "line count passes through unchanged")
}

func TestAggregate_ZeroTopN(t *testing.T) {
	ex := fail2ban.Extraction{Found: found("1.1.1.1")}

	d := Aggregate(window(), ex, 0)
	assert.Empty(t, d.TopOffenders)
}

func TestAggregate_Deterministic(t *testing.T) {
	gofakeit.Seed(7)
	var ex fail2ban.Extraction
	for i := 0; i < 200; i++ {
		ex.Found = append(ex.Found, fail2ban.Event{
			Kind:    fail2ban.KindFound,
			Address: gofakeit.IPv4Address(),
		})
	}
	ex.FailedAttempts = len(ex.Found)

	first := Aggregate(window(), ex, 10)
	second := Aggregate(window(), ex, 10)
	assert.Equal(t, first.TopOffenders, second.TopOffenders)
	assert.Equal(t, first.UniqueBanned, second.UniqueBanned)
}

func TestRenderText(t *testing.T) {
	ex := fail2ban.Extraction{
		Bans:           bans("9.9.9.9"),
		Found:          found("9.9.9.9"),
		FailedAttempts: 1,
	}
	d := Aggregate(window(), ex, 5)

	text := RenderText(d)
	assert.Contains(t, text, "Banned IPs: 1")
	assert.Contains(t, text, "  - 9.9.9.9")
	assert.Contains(t, text, "9.9.9.9 (1)")
	assert.Contains(t, text, "Failed attempts (Found): 1")
	assert.Contains(t, text, "(none)", "empty unban list shows placeholder")
}

func TestRenderText_EmptyReport(t *testing.T) {
	d := Aggregate(window(), fail2ban.Extraction{}, 5)

	text := RenderText(d)
	assert.Contains(t, text, "(none)")
	assert.Contains(t, text, "(no data)")
}

func TestRenderHTML(t *testing.T) {
	ex := fail2ban.Extraction{
		Bans:           bans("9.9.9.9"),
		Found:          found("9.9.9.9", "9.9.9.9"),
		FailedAttempts: 2,
	}
	d := Aggregate(window(), ex, 5)

	html, err := RenderHTML(d, "[Fail2Ban]")
	require.NoError(t, err)
	assert.Contains(t, html, "[Fail2Ban]")
	assert.Contains(t, html, "9.9.9.9 (2)")
	assert.Contains(t, html, "(none)", "empty unban list shows placeholder")
}

func TestRenderHTML_EscapesAddresses(t *testing.T) {
	ex := fail2ban.Extraction{Bans: bans(`<script>alert(1)</script>`)}
	d := Aggregate(window(), ex, 5)

	html, err := RenderHTML(d, "[x]")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestRenderHTML_NoRanking(t *testing.T) {
	d := Aggregate(window(), fail2ban.Extraction{}, 5)

	html, err := RenderHTML(d, "[x]")
	require.NoError(t, err)
	assert.Contains(t, html, "(no data)")
}

func TestSubject(t *testing.T) {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "[Fail2Ban] Intrusion report 2025-01-02 03:04:05", Subject("[Fail2Ban]", at))
}
