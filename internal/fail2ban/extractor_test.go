package fail2ban

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `2024-12-31 23:59:59,001 fail2ban.actions: NOTICE [sshd] Ban 5.5.5.5
not an event line
2025-01-01 00:00:00,100 fail2ban.filter: INFO [sshd] Found 9.9.9.9
2025-01-01 00:00:05,200 fail2ban.actions: NOTICE [sshd] Ban 9.9.9.9
2025-01-01 00:10:00,300 fail2ban.filter: INFO [sshd] Found
2025-01-01 00:30:00,400 fail2ban.actions: NOTICE [sshd] Unban 5.5.5.5
garbage 2025-01-01 00:31:00 Ban 6.6.6.6
2025-01-01 02:00:00,500 fail2ban.actions: NOTICE [sshd] Ban 7.7.7.7
`

func TestExtract_WindowFilter(t *testing.T) {
	w := Window{
		Start: ts(t, "2025-01-01 00:00:00"),
		End:   ts(t, "2025-01-01 01:00:00"),
	}

	got, err := Extract(strings.NewReader(sampleLog), w)
	require.NoError(t, err)

	// 5.5.5.5 ban is before the window, 7.7.7.7 after, and the
	// mid-line timestamp variant is not a leading timestamp.
	require.Len(t, got.Bans, 1)
	assert.Equal(t, "9.9.9.9", got.Bans[0].Address)

	require.Len(t, got.Unbans, 1)
	assert.Equal(t, "5.5.5.5", got.Unbans[0].Address)

	// Two Found lines in window, one without a resolvable address.
	require.Len(t, got.Found, 2)
	assert.Equal(t, "9.9.9.9", got.Found[0].Address)
	assert.Empty(t, got.Found[1].Address)
	assert.Equal(t, 2, got.FailedAttempts)
}

func TestExtract_BoundariesInclusive(t *testing.T) {
	log := "2025-01-01 00:00:00 Ban 1.1.1.1\n" +
		"2025-01-01 01:00:00 Ban 2.2.2.2\n"
	w := Window{Start: ts(t, "2025-01-01 00:00:00"), End: ts(t, "2025-01-01 01:00:00")}

	got, err := Extract(strings.NewReader(log), w)
	require.NoError(t, err)
	require.Len(t, got.Bans, 2)
}

func TestExtract_EmptyInput(t *testing.T) {
	got, err := Extract(strings.NewReader(""), Window{})
	require.NoError(t, err)
	assert.Zero(t, got.Total())
	assert.Zero(t, got.FailedAttempts)
}

func TestExtractFile_MissingFile(t *testing.T) {
	got, err := ExtractFile(filepath.Join(t.TempDir(), "does-not-exist.log"), Window{})
	require.NoError(t, err, "a missing log file must not fail the cycle")
	assert.Empty(t, got.Bans)
	assert.Empty(t, got.Unbans)
	assert.Empty(t, got.Found)
	assert.Zero(t, got.FailedAttempts)
}

func TestExtractFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fail2ban.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))

	w := Window{Start: ts(t, "2024-01-01 00:00:00"), End: ts(t, "2026-01-01 00:00:00")}
	got, err := ExtractFile(path, w)
	require.NoError(t, err)
	assert.Len(t, got.Bans, 3)
	assert.Len(t, got.Unbans, 1)
	assert.Equal(t, 2, got.FailedAttempts)
}

func TestExtract_ToleratesBinaryNoise(t *testing.T) {
	log := "\x00\xff\xfe binary junk\n2025-01-01 00:00:00 Ban 1.1.1.1\n"
	w := Window{Start: ts(t, "2025-01-01 00:00:00"), End: ts(t, "2025-01-01 00:00:00")}

	got, err := Extract(strings.NewReader(log), w)
	require.NoError(t, err)
	require.Len(t, got.Bans, 1)
}
