package authlog_test

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/credgate/credgate/internal/analyzer"
	"github.com/credgate/credgate/internal/authlog"
)

var testNow = time.Date(2025, 6, 1, 11, 30, 0, 0, time.UTC)

func TestRecorder_LineFormat(t *testing.T) {
	var buf bytes.Buffer
	r := authlog.New(&buf, authlog.WithClock(func() time.Time { return testNow }))

	r.AuthFailed("alice")
	r.AuthTimeout("bob")
	r.RateLimited("carol")

	assert.Equal(t,
		"2025-06-01 11:30:00 [ERROR] credgate.gate: Failed authentication attempt for user: alice\n"+
			"2025-06-01 11:30:00 [ERROR] credgate.gate: Authentication timeout for user: bob\n"+
			"2025-06-01 11:30:00 [ERROR] credgate.gate: Rate limited authentication attempt for user: carol\n",
		buf.String())
}

// Recorded output must round-trip through the analyzer's patterns.
func TestRecorder_OutputParsesBackThroughAnalyzer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")
	f, err := os.Create(path)
	require.NoError(t, err)

	r := authlog.New(f, authlog.WithClock(func() time.Time { return testNow }))
	r.AuthFailed("alice")
	r.AuthFailed("alice")
	r.AuthTimeout("alice")
	r.RateLimited("admin")
	require.NoError(t, f.Close())

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	a := analyzer.New(path, nil, logger,
		analyzer.WithClock(func() time.Time { return testNow.Add(time.Hour) }))

	report := a.AnalyzeLogs(24)

	assert.Equal(t, 4, report.TotalEvents)
	assert.Equal(t, map[string]int{"alice": 3}, report.FailedAttempts)
	assert.Equal(t, []string{"admin"}, report.SuspiciousUsernames)
}

// A recorder running in a non-UTC zone must still produce lines the
// analyzer dates correctly: the written timestamp is the UTC instant, not
// the local wall time.
func TestRecorder_NonUTCClockStaysInAnalysisWindow(t *testing.T) {
	eastern := time.FixedZone("EST", -5*60*60)
	instant := testNow.In(eastern)
	require.Equal(t, "2025-06-01 06:30:00", instant.Format("2006-01-02 15:04:05"),
		"sanity: local wall time differs from UTC")

	path := filepath.Join(t.TempDir(), "errors.log")
	f, err := os.Create(path)
	require.NoError(t, err)

	r := authlog.New(f, authlog.WithClock(func() time.Time { return instant }))
	r.AuthFailed("alice")
	require.NoError(t, f.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "2025-06-01 11:30:00", "timestamp must be the UTC instant")

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	a := analyzer.New(path, nil, logger,
		analyzer.WithClock(func() time.Time { return instant.Add(time.Hour) }))

	report := a.AnalyzeLogs(1)

	assert.Equal(t, 1, report.TotalEvents,
		"event written moments ago must fall inside a one-hour window regardless of zone")
	assert.Equal(t, map[string]int{"alice": 1}, report.FailedAttempts)
}

func TestRecorder_FileCreatesAndAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.log")

	r := authlog.NewFile(path, 10, 2, authlog.WithClock(func() time.Time { return testNow }))
	r.AuthFailed("alice")
	require.NoError(t, r.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Failed authentication attempt for user: alice")
}
