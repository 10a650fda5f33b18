// Package analyzer reconstructs authentication events from the append-only
// text log and flags brute-force and suspicious-username patterns. It runs
// offline, read-only, and never shares state with live authentication
// traffic.
package analyzer

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"time"

	"github.com/credgate/credgate/internal/models"
)

// Thresholds for brute-force clustering and frequency flags.
const (
	rapidGap           = 60 * time.Second
	rapidCandidateMin  = 3
	rapidHighSeverity  = 5
	frequentFailureMin = 3
	veryHighFailureMin = 10
	timestampLayout    = "2006-01-02 15:04:05"
)

// Line patterns the analyzer recognizes. A single line may match more than
// one pattern (a failed-attempt line carrying the test marker produces both
// events).
var linePatterns = []struct {
	kind models.EventKind
	re   *regexp.Regexp
}{
	{models.EventAuthFailed, regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) \[ERROR\] .* Failed authentication attempt for user: (\w+)`)},
	{models.EventAuthTimeout, regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) \[ERROR\] .* Authentication timeout for user: (\w+)`)},
	{models.EventRateLimited, regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) \[ERROR\] .* Rate limited authentication attempt for user: (\w+)`)},
	{models.EventTestMarker, regexp.MustCompile(`(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) \[ERROR\] .* Test:`)},
}

// DefaultSuspiciousUsernames is the static dictionary of identities that
// attackers probe by habit.
var DefaultSuspiciousUsernames = []string{
	"admin", "administrator", "root", "test", "guest", "demo",
	"user", "password", "login", "system", "oracle", "postgres",
	"mysql", "sa", "support", "service", "default",
}

// Analyzer scans an authentication log and produces an AnalysisReport.
type Analyzer struct {
	logPath    string
	suspicious map[string]struct{}
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithClock replaces the wall clock used for the analysis-window cutoff,
// for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) { a.now = now }
}

// New creates an Analyzer over the given log file. An empty dictionary
// falls back to DefaultSuspiciousUsernames.
func New(logPath string, suspiciousUsernames []string, logger *slog.Logger, opts ...Option) *Analyzer {
	if len(suspiciousUsernames) == 0 {
		suspiciousUsernames = DefaultSuspiciousUsernames
	}
	suspicious := make(map[string]struct{}, len(suspiciousUsernames))
	for _, name := range suspiciousUsernames {
		suspicious[name] = struct{}{}
	}
	a := &Analyzer{
		logPath:    logPath,
		suspicious: suspicious,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// AnalyzeLogs scans events from the last hoursBack hours and aggregates
// them into a report. A missing or unreadable log source yields a report
// with a populated Error field, never a panic or error return.
func (a *Analyzer) AnalyzeLogs(hoursBack int) models.AnalysisReport {
	f, err := os.Open(a.logPath)
	if err != nil {
		a.logger.Warn("auth log unavailable", slog.String("path", a.logPath), slog.Any("error", err))
		return models.AnalysisReport{
			FailedAttempts:      map[string]int{},
			BruteForceAttempts:  map[string]models.BruteForceCandidate{},
			SuspiciousUsernames: []string{},
			FrequentFailures:    map[string]int{},
			TestDataInLogs:      []string{},
			Recommendations:     []string{"Log file not found. Check if logging is properly configured."},
			Error:               fmt.Sprintf("Log file not found: %s", a.logPath),
		}
	}
	defer f.Close()

	cutoff := a.now().Add(-time.Duration(hoursBack) * time.Hour)
	events := a.parseEvents(f, cutoff)

	report := models.AnalysisReport{
		TotalEvents:         len(events),
		FailedAttempts:      countFailedAttempts(events),
		BruteForceAttempts:  detectBruteForce(events),
		SuspiciousUsernames: a.findSuspiciousUsernames(events),
		FrequentFailures:    map[string]int{},
		TestDataInLogs:      detectTestData(events),
	}
	for user, count := range report.FailedAttempts {
		if count > frequentFailureMin {
			report.FrequentFailures[user] = count
		}
	}
	report.Recommendations = recommendations(&report)
	return report
}

// parseEvents scans the log line by line, matching every pattern against
// every line. Lines with an unparseable timestamp are skipped with a
// warning; scanning continues.
func (a *Analyzer) parseEvents(f *os.File, cutoff time.Time) []models.SecurityEvent {
	var events []models.SecurityEvent

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		for _, p := range linePatterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			// Log timestamps are UTC, matching what the recorder writes.
			ts, err := time.Parse(timestampLayout, m[1])
			if err != nil {
				a.logger.Warn("skipping line with unparseable timestamp",
					slog.Int("line", lineNum),
					slog.String("timestamp", m[1]))
				continue
			}
			if ts.Before(cutoff) {
				continue
			}
			username := "unknown"
			if len(m) > 2 {
				username = m[2]
			}
			events = append(events, models.SecurityEvent{
				Timestamp: ts,
				Kind:      p.kind,
				Username:  username,
				Severity:  a.AssessSeverity(p.kind, username),
				RawLine:   line,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		a.logger.Error("error reading auth log", slog.Any("error", err))
	}

	return events
}

// countFailedAttempts tallies failed and timeout events per identity.
func countFailedAttempts(events []models.SecurityEvent) map[string]int {
	counts := make(map[string]int)
	for _, e := range events {
		if e.Kind == models.EventAuthFailed || e.Kind == models.EventAuthTimeout {
			counts[e.Username]++
		}
	}
	return counts
}

// detectBruteForce clusters each identity's failure timestamps and flags
// identities with enough rapid adjacent attempts.
func detectBruteForce(events []models.SecurityEvent) map[string]models.BruteForceCandidate {
	byUser := make(map[string][]time.Time)
	for _, e := range events {
		if e.Kind == models.EventAuthFailed || e.Kind == models.EventAuthTimeout {
			byUser[e.Username] = append(byUser[e.Username], e.Timestamp)
		}
	}

	candidates := make(map[string]models.BruteForceCandidate)
	for username, timestamps := range byUser {
		sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

		rapid := 0
		for i := 1; i < len(timestamps); i++ {
			if timestamps[i].Sub(timestamps[i-1]) < rapidGap {
				rapid++
			}
		}
		if rapid < rapidCandidateMin {
			continue
		}

		severity := models.SeverityMedium
		if rapid >= rapidHighSeverity {
			severity = models.SeverityHigh
		}
		candidates[username] = models.BruteForceCandidate{
			TotalAttempts:   len(timestamps),
			RapidAttempts:   rapid,
			TimeSpanMinutes: timestamps[len(timestamps)-1].Sub(timestamps[0]).Minutes(),
			Severity:        severity,
		}
	}
	return candidates
}

// findSuspiciousUsernames intersects observed identities with the static
// dictionary. Sorted for deterministic output.
func (a *Analyzer) findSuspiciousUsernames(events []models.SecurityEvent) []string {
	seen := make(map[string]struct{})
	for _, e := range events {
		if _, ok := a.suspicious[e.Username]; ok {
			seen[e.Username] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// detectTestData collects the raw text of every test-marker line.
func detectTestData(events []models.SecurityEvent) []string {
	findings := []string{}
	for _, e := range events {
		if e.Kind == models.EventTestMarker {
			findings = append(findings, e.RawLine)
		}
	}
	return findings
}
