package analyzer

import (
	"fmt"
	"strings"

	"github.com/credgate/credgate/internal/models"
)

// severityRule maps an event condition to a severity. Rules are evaluated
// in order; the first match wins.
type severityRule struct {
	applies  func(kind models.EventKind, suspiciousName bool) bool
	severity models.Severity
}

var severityRules = []severityRule{
	// Test artifacts in a production log always rank highest.
	{func(kind models.EventKind, _ bool) bool { return kind == models.EventTestMarker }, models.SeverityHigh},
	{func(kind models.EventKind, _ bool) bool { return kind == models.EventRateLimited }, models.SeverityHigh},
	{func(kind models.EventKind, _ bool) bool { return kind == models.EventAuthTimeout }, models.SeverityMedium},
	{func(_ models.EventKind, suspiciousName bool) bool { return suspiciousName }, models.SeverityMedium},
}

// AssessSeverity classifies one event against the ordered rule table.
// Exposed so each rule can be exercised independently of log parsing.
func (a *Analyzer) AssessSeverity(kind models.EventKind, username string) models.Severity {
	_, suspiciousName := a.suspicious[username]
	for _, rule := range severityRules {
		if rule.applies(kind, suspiciousName) {
			return rule.severity
		}
	}
	return models.SeverityLow
}

// recommendationRule maps an aggregate condition to a human-readable
// recommendation. Rules are evaluated in order; every firing rule
// contributes one message.
type recommendationRule struct {
	fires   func(r *models.AnalysisReport) bool
	message func(r *models.AnalysisReport) string
}

var recommendationRules = []recommendationRule{
	{
		fires: func(r *models.AnalysisReport) bool { return len(r.TestDataInLogs) > 0 },
		message: func(r *models.AnalysisReport) string {
			return "CRITICAL: Remove test data from production logs. Test code should not run in production."
		},
	},
	{
		fires: func(r *models.AnalysisReport) bool { return len(r.BruteForceAttempts) > 0 },
		message: func(r *models.AnalysisReport) string {
			return fmt.Sprintf("WARNING: Detected %d potential brute force attacks. "+
				"Consider implementing CAPTCHA or temporary IP blocking.", len(r.BruteForceAttempts))
		},
	},
	{
		fires: func(r *models.AnalysisReport) bool { return len(r.SuspiciousUsernames) > 0 },
		message: func(r *models.AnalysisReport) string {
			return fmt.Sprintf("ALERT: Authentication attempts on %d suspicious usernames: %s. "+
				"Consider monitoring these more closely.",
				len(r.SuspiciousUsernames), strings.Join(r.SuspiciousUsernames, ", "))
		},
	},
	{
		fires: func(r *models.AnalysisReport) bool { return countVeryHighFailures(r) > 0 },
		message: func(r *models.AnalysisReport) string {
			return fmt.Sprintf("WARNING: %d users with very high failure rates (>%d attempts). "+
				"Consider temporary account lockouts.", countVeryHighFailures(r), veryHighFailureMin)
		},
	},
}

func countVeryHighFailures(r *models.AnalysisReport) int {
	n := 0
	for _, count := range r.FrequentFailures {
		if count > veryHighFailureMin {
			n++
		}
	}
	return n
}

// recommendations evaluates the rule table against the aggregates. When no
// rule fires, a single all-clear message is emitted.
func recommendations(r *models.AnalysisReport) []string {
	out := []string{}
	for _, rule := range recommendationRules {
		if rule.fires(r) {
			out = append(out, rule.message(r))
		}
	}
	if len(out) == 0 {
		out = append(out, "No immediate security concerns detected.")
	}
	return out
}
