package models

import "time"

// Severity levels for security events, totally ordered.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// MarshalText implements encoding.TextMarshaler so severities serialize as
// their names in JSON maps and fields.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "high":
		*s = SeverityHigh
	case "medium":
		*s = SeverityMedium
	default:
		*s = SeverityLow
	}
	return nil
}

// EventKind classifies a parsed authentication log line.
type EventKind string

const (
	EventAuthFailed  EventKind = "auth_failed"
	EventAuthTimeout EventKind = "auth_timeout"
	EventRateLimited EventKind = "rate_limited"
	EventTestMarker  EventKind = "test_marker"
)

// SecurityEvent is one reconstructed authentication event.
type SecurityEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"kind"`
	Username  string    `json:"username"`
	Severity  Severity  `json:"severity"`
	RawLine   string    `json:"raw_line"`
}

// BruteForceCandidate describes an identity whose failure timestamps
// cluster tightly enough to look like an automated attack.
type BruteForceCandidate struct {
	TotalAttempts   int      `json:"total_attempts"`
	RapidAttempts   int      `json:"rapid_attempts"`
	TimeSpanMinutes float64  `json:"time_span_minutes"`
	Severity        Severity `json:"severity"`
}

// AnalysisReport is the aggregate output of one log-analysis run. It is
// recomputed from scratch every run; nothing here is persisted.
type AnalysisReport struct {
	TotalEvents         int                            `json:"total_events"`
	FailedAttempts      map[string]int                 `json:"failed_attempts"`
	BruteForceAttempts  map[string]BruteForceCandidate `json:"brute_force_attempts"`
	SuspiciousUsernames []string                       `json:"suspicious_usernames"`
	FrequentFailures    map[string]int                 `json:"frequent_failures"`
	TestDataInLogs      []string                       `json:"test_data_in_logs"`
	Recommendations     []string                       `json:"recommendations"`
	Error               string                         `json:"error,omitempty"`
}
