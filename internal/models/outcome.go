package models

// AuthOutcome is the result of one authentication call. Expected failure
// modes (bad credentials, rate limiting, empty input) are represented here,
// never as errors.
type AuthOutcome struct {
	Success                bool   `json:"success"`
	User                   *User  `json:"user,omitempty"`
	Message                string `json:"message"`
	PasswordChangeRequired bool   `json:"password_change_required,omitempty"`
}

// OpResult is the two-part result of an administrative operation. "Not
// found" is a normal outcome, not an error.
type OpResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// PasswordRequirements describes the active password-strength policy.
type PasswordRequirements struct {
	MinLength         int  `json:"min_length"`
	RequiresUppercase bool `json:"requires_uppercase"`
	RequiresLowercase bool `json:"requires_lowercase"`
	RequiresDigit     bool `json:"requires_digit"`
	RequiresSpecial   bool `json:"requires_special"`
}

// SecurityInfo is a static description of the authentication configuration,
// for diagnostics and audits. The pepper value itself is never exposed.
type SecurityInfo struct {
	HashAlgorithm         string               `json:"hash_algorithm"`
	PepperConfigured      bool                 `json:"pepper_configured"`
	RateLimitingEnabled   bool                 `json:"rate_limiting_enabled"`
	MaxAttempts           int                  `json:"max_attempts"`
	TimeWindowSeconds     int                  `json:"time_window_seconds"`
	AccountLockoutEnabled bool                 `json:"account_lockout_enabled"`
	PasswordRequirements  PasswordRequirements `json:"password_requirements"`
}
