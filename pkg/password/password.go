// Package password implements the credential-strength policy applied to
// administrative create/reset operations.
package password

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SpecialChars is the fixed alphabet accepted for the special-character
// requirement.
const SpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

// Policy holds the tunable strength requirements. Interactive
// authentication and provisioning enforce independently configured
// policies; they are two Policy values, not one rule.
type Policy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
}

// DefaultPolicy is the policy enforced at authentication-time operations.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:        12,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
	}
}

// ProvisioningPolicy is the stricter policy used when generating accounts
// in bulk.
func ProvisioningPolicy() Policy {
	p := DefaultPolicy()
	p.MinLength = 16
	return p
}

// PolicyError holds every requirement the candidate password failed.
type PolicyError struct {
	Violations []string
}

func (e *PolicyError) Error() string {
	if len(e.Violations) == 0 {
		return "password does not meet security requirements"
	}
	return "password " + strings.Join(e.Violations, "; ")
}

// Validate checks a candidate password against the policy. A nil return
// means the password satisfies every requirement.
func (p Policy) Validate(password string) error {
	var violations []string

	// Character count, not byte count: multi-byte passwords must not get
	// credit for their encoding length.
	if utf8.RuneCountInString(password) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(SpecialChars, r):
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		violations = append(violations, "must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		violations = append(violations, "must contain at least one lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "must contain at least one digit")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain at least one special character")
	}

	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
