// Package gate is the single entry point for interactive authentication and
// administrative credential operations. It layers an in-memory sliding
// window in front of the credential store, enforces the password-strength
// policy, and keeps failure messages enumeration-safe.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/credgate/credgate/internal/models"
	"github.com/credgate/credgate/internal/ratelimit"
	pkglogger "github.com/credgate/credgate/pkg/logger"
	"github.com/credgate/credgate/pkg/password"
)

// Outcome messages. MsgInvalidCredentials is deliberately identical for
// unknown users and wrong passwords to prevent username enumeration.
const (
	MsgCredentialsRequired = "Username and password are required"
	MsgInvalidCredentials  = "Invalid username or password"
	MsgAuthSuccess         = "Authentication successful"
	MsgPasswordChange      = "Password change required"
	MsgSystemError         = "Authentication system error"
)

// UserStore persists hashed credentials and owns the authoritative
// long-term lockout flag. VerifyCredentials performs the actual password
// hash comparison; it is expected to be slow (Argon2id on the order of
// 100ms) and is always called outside the rate limiter's lock.
type UserStore interface {
	VerifyCredentials(ctx context.Context, username, secret string) (*models.User, error)
	CreateUser(ctx context.Context, username, secret, role, email string, permissions []string) error
	ChangePassword(ctx context.Context, username, newSecret string) error
	UnlockUser(ctx context.Context, username string) error
	GetUser(ctx context.Context, username string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	DeleteUser(ctx context.Context, username string) error
}

// AttemptRecorder receives authentication outcomes for the append-only
// text log that the offline analyzer later consumes.
type AttemptRecorder interface {
	AuthFailed(username string)
	AuthTimeout(username string)
	RateLimited(username string)
}

// Config holds the gate's static configuration.
type Config struct {
	// HashAlgorithm and PepperConfigured describe the backing store for
	// SecurityInfo; the gate itself never touches either.
	HashAlgorithm    string
	PepperConfigured bool
	Policy           password.Policy
}

// Gate orchestrates login attempts and administrative operations. It is an
// explicit, constructible object; multiple independent instances never
// interfere.
type Gate struct {
	store    UserStore
	limiter  *ratelimit.Limiter
	recorder AttemptRecorder
	cfg      Config
	logger   *slog.Logger
	audit    *pkglogger.AuditLogger
}

// New creates a Gate. recorder may be nil when the surrounding system does
// its own outcome logging.
func New(store UserStore, limiter *ratelimit.Limiter, recorder AttemptRecorder, cfg Config, logger *slog.Logger, audit *pkglogger.AuditLogger) *Gate {
	if cfg.HashAlgorithm == "" {
		cfg.HashAlgorithm = "Argon2id"
	}
	if cfg.Policy.MinLength == 0 {
		cfg.Policy = password.DefaultPolicy()
	}
	return &Gate{
		store:    store,
		limiter:  limiter,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
		audit:    audit,
	}
}

// Authenticate runs one login attempt. Every expected failure mode is
// returned as a normal AuthOutcome, never an error.
func (g *Gate) Authenticate(ctx context.Context, username, secret string) models.AuthOutcome {
	username = strings.TrimSpace(username)
	if username == "" || secret == "" {
		g.logger.Warn("authentication attempt with empty credentials")
		return models.AuthOutcome{Success: false, Message: MsgCredentialsRequired}
	}

	// Cheap in-memory check first; a limited identity never reaches the
	// store, which both sheds load and avoids a timing side-channel.
	limited, retryAfter := g.limiter.IsLimited(username)
	if limited {
		wait := int(math.Ceil(retryAfter.Seconds()))
		g.logger.Warn("rate limited authentication attempt",
			slog.String("username", username),
			slog.Int("retry_after_seconds", wait))
		g.audit.LogAuthAttempt(pkglogger.AuditEvent{
			EventType:     "login_failed",
			Username:      username,
			FailureReason: "rate_limited",
			Success:       false,
		})
		if g.recorder != nil {
			g.recorder.RateLimited(username)
		}
		return models.AuthOutcome{
			Success: false,
			Message: fmt.Sprintf("Too many failed attempts. Try again in %d seconds.", wait),
		}
	}

	// Every call that gets this far counts toward the window, successes
	// included; a success then clears the whole window below.
	g.limiter.RecordAttempt(username)

	user, err := g.store.VerifyCredentials(ctx, username, secret)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound),
			errors.Is(err, models.ErrInvalidCredentials),
			errors.Is(err, models.ErrAccountLocked):
			g.logger.Warn("failed authentication attempt", slog.String("username", username))
			g.audit.LogAuthAttempt(pkglogger.AuditEvent{
				EventType:     "login_failed",
				Username:      username,
				FailureReason: "invalid_credentials",
				Success:       false,
			})
			if g.recorder != nil {
				g.recorder.AuthFailed(username)
			}
			return models.AuthOutcome{Success: false, Message: MsgInvalidCredentials}

		case errors.Is(err, context.DeadlineExceeded):
			g.logger.Error("authentication timeout", slog.String("username", username), slog.Any("error", err))
			if g.recorder != nil {
				g.recorder.AuthTimeout(username)
			}
			return models.AuthOutcome{Success: false, Message: MsgSystemError}

		default:
			// Store failures are logged in full here and never leak outward.
			g.logger.Error("authentication error", slog.String("username", username), slog.Any("error", err))
			return models.AuthOutcome{Success: false, Message: MsgSystemError}
		}
	}

	g.limiter.Clear(username)
	g.audit.LogAuthAttempt(pkglogger.AuditEvent{
		EventType: "login_success",
		Username:  username,
		Success:   true,
	})

	if user.RequiresPasswordChange {
		g.logger.Info("successful authentication, password change required", slog.String("username", username))
		return models.AuthOutcome{
			Success:                true,
			User:                   user,
			Message:                MsgPasswordChange,
			PasswordChangeRequired: true,
		}
	}

	g.logger.Info("successful authentication", slog.String("username", username))
	return models.AuthOutcome{Success: true, User: user, Message: MsgAuthSuccess}
}

// AuthenticateSimple reports only whether the credentials are valid.
func (g *Gate) AuthenticateSimple(ctx context.Context, username, secret string) bool {
	return g.Authenticate(ctx, username, secret).Success
}

// SecurityInfo reports the active security configuration. Pure function of
// static configuration; the pepper value itself is never included.
func (g *Gate) SecurityInfo() models.SecurityInfo {
	return models.SecurityInfo{
		HashAlgorithm:         g.cfg.HashAlgorithm,
		PepperConfigured:      g.cfg.PepperConfigured,
		RateLimitingEnabled:   true,
		MaxAttempts:           g.limiter.MaxAttempts(),
		TimeWindowSeconds:     int(g.limiter.Window().Seconds()),
		AccountLockoutEnabled: true,
		PasswordRequirements: models.PasswordRequirements{
			MinLength:         g.cfg.Policy.MinLength,
			RequiresUppercase: g.cfg.Policy.RequireUppercase,
			RequiresLowercase: g.cfg.Policy.RequireLowercase,
			RequiresDigit:     g.cfg.Policy.RequireDigit,
			RequiresSpecial:   g.cfg.Policy.RequireSpecial,
		},
	}
}
