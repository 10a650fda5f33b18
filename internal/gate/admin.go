package gate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/credgate/credgate/internal/models"
)

var validate = validator.New()

type createUserInput struct {
	Username string `validate:"required,alphanum,min=3,max=64"`
	Role     string `validate:"omitempty,oneof=user moderator admin"`
	Email    string `validate:"omitempty,email"`
}

// CreateUser provisions a new account after validating the inputs and the
// password-strength policy locally.
func (g *Gate) CreateUser(ctx context.Context, username, secret, role, email string, permissions []string, createdBy string) models.OpResult {
	if role == "" {
		role = "user"
	}
	in := createUserInput{Username: username, Role: role, Email: email}
	if err := validate.Struct(in); err != nil {
		g.logger.Warn("create user rejected", slog.String("username", username), slog.Any("error", err))
		return models.OpResult{OK: false, Message: "Invalid username, role, or email"}
	}
	if err := g.cfg.Policy.Validate(secret); err != nil {
		return models.OpResult{OK: false, Message: "Password does not meet security requirements"}
	}

	if permissions == nil {
		permissions = models.DefaultPermissions(role)
	}

	if err := g.store.CreateUser(ctx, username, secret, role, email, permissions); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return models.OpResult{OK: false, Message: "Username already exists"}
		}
		g.logger.Error("failed to create user", slog.String("username", username), slog.Any("error", err))
		return models.OpResult{OK: false, Message: "Failed to create user"}
	}

	g.logger.Info("user created", slog.String("username", username), slog.String("role", role))
	g.audit.LogAccountAction("user_created", username, createdBy, map[string]string{"role": role})
	return models.OpResult{OK: true, Message: "User created successfully"}
}

// ChangePassword changes a user's password after verifying the current one.
func (g *Gate) ChangePassword(ctx context.Context, username, currentSecret, newSecret string) models.OpResult {
	if _, err := g.store.VerifyCredentials(ctx, username, currentSecret); err != nil {
		if errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrInvalidCredentials) || errors.Is(err, models.ErrAccountLocked) {
			g.logger.Warn("password change rejected: current password invalid", slog.String("username", username))
			return models.OpResult{OK: false, Message: "Current password is incorrect"}
		}
		g.logger.Error("password change error", slog.String("username", username), slog.Any("error", err))
		return models.OpResult{OK: false, Message: "Password change failed"}
	}

	if err := g.cfg.Policy.Validate(newSecret); err != nil {
		return models.OpResult{OK: false, Message: "New password does not meet security requirements"}
	}

	if err := g.store.ChangePassword(ctx, username, newSecret); err != nil {
		g.logger.Error("password change error", slog.String("username", username), slog.Any("error", err))
		return models.OpResult{OK: false, Message: "Password change failed"}
	}

	g.logger.Info("password changed", slog.String("username", username))
	g.audit.LogAccountAction("password_changed", username, username, nil)
	return models.OpResult{OK: true, Message: "Password changed successfully"}
}

// ResetPassword is the administrative reset; it bypasses current-password
// verification but still enforces the strength policy.
func (g *Gate) ResetPassword(ctx context.Context, username, newSecret, adminUser string) models.OpResult {
	if err := g.cfg.Policy.Validate(newSecret); err != nil {
		return models.OpResult{OK: false, Message: "Password does not meet security requirements"}
	}

	if err := g.store.ChangePassword(ctx, username, newSecret); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.OpResult{OK: false, Message: "User not found"}
		}
		g.logger.Error("password reset error", slog.String("username", username), slog.Any("error", err))
		return models.OpResult{OK: false, Message: "Password reset failed"}
	}

	g.logger.Info("password reset", slog.String("username", username), slog.String("admin", adminUser))
	g.audit.LogAccountAction("password_reset", username, adminUser, nil)
	return models.OpResult{OK: true, Message: "Password reset successfully"}
}

// UnlockUser clears the store's long-term lock and the in-memory rate-limit
// window for the identity.
func (g *Gate) UnlockUser(ctx context.Context, username, adminUser string) models.OpResult {
	if err := g.store.UnlockUser(ctx, username); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.OpResult{OK: false, Message: "User not found"}
		}
		g.logger.Error("failed to unlock user", slog.String("username", username), slog.Any("error", err))
		return models.OpResult{OK: false, Message: "Failed to unlock user"}
	}

	g.limiter.Clear(username)
	g.logger.Info("user unlocked", slog.String("username", username), slog.String("admin", adminUser))
	g.audit.LogAccountAction("user_unlocked", username, adminUser, nil)
	return models.OpResult{OK: true, Message: "User account unlocked"}
}

// GetUser returns a user's record, or nil when the user does not exist.
func (g *Gate) GetUser(ctx context.Context, username string) *models.User {
	user, err := g.store.GetUser(ctx, username)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			g.logger.Error("failed to get user", slog.String("username", username), slog.Any("error", err))
		}
		return nil
	}
	return user
}

// ListUsers returns all user records. A store failure yields an empty list.
func (g *Gate) ListUsers(ctx context.Context) []*models.User {
	users, err := g.store.ListUsers(ctx)
	if err != nil {
		g.logger.Error("failed to list users", slog.Any("error", err))
		return nil
	}
	return users
}

// DeleteUser removes an account.
func (g *Gate) DeleteUser(ctx context.Context, username, adminUser string) models.OpResult {
	if err := g.store.DeleteUser(ctx, username); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.OpResult{OK: false, Message: "User not found"}
		}
		g.logger.Error("failed to delete user", slog.String("username", username), slog.Any("error", err))
		return models.OpResult{OK: false, Message: "Failed to delete user"}
	}

	g.logger.Info("user deleted", slog.String("username", username), slog.String("admin", adminUser))
	g.audit.LogAccountAction("user_deleted", username, adminUser, nil)
	return models.OpResult{OK: true, Message: "User deleted successfully"}
}
