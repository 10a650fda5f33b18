// Package store is the SQLite-backed credential store: Argon2id hashing
// with a server-side pepper, persisted failure counters, and the
// authoritative long-term lockout flag. It is deliberately redundant with
// the gate's in-memory rate limiter, at a longer time scale.
package store

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	_ "modernc.org/sqlite"

	"github.com/credgate/credgate/internal/models"
)

// Argon2id parameters, per current OWASP guidance.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	saltBytes    = 16
)

// DefaultMaxFailedLogins is the persisted failure count at which an
// account is locked until an explicit unlock.
const DefaultMaxFailedLogins = 5

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT NOT NULL,
	username TEXT PRIMARY KEY,
	password_hash TEXT NOT NULL,
	salt TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'user',
	email TEXT,
	permissions TEXT NOT NULL DEFAULT '[]',
	failed_attempts INTEGER NOT NULL DEFAULT 0,
	account_locked INTEGER NOT NULL DEFAULT 0,
	requires_password_change INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	last_login TIMESTAMP
);
`

// Store implements the gate's UserStore interface over SQLite.
type Store struct {
	db        *sql.DB
	pepper    string
	maxFailed int
	logger    *slog.Logger
}

// Open creates or opens the credential database. The pepper is required:
// running without one is a configuration error, not a degraded mode.
func Open(path, pepper string, logger *slog.Logger) (*Store, error) {
	if pepper == "" {
		return nil, errors.New("credential pepper is not configured")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential database: %w", err)
	}
	// SQLite permits one writer; serialize through a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize credential database: %w", err)
	}
	// The database holds credential hashes; keep it owner-only.
	if err := os.Chmod(path, 0o600); err != nil {
		logger.Warn("could not restrict database permissions", slog.String("path", path), slog.Any("error", err))
	}

	return &Store{
		db:        db,
		pepper:    pepper,
		maxFailed: DefaultMaxFailedLogins,
		logger:    logger,
	}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// HashAlgorithm names the key-derivation function in use.
func (s *Store) HashAlgorithm() string { return "Argon2id" }

// VerifyCredentials compares the secret against the stored Argon2id hash.
// A locked account fails verification before any hashing happens. Failed
// comparisons increment the persisted counter and lock the account once
// the threshold is reached.
func (s *Store) VerifyCredentials(ctx context.Context, username, secret string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, salt, role, COALESCE(email, ''), permissions,
		       failed_attempts, account_locked, requires_password_change, created_at, last_login
		FROM users WHERE username = ?`, username)

	var (
		user         models.User
		passwordHash string
		salt         string
		permissions  string
		lastLogin    sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Username, &passwordHash, &salt, &user.Role, &user.Email,
		&permissions, &user.FailedAttempts, &user.AccountLocked, &user.RequiresPasswordChange,
		&user.CreatedAt, &lastLogin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user %q: %w", username, err)
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	if err := json.Unmarshal([]byte(permissions), &user.Permissions); err != nil {
		user.Permissions = nil
	}

	if user.AccountLocked {
		return nil, models.ErrAccountLocked
	}

	if !s.verifyHash(secret, salt, passwordHash) {
		if err := s.recordFailure(ctx, username); err != nil {
			s.logger.Error("failed to record login failure", slog.String("username", username), slog.Any("error", err))
		}
		return nil, models.ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET failed_attempts = 0, last_login = ? WHERE username = ?`, now, username); err != nil {
		s.logger.Error("failed to record login success", slog.String("username", username), slog.Any("error", err))
	}
	user.FailedAttempts = 0
	user.LastLogin = &now
	return &user, nil
}

// CreateUser inserts a new account with a freshly salted Argon2id hash.
func (s *Store) CreateUser(ctx context.Context, username, secret, role, email string, permissions []string) error {
	hash, salt, err := s.hashSecret(secret)
	if err != nil {
		return err
	}
	perms, err := json.Marshal(permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	var emailVal any
	if email != "" {
		emailVal = email
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, password_hash, salt, role, email, permissions,
		                   requires_password_change, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		uuid.NewString(), username, hash, salt, role, emailVal, string(perms), time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return models.ErrConflict
		}
		return fmt.Errorf("failed to create user %q: %w", username, err)
	}
	return nil
}

// ChangePassword replaces the stored hash and clears the password-change
// requirement.
func (s *Store) ChangePassword(ctx context.Context, username, newSecret string) error {
	hash, salt, err := s.hashSecret(newSecret)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password_hash = ?, salt = ?, requires_password_change = 0
		WHERE username = ?`, hash, salt, username)
	if err != nil {
		return fmt.Errorf("failed to change password for %q: %w", username, err)
	}
	return requireRow(res)
}

// UnlockUser clears the lockout flag and the persisted failure counter.
func (s *Store) UnlockUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET account_locked = 0, failed_attempts = 0 WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to unlock user %q: %w", username, err)
	}
	return requireRow(res)
}

// GetUser returns a user record without secret material.
func (s *Store) GetUser(ctx context.Context, username string) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, username, role, COALESCE(email, ''), permissions, failed_attempts,
		       account_locked, requires_password_change, created_at, last_login
		FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	return user, err
}

// ListUsers returns every user record, ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, username, role, COALESCE(email, ''), permissions, failed_attempts,
		       account_locked, requires_password_change, created_at, last_login
		FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser removes an account.
func (s *Store) DeleteUser(ctx context.Context, username string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE username = ?`, username)
	if err != nil {
		return fmt.Errorf("failed to delete user %q: %w", username, err)
	}
	return requireRow(res)
}

// recordFailure increments the persisted counter and locks the account at
// the threshold.
func (s *Store) recordFailure(ctx context.Context, username string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users SET failed_attempts = failed_attempts + 1,
		       account_locked = CASE WHEN failed_attempts + 1 >= ? THEN 1 ELSE account_locked END
		WHERE username = ?`, s.maxFailed, username)
	return err
}

func (s *Store) hashSecret(secret string) (hash, salt string, err error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt = hex.EncodeToString(raw)
	key := argon2.IDKey([]byte(secret+s.pepper+salt), raw, argonTime, argonMemory, argonThreads, argonKeyLen)
	return base64.RawStdEncoding.EncodeToString(key), salt, nil
}

func (s *Store) verifyHash(secret, salt, storedHash string) bool {
	raw, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	stored, err := base64.RawStdEncoding.DecodeString(storedHash)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(secret+s.pepper+salt), raw, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(key, stored) == 1
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(scanner rowScanner) (*models.User, error) {
	var (
		user        models.User
		permissions string
		lastLogin   sql.NullTime
	)
	err := scanner.Scan(&user.ID, &user.Username, &user.Role, &user.Email, &permissions,
		&user.FailedAttempts, &user.AccountLocked, &user.RequiresPasswordChange,
		&user.CreatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}
	if err := json.Unmarshal([]byte(permissions), &user.Permissions); err != nil {
		user.Permissions = nil
	}
	return &user, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures as plain errors with
	// the SQLite message text.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
