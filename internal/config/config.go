package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/credgate/credgate/pkg/password"
)

type Config struct {
	Store     StoreConfig
	RateLimit RateLimitConfig
	AuthLog   AuthLogConfig
	Analyzer  AnalyzerConfig
	Policy    password.Policy
	LogLevel  string
}

type StoreConfig struct {
	Path   string
	Pepper string
}

type RateLimitConfig struct {
	Window      time.Duration
	MaxAttempts int
}

type AuthLogConfig struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
}

type AnalyzerConfig struct {
	HoursBack           int
	SuspiciousUsernames []string
}

// dictionaryFile is the YAML overlay carrying the suspicious-username
// dictionary and password-policy overrides.
type dictionaryFile struct {
	SuspiciousUsernames []string `yaml:"suspicious_usernames"`
	PasswordPolicy      struct {
		MinLength int `yaml:"min_length"`
	} `yaml:"password_policy"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	pepper := getEnv("CREDGATE_PEPPER", "")
	if pepper == "" {
		return nil, fmt.Errorf("CREDGATE_PEPPER is required")
	}

	cfg := &Config{
		Store: StoreConfig{
			Path:   getEnv("CREDGATE_DB_PATH", "data/users.db"),
			Pepper: pepper,
		},
		RateLimit: RateLimitConfig{
			Window:      getEnvAsDuration("CREDGATE_RATE_LIMIT_WINDOW", 5*time.Minute),
			MaxAttempts: getEnvAsInt("CREDGATE_RATE_LIMIT_MAX_ATTEMPTS", 5),
		},
		AuthLog: AuthLogConfig{
			Path:       getEnv("CREDGATE_AUTH_LOG", "data/logs/errors.log"),
			MaxSizeMB:  getEnvAsInt("CREDGATE_AUTH_LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvAsInt("CREDGATE_AUTH_LOG_MAX_BACKUPS", 5),
		},
		Analyzer: AnalyzerConfig{
			HoursBack: getEnvAsInt("CREDGATE_ANALYZER_HOURS_BACK", 24),
		},
		Policy:   password.DefaultPolicy(),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if minLen := getEnvAsInt("CREDGATE_PASSWORD_MIN_LENGTH", 0); minLen > 0 {
		cfg.Policy.MinLength = minLen
	}

	if dictPath := getEnv("CREDGATE_DICTIONARY_FILE", ""); dictPath != "" {
		if err := cfg.applyDictionary(dictPath); err != nil {
			return nil, err
		}
	}

	if cfg.RateLimit.MaxAttempts <= 0 {
		return nil, fmt.Errorf("CREDGATE_RATE_LIMIT_MAX_ATTEMPTS must be positive")
	}
	if cfg.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("CREDGATE_RATE_LIMIT_WINDOW must be positive")
	}

	return cfg, nil
}

// applyDictionary overlays the YAML dictionary file onto the config.
func (c *Config) applyDictionary(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read dictionary file %s: %w", path, err)
	}
	var dict dictionaryFile
	if err := yaml.Unmarshal(raw, &dict); err != nil {
		return fmt.Errorf("failed to parse dictionary file %s: %w", path, err)
	}
	if len(dict.SuspiciousUsernames) > 0 {
		c.Analyzer.SuspiciousUsernames = dict.SuspiciousUsernames
	}
	if dict.PasswordPolicy.MinLength > 0 {
		c.Policy.MinLength = dict.PasswordPolicy.MinLength
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultVal
}
