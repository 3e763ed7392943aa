package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

const (
	AppName     = "virtual-fitting-room"
	EnvFileName = "config.env"

	DefaultListenAddr = ":8080"
	DefaultDBPath     = "fitting.db"
	DefaultLanguage   = "zh"
	DefaultSessionTTL = 2 * time.Hour
)

// RequiredEnvVars lists the variables that must be set for the server to run.
var RequiredEnvVars = []string{"GEMINI_API_KEYS"}

// Config is the process configuration read from the environment.
type Config struct {
	APIKeys           []string
	PremiumSecret     string
	ListenAddr        string
	DBPath            string
	Language          string
	TextModel         string
	ImageModel        string
	SessionTTL        time.Duration
	SentryDSN         string
	SentryEnvironment string
	LogLevel          string
	CORSOrigins       []string
}

// Load reads the configuration from the environment. Call LoadEnvFile first
// to pick up the saved config file.
func Load() (*Config, error) {
	cfg := &Config{
		APIKeys:           APIKeysFromEnv(),
		PremiumSecret:     os.Getenv("PREMIUM_ACCESS_SECRET"),
		ListenAddr:        getEnv("LISTEN_ADDR", DefaultListenAddr),
		DBPath:            getEnv("FITTING_DB_PATH", DefaultDBPath),
		Language:          getEnv("ANALYSIS_LANGUAGE", DefaultLanguage),
		TextModel:         os.Getenv("GEMINI_TEXT_MODEL"),
		ImageModel:        os.Getenv("GEMINI_IMAGE_MODEL"),
		SessionTTL:        DefaultSessionTTL,
		SentryDSN:         os.Getenv("SENTRY_DSN"),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", "local"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		CORSOrigins:       ParseList(os.Getenv("CORS_ORIGINS")),
	}

	if v := os.Getenv("SESSION_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL %q: %w", v, err)
		}
		if ttl <= 0 {
			return nil, fmt.Errorf("invalid SESSION_TTL %q: must be positive", v)
		}
		cfg.SessionTTL = ttl
	}

	if _, err := language.Parse(cfg.Language); err != nil {
		return nil, fmt.Errorf("invalid ANALYSIS_LANGUAGE %q: %w", cfg.Language, err)
	}

	return cfg, nil
}

// LanguageName returns the English name of the configured analysis language,
// e.g. "Chinese" for zh.
func (c *Config) LanguageName() string {
	return LanguageName(c.Language)
}

// LanguageName renders a BCP 47 tag as its English name. Unknown tags are
// returned as given.
func LanguageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Languages().Name(t); name != "" {
		return name
	}
	return tag
}

// APIKeysFromEnv reads the key pool from GEMINI_API_KEYS, falling back to
// the single GEMINI_API_KEY.
func APIKeysFromEnv() []string {
	keys := ParseList(os.Getenv("GEMINI_API_KEYS"))
	if len(keys) == 0 {
		keys = ParseList(os.Getenv("GEMINI_API_KEY"))
	}
	return keys
}

// ParseList splits a comma separated value, trimming entries and dropping
// empty ones.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// CheckRequired returns the names of required variables that are not set.
func CheckRequired() []string {
	var missing []string
	for _, v := range RequiredEnvVars {
		if v == "GEMINI_API_KEYS" {
			if len(APIKeysFromEnv()) == 0 {
				missing = append(missing, v)
			}
			continue
		}
		if os.Getenv(v) == "" {
			missing = append(missing, v)
		}
	}
	return missing
}

// Dir returns the application's config directory path.
// Creates the directory if it doesn't exist.
func Dir() (string, error) {
	configBase, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}

	configDir := filepath.Join(configBase, AppName)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// FilePath returns the full path to the config file.
func FilePath() (string, error) {
	configDir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, EnvFileName), nil
}

// LoadEnvFile loads environment variables from the config file in the user's
// config directory. Variables already set in the process win. Errors are
// ignored since the file may not exist.
func LoadEnvFile() {
	configPath, err := FilePath()
	if err != nil {
		return
	}
	_ = godotenv.Load(configPath)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
