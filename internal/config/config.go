// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"granabot/internal/domain"
)

// Config holds all application configuration. Required values are validated
// at startup; a missing credential is fatal there, never per-request.
type Config struct {
	Port          string
	DBPath        string
	LedgerDSN     string
	BotToken      string
	WebhookSecret string
	GeminiAPIKey  string
	GeminiModel   string
	Timezone      string

	// AllowedChats maps Telegram chat ids to their ledger identity and
	// default ledger. Messages from any other chat are dropped.
	AllowedChats map[int64]domain.ChatIdentity

	// AccountKeywords maps a lowercase keyword to an account id; a free-text
	// account hint resolves to the first keyword it contains.
	AccountKeywords map[string]int64
	// DefaultAccountID is used when no keyword matches. Zero means unset.
	DefaultAccountID int64

	SweepInterval time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	allowed, err := parseAllowlist(getEnv("CHAT_ALLOWLIST", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_ALLOWLIST: %w", err)
	}

	keywords, err := parseKeywordMap(getEnv("ACCOUNT_KEYWORDS", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid ACCOUNT_KEYWORDS: %w", err)
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		DBPath:           getEnv("DB_PATH", "./data/granabot.db"),
		LedgerDSN:        getEnv("LEDGER_DSN", ""),
		BotToken:         getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookSecret:    getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		Timezone:         getEnv("BOT_TIMEZONE", "America/Sao_Paulo"),
		AllowedChats:     allowed,
		AccountKeywords:  keywords,
		DefaultAccountID: int64(getEnvInt("DEFAULT_ACCOUNT_ID", 0)),
		SweepInterval:    getEnvDuration("STATE_SWEEP_INTERVAL", 5*time.Minute),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LedgerDSN == "" {
		return fmt.Errorf("LEDGER_DSN is required")
	}
	if c.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.WebhookSecret == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_SECRET is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if len(c.AllowedChats) == 0 {
		return fmt.Errorf("CHAT_ALLOWLIST must contain at least one chat")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("STATE_SWEEP_INTERVAL must be > 0")
	}
	return nil
}

// parseAllowlist parses "chatID=identity:defaultLedgerID" pairs separated
// by commas, e.g. "52031337=felipe:1,52031400=ana:4".
func parseAllowlist(raw string) (map[int64]domain.ChatIdentity, error) {
	out := make(map[int64]domain.ChatIdentity)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("entry %q: want chatID=identity:ledgerID", pair)
		}
		chatID, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: bad chat id: %w", pair, err)
		}
		identity, ledgerPart, ok := strings.Cut(value, ":")
		if !ok || identity == "" {
			return nil, fmt.Errorf("entry %q: want chatID=identity:ledgerID", pair)
		}
		ledgerID, err := strconv.ParseInt(strings.TrimSpace(ledgerPart), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: bad ledger id: %w", pair, err)
		}
		out[chatID] = domain.ChatIdentity{
			ChatID:          chatID,
			Identity:        strings.TrimSpace(identity),
			DefaultLedgerID: ledgerID,
		}
	}
	return out, nil
}

// parseKeywordMap parses "keyword=accountID" pairs separated by commas,
// e.g. "nubank=3,itau=5". Keywords are lowercased.
func parseKeywordMap(raw string) (map[string]int64, error) {
	out := make(map[string]int64)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("entry %q: want keyword=accountID", pair)
		}
		accountID, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: bad account id: %w", pair, err)
		}
		out[strings.ToLower(strings.TrimSpace(key))] = accountID
	}
	return out, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
