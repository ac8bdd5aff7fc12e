package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	OutputDir string
	LogLevel  string
	LogFormat string
	HTTPAddr  string

	CatalogSource    string
	CatalogXLSXPath  string
	CatalogCacheTTL  time.Duration
	ValoresWorksheet string
	RecompraSheet    string

	SheetsCredentials  string
	SpreadsheetID      string
	SheetsRateLimitRPS int
	SheetsTimeoutMs    int
	SheetsMaxAttempts  int

	ContadoExtra float64

	SessionBackend     string
	SessionIdleTimeout time.Duration
	RedisAddr          string
	RedisPassword      string
	RedisDB            int

	TelegramToken string

	GeminiAPIKey string
	GeminiModel  string
	AIEnhance    bool
	AIFallback   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "preciobot.db")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
		HTTPAddr:  getEnv("HTTP_ADDR", ":5000"),

		CatalogSource:    strings.ToLower(getEnv("CATALOG_SOURCE", "sheets")),
		CatalogXLSXPath:  getEnv("CATALOG_XLSX_PATH", filepath.Join(cwd, "data", "catalog.xlsx")),
		CatalogCacheTTL:  getEnvDuration("CATALOG_CACHE_TTL", 2*time.Minute),
		ValoresWorksheet: getEnv("VALORES_WORKSHEET", "VALORES"),
		RecompraSheet:    getEnv("RECOMPRA_WORKSHEET", "RECOMPRA"),

		SheetsCredentials:  getEnv("GOOGLE_SHEETS_CREDENTIALS", ""),
		SpreadsheetID:      getEnv("SPREADSHEET_ID", ""),
		SheetsRateLimitRPS: getEnvInt("SHEETS_RATE_LIMIT_RPS", 1),
		SheetsTimeoutMs:    getEnvInt("SHEETS_TIMEOUT_MS", 15000),
		SheetsMaxAttempts:  getEnvInt("SHEETS_MAX_ATTEMPTS", 4),

		ContadoExtra: getEnvFloat("CONTADO_EXTRA", 180000),

		SessionBackend:     strings.ToLower(getEnv("SESSION_BACKEND", "memory")),
		SessionIdleTimeout: getEnvDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),

		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),

		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AIEnhance:    getEnvBool("AI_ENHANCE", false),
		AIFallback:   getEnvBool("AI_FALLBACK", false),
	}

	switch cfg.CatalogSource {
	case "sheets", "xlsx":
	default:
		return Config{}, fmt.Errorf("unsupported CATALOG_SOURCE: %s", cfg.CatalogSource)
	}
	switch cfg.SessionBackend {
	case "memory", "redis":
	default:
		return Config{}, fmt.Errorf("unsupported SESSION_BACKEND: %s", cfg.SessionBackend)
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// AIEnabled reports whether any assistant feature should be wired.
func (c Config) AIEnabled() bool {
	return strings.TrimSpace(c.GeminiAPIKey) != "" && (c.AIEnhance || c.AIFallback)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s", "5m") or bare seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(getEnv(key, ""))
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
