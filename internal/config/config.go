package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Host string
	Port string

	// Logging
	LogLevel string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Extraction
	MinTextItems      int
	FallbackPdftotext bool

	// OCR fallback
	OCREnabled  bool
	OCRDPI      int
	OCRLanguage string

	// Job state
	JobTTL time.Duration

	// Result cache (0 disables)
	ResultCacheTTL time.Duration

	// Section rules override (empty uses the built-in catalog)
	RulesFile string

	// Analysis history
	HistoryEnabled bool
	HistoryPath    string
}

func Load() Config {
	cfg := Config{
		Host: envOr("HOST", "127.0.0.1"),
		Port: envOr("PORT", "5000"),

		LogLevel: envOr("LOG_LEVEL", "info"),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 16),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 104857600), // 100MB

		MinTextItems:      envInt("MIN_TEXT_ITEMS", 10),
		FallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		OCREnabled:  envBool("OCR_ENABLED", true),
		OCRDPI:      envInt("OCR_DPI", 150),
		OCRLanguage: envOr("OCR_LANGUAGE", "eng"),

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		ResultCacheTTL: envDuration("RESULT_CACHE_TTL", 1*time.Hour),

		RulesFile: os.Getenv("RULES_FILE"),

		HistoryEnabled: envBool("HISTORY_ENABLED", true),
		HistoryPath:    envOr("HISTORY_PATH", "mortscan.db"),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 16
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 104857600
	}
	if cfg.MinTextItems <= 0 {
		cfg.MinTextItems = 10
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric, got %q", c.Port)
	}
	if c.OCREnabled && (c.OCRDPI < 72 || c.OCRDPI > 600) {
		return fmt.Errorf("OCR_DPI must be between 72 and 600, got %d", c.OCRDPI)
	}
	if c.OCREnabled && c.OCRLanguage == "" {
		return fmt.Errorf("OCR_LANGUAGE is required when OCR is enabled")
	}
	if c.HistoryEnabled && c.HistoryPath == "" {
		return fmt.Errorf("HISTORY_PATH is required when history is enabled")
	}
	return nil
}

// Addr is the host:port the HTTP server binds.
func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
