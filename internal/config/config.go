// Package config loads the core's configuration from environment variables
// (optionally backed by a .env file), per spec §6's recognised variable
// list. Configuration is resolved once at startup; there is no hot-reload
// (explicit Non-goal).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kinggekko/core/internal/errs"
)

var errConfiguration = errs.ErrConfiguration

// OperationMode selects paper vs live trading.
type OperationMode string

const (
	ModePaper OperationMode = "paper"
	ModeLive  OperationMode = "live"
)

// Config holds every environment-derived setting the core needs.
type Config struct {
	// Broker (Alpaca-compatible)
	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaBaseURL   string
	AlpacaFeed      string // test|iex|sip|opra|indicative

	// OperationMode is the single source of truth for paper vs live mode
	// (resolved Open Question, see DESIGN.md). AlpacaPaperTrading is read
	// only as a legacy fallback when OperationMode is unset in the
	// environment.
	OperationMode    OperationMode
	AlpacaPaperTrading bool

	// LLM advisor (Ollama-compatible)
	OllamaBaseURL string
	OllamaModel   string // model name, or "auto"

	MaxTimeout      time.Duration
	LogDirectory    string
	MaxPromptLength int
	APIPort         int

	DataDir  string
	LogLevel string
	Pretty   bool

	// Journal export (internal/backup), S3-compatible (Cloudflare R2 or
	// AWS S3). Deliberately optional: export/backup CLI modes fail with a
	// clear error if unset rather than the process refusing to start.
	S3Bucket          string
	S3Endpoint        string
	S3Region          string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Load reads configuration from the environment, applying the same
// precedence the teacher's config loader uses: .env file, then process
// environment, with documented defaults for everything optional.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve data dir: %v", errConfiguration, err)
	}
	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %v", errConfiguration, err)
	}

	mode := OperationMode(getEnv("OPERATION_MODE", ""))
	paperFlag := getEnvAsBool("ALPACA_PAPER_TRADING", true)
	if mode == "" {
		// Legacy fallback: no OPERATION_MODE set, derive from the older flag.
		if paperFlag {
			mode = ModePaper
		} else {
			mode = ModeLive
		}
	}

	cfg := &Config{
		AlpacaAPIKey:       getEnv("ALPACA_API_KEY", ""),
		AlpacaSecretKey:    getEnv("ALPACA_SECRET_KEY", ""),
		AlpacaBaseURL:      getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
		AlpacaFeed:         getEnv("ALPACA_FEED", "iex"),
		OperationMode:      mode,
		AlpacaPaperTrading: paperFlag,
		OllamaBaseURL:      getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:        getEnv("OLLAMA_MODEL", "auto"),
		MaxTimeout:         time.Duration(getEnvAsInt("MAX_TIMEOUT_SECONDS", 30)) * time.Second,
		LogDirectory:       getEnv("LOG_DIRECTORY", "./logs"),
		MaxPromptLength:    getEnvAsInt("MAX_PROMPT_LENGTH", 4000),
		APIPort:            getEnvAsInt("API_PORT", 8090),
		DataDir:            absDataDir,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		Pretty:             getEnvAsBool("DEV_MODE", false),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3Region:           getEnv("S3_REGION", "auto"),
		S3AccessKeyID:      getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:  getEnv("S3_SECRET_ACCESS_KEY", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants that must hold before the core may start.
// Broker credentials are deliberately optional here: research/backtest-free
// "view journal"/"statistics" CLI modes need no broker connection, and the
// Capability Negotiator itself raises AuthFailure when they are required
// but invalid.
func (c *Config) Validate() error {
	if c.MaxTimeout <= 0 {
		return fmt.Errorf("%w: MAX_TIMEOUT_SECONDS must be positive", errConfiguration)
	}
	if c.MaxPromptLength <= 0 {
		return fmt.Errorf("%w: MAX_PROMPT_LENGTH must be positive", errConfiguration)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("%w: API_PORT out of range", errConfiguration)
	}
	switch c.AlpacaFeed {
	case "test", "iex", "sip", "opra", "indicative":
	default:
		return fmt.Errorf("%w: ALPACA_FEED %q not recognised", errConfiguration, c.AlpacaFeed)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
