package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the gateway.
type Config struct {
	Port string

	// Logging
	LogLevel  string
	LogFormat string // "json" or "text"

	// Margin-FX bridge (env fallback credentials for requests that omit them)
	MarginFXInterpreter string
	MarginFXScript      string
	MarginFXTimeout     time.Duration
	MarginFXAccount     string
	MarginFXPassword    string
	MarginFXServer      string

	// Crypto exchange (authenticated once at startup)
	CryptoAPIKey    string
	CryptoAPISecret string
	CryptoRPS       float64
	CryptoBurst     int

	// Transfer ledger
	DBPath string

	// Auth (tokens are minted by the external identity provider;
	// the gateway only validates them)
	JWTSecret string

	// Optional YAML file overriding bridge settings
	BrokersFile string
}

// BrokersFile is the optional YAML layer for bridge settings. Environment
// variables win over file values.
type BrokersFile struct {
	MarginFX struct {
		Interpreter    string `yaml:"interpreter"`
		Script         string `yaml:"script"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
		DefaultServer  string `yaml:"default_server"`
	} `yaml:"margin_fx"`
	CryptoExchange struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"crypto_exchange"`
}

// Load reads environment variables (optionally via .env) into Config, layered
// over the optional brokers YAML file.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", "8080"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		MarginFXInterpreter: getEnv("MARGINFX_INTERPRETER", "python3"),
		MarginFXScript:      getEnv("MARGINFX_SCRIPT", "./scripts/marginfx_terminal.py"),
		MarginFXTimeout:     time.Duration(getEnvInt("MARGINFX_TIMEOUT_SECONDS", 25)) * time.Second,
		MarginFXAccount:     os.Getenv("MARGINFX_ACCOUNT"),
		MarginFXPassword:    os.Getenv("MARGINFX_PASSWORD"),
		MarginFXServer:      getEnv("MARGINFX_SERVER", ""),
		CryptoAPIKey:        os.Getenv("CRYPTO_API_KEY"),
		CryptoAPISecret:     os.Getenv("CRYPTO_API_SECRET"),
		CryptoRPS:           getEnvFloat("CRYPTO_RPS", 10),
		CryptoBurst:         getEnvInt("CRYPTO_BURST", 20),
		DBPath:              getEnv("DB_PATH", "./data/gateway.db"),
		JWTSecret:           getEnv("JWT_SECRET", "dev-secret"),
		BrokersFile:         getEnv("BROKERS_CONFIG", ""),
	}

	if cfg.BrokersFile != "" {
		file, err := LoadBrokersFile(cfg.BrokersFile)
		if err != nil {
			return nil, fmt.Errorf("load brokers config: %w", err)
		}
		cfg.applyBrokersFile(file)
	}

	return cfg, nil
}

// LoadBrokersFile parses the YAML broker settings file.
func LoadBrokersFile(path string) (*BrokersFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file BrokersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// applyBrokersFile fills settings the environment left at defaults.
func (c *Config) applyBrokersFile(f *BrokersFile) {
	if os.Getenv("MARGINFX_INTERPRETER") == "" && f.MarginFX.Interpreter != "" {
		c.MarginFXInterpreter = f.MarginFX.Interpreter
	}
	if os.Getenv("MARGINFX_SCRIPT") == "" && f.MarginFX.Script != "" {
		c.MarginFXScript = f.MarginFX.Script
	}
	if os.Getenv("MARGINFX_TIMEOUT_SECONDS") == "" && f.MarginFX.TimeoutSeconds > 0 {
		c.MarginFXTimeout = time.Duration(f.MarginFX.TimeoutSeconds) * time.Second
	}
	if os.Getenv("MARGINFX_SERVER") == "" && f.MarginFX.DefaultServer != "" {
		c.MarginFXServer = f.MarginFX.DefaultServer
	}
	if os.Getenv("CRYPTO_RPS") == "" && f.CryptoExchange.RPS > 0 {
		c.CryptoRPS = f.CryptoExchange.RPS
	}
	if os.Getenv("CRYPTO_BURST") == "" && f.CryptoExchange.Burst > 0 {
		c.CryptoBurst = f.CryptoExchange.Burst
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
