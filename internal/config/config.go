package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/satgate/satgate/pkg/validation"
)

const (
	// BackendLND selects the real LND node client.
	BackendLND = "lnd"
	// BackendMock selects the in-memory simulator.
	BackendMock = "mock"

	// StoragePostgres keeps the challenge ledger in Postgres.
	StoragePostgres = "postgres"
	// StorageMemory keeps the challenge ledger in memory.
	StorageMemory = "memory"
)

// defaultSecretKey is the well-known development key, exactly 32 bytes.
// Production deployments must set SECRET_KEY.
const defaultSecretKey = "L402-secret-key-exactly-32bytes!"

type Config struct {
	Development bool
	// API configuration
	APIPort int

	// L402 configuration
	SecretKey          []byte
	PriceSats          int64
	TokenValidityHours int
	Location           string
	RequireSettlement  bool

	// Lightning backend configuration
	LightningBackend string
	LNDHost          string
	LNDTLSCertPath   string
	LNDMacaroonPath  string

	// Challenge ledger configuration
	Storage          string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string

	// Notification configuration
	TelegramBotToken string
	TelegramChatID   string
	SMTPHost         string
	SMTPPort         int
	SMTPUser         string
	SMTPPassword     string
	SMTPSender       string
	NotifyEmail      string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:        getEnvAsBool("DEVELOPMENT", false),
		APIPort:            getEnvAsInt("API_PORT", 8402),
		PriceSats:          getEnvAsInt64("PRICE_SATS", 1000),
		TokenValidityHours: getEnvAsInt("TOKEN_VALIDITY_HOURS", 24),
		Location:           getEnv("LOCATION", "https://localhost:8402"),
		RequireSettlement:  getEnvAsBool("REQUIRE_SETTLEMENT", false),
		LightningBackend:   getEnv("LIGHTNING_BACKEND", BackendMock),
		LNDHost:            getEnv("LND_HOST", "localhost:10009"),
		LNDTLSCertPath:     getEnv("LND_TLS_CERT_PATH", ""),
		LNDMacaroonPath:    getEnv("LND_MACAROON_PATH", ""),
		Storage:            getEnv("STORAGE", StorageMemory),
		PostgresUser:       getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword:   getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:       getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:       getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:         getEnv("POSTGRES_DB", "satgate"),
		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     getEnv("TELEGRAM_CHAT_ID", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPSender:         getEnv("SMTP_SENDER", ""),
		NotifyEmail:        getEnv("NOTIFY_EMAIL", ""),
	}

	// The signing key is the trust anchor of every outstanding token.
	// SECRET_KEY is hex and must decode to exactly 32 bytes.
	if keyHex := getEnv("SECRET_KEY", ""); keyHex != "" {
		key, err := validation.ValidateSecretKey(keyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid SECRET_KEY: %w", err)
		}
		cfg.SecretKey = key
	} else {
		cfg.SecretKey = []byte(defaultSecretKey)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if len(c.SecretKey) != validation.SecretKeySize {
		return fmt.Errorf("SECRET_KEY must be exactly %d bytes", validation.SecretKeySize)
	}

	if c.PriceSats <= 0 {
		return fmt.Errorf("PRICE_SATS must be positive")
	}

	if c.TokenValidityHours <= 0 {
		return fmt.Errorf("TOKEN_VALIDITY_HOURS must be positive")
	}

	if c.Location == "" {
		return fmt.Errorf("LOCATION is required")
	}

	switch c.LightningBackend {
	case BackendMock:
	case BackendLND:
		if c.LNDHost == "" {
			return fmt.Errorf("LND_HOST is required for the lnd backend")
		}
		if c.LNDTLSCertPath == "" {
			return fmt.Errorf("LND_TLS_CERT_PATH is required for the lnd backend")
		}
		if c.LNDMacaroonPath == "" {
			return fmt.Errorf("LND_MACAROON_PATH is required for the lnd backend")
		}
	default:
		return fmt.Errorf("unknown LIGHTNING_BACKEND %q", c.LightningBackend)
	}

	switch c.Storage {
	case StorageMemory:
	case StoragePostgres:
		if c.PostgresHost == "" {
			return fmt.Errorf("POSTGRES_HOST is required for postgres storage")
		}
		if c.PostgresDB == "" {
			return fmt.Errorf("POSTGRES_DB is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsInt64(name string, defaultValue int64) int64 {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
