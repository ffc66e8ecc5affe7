package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/autorename/autorename/internal/consts"
)

type Config struct {
	TelegramBotToken string
	OwnerID          int64
	LogChannelID     int64 // 0 disables the audit sink
	StartPic         string

	// Storage. Mongo wins when both are set; neither means in-memory.
	MongoURL     string
	DatabaseName string
	PostgreDSN   string

	LogLevel string
	LogDir   string

	SessionTTL        time.Duration
	BroadcastPageSize int64
	BroadcastRate     float64 // sends per second

	// Values substituted for {quality} and {audio}
	RenameQuality string
	RenameAudio   string

	MaxFileSize int64
	MetricsAddr string
}

const (
	DefaultDatabaseName      = "file_rename_bot"
	DefaultSessionTTL        = 10 * time.Minute
	DefaultBroadcastPageSize = 10000
	DefaultMaxFileSize       = consts.MaxDownloadSize

	// Half the bot's send budget; the rest stays free for normal replies.
	DefaultBroadcastRate = consts.GlobalSendRate / 2
)

// Load reads configuration from the environment, after merging a .env file
// when one exists.
func Load() (*Config, error) {
	// A missing .env is normal in containers.
	_ = godotenv.Load()

	p := &parser{}
	cfg := &Config{
		TelegramBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		OwnerID:           p.int64("OWNER_ID", 0),
		LogChannelID:      p.int64("LOG_CHANNEL", 0),
		StartPic:          os.Getenv("START_PIC"),
		MongoURL:          getEnvOrDefault("DB_URL", os.Getenv("DATABASE_URL")),
		DatabaseName:      getEnvOrDefault("DATABASE_NAME", DefaultDatabaseName),
		PostgreDSN:        os.Getenv("POSTGRE_DSN"),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
		LogDir:            getEnvOrDefault("LOG_DIR", "logs"),
		SessionTTL:        p.duration("SESSION_TTL", DefaultSessionTTL),
		BroadcastPageSize: p.int64("BROADCAST_PAGE_SIZE", DefaultBroadcastPageSize),
		BroadcastRate:     p.float("BROADCAST_RATE", DefaultBroadcastRate),
		RenameQuality:     getEnvOrDefault("RENAME_QUALITY", "720p"),
		RenameAudio:       getEnvOrDefault("RENAME_AUDIO", "AAC"),
		MaxFileSize:       p.int64("MAX_FILE_SIZE", DefaultMaxFileSize),
		MetricsAddr:       os.Getenv("METRICS_ADDR"),
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("required environment variable TELEGRAM_BOT_TOKEN is not set")
	}
	if c.OwnerID == 0 {
		return fmt.Errorf("required environment variable OWNER_ID is not set")
	}
	if c.BroadcastPageSize <= 0 {
		return fmt.Errorf("BROADCAST_PAGE_SIZE must be positive, got %d", c.BroadcastPageSize)
	}
	if c.BroadcastRate <= 0 {
		return fmt.Errorf("BROADCAST_RATE must be positive, got %v", c.BroadcastRate)
	}
	if c.BroadcastRate >= consts.GlobalSendRate {
		return fmt.Errorf("BROADCAST_RATE must stay below the global send rate of %d/s, got %v", consts.GlobalSendRate, c.BroadcastRate)
	}
	if c.MaxFileSize <= 0 || c.MaxFileSize > consts.MaxDownloadSize {
		return fmt.Errorf("MAX_FILE_SIZE must be between 1 and %d bytes, got %d", consts.MaxDownloadSize, c.MaxFileSize)
	}
	if c.SessionTTL < 0 {
		return fmt.Errorf("SESSION_TTL must not be negative, got %s", c.SessionTTL)
	}
	return nil
}

func (c *Config) HasMongoConfig() bool {
	return strings.HasPrefix(c.MongoURL, "mongodb://") || strings.HasPrefix(c.MongoURL, "mongodb+srv://")
}

func (c *Config) HasPostgresConfig() bool {
	return c.PostgreDSN != ""
}

func (c *Config) HasLogChannel() bool {
	return c.LogChannelID != 0
}

func (c *Config) HasMetrics() bool {
	return c.MetricsAddr != ""
}

// getEnvOrDefault returns the environment variable value or a default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int64(key string, def int64) int64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) float(key string, def float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		p.fail(key, raw, err)
		return def
	}
	return v
}

func (p *parser) fail(key, raw string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value %q for %s: %w", raw, key, err)
	}
}
