package util

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	defaultBcryptCost    = 10
	defaultBcryptWorkers = 8
	defaultRateLimit     = 20
	defaultRateInterval  = 1 * time.Minute
	defaultRateBlockTime = 5 * time.Minute

	// RefreshCandidateLimit caps how many active records are bcrypt-compared
	// per refresh or logout; exceeding it without a match is a normal miss,
	// not an error.
	RefreshCandidateLimit = 5

	JWTLeeway = 5 * time.Second
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
	}
}

// TokenConfig carries two independent key/TTL pairs. Access and refresh
// tokens are signed with distinct secrets so compromising one family does
// not compromise the other, and either secret can be rotated alone.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

func NewTokenConfig() *TokenConfig {
	accessSecret := os.Getenv("JWT_ACCESS_SECRET")
	if accessSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET is not set")
	}
	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret == "" {
		log.Fatal("JWT_REFRESH_SECRET is not set")
	}
	if accessSecret == refreshSecret {
		log.Fatal("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return &TokenConfig{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     parseDurationOrDefault("ACCESS_TOKEN_TTL", defaultAccessTTL),
		RefreshTTL:    parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

// BcryptConfig tunes the credential store. Cost may be raised at any time
// without touching stored hashes: bcrypt hashes self-describe the cost
// they were computed at. MaxConcurrent bounds how many hashing calls run
// at once so a burst of logins cannot starve the rest of the process.
type BcryptConfig struct {
	Cost          int
	MaxConcurrent int
}

func NewBcryptConfig() *BcryptConfig {
	return &BcryptConfig{
		Cost:          parseIntOrDefault("BCRYPT_COST", defaultBcryptCost),
		MaxConcurrent: parseIntOrDefault("BCRYPT_MAX_CONCURRENT", defaultBcryptWorkers),
	}
}

type RateLimiterConfig struct {
	Limit     int
	Interval  time.Duration
	BlockTime time.Duration
}

func NewRateLimiterConfig() *RateLimiterConfig {
	return &RateLimiterConfig{
		Limit:     parseIntOrDefault("RATE_LIMIT_LIMIT", defaultRateLimit),
		Interval:  parseDurationOrDefault("RATE_LIMIT_INTERVAL", defaultRateInterval),
		BlockTime: parseDurationOrDefault("RATE_LIMIT_BLOCK_TIME", defaultRateBlockTime),
	}
}

func GetWebhookURL() string {
	return os.Getenv("REPLAY_ALERT_WEBHOOK_URL")
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseIntOrDefault(varName string, def int) int {
	if v := os.Getenv(varName); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid integer in %s: %s, using default %d", varName, v, def)
	}
	return def
}
