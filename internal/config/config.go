// Package config loads application settings from the environment.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	redisstorage "github.com/drullandev/trust-engine/internal/adapters/storage/redis"
	"github.com/drullandev/trust-engine/internal/core/services"
	"github.com/drullandev/trust-engine/internal/duration"
)

type Config struct {
	Server      ServerConfig
	BlockMirror BlockMirrorConfig
	Engine      services.Config
	Clearance   ClearanceConfig
}

type ServerConfig struct {
	Port     string
	AdminKey string
	// TrustedProxies lists the peers whose forwarding headers are honored.
	TrustedProxies []netip.Prefix
}

type BlockMirrorConfig struct {
	Type  string
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

type ClearanceConfig struct {
	Secret string
	TTL    time.Duration
}

func (c ClearanceConfig) Enabled() bool {
	return c.Secret != ""
}

// Load reads the environment (and an optional .env file). Malformed numbers
// and durations are errors; nothing falls back to a default silently.
func Load() (Config, error) {
	_ = godotenv.Load()

	parser, err := buildDurationParser()
	if err != nil {
		return Config{}, err
	}

	engine, err := buildEngineConfig(parser)
	if err != nil {
		return Config{}, err
	}

	mirror, err := buildBlockMirrorConfig()
	if err != nil {
		return Config{}, err
	}

	clearanceTTL, err := getDuration(parser, "CLEARANCE_TTL", "10minutes")
	if err != nil {
		return Config{}, err
	}

	proxies, err := getPrefixes("TRUST_PROXIES")
	if err != nil {
		return Config{}, err
	}

	return Config{
		Server: ServerConfig{
			Port:           getEnv("SERVER_PORT", "8080"),
			AdminKey:       strings.TrimSpace(os.Getenv("ADMIN_API_KEY")),
			TrustedProxies: proxies,
		},
		BlockMirror: mirror,
		Engine:      engine,
		Clearance: ClearanceConfig{
			Secret: strings.TrimSpace(os.Getenv("CLEARANCE_SECRET")),
			TTL:    clearanceTTL,
		},
	}, nil
}

// DurationParser returns the parser configured by DURATION_DAYS_PER_MONTH
// and DURATION_DAYS_PER_YEAR.
func DurationParser() (duration.Parser, error) {
	return buildDurationParser()
}

func buildDurationParser() (duration.Parser, error) {
	daysPerMonth, err := getInt("DURATION_DAYS_PER_MONTH", strconv.Itoa(duration.DefaultDaysPerMonth))
	if err != nil {
		return duration.Parser{}, err
	}
	daysPerYear, err := getInt("DURATION_DAYS_PER_YEAR", strconv.Itoa(duration.DefaultDaysPerYear))
	if err != nil {
		return duration.Parser{}, err
	}
	return duration.Parser{DaysPerMonth: daysPerMonth, DaysPerYear: daysPerYear}, nil
}

func buildEngineConfig(parser duration.Parser) (services.Config, error) {
	maxFailed, err := getInt("TRUST_MAX_FAILED_ATTEMPTS", "5")
	if err != nil {
		return services.Config{}, err
	}
	maxActions, err := getInt("TRUST_MAX_ACTIONS", "20")
	if err != nil {
		return services.Config{}, err
	}
	maxRequests, err := getInt("TRUST_MAX_REQUESTS", "100")
	if err != nil {
		return services.Config{}, err
	}
	threshold, err := getInt("TRUST_SCORE_THRESHOLD", "5")
	if err != nil {
		return services.Config{}, err
	}
	window, err := getDuration(parser, "TRUST_TIME_WINDOW", "15minutes")
	if err != nil {
		return services.Config{}, err
	}
	block, err := getDuration(parser, "TRUST_BLOCK_DURATION", "1hour")
	if err != nil {
		return services.Config{}, err
	}
	reap, err := getDuration(parser, "TRUST_REAP_INTERVAL", "1minute")
	if err != nil {
		return services.Config{}, err
	}

	cfg := services.Config{
		MaxFailedAttempts:   maxFailed,
		MaxActions:          maxActions,
		MaxRequests:         maxRequests,
		TimeWindow:          window,
		BlockDuration:       block,
		TrustScoreThreshold: threshold,
		ReapInterval:        reap,
	}
	if err := cfg.Validate(); err != nil {
		return services.Config{}, err
	}
	return cfg, nil
}

func buildBlockMirrorConfig() (BlockMirrorConfig, error) {
	mirrorType := strings.ToLower(getEnv("BLOCK_MIRROR", "none"))
	if mirrorType != "none" && mirrorType != "redis" {
		return BlockMirrorConfig{}, fmt.Errorf("unsupported BLOCK_MIRROR: %s", mirrorType)
	}

	port, err := getInt("REDIS_PORT", "6379")
	if err != nil {
		return BlockMirrorConfig{}, err
	}
	db, err := getInt("REDIS_DB", "0")
	if err != nil {
		return BlockMirrorConfig{}, err
	}

	return BlockMirrorConfig{
		Type: mirrorType,
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     port,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       db,
			Prefix:   getEnv("REDIS_PREFIX", redisstorage.DefaultPrefix),
		},
	}, nil
}

func getInt(key, fallback string) (int, error) {
	value, err := strconv.Atoi(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getDuration(parser duration.Parser, key, fallback string) (time.Duration, error) {
	value, err := parser.Parse(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

// getPrefixes parses a comma-separated list of CIDRs or bare addresses.
func getPrefixes(key string) ([]netip.Prefix, error) {
	var prefixes []netip.Prefix
	for _, raw := range strings.Split(os.Getenv(key), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.Contains(raw, "/") {
			prefix, err := netip.ParsePrefix(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid %s: %w", key, err)
			}
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		addr = addr.Unmap()
		prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return prefixes, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
