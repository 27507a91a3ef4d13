package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultAddr     = "127.0.0.1:8095"
	defaultLeaseTTL = 15 * time.Second
	defaultComparer = "always"
	defaultElection = "solo"
	defaultLogLevel = "info"
)

// Config is the daemon's resolved configuration. Precedence is
// defaults < .env file < environment (ISOLINK_*) < flags.
type Config struct {
	DBPath       string
	ManifestPath string
	Addr         string
	Advertise    string
	LogLevel     string

	Capacity        int
	JournalCapacity int

	Comparer       string
	EmbedProvider  string
	EmbedModel     string
	EmbedBaseURL   string
	EmbedAPIKey    string
	EmbedThreshold float64

	Election  string
	RedisAddr string
	LeaseTTL  time.Duration

	AuthToken string
	TLSCert   string
	TLSKey    string

	RetentionMaxAge   time.Duration
	RetentionInterval time.Duration
	ArchiveDir        string
}

func LoadConfig(args []string) (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, fmt.Errorf("failed to get cwd: %w", err)
	}

	defaultDBPath := filepath.Join(cwd, "isolink.db")

	dbPath := envOrDefault("ISOLINK_DB_PATH", defaultDBPath)
	manifestPath := os.Getenv("ISOLINK_MANIFEST")
	addr := addrFromEnv(defaultAddr)
	advertise := os.Getenv("ISOLINK_ADVERTISE")
	logLevel := envOrDefault("ISOLINK_LOG_LEVEL", defaultLogLevel)

	capacity, err := intFromEnv("ISOLINK_CAPACITY", 0)
	if err != nil {
		return Config{}, err
	}
	journalCapacity, err := intFromEnv("ISOLINK_JOURNAL_CAPACITY", 0)
	if err != nil {
		return Config{}, err
	}

	comparer := envOrDefault("ISOLINK_COMPARER", defaultComparer)
	embedThreshold, err := floatFromEnv("ISOLINK_EMBED_THRESHOLD", 0)
	if err != nil {
		return Config{}, err
	}

	electionMode := envOrDefault("ISOLINK_ELECTION", defaultElection)
	redisAddr := os.Getenv("ISOLINK_REDIS_ADDR")
	leaseTTL, err := durationFromEnv("ISOLINK_LEASE_TTL", defaultLeaseTTL)
	if err != nil {
		return Config{}, err
	}

	retentionMaxAge, err := durationFromEnv("ISOLINK_RETENTION_MAX_AGE", 0)
	if err != nil {
		return Config{}, err
	}
	retentionInterval, err := durationFromEnv("ISOLINK_RETENTION_INTERVAL", 0)
	if err != nil {
		return Config{}, err
	}
	archiveDir := os.Getenv("ISOLINK_ARCHIVE_DIR")

	flagSet := flag.NewFlagSet("isolinkd", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagDB := flagSet.String("db", dbPath, "path to SQLite database")
	flagManifest := flagSet.String("manifest", manifestPath, "HCL linkset file or directory to apply on boot")
	flagAddr := flagSet.String("addr", addr, "HTTP listen address")
	flagAdvertise := flagSet.String("advertise", advertise, "URL peers redirect writes to when this node leads")
	flagCapacity := flagSet.Int("capacity", capacity, "component registry capacity (0 = engine default)")
	flagJournalCapacity := flagSet.Int("journal-capacity", journalCapacity, "journal ring capacity (0 = engine default)")
	flagComparer := flagSet.String("comparer", comparer, "residue comparer: always|embedding")
	flagElection := flagSet.String("election", electionMode, "leader election backend: solo|sqlite|redis")
	flagRedisAddr := flagSet.String("redis-addr", redisAddr, "redis address when election=redis")
	flagLeaseTTL := flagSet.String("lease-ttl", leaseTTL.String(), "leadership lease TTL")
	flagAuthToken := flagSet.String("auth-token", os.Getenv("ISOLINK_AUTH_TOKEN"), "bearer token required on mutating requests")
	flagTLSCert := flagSet.String("tls-cert", os.Getenv("ISOLINK_TLS_CERT"), "TLS certificate file")
	flagTLSKey := flagSet.String("tls-key", os.Getenv("ISOLINK_TLS_KEY"), "TLS key file")
	flagRetentionMaxAge := flagSet.String("retention-max-age", retentionMaxAge.String(), "delete persisted link events older than this (0 = keep forever)")
	flagRetentionInterval := flagSet.String("retention-interval", retentionInterval.String(), "how often the pruner runs (0 = hourly)")
	flagArchiveDir := flagSet.String("archive-dir", archiveDir, "archive pruned events as gzipped JSONL under this directory")
	flagLogLevel := flagSet.String("log-level", logLevel, "log level: debug|info|warn|error")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			flagSet.SetOutput(os.Stdout)
			flagSet.PrintDefaults()
			return Config{}, err
		}
		return Config{}, err
	}

	leaseTTLParsed, err := time.ParseDuration(*flagLeaseTTL)
	if err != nil {
		return Config{}, fmt.Errorf("invalid lease ttl: %w", err)
	}
	retentionMaxAgeParsed, err := time.ParseDuration(*flagRetentionMaxAge)
	if err != nil {
		return Config{}, fmt.Errorf("invalid retention max age: %w", err)
	}
	retentionIntervalParsed, err := time.ParseDuration(*flagRetentionInterval)
	if err != nil {
		return Config{}, fmt.Errorf("invalid retention interval: %w", err)
	}

	config := Config{
		DBPath:       resolvePath(*flagDB, cwd),
		ManifestPath: resolvePath(*flagManifest, cwd),
		Addr:         strings.TrimSpace(*flagAddr),
		Advertise:    strings.TrimSpace(*flagAdvertise),
		LogLevel:     strings.ToLower(strings.TrimSpace(*flagLogLevel)),

		Capacity:        *flagCapacity,
		JournalCapacity: *flagJournalCapacity,

		Comparer:       normalizeComparer(*flagComparer),
		EmbedProvider:  os.Getenv("ISOLINK_EMBED_PROVIDER"),
		EmbedModel:     os.Getenv("ISOLINK_EMBED_MODEL"),
		EmbedBaseURL:   os.Getenv("ISOLINK_EMBED_BASE_URL"),
		EmbedAPIKey:    os.Getenv("ISOLINK_EMBED_API_KEY"),
		EmbedThreshold: embedThreshold,

		Election:  normalizeElection(*flagElection),
		RedisAddr: strings.TrimSpace(*flagRedisAddr),
		LeaseTTL:  leaseTTLParsed,

		AuthToken: strings.TrimSpace(*flagAuthToken),
		TLSCert:   resolvePath(*flagTLSCert, cwd),
		TLSKey:    resolvePath(*flagTLSKey, cwd),

		RetentionMaxAge:   retentionMaxAgeParsed,
		RetentionInterval: retentionIntervalParsed,
		ArchiveDir:        resolvePath(*flagArchiveDir, cwd),
	}

	if config.Addr == "" {
		return Config{}, errors.New("addr cannot be empty")
	}
	if config.Advertise == "" {
		config.Advertise = fmt.Sprintf("http://%s", config.Addr)
	}

	if config.Comparer != "always" && config.Comparer != "embedding" {
		return Config{}, fmt.Errorf("unsupported comparer: %s", config.Comparer)
	}
	if config.Comparer == "embedding" {
		provider := strings.ToLower(config.EmbedProvider)
		if (provider == "" || provider == "gemini") && config.EmbedAPIKey == "" {
			return Config{}, errors.New("comparer=embedding with the gemini provider requires ISOLINK_EMBED_API_KEY")
		}
	}

	switch config.Election {
	case "solo":
	case "sqlite", "redis":
		if config.LeaseTTL <= 0 {
			return Config{}, errors.New("lease ttl must be positive")
		}
		if config.Election == "redis" && config.RedisAddr == "" {
			return Config{}, errors.New("election=redis requires redis-addr")
		}
	default:
		return Config{}, fmt.Errorf("unsupported election backend: %s", config.Election)
	}

	if config.RetentionMaxAge < 0 {
		return Config{}, errors.New("retention max age cannot be negative")
	}
	if (config.TLSCert == "") != (config.TLSKey == "") {
		return Config{}, errors.New("tls-cert and tls-key must be set together")
	}

	return config, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func addrFromEnv(fallback string) string {
	if value := os.Getenv("ISOLINK_ADDR"); value != "" {
		return value
	}
	if port := os.Getenv("ISOLINK_PORT"); port != "" {
		return fmt.Sprintf("127.0.0.1:%s", port)
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func resolvePath(path string, cwd string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return trimmed
	}
	if filepath.IsAbs(trimmed) {
		return trimmed
	}
	return filepath.Join(cwd, trimmed)
}

func normalizeComparer(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "always":
		return "always"
	case "embedding", "semantic":
		return "embedding"
	default:
		return strings.ToLower(strings.TrimSpace(mode))
	}
}

func normalizeElection(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "solo", "none":
		return "solo"
	case "sqlite", "db":
		return "sqlite"
	case "redis":
		return "redis"
	default:
		return strings.ToLower(strings.TrimSpace(mode))
	}
}
