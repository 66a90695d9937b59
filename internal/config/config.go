package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/riskibarqy/football-scoreboard/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	CORSAllowedOrigins []string
	DocsEnabled        bool
	LogLevel           logging.Level
	LogFormat          logging.Format

	// ViewerTimezone names the zone that defines "today" for classification.
	ViewerTimezone string

	FootballAPIBaseURL             string
	FootballAPIToken               string
	FootballAPITimeout             time.Duration
	FootballAPIMaxRetries          int
	FootballAPICircuitEnabled      bool
	FootballAPICircuitFailureCount int
	FootballAPICircuitOpenTimeout  time.Duration
	FootballAPICircuitHalfOpenMax  int

	CacheNamespace            string
	CachePersistentEnabled    bool
	CacheDataDir              string
	CachePersistentQuotaBytes int64
	CacheMemoryBudgetBytes    int64
	CacheSweepInterval        time.Duration
	CachePrefetchEnabled      bool

	LivePollInterval     time.Duration
	LiveMinPollGap       time.Duration
	LivePollTimeout      time.Duration
	LiveProbeTimeout     time.Duration
	LiveDeliveryThrottle time.Duration
	LiveMaxRetries       int
	LiveRetryBackoff     time.Duration
	LiveDeliveryWorkers  int

	UptraceEnabled             bool
	UptraceDSN                 string
	UptraceLogsEnabled         bool
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
	PprofEnabled               bool
	PprofAddr                  string
}

// Load reads configuration from the environment. A dotenv file named by APP_ENV_FILE
// (default .env) is applied first when present; real environment variables win.
func Load() (Config, error) {
	if err := loadDotEnv(getEnv("APP_ENV_FILE", ".env")); err != nil {
		return Config{}, err
	}

	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	docsDefault := "true"
	if appEnv == EnvProd {
		docsDefault = "false"
	}
	docsEnabled, err := strconv.ParseBool(getEnv("DOCS_ENABLED", docsDefault))
	if err != nil {
		return Config{}, fmt.Errorf("parse DOCS_ENABLED: %w", err)
	}

	logFormat, err := logging.ParseFormat(getEnv("APP_LOG_FORMAT", string(logging.FormatJSON)))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_LOG_FORMAT: %w", err)
	}

	cfg := Config{
		AppEnv:             appEnv,
		LogFormat:          logFormat,
		ServiceName:        getEnv("APP_SERVICE_NAME", "football-scoreboard"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", ":8080"),
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DocsEnabled:        docsEnabled,
		LogLevel:           parseLogLevel(getEnv("APP_LOG_LEVEL", "info")),
		ViewerTimezone:     strings.TrimSpace(getEnv("VIEWER_TIMEZONE", "Local")),
		FootballAPIBaseURL: strings.TrimSpace(getEnv("FOOTBALL_API_BASE_URL", "https://v3.football.api-sports.io")),
		FootballAPIToken:   strings.TrimSpace(getEnv("FOOTBALL_API_TOKEN", "")),
		CacheNamespace:     strings.TrimSpace(getEnv("CACHE_NAMESPACE", "")),
		CacheDataDir:       strings.TrimSpace(getEnv("CACHE_DATA_DIR", "./data/cache")),
		UptraceDSN:         strings.TrimSpace(getEnv("UPTRACE_DSN", "")),
		PyroscopeAuthToken: strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PprofAddr:          strings.TrimSpace(getEnv("PPROF_ADDR", ":6060")),
	}

	if err := loadHTTP(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadFootballAPI(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadCache(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadLiveUpdates(&cfg); err != nil {
		return Config{}, err
	}
	if err := loadObservability(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func loadHTTP(cfg *Config) error {
	readTimeout, err := getEnvAsDuration("APP_READ_TIMEOUT", "10s")
	if err != nil {
		return err
	}
	writeTimeout, err := getEnvAsDuration("APP_WRITE_TIMEOUT", "15s")
	if err != nil {
		return err
	}
	cfg.ReadTimeout = readTimeout
	cfg.WriteTimeout = writeTimeout

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		return fmt.Errorf("APP_HTTP_ADDR cannot be empty")
	}
	return nil
}

func loadFootballAPI(cfg *Config) error {
	if cfg.FootballAPIBaseURL == "" {
		return fmt.Errorf("FOOTBALL_API_BASE_URL cannot be empty")
	}

	timeout, err := getEnvAsDuration("FOOTBALL_API_TIMEOUT", "10s")
	if err != nil {
		return err
	}
	maxRetries, err := getEnvAsInt("FOOTBALL_API_MAX_RETRIES", 2)
	if err != nil {
		return fmt.Errorf("parse FOOTBALL_API_MAX_RETRIES: %w", err)
	}
	if maxRetries < 0 {
		return fmt.Errorf("FOOTBALL_API_MAX_RETRIES must be >= 0")
	}

	circuitEnabled, err := strconv.ParseBool(getEnv("FOOTBALL_API_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse FOOTBALL_API_CIRCUIT_ENABLED: %w", err)
	}
	failureCount, err := getEnvAsInt("FOOTBALL_API_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return fmt.Errorf("parse FOOTBALL_API_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	openTimeout, err := getEnvAsDuration("FOOTBALL_API_CIRCUIT_OPEN_TIMEOUT", "15s")
	if err != nil {
		return err
	}
	halfOpenMax, err := getEnvAsInt("FOOTBALL_API_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return fmt.Errorf("parse FOOTBALL_API_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if circuitEnabled && (failureCount <= 0 || halfOpenMax <= 0) {
		return fmt.Errorf("FOOTBALL_API_CIRCUIT_FAILURE_COUNT and FOOTBALL_API_CIRCUIT_HALF_OPEN_MAX_REQ must be > 0")
	}

	cfg.FootballAPITimeout = timeout
	cfg.FootballAPIMaxRetries = maxRetries
	cfg.FootballAPICircuitEnabled = circuitEnabled
	cfg.FootballAPICircuitFailureCount = failureCount
	cfg.FootballAPICircuitOpenTimeout = openTimeout
	cfg.FootballAPICircuitHalfOpenMax = halfOpenMax
	return nil
}

func loadCache(cfg *Config) error {
	persistent, err := strconv.ParseBool(getEnv("CACHE_PERSISTENT_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse CACHE_PERSISTENT_ENABLED: %w", err)
	}
	if persistent && cfg.CacheDataDir == "" {
		return fmt.Errorf("CACHE_DATA_DIR is required when CACHE_PERSISTENT_ENABLED=true")
	}
	quota, err := getEnvAsInt64("CACHE_PERSISTENT_QUOTA_BYTES", 256<<20)
	if err != nil {
		return fmt.Errorf("parse CACHE_PERSISTENT_QUOTA_BYTES: %w", err)
	}
	budget, err := getEnvAsInt64("CACHE_MEMORY_BUDGET_BYTES", 50<<20)
	if err != nil {
		return fmt.Errorf("parse CACHE_MEMORY_BUDGET_BYTES: %w", err)
	}
	if budget <= 0 {
		return fmt.Errorf("CACHE_MEMORY_BUDGET_BYTES must be > 0")
	}
	sweep, err := getEnvAsDuration("CACHE_SWEEP_INTERVAL", "5m")
	if err != nil {
		return err
	}
	prefetch, err := strconv.ParseBool(getEnv("CACHE_PREFETCH_ENABLED", "true"))
	if err != nil {
		return fmt.Errorf("parse CACHE_PREFETCH_ENABLED: %w", err)
	}

	cfg.CachePersistentEnabled = persistent
	cfg.CachePersistentQuotaBytes = quota
	cfg.CacheMemoryBudgetBytes = budget
	cfg.CacheSweepInterval = sweep
	cfg.CachePrefetchEnabled = prefetch
	return nil
}

func loadLiveUpdates(cfg *Config) error {
	durations := []struct {
		key      string
		fallback string
		target   *time.Duration
	}{
		{key: "LIVE_POLL_INTERVAL", fallback: "15s", target: &cfg.LivePollInterval},
		{key: "LIVE_MIN_POLL_GAP", fallback: "5s", target: &cfg.LiveMinPollGap},
		{key: "LIVE_POLL_TIMEOUT", fallback: "10s", target: &cfg.LivePollTimeout},
		{key: "LIVE_PROBE_TIMEOUT", fallback: "5s", target: &cfg.LiveProbeTimeout},
		{key: "LIVE_DELIVERY_THROTTLE", fallback: "100ms", target: &cfg.LiveDeliveryThrottle},
		{key: "LIVE_RETRY_BACKOFF", fallback: "1s", target: &cfg.LiveRetryBackoff},
	}
	for _, item := range durations {
		value, err := getEnvAsDuration(item.key, item.fallback)
		if err != nil {
			return err
		}
		*item.target = value
	}
	if cfg.LiveMinPollGap > cfg.LivePollInterval {
		return fmt.Errorf("LIVE_MIN_POLL_GAP must not exceed LIVE_POLL_INTERVAL")
	}

	maxRetries, err := getEnvAsInt("LIVE_MAX_RETRIES", 3)
	if err != nil {
		return fmt.Errorf("parse LIVE_MAX_RETRIES: %w", err)
	}
	if maxRetries < 0 {
		return fmt.Errorf("LIVE_MAX_RETRIES must be >= 0")
	}
	workers, err := getEnvAsInt("LIVE_DELIVERY_WORKERS", 16)
	if err != nil {
		return fmt.Errorf("parse LIVE_DELIVERY_WORKERS: %w", err)
	}
	if workers <= 0 {
		return fmt.Errorf("LIVE_DELIVERY_WORKERS must be > 0")
	}

	cfg.LiveMaxRetries = maxRetries
	cfg.LiveDeliveryWorkers = workers
	return nil
}

func loadObservability(cfg *Config) error {
	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	if cfg.UptraceDSN == "" {
		cfg.UptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && cfg.UptraceDSN == "" {
		return fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}
	uptraceLogsEnabled, err := strconv.ParseBool(getEnv("UPTRACE_LOGS_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse UPTRACE_LOGS_ENABLED: %w", err)
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s")
	if err != nil {
		return err
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	if pprofEnabled && cfg.PprofAddr == "" {
		return fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	cfg.UptraceEnabled = uptraceEnabled
	cfg.UptraceLogsEnabled = uptraceLogsEnabled
	cfg.PyroscopeEnabled = pyroscopeEnabled
	cfg.PyroscopeServerAddress = pyroscopeServerAddress
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	cfg.PyroscopeBasicAuthUser = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", ""))
	cfg.PyroscopeBasicAuthPassword = strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", ""))
	cfg.PyroscopeUploadRate = pyroscopeUploadRate
	cfg.PprofEnabled = pprofEnabled
	return nil
}

func loadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

func getEnvAsInt64(key string, fallback int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	return strconv.ParseInt(value, 10, 64)
}

// getEnvAsDuration parses key as a positive duration.
func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return value, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
