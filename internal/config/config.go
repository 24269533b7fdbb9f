package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port               string
	DBUrl              string
	JWTSecret          string
	SupabaseURL        string
	SupabaseBucket     string
	SupabaseServiceKey string
	AppEnv             string
	LogLevel           string
	RedisURL           string
	DownloadCacheDir   string
	VerificationTTL    time.Duration
	ProfileCacheTTL    time.Duration
	WorkerConcurrency  int
	EnableDocs         bool
	ConfigFile         string
	EnvFileLoaded      bool
}

// fileSettings are the non-secret settings that may come from CONFIG_FILE.
// Environment variables still win over the file.
type fileSettings struct {
	Port              string `yaml:"port"`
	AppEnv            string `yaml:"app_env"`
	LogLevel          string `yaml:"log_level"`
	DownloadCacheDir  string `yaml:"download_cache_dir"`
	VerificationTTL   string `yaml:"verification_ttl"`
	ProfileCacheTTL   string `yaml:"profile_cache_ttl"`
	WorkerConcurrency int    `yaml:"worker_concurrency"`
}

func LoadConfig() (*Config, error) {
	envFileLoaded := godotenv.Load() == nil

	jwtSecret, exists := os.LookupEnv("JWT_SECRET")
	if !exists || jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	configFile := getEnv("CONFIG_FILE", "")
	file, err := loadFileSettings(configFile)
	if err != nil {
		return nil, err
	}

	verificationTTL, err := getEnvDuration("VERIFICATION_TTL", orDefault(file.VerificationTTL, "10m"))
	if err != nil {
		return nil, err
	}
	profileCacheTTL, err := getEnvDuration("PROFILE_CACHE_TTL", orDefault(file.ProfileCacheTTL, "5m"))
	if err != nil {
		return nil, err
	}

	concurrency := file.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 5
	}

	appEnv := normalizeEnv(getEnv("APP_ENV", orDefault(file.AppEnv, "production")))

	return &Config{
		Port:               getEnv("PORT", orDefault(file.Port, "8080")),
		DBUrl:              getEnv("DB_URL", ""),
		JWTSecret:          jwtSecret,
		SupabaseURL:        getEnv("SUPABASE_URL", ""),
		SupabaseBucket:     getEnv("SUPABASE_BUCKET", ""),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
		AppEnv:             appEnv,
		LogLevel:           strings.ToLower(strings.TrimSpace(getEnv("LOG_LEVEL", orDefault(file.LogLevel, "info")))),
		RedisURL:           getEnv("REDIS_URL", ""),
		DownloadCacheDir:   getEnv("DOWNLOAD_CACHE_DIR", orDefault(file.DownloadCacheDir, os.TempDir())),
		VerificationTTL:    verificationTTL,
		ProfileCacheTTL:    profileCacheTTL,
		WorkerConcurrency:  getEnvInt("WORKER_CONCURRENCY", concurrency),
		EnableDocs:         getEnvBool("ENABLE_DOCS", false),
		ConfigFile:         configFile,
		EnvFileLoaded:      envFileLoaded,
	}, nil
}

func loadFileSettings(path string) (fileSettings, error) {
	var settings fileSettings
	if path == "" {
		return settings, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, &settings); err != nil {
		return settings, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return settings, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return fallback
	}

	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvDuration(key, fallback string) (time.Duration, error) {
	raw := strings.TrimSpace(getEnv(key, fallback))
	value, err := time.ParseDuration(raw)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return value, nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func normalizeEnv(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dev", "develop", "development", "local":
		return "development"
	case "prod", "production":
		return "production"
	case "stage", "staging":
		return "staging"
	case "test", "testing":
		return "test"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

func (c *Config) StorageEnabled() bool {
	return c != nil && c.SupabaseURL != "" && c.SupabaseBucket != "" && c.SupabaseServiceKey != ""
}

// DocsEnabled keeps the API reference off outside development.
func (c *Config) DocsEnabled() bool {
	return c != nil && c.EnableDocs && c.AppEnv == "development"
}

// ConsoleLogs reports whether logs should be human readable instead of JSON.
func (c *Config) ConsoleLogs() bool {
	return c != nil && (c.AppEnv == "development" || getEnvBool("LOG_CONSOLE", false))
}
