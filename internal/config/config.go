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
	"gopkg.in/yaml.v3"
)

const defaultDotEnvFile = ".env"

type Config struct {
	APIPort  string
	LogLevel string

	// GeminiAPIKey is read from API_Key and only ever used by the relay.
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	UpstreamTimeout time.Duration

	RelayMaxBodyBytes int64
	RelayURL          string

	BreakerEnabled          bool
	BreakerMinRequests      int
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls int

	SessionIdleTTL        time.Duration
	SessionRateLimitRPS   float64
	SessionRateLimitBurst int

	StaticDir string
}

// Load reads configuration from, in order of precedence, the process
// environment, a .env file in the working directory and the YAML file
// named by CONFIG_FILE. Missing files are skipped.
func Load() (Config, error) {
	dotEnv, err := readDotEnv(defaultDotEnvFile)
	if err != nil {
		return Config{}, err
	}
	src := source{layers: []map[string]string{dotEnv}}

	if path := src.lookup("CONFIG_FILE"); path != "" {
		file, err := readYAMLFile(path)
		if err != nil {
			return Config{}, err
		}
		src.layers = append(src.layers, file)
	}
	return src.build(), nil
}

func (s source) build() Config {
	return Config{
		APIPort:  s.mustEnv("API_PORT", "8080"),
		LogLevel: s.mustEnv("LOG_LEVEL", "info"),

		GeminiAPIKey:    s.mustEnv("API_Key", s.mustEnv("GEMINI_API_KEY", "")),
		GeminiBaseURL:   s.mustEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiModel:     s.mustEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		UpstreamTimeout: s.mustEnvDuration("UPSTREAM_TIMEOUT", 120*time.Second),

		RelayMaxBodyBytes: int64(s.mustEnvInt("RELAY_MAX_BODY_BYTES", 10<<20)),
		RelayURL:          s.mustEnv("RELAY_URL", ""),

		BreakerEnabled:          s.mustEnvBool("RELAY_BREAKER_ENABLED", false),
		BreakerMinRequests:      s.mustEnvInt("RELAY_BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio:     s.mustEnvFloat("RELAY_BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeout:      s.mustEnvDuration("RELAY_BREAKER_OPEN_TIMEOUT", 30*time.Second),
		BreakerHalfOpenMaxCalls: s.mustEnvInt("RELAY_BREAKER_HALF_OPEN_MAX_CALLS", 2),

		SessionIdleTTL:        s.mustEnvDuration("SESSION_IDLE_TTL", 30*time.Minute),
		SessionRateLimitRPS:   s.mustEnvFloat("SESSION_RATE_LIMIT_RPS", 0),
		SessionRateLimitBurst: s.mustEnvInt("SESSION_RATE_LIMIT_BURST", 5),

		StaticDir: s.mustEnv("STATIC_DIR", ""),
	}
}

// source resolves a key from the environment first and then from each
// file layer in order.
type source struct {
	layers []map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	for _, layer := range s.layers {
		if v := layer[key]; v != "" {
			return v
		}
	}
	return ""
}

func readDotEnv(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}

// readYAMLFile accepts a flat mapping of the same keys as the environment.
func readYAMLFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	out := make(map[string]string, len(doc))
	for key, value := range doc {
		switch v := value.(type) {
		case nil:
		case map[string]any, []any:
			return nil, fmt.Errorf("parse config file %s: key %s must be a scalar", path, key)
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out, nil
}

func (s source) mustEnv(key, fallback string) string {
	v := strings.TrimSpace(s.lookup(key))
	if v == "" {
		return fallback
	}
	return v
}

func (s source) mustEnvInt(key string, fallback int) int {
	v := s.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvFloat(key string, fallback float64) float64 {
	v := s.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}

func (s source) mustEnvBool(key string, fallback bool) bool {
	v := s.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

// mustEnvDuration accepts Go durations ("90s") or plain seconds ("90").
func (s source) mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := s.mustEnv(key, "")
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
