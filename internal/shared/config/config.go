package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName         string
	Port            string
	Env             string
	CORSAllowOrigin []string
	DatabaseURL     string

	LLMProvider   string
	OllamaBaseURL string
	OllamaModel   string
	GeminiAPIKey  string
	GeminiModel   string
	LLMTimeout    time.Duration

	HomeCache     string
	HomeCacheSize int
	HomeCacheTTL  time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel  string
	LogFormat string

	AdviceRateLimit RateLimit
}

// RateLimit is a token bucket rule: Rate tokens per second, Burst capacity.
type RateLimit struct {
	Rate  float64
	Burst int
}

var defaults = map[string]any{
	"APP_NAME":                "Home Energy Advisor",
	"PORT":                    "8080",
	"ENV":                     "dev",
	"CORS_ALLOW_ORIGINS":      "http://localhost:5173",
	"DATABASE_URL":            "",
	"LLM_PROVIDER":            "ollama",
	"OLLAMA_BASE_URL":         "http://localhost:11434",
	"OLLAMA_MODEL":            "llama3.1",
	"GEMINI_API_KEY":          "",
	"GEMINI_MODEL":            "gemini-2.5-flash",
	"LLM_TIMEOUT":             "120s",
	"HOME_CACHE":              "lru",
	"HOME_CACHE_SIZE":         1024,
	"HOME_CACHE_TTL":          "10m",
	"REDIS_ADDR":              "",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "json",
	"RATE_LIMIT_ADVICE_RPS":   0.5,
	"RATE_LIMIT_ADVICE_BURST": 3,
}

// Load reads configuration from environment variables and an optional
// config.yaml, with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("config: read config file: %v", err)
		}
	}
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) Config {
	env := normalizeEnv(v.GetString("ENV"))
	dbURL := strings.TrimSpace(v.GetString("DATABASE_URL"))

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		AppName:         v.GetString("APP_NAME"),
		Port:            v.GetString("PORT"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(v.GetString("CORS_ALLOW_ORIGINS")),
		DatabaseURL:     dbURL,

		LLMProvider:   normalizeProvider(v.GetString("LLM_PROVIDER")),
		OllamaBaseURL: strings.TrimRight(strings.TrimSpace(v.GetString("OLLAMA_BASE_URL")), "/"),
		OllamaModel:   strings.TrimSpace(v.GetString("OLLAMA_MODEL")),
		GeminiAPIKey:  strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
		GeminiModel:   strings.TrimSpace(v.GetString("GEMINI_MODEL")),
		LLMTimeout:    positiveDuration(v.GetDuration("LLM_TIMEOUT"), 120*time.Second),

		HomeCache:     normalizeCache(v.GetString("HOME_CACHE")),
		HomeCacheSize: positiveInt(v.GetInt("HOME_CACHE_SIZE"), 1024),
		HomeCacheTTL:  positiveDuration(v.GetDuration("HOME_CACHE_TTL"), 10*time.Minute),
		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),
		RedisDB:       v.GetInt("REDIS_DB"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),

		AdviceRateLimit: RateLimit{
			Rate:  v.GetFloat64("RATE_LIMIT_ADVICE_RPS"),
			Burst: v.GetInt("RATE_LIMIT_ADVICE_BURST"),
		},
	}
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini":
		return "gemini"
	default:
		return "ollama"
	}
}

func normalizeCache(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	case "none", "off", "":
		return "none"
	default:
		return "lru"
	}
}

func positiveInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func positiveDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
