package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Store
	StoreDriver string // "postgres" | "memory"
	DatabaseURL string

	// Redis (optional; empty runs the queue and pub/sub in-process)
	RedisURL string

	// AI
	AIProvider           string // "gemini" | "openai"
	GeminiAPIKey         string
	GeminiModel          string
	GeminiConcurrentReqs int
	OpenAIAPIKey         string
	OpenAIBaseURL        string
	OpenAIModel          string

	// Quiz generation
	QuizLockLease         time.Duration
	QuizGenerationTimeout time.Duration

	// Presence
	PresenceTTL time.Duration

	// Transcript ingress
	TranscriptWebhookSecret string

	// Workers
	WorkerCount int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                    getEnvOrDefault("PORT", "8080"),
		Env:                     getEnvOrDefault("ENV", "development"),
		StoreDriver:             getEnvOrDefault("STORE_DRIVER", "postgres"),
		RedisURL:                getEnvOrDefault("REDIS_URL", ""),
		AIProvider:              getEnvOrDefault("AI_PROVIDER", "gemini"),
		GeminiModel:             getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiConcurrentReqs:    getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		OpenAIBaseURL:           getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:             getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		QuizLockLease:           getEnvAsDurationOrDefault("QUIZ_LOCK_LEASE", 2*time.Minute),
		QuizGenerationTimeout:   getEnvAsDurationOrDefault("QUIZ_GENERATION_TIMEOUT", 60*time.Second),
		PresenceTTL:             getEnvAsDurationOrDefault("PRESENCE_TTL", 15*time.Second),
		TranscriptWebhookSecret: getEnvOrDefault("TRANSCRIPT_WEBHOOK_SECRET", ""),
		WorkerCount:             getEnvAsIntOrDefault("WORKER_COUNT", 5),
		FrontendURL:             getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	if cfg.StoreDriver == "postgres" {
		cfg.DatabaseURL = mustGetEnv("DATABASE_URL")
	}

	switch cfg.AIProvider {
	case "openai":
		cfg.OpenAIAPIKey = mustGetEnv("OPENAI_API_KEY")
	default:
		cfg.AIProvider = "gemini"
		cfg.GeminiAPIKey = mustGetEnv("GEMINI_API_KEY")
	}

	// The generation timeout must stay inside the lock lease, otherwise a slow
	// but healthy generation could be superseded mid-flight.
	if cfg.QuizGenerationTimeout >= cfg.QuizLockLease {
		cfg.QuizGenerationTimeout = cfg.QuizLockLease / 2
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
