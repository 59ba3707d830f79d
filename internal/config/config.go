package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	JWTSecret      string
	MongoURI       string
	DBName         string
	SkipAuth       bool
	Environment    string
	AppId          string
	AllowedOrigins string

	GatewayMode    string // "rest" or "memory"
	GatewayBaseURL string
	GatewayTimeout time.Duration

	ActionTakenStageID   int    // overrides the name lookup when > 0; the name lookup needs Leads.read
	ActionTakenStageName string // matched against the "stages" vocabulary

	PendingRetrySchedule string
	PendingMaxAttempts   int
	SessionTTL           time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	} else {
		log.Println("Loaded .env file successfully")
	}

	return &Config{
		Port:           getEnv("PORT", "8080"),
		JWTSecret:      getEnv("JWT_SECRET", "secret"),
		MongoURI:       getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DBName:         getEnv("DB_NAME", "records-console"),
		SkipAuth:       getEnv("SKIP_AUTH", "false") == "true",
		Environment:    getEnv("ENVIRONMENT", "development"),
		AppId:          getEnv("APP_ID", "records-console"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000, http://localhost:5173"),

		GatewayMode:    getEnv("GATEWAY_MODE", "rest"),
		GatewayBaseURL: getEnv("GATEWAY_BASE_URL", "http://localhost:8000"),
		GatewayTimeout: getDuration("GATEWAY_TIMEOUT", 10*time.Second),

		ActionTakenStageID:   getInt("ACTION_TAKEN_STAGE_ID", 3),
		ActionTakenStageName: getEnv("ACTION_TAKEN_STAGE_NAME", "Action Taken"),

		PendingRetrySchedule: getEnv("PENDING_RETRY_SCHEDULE", "@every 1m"),
		PendingMaxAttempts:   getInt("PENDING_MAX_ATTEMPTS", 5),
		SessionTTL:           getDuration("SESSION_TTL", 72*time.Hour),
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}
