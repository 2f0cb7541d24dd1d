package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every externally tunable knob. It is built once in main
// and handed to whoever needs it; nothing in this package is global.
type Config struct {
	ListenAddr string

	// Local store
	DBPath string

	// Remote rides API
	RemoteBaseURL string
	RemoteToken   string
	RemoteTimeout time.Duration

	// Connectivity probing / sync
	SyncProbeInterval time.Duration
	MaxSyncAttempts   int

	// Control API auth
	JWTSecret  string
	PairingPIN string
}

// Load reads .env (if present) and environment variables with defaults.
func Load() Config {
	// 1) Load .env (if present)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found – relying on env vars")
	}

	return Config{
		ListenAddr:        getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		DBPath:            getEnv("DB_PATH", "./data/tracker.db"),
		RemoteBaseURL:     getEnv("REMOTE_BASE_URL", "http://localhost:3000"),
		RemoteToken:       getEnv("REMOTE_TOKEN", ""),
		RemoteTimeout:     getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),
		SyncProbeInterval: getEnvDuration("SYNC_PROBE_INTERVAL", 30*time.Second),
		MaxSyncAttempts:   getEnvInt("MAX_SYNC_ATTEMPTS", 5),
		JWTSecret:         getEnv("JWT_SECRET", "supersecret"),
		PairingPIN:        getEnv("PAIRING_PIN", ""),
	}
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("invalid integer for %s: %q, using default", key, v)
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid duration for %s: %q, using default", key, v)
	}
	return defaultValue
}
