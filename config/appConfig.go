package config

import (
	"os"
	"strings"
	"time"
)

const defaultPort = "8080"

type AppConfig struct {
	Port string
	// GO_ENV=production tightens CORS.
	Environment string
	CorsAllowedOrigins []string

	// Hosted backend reached through the restricted RPC surface.
	RpcBaseURL    string
	RpcAPIKey     string
	RpcJwtSecret  string
	RpcTimeout    time.Duration
	RpcTokenTTL   time.Duration
	SessionTTL    time.Duration
	DraftCacheTTL time.Duration
	// Number of draft engines kept in memory per instance.
	DraftSessionSize int
}

func Load() AppConfig {
	port := strings.TrimSpace(os.Getenv("API_PORT"))
	if port == "" {
		// Cloud Run standard env var.
		port = strings.TrimSpace(os.Getenv("PORT"))
	}
	if port == "" {
		port = defaultPort
	}

	return AppConfig{
		Port:               port,
		Environment:        strings.ToLower(strings.TrimSpace(os.Getenv("GO_ENV"))),
		CorsAllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		RpcBaseURL:         strings.TrimRight(strings.TrimSpace(os.Getenv("RPC_BASE_URL")), "/"),
		RpcAPIKey:          strings.TrimSpace(os.Getenv("RPC_API_KEY")),
		RpcJwtSecret:       os.Getenv("RPC_JWT_SECRET"),
		RpcTimeout:         time.Duration(intFromEnv("RPC_TIMEOUT_SECONDS", 30)) * time.Second,
		RpcTokenTTL:        time.Duration(intFromEnv("RPC_TOKEN_TTL_SECONDS", 300)) * time.Second,
		SessionTTL:         time.Duration(intFromEnv("TOKEN_HOUR_LIFESPAN", 12)) * time.Hour,
		DraftCacheTTL:      time.Duration(intFromEnv("DRAFT_CACHE_TTL_HOURS", 72)) * time.Hour,
		DraftSessionSize:   intFromEnv("DRAFT_SESSION_SIZE", 1024),
	}
}

func (c AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
