package config

import (
	"os"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string

	OpenAIAPIKey        string
	OpenAIBaseURL       string
	ModelClassification string
	ModelSuggestion     string

	WorkerPollInterval time.Duration

	EnableOverdueSweep  bool
	EnableOutboxRelay   bool
	EnableAISuggestions bool
	EnableSwaggerUI     bool
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "loom"
	}

	port := os.Getenv("HTTP_PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    port,
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       os.Getenv("OPENAI_BASE_URL"),
		ModelClassification: envString("AI_MODEL_CLASSIFICATION", "gpt-4o-mini"),
		ModelSuggestion:     envString("AI_MODEL_SUGGESTION", "gpt-4o"),

		WorkerPollInterval: envDuration("WORKER_POLL_INTERVAL", 2*time.Second),

		EnableOverdueSweep:  envBool("ENABLE_OVERDUE_SWEEP", true),
		EnableOutboxRelay:   envBool("ENABLE_OUTBOX_RELAY", true),
		EnableAISuggestions: envBool("ENABLE_AI_SUGGESTIONS", false),
		EnableSwaggerUI:     envBool("ENABLE_SWAGGER_UI", true),
	}, nil
}

func envString(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
