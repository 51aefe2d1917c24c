package infra

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Prompt enhancement backends selectable through PROMPT_PROVIDER.
const (
	PromptProviderStatic  = "static"
	PromptProviderBackend = "backend"
	PromptProviderOpenAI  = "openai"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	GenerationEndpoint string
	PromptProvider     string
	PromptBackendURL   string
	OpenAIAPIKey       string
	OpenAIModel        string
	OpenAIBaseURL      string
	OpenAIOrg          string
	SheetsWebhookURL   string
	DatabaseURL        string
	DraftDir           string
	GeoIPDBPath        string
	CORSAllowedOrigins []string
	MaxImageDimension  int
	MaxImagePixels     int
	MinQuestionChars   int
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	SubmitTimeout      time.Duration
	DraftTTL           time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		GenerationEndpoint: strings.TrimSpace(os.Getenv("GENERATION_ENDPOINT")),
		PromptProvider:     strings.ToLower(getEnv("PROMPT_PROVIDER", PromptProviderStatic)),
		PromptBackendURL:   strings.TrimSpace(os.Getenv("PROMPT_BACKEND_URL")),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIOrg:          os.Getenv("OPENAI_ORG"),
		SheetsWebhookURL:   strings.TrimSpace(os.Getenv("SHEETS_WEBHOOK_URL")),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DraftDir:           getEnv("DRAFT_DIR", "./data/drafts"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		MaxImageDimension:  getEnvInt("MAX_IMAGE_DIMENSION", 1024),
		MaxImagePixels:     getEnvInt("MAX_IMAGE_PIXELS", 64_000_000),
		MinQuestionChars:   getEnvInt("MIN_QUESTION_CHARS", 50),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 150)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		SubmitTimeout:      time.Second * time.Duration(getEnvInt("SUBMIT_TIMEOUT_SECONDS", 120)),
		DraftTTL:           time.Hour * time.Duration(getEnvInt("DRAFT_TTL_HOURS", 72)),
	}

	if cfg.GenerationEndpoint != "" {
		if err := validateURL(cfg.GenerationEndpoint); err != nil {
			return nil, fmt.Errorf("GENERATION_ENDPOINT: %w", err)
		}
	}
	if cfg.SheetsWebhookURL != "" {
		if err := validateURL(cfg.SheetsWebhookURL); err != nil {
			return nil, fmt.Errorf("SHEETS_WEBHOOK_URL: %w", err)
		}
	}

	switch cfg.PromptProvider {
	case PromptProviderStatic:
	case PromptProviderBackend:
		if cfg.PromptBackendURL == "" {
			return nil, fmt.Errorf("PROMPT_BACKEND_URL is required when PROMPT_PROVIDER=backend")
		}
		if err := validateURL(cfg.PromptBackendURL); err != nil {
			return nil, fmt.Errorf("PROMPT_BACKEND_URL: %w", err)
		}
	case PromptProviderOpenAI:
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required when PROMPT_PROVIDER=openai")
		}
	default:
		return nil, fmt.Errorf("PROMPT_PROVIDER %q is not supported", cfg.PromptProvider)
	}

	if cfg.MaxImageDimension <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_DIMENSION must be positive")
	}
	if cfg.MaxImagePixels <= 0 {
		return nil, fmt.Errorf("MAX_IMAGE_PIXELS must be positive")
	}
	if cfg.MinQuestionChars < 0 {
		return nil, fmt.Errorf("MIN_QUESTION_CHARS must not be negative")
	}
	if cfg.RateLimitPerMin <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive")
	}

	return cfg, nil
}

// SubmissionEnabled reports whether a generation backend is configured.
func (c *Config) SubmissionEnabled() bool {
	return c != nil && c.GenerationEndpoint != ""
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
