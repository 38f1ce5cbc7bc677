package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	ProviderOpenAI = "openai"
	ProviderVertex = "vertex"
)

// LLMSettings configures the completion provider. CostPerToken is the rate of
// Model and is recorded with it on every cost record.
type LLMSettings struct {
	Provider        string
	Model           string
	OpenAIKey       string
	OpenAIBaseURL   string
	VertexProject   string
	VertexLocation  string
	CredentialsFile string
	CostPerToken    float64
	MaxTokens       int
	Temperature     float32
}

type ChatSettings struct {
	QueueMaxConcurrent int
	QueueTimeout       time.Duration
	HistoryLimit       int
	CacheTTL           time.Duration
	RetentionInterval  time.Duration
	AllowedOrigins     []string
}

type Settings struct {
	Port             string
	LogLevel         string
	EncryptionSecret string

	LLM  LLMSettings
	Chat ChatSettings

	PostgresURI string
	RedisAddr   string // optional
	MongoURI    string // optional
	MongoDB     string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// LoadSettings reads the environment. It fails when a required value is
// missing or a value cannot be parsed.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		Port:             envOr("PORT", "8080"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		EncryptionSecret: os.Getenv("ENCRYPTION_SECRET"),
		PostgresURI:      os.Getenv("POSTGRES_URI"),
		RedisAddr:        firstEnv("REDIS_ADDR", "REDIS_URI", "REDIS_URL"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          envOr("MONGO_DB", "advisor"),
		JWTSecret:        os.Getenv("SUPABASE_JWT_SECRET"),
		JWTIssuer:        os.Getenv("SUPABASE_JWT_ISSUER"),
		JWTAudience:      os.Getenv("SUPABASE_JWT_AUDIENCE"),
	}

	var errs []error
	if strings.TrimSpace(s.EncryptionSecret) == "" {
		errs = append(errs, errors.New("ENCRYPTION_SECRET environment variable is not set"))
	}
	if s.PostgresURI == "" {
		errs = append(errs, errors.New("POSTGRES_URI environment variable is not set"))
	}

	p := parser{}
	s.LLM = LLMSettings{
		Provider:        strings.ToLower(envOr("LLM_PROVIDER", ProviderOpenAI)),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		VertexProject:   os.Getenv("VERTEX_PROJECT_ID"),
		VertexLocation:  envOr("VERTEX_LOCATION", "us-central1"),
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
		CostPerToken:    p.nonNegFloat("LLM_COST_PER_TOKEN", 0),
		MaxTokens:       p.positiveInt("LLM_MAX_TOKENS", 500),
		Temperature:     float32(p.nonNegFloat("LLM_TEMPERATURE", 0.3)),
	}
	s.Chat = ChatSettings{
		QueueMaxConcurrent: p.positiveInt("CHAT_QUEUE_MAX_CONCURRENT", 5),
		QueueTimeout:       p.positiveDuration("CHAT_QUEUE_TIMEOUT", 30*time.Second),
		HistoryLimit:       p.positiveInt("CHAT_HISTORY_LIMIT", 5),
		CacheTTL:           p.positiveDuration("CHAT_CACHE_TTL", 720*time.Hour),
		RetentionInterval:  p.positiveDuration("CHAT_RETENTION_INTERVAL", time.Hour),
		AllowedOrigins:     splitList(os.Getenv("CHAT_ALLOWED_ORIGINS")),
	}
	errs = append(errs, p.errs...)

	switch s.LLM.Provider {
	case ProviderOpenAI:
		s.LLM.Model = envOr("LLM_MODEL", "gpt-4o-mini")
		if s.LLM.OpenAIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY environment variable is not set"))
		}
	case ProviderVertex:
		s.LLM.Model = envOr("LLM_MODEL", "gemini-1.5-flash")
		if s.LLM.VertexProject == "" {
			errs = append(errs, errors.New("VERTEX_PROJECT_ID environment variable is not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderOpenAI, ProviderVertex, s.LLM.Provider))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return s, nil
}

type parser struct {
	errs []error
}

func (p *parser) positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s must be a positive integer, got %q", key, v))
		return def
	}
	return n
}

func (p *parser) nonNegFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		p.errs = append(p.errs, fmt.Errorf("%s must be a non-negative number, got %q", key, v))
		return def
	}
	return f
}

func (p *parser) positiveDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s must be a positive duration, got %q", key, v))
		return def
	}
	return d
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
