package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RabbitMQURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LockTTL       time.Duration

	JWTSecret    string
	JWTIssuer    string
	AuthDisabled bool

	StepMaxAttempts     uint
	StepInitialBackoff  time.Duration
	BulkConcurrency     int
	RecoveryInterval    time.Duration
	DisallowedLineTypes []string
	CORSAllowedOrigins  []string
	IntakeRateLimit     int

	Kommo       KommoConfig
	WhatsApp    WhatsAppConfig
	Directory   ServiceConfig
	Summary     SummaryConfig
	NumberIntel ServiceConfig
	Mail        MailConfig
}

type ServiceConfig struct {
	URL    string
	APIKey string
}

type KommoConfig struct {
	URL            string
	APIToken       string
	PipelineID     int
	StatusID       int
	ClosedStatusID int
}

type WhatsAppConfig struct {
	URL             string
	AccessToken     string
	PhoneID         string
	Language        string
	IntakeTemplate  string
	ClosingTemplate string
}

type SummaryConfig struct {
	URL          string
	ClientID     string
	ClientSecret string
}

type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	r := reader{}
	attempts := r.num("STEP_MAX_ATTEMPTS", 3)
	cfg := &Config{
		Port:        r.str("PORT", "8080"),
		DatabaseURL: r.str("DATABASE_URL", "memory://"),
		RabbitMQURL: r.str("RABBITMQ_URL", ""),

		RedisAddr:     r.str("REDIS_ADDR", ""),
		RedisPassword: r.str("REDIS_PASSWORD", ""),
		RedisDB:       r.num("REDIS_DB", 0),
		LockTTL:       r.duration("LOCK_TTL", 30*time.Second),

		JWTSecret:    r.str("JWT_SECRET", ""),
		JWTIssuer:    r.str("JWT_ISSUER", ""),
		AuthDisabled: r.flag("AUTH_DISABLED", false),

		StepMaxAttempts:     uint(max(attempts, 0)),
		StepInitialBackoff:  r.duration("STEP_INITIAL_BACKOFF", 200*time.Millisecond),
		BulkConcurrency:     r.num("BULK_CONCURRENCY", 8),
		RecoveryInterval:    r.duration("RECOVERY_INTERVAL", time.Minute),
		DisallowedLineTypes: r.list("DISALLOWED_LINE_TYPES", []string{"tollFree", "premium", "sharedCost", "voicemail"}),
		CORSAllowedOrigins:  r.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		IntakeRateLimit:     r.num("INTAKE_RATE_LIMIT", 10),

		Kommo: KommoConfig{
			URL:            r.str("KOMMO_URL", ""),
			APIToken:       r.str("KOMMO_API_TOKEN", ""),
			PipelineID:     r.num("KOMMO_PIPELINE_ID", 0),
			StatusID:       r.num("KOMMO_STATUS_ID", 0),
			ClosedStatusID: r.num("KOMMO_CLOSED_STATUS_ID", 143),
		},
		WhatsApp: WhatsAppConfig{
			URL:             r.str("WHATSAPP_URL", "https://graph.facebook.com/v18.0"),
			AccessToken:     r.str("WHATSAPP_ACCESS_TOKEN", ""),
			PhoneID:         r.str("WHATSAPP_PHONE_ID", ""),
			Language:        r.str("WHATSAPP_LANGUAGE", "en_US"),
			IntakeTemplate:  r.str("WHATSAPP_INTAKE_TEMPLATE", "lead_received"),
			ClosingTemplate: r.str("WHATSAPP_CLOSING_TEMPLATE", "lead_closed"),
		},
		Directory: ServiceConfig{
			URL:    r.str("DIRECTORY_URL", ""),
			APIKey: r.str("DIRECTORY_API_KEY", ""),
		},
		Summary: SummaryConfig{
			URL:          r.str("SUMMARY_URL", ""),
			ClientID:     r.str("SUMMARY_CLIENT_ID", ""),
			ClientSecret: r.str("SUMMARY_CLIENT_SECRET", ""),
		},
		NumberIntel: ServiceConfig{
			URL:    r.str("NUMBER_INTEL_URL", ""),
			APIKey: r.str("NUMBER_INTEL_API_KEY", ""),
		},
		Mail: MailConfig{
			Host:     r.str("MAIL_HOST", ""),
			Port:     r.num("MAIL_PORT", 587),
			User:     r.str("MAIL_USER", ""),
			Password: r.str("MAIL_PASS", ""),
			From:     r.str("MAIL_FROM", ""),
		},
	}

	if len(r.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(r.errs, "; "))
	}
	if attempts < 1 {
		return nil, fmt.Errorf("invalid configuration: STEP_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

// reader collects parse errors instead of failing on the first one.
type reader struct {
	errs []string
}

func (r *reader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) num(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, key+" must be an integer")
		return def
	}
	return n
}

func (r *reader) flag(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, key+" must be a boolean")
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, key+" must be a duration like 30s")
		return def
	}
	return d
}

func (r *reader) list(key string, def []string) []string {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
