package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

// StripeConfig: настройки платёжного шлюза.
type StripeConfig struct {
	SecretKey     string        `env:"SECRET_KEY"`
	WebhookSecret string        `env:"WEBHOOK_SECRET"`
	Currency      string        `env:"CURRENCY" envDefault:"egp"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

// S3Config: хранилище обложек. Пустой Bucket означает локальный диск.
type S3Config struct {
	Bucket        string `env:"BUCKET"`
	Region        string `env:"REGION" envDefault:"us-east-1"`
	Endpoint      string `env:"ENDPOINT"`
	AccessKey     string `env:"ACCESS_KEY"`
	SecretKey     string `env:"SECRET_KEY"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`
	Folder        string `env:"FOLDER" envDefault:"covers"`
}

type AppConfig struct {
	Env      string `env:"APP_ENV" envDefault:"dev"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":50051"`

	// Публичный origin, от которого строятся callback-URL и абсолютные ссылки на картинки.
	PublicOrigin string   `env:"PUBLIC_ORIGIN" envDefault:"http://localhost:8080"`
	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	JWTSecret string `env:"JWT_SECRET,required,notEmpty"`

	// Эти email получают роль admin при первом входе.
	BootstrapAdminEmails []string `env:"BOOTSTRAP_ADMIN_EMAILS" envSeparator:","`

	Stripe StripeConfig `envPrefix:"STRIPE_"`
	S3     S3Config     `envPrefix:"S3_"`

	UploadDir string `env:"UPLOAD_DIR" envDefault:"uploads"`

	// Пусто: локальные мьютексы вместо redis.
	RedisURL string        `env:"REDIS_URL"`
	LockTTL  time.Duration `env:"LOCK_TTL" envDefault:"15s"`

	// Пусто: события только логируются.
	RabbitURL      string `env:"RABBITMQ_URL"`
	RabbitExchange string `env:"RABBITMQ_EXCHANGE" envDefault:"consult.events"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"consult-core"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse app env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет то, что env-теги проверить не могут.
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.PublicOrigin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid PUBLIC_ORIGIN %q: must be absolute", c.PublicOrigin)
	}
	if c.Stripe.Timeout <= 0 {
		return fmt.Errorf("invalid STRIPE_TIMEOUT: must be positive")
	}
	if c.Stripe.Currency == "" {
		return fmt.Errorf("invalid STRIPE_CURRENCY: must not be empty")
	}
	return nil
}
