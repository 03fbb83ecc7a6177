package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env string `envconfig:"ENV" default:"dev"`

	// empty -> in-memory store
	DatabaseURL string `envconfig:"DATABASE_URL"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"24h"`

	HTTPAddr       string        `envconfig:"HTTP_ADDR" default:":5000"`
	GRPCAddr       string        `envconfig:"GRPC_ADDR" default:":50051"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"*"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"15s"`

	// register/login throttling, per client address
	AuthRPS   float64 `envconfig:"AUTH_RPS" default:"5"`
	AuthBurst int     `envconfig:"AUTH_BURST" default:"10"`

	RabbitURL      string `envconfig:"RABBIT_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"meeting.exchange"`
	NotifyQueue    string `envconfig:"NOTIFY_QUEUE" default:"meeting.notify.q"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env if present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return c, err
	}
	if c.JWTSecret == "" {
		return c, errors.New("JWT_SECRET is required")
	}
	return c, nil
}
