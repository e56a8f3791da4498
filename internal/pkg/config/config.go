package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: values that differ between environments (port, DB connection,
//   secrets) and anything with money implications (fee schedule)
// - default: values common across environments (timeouts, TTLs, policy knobs)
// -----------------------------------------------------------------------------

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	CORS     CORSConfig
	Log      LogConfig
	JWT      JWTConfig
	Hold     HoldConfig
	Escrow   EscrowConfig
	Events   EventsConfig
	Gateway  GatewayConfig
	Matching MatchingConfig
	Services ServicesConfig
}

type ServicesConfig struct {
	// Service type to consultation length in minutes; the type doubles as
	// the fee-schedule tier.
	Catalog string `envconfig:"SERVICE_CATALOG" default:"standard:30,intro:30,deep-dive:60"`
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization,Idempotency-Key"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

type JWTConfig struct {
	Secret string `envconfig:"JWT_SECRET" required:"true"`
}

// HoldConfig bounds the reservation flow. TTL must cover the payment
// gateway's worst-case confirmation latency; GatewayMargin is subtracted from
// the remaining TTL when deadlining gateway calls.
type HoldConfig struct {
	TTL             time.Duration `envconfig:"HOLD_TTL" default:"10m"`
	SweepInterval   time.Duration `envconfig:"HOLD_SWEEP_INTERVAL" default:"30s"`
	GatewayMargin   time.Duration `envconfig:"HOLD_GATEWAY_MARGIN" default:"30s"`
	AlternativeSpan time.Duration `envconfig:"HOLD_ALTERNATIVE_SPAN" default:"2h"`
	MaxAlternatives int           `envconfig:"HOLD_MAX_ALTERNATIVES" default:"3"`
}

type EscrowConfig struct {
	// Platform fee percentage per service tier, e.g. "standard:15,premium:20".
	FeeSchedule string `envconfig:"ESCROW_FEE_SCHEDULE" default:"standard:15"`
	// Refund percentage by hours-before-start, e.g. "24:100,12:50,0:0".
	// Must be monotonically non-increasing toward the start time.
	CancellationSchedule string        `envconfig:"ESCROW_CANCELLATION_SCHEDULE" default:"24:100,12:50,0:0"`
	AutoReleaseAfter     time.Duration `envconfig:"ESCROW_AUTO_RELEASE_AFTER" default:"72h"`
	NoShowRefunds        bool          `envconfig:"ESCROW_NO_SHOW_REFUNDS" default:"false"`
	RescheduleFeeMode    string        `envconfig:"RESCHEDULE_FEE_MODE" default:"none"`
	ReminderLead         time.Duration `envconfig:"BOOKING_REMINDER_LEAD" default:"24h"`
}

type EventsConfig struct {
	AMQPURL  string `envconfig:"AMQP_URL" default:""`
	Exchange string `envconfig:"AMQP_EXCHANGE" default:"booking.events"`
}

type GatewayConfig struct {
	WebhookSecret string `envconfig:"GATEWAY_WEBHOOK_SECRET" default:""`
}

type MatchingConfig struct {
	BaseURL string        `envconfig:"MATCHING_BASE_URL" default:""`
	Timeout time.Duration `envconfig:"MATCHING_TIMEOUT" default:"3s"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{Port: "8889"},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433",
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Log: LogConfig{Level: "error", TimeFormat: "2006-01-02 15:04:05.000"},
		JWT: JWTConfig{Secret: "test-secret"},
		Hold: HoldConfig{
			TTL:             10 * time.Minute,
			SweepInterval:   time.Second,
			GatewayMargin:   30 * time.Second,
			AlternativeSpan: 2 * time.Hour,
			MaxAlternatives: 3,
		},
		Escrow: EscrowConfig{
			FeeSchedule:          "standard:15",
			CancellationSchedule: "24:100,12:50,0:0",
			AutoReleaseAfter:     72 * time.Hour,
			NoShowRefunds:        false,
			RescheduleFeeMode:    "none",
			ReminderLead:         24 * time.Hour,
		},
		Services: ServicesConfig{Catalog: "standard:30,intro:30,deep-dive:60"},
	}
}
