package utils

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Booking  BookingConfig
	Stripe   StripeConfig
	TMDB     TMDBConfig
	Email    EmailConfig
	Kafka    KafkaConfig
	RabbitMQ RabbitMQConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
	// ClientURL is used for checkout redirects when the request has no Origin header.
	ClientURL string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	AdminRole      string
	IdentitySecret string
}

type BookingConfig struct {
	MaxSeatsPerBooking int
	HoldTimeout        time.Duration
	SweepInterval      time.Duration
	SweepBatchSize     int
	PublishTimeout     time.Duration
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
	SessionTTL    time.Duration
}

type TMDBConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

type KafkaConfig struct {
	Brokers         []string
	Topic           string
	DeliveryTimeout time.Duration
}

type RabbitMQConfig struct {
	URL   string
	Queue string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "movie-ticket-booking")
	viper.SetDefault("PORT", "3000")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("CLIENT_URL", "http://localhost:5173")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("ADMIN_ROLE", "admin")
	viper.SetDefault("BOOKING_MAX_SEATS", 5)
	viper.SetDefault("BOOKING_HOLD_TIMEOUT", "10m")
	viper.SetDefault("BOOKING_SWEEP_INTERVAL", "1m")
	viper.SetDefault("BOOKING_SWEEP_BATCH", 100)
	viper.SetDefault("EVENTS_PUBLISH_TIMEOUT", "5s")
	viper.SetDefault("STRIPE_CURRENCY", "usd")
	// Stripe rejects expires_at under 30m from its own clock
	viper.SetDefault("STRIPE_SESSION_TTL", "31m")
	viper.SetDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3")
	viper.SetDefault("TMDB_TIMEOUT", "10s")
	viper.SetDefault("KAFKA_TOPIC", "booking-events")
	viper.SetDefault("KAFKA_DELIVERY_TIMEOUT", "10s")
	viper.SetDefault("RABBITMQ_QUEUE", "booking.events")

	// .env is optional; environment variables always win
	if err := viper.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:      viper.GetString("APP_NAME"),
			Port:      viper.GetString("PORT"),
			Debug:     viper.GetBool("DEBUG"),
			LogPath:   viper.GetString("LOG_PATH"),
			ClientURL: viper.GetString("CLIENT_URL"),
		},
		Database: DatabaseConfig{
			Host:     viper.GetString("DB_HOST"),
			Port:     viper.GetString("DB_PORT"),
			Name:     viper.GetString("DB_NAME"),
			User:     viper.GetString("DB_USER"),
			Password: viper.GetString("DB_PASS"),
			SSLMode:  viper.GetString("DB_SSLMODE"),
			MaxConns: viper.GetInt32("DB_MAX_CONNS"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Auth: AuthConfig{
			JWTSecret:      viper.GetString("JWT_SECRET"),
			JWTIssuer:      viper.GetString("JWT_ISSUER"),
			AdminRole:      viper.GetString("ADMIN_ROLE"),
			IdentitySecret: viper.GetString("IDENTITY_WEBHOOK_SECRET"),
		},
		Booking: BookingConfig{
			MaxSeatsPerBooking: viper.GetInt("BOOKING_MAX_SEATS"),
			HoldTimeout:        viper.GetDuration("BOOKING_HOLD_TIMEOUT"),
			SweepInterval:      viper.GetDuration("BOOKING_SWEEP_INTERVAL"),
			SweepBatchSize:     viper.GetInt("BOOKING_SWEEP_BATCH"),
			PublishTimeout:     viper.GetDuration("EVENTS_PUBLISH_TIMEOUT"),
		},
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			Currency:      viper.GetString("STRIPE_CURRENCY"),
			SessionTTL:    viper.GetDuration("STRIPE_SESSION_TTL"),
		},
		TMDB: TMDBConfig{
			APIKey:  viper.GetString("TMDB_API_KEY"),
			BaseURL: viper.GetString("TMDB_BASE_URL"),
			Timeout: viper.GetDuration("TMDB_TIMEOUT"),
		},
		Email: EmailConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			User:     viper.GetString("SMTP_USER"),
			Password: viper.GetString("SMTP_PASS"),
			From:     viper.GetString("EMAIL_FROM"),
		},
		Kafka: KafkaConfig{
			Brokers:         splitList(viper.GetString("KAFKA_BROKERS")),
			Topic:           viper.GetString("KAFKA_TOPIC"),
			DeliveryTimeout: viper.GetDuration("KAFKA_DELIVERY_TIMEOUT"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   viper.GetString("RABBITMQ_URL"),
			Queue: viper.GetString("RABBITMQ_QUEUE"),
		},
	}

	return config, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
