// main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"movie-ticket-booking/cmd"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/events"
	"movie-ticket-booking/internal/gateway"
	"movie-ticket-booking/internal/provider"
	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/internal/wire"
	"movie-ticket-booking/internal/worker"
	"movie-ticket-booking/pkg/database"
	"movie-ticket-booking/pkg/utils"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load config
	config, err := utils.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logger, err := utils.InitLogger(config.App)
	if err != nil {
		log.Printf("Failed to init logger: %v. Using standard log.", err)
		logger, _ = zap.NewProduction()
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("app", config.App.Name),
		zap.String("port", config.App.Port),
		zap.Bool("debug", config.App.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.InitDB(config.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database connected successfully")

	// Initialize all repositories
	repos := repository.NewRepository(db, logger)

	publisher := newPublisher(config, logger)
	defer publisher.Close()

	deps := usecase.Dependencies{
		Gateway:   newGateway(config, logger),
		Publisher: publisher,
		Notifier:  newNotifier(config, logger),
		Location:  time.Local,
	}
	if config.TMDB.APIKey != "" {
		deps.Movies = provider.NewTMDBClient(config.TMDB, logger)
	} else {
		logger.Warn("TMDB_API_KEY not set, adding shows is disabled")
	}

	var lease worker.LeaseClient
	if rdb := newRedis(ctx, config, logger); rdb != nil {
		defer rdb.Close()
		lease = rdb
	}

	// Wire all dependencies
	app := wire.Wiring(repos, config, deps, lease, logger)

	if err := app.Worker.Start(ctx); err != nil {
		logger.Fatal("Failed to start expiry worker", zap.Error(err))
	}
	defer app.Worker.Stop()

	// Start server
	logger.Info("Starting HTTP server", zap.String("port", config.App.Port))
	if err := cmd.APIServer(ctx, app.Router, config.App.Port, logger); err != nil {
		logger.Error("HTTP server stopped", zap.Error(err))
	}
	logger.Info("Application stopped")
}

func newGateway(config *utils.Config, logger *zap.Logger) gateway.Gateway {
	if config.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY not set, using mock payment gateway")
		mockConfig := gateway.DefaultMockGatewayConfig()
		if config.Stripe.WebhookSecret != "" {
			mockConfig.WebhookSecret = config.Stripe.WebhookSecret
		}
		return gateway.NewMockGateway(mockConfig)
	}

	gw, err := gateway.NewStripeGateway(&gateway.StripeGatewayConfig{
		SecretKey:     config.Stripe.SecretKey,
		WebhookSecret: config.Stripe.WebhookSecret,
	})
	if err != nil {
		logger.Fatal("Failed to init stripe gateway", zap.Error(err))
	}
	return gw
}

func newPublisher(config *utils.Config, logger *zap.Logger) events.Publisher {
	if len(config.Kafka.Brokers) > 0 {
		p, err := events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:         config.Kafka.Brokers,
			Topic:           config.Kafka.Topic,
			ClientID:        config.App.Name,
			DeliveryTimeout: config.Kafka.DeliveryTimeout,
		}, logger)
		if err == nil {
			return p
		}
		logger.Error("Kafka publisher unavailable", zap.Error(err))
	}

	if config.RabbitMQ.URL != "" {
		p, err := events.NewRabbitPublisher(config.RabbitMQ.URL, config.RabbitMQ.Queue, logger)
		if err == nil {
			return p
		}
		logger.Error("RabbitMQ publisher unavailable", zap.Error(err))
	}

	return events.NewLogPublisher(logger)
}

func newNotifier(config *utils.Config, logger *zap.Logger) usecase.Notifier {
	if config.Email.Host == "" {
		return usecase.NewLogNotifier(logger)
	}
	n, err := usecase.NewSMTPNotifier(config.Email, logger)
	if err != nil {
		logger.Error("SMTP notifier unavailable, logging confirmations", zap.Error(err))
		return usecase.NewLogNotifier(logger)
	}
	return n
}

// newRedis returns nil when redis is not configured or unreachable; the
// expiry worker then sweeps without a lease.
func newRedis(ctx context.Context, config *utils.Config, logger *zap.Logger) *redis.Client {
	if config.Redis.Addr == "" {
		return nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis unreachable, expiry lease disabled", zap.Error(err))
		rdb.Close()
		return nil
	}

	logger.Info("Redis connected", zap.String("addr", config.Redis.Addr))
	return rdb
}
