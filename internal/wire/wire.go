// internal/wire/wire.go
package wire

import (
	"net/http"

	"movie-ticket-booking/internal/adaptor"
	"movie-ticket-booking/internal/data/repository"
	"movie-ticket-booking/internal/usecase"
	"movie-ticket-booking/internal/worker"
	"movie-ticket-booking/pkg/middleware"
	"movie-ticket-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App menyimpan semua dependencies
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
	Worker  *worker.ExpiryWorker
}

// Wiring menginisialisasi semua dependencies. lease may be nil for a single instance.
func Wiring(repo *repository.Repository, config *utils.Config, deps usecase.Dependencies, lease worker.LeaseClient, logger *zap.Logger) *App {
	// Initialize services dan handlers
	service := usecase.NewService(repo, config, deps, logger)

	expiry := worker.NewExpiryWorker(service.Booking, worker.ExpiryWorkerConfig{
		Interval: config.Booking.SweepInterval,
		Lease:    lease,
		Clock:    deps.Clock,
	}, logger)

	handler := adaptor.NewHandler(service, expiry, config, logger)

	// Setup router
	router := setupRouter(handler, config, logger)

	return &App{
		Router:  router,
		Service: service,
		Worker:  expiry,
	}
}

// setupRouter konfigurasi Chi router
func setupRouter(handler *adaptor.Handler, config *utils.Config, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(config.App.ClientURL))

	// Apply routes
	wireBooking(r, handler.Booking, handler.Payment, config, logger)
	wireShow(r, handler.Show)
	wireAdmin(r, handler.Admin, config, logger)
	wireUser(r, handler.Identity, handler.User, config, logger)

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
