package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-coaching/internal/auth"
	"ms-coaching/internal/booking"
	booking_api "ms-coaching/internal/booking/api"
	booking_db "ms-coaching/internal/booking/db"
	"ms-coaching/internal/booking/qr"
	"ms-coaching/internal/config"
	"ms-coaching/internal/kafka"
	"ms-coaching/internal/logger"
)

// Standalone booking core without chat, reviews or SSE. The full surface
// lives in the root main; this binary exists for deployments that split
// the lifecycle engine from the rest.
func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx := context.Background()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Database.Username, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	}

	sqldb, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
	}
	defer sqldb.Close()

	if err := sqldb.Ping(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
	}
	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	defer bunDB.Close()

	var producer *kafka.Producer
	var publisher booking.EventPublisher
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingEvents)
		defer producer.Close()
		publisher = producer
		logger.Info("KAFKA", "Kafka producer initialized successfully")
	}

	bookingService := booking.NewService(&booking_db.DB{Bun: bunDB}, publisher, logger)
	handler := &booking_api.Handler{
		BookingService: bookingService,
		QR:             qr.NewGenerator(os.Getenv("QR_SIGNING_SECRET")),
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())

		r.Post("/internal/v1/bookings", handler.CreateBookingInternal)

		r.Route("/api/coaching/bookings", func(r chi.Router) {
			r.Post("/", handler.CreateBooking)
			r.Get("/client", handler.ListClientBookings)
			r.Get("/mentor", handler.ListMentorBookings)
			r.Get("/mentor/pending", handler.ListPendingBookings)
			r.Get("/{bookingId}", handler.GetBooking)
			r.Post("/{bookingId}/accept", handler.AcceptBooking)
			r.Post("/{bookingId}/reject", handler.RejectBooking)
			r.Post("/{bookingId}/cancel", handler.CancelBooking)
			r.Post("/{bookingId}/complete", handler.CompleteBooking)
			r.Get("/{bookingId}/check-in-qr", handler.BookingCheckInQR)
		})
	})

	port := os.Getenv("BOOKING_PORT")
	if port == "" {
		port = ":8084"
	}

	server := &http.Server{
		Addr:    port,
		Handler: r,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Booking Service running on %s", port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Booking Service shutdown complete")
	}
}
