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
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-coaching/internal/auth"
	"ms-coaching/internal/booking"
	booking_api "ms-coaching/internal/booking/api"
	booking_db "ms-coaching/internal/booking/db"
	"ms-coaching/internal/booking/qr"
	"ms-coaching/internal/chat"
	chat_api "ms-coaching/internal/chat/api"
	chat_db "ms-coaching/internal/chat/db"
	chat_redis "ms-coaching/internal/chat/redis"
	"ms-coaching/internal/chat/ws"
	"ms-coaching/internal/config"
	"ms-coaching/internal/database/migrations"
	"ms-coaching/internal/kafka"
	"ms-coaching/internal/logger"
	"ms-coaching/internal/notify"
	notify_api "ms-coaching/internal/notify/api"
	"ms-coaching/internal/notify/sse"
	"ms-coaching/internal/payments/storage"
	"ms-coaching/internal/reviews"
	review_api "ms-coaching/internal/reviews/api"
	review_db "ms-coaching/internal/reviews/db"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
			cfg.Database.Username, cfg.Database.Password,
			cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	}

	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", dsn)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func runMigrations(bunDB *bun.DB, logger *logger.Logger) {
	opts := migrations.DefaultOptions()
	if dir := os.Getenv("MIGRATIONS_DIR"); dir != "" {
		opts.MigrationsDir = dir
	}
	if !opts.AutoMigrate {
		return
	}

	runner := migrations.NewRunner(bunDB, opts)
	if err := runner.RunMigrations(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	logger.Info("DATABASE", "✅ Schema migrations applied")
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Coaching Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		logger.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	logger.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	runMigrations(bunDB, logger)

	var bookingProducer *kafka.Producer
	var chatProducer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))

		requiredTopics := []string{
			cfg.Kafka.Topics.BookingEvents,
			cfg.Kafka.Topics.ChatEvents,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			logger.Info("KAFKA", "Required topics ensured successfully")
		}

		bookingProducer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingEvents)
		chatProducer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ChatEvents)
		defer bookingProducer.Close()
		defer chatProducer.Close()
		logger.Info("KAFKA", "Kafka producers initialized successfully")
	} else {
		logger.Warn("KAFKA", "Kafka disabled, booking and chat events will not be published")
	}

	bookingStore := &booking_db.DB{Bun: bunDB}
	bookingService := booking.NewService(bookingStore, producerOrNil(bookingProducer), logger)

	bookingHandler := &booking_api.Handler{
		BookingService: bookingService,
		QR:             qr.NewGenerator(os.Getenv("QR_SIGNING_SECRET")),
	}

	chatService := chat.NewService(
		&chat_db.DB{Bun: bunDB},
		bookingStore,
		chat_redis.NewRedis(redisClient, logger),
		chatProducerOrNil(chatProducer),
		logger,
	)
	chatHandler := &chat_api.Handler{
		ChatService: chatService,
		Hub:         ws.NewHub(),
		Logger:      logger,
	}

	reviewService := reviews.NewService(&review_db.DB{Bun: bunDB}, bookingStore, logger)
	reviewHandler := &review_api.Handler{ReviewService: reviewService}

	profileStore, err := storage.NewPostgreSQLStoreWithDB(bunDB.DB, logger)
	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Profile store init failed: %v", err))
	}

	emitter := sse.NewBookingEventEmitter()
	sseHandler := notify_api.NewSSEHandler(logger, emitter, bookingStore)

	notifyCtx, stopNotify := context.WithCancel(ctx)
	defer stopNotify()
	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingEvents, cfg.Kafka.GroupID)
		defer consumer.Close()

		emailNotifier := notify.NewEmailNotifier(cfg.Email, profileStore, logger)
		dispatcher := notify.NewDispatcher(consumer, emitter, emailNotifier, logger)
		go dispatcher.Run(notifyCtx)
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/api/coaching/users/{userId}/reviews", reviewHandler.ListUserReviews)
	r.Get("/api/coaching/users/{userId}/rating", reviewHandler.GetUserRating)
	logger.Info("ROUTER", "Public review endpoints registered under /api/coaching/users")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		logger.Info("AUTH", "JWT middleware applied to protected API routes")

		// Service-to-service booking writes from the payment service.
		r.Post("/internal/v1/bookings", bookingHandler.CreateBookingInternal)
		logger.Info("ROUTER", "Internal booking endpoint registered at /internal/v1/bookings")

		r.Route("/api/coaching", func(r chi.Router) {
			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", bookingHandler.CreateBooking)
				r.Get("/client", bookingHandler.ListClientBookings)
				r.Get("/mentor", bookingHandler.ListMentorBookings)
				r.Get("/mentor/pending", bookingHandler.ListPendingBookings)
				r.Get("/{bookingId}", bookingHandler.GetBooking)
				r.Post("/{bookingId}/accept", bookingHandler.AcceptBooking)
				r.Post("/{bookingId}/reject", bookingHandler.RejectBooking)
				r.Post("/{bookingId}/cancel", bookingHandler.CancelBooking)
				r.Post("/{bookingId}/complete", bookingHandler.CompleteBooking)
				r.Get("/{bookingId}/check-in-qr", bookingHandler.BookingCheckInQR)
			})
			logger.Info("ROUTER", "Booking routes registered under /api/coaching/bookings")

			r.Route("/chat", func(r chi.Router) {
				r.Post("/bookings/{bookingId}", chatHandler.OpenConversation)
				r.Post("/conversations/{conversationId}/messages", chatHandler.SendMessage)
				r.Get("/conversations/{conversationId}/messages", chatHandler.GetMessages)
				r.Get("/conversations/{conversationId}/ws", chatHandler.ConversationWS)
			})
			logger.Info("ROUTER", "Chat routes registered under /api/coaching/chat")

			r.Route("/reviews", func(r chi.Router) {
				r.Post("/", reviewHandler.SubmitReview)
				r.Get("/bookings/{bookingId}", reviewHandler.ListBookingReviews)
			})
			logger.Info("ROUTER", "Review routes registered under /api/coaching/reviews")
		})

		// SSE streams verify access from the JWT themselves
		r.Get("/api/coaching/events/mentors/{mentorID}", sseHandler.HandleMentorBookings)
		r.Get("/api/coaching/events/bookings/{bookingID}", sseHandler.HandleBookingEvents)
		logger.Info("ROUTER", "SSE routes registered under /api/coaching/events")
	})

	// No WriteTimeout here: SSE and websocket streams outlive any fixed limit.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("🚀 Coaching Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	stopNotify()

	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		logger.Info("HTTP", "✅ Coaching Service shutdown complete")
	}
}

// producerOrNil keeps a typed nil out of the booking service's publisher
// when Kafka is disabled.
func producerOrNil(p *kafka.Producer) booking.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}

func chatProducerOrNil(p *kafka.Producer) chat.EventPublisher {
	if p == nil {
		return nil
	}
	return p
}
