package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/norastrand/bookwise/libs/config"
	"github.com/norastrand/bookwise/libs/db"
	"github.com/norastrand/bookwise/libs/httpx"
	"github.com/norastrand/bookwise/libs/kafkax"
	otelx "github.com/norastrand/bookwise/libs/otel"
	"github.com/norastrand/bookwise/libs/runtime"
	"github.com/norastrand/bookwise/services/booking-service/internal/booking"
	"github.com/norastrand/bookwise/services/booking-service/internal/catalog"
	"github.com/norastrand/bookwise/services/booking-service/internal/consumer"
	"github.com/norastrand/bookwise/services/booking-service/internal/handlers"
	"github.com/norastrand/bookwise/services/booking-service/internal/inbox"
	"github.com/norastrand/bookwise/services/booking-service/internal/model"
	"github.com/norastrand/bookwise/services/booking-service/internal/outbox"
	"github.com/norastrand/bookwise/services/booking-service/internal/schedule"
	"github.com/norastrand/bookwise/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	outboxRepo := outbox.NewRepository(pool)
	appointmentRepo := storage.NewAppointmentRepository(pool, outboxRepo)
	offeringRepo := storage.NewOfferingRepository(pool)
	windowRepo := storage.NewWindowRepository(pool)
	subscriptionRepo := storage.NewSubscriptionRepository(pool)
	idempotencyRepo := storage.NewIdempotencyRepository(pool)

	slotStep := 30 * time.Minute
	if v, err := strconv.Atoi(config.String("SLOT_STEP_MINUTES", "30")); err == nil && v > 0 && v <= 120 {
		slotStep = time.Duration(v) * time.Minute
	}

	bookingSvc := booking.NewService(appointmentRepo, offeringRepo, windowRepo, subscriptionRepo, slotStep)
	catalogSvc := catalog.NewService(offeringRepo, appointmentRepo)
	scheduleSvc := schedule.NewService(windowRepo)

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	startConsumer := func(topic string, handler consumer.Handler) {
		if strings.TrimSpace(topic) == "" {
			return
		}
		eventConsumer := consumer.New(logger, inboxRepo, consumer.Config{
			Brokers: config.String("KAFKA_BROKERS", ""),
			GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
			Topic:   topic,
		}, handler)
		go eventConsumer.Run(ctx)
	}

	// Billing owns subscriptions; booking keeps a local snapshot per client so
	// tier checks never call billing synchronously.
	subscriptionHandler := func(active bool) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				ClientID   string `json:"client_id"`
				Tier       string `json:"tier"`
				OccurredAt string `json:"occurred_at"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.ClientID == "" || payload.Tier == "" {
				logger.Error("missing required event fields", "topic", msg.Topic)
				return nil
			}
			updatedAt := time.Now().UTC()
			if t, err := time.Parse(time.RFC3339, payload.OccurredAt); err == nil {
				updatedAt = t
			}
			return subscriptionRepo.Upsert(ctx, model.Subscription{
				ClientID:  payload.ClientID,
				Tier:      model.Tier(payload.Tier),
				IsActive:  active,
				UpdatedAt: updatedAt,
			})
		}
	}
	startConsumer(config.String("KAFKA_TOPIC_SUBSCRIPTION_ACTIVATED", "billing.subscription.activated.v1"), subscriptionHandler(true))
	startConsumer(config.String("KAFKA_TOPIC_SUBSCRIPTION_CANCELED", "billing.subscription.canceled.v1"), subscriptionHandler(false))

	appointmentFlagHandler := func(mark func(context.Context, string) error) consumer.Handler {
		return func(ctx context.Context, msg kafka.Message) error {
			var payload struct {
				AppointmentID string `json:"appointment_id"`
			}
			if err := json.Unmarshal(msg.Value, &payload); err != nil {
				logger.Error("invalid event payload", "err", err, "topic", msg.Topic)
				return nil
			}
			if payload.AppointmentID == "" {
				logger.Error("missing appointment_id", "topic", msg.Topic)
				return nil
			}
			if err := mark(ctx, payload.AppointmentID); err != nil {
				if err == model.ErrNotFound {
					logger.Warn("event for unknown appointment", "topic", msg.Topic, "appointment_id", payload.AppointmentID)
					return nil
				}
				return err
			}
			return nil
		}
	}
	startConsumer(config.String("KAFKA_TOPIC_REMINDER_SENT", "scheduler.reminder.sent.v1"), appointmentFlagHandler(appointmentRepo.MarkReminderSent))
	startConsumer(config.String("KAFKA_TOPIC_FEEDBACK_RECORDED", "feedback.response.recorded.v1"), appointmentFlagHandler(appointmentRepo.MarkFeedbackProvided))

	appointmentHandler := handlers.NewAppointmentHandler(bookingSvc, idempotencyRepo, logger)
	offeringHandler := handlers.NewOfferingHandler(catalogSvc, logger)
	availabilityHandler := handlers.NewAvailabilityHandler(scheduleSvc, logger)

	requireAuth := handlers.RequireAuth(jwtSecret)
	authed := func(h http.HandlerFunc) http.Handler { return requireAuth(h) }

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
	)
	mux.HandleFunc("/api/v1/public/slots", appointmentHandler.Slots)
	mux.HandleFunc("/api/v1/public/offerings", offeringHandler.List)
	mux.HandleFunc("/api/v1/public/offerings/get", offeringHandler.Get)
	mux.Handle("/api/v1/appointments", authed(appointmentHandler.Create))
	mux.Handle("/api/v1/appointments/list", authed(appointmentHandler.List))
	mux.Handle("/api/v1/appointments/get", authed(appointmentHandler.Get))
	mux.Handle("/api/v1/appointments/update", authed(appointmentHandler.Update))
	mux.Handle("/api/v1/appointments/cancel", authed(appointmentHandler.Cancel))
	mux.Handle("/api/v1/offerings", authed(offeringHandler.Create))
	mux.Handle("/api/v1/offerings/list", authed(offeringHandler.List))
	mux.Handle("/api/v1/offerings/get", authed(offeringHandler.Get))
	mux.Handle("/api/v1/offerings/update", authed(offeringHandler.Update))
	mux.Handle("/api/v1/offerings/delete", authed(offeringHandler.Delete))
	mux.Handle("/api/v1/availability", authed(availabilityHandler.Set))
	mux.Handle("/api/v1/availability/list", authed(availabilityHandler.List))
	mux.Handle("/api/v1/availability/update", authed(availabilityHandler.Update))
	mux.Handle("/api/v1/availability/delete", authed(availabilityHandler.Delete))

	bodyLimit := int64(1 << 20)
	requestTimeout := 10 * time.Second
	if v, err := strconv.Atoi(config.String("REQUEST_TIMEOUT_SECONDS", "10")); err == nil && v > 0 {
		requestTimeout = time.Duration(v) * time.Second
	}

	limitPerMinute := 120
	if v, err := strconv.Atoi(config.String("RATE_LIMIT_PER_MINUTE", "120")); err == nil && v > 0 {
		limitPerMinute = v
	}
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		redisDB := 0
		if v, err := strconv.Atoi(config.String("REDIS_DB", "0")); err == nil && v >= 0 {
			redisDB = v
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       redisDB,
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   parseList(config.String("CORS_ALLOWED_ORIGINS", "")),
			AllowedMethods:   parseList(config.String("CORS_ALLOWED_METHODS", "GET,POST,PATCH,DELETE,OPTIONS")),
			AllowedHeaders:   parseList(config.String("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key")),
			AllowCredentials: isTruthy(config.String("CORS_ALLOW_CREDENTIALS", "false")),
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(bodyLimit),
		httpx.WithTimeout(requestTimeout),
		rateLimitMW,
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
