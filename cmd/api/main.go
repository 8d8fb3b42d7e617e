package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/medibook/booking-api/internal/config"
	"github.com/medibook/booking-api/internal/email"
	"github.com/medibook/booking-api/internal/gateway"
	"github.com/medibook/booking-api/internal/handler"
	appointmentHandler "github.com/medibook/booking-api/internal/handler/appointment"
	authHandler "github.com/medibook/booking-api/internal/handler/auth"
	paymentHandler "github.com/medibook/booking-api/internal/handler/payment"
	providerHandler "github.com/medibook/booking-api/internal/handler/provider"
	"github.com/medibook/booking-api/internal/middleware"
	"github.com/medibook/booking-api/internal/repository/postgres"
	"github.com/medibook/booking-api/internal/repository/redisrepo"
	"github.com/medibook/booking-api/internal/router"
	appointmentService "github.com/medibook/booking-api/internal/service/appointment"
	authService "github.com/medibook/booking-api/internal/service/auth"
	availabilityService "github.com/medibook/booking-api/internal/service/availability"
	paymentService "github.com/medibook/booking-api/internal/service/payment"
	"github.com/medibook/booking-api/pkg/auth"
	"github.com/medibook/booking-api/pkg/logger"
	"github.com/medibook/booking-api/pkg/messaging/redis"
	"github.com/medibook/booking-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.InfoLevel,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	redisOpts, err := goredis.ParseURL(cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid redis url")
	}
	redisClient := goredis.NewClient(redisOpts)
	defer redisClient.Close()

	m := metrics.NewMetrics("booking", "api")

	// Repositories
	base := postgres.NewBaseRepository(db)
	providerRepo := postgres.NewProviderRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	paymentRepo := postgres.NewPaymentRepository(base)
	userRepo := postgres.NewUserRepository(base)
	tokenRepo := redisrepo.NewTokenRepository(redisClient)

	// Payment gateway and outbound integrations
	gw := gateway.NewMidtransGateway(gateway.MidtransConfig{
		ServerKey:  cfg.Gateway.ServerKey,
		Production: cfg.Gateway.Production,
	}, appLogger.Zerolog())

	broker := redis.NewRedisBrokerWithClient(redisClient, appLogger.Zerolog())
	emailSvc := email.NewService(cfg.Email)

	// Services
	jwtSvc := auth.NewJWTService(auth.Config{
		Secret:        cfg.JWT.Secret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Expiry:        time.Duration(cfg.JWT.ExpiryMinutes) * time.Minute,
		RefreshExpiry: time.Duration(cfg.JWT.RefreshExpiryHours) * time.Hour,
	})
	authSvc := authService.NewService(userRepo, tokenRepo, jwtSvc,
		time.Duration(cfg.JWT.RefreshExpiryHours)*time.Hour)
	availabilitySvc := availabilityService.NewService(providerRepo, appointmentRepo, m)
	appointmentSvc := appointmentService.NewService(appointmentRepo, providerRepo, availabilitySvc, m)
	paymentSvc := paymentService.NewService(paymentRepo, appointmentSvc, gw, broker, emailSvc, m, appLogger.Zerolog())

	// Middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	h := handler.NewHandler()
	authH := authHandler.NewHandler(authSvc)
	providerH := providerHandler.NewHandler(providerRepo, availabilitySvc)
	appointmentH := appointmentHandler.NewHandler(appointmentSvc)
	paymentH := paymentHandler.NewHandler(paymentSvc)

	r := router.NewRouter(
		authMiddleware,
		authH,
		providerH,
		appointmentH,
		paymentH,
		h,
		appLogger,
		router.Config{
			RateLimit:     100,
			RateBurst:     200,
			CORSConfig:    middleware.DefaultCORSConfig(),
			MetricsPrefix: "booking_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	appLogger.Info("server exited")
}
