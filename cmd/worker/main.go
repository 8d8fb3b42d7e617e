package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/medibook/booking-api/internal/config"
	"github.com/medibook/booking-api/internal/email"
	"github.com/medibook/booking-api/internal/gateway"
	"github.com/medibook/booking-api/internal/repository/postgres"
	"github.com/medibook/booking-api/internal/service/appointment"
	"github.com/medibook/booking-api/internal/service/availability"
	"github.com/medibook/booking-api/internal/service/payment"
	"github.com/medibook/booking-api/internal/worker"
	"github.com/medibook/booking-api/pkg/logger"
	"github.com/medibook/booking-api/pkg/messaging/redis"
	"github.com/medibook/booking-api/pkg/metrics"
)

// WorkerEnv holds worker-only settings, read from the environment.
type WorkerEnv struct {
	HealthPort string `envconfig:"WORKER_HEALTH_PORT" default:"8081"`
}

func setupHealthCheck(port string, appLogger *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())

	go func() {
		if err := http.ListenAndServe(":"+port, mux); err != nil {
			appLogger.Error(err, "health check server failed")
			os.Exit(1)
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var env WorkerEnv
	if err := envconfig.Process("", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to read worker environment")
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

	m := metrics.NewMetrics("booking", "worker")

	base := postgres.NewBaseRepository(db)
	providerRepo := postgres.NewProviderRepository(base)
	appointmentRepo := postgres.NewAppointmentRepository(base)
	paymentRepo := postgres.NewPaymentRepository(base)

	gw := gateway.NewMidtransGateway(gateway.MidtransConfig{
		ServerKey:  cfg.Gateway.ServerKey,
		Production: cfg.Gateway.Production,
	}, appLogger.Zerolog())

	broker := redis.NewRedisBrokerWithClient(redisClient, appLogger.Zerolog())
	emailSvc := email.NewService(cfg.Email)

	availabilitySvc := availability.NewService(providerRepo, appointmentRepo, m)
	appointmentSvc := appointment.NewService(appointmentRepo, providerRepo, availabilitySvc, m)
	paymentSvc := payment.NewService(paymentRepo, appointmentSvc, gw, broker, emailSvc, m, appLogger.Zerolog())

	reconciler := worker.NewReconciler(paymentRepo, paymentSvc, worker.ReconcilerConfig{
		SweepInterval:   cfg.Payment.SweepInterval,
		StaleAfter:      cfg.Payment.StaleAfter,
		ExpireOpenAfter: cfg.Payment.ExpireOpenAfter,
		BatchSize:       cfg.Payment.SweepBatchSize,
	}, appLogger, m)

	setupHealthCheck(env.HealthPort, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down worker")
		cancel()
	}()

	reconciler.Start(ctx)
}
