package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/Leganyst/consultation-platform/internal/auth"
	"github.com/Leganyst/consultation-platform/internal/config"
	"github.com/Leganyst/consultation-platform/internal/db"
	"github.com/Leganyst/consultation-platform/internal/events"
	"github.com/Leganyst/consultation-platform/internal/lock"
	"github.com/Leganyst/consultation-platform/internal/media"
	"github.com/Leganyst/consultation-platform/internal/model"
	"github.com/Leganyst/consultation-platform/internal/payment"
	"github.com/Leganyst/consultation-platform/internal/repository"
	"github.com/Leganyst/consultation-platform/internal/service"
	"github.com/Leganyst/consultation-platform/internal/telemetry"
	httpapi "github.com/Leganyst/consultation-platform/internal/transport/http"
)

func main() {
	// 0. .env для локального запуска; в контейнере его нет, это не ошибка.
	_ = godotenv.Load()

	// 1. Конфиги из env.
	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		log.Fatalf("load db config: %v", err)
	}

	logger := telemetry.NewLogger(os.Stdout, appCfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Трейсинг (без OTLP endpoint ничего не экспортируем).
	shutdownTracer, err := telemetry.InitTracer(ctx, appCfg.ServiceName, appCfg.OTLPEndpoint, appCfg.Env)
	if err != nil {
		log.Fatalf("init tracer: %v", err)
	}

	// 3. БД и миграции.
	gormDB, err := db.NewGormDB(dbCfg)
	if err != nil {
		log.Fatalf("init db: %v", err)
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		log.Fatalf("auto migrate: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("sql DB: %v", err)
	}
	defer sqlDB.Close()

	// 4. Инфраструктура: блокировки, брокер, хранилище обложек.
	var locker lock.Locker = lock.NewLocal()
	if appCfg.RedisURL != "" {
		opt, err := redis.ParseURL(appCfg.RedisURL)
		if err != nil {
			log.Fatalf("parse REDIS_URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping: %v", err)
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, "consult:lock:", appCfg.LockTTL)
		logger.Info("using redis locks")
	}

	var publisher events.Publisher = events.Nop{}
	if appCfg.RabbitURL != "" {
		amqpPub, err := events.NewAMQPPublisher(appCfg.RabbitURL, appCfg.RabbitExchange)
		if err != nil {
			log.Fatalf("init rabbitmq: %v", err)
		}
		defer amqpPub.Close()
		publisher = amqpPub
		logger.Info("publishing domain events", "exchange", appCfg.RabbitExchange)
	}

	var (
		images    media.ImageStore
		uploadDir string
	)
	if appCfg.S3.Bucket != "" {
		s3Store, err := media.NewS3Store(appCfg.S3)
		if err != nil {
			log.Fatalf("init s3: %v", err)
		}
		images = s3Store
	} else {
		disk, err := media.NewDiskStore(appCfg.UploadDir, "/uploads")
		if err != nil {
			log.Fatalf("init upload dir: %v", err)
		}
		images, uploadDir = disk, disk.Dir()
	}

	// 5. Платёжный шлюз.
	if appCfg.Stripe.SecretKey == "" {
		logger.Warn("STRIPE_SECRET_KEY is empty, checkout will fail")
	}
	gateway := payment.NewStripeGateway(appCfg.Stripe)
	origin, _ := url.Parse(appCfg.PublicOrigin) // проверен в Validate

	// 6. Сервисы.
	identitySvc := service.NewIdentityService(gormDB, appCfg.BootstrapAdminEmails, logger)
	services := httpapi.Services{
		Consultations: service.NewConsultationService(gormDB, images, publisher, logger),
		Payments: service.NewPaymentService(gormDB, gateway, locker, service.PaymentConfig{
			Origin:   origin,
			Currency: appCfg.Stripe.Currency,
			Timeout:  appCfg.Stripe.Timeout,
		}, publisher, logger),
		Bookings:    service.NewBookingService(gormDB, publisher, logger),
		Disputes:    service.NewDisputeService(gormDB, gateway, locker, appCfg.Stripe.Timeout, publisher, logger),
		Ratings:     service.NewRatingService(gormDB, publisher, logger),
		Consultants: service.NewConsultantService(gormDB, publisher, logger),
		Identity:    identitySvc,
	}
	resolver := auth.NewResolver(
		auth.NewTokens(appCfg.JWTSecret),
		repository.NewGormUserRepository(gormDB),
		identitySvc.Provision,
	)

	// 7. HTTP API.
	router := httpapi.NewRouter(services, httpapi.Config{
		Resolver:  resolver,
		Webhooks:  gateway,
		UploadDir: uploadDir,
		Log:       logger,
	})
	httpServer := &http.Server{
		Addr:              appCfg.HTTPAddr,
		Handler:           httpapi.Handler(router, appCfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	// 8. gRPC: только health и reflection.
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", appCfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", appCfg.GRPCAddr, err)
	}

	// 9. Запускаем серверы в горутинах.
	go func() {
		logger.Info("grpc server listening", "addr", appCfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve", "error", err)
			stop()
		}
	}()
	go func() {
		logger.Info("http server listening", "addr", appCfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve", "error", err)
			stop()
		}
	}()

	// 10. Грейсфул-шатдаун по сигналу.
	<-ctx.Done()
	logger.Info("shutting down")

	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error("tracer shutdown", "error", err)
	}
}
