package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/canchallena/panel/internal/api"
	"github.com/canchallena/panel/internal/config"
	"github.com/canchallena/panel/internal/db"
	"github.com/canchallena/panel/internal/grpcapi"
	"github.com/canchallena/panel/internal/jobs"
	"github.com/canchallena/panel/internal/logging"
	"github.com/canchallena/panel/internal/model"
	"github.com/canchallena/panel/internal/realtime"
	"github.com/canchallena/panel/internal/repository"
	"github.com/canchallena/panel/internal/service"
	"github.com/canchallena/panel/internal/venue"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := config.LoadEnvFile(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	appCfg, err := config.LoadAppConfig()
	if err != nil {
		log.Fatalf("load app config: %v", err)
	}
	logger, err := logging.New(appCfg.Production())
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Venue table: built-in unless a file overrides it.
	registry := venue.DefaultRegistry()
	if appCfg.VenuesFile != "" {
		if registry, err = venue.Load(appCfg.VenuesFile); err != nil {
			logger.Fatal("load venues", zap.String("file", appCfg.VenuesFile), zap.Error(err))
		}
	}

	// 2. Change feed, bridged through Redis when configured.
	hub := realtime.NewHub(logger)
	var publisher realtime.Publisher = hub
	if appCfg.RedisAddr != "" {
		client, err := realtime.Connect(ctx, appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
		if err != nil {
			logger.Fatal("connect redis", zap.Error(err))
		}
		defer client.Close()

		bridge := realtime.NewRedisBridge(client, hub, appCfg.RedisChannel, logger)
		publisher = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil {
				logger.Error("redis bridge stopped", zap.Error(err))
			}
		}()
	}

	// 3. Database.
	dbCfg, err := config.LoadDBConfig()
	if err != nil {
		logger.Fatal("load db config", zap.Error(err))
	}
	gormDB, err := db.NewGormDB(dbCfg, realtime.NewPlugin(publisher, model.Tables...))
	if err != nil {
		logger.Fatal("init db", zap.Error(err))
	}
	if err := model.AutoMigrate(gormDB); err != nil {
		logger.Fatal("auto migrate", zap.Error(err))
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		logger.Fatal("sql DB", zap.Error(err))
	}
	defer sqlDB.Close()

	// 4. Repositories and services.
	slotRepo := repository.NewGormSlotRepository(gormDB)
	bookingRepo := repository.NewGormBookingRepository(gormDB)
	clientRepo := repository.NewGormClientRepository(gormDB)
	messageRepo := repository.NewGormMessageRepository(gormDB)
	alertRepo := repository.NewGormAlertRepository(gormDB)
	eventRepo := repository.NewGormEventRepository(gormDB)

	availabilitySvc := service.NewAvailabilityService(slotRepo, bookingRepo, registry, logger)
	bookingSvc := service.NewBookingService(gormDB, registry, logger)
	alertSvc := service.NewAlertService(alertRepo, clientRepo, bookingRepo, eventRepo, appCfg.Location, logger)
	clientSvc := service.NewClientService(clientRepo, messageRepo, bookingRepo, logger)
	dashboardSvc := service.NewDashboardService(availabilitySvc, alertSvc, bookingRepo, messageRepo, appCfg.Location)

	// 5. HTTP API and live views.
	var httpServer *http.Server
	if appCfg.HTTPAddr != "" {
		apiServer := api.NewServer(api.Services{
			Availability: availabilitySvc,
			Bookings:     bookingSvc,
			Alerts:       alertSvc,
			Clients:      clientSvc,
			Dashboard:    dashboardSvc,
		}, hub, api.Options{
			AllowedOrigins: appCfg.AllowedOrigins,
			RatePerSecond:  appCfg.RatePerSecond,
			RateBurst:      appCfg.RateBurst,
			Location:       appCfg.Location,
		}, logger)

		httpServer = &http.Server{
			Addr:              appCfg.HTTPAddr,
			Handler:           apiServer.Routes(),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			logger.Info("http server listening", zap.String("addr", appCfg.HTTPAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http serve", zap.Error(err))
				stop()
			}
		}()
	}

	// 6. gRPC availability service.
	grpcServer, healthServer := grpcapi.NewGRPCServer(grpcapi.NewServer(availabilitySvc, appCfg.Location, logger))
	if appCfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", appCfg.GRPCAddr)
		if err != nil {
			logger.Fatal("listen", zap.String("addr", appCfg.GRPCAddr), zap.Error(err))
		}
		go func() {
			logger.Info("grpc server listening", zap.String("addr", appCfg.GRPCAddr))
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("grpc serve", zap.Error(err))
				stop()
			}
		}()
	}

	// 7. Scheduled jobs.
	var scheduler *jobs.Scheduler
	if appCfg.JobsEnabled {
		scheduler, err = jobs.New(appCfg.CompletionSpec, bookingSvc, appCfg.Location, logger)
		if err != nil {
			logger.Fatal("init jobs", zap.Error(err))
		}
		scheduler.Start()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	healthServer.SetServingStatus(grpcapi.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
	}
	grpcServer.GracefulStop()
}
