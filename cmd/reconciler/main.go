package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/api"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/catalog"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/db"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/ingest"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/kafka"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/matcher"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/radar"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/rpc"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/scheduler"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/pkg/config"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/pkg/logger"
)

func main() {
	// Load configuration
	if err := config.Load(); err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.Current()

	// Initialize logger
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Setup()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize database")
	}
	st := store.New(dbConn)

	ix := catalog.New()
	if err := ix.Refresh(ctx, st); err != nil {
		logrus.WithError(err).Fatal("Failed to build catalog index")
	}
	logrus.WithField("products", ix.Len()).Info("Catalog index built")

	var opts []matcher.Option
	if cfg.KafkaEnabled {
		producer, err := kafka.SetupProducer(cfg.KafkaBrokers)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to create Kafka producer")
		}
		defer producer.Close()
		opts = append(opts, matcher.WithPublisher(kafka.NewHistoryPublisher(producer, cfg.KafkaEventsTopic)))
	}

	engine := matcher.New(st, ix, matcher.Config{
		AutoLinkThreshold: cfg.AutoLinkThreshold,
		AutoLinkMargin:    cfg.AutoLinkMargin,
		SuggestionLimit:   cfg.SuggestionLimit,
		CandidateLimit:    cfg.CandidateLimit,
		BatchSize:         cfg.BatchSize,
		BatchInterval:     cfg.BatchInterval,
	}, opts...)
	ingestor := ingest.New(engine)

	if cfg.KafkaEnabled {
		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to create Kafka consumer")
		}
		defer consumer.Close()
		if err := kafka.Consume(ctx, consumer, cfg.KafkaOffersTopic, ingestor.HandleMessage); err != nil {
			logrus.WithError(err).Fatal("Failed to consume scraped listings")
		}
	}

	sched := scheduler.New(ctx, engine)
	if err := sched.Register(cfg.SweepSchedule, cfg.CatalogRefreshSchedule); err != nil {
		logrus.WithError(err).Fatal("Failed to schedule jobs")
	}
	sched.Start()
	defer sched.Stop()

	// Start HTTP server
	e := api.NewServer(api.Deps{
		Engine:   engine,
		Radar:    radar.New(ix, cfg.DuplicateThreshold),
		Ingestor: ingestor,
	})
	go func() {
		logrus.WithField("port", cfg.HTTPPort).Info("Starting HTTP server")
		if err := e.Start(":" + cfg.HTTPPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Start gRPC server
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		logrus.WithError(err).Fatalf("Failed to listen on port %s", cfg.GRPCPort)
	}
	grpcServer := rpc.NewGRPCServer(engine)
	go func() {
		logrus.WithField("port", cfg.GRPCPort).Info("Starting gRPC server")
		if err := grpcServer.Serve(lis); err != nil {
			logrus.WithError(err).Error("gRPC server stopped")
		}
	}()

	logrus.Info("Application started")
	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}
	grpcServer.GracefulStop()
}
