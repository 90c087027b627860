package main

import (
	"context"

	"github.com/solarops/tamper-detection-worker/internal/config"
	"github.com/solarops/tamper-detection-worker/internal/db"
	"github.com/solarops/tamper-detection-worker/internal/detection"
	"github.com/solarops/tamper-detection-worker/internal/keymutex"
	"github.com/solarops/tamper-detection-worker/internal/mq"
	"github.com/solarops/tamper-detection-worker/internal/repository"
	"github.com/solarops/tamper-detection-worker/internal/response"
	"github.com/solarops/tamper-detection-worker/internal/scheduler"
	"github.com/solarops/tamper-detection-worker/internal/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startWorker(
	lc fx.Lifecycle,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	processor *service.ProcessorService,
	dispatcher *response.Dispatcher,
	sched *scheduler.Scheduler,
) (*mq.Consumer, error) {
	// Create context for background work that will be cancelled on shutdown
	ctx, cancel := context.WithCancel(context.Background())

	consumer, err := mq.NewConsumer(mq.ConsumerConfig{
		Connection:       conn,
		Queue:            cfg.RabbitMQ.IngestQueue,
		DLQQueue:         cfg.RabbitMQ.DLQQueue,
		Exchange:         cfg.RabbitMQ.IngestExchange,
		RoutingKey:       cfg.RabbitMQ.IngestRoutingKey,
		PrefetchCount:    cfg.RabbitMQ.PrefetchCount,
		Logger:           logger,
		MessageProcessor: processor.ProcessMessage,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	// Register lifecycle hooks
	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			logger.Info("starting worker consumer",
				zap.String("queue", cfg.RabbitMQ.IngestQueue),
				zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
			dispatcher.Start(ctx)
			sched.Start(ctx)
			return consumer.Start(ctx)
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			dispatcher.Wait()
			if err := consumer.Close(); err != nil {
				logger.Error("failed to close consumer", zap.Error(err))
				return err
			}
			logger.Info("worker stopped gracefully")
			return nil
		},
	})

	return consumer, nil
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideKeyedMutex creates the per-installation lock stripes
func ProvideKeyedMutex(cfg *config.Config) *keymutex.KeyedMutex {
	return keymutex.New(cfg.Detection.StripeCount)
}

// ProvideStateCache creates the last-known-value cache
func ProvideStateCache(cfg *config.Config) *detection.Cache {
	return detection.NewCache(cfg.Detection.StripeCount)
}

// ProvideSecurityLogService creates a new security log service instance
func ProvideSecurityLogService(repo *repository.Repository, logger *zap.Logger) *service.SecurityLogService {
	return service.NewSecurityLogService(repo, logger)
}

// ProvideAlertConfigService creates a new alert config service instance
func ProvideAlertConfigService(repo *repository.Repository, audit *service.SecurityLogService, logger *zap.Logger) *service.AlertConfigService {
	return service.NewAlertConfigService(repo, audit, logger)
}

// ProvideEventService creates a new event service instance
func ProvideEventService(
	repo *repository.Repository,
	audit *service.SecurityLogService,
	locks *keymutex.KeyedMutex,
	cfg *config.Config,
	logger *zap.Logger,
) *service.EventService {
	return service.NewEventService(repo, audit, locks, cfg.Detection.FalsePositiveCutoff, logger)
}

// ProvideResponseService creates a new response service instance
func ProvideResponseService(
	repo *repository.Repository,
	configs *service.AlertConfigService,
	audit *service.SecurityLogService,
	publisher *mq.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *service.ResponseService {
	return service.NewResponseService(repo, configs, audit, publisher, cfg.RabbitMQ.AlertRoutingKey, logger)
}

// ProvideResponseDispatcher creates the automatic response worker pool
func ProvideResponseDispatcher(responses *service.ResponseService, cfg *config.Config, logger *zap.Logger) *response.Dispatcher {
	return response.NewDispatcher(cfg.Response.QueueSize, cfg.Response.WorkerCount, responses.ExecuteAutomatic, logger)
}

// ProvideDetectionService creates a new detection service instance
func ProvideDetectionService(
	repo *repository.Repository,
	events *service.EventService,
	configs *service.AlertConfigService,
	audit *service.SecurityLogService,
	cache *detection.Cache,
	locks *keymutex.KeyedMutex,
	dispatcher *response.Dispatcher,
	logger *zap.Logger,
) *service.DetectionService {
	return service.NewDetectionService(repo, events, configs, audit, cache, locks, dispatcher, logger)
}

// ProvideProcessorService creates a new processor service instance
func ProvideProcessorService(detector *service.DetectionService, logger *zap.Logger) *service.ProcessorService {
	return service.NewProcessorService(detector, logger)
}

// ProvideScheduler creates a new scheduler instance
func ProvideScheduler(
	repo *repository.Repository,
	detector *service.DetectionService,
	configs *service.AlertConfigService,
	audit *service.SecurityLogService,
	publisher *mq.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *scheduler.Scheduler {
	return scheduler.NewScheduler(repo, detector, configs, audit, publisher, cfg.RabbitMQ.AlertRoutingKey, cfg.Scheduler, logger)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, cfg.Database.URL, cfg.Database.MaxConns)
}

// ProvideMQConnection creates a new RabbitMQ connection instance
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvideAlertPublisher creates the alert publisher instance
func ProvideAlertPublisher(conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	return mq.NewPublisher(conn, cfg.RabbitMQ.AlertExchange, logger)
}
