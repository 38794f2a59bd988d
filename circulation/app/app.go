package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-circulation/circulation/config"
	"github.com/Astemirdum/library-circulation/circulation/internal/handler"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/circulation/internal/server"
	"github.com/Astemirdum/library-circulation/circulation/internal/service"
	"github.com/Astemirdum/library-circulation/circulation/migrations"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/Astemirdum/library-circulation/pkg/logger"
	"github.com/Astemirdum/library-circulation/pkg/postgres"
)

func retryOptions(cfg config.Retry) []service.RetryOption {
	var opts []service.RetryOption
	if cfg.MaxAttempts > 0 {
		opts = append(opts, service.WithMaxAttempts(cfg.MaxAttempts))
	}
	if cfg.BaseDelay > 0 {
		opts = append(opts, service.WithBaseDelay(cfg.BaseDelay))
	}
	return opts
}

// Run serves HTTP and consumes circulation events until SIGINT/SIGTERM.
func Run(ctx context.Context, cfg config.Config) error {
	log := logger.NewLogger(cfg.Log, "circulation")
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()

	repo, err := repository.NewRepository(db, log)
	if err != nil {
		return errors.Wrap(err, "repo init")
	}
	reports := repository.NewReportRepository(postgres.NewSqlx(db), log)
	svc, err := service.NewService(repo, reports, log, retryOptions(cfg.Retry)...)
	if err != nil {
		return errors.Wrap(err, "service init")
	}

	g, gctx := errgroup.WithContext(ctx)

	events := handler.NewNopEnqueuer(log)
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka)
		if err != nil {
			return errors.Wrap(err, "kafka producer")
		}
		defer func() {
			if err := producer.Close(); err != nil {
				log.Error("producer.Close", zap.Error(err))
			}
		}()
		events = handler.NewEnqueuer(producer, log)

		group, err := kafka.NewConsumer(cfg.Kafka, kafka.ActivityConsumerGroup)
		if err != nil {
			return errors.Wrap(err, "kafka consumer")
		}
		consumer := handler.NewConsumer(svc.RecordActivity, log)
		g.Go(func() error {
			return kafka.Consume(gctx, group, consumer, log, kafka.CirculationTopic)
		})
	}

	h := handler.New(svc, events, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))
	g.Go(srv.Run)

	g.Go(func() error {
		<-gctx.Done()
		log.Debug("Graceful shutdown", zap.Error(context.Cause(gctx)))
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Stop(closeCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Graceful shutdown finished")
	return nil
}

// Migrate applies a goose command to the configured database.
func Migrate(ctx context.Context, cfg config.Config, command string) error {
	db, err := postgres.NewPostgresDB(ctx, &cfg.Database, nil)
	if err != nil {
		return errors.Wrap(err, "db init")
	}
	defer db.Close()
	return postgres.Migrate(ctx, db, migrations.MigrationFiles, command)
}
