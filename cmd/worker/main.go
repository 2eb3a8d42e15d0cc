package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/db"
	"github.com/unclebandit/outreach-backend/internal/email"
	"github.com/unclebandit/outreach-backend/internal/metrics"
	"github.com/unclebandit/outreach-backend/internal/queue"
	"github.com/unclebandit/outreach-backend/internal/repository"
	"github.com/unclebandit/outreach-backend/internal/service"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("no .env file found, relying on OS environment variables")
	}
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, dialect, err := db.Open(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer conn.Close()

	metrics.Init()
	metricsServer := &http.Server{Addr: ":" + cfg.MetricsPort, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker running, waiting for due jobs",
		zap.Int("workers", cfg.WorkerCount), zap.String("queue", cfg.JobQueue))
	if err := run(ctx, cfg, conn, dialect, logger); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		return
	}
	logger.Info("worker stopped")
}

// run dispatches due jobs and consumes them until ctx is done. An empty
// AMQP_URL keeps the queue in process.
func run(ctx context.Context, cfg *config.Config, conn *sql.DB, dialect db.Dialect, log *zap.Logger) error {
	q, err := newQueue(cfg, log)
	if err != nil {
		return err
	}
	defer q.Close()

	stores := repository.NewStores(conn, dialect)
	worker := service.NewWorker(stores.Jobs, stores.Profiles, newMailer(cfg, log), newLimiter(cfg.SendRateLimit), log)
	dispatcher := &service.Dispatcher{
		Jobs:       stores.Jobs,
		Queue:      q,
		Topic:      cfg.JobQueue,
		Interval:   cfg.DispatchInterval,
		Batch:      cfg.DispatchBatch,
		StaleAfter: cfg.StaleAfter,
		Log:        log,
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.WorkerCount; i++ {
		g.Go(func() error {
			return q.Subscribe(gctx, cfg.JobQueue, worker.Handle)
		})
	}
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	return g.Wait()
}

func newQueue(cfg *config.Config, log *zap.Logger) (queue.Queue, error) {
	if cfg.AMQPURL == "" {
		return queue.NewInMemoryQueue(log), nil
	}
	return queue.DialAMQP(cfg.AMQPURL, cfg.WorkerCount, log)
}

// newMailer falls back to logging when no SMTP host is configured.
func newMailer(cfg *config.Config, log *zap.Logger) email.Mailer {
	if cfg.SMTPHost == "" {
		return email.LogMailer{Log: log}
	}
	return email.NewSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, cfg.SendRetries)
}

func newLimiter(perSecond int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), perSecond)
}
