package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job фоновая задача; Run возвращает число обработанных записей
type Job struct {
	Name    string
	Spec    string // cron выражение или @every
	Timeout time.Duration
	Run     func(ctx context.Context) (int, error)
}

// Scheduler управляет фоновыми задачами: no-show sweep, напоминания, outbox
type Scheduler struct {
	cron   *cron.Cron
	jobs   []Job
	logger *zap.Logger
	ctx    context.Context
}

// NewScheduler создаёт новый планировщик; одна задача не запускается повторно, пока не закончилась
func NewScheduler(logger *zap.Logger, jobs ...Job) *Scheduler {
	cronLogger := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		jobs:   jobs,
		logger: logger,
		ctx:    context.Background(),
	}
}

// Start регистрирует задачи и запускает cron; ctx отменяет выполняющиеся задачи
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	for _, job := range s.jobs {
		job := job
		if _, err := s.cron.AddFunc(job.Spec, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("add job %s: %w", job.Name, err)
		}
		s.logger.Info("Background job scheduled", zap.String("job", job.Name), zap.String("spec", job.Spec))
	}

	s.logger.Info("Starting background scheduler")
	s.cron.Start()
	return nil
}

// Stop останавливает планировщик и ждёт завершения запущенных задач
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) runJob(job Job) {
	ctx := s.ctx
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	started := time.Now()
	n, err := job.Run(ctx)
	if err != nil {
		s.logger.Error("Background job failed",
			zap.String("job", job.Name),
			zap.Int("processed", n),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err),
		)
		return
	}

	if n > 0 {
		s.logger.Info("Background job completed",
			zap.String("job", job.Name),
			zap.Int("processed", n),
			zap.Duration("duration", time.Since(started)),
		)
	}
}

// cronLogger пересылает логи cron в zap
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
