package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/app"
	"github.com/Freeeeeet/booking_engine/internal/config"
	"github.com/Freeeeeet/booking_engine/internal/controller/httpapi"
	"github.com/Freeeeeet/booking_engine/internal/controller/telegram"
	"github.com/Freeeeeet/booking_engine/internal/notify"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Booking engine stopped with error", zap.Error(err))
	}
	logger.Info("Booking engine stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("create pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	defer migrator.Close()

	if err := migrator.Run(ctx); err != nil {
		return err
	}

	store := repository.NewStore(pool)
	clock := func() time.Time { return time.Now().UTC() }
	rules := rulesFromConfig(cfg)

	emitter := service.NewEmitter(logger)
	allocator := service.NewAllocator(logger)
	machine := service.NewBookingMachine(store, allocator, emitter, rules, clock, logger)
	bookingService := service.NewBookingService(store, allocator, machine, emitter, rules, clock, logger)
	slotService := service.NewSlotService(store, emitter, clock, logger)
	assessmentService := service.NewAssessmentService(store, emitter, clock, logger)
	userService := service.NewUserService(store, cfg.TelegramLinkTTL, clock, logger)

	g, ctx := errgroup.WithContext(ctx)

	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if cfg.TelegramToken != "" {
		botInstance, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create bot: %w", err)
		}

		controller := telegram.NewBotController(botInstance, userService, bookingService, logger)
		if err := controller.RegisterHandlers(ctx, botInstance); err != nil {
			return err
		}

		notifier = notify.NewTelegramNotifier(botInstance, store, logger)

		g.Go(func() error {
			logger.Info("Starting telegram bot")
			botInstance.Start(ctx)
			return nil
		})
	}

	relay := service.NewOutboxRelay(store, notifier, cfg.OutboxBatchSize, clock, logger)
	scheduler := app.NewScheduler(logger,
		app.Job{Name: "no_show_sweep", Spec: cfg.SweepSchedule, Timeout: time.Minute, Run: bookingService.SweepNoShows},
		app.Job{Name: "reminder_sweep", Spec: cfg.ReminderSchedule, Timeout: time.Minute, Run: bookingService.SweepReminders},
		app.Job{Name: "outbox_relay", Spec: cfg.OutboxSchedule, Timeout: 30 * time.Second, Run: relay.Flush},
	)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	handler := httpapi.NewHandler(slotService, bookingService, assessmentService, userService, cfg.TelegramBotUsername, logger)
	server := httpapi.NewApp(handler, cfg.RequestTimeout)

	g.Go(func() error {
		logger.Info("Starting HTTP API", zap.String("addr", cfg.HTTPAddr))
		return server.Listen(cfg.HTTPAddr)
	})

	g.Go(func() error {
		<-ctx.Done()
		scheduler.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// rulesFromConfig бизнес-константы движка из конфигурации
func rulesFromConfig(cfg *config.Config) service.Rules {
	return service.Rules{
		CancellationWindow:  cfg.CancellationWindow,
		NoShowGracePeriod:   cfg.NoShowGracePeriod,
		AttendanceEarlyMark: cfg.AttendanceEarlyMark,
		ReminderLead:        cfg.ReminderLead,
		SweepBatchSize:      cfg.SweepBatchSize,
	}
}
