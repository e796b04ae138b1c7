package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"gorm.io/gorm"

	"github.com/lifehub-app/notify-engine/internal/config"
	"github.com/lifehub-app/notify-engine/internal/dispatch"
	"github.com/lifehub-app/notify-engine/internal/handler"
	"github.com/lifehub-app/notify-engine/internal/model"
	"github.com/lifehub-app/notify-engine/internal/repository"
	"github.com/lifehub-app/notify-engine/internal/scheduler"
	"github.com/lifehub-app/notify-engine/internal/server"
	"github.com/lifehub-app/notify-engine/internal/service"
	"github.com/lifehub-app/notify-engine/internal/ws"
	"github.com/lifehub-app/notify-engine/pkg/database"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	db, err := database.Connect()
	if err != nil {
		log.Fatalf("%v", err)
	}
	if err := migrate(db); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	redisClient := database.ConnectRedis()

	// Repositories
	notificationRepo := repository.NewNotificationRepository(db)
	preferenceRepo := repository.NewPreferenceRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)
	taskRepo := repository.NewTaskRepository(db)

	// Channel senders
	var emailSender dispatch.EmailSender
	if cfg.SMTPHost != "" {
		emailSender = dispatch.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.EmailFrom)
	}
	var mobilePush dispatch.MobilePushSender
	if cfg.MobilePushURL != "" {
		mobilePush = dispatch.NewHTTPMobilePush(cfg.MobilePushURL, cfg.MobilePushKey)
	}
	var browserPush dispatch.BrowserPushSender
	if cfg.BrowserPushURL != "" {
		browserPush = dispatch.NewHTTPBrowserPush(cfg.BrowserPushURL)
	}
	var smsSender dispatch.SMSSender
	if cfg.SMSProviderURL != "" {
		smsSender = dispatch.NewHTTPSMS(cfg.SMSProviderURL, cfg.SMSProviderKey, cfg.SMSSender)
	}

	// Services
	preferenceSvc := service.NewPreferenceService(preferenceRepo)
	dispatcher := service.NewDispatcher(notificationRepo, deviceRepo, preferenceSvc,
		emailSender, mobilePush, browserPush, smsSender, cfg.DispatchTimeout)
	notificationSvc := service.NewNotificationService(notificationRepo, dispatcher, redisClient)
	deviceSvc := service.NewDeviceService(deviceRepo)

	// Live hub
	hub := ws.NewHub(notificationSvc, preferenceSvc, redisClient)
	notificationSvc.SetBroadcaster(hub)
	hub.Start()

	// Reminder scheduler
	var ledger scheduler.DedupLedger
	if redisClient != nil {
		ledger = scheduler.NewRedisLedger(redisClient, cfg.BeforeDueOffsets, cfg.AfterDueOffsets)
	} else {
		ledger = scheduler.NewMemoryLedger()
	}
	scanner := scheduler.NewReminderScanner(taskRepo, notificationSvc, ledger, scheduler.ScannerConfig{
		BeforeDueOffsets:    cfg.BeforeDueOffsets,
		AfterDueOffsets:     cfg.AfterDueOffsets,
		ToleranceMinutes:    cfg.ToleranceMinutes,
		MaxOverdueReminders: cfg.MaxOverdueReminders,
		QuietStart:          cfg.SchedulerQuietStart,
		QuietEnd:            cfg.SchedulerQuietEnd,
		Timezone:            cfg.SchedulerTimezone,
	})

	runner := scheduler.NewRunner()
	runner.Register("due-soon-scan", cfg.DueSoonInterval, scanner.ScanDueSoon)
	runner.Register("overdue-scan", cfg.OverdueInterval, scanner.ScanOverdue)
	runner.Register("reminder-cleanup", cfg.CleanupInterval, scanner.Cleanup)
	runner.Register("scheduled-release", cfg.ScheduledInterval, func(ctx context.Context) error {
		_, err := notificationSvc.DispatchDueScheduled(ctx, 100)
		return err
	})
	runner.Start()

	// Handlers
	handlers := server.Handlers{
		Notifications: handler.NewNotificationHandler(notificationSvc, hub, scanner),
		Preferences:   handler.NewPreferenceHandler(preferenceSvc),
		Devices:       handler.NewDeviceHandler(deviceSvc),
		Live:          handler.NewWSHandler(hub),
	}

	srv := server.NewServer(handlers, cfg.JWTSecret)

	go func() {
		if err := srv.Run(":" + cfg.Port); err != nil {
			log.Fatalf("server exited with error: %v", err)
		}
	}()
	log.Printf("notify-engine listening on :%s", cfg.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	runner.Stop()
	hub.Stop()
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Notification{},
		&model.NotificationPreferences{},
		&model.DeviceToken{},
		&model.Task{},
	)
}
