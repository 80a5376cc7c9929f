package container

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/config"
	"github.com/garyjia/approval-flow/internal/infrastructure/export"
	infraLark "github.com/garyjia/approval-flow/internal/infrastructure/external/lark"
	"github.com/garyjia/approval-flow/internal/infrastructure/messaging"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/memory"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-flow/internal/infrastructure/worker"
	"github.com/garyjia/approval-flow/migrations"
	"github.com/garyjia/approval-flow/pkg/database"
)

// StoreBundle holds the repositories and the handle that must be closed
// with them
type StoreBundle struct {
	Store port.Store
	// DB is nil for the memory driver
	DB *database.DB
}

// ProvideStore opens the configured store. The sqlite driver runs pending
// migrations before the repositories are built.
func ProvideStore(cfg *config.DatabaseConfig, logger *zap.Logger) (*StoreBundle, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return &StoreBundle{Store: memory.NewStore().Repositories()}, nil
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	var source fs.FS = migrations.FS
	if cfg.MigrationsDir != "" {
		source = os.DirFS(cfg.MigrationsDir)
	}
	if err := database.NewMigrator(db, logger).RunMigrations(source); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &StoreBundle{
		Store: repository.NewStore(sqlite.NewDB(db.DB, logger), logger),
		DB:    db,
	}, nil
}

// ProvideMessageSender returns the Lark messenger, or nil when Lark is not
// configured so notifications are only logged
func ProvideMessageSender(cfg *config.LarkConfig, logger *zap.Logger) port.MessageSender {
	if !cfg.Enabled() {
		logger.Info("Lark not configured, notifications will be logged only")
		return nil
	}
	client := infraLark.NewClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.APITimeout,
	}, logger)
	return infraLark.NewMessenger(client, logger)
}

// ProvideEventPublisher connects to the broker and forwards every event
// dispatched on d. It returns nil when messaging is not configured.
func ProvideEventPublisher(ctx context.Context, cfg *config.MessagingConfig, d dispatcher.Dispatcher, logger *zap.Logger) (port.EventPublisher, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}

	conn, err := messaging.Dial(cfg.AMQPURL, logger)
	if err != nil {
		return nil, err
	}
	publisher, err := messaging.NewPublisher(ctx, conn, cfg.Exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	messaging.NewForwarder(publisher, logger).Register(d)
	logger.Info("Domain events will be published", zap.String("exchange", cfg.Exchange))
	return publisher, nil
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Approval     service.ApprovalService
	Template     service.TemplateService
	User         service.UserService
	Notification service.NotificationService
}

// ProvideReminderWorker builds the overdue reminder worker
func ProvideReminderWorker(cfg *config.WorkflowConfig, notifier service.NotificationService, stats worker.ReminderStats, logger *zap.Logger) *worker.ReminderWorker {
	return worker.NewReminderWorker(worker.ReminderWorkerConfig{
		Interval:     cfg.ReminderInterval,
		SweepTimeout: cfg.ReminderTimeout,
	}, notifier, stats, logger)
}

// ProvideExporter returns the XLSX report exporter
func ProvideExporter(logger *zap.Logger) port.ReportExporter {
	return export.NewExcelExporter(logger)
}
