// Package container wires the approval service together and owns the
// lifecycle of its components.
package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/application/workflow"
	"github.com/garyjia/approval-flow/internal/config"
	"github.com/garyjia/approval-flow/internal/infrastructure/metrics"
	"github.com/garyjia/approval-flow/internal/infrastructure/seed"
	"github.com/garyjia/approval-flow/internal/infrastructure/worker"
	httpapi "github.com/garyjia/approval-flow/internal/interfaces/http"
	"github.com/garyjia/approval-flow/pkg/database"
)

// Container manages all application dependencies and lifecycle.
// Components start in dependency order and are torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	db    *database.DB
	store port.Store

	recorder   *metrics.Recorder
	dispatcher dispatcher.Dispatcher
	publisher  port.EventPublisher
	engine     workflow.Engine
	services   *ServiceBundle
	workers    *worker.Manager
	server     *httpapi.Server

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth is the health of one component
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Container{config: cfg, logger: logger}, nil
}

// Start initializes every component. The HTTP server is built but not
// started; call Server().Start.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	steps := []struct {
		name string
		fn   func() error
	}{
		{"database", c.initDatabase},
		{"dispatcher and engine", c.initEngine},
		{"services", c.initServices},
		{"template seeds", c.initSeeds},
		{"workers", c.initWorkers},
		{"http server", c.initServer},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			c.teardown()
			return fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
		c.logger.Info("Initialized", zap.String("component", step.name))
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

func (c *Container) initDatabase() error {
	bundle, err := ProvideStore(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = bundle.DB
	c.store = bundle.Store
	return nil
}

func (c *Container) initEngine() error {
	adapter := NewLoggerAdapter(c.logger)
	c.dispatcher = dispatcher.NewDispatcher(dispatcher.WithLogger(adapter))

	opts := []workflow.EngineOption{
		workflow.WithDispatcher(c.dispatcher),
		workflow.WithLogger(adapter),
	}
	if c.config.Metrics.Enabled {
		c.recorder = metrics.NewRecorder()
		opts = append(opts, workflow.WithRecorder(c.recorder))
	}

	publisher, err := ProvideEventPublisher(c.ctx, &c.config.Messaging, c.dispatcher, c.logger)
	if err != nil {
		return fmt.Errorf("event publisher: %w", err)
	}
	c.publisher = publisher

	c.engine = workflow.NewEngine(c.store, opts...)
	return nil
}

func (c *Container) initServices() error {
	adapter := NewLoggerAdapter(c.logger)
	sender := ProvideMessageSender(&c.config.Lark, c.logger)

	notifier := service.NewNotificationService(c.store, sender, adapter)
	notifier.Register(c.dispatcher)

	c.services = &ServiceBundle{
		Approval:     service.NewApprovalService(c.engine, c.store, ProvideExporter(c.logger), adapter),
		Template:     service.NewTemplateService(c.store.Templates, c.store.Tx, adapter),
		User:         service.NewUserService(c.store.Users, adapter),
		Notification: notifier,
	}
	return nil
}

func (c *Container) initSeeds() error {
	_, err := seed.NewSeeder(c.services.Template, c.logger).Run(c.ctx, c.config.Templates.SeedDir)
	return err
}

func (c *Container) initWorkers() error {
	c.workers = worker.NewManager(c.logger)
	if c.config.Workflow.ReminderEnabled {
		var stats worker.ReminderStats
		if c.recorder != nil {
			stats = c.recorder
		}
		c.workers.Register(ProvideReminderWorker(&c.config.Workflow, c.services.Notification, stats, c.logger))
	}
	return c.workers.StartAll(c.ctx)
}

func (c *Container) initServer() error {
	var m httpapi.Metrics
	if c.recorder != nil {
		m = c.recorder
	}
	c.server = httpapi.NewServer(httpapi.ServerConfig{
		Host:            c.config.Server.Host,
		Port:            c.config.Server.Port,
		Mode:            c.config.Server.Mode,
		ReadTimeout:     c.config.Server.ReadTimeout,
		WriteTimeout:    c.config.Server.WriteTimeout,
		ShutdownTimeout: c.config.Server.ShutdownTimeout,
	}, httpapi.Services{
		Approvals: c.services.Approval,
		Templates: c.services.Template,
		Users:     c.services.User,
	}, m, NewLoggerAdapter(c.logger))
	return nil
}

// Close stops workers, drains the dispatcher and closes the broker and
// database connections
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	err := c.teardown()
	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}
	c.logger.Info("Container closed successfully")
	return nil
}

func (c *Container) teardown() error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}
	if c.publisher != nil {
		if err := c.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Ready reports whether Start completed
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health reports the state of each component
func (c *Container) Health() *HealthStatus {
	status := &HealthStatus{Overall: true, Components: make(map[string]ComponentHealth)}
	set := func(name string, healthy bool, msg string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: msg}
		if !healthy {
			status.Overall = false
		}
	}

	switch {
	case c.store.Requests == nil:
		set("database", false, "not initialized")
	case c.db == nil:
		set("database", true, "in-memory")
	default:
		if err := c.db.Ping(); err != nil {
			set("database", false, fmt.Sprintf("ping failed: %v", err))
		} else {
			set("database", true, "")
		}
	}

	if c.workers == nil {
		set("workers", false, "not initialized")
	} else {
		set("workers", c.workers.IsRunning(), fmt.Sprintf("worker count: %d", c.workers.WorkerCount()))
	}

	set("dispatcher", c.dispatcher != nil, "")
	return status
}

// Server returns the HTTP server
func (c *Container) Server() *httpapi.Server {
	return c.server
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Engine returns the workflow engine.
func (c *Container) Engine() workflow.Engine {
	return c.engine
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}
