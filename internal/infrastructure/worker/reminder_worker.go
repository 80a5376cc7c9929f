package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reminder re-notifies approvers of overdue requests
type Reminder interface {
	RemindOverdue(ctx context.Context, now time.Time) (int, error)
}

// ReminderStats receives the number of requests reminded per sweep
type ReminderStats interface {
	RemindersSent(n int)
}

// ReminderWorkerConfig holds configuration for the reminder worker
type ReminderWorkerConfig struct {
	Interval     time.Duration
	SweepTimeout time.Duration
}

// DefaultReminderWorkerConfig returns default configuration
func DefaultReminderWorkerConfig() ReminderWorkerConfig {
	return ReminderWorkerConfig{
		Interval:     15 * time.Minute,
		SweepTimeout: time.Minute,
	}
}

// ReminderWorker sweeps overdue requests on a fixed interval
type ReminderWorker struct {
	config   ReminderWorkerConfig
	reminder Reminder
	stats    ReminderStats
	clock    func() time.Time
	logger   *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	isRunning bool
	sweeps    int
	reminded  int
	lastError error
}

// NewReminderWorker creates a new reminder worker. stats may be nil.
func NewReminderWorker(config ReminderWorkerConfig, reminder Reminder, stats ReminderStats, logger *zap.Logger) *ReminderWorker {
	defaults := DefaultReminderWorkerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.SweepTimeout <= 0 {
		config.SweepTimeout = defaults.SweepTimeout
	}
	return &ReminderWorker{
		config:   config,
		reminder: reminder,
		stats:    stats,
		clock:    time.Now,
		logger:   logger,
	}
}

// Start begins the sweep loop
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return fmt.Errorf("reminder worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.isRunning = true

	w.logger.Info("ReminderWorker started", zap.Duration("interval", w.config.Interval))
	go w.loop(ctx, w.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (w *ReminderWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	cancel()
	<-done

	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger.Info("ReminderWorker stopped",
		zap.Int("sweeps", w.sweeps),
		zap.Int("reminded", w.reminded))
	return nil
}

// Name returns the worker name for identification
func (w *ReminderWorker) Name() string {
	return "ReminderWorker"
}

func (w *ReminderWorker) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one reminder pass and returns how many requests were reminded
func (w *ReminderWorker) Sweep(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, w.config.SweepTimeout)
	defer cancel()

	n, err := w.reminder.RemindOverdue(ctx, w.clock())

	w.mu.Lock()
	w.sweeps++
	w.reminded += n
	w.lastError = err
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("Reminder sweep failed", zap.Error(err))
	}
	if n > 0 && w.stats != nil {
		w.stats.RemindersSent(n)
	}
	return n
}

// LastError returns the error of the most recent sweep
func (w *ReminderWorker) LastError() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastError
}
