// Package scheduler owns the process's periodic tasks: the campaign sweep
// and the daily special-day dispatch.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Schedule yields the next run time strictly after now.
type Schedule interface {
	Next(now time.Time) time.Time
}

type every struct{ d time.Duration }

// Every runs at a fixed interval.
func Every(d time.Duration) Schedule {
	if d <= 0 {
		d = time.Minute
	}
	return every{d: d}
}

func (e every) Next(now time.Time) time.Time { return now.Add(e.d) }

type dailyAt struct {
	hour, minute int
	loc          *time.Location
}

// DailyAt runs once a day at hour:minute in loc.
func DailyAt(hour, minute int, loc *time.Location) Schedule {
	if loc == nil {
		loc = time.Local
	}
	return dailyAt{hour: hour, minute: minute, loc: loc}
}

func (d dailyAt) Next(now time.Time) time.Time {
	now = now.In(d.loc)
	next := time.Date(now.Year(), now.Month(), now.Day(), d.hour, d.minute, 0, 0, d.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Job is one run of a task. The context is cancelled when the task stops.
type Job func(ctx context.Context) error

type task struct {
	name     string
	schedule Schedule
	job      Job
	logger   *zap.Logger
	cancel   context.CancelFunc
	done     chan struct{}
}

func (t *task) run(ctx context.Context) {
	defer close(t.done)
	for {
		now := time.Now()
		timer := time.NewTimer(t.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			t.fire(ctx)
		}
	}
}

func (t *task) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("scheduled task panicked", zap.String("task", t.name), zap.Any("panic", r))
		}
	}()
	start := time.Now()
	if err := t.job(ctx); err != nil {
		t.logger.Error("scheduled task failed", zap.String("task", t.name), zap.Error(err))
		return
	}
	t.logger.Debug("scheduled task finished", zap.String("task", t.name), zap.Duration("took", time.Since(start)))
}

// Registry holds running periodic tasks (thread-safe). It is created on
// startup and stopped on shutdown by whoever owns the process.
type Registry struct {
	mu     sync.RWMutex
	tasks  map[string]*task
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{tasks: make(map[string]*task), logger: logger}
}

// Start runs job on schedule under name. Starting a name twice is an error.
func (r *Registry) Start(name string, schedule Schedule, job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[name]; ok {
		return fmt.Errorf("task %q already running", name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &task{name: name, schedule: schedule, job: job, logger: r.logger, cancel: cancel, done: make(chan struct{})}
	r.tasks[name] = t
	go t.run(ctx)
	r.logger.Info("scheduled task started", zap.String("task", name))
	return nil
}

// Stop cancels the task and waits for an in-flight run to return.
func (r *Registry) Stop(name string) {
	r.mu.Lock()
	t := r.tasks[name]
	delete(r.tasks, name)
	r.mu.Unlock()
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
	r.logger.Info("scheduled task stopped", zap.String("task", name))
}

func (r *Registry) StopAll() {
	for _, name := range r.Running() {
		r.Stop(name)
	}
}

// Running lists task names in sorted order.
func (r *Registry) Running() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
