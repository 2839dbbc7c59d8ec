package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopicNotificationDispatch carries queued notifications for out-of-band channels.
const TopicNotificationDispatch = "notification_dispatch"

const defaultMaxRetries = 3

// Job references one persisted notification awaiting delivery.
type Job struct {
	NotificationID uuid.UUID `json:"notification_id"`
	Attempt        int       `json:"attempt"`
}

type Handler func(ctx context.Context, job Job) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, job Job) error
	Subscribe(topic string, handler Handler) error
	Close() error
}

// InMemoryQueue runs handlers in-process with retry and linear backoff.
type InMemoryQueue struct {
	mu         sync.Mutex
	handlers   map[string][]Handler
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	MaxRetries int
	Backoff    time.Duration
	logger     *zap.Logger
}

func NewInMemoryQueue(logger *zap.Logger) *InMemoryQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InMemoryQueue{
		handlers:   make(map[string][]Handler),
		ctx:        ctx,
		cancel:     cancel,
		MaxRetries: defaultMaxRetries,
		Backoff:    500 * time.Millisecond,
		logger:     logger,
	}
}

// Publish fans the job out to every subscriber of topic.
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, job Job) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}
	for _, h := range handlers {
		q.wg.Add(1)
		go q.process(h, job)
	}
	return nil
}

func (q *InMemoryQueue) process(h Handler, job Job) {
	defer q.wg.Done()
	for {
		err := h(q.ctx, job)
		if err == nil {
			return
		}
		job.Attempt++
		q.logger.Warn("job failed",
			zap.String("notification_id", job.NotificationID.String()),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		if job.Attempt > q.MaxRetries {
			q.logger.Error("job permanently failed", zap.String("notification_id", job.NotificationID.String()))
			return
		}
		select {
		case <-q.ctx.Done():
			return
		case <-time.After(time.Duration(job.Attempt) * q.Backoff):
		}
	}
}

func (q *InMemoryQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Wait blocks until every published job has finished or given up.
func (q *InMemoryQueue) Wait() {
	q.wg.Wait()
}

// Close stops pending retries and waits for running handlers.
func (q *InMemoryQueue) Close() error {
	q.cancel()
	q.wg.Wait()
	return nil
}
