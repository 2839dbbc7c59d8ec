package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

const retryHeader = "x-retry-count"

// RabbitQueue publishes jobs as persistent JSON messages, one durable queue per topic.
type RabbitQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	mu         sync.Mutex
	prefix     string
	MaxRetries int
	logger     *zap.Logger
}

// NewRabbitQueue dials url. Queue names are prefix + "." + topic when prefix is set.
func NewRabbitQueue(url, prefix string, logger *zap.Logger) (*RabbitQueue, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	return &RabbitQueue{conn: conn, ch: ch, prefix: prefix, MaxRetries: defaultMaxRetries, logger: logger}, nil
}

func (q *RabbitQueue) name(topic string) string {
	if q.prefix == "" {
		return topic
	}
	return q.prefix + "." + topic
}

func (q *RabbitQueue) declare(topic string) (string, error) {
	qu, err := q.ch.QueueDeclare(
		q.name(topic), // name
		true,          // durable
		false,         // delete when unused
		false,         // exclusive
		false,         // no-wait
		nil,           // arguments
	)
	if err != nil {
		return "", fmt.Errorf("declare queue %s: %w", q.name(topic), err)
	}
	return qu.Name, nil
}

func (q *RabbitQueue) Publish(ctx context.Context, topic string, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	name, err := q.declare(topic)
	if err != nil {
		return err
	}
	return q.ch.Publish("", name, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Headers:      amqp.Table{retryHeader: int32(job.Attempt)},
		Body:         body,
	})
}

// Subscribe consumes with manual acks. A failed job is republished with an
// incremented retry header until MaxRetries, then dropped.
func (q *RabbitQueue) Subscribe(topic string, handler Handler) error {
	q.mu.Lock()
	name, err := q.declare(topic)
	if err == nil {
		err = q.ch.Qos(1, 0, false)
	}
	var msgs <-chan amqp.Delivery
	if err == nil {
		msgs, err = q.ch.Consume(
			name,
			"",
			false, // autoAck = false for reliability
			false,
			false,
			false,
			nil,
		)
	}
	q.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", name, err)
	}

	go func() {
		for d := range msgs {
			q.handle(topic, d, handler)
		}
	}()
	return nil
}

func (q *RabbitQueue) handle(topic string, d amqp.Delivery, handler Handler) {
	var job Job
	if err := json.Unmarshal(d.Body, &job); err != nil {
		q.logger.Error("invalid job payload", zap.Error(err))
		_ = d.Ack(false)
		return
	}
	job.Attempt = retryCount(d.Headers)

	if err := handler(context.Background(), job); err != nil {
		job.Attempt++
		q.logger.Warn("job failed",
			zap.String("notification_id", job.NotificationID.String()),
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		if job.Attempt <= q.MaxRetries {
			if perr := q.Publish(context.Background(), topic, job); perr != nil {
				q.logger.Error("requeue failed", zap.Error(perr))
				_ = d.Nack(false, true)
				return
			}
		} else {
			q.logger.Error("job permanently failed", zap.String("notification_id", job.NotificationID.String()))
		}
	}
	_ = d.Ack(false)
}

func retryCount(h amqp.Table) int {
	switch v := h[retryHeader].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (q *RabbitQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		q.conn.Close()
		return err
	}
	return q.conn.Close()
}
